package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/filehost/internal/flagx"
	"github.com/dmitrijs2005/filehost/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Duration
// fields use timex.Duration, so both "24h" and integer nanoseconds parse.
// Pointer fields distinguish "absent" from an explicit zero value.
type JsonConfig struct {
	HTTPAddr                    string          `json:"http_addr"`
	GRPCAddr                    string          `json:"grpc_addr"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	StorageMode                 string          `json:"storage_mode"`
	UploadFolder                string          `json:"upload_folder"`
	S3Endpoint                  string          `json:"s3_endpoint"`
	S3AccessKey                 string          `json:"s3_access_key"`
	S3SecretKey                 string          `json:"s3_secret_key"`
	S3Bucket                    string          `json:"s3_bucket"`
	S3Region                    string          `json:"s3_region"`
	S3UsePathStyle              *bool           `json:"s3_use_path_style"`
	AllowedExtensions           []string        `json:"allowed_extensions"`
	MaxFileSize                 *int64          `json:"max_file_size"`
	ItemsPerPage                *int            `json:"items_per_page"`
	CORSOrigins                 []string        `json:"cors_origins"`
	LogLevel                    string          `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, and overlays every
// field it sets onto config.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFileFlag(args)
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", jsonConfigFile, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.GRPCAddr, c.GRPCAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	set(&config.StorageMode, c.StorageMode)
	set(&config.UploadFolder, c.UploadFolder)
	set(&config.S3Endpoint, c.S3Endpoint)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	if c.AllowedExtensions != nil {
		config.AllowedExtensions = c.AllowedExtensions
	}
	if c.MaxFileSize != nil {
		config.MaxFileSize = *c.MaxFileSize
	}
	if c.ItemsPerPage != nil {
		config.ItemsPerPage = *c.ItemsPerPage
	}
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}

	return nil
}
