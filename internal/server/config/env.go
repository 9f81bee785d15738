package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filehost/internal/flagx"
	"github.com/joho/godotenv"
)

// lookupEnv is a seam for os.LookupEnv.
var lookupEnv = os.LookupEnv

// loadDotEnv is a seam for godotenv.Load. Variables already present in the
// process environment are not overridden.
var loadDotEnv = godotenv.Load

// parseEnv overlays settings from environment variables. A dotenv file is
// loaded first: the one named by -env, or ".env" in the working directory if
// it exists.
//
// Recognised variables:
//
//	HTTP_ADDR, GRPC_ADDR, DATABASE_URL, SECRET_KEY, ACCESS_TOKEN_TTL (Go duration),
//	STORAGE_MODE, UPLOAD_FOLDER, S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY,
//	S3_BUCKET, S3_REGION, S3_USE_PATH_STYLE, ALLOWED_EXTENSIONS (comma list),
//	MAX_FILE_SIZE (bytes), ITEMS_PER_PAGE, CORS_ORIGINS (comma list), LOG_LEVEL
func parseEnv(c *Config, args []string) error {
	envFile := flagx.EnvFileFlag(args)
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := loadDotEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	str := func(name string, dst *string) {
		if v, ok := lookupEnv(name); ok && v != "" {
			*dst = v
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("DATABASE_URL", &c.DatabaseDSN)
	str("SECRET_KEY", &c.SecretKey)
	str("STORAGE_MODE", &c.StorageMode)
	str("UPLOAD_FOLDER", &c.UploadFolder)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookupEnv("ACCESS_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_TTL: %w", err)
		}
		c.AccessTokenValidityDuration = d
	}
	if v, ok := lookupEnv("S3_USE_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("S3_USE_PATH_STYLE: %w", err)
		}
		c.S3UsePathStyle = b
	}
	if v, ok := lookupEnv("ALLOWED_EXTENSIONS"); ok {
		c.AllowedExtensions = splitList(v)
	}
	if v, ok := lookupEnv("MAX_FILE_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_FILE_SIZE: %w", err)
		}
		c.MaxFileSize = n
	}
	if v, ok := lookupEnv("ITEMS_PER_PAGE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ITEMS_PER_PAGE: %w", err)
		}
		c.ItemsPerPage = n
	}
	if v, ok := lookupEnv("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}

	return nil
}
