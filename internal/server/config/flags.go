package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/filehost/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":5000")
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-m string   storage mode: local | remote
//	-f string   local upload folder
//	-e string   S3 endpoint (e.g., "http://127.0.0.1:9000")
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-r string   S3 region
//	-x string   allowed extensions, comma separated ("" accepts any)
//	-l int      max upload size, bytes
//
// Only recognised flags are taken from args (via flagx.FilterArgs), so other
// components' flags do not collide. The token validity is given in minutes
// and only replaces the current value when -t is present.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-t", "-m", "-f", "-e", "-u", "-p", "-b", "-r", "-x", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run HTTP server")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.StorageMode, "m", config.StorageMode, "storage mode (local|remote)")
	fs.StringVar(&config.UploadFolder, "f", config.UploadFolder, "local upload folder")
	fs.StringVar(&config.S3Endpoint, "e", config.S3Endpoint, "S3 endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")

	fs.Func("x", "allowed extensions, comma separated", func(s string) error {
		config.AllowedExtensions = splitList(s)
		return nil
	})

	fs.Int64Var(&config.MaxFileSize, "l", config.MaxFileSize, "max upload size in bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		}
	})
	return nil
}
