package config

import (
	"flag"
	"os"
	"time"

	"github.com/dropgate/dropgate/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 access key id
//	-p string   S3 secret access key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-y bool     use path-style S3 addressing
//	-t int      presigned URL TTL, seconds
//	-o int      per-call store timeout, seconds (0 disables)
//	-i int      cleanup sweep interval, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e", "-y", "-t", "-o", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.S3AccessKeyID, "u", config.S3AccessKeyID, "S3 access key id")
	fs.StringVar(&config.S3SecretAccessKey, "p", config.S3SecretAccessKey, "S3 secret access key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.BoolVar(&config.S3UsePathStyle, "y", config.S3UsePathStyle, "use path-style S3 addressing")

	presignTTL := fs.Int("t", int(config.PresignTTL.Seconds()), "presigned URL TTL (in seconds)")
	storeTimeout := fs.Int("o", int(config.StoreCallTimeout.Seconds()), "store call timeout (in seconds)")
	cleanupInterval := fs.Int("i", int(config.CleanupInterval.Minutes()), "cleanup interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PresignTTL = time.Duration(*presignTTL) * time.Second
	config.StoreCallTimeout = time.Duration(*storeTimeout) * time.Second
	config.CleanupInterval = time.Duration(*cleanupInterval) * time.Minute
}
