package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/duomatch/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
//	-a string      gRPC bind address (e.g. ":50051")
//	-health string health probe bind address
//	-store string  memory, sqlite, postgres or s3
//	-sqlite string SQLite database file
//	-d string      PostgreSQL DSN
//	-s string      JWT HMAC secret key
//	-t int         access token validity, minutes
//	-u string      S3 user
//	-p string      S3 password
//	-b string      S3 bucket
//	-g string      S3 region
//	-e string      S3 base endpoint
//	-log string    log level
//
// Unknown arguments are dropped by flagx.FilterArgs first. Bad values panic.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-health", "-store", "-sqlite", "-d", "-s", "-t", "-u", "-p", "-b", "-g", "-e", "-log",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.EndpointAddrHealth, "health", config.EndpointAddrHealth, "address and port for health probes")
	fs.StringVar(&config.StoreBackend, "store", config.StoreBackend, "document store backend")
	fs.StringVar(&config.SQLitePath, "sqlite", config.SQLitePath, "SQLite database file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		}
	})
}
