package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/securingai/internal/flagx"
)

var serverFlags = []string{"-a", "-d", "-s", "-t", "-h", "-n", "-u", "-p", "-b", "-g", "-e", "-o", "-l", "-m"}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN, empty for the in-memory store
//	-s string   session signing secret
//	-t int      session validity, minutes
//	-h string   default password scheme (pbkdf2_sha256, bcrypt, argon2id)
//	-n int      password rounds for the default scheme, 0 for its default
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o int      upload timeout, seconds
//	-l string   log level
//	-m string   environment (development, production)
//
// Duration flags are integers and are converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session_validity_duration (in minutes)")

	fs.StringVar(&config.PasswordScheme, "h", config.PasswordScheme, "default password scheme")
	fs.IntVar(&config.PasswordRounds, "n", config.PasswordRounds, "password rounds")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	uploadTimeout := fs.Int("o", int(config.UploadTimeout.Seconds()), "upload_timeout (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.Environment, "m", config.Environment, "environment")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
	config.UploadTimeout = time.Duration(*uploadTimeout) * time.Second
}
