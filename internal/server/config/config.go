// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps users in memory.
//   - SecretKey: HMAC secret for signing session tokens. Do not use the default in prod.
//   - SessionValidityDuration: lifetime of a session token.
//   - PasswordScheme / PasswordRounds: default password hashing scheme and its work factor.
//     Zero rounds selects the scheme's own default.
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
//   - UploadTimeout: upper bound for a single upload.
//   - LogLevel: debug, info, warn or error.
//   - Environment: "production" switches gin to release mode.
type Config struct {
	EndpointAddrHTTP        string
	DatabaseDSN             string
	SecretKey               string
	SessionValidityDuration time.Duration
	PasswordScheme          string
	PasswordRounds          int
	S3RootUser              string
	S3RootPassword          string
	S3Bucket                string
	S3Region                string
	S3BaseEndpoint          string
	UploadTimeout           time.Duration
	LogLevel                string
	Environment             string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.SessionValidityDuration = 24 * time.Hour
	c.PasswordScheme = "pbkdf2_sha256"
	c.PasswordRounds = 0
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "workflow"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.UploadTimeout = 5 * time.Minute
	c.LogLevel = "info"
	c.Environment = "development"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
