package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/securingai/internal/flagx"
	"github.com/dmitrijs2005/securingai/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Interval fields
// use timex.Duration, so both "1m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP        string         `json:"endpoint_addr_http"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	PasswordScheme          string         `json:"password_scheme"`
	PasswordRounds          int            `json:"password_rounds"`
	S3RootUser              string         `json:"s3_root_user"`
	S3RootPassword          string         `json:"s3_root_password"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
	UploadTimeout           timex.Duration `json:"upload_timeout"`
	LogLevel                string         `json:"log_level"`
	Environment             string         `json:"environment"`
}

// parseJson overlays values from the file named by -c or -config onto
// config. Keys missing from the file keep their current value. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.SessionValidityDuration.Duration > 0 {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	setString(&config.PasswordScheme, c.PasswordScheme)
	if c.PasswordRounds > 0 {
		config.PasswordRounds = c.PasswordRounds
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.UploadTimeout.Duration > 0 {
		config.UploadTimeout = c.UploadTimeout.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.Environment, c.Environment)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
