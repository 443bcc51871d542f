package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/circlekeep/circlekeep/internal/flagx"
	"github.com/circlekeep/circlekeep/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. Duration fields use timex.Duration so both "15m"
// strings and integer nanoseconds parse. After unmarshalling, values are
// copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN                  string         `json:"database_dsn"`
	OpsAddr                      string         `json:"ops_addr"`
	AdminAccountName             string         `json:"admin_account_name"`
	SessionSecretKey             string         `json:"session_secret_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson overlays configuration from the JSON file named by the -c or
// -config flags, when set. Unreadable or invalid files panic: the server
// must not start on a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlag()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.OpsAddr != "" {
		config.OpsAddr = c.OpsAddr
	}
	if c.AdminAccountName != "" {
		config.AdminAccountName = c.AdminAccountName
	}
	if c.SessionSecretKey != "" {
		config.SessionSecretKey = c.SessionSecretKey
	}
	if c.SessionTokenValidityDuration.Duration != 0 {
		config.SessionTokenValidityDuration = time.Duration(c.SessionTokenValidityDuration.Duration)
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
