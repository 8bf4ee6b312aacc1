package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/trainbook/internal/flagx"
	"github.com/dmitrijs2005/trainbook/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations
// use timex.Duration so both "5m" and integer nanoseconds are accepted.
type JsonConfig struct {
	ListenAddr         string         `json:"listen_addr"`
	WSAddr             string         `json:"ws_addr"`
	AdminAddr          string         `json:"admin_addr"`
	UsersFile          string         `json:"users_file"`
	DatabaseDSN        string         `json:"database_dsn"`
	TrainsFile         string         `json:"trains_file"`
	WatchTrains        *bool          `json:"watch_trains"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Key              string         `json:"s3_key"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	SecretKey          string         `json:"secret_key"`
	AdminTokenValidity timex.Duration `json:"admin_token_validity"`
	LogLevel           string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c or -config onto
// config. Fields absent from the file keep their current values. An
// unreadable file or invalid JSON panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFile()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.WSAddr, c.WSAddr)
	setString(&config.AdminAddr, c.AdminAddr)
	setString(&config.UsersFile, c.UsersFile)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.TrainsFile, c.TrainsFile)
	if c.WatchTrains != nil {
		config.WatchTrains = *c.WatchTrains
	}
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Key, c.S3Key)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.SecretKey, c.SecretKey)
	if c.AdminTokenValidity.Duration > 0 {
		config.AdminTokenValidity = c.AdminTokenValidity.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
