package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/trainbook/internal/flagx"
	"github.com/dmitrijs2005/trainbook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals
// may be given as strings like "500ms" or as integer nanoseconds.
type JsonConfig struct {
	ServerAddr          string         `json:"server_addr"`
	Transport           string         `json:"transport"`
	CacheDSN            string         `json:"cache_dsn"`
	UpdateMaxAttempts   *int           `json:"update_max_attempts"`
	UpdateRetryInterval timex.Duration `json:"update_retry_interval"`
	LogLevel            string         `json:"log_level"`
}

// parseJson overlays cfg with values loaded from the JSON file named by -c
// or -config. Fields missing from the file are left alone. Read or
// unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		cfg.ServerAddr = jc.ServerAddr
	}
	if jc.Transport != "" {
		cfg.Transport = jc.Transport
	}
	if jc.CacheDSN != "" {
		cfg.CacheDSN = jc.CacheDSN
	}
	if jc.UpdateMaxAttempts != nil {
		cfg.UpdateMaxAttempts = *jc.UpdateMaxAttempts
	}
	if jc.UpdateRetryInterval.Duration > 0 {
		cfg.UpdateRetryInterval = jc.UpdateRetryInterval.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
