// Package config loads runtime configuration for the trainbook CLI client.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional JSON file (-c or -config) and command-line flags.
package config

import "time"

// Transport names accepted by Config.Transport.
const (
	TransportTCP = "tcp"
	TransportWS  = "ws"
)

// Config holds runtime settings for the trainbook CLI.
//
// UpdateMaxAttempts bounds the profile-update retry; 0 retries until the
// server acknowledges or the context is cancelled.
type Config struct {
	ServerAddr          string
	Transport           string
	CacheDSN            string
	UpdateMaxAttempts   int
	UpdateRetryInterval time.Duration
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1:8800"
	c.Transport = TransportTCP
	c.CacheDSN = "trains_cache.db"
	c.UpdateMaxAttempts = 0
	c.UpdateRetryInterval = 500 * time.Millisecond
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
