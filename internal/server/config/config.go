// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the trainbook server.
//
// Fields:
//   - ListenAddr: TCP address of the train protocol listener.
//   - WSAddr: HTTP address of the WebSocket endpoint; empty disables it.
//   - AdminAddr: bind address of the admin gRPC endpoint; empty disables it.
//   - UsersFile: JSON user store, used when DatabaseDSN is empty.
//   - DatabaseDSN: PostgreSQL DSN (pgx) for the user store.
//   - TrainsFile / WatchTrains: local train list and whether to reload it on change.
//   - S3Bucket / S3Key / S3Region / S3BaseEndpoint / S3RootUser / S3RootPassword:
//     object storage location of the train list, used instead of TrainsFile when
//     S3Bucket is set.
//   - SecretKey: HMAC secret for admin JWTs (HS256). Do not use the default in prod.
//   - AdminTokenValidity: lifetime of tokens minted by the admin tool.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ListenAddr         string
	WSAddr             string
	AdminAddr          string
	UsersFile          string
	DatabaseDSN        string
	TrainsFile         string
	WatchTrains        bool
	S3Bucket           string
	S3Key              string
	S3Region           string
	S3BaseEndpoint     string
	S3RootUser         string
	S3RootPassword     string
	SecretKey          string
	AdminTokenValidity time.Duration
	LogLevel           string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8800"
	c.AdminAddr = ":50051"
	c.UsersFile = "users.json"
	c.TrainsFile = "trains.json"
	c.S3Key = "trains.json"
	c.S3Region = "us-east-1"
	c.SecretKey = "secretKey"
	c.AdminTokenValidity = 5 * time.Minute
	c.LogLevel = "info"
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
