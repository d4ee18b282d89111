// Package config handles configuration for the AirCater client: defaults,
// optional JSON file, environment variables and command-line flags, each
// layer overriding the previous one.
package config

import "time"

// Config holds runtime settings for the AirCater CLI.
//
// Fields:
//   - ServerEndpointAddr: base URL of the AirCater REST API.
//   - DatabaseDSN: path of the local SQLite database file.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SyncInterval: how often the sync engine drains on its own, on top of
//     connectivity-regained triggers.
//   - BaseRetryDelay: base of the exponential retry backoff.
//   - AccessToken / RefreshToken: API credentials, usually supplied via env.
type Config struct {
	ServerEndpointAddr  string
	DatabaseDSN         string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	BaseRetryDelay      time.Duration
	AccessToken         string
	RefreshToken        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabaseDSN = "aircater.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 30 * time.Second
	c.BaseRetryDelay = 2 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment variables and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
