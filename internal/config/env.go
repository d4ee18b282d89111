package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with environment variables, loading a .env file
// first when one exists in the working directory. Unset variables keep the
// current values.
//
// Recognized variables:
//
//	AIRCATER_ENDPOINT          base URL of the REST API
//	AIRCATER_DATABASE_DSN      local SQLite database path
//	AIRCATER_ONLINE_INTERVAL   reachability probe interval (Go duration)
//	AIRCATER_SYNC_INTERVAL     periodic drain interval (Go duration)
//	AIRCATER_RETRY_BASE_DELAY  retry backoff base (Go duration)
//	AIRCATER_ACCESS_TOKEN      API access token
//	AIRCATER_REFRESH_TOKEN     API refresh token
func parseEnv(cfg *Config) {
	// missing .env is the normal case
	_ = godotenv.Load()

	if v := os.Getenv("AIRCATER_ENDPOINT"); v != "" {
		cfg.ServerEndpointAddr = v
	}
	if v := os.Getenv("AIRCATER_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("AIRCATER_ONLINE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OnlineCheckInterval = d
		}
	}
	if v := os.Getenv("AIRCATER_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	if v := os.Getenv("AIRCATER_RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BaseRetryDelay = d
		}
	}
	if v := os.Getenv("AIRCATER_ACCESS_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("AIRCATER_REFRESH_TOKEN"); v != "" {
		cfg.RefreshToken = v
	}
}
