// Package config handles configuration for the client CLI,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the soundcircle client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the backend HTTP API.
//   - LocalStorePath: sqlite file caching the session between runs.
//   - AuthSettleTimeout: how long login waits for the session to fully settle
//     (identity validated and profile loaded).
type Config struct {
	ServerEndpointAddr string
	LocalStorePath     string
	AuthSettleTimeout  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.LocalStorePath = "soundcircle.db"
	c.AuthSettleTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
