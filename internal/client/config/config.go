// Package config handles configuration for the CLI client, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the dropgate CLI.
//
// Fields:
//   - ServerEndpointAddr: base URL of the transfer endpoint.
//   - Token: bearer token attached to every transfer request.
//   - RequestTimeout: upper bound on a single HTTP round trip.
//
// Units: RequestTimeout is a time.Duration (e.g., 60*time.Second).
type Config struct {
	ServerEndpointAddr string
	Token              string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.Token = ""
	c.RequestTimeout = 60 * time.Second
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
