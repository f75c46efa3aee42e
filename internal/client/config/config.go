// Package config handles configuration for the sync agent, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the Scribe sync agent.
//
// Fields:
//   - ServerURL: base URL of the sync backend (http or https).
//   - AuthToken: bearer token presented on every request.
//   - DeviceID: stable identifier of this device; generated on first run
//     when left empty.
//   - DatabasePath: path of the local SQLite store.
//   - OnlineCheckInterval: how often the agent probes server reachability.
//   - DebounceWindow: quiet period after a local edit before pushing.
//   - SyncInterval: periodic full-cycle timer while online.
//   - RetryCeiling: per-entry push attempt budget.
//   - BackoffBase / BackoffCap: bounds of the exponential retry schedule.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL           string
	AuthToken           string
	DeviceID            string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	DebounceWindow      time.Duration
	SyncInterval        time.Duration
	RetryCeiling        int
	BackoffBase         time.Duration
	BackoffCap          time.Duration
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "scribe.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.DebounceWindow = 2 * time.Second
	c.SyncInterval = 30 * time.Second
	c.RetryCeiling = 3
	c.BackoffBase = 1 * time.Second
	c.BackoffCap = 15 * time.Second
	c.RequestTimeout = 10 * time.Second
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
