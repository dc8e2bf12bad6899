package config

import "time"

// Config holds runtime settings for the client.
//
// Fields:
//   - BaseURL: root URL of the backend HTTP API.
//   - TenantID: active tenant identifier, sent with every request.
//   - DatabaseFile: path of the local SQLite database.
//   - RequestTimeout: per-request deadline.
//   - StaleTime / GCTime: query cache freshness window and retention horizon.
//   - SaveThrottle: trailing-edge coalescing window for state persistence.
//   - MutationMaxAge: how long a queued mutation stays replayable.
//   - MaxRetries / MaxQueueSize: mutation retry budget and queue capacity.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - OfflineDebounce: how long connectivity must stay down before the
//     client flips offline.
type Config struct {
	BaseURL             string
	TenantID            string
	DatabaseFile        string
	RequestTimeout      time.Duration
	StaleTime           time.Duration
	GCTime              time.Duration
	SaveThrottle        time.Duration
	MutationMaxAge      time.Duration
	MaxRetries          int
	MaxQueueSize        int
	OnlineCheckInterval time.Duration
	OfflineDebounce     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "https://api.example.com"
	c.TenantID = "default"
	c.DatabaseFile = "client.db"
	c.RequestTimeout = 30 * time.Second
	c.StaleTime = 5 * time.Minute
	c.GCTime = 24 * time.Hour
	c.SaveThrottle = 1 * time.Second
	c.MutationMaxAge = 24 * time.Hour
	c.MaxRetries = 3
	c.MaxQueueSize = 100
	c.OnlineCheckInterval = 3 * time.Second
	c.OfflineDebounce = 2 * time.Second
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
