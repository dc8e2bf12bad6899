// Package config loads runtime configuration for the client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend API
//	-t string   tenant identifier
//	-f string   path to the local SQLite database file
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "base_url": "https://api.example.com",
//	  "tenant_id": "acme",
//	  "database_file": "client.db",
//	  "request_timeout": "30s",
//	  "stale_time": "5m",
//	  "gc_time": "24h",
//	  "save_throttle": "1s",
//	  "mutation_max_age": "24h",
//	  "online_check_interval": "3s",
//	  "offline_debounce": "2s"
//	}
//
// Primary API
//
//   - type Config                     — runtime settings for the client
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
