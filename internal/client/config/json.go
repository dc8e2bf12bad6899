package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/datngoHD/white-label-app/internal/flagx"
	"github.com/datngoHD/white-label-app/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	BaseURL             string         `json:"base_url"`
	TenantID            string         `json:"tenant_id"`
	DatabaseFile        string         `json:"database_file"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	StaleTime           timex.Duration `json:"stale_time"`
	GCTime              timex.Duration `json:"gc_time"`
	SaveThrottle        timex.Duration `json:"save_throttle"`
	MutationMaxAge      timex.Duration `json:"mutation_max_age"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	OfflineDebounce     timex.Duration `json:"offline_debounce"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies known non-zero fields into the provided Config.
//   - Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if jc.BaseURL != "" {
		cfg.BaseURL = jc.BaseURL
	}
	if jc.TenantID != "" {
		cfg.TenantID = jc.TenantID
	}
	if jc.DatabaseFile != "" {
		cfg.DatabaseFile = jc.DatabaseFile
	}
	overlayDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	overlayDuration(&cfg.StaleTime, jc.StaleTime)
	overlayDuration(&cfg.GCTime, jc.GCTime)
	overlayDuration(&cfg.SaveThrottle, jc.SaveThrottle)
	overlayDuration(&cfg.MutationMaxAge, jc.MutationMaxAge)
	overlayDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	overlayDuration(&cfg.OfflineDebounce, jc.OfflineDebounce)
}

func overlayDuration(dst *time.Duration, src timex.Duration) {
	if src.Duration > 0 {
		*dst = time.Duration(src.Duration)
	}
}
