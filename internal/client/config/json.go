package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/scribelab/scribe/internal/flagx"
	"github.com/scribelab/scribe/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "2s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerURL           string         `json:"server_url"`
	AuthToken           string         `json:"auth_token"`
	DeviceID            string         `json:"device_id"`
	DatabasePath        string         `json:"database_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DebounceWindow      timex.Duration `json:"debounce_window"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	RetryCeiling        int            `json:"retry_ceiling"`
	BackoffBase         timex.Duration `json:"backoff_base"`
	BackoffCap          timex.Duration `json:"backoff_cap"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Reads and unmarshals the JSON into JsonConfig, then copies known fields
// into the provided Config. Panics on read or unmarshal errors (caller
// should recover if desired).
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

	cfg.ServerURL = jc.ServerURL
	cfg.AuthToken = jc.AuthToken
	cfg.DeviceID = jc.DeviceID
	cfg.DatabasePath = jc.DatabasePath
	cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	cfg.DebounceWindow = time.Duration(jc.DebounceWindow.Duration)
	cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	cfg.RetryCeiling = jc.RetryCeiling
	cfg.BackoffBase = time.Duration(jc.BackoffBase.Duration)
	cfg.BackoffCap = time.Duration(jc.BackoffCap.Duration)
	cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
}
