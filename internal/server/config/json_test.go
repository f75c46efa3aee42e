package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr":           "www.example:9000",
		"database_dsn":            "postgres://example/scribe",
		"secret_key":              "my_secret_key",
		"token_validity_duration": "30m",
		"heartbeat_interval":      "45s",
		"stale_after":             "2m",
		"log_file":                "scribe-server.log",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddr)
		assert.Equal(t, "postgres://example/scribe", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 30*time.Minute, cfg.TokenValidityDuration)
		assert.Equal(t, 45*time.Second, cfg.HeartbeatInterval)
		assert.Equal(t, 2*time.Minute, cfg.StaleAfter)
		assert.Equal(t, "scribe-server.log", cfg.LogFile)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddr:          "defaults:1234",
			DatabaseDSN:           "postgres://defaults/scribe",
			SecretKey:             "key",
			TokenValidityDuration: 2 * time.Minute,
			HeartbeatInterval:     10 * time.Second,
			StaleAfter:            15 * time.Second,
			LogFile:               "default.log",
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddr)
		assert.Equal(t, "postgres://defaults/scribe", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.TokenValidityDuration)
		assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
		assert.Equal(t, 15*time.Second, cfg.StaleAfter)
		assert.Equal(t, "default.log", cfg.LogFile)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
