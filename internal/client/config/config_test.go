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

func withArgs(t *testing.T, args []string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{orig[0]}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerEndpointAddr)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
}

func TestParseFlags(t *testing.T) {
	withArgs(t, []string{"-a", "https://share.example.com", "-k", "tok123", "-r", "15"})

	cfg := LoadConfig()

	assert.Equal(t, "https://share.example.com", cfg.ServerEndpointAddr)
	assert.Equal(t, "tok123", cfg.Token)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestParseJson(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	body, err := json.Marshal(map[string]any{
		"server_endpoint_addr": "https://json.example.com",
		"token":                "jsontok",
		"request_timeout":      "90s",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, body, 0o600))

	withArgs(t, []string{"-c", file})

	cfg := LoadConfig()

	assert.Equal(t, "https://json.example.com", cfg.ServerEndpointAddr)
	assert.Equal(t, "jsontok", cfg.Token)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
}

func TestFlagsOverrideJson(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	body, err := json.Marshal(map[string]any{
		"server_endpoint_addr": "https://json.example.com",
		"token":                "jsontok",
		"request_timeout":      "90s",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, body, 0o600))

	withArgs(t, []string{"-c", file, "-a", "https://flag.example.com"})

	cfg := LoadConfig()

	assert.Equal(t, "https://flag.example.com", cfg.ServerEndpointAddr)
	assert.Equal(t, "jsontok", cfg.Token)
}
