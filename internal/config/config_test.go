package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.Equal(t, "ws://localhost:5000/ws", cfg.ServerURL)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.LogFile)
	require.Equal(t, 1, cfg.ScrollThreshold)
	require.Equal(t, 500*time.Millisecond, cfg.ReconnectBackoff)
	require.Equal(t, 8*time.Second, cfg.ReconnectMaxBackoff)
	require.Equal(t, -1, cfg.ReconnectRetries)
	require.Equal(t, "0.0.0.0:2323", cfg.SSH.Address())
	require.Equal(t, ".data/host_ed25519", cfg.SSH.HostKeyPath)
	require.Equal(t, 10*time.Minute, cfg.SSH.IdleTimeout)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("ARCHITERM_SERVER_URL", "wss://mud.example.com/socket")
	t.Setenv("ARCHITERM_LOG_FILE", "/tmp/architerm.log")
	t.Setenv("ARCHITERM_LOG_LEVEL", "DEBUG")
	t.Setenv("ARCHITERM_SCROLL_THRESHOLD", "3")
	t.Setenv("ARCHITERM_RECONNECT_RETRIES", "5")
	t.Setenv("ARCHITERM_SSH_PORT", "2424")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, "wss://mud.example.com/socket", cfg.ServerURL)
	require.Equal(t, "/tmp/architerm.log", cfg.LogFile)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 3, cfg.ScrollThreshold)
	require.Equal(t, 5, cfg.ReconnectRetries)
	require.Equal(t, 2424, cfg.SSH.Port)
}

func TestLoadFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "ARCHITERM_SERVER_URL", value: "http://localhost:5000"},
		{key: "ARCHITERM_SERVER_URL", value: "   "},
		{key: "ARCHITERM_LOG_LEVEL", value: "loud"},
		{key: "ARCHITERM_SCROLL_THRESHOLD", value: "0"},
		{key: "ARCHITERM_SCROLL_THRESHOLD", value: "many"},
		{key: "ARCHITERM_RECONNECT_BACKOFF", value: "soon"},
		{key: "ARCHITERM_RECONNECT_MAX_BACKOFF", value: "100ms"},
		{key: "ARCHITERM_RECONNECT_RETRIES", value: "-2"},
		{key: "ARCHITERM_SSH_PORT", value: "70000"},
		{key: "ARCHITERM_SSH_HOST_KEY_PATH", value: "."},
		{key: "ARCHITERM_SSH_IDLE_TIMEOUT", value: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
		})
	}
}

func TestValidateLogLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", " warn ", "Error"} {
		require.NoError(t, ValidateLogLevel(name), name)
	}
	for _, name := range []string{"", "loud", "warning", "trace"} {
		require.Error(t, ValidateLogLevel(name), name)
	}
}
