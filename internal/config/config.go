// Package config loads viewer settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultServerURL           = "ws://localhost:5000/ws"
	defaultLogLevel            = "info"
	defaultScrollThreshold     = 1
	defaultReconnectBackoff    = 500 * time.Millisecond
	defaultReconnectMaxBackoff = 8 * time.Second
	defaultReconnectRetries    = -1
	defaultSSHHost             = "0.0.0.0"
	defaultSSHPort             = 2323
	defaultSSHHostKeyPath      = ".data/host_ed25519"
	defaultSSHIdleTimeout      = 10 * time.Minute
)

// Config captures startup settings.
type Config struct {
	ServerURL string
	LogFile   string
	LogLevel  string

	// ScrollThreshold is how many rows from the end of the transcript still
	// count as scrolled to the bottom.
	ScrollThreshold int

	ReconnectBackoff    time.Duration
	ReconnectMaxBackoff time.Duration
	// ReconnectRetries bounds consecutive failed attempts; -1 retries forever.
	ReconnectRetries int

	SSH SSHConfig
}

// SSHConfig configures the SSH host mode.
type SSHConfig struct {
	Host        string
	Port        int
	HostKeyPath string
	IdleTimeout time.Duration
}

// Address is the listen address for the SSH server.
func (c SSHConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadFromEnv loads configuration from ARCHITERM_* environment variables.
func LoadFromEnv() (Config, error) {
	serverURL, err := readRequiredOrDefault("ARCHITERM_SERVER_URL", defaultServerURL)
	if err != nil {
		return Config{}, err
	}
	if err := ValidateServerURL(serverURL); err != nil {
		return Config{}, fmt.Errorf("ARCHITERM_SERVER_URL: %w", err)
	}

	logLevel, err := readRequiredOrDefault("ARCHITERM_LOG_LEVEL", defaultLogLevel)
	if err != nil {
		return Config{}, err
	}
	if err := ValidateLogLevel(logLevel); err != nil {
		return Config{}, fmt.Errorf("ARCHITERM_LOG_LEVEL: %w", err)
	}

	scrollThreshold, err := readInt("ARCHITERM_SCROLL_THRESHOLD", defaultScrollThreshold, 1, 1000)
	if err != nil {
		return Config{}, err
	}

	backoff, err := readDuration("ARCHITERM_RECONNECT_BACKOFF", defaultReconnectBackoff)
	if err != nil {
		return Config{}, err
	}
	maxBackoff, err := readDuration("ARCHITERM_RECONNECT_MAX_BACKOFF", defaultReconnectMaxBackoff)
	if err != nil {
		return Config{}, err
	}
	if maxBackoff < backoff {
		return Config{}, fmt.Errorf("ARCHITERM_RECONNECT_MAX_BACKOFF must not be smaller than ARCHITERM_RECONNECT_BACKOFF")
	}
	retries, err := readInt("ARCHITERM_RECONNECT_RETRIES", defaultReconnectRetries, -1, 10000)
	if err != nil {
		return Config{}, err
	}

	sshHost, err := readRequiredOrDefault("ARCHITERM_SSH_HOST", defaultSSHHost)
	if err != nil {
		return Config{}, err
	}
	sshPort, err := readInt("ARCHITERM_SSH_PORT", defaultSSHPort, 1, 65535)
	if err != nil {
		return Config{}, err
	}
	hostKeyPath, err := readRequiredOrDefault("ARCHITERM_SSH_HOST_KEY_PATH", defaultSSHHostKeyPath)
	if err != nil {
		return Config{}, err
	}
	cleanHostKeyPath := filepath.Clean(hostKeyPath)
	if cleanHostKeyPath == "." {
		return Config{}, fmt.Errorf("ARCHITERM_SSH_HOST_KEY_PATH must not resolve to current directory")
	}
	idleTimeout, err := readDuration("ARCHITERM_SSH_IDLE_TIMEOUT", defaultSSHIdleTimeout)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ServerURL:           serverURL,
		LogFile:             os.Getenv("ARCHITERM_LOG_FILE"),
		LogLevel:            strings.ToLower(logLevel),
		ScrollThreshold:     scrollThreshold,
		ReconnectBackoff:    backoff,
		ReconnectMaxBackoff: maxBackoff,
		ReconnectRetries:    retries,
		SSH: SSHConfig{
			Host:        sshHost,
			Port:        sshPort,
			HostKeyPath: cleanHostKeyPath,
			IdleTimeout: idleTimeout,
		},
	}, nil
}

// ValidateLogLevel accepts debug, info, warn and error in any case.
func ValidateLogLevel(name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of debug, info, warn, error, got %q", name)
	}
}

// ValidateServerURL checks that raw is an absolute ws:// or wss:// URL.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

func readRequiredOrDefault(key, fallback string) (string, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}

	return raw, nil
}

func readInt(key string, fallback, min, max int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if parsed < min || parsed > max {
		return 0, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}

	return parsed, nil
}

func readDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}
