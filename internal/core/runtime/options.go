package runtime

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RuntimeOptions configures a chat session runtime. Everything except
// ServerURL has a usable default so tests can swap in fakes selectively.
type RuntimeOptions struct {
	// ServerURL is the ws:// or wss:// endpoint of the chat server.
	ServerURL string

	// Dialer opens connections. Defaults to the WebSocket dialer.
	Dialer Dialer

	// InputBuffer controls the capacity of the input channel. Messages
	// submitted while the buffer is full are dropped rather than blocking
	// the caller.
	InputBuffer int
	// OutputBuffer controls the capacity of the output channel.
	OutputBuffer int

	// EmitTimeout guards against blocking forever when no consumer drains the
	// output channel. Zero means wait indefinitely.
	EmitTimeout time.Duration

	// Reconnect controls the backoff between connection attempts.
	Reconnect *RetryConfig

	Logger  Logger
	Metrics Metrics
}

func (o *RuntimeOptions) setDefaults() {
	o.ServerURL = strings.TrimSpace(o.ServerURL)
	if o.Dialer == nil {
		o.Dialer = DialWebSocket
	}
	if o.InputBuffer <= 0 {
		o.InputBuffer = 16
	}
	if o.OutputBuffer <= 0 {
		o.OutputBuffer = 64
	}
	if o.Reconnect == nil {
		o.Reconnect = DefaultRetryConfig()
	}
	if o.Logger == nil {
		o.Logger = &NoOpLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = &NoOpMetrics{}
	}
}

// validate performs lightweight validation of user supplied options.
func (o *RuntimeOptions) validate() error {
	if o.ServerURL == "" {
		return errors.New("server URL is required")
	}
	u, err := url.Parse(o.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server URL must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server URL has no host")
	}
	return nil
}
