package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// ParseLogLevel maps a case-insensitive level name to a LogLevel, defaulting
// to info for unknown names.
func ParseLogLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogField represents a key-value pair in structured logging.
type LogField struct {
	Key   string
	Value any
}

// Field creates a LogField from a key-value pair.
func Field(key string, value any) LogField {
	return LogField{Key: key, Value: value}
}

// Logger provides structured logging capabilities with context support.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...LogField)
	Info(ctx context.Context, msg string, fields ...LogField)
	Warn(ctx context.Context, msg string, fields ...LogField)
	Error(ctx context.Context, msg string, err error, fields ...LogField)
	WithFields(fields ...LogField) Logger
}

// NoOpLogger is a logger that discards all log entries.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(_ context.Context, _ string, _ ...LogField)          {}
func (n *NoOpLogger) Info(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Warn(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Error(_ context.Context, _ string, _ error, _ ...LogField) {}
func (n *NoOpLogger) WithFields(_ ...LogField) Logger                           { return n }

// CharmLogger writes logfmt entries through charmbracelet/log. The session
// id from the context, when present, is attached to every entry.
type CharmLogger struct {
	logger *charmlog.Logger
}

// NewLogger creates a logger with the given minimum level. A nil writer
// discards everything.
func NewLogger(minLevel LogLevel, writer io.Writer) *CharmLogger {
	if writer == nil {
		writer = io.Discard
	}
	level, err := charmlog.ParseLevel(strings.ToLower(string(minLevel)))
	if err != nil {
		level = charmlog.InfoLevel
	}
	return &CharmLogger{logger: charmlog.NewWithOptions(writer, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmlog.LogfmtFormatter,
	})}
}

func (c *CharmLogger) Debug(ctx context.Context, msg string, fields ...LogField) {
	c.logger.Debug(msg, keyvals(ctx, nil, fields)...)
}

func (c *CharmLogger) Info(ctx context.Context, msg string, fields ...LogField) {
	c.logger.Info(msg, keyvals(ctx, nil, fields)...)
}

func (c *CharmLogger) Warn(ctx context.Context, msg string, fields ...LogField) {
	c.logger.Warn(msg, keyvals(ctx, nil, fields)...)
}

func (c *CharmLogger) Error(ctx context.Context, msg string, err error, fields ...LogField) {
	c.logger.Error(msg, keyvals(ctx, err, fields)...)
}

func (c *CharmLogger) WithFields(fields ...LogField) Logger {
	return &CharmLogger{logger: c.logger.With(keyvals(context.Background(), nil, fields)...)}
}

// Printf logs a preformatted line at info level. It lets the logger back
// printf-style hooks such as SSH connection logging.
func (c *CharmLogger) Printf(format string, args ...any) {
	c.logger.Infof(format, args...)
}

func keyvals(ctx context.Context, err error, fields []LogField) []any {
	out := make([]any, 0, 2*len(fields)+4)
	if err != nil {
		out = append(out, "error", err.Error())
	}
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	if id := getSessionID(ctx); id != "" {
		out = append(out, "session_id", id)
	}
	return out
}

type sessionIDKey struct{}

// WithSessionID tags ctx so log entries can be correlated per session.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

func getSessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewSessionID returns an identifier for a new viewer session.
func NewSessionID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
