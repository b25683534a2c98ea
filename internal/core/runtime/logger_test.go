package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCharmLoggerWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelInfo, &buf).WithFields(Field("server", "ws://chat.test/ws"))

	ctx := WithSessionID(context.Background(), "s-1")
	logger.Debug(ctx, "hidden")
	logger.Warn(ctx, "dropping inbound frame", Field("reason", "schema_violation"))
	logger.Error(ctx, "write failed", errors.New("broken pipe"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry written at info level: %q", out)
	}
	for _, want := range []string{"reason=schema_violation", "session_id=s-1", "server=ws://chat.test/ws", `error="broken pipe"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output, got %q", want, out)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		" WARN ":  LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
