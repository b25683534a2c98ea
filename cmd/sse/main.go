// Package main runs a minimal HTTP SSE relay that streams a chat session,
// laid out as text, to clients that cannot speak WebSocket.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asynkron/architerm/internal/config"
	runtimepkg "github.com/asynkron/architerm/internal/core/runtime"
	"github.com/asynkron/architerm/internal/core/transcript"
)

const (
	defaultWidth = 80
	maxWidth     = 400
)

// sseWrite sends a single SSE event with the given name and data, followed by a flush.
func sseWrite(w http.ResponseWriter, flusher http.Flusher, event string, data string) error {
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	// data lines must not contain raw newlines; split and prefix each line.
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil { // end of event
		return err
	}
	flusher.Flush()
	return nil
}

// relay opens one upstream session per request.
type relay struct {
	cfg    config.Config
	logger runtimepkg.Logger
	dial   runtimepkg.Dialer
}

func (rl *relay) streamHandler(w http.ResponseWriter, r *http.Request) {
	// Basic SSE headers and anti-buffering flags
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering (nginx, etc.)
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	width := defaultWidth
	if raw := r.URL.Query().Get("width"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxWidth {
			http.Error(w, fmt.Sprintf("width must be between 1 and %d", maxWidth), http.StatusBadRequest)
			return
		}
		width = parsed
	}
	say := r.URL.Query()["say"]

	ctx, cancel := context.WithCancel(runtimepkg.WithSessionID(r.Context(), runtimepkg.NewSessionID()))
	defer cancel()

	agent, err := runtimepkg.NewRuntime(runtimepkg.RuntimeOptions{
		ServerURL: rl.cfg.ServerURL,
		Dialer:    rl.dial,
		Reconnect: &runtimepkg.RetryConfig{
			MaxRetries:     rl.cfg.ReconnectRetries,
			InitialBackoff: rl.cfg.ReconnectBackoff,
			MaxBackoff:     rl.cfg.ReconnectMaxBackoff,
			Multiplier:     2,
		},
		Logger: rl.logger,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create runtime: %v", err), http.StatusInternalServerError)
		return
	}

	go func() {
		if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
			rl.logger.Error(ctx, "runtime stopped", err)
		}
	}()

	// Initial comment to open the stream for some clients
	if _, err := fmt.Fprint(w, ": connected\n\n"); err == nil {
		flusher.Flush()
	}

	store := transcript.NewStore()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-agent.Outputs():
			if !ok {
				// Signal end-of-stream
				_ = sseWrite(w, flusher, "end", "connection closed")
				return
			}
			switch evt.Type {
			case runtimepkg.EventTypeMessage:
				msg := store.AppendServer(evt.Chat)
				event := msg.Display.String()
				if msg.SectionStart {
					event = "section_" + event
				}
				_ = sseWrite(w, flusher, event, strings.TrimSuffix(msg.Layout(width).Text, "\n"))
			case runtimepkg.EventTypeConnected:
				_ = sseWrite(w, flusher, "connected", evt.Message)
				// Queued lines go out once the session is up.
				for _, line := range say {
					agent.SubmitMessage(line)
				}
				say = nil
			case runtimepkg.EventTypeError:
				_ = sseWrite(w, flusher, "error", evt.Message)
			default:
				payload := evt.Message
				if len(evt.Metadata) > 0 {
					if b, err := json.Marshal(evt.Metadata); err == nil {
						payload = payload + "\nmeta=" + string(b)
					}
				}
				_ = sseWrite(w, flusher, string(evt.Type), payload)
			}
		}
	}
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	logger := runtimepkg.NewLogger(runtimepkg.LogLevelInfo, os.Stderr)
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error(context.Background(), "invalid configuration", err)
		os.Exit(1)
	}
	logger = runtimepkg.NewLogger(runtimepkg.ParseLogLevel(cfg.LogLevel), os.Stderr)

	rl := &relay{cfg: cfg, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", rl.streamHandler)

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info(context.Background(), "SSE relay listening",
		runtimepkg.Field("addr", *addr),
		runtimepkg.Field("upstream", cfg.ServerURL),
		runtimepkg.Field("usage", "GET /stream?width=80&say=look"))
	if err := srv.ListenAndServe(); err != nil {
		logger.Error(context.Background(), "http server stopped", err)
		os.Exit(1)
	}
}
