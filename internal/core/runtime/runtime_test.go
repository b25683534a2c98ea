package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/architerm/internal/core/transcript"
)

type fakeConn struct {
	frames    chan []byte
	writes    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{
		frames: make(chan []byte, len(frames)+1),
		writes: make(chan []byte, 8),
		done:   make(chan struct{}),
	}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case frame, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-c.done:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(frame []byte) error {
	select {
	case <-c.done:
		return net.ErrClosed
	case c.writes <- frame:
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func dialerFor(conns ...*fakeConn) Dialer {
	var mu sync.Mutex
	next := 0
	return func(ctx context.Context, _ string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(conns) || conns[next] == nil {
			next++
			return nil, errors.New("connection refused")
		}
		c := conns[next]
		next++
		return c, nil
	}
}

func newTestRuntime(t *testing.T, dialer Dialer, metrics Metrics) *Runtime {
	t.Helper()
	rt, err := NewRuntime(RuntimeOptions{
		ServerURL: "ws://chat.test/ws",
		Dialer:    dialer,
		Metrics:   metrics,
		Reconnect: &RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2},
	})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	return rt
}

func waitFor(t *testing.T, outputs <-chan RuntimeEvent, typ EventType) RuntimeEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-outputs:
			if !ok {
				t.Fatalf("outputs closed while waiting for %s", typ)
			}
			if evt.Type == typ {
				return evt
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestRuntimeDeliversOnlyValidMessages(t *testing.T) {
	t.Parallel()

	conn := newFakeConn(
		`{"event":"message","data":{"text":"  The Hall  ","display":"underline","section":true}}`,
		`not json`,
		`{"event":"message","data":{"text":"no display"}}`,
		`{"event":"message","data":{"text":"x","display":"marquee"}}`,
		`{"event":"connect","data":{}}`,
		`{"event":"message","data":{"text":" /\\ ","display":"fit"}}`,
	)
	metrics := NewInMemoryMetrics()
	rt := newTestRuntime(t, dialerFor(conn), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	first := waitFor(t, rt.Outputs(), EventTypeMessage)
	want := transcript.ServerMessage{Text: "  The Hall  ", Display: transcript.DisplayUnderline, Section: true}
	if first.Chat != want {
		t.Fatalf("first message = %+v, want %+v", first.Chat, want)
	}

	second := waitFor(t, rt.Outputs(), EventTypeMessage)
	if second.Chat.Text != " /\\ " || second.Chat.Display != transcript.DisplayFit || second.Chat.Section {
		t.Fatalf("unexpected second message: %+v", second.Chat)
	}

	snapshot := metrics.GetSnapshot()
	if snapshot.Dropped[dropMalformedEnvelope] != 1 || snapshot.Dropped[dropSchemaViolation] != 2 {
		t.Fatalf("unexpected drop counts: %+v", snapshot.Dropped)
	}
	if snapshot.Inbound["underline"] != 1 || snapshot.Inbound["fit"] != 1 {
		t.Fatalf("unexpected inbound counts: %+v", snapshot.Inbound)
	}
}

func TestSubmitMessageSendsEnvelope(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	metrics := NewInMemoryMetrics()
	rt := newTestRuntime(t, dialerFor(conn), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	waitFor(t, rt.Outputs(), EventTypeConnected)
	rt.SubmitMessage("look north")

	select {
	case frame := <-conn.writes:
		var env struct {
			Event string `json:"event"`
			Data  string `json:"data"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("outbound frame is not JSON: %v", err)
		}
		if env.Event != "message" || env.Data != "look north" {
			t.Fatalf("unexpected outbound frame: %s", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message was not written")
	}
}

func TestSubmitMessageWithoutConnectionDrops(t *testing.T) {
	t.Parallel()

	metrics := NewInMemoryMetrics()
	rt := newTestRuntime(t, dialerFor(), metrics)

	done := make(chan struct{})
	go func() {
		rt.SubmitMessage("hello?")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("SubmitMessage blocked without a connection")
	}

	if got := metrics.GetSnapshot().Outbound[OutboundDropped]; got != 1 {
		t.Fatalf("expected one dropped message, got %d", got)
	}
}

func TestTrySubmitRefusesWithoutRecordingDrop(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	metrics := NewInMemoryMetrics()
	rt := newTestRuntime(t, dialerFor(conn), metrics)

	if rt.TrySubmit("too early") {
		t.Fatalf("TrySubmit accepted a message before connecting")
	}
	if got := metrics.GetSnapshot().Outbound[OutboundDropped]; got != 0 {
		t.Fatalf("refused message was counted as dropped: %d", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	waitFor(t, rt.Outputs(), EventTypeConnected)
	if !rt.TrySubmit("look") {
		t.Fatalf("TrySubmit refused a message while connected")
	}
	select {
	case frame := <-conn.writes:
		if string(frame) != `{"event":"message","data":"look"}` {
			t.Fatalf("unexpected outbound frame: %s", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message was not written")
	}
}

func TestRuntimeReconnectsAfterFailure(t *testing.T) {
	t.Parallel()

	first := newFakeConn(`{"event":"message","data":{"text":"one","display":"wrap"}}`)
	second := newFakeConn(`{"event":"message","data":{"text":"two","display":"wrap"}}`)
	metrics := NewInMemoryMetrics()
	rt := newTestRuntime(t, dialerFor(nil, first, second), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	waitFor(t, rt.Outputs(), EventTypeDisconnected)
	if got := waitFor(t, rt.Outputs(), EventTypeMessage); got.Chat.Text != "one" {
		t.Fatalf("expected message from first connection, got %q", got.Chat.Text)
	}

	close(first.frames)
	waitFor(t, rt.Outputs(), EventTypeDisconnected)
	if got := waitFor(t, rt.Outputs(), EventTypeMessage); got.Chat.Text != "two" {
		t.Fatalf("expected message after reconnect, got %q", got.Chat.Text)
	}

	if snapshot := metrics.GetSnapshot(); snapshot.Connects != 2 || snapshot.Disconnects != 2 {
		t.Fatalf("unexpected connection counters: %+v", snapshot)
	}
}

func TestRuntimeGivesUpAfterRetryBudget(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t, dialerFor(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Run(context.Background()) }()

	waitFor(t, rt.Outputs(), EventTypeError)
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected Run to fail once retries are exhausted")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}

	for range rt.Outputs() {
	}
}

func TestRuntimeClosesOutputsOnCancel(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	rt := newTestRuntime(t, dialerFor(conn), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- rt.Run(ctx) }()

	waitFor(t, rt.Outputs(), EventTypeConnected)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	for range rt.Outputs() {
	}
	select {
	case <-conn.done:
	default:
		t.Fatalf("connection was not closed on teardown")
	}
}

func TestShutdownStopsRun(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	rt := newTestRuntime(t, dialerFor(conn), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Run(context.Background()) }()

	waitFor(t, rt.Outputs(), EventTypeConnected)
	rt.Shutdown("done")

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after Shutdown")
	}
}
