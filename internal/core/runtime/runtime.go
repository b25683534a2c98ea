package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// errShutdown ends Run without an error when Shutdown was requested.
var errShutdown = errors.New("runtime shutdown requested")

// Runtime owns one logical connection to the chat server for the lifetime of
// a viewer session. It exposes two channels: Inputs accepts outbound
// requests, Outputs delivers connection status and validated inbound
// messages in arrival order. The transcript itself lives with the host, so
// reconnecting never replays or rebuilds it.
type Runtime struct {
	options RuntimeOptions
	logger  Logger
	metrics Metrics

	inputs  chan InputEvent
	outputs chan RuntimeEvent

	closeOnce sync.Once
	closed    chan struct{}

	connMu    sync.RWMutex
	connected bool
}

// NewRuntime configures a new runtime with the provided options.
func NewRuntime(options RuntimeOptions) (*Runtime, error) {
	options.setDefaults()
	if err := options.validate(); err != nil {
		return nil, err
	}

	return &Runtime{
		options: options,
		logger:  options.Logger.WithFields(Field("server", options.ServerURL)),
		metrics: options.Metrics,
		inputs:  make(chan InputEvent, options.InputBuffer),
		outputs: make(chan RuntimeEvent, options.OutputBuffer),
		closed:  make(chan struct{}),
	}, nil
}

// Inputs exposes the inbound queue so hosts can push requests directly.
func (r *Runtime) Inputs() chan<- InputEvent {
	return r.inputs
}

// Outputs exposes the outbound queue. It is closed when Run returns.
func (r *Runtime) Outputs() <-chan RuntimeEvent {
	return r.outputs
}

// Metrics returns the collector the runtime reports to.
func (r *Runtime) Metrics() Metrics {
	return r.metrics
}

// Connected reports whether a connection is currently established.
func (r *Runtime) Connected() bool {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	return r.connected
}

// SubmitMessage queues text for the server. It never blocks: when there is
// no connection, or the queue is full, the message is dropped and counted.
func (r *Runtime) SubmitMessage(text string) {
	if !r.Connected() {
		r.dropOutbound(context.Background(), "disconnected")
		return
	}
	select {
	case <-r.closed:
		r.dropOutbound(context.Background(), "closed")
	case r.inputs <- InputEvent{Type: InputTypeMessage, Text: text}:
	default:
		r.dropOutbound(context.Background(), "queue_full")
	}
}

// TrySubmit queues text like SubmitMessage but reports whether it was
// accepted instead of dropping it, so a caller can hold the line and retry.
func (r *Runtime) TrySubmit(text string) bool {
	if !r.Connected() {
		return false
	}
	select {
	case <-r.closed:
		return false
	case r.inputs <- InputEvent{Type: InputTypeMessage, Text: text}:
		return true
	default:
		return false
	}
}

// Shutdown requests a graceful shutdown of the runtime loop.
func (r *Runtime) Shutdown(reason string) {
	select {
	case <-r.closed:
		return
	default:
	}

	select {
	case r.inputs <- InputEvent{Type: InputTypeShutdown, Reason: reason}:
	case <-r.closed:
	}
}

// Run connects to the server and keeps the session alive until ctx is
// cancelled, Shutdown is called, or the reconnect budget is exhausted.
// Outputs is closed before Run returns.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.close()

	attempt := 0
	for {
		r.emit(ctx, RuntimeEvent{
			Type:    EventTypeStatus,
			Message: fmt.Sprintf("Connecting to %s…", r.options.ServerURL),
			Level:   StatusLevelInfo,
		})

		conn, err := r.options.Dialer(ctx, r.options.ServerURL)
		if err == nil {
			attempt = 0
			err = r.serve(ctx, conn)
			if errors.Is(err, errShutdown) {
				r.logger.Info(ctx, "runtime shut down")
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		r.metrics.RecordDisconnect()
		r.logger.Warn(ctx, "connection lost", Field("attempt", attempt), Field("error", err))

		if r.options.Reconnect.exhausted(attempt) {
			r.emit(ctx, RuntimeEvent{
				Type:    EventTypeError,
				Message: fmt.Sprintf("Giving up after %d failed attempts: %v", attempt, err),
				Level:   StatusLevelError,
			})
			return fmt.Errorf("reconnect exhausted after %d attempts: %w", attempt, err)
		}

		wait := r.options.Reconnect.backoff(attempt)
		r.emit(ctx, RuntimeEvent{
			Type:    EventTypeDisconnected,
			Message: fmt.Sprintf("Disconnected: %v. Retrying in %s.", err, wait),
			Level:   StatusLevelWarn,
			Metadata: map[string]any{
				"attempt": attempt,
				"backoff": wait,
			},
		})
		if err := r.waitReconnect(ctx, wait); err != nil {
			if errors.Is(err, errShutdown) {
				return nil
			}
			return err
		}
	}
}

// serve pumps one connection until it fails, ctx ends, or shutdown is
// requested. The read goroutine is always joined before serve returns so no
// event is emitted after Outputs closes.
func (r *Runtime) serve(ctx context.Context, conn Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	readErr := make(chan error, 1)
	var wg sync.WaitGroup

	defer func() {
		r.setConnected(false)
		cancel()
		if err := conn.Close(); err != nil {
			r.logger.Debug(ctx, "close connection", Field("error", err))
		}
		wg.Wait()
	}()

	r.setConnected(true)
	r.metrics.RecordConnect()
	r.logger.Info(ctx, "connected")
	r.emit(ctx, RuntimeEvent{
		Type:    EventTypeConnected,
		Message: fmt.Sprintf("Connected to %s", r.options.ServerURL),
		Level:   StatusLevelInfo,
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		readErr <- r.readLoop(connCtx, conn)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case evt, ok := <-r.inputs:
			if !ok || evt.Type == InputTypeShutdown {
				return errShutdown
			}
			if err := r.send(ctx, conn, evt.Text); err != nil {
				return err
			}
		}
	}
}

func (r *Runtime) readLoop(ctx context.Context, conn Conn) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		msg, reason, err := decodeFrame(frame)
		if err != nil {
			if errors.Is(err, errIgnoredEvent) {
				r.logger.Debug(ctx, "ignoring event", Field("detail", err.Error()))
				continue
			}
			r.metrics.RecordDropped(reason)
			r.logger.Warn(ctx, "dropping inbound frame", Field("reason", reason), Field("error", err.Error()))
			continue
		}

		r.metrics.RecordInbound(msg.Display)
		r.emit(ctx, RuntimeEvent{Type: EventTypeMessage, Chat: msg})
	}
}

func (r *Runtime) send(ctx context.Context, conn Conn, text string) error {
	frame, err := encodeMessage(text)
	if err != nil {
		r.metrics.RecordOutbound(OutboundFailed)
		r.logger.Error(ctx, "encode outbound message", err)
		return nil
	}
	if err := conn.WriteMessage(frame); err != nil {
		r.metrics.RecordOutbound(OutboundFailed)
		return fmt.Errorf("write: %w", err)
	}
	r.metrics.RecordOutbound(OutboundSent)
	return nil
}

// waitReconnect sleeps for d while discarding messages submitted in the
// meantime; there is no connection to deliver them on.
func (r *Runtime) waitReconnect(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case evt, ok := <-r.inputs:
			if !ok || evt.Type == InputTypeShutdown {
				return errShutdown
			}
			r.dropOutbound(ctx, "disconnected")
		}
	}
}

func (r *Runtime) dropOutbound(ctx context.Context, reason string) {
	r.metrics.RecordOutbound(OutboundDropped)
	r.logger.Warn(ctx, "dropping outbound message", Field("reason", reason))
}

func (r *Runtime) setConnected(v bool) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	r.connected = v
}

// emit delivers evt unless ctx ends or the runtime closes first.
func (r *Runtime) emit(ctx context.Context, evt RuntimeEvent) {
	select {
	case <-r.closed:
		return
	default:
	}

	var timeout <-chan time.Time
	if r.options.EmitTimeout > 0 {
		timer := time.NewTimer(r.options.EmitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r.outputs <- evt:
	case <-timeout:
		r.logger.Warn(ctx, "emit timed out", Field("type", string(evt.Type)))
	case <-ctx.Done():
	case <-r.closed:
	}
}

func (r *Runtime) close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		close(r.outputs)
	})
}
