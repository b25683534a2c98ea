package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/asynkron/architerm/internal/config"
	"github.com/asynkron/architerm/internal/core/measure"
	"github.com/asynkron/architerm/internal/core/runtime"
	"github.com/asynkron/architerm/internal/core/transcript"
	"github.com/asynkron/architerm/internal/sshserve"
	"github.com/asynkron/architerm/internal/tui"
)

const (
	// fallbackColumns is used when stdout is not a terminal.
	fallbackColumns = 80
	// defaultLinger is how long plain mode waits for more replies after
	// stdin ends.
	defaultLinger = time.Second
	// plainRetryInterval paces retries of held lines the runtime refused.
	plainRetryInterval = 50 * time.Millisecond
)

// Run executes the viewer using the provided CLI arguments.
// It returns a POSIX-style exit code indicating whether execution succeeded.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, os.Stdin, stdout, stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine, but other errors should be surfaced to help with debugging.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
			return 1
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}

	flagSet := flag.NewFlagSet("architerm", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	serverURL := flagSet.String("server", cfg.ServerURL, "ws:// or wss:// URL of the chat server")
	mode := flagSet.String("mode", "tui", "how to run: tui, plain or ssh")
	logFile := flagSet.String("log-file", cfg.LogFile, "append logs to this file (discarded when empty in tui mode)")
	logLevel := flagSet.String("log-level", cfg.LogLevel, "minimum log level (debug, info, warn, error)")
	linger := flagSet.Duration("linger", defaultLinger, "plain mode: how long to wait for replies after stdin ends")

	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if err := config.ValidateServerURL(*serverURL); err != nil {
		fmt.Fprintf(stderr, "invalid -server: %v\n", err)
		return 2
	}
	switch *mode {
	case "tui", "plain", "ssh":
	default:
		fmt.Fprintf(stderr, "unknown -mode %q (want tui, plain or ssh)\n", *mode)
		return 2
	}
	if err := config.ValidateLogLevel(*logLevel); err != nil {
		fmt.Fprintf(stderr, "invalid -log-level: %v\n", err)
		return 2
	}
	if *linger < 0 {
		fmt.Fprintf(stderr, "invalid -linger: must not be negative\n")
		return 2
	}
	cfg.ServerURL = *serverURL
	cfg.LogFile = strings.TrimSpace(*logFile)
	cfg.LogLevel = *logLevel

	var logOut io.Writer = io.Discard
	if *mode == "ssh" {
		logOut = stderr
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOut = f
	}
	logger := runtime.NewLogger(runtime.ParseLogLevel(cfg.LogLevel), logOut)
	ctx = runtime.WithSessionID(ctx, runtime.NewSessionID())

	switch *mode {
	case "ssh":
		server, err := sshserve.New(cfg, sshserve.RuntimeFactory(runtimeOptions(cfg, logger, runtime.NewInMemoryMetrics())), logger)
		if err != nil {
			fmt.Fprintf(stderr, "failed to create ssh server: %v\n", err)
			return 1
		}
		if err := server.Run(ctx); err != nil {
			fmt.Fprintf(stderr, "ssh server error: %v\n", err)
			return 1
		}
		return 0
	case "plain":
		return runPlain(ctx, cfg, logger, *linger, stdin, stdout, stderr)
	default:
		return tui.Run(ctx, runtimeOptions(cfg, logger, runtime.NewInMemoryMetrics()), tui.Options{
			ScrollThreshold: cfg.ScrollThreshold,
			Logger:          logger,
		}, stderr)
	}
}

func runtimeOptions(cfg config.Config, logger runtime.Logger, metrics runtime.Metrics) runtime.RuntimeOptions {
	return runtime.RuntimeOptions{
		ServerURL: cfg.ServerURL,
		Reconnect: &runtime.RetryConfig{
			MaxRetries:     cfg.ReconnectRetries,
			InitialBackoff: cfg.ReconnectBackoff,
			MaxBackoff:     cfg.ReconnectMaxBackoff,
			Multiplier:     2,
		},
		Logger:  logger,
		Metrics: metrics,
	}
}

// runPlain is the line mode: stdin lines are sent as messages and every
// server message is printed laid out for the terminal width. Lines read
// before the session connects are held and flushed on connect. After stdin
// ends the session stays open until the server has been quiet for linger.
func runPlain(ctx context.Context, cfg config.Config, logger runtime.Logger, linger time.Duration, stdin io.Reader, stdout, stderr io.Writer) int {
	metrics := runtime.NewInMemoryMetrics()
	agent, err := runtime.NewRuntime(runtimeOptions(cfg, logger, metrics))
	if err != nil {
		fmt.Fprintf(stderr, "failed to create runtime: %v\n", err)
		return 1
	}

	p := &plainSession{
		agent:     agent,
		logger:    logger,
		linger:    linger,
		charWidth: plainCharWidth(stdout),
		store:     transcript.NewStore(),
		stdout:    stdout,
	}

	lines := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- agent.Run(ctx)
	}()

	p.loop(ctx, lines)
	close(done)
	err = <-runErrCh

	snapshot := metrics.GetSnapshot()
	logger.Info(ctx, "session summary",
		runtime.Field("connects", snapshot.Connects),
		runtime.Field("disconnects", snapshot.Disconnects),
		runtime.Field("inbound", snapshot.Inbound),
		runtime.Field("dropped", snapshot.Dropped),
		runtime.Field("outbound", snapshot.Outbound),
		runtime.Field("unsent", len(p.pending)))

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "runtime error: %v\n", err)
		return 1
	}
	return 0
}

// plainSession is the state of one plain mode run. It is only touched by
// loop.
type plainSession struct {
	agent     *runtime.Runtime
	logger    runtime.Logger
	linger    time.Duration
	charWidth int
	store     *transcript.Store
	stdout    io.Writer

	pending   []string
	connected bool
	eof       bool
	stopping  bool
	quiet     *time.Timer
}

// loop multiplexes stdin lines and runtime events until Outputs closes.
func (p *plainSession) loop(ctx context.Context, lines <-chan string) {
	retry := time.NewTicker(plainRetryInterval)
	defer retry.Stop()
	defer func() {
		if p.quiet != nil {
			p.quiet.Stop()
		}
	}()

	var quietC <-chan time.Time
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				p.eof = true
			} else {
				p.pending = append(p.pending, line)
				p.flush()
			}
		case <-retry.C:
			p.flush()
		case <-quietC:
			p.stopping = true
			p.agent.Shutdown("stdin closed")
		case evt, ok := <-p.agent.Outputs():
			if !ok {
				return
			}
			p.handle(ctx, evt)
		}
		quietC = p.armQuiet(quietC)
	}
}

// flush hands held lines to the runtime in order while it accepts them.
func (p *plainSession) flush() {
	for p.connected && len(p.pending) > 0 {
		if !p.agent.TrySubmit(p.pending[0]) {
			return
		}
		p.pending = p.pending[1:]
	}
}

// armQuiet starts the linger timer once stdin has ended and every held line
// has been handed over. Shutdown queues behind those lines, so they are
// written before the connection closes.
func (p *plainSession) armQuiet(current <-chan time.Time) <-chan time.Time {
	if !p.eof || p.stopping || len(p.pending) > 0 {
		return nil
	}
	if current != nil {
		return current
	}
	if p.quiet == nil {
		p.quiet = time.NewTimer(p.linger)
	} else {
		p.quiet.Reset(p.linger)
	}
	return p.quiet.C
}

func (p *plainSession) handle(ctx context.Context, evt runtime.RuntimeEvent) {
	switch evt.Type {
	case runtime.EventTypeMessage:
		msg := p.store.AppendServer(evt.Chat)
		text := strings.TrimSuffix(msg.Layout(p.charWidth).Text, "\n")
		fmt.Fprintln(p.stdout, text)
		if msg.Display == transcript.DisplayWrap || msg.Display == transcript.DisplayFit {
			fmt.Fprintln(p.stdout)
		}
		// Replies are still arriving.
		if p.quiet != nil && !p.stopping {
			p.quiet.Reset(p.linger)
		}
		return
	case runtime.EventTypeConnected:
		p.connected = true
		if len(p.pending) > 0 {
			p.logger.Debug(ctx, "flushing held input", runtime.Field("lines", len(p.pending)))
		}
		p.flush()
	case runtime.EventTypeDisconnected, runtime.EventTypeError:
		p.connected = false
	}
	if level := string(evt.Level); level != "" {
		fmt.Fprintf(p.stdout, "[%s:%s] %s\n", evt.Type, level, evt.Message)
	} else {
		fmt.Fprintf(p.stdout, "[%s] %s\n", evt.Type, evt.Message)
	}
}

// plainCharWidth measures the terminal behind stdout, falling back to a
// fixed width when there is none.
func plainCharWidth(stdout io.Writer) int {
	cols, cell := fallbackColumns, measure.Cell{}
	if f, ok := stdout.(*os.File); ok {
		if terminal, err := measure.ProbeTerminal(int(f.Fd())); err == nil {
			cols, cell = terminal.Cols, terminal.Cell
		}
	}
	box, glyph := measure.TerminalGeometry(cols, 0, cell)
	metrics, ok := measure.Compute(box, glyph)
	if !ok {
		return fallbackColumns
	}
	return metrics.CharWidth
}
