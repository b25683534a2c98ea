// Package sshserve hosts the viewer for remote users over SSH. Every SSH
// session gets its own upstream connection and its own transcript.
package sshserve

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"

	"github.com/asynkron/architerm/internal/config"
	"github.com/asynkron/architerm/internal/core/runtime"
	"github.com/asynkron/architerm/internal/tui"
)

const shutdownTimeout = 30 * time.Second

// Factory opens the upstream connection for one SSH session. The
// connection must end when ctx ends.
type Factory func(ctx context.Context) (tui.Session, error)

// RuntimeFactory gives every session its own runtime built from options.
func RuntimeFactory(options runtime.RuntimeOptions) Factory {
	return func(ctx context.Context) (tui.Session, error) {
		rt, err := runtime.NewRuntime(options)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := rt.Run(ctx); err != nil && ctx.Err() == nil {
				if options.Logger != nil {
					options.Logger.Error(ctx, "session runtime stopped", err)
				}
			}
		}()
		return rt, nil
	}
}

// Server wires config, middleware and the wish server as a testable unit.
type Server struct {
	cfg     config.Config
	factory Factory
	logger  runtime.Logger
	server  *ssh.Server
}

// New builds the SSH server. The host key is generated at
// cfg.SSH.HostKeyPath when it does not exist yet.
func New(cfg config.Config, factory Factory, logger runtime.Logger) (*Server, error) {
	if factory == nil {
		return nil, errors.New("sshserve: session factory is required")
	}
	if logger == nil {
		logger = &runtime.NoOpLogger{}
	}
	s := &Server{cfg: cfg, factory: factory, logger: logger}

	connLog := logging.Middleware()
	if printer, ok := logger.(logging.Logger); ok {
		connLog = logging.MiddlewareWithLogger(printer)
	}

	server, err := wish.NewServer(
		wish.WithAddress(cfg.SSH.Address()),
		wish.WithHostKeyPath(cfg.SSH.HostKeyPath),
		wish.WithIdleTimeout(cfg.SSH.IdleTimeout),
		wish.WithMiddleware(
			bm.Middleware(s.teaHandler),
			activeterm.Middleware(),
			connLog,
		),
	)
	if err != nil {
		return nil, err
	}
	s.server = server
	return s, nil
}

// Address is the address the server listens on.
func (s *Server) Address() string {
	return s.server.Addr
}

// Run serves until ctx ends or SIGINT/SIGTERM arrives, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "ssh server starting",
		runtime.Field("address", s.Address()),
		runtime.Field("upstream", s.cfg.ServerURL),
		runtime.Field("host_key_path", s.cfg.SSH.HostKeyPath),
		runtime.Field("idle_timeout", s.cfg.SSH.IdleTimeout))
	err := s.server.ListenAndServe()
	if errors.Is(err, ssh.ErrServerClosed) || err == nil {
		s.logger.Info(context.Background(), "ssh server stopped")
		return nil
	}
	return err
}

func (s *Server) teaHandler(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	ctx, cancel := context.WithCancel(runtime.WithSessionID(sess.Context(), runtime.NewSessionID()))
	session, err := s.factory(ctx)
	if err != nil {
		cancel()
		s.logger.Error(ctx, "open upstream connection", err, runtime.Field("user", sess.User()))
		wish.Fatalln(sess, "upstream unavailable:", err)
		return nil, nil
	}

	s.logger.Info(ctx, "viewer session started",
		runtime.Field("user", sess.User()),
		runtime.Field("remote", sess.RemoteAddr().String()))

	model := tui.NewModel(session, cancel, tui.Options{
		ServerURL:       s.cfg.ServerURL,
		ScrollThreshold: s.cfg.ScrollThreshold,
		Renderer:        bm.MakeRenderer(sess),
		Logger:          s.logger,
	})
	return model, []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
}
