// Package console provides a line-oriented SSH console via Wish. Each SSH
// user is a player: commands typed at the prompt drive that user's game
// session, and session notifications are pushed to the user's terminals.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"golang.org/x/term"

	"github.com/vovakirdan/gamehub/internal/config"
	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/events"
)

// Prompt is shown before every command line.
const Prompt = "gamehub> "

// Config holds configuration for the SSH console.
type Config struct {
	// Address is the host:port to listen on (e.g., ":23235").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.gamehub/host_key.
	HostKeyPath string

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration
}

// FromConfig builds a console config from the ssh section.
func FromConfig(c config.SSHConfig) Config {
	return Config{Address: c.Address, HostKeyPath: c.HostKey, IdleTimeout: c.IdleTimeout}
}

// Notifier receives the manager's notification stream.
type Notifier interface {
	Events() <-chan events.Event
}

// Server wraps a Wish SSH server.
type Server struct {
	config  Config
	server  *ssh.Server
	backend Backend
	history HistorySource
	logger  *log.Logger

	mu    sync.Mutex
	terms map[string]map[io.Writer]struct{}
}

// NewServer creates an SSH console for backend. history may be nil.
func NewServer(cfg Config, backend Backend, history HistorySource, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	srv := &Server{
		config:  cfg,
		backend: backend,
		history: history,
		logger:  logger,
		terms:   make(map[string]map[io.Writer]struct{}),
	}

	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		hostKeyPath = "~/.gamehub/host_key"
	}
	hostKeyPath = config.ExpandHome(hostKeyPath)
	if err := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("console: create host key directory: %w", err)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithMiddleware(
			srv.shellMiddleware,
			srv.loggingMiddleware,
		),
	}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(cfg.IdleTimeout))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("console: create SSH server: %w", err)
	}
	srv.server = server
	return srv, nil
}

// shellMiddleware runs the console for the connection. A command given on
// the ssh command line runs once without a prompt.
func (s *Server) shellMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		user := sess.User()
		shell := NewShell(s.backend, s.history, lipgloss.NewRenderer(sess))

		if cmd := sess.Command(); len(cmd) > 0 {
			out, _ := shell.Execute(sess.Context(), user, strings.Join(cmd, " "))
			fmt.Fprintln(sess, out)
			next(sess)
			return
		}

		t := term.NewTerminal(sess, Prompt)
		if pty, winCh, ok := sess.Pty(); ok {
			_ = t.SetSize(pty.Window.Width, pty.Window.Height)
			go func() {
				for w := range winCh {
					_ = t.SetSize(w.Width, w.Height)
				}
			}()
		}

		s.attach(user, t)
		defer s.detach(user, t)

		fmt.Fprintf(t, "Welcome %s. Type help for commands.\n", user)
		for {
			line, err := t.ReadLine()
			if err != nil {
				break
			}
			out, quit := shell.Execute(sess.Context(), user, line)
			if out != "" {
				fmt.Fprintln(t, out)
			}
			if quit {
				break
			}
		}
		next(sess)
	}
}

// loggingMiddleware logs SSH session events.
func (s *Server) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		s.logger.Info("console connected",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
		next(sess)
		s.logger.Info("console disconnected",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
	}
}

func (s *Server) attach(user string, w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.terms[user]
	if !ok {
		set = make(map[io.Writer]struct{})
		s.terms[user] = set
	}
	set[w] = struct{}{}
}

func (s *Server) detach(user string, w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.terms[user], w)
	if len(s.terms[user]) == 0 {
		delete(s.terms, user)
	}
}

// notify writes msg to every terminal of user. Returns the number reached.
func (s *Server) notify(user, msg string) int {
	s.mu.Lock()
	targets := make([]io.Writer, 0, len(s.terms[user]))
	for w := range s.terms[user] {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	for _, w := range targets {
		fmt.Fprintln(w, msg)
	}
	return len(targets)
}

// Forward pushes session notifications to connected users until the stream
// closes or ctx is done.
func (s *Server) Forward(ctx context.Context, n Notifier) {
	ch := n.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.deliver(ev)
		}
	}
}

func (s *Server) deliver(ev events.Event) {
	switch e := ev.(type) {
	case events.SessionEndedEvent:
		if e.Reason == core.ReasonManual {
			return
		}
		s.notify(e.UserID, fmt.Sprintf("*** your %s game ended (%s), final score %d", e.GameID, e.Reason, e.FinalScore))
	case events.EngineFailureEvent:
		s.logger.Warn("browser sessions terminated", "sessions", len(e.AffectedSessions), "error", e.Err)
	}
}

// ListenAndServe starts the SSH server and blocks until ctx is done or the
// server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("starting SSH console", "address", s.config.Address)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			return fmt.Errorf("console: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down console...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *Server) Addr() string {
	return s.config.Address
}
