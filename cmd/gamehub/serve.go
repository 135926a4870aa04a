package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/gamehub/internal/console"
)

var (
	flagSSHAddr   string
	flagHostKey   string
	flagNoBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the game hub SSH console",
	Long: `Start the session manager and an SSH console in front of it.

Each SSH user is a player with at most one running game. Commands such as
"start simple_test", "do move x=1 y=2", "hint" and "auto 10" drive the
user's session. Idle sessions are reaped; AI models are flushed periodically
and on shutdown.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.gamehub/host_key

Examples:
  gamehub serve                      # Listen on the configured address
  gamehub serve --ssh :2222          # Listen on port 2222
  gamehub serve --no-browser         # Native games only

Users can connect with:
  ssh localhost -p 23235`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (overrides ssh.address)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().BoolVar(&flagNoBrowser, "no-browser", false, "Do not start the headless browser")
}

func runServe(_ *cobra.Command, _ []string) {
	a, err := newApp(!flagNoBrowser)
	if err != nil {
		fail("%v", err)
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := a.manager()
	mgr.Start(ctx)
	if n, err := mgr.Discover(ctx); err != nil {
		a.logger.Warn("static server discovery failed", "error", err)
	} else if n > 0 {
		a.logger.Info("registered discovered games", "count", n)
	}

	sshCfg := console.FromConfig(a.cfg.SSH)
	if flagSSHAddr != "" {
		sshCfg.Address = flagSSHAddr
	}
	if flagHostKey != "" {
		sshCfg.HostKeyPath = flagHostKey
	}

	var history console.HistorySource
	if a.store != nil {
		history = a.store
	}
	server, err := console.NewServer(sshCfg, mgr, history, a.logger)
	if err != nil {
		_ = mgr.Shutdown(context.Background())
		fail("creating console: %v", err)
	}

	go server.Forward(ctx, mgr)

	serveErr := server.ListenAndServe(ctx)
	if serveErr != nil {
		a.logger.Error("console stopped", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown incomplete", "error", err)
	}
	if serveErr != nil {
		a.close()
		os.Exit(1)
	}
}
