package handlers

import (
	"blogsmith/internal/app"
	"blogsmith/internal/logger"
	"blogsmith/internal/persistence"
	"blogsmith/internal/server"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port  int
		host  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the blogsmith HTTP API.

The server provides:
  • One-click generation with stop and reset
  • Manual topic, article and image steps
  • Ledger, duplicate setting and API key management
  • Health check endpoint

When backend.database_url is set, profile changes made elsewhere are
applied live (disable with --watch=false).

Examples:
  # Start server on default port 8080
  blogsmith serve

  # Start on custom port
  blogsmith serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, watch)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")
	cmd.Flags().BoolVar(&watch, "watch", true, "apply backend profile changes while serving")

	return cmd
}

func runServe(ctx context.Context, port int, host string, watch bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if port != 0 {
		a.Config.Server.Port = port
	}
	if host != "" {
		a.Config.Server.Host = host
	}

	if a.Backend != nil {
		if _, err := a.SyncProfile(ctx); err != nil && !errors.Is(err, app.ErrNoBackend) {
			logger.Warn("Profile sync failed", "error", err.Error())
		}
	}

	srv := server.New(a)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Server listening on http://%s:%d", a.Config.Server.Host, a.Config.Server.Port))
		logger.Info("Press Ctrl+C to stop")
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.Orchestrator.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", err)
			return err
		}
		logger.Info("Server stopped successfully")
		return nil
	})

	if watch && a.Backend != nil && a.Config.Backend.UserID != "" {
		g.Go(func() error {
			return watchProfile(gctx, a)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// watchProfile applies realtime profile changes until ctx ends. A listener
// that cannot start is logged and does not stop the server.
func watchProfile(ctx context.Context, a *app.App) error {
	w := persistence.NewWatcher(a.Config.Backend.DatabaseURL, a.Config.Backend.Channel)
	changes, err := w.Watch(ctx)
	if err != nil {
		logger.Warn("Profile watcher disabled", "error", err.Error())
		return nil
	}
	for change := range changes {
		a.ApplyUserChange(change)
	}
	return nil
}
