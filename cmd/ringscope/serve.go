package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/ringscope/internal/api"
	"github.com/opensource-finance/ringscope/internal/bus"
	"github.com/opensource-finance/ringscope/internal/cache"
	"github.com/opensource-finance/ringscope/internal/config"
	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/logging"
	"github.com/opensource-finance/ringscope/internal/projector"
	"github.com/opensource-finance/ringscope/internal/repository"
	"github.com/opensource-finance/ringscope/internal/style"
	"github.com/opensource-finance/ringscope/internal/ui"
	"github.com/opensource-finance/ringscope/internal/view"
	"github.com/opensource-finance/ringscope/internal/worker"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and live view server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a YAML config file")
	return cmd
}

func serve(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.Logging))

	slog.Info("starting ringscope",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	sheet := style.Default()
	if len(cfg.View.NodeRules) > 0 {
		sheet, err = style.NewSheet(cfg.View.NodeRules)
		if err != nil {
			return fmt.Errorf("invalid node rules: %w", err)
		}
	}

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	projections := projector.NewCached(cacheImpl, cfg.View.ProjectionTTL)
	views := view.NewRegistry()

	// Warm projections of new analyses and evict deleted ones
	bg := worker.NewWorker(busImpl, repo, projections, views)
	if err := bg.Start(worker.Config{}); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:        repo,
		Cache:       cacheImpl,
		Bus:         busImpl,
		Projections: projections,
		Views:       views,
		Sheet:       sheet,
		View:        cfg.View,
		Version:     Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("ringscope is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(out, cfg)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}

	if err := bg.Stop(); err != nil {
		slog.Error("failed to stop worker", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("ringscope shutdown complete")
	return serveErr
}

func printBanner(w io.Writer, cfg *domain.Config) {
	ui.Banner(w, "fraud ring graph server")
	fmt.Fprintf(w, "  Version:  %s\n", Version)
	fmt.Fprintf(w, "  Tier:     %s\n", cfg.Tier)
	fmt.Fprintf(w, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Endpoints:")
	ui.Table(w, []string{"METHOD", "PATH", "PURPOSE"}, [][]string{
		{"POST", "/analyses", "Upload an analysis result"},
		{"GET", "/analyses", "List analyses"},
		{"GET", "/analyses/{id}", "Get an analysis (?download=1)"},
		{"DELETE", "/analyses/{id}", "Delete an analysis"},
		{"GET", "/analyses/{id}/graph", "Projected graph (?ring=)"},
		{"GET", "/analyses/{id}/rings", "Ring focus actions"},
		{"GET", "/analyses/{id}/view", "Live view websocket"},
		{"GET", "/health", "Health check"},
		{"GET", "/metrics", "Prometheus metrics"},
	})
	fmt.Fprintln(w)
}
