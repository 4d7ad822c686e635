package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/sounding-graphs/internal/adapter/http"
	wsadapter "github.com/couchcryptid/sounding-graphs/internal/adapter/websocket"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
	"github.com/couchcryptid/sounding-graphs/internal/schedule"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Process every site on a schedule and serve health and metrics",
	Long: `Runs the all-sites load once at startup and then on SCHEDULE, serving
/healthz, /readyz, /metrics and, when WEBSOCKET_ENABLED is set, /ws on HTTP_ADDR.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var (
		hub   *wsadapter.Hub
		extra []pipeline.Sink
	)
	if cfg.WebSocketEnabled {
		hub = wsadapter.NewHub(logger)
		extra = append(extra, hub)
	}

	s, err := openSinks(ctx, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("close sinks", "error", err)
		}
	}()

	p := pipeline.New(s.multi, logger, metrics, cfg.PipelineWorkers)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	if hub != nil {
		srv.Handle("GET /ws", hub)
	}

	loader := source.AllSitesLoader{Connect: archive(), DaysBack: cfg.DaysBack, Logger: logger}
	sched, err := schedule.New(cfg.Schedule, func(ctx context.Context) {
		if _, err := p.Run(ctx, loader); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}, logger, schedule.RunImmediately())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if hub != nil {
			_ = hub.Close()
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
