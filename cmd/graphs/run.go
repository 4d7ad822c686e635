package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/sounding-graphs/internal/adapter/kafka"
	minioadapter "github.com/couchcryptid/sounding-graphs/internal/adapter/minio"
	natsadapter "github.com/couchcryptid/sounding-graphs/internal/adapter/nats"
	"github.com/couchcryptid/sounding-graphs/internal/adapter/postgres"
	"github.com/couchcryptid/sounding-graphs/internal/adapter/sqlite"
	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/config"
	"github.com/couchcryptid/sounding-graphs/internal/output"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

// sinks is the configured set of outputs and what to close after use.
type sinks struct {
	multi   output.Multi
	closers []io.Closer
}

func (s *sinks) add(sink pipeline.Sink, closer io.Closer) {
	s.multi = append(s.multi, sink)
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// Close closes everything in reverse order of opening.
func (s *sinks) Close() error {
	var errs []error
	for _, c := range slices.Backward(s.closers) {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openSinks opens the climatology store and every enabled output. extra
// sinks are appended as given.
func openSinks(ctx context.Context, extra ...pipeline.Sink) (*sinks, error) {
	s := &sinks{}
	fail := func(err error) (*sinks, error) {
		_ = s.Close()
		return nil, err
	}

	var store climo.Store
	if cfg.ClimoDatabaseURL != "" {
		db, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.ClimoDatabaseURL))
		if err != nil {
			return fail(fmt.Errorf("open climatology database: %w", err))
		}
		s.closers = append(s.closers, db)
		// Every sink renders climatology for the same window; query it once.
		store = climo.NewMemo(postgres.NewClimoStore(db))
		logger.Info("climatology enabled")
	}

	switch cfg.OutputMode {
	case config.OutputGnuplot:
		g, err := output.StartGnuplot(ctx, cfg.GnuplotPath, cfg.OutputDir, store, logger)
		if err != nil {
			return fail(err)
		}
		s.add(g, g)
	default:
		s.add(output.NewFiles(cfg.OutputDir, store, logger), nil)
	}
	logger.Info("output configured", "mode", cfg.OutputMode, "dir", cfg.OutputDir)

	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		s.add(w, w)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}

	if cfg.MinIOEnabled {
		mcfg := minioadapter.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}
		client, err := minioadapter.NewClient(mcfg)
		if err != nil {
			return fail(fmt.Errorf("create minio client: %w", err))
		}
		if err := minioadapter.EnsureBucket(ctx, client, mcfg.Bucket); err != nil {
			return fail(err)
		}
		s.add(minioadapter.NewStore(client, mcfg.Bucket, store, logger), nil)
		logger.Info("minio sink enabled", "bucket", mcfg.Bucket)
	}

	if cfg.NATSEnabled {
		conn, err := natsadapter.Connect(cfg.NATSURL, "sounding-graphs", logger)
		if err != nil {
			return fail(err)
		}
		p := natsadapter.NewPublisher(conn, cfg.NATSSubjectPrefix, logger)
		s.add(p, p)
		logger.Info("nats sink enabled", "prefix", cfg.NATSSubjectPrefix)
	}

	for _, sink := range extra {
		s.add(sink, nil)
	}
	return s, nil
}

// archive returns the connector for the configured archive with the site
// cache and rate limit applied.
func archive() source.ConnectFunc {
	connect := source.WithRateLimit(sqlite.Connect(cfg.ArchivePath), cfg.ArchiveMaxQPS, max(1, int(cfg.ArchiveMaxQPS)))
	return source.WithSiteCache(connect, cfg.ArchiveSiteCacheSize)
}

// runOnce processes loaders through freshly opened sinks and reports the
// outcome. Any source or sink failure makes the command fail.
func runOnce(cmd *cobra.Command, loaders ...source.Loader) error {
	ctx := cmd.Context()
	s, err := openSinks(ctx)
	if err != nil {
		return err
	}

	p := pipeline.New(s.multi, logger, metrics, cfg.PipelineWorkers)
	summary, runErr := p.Run(ctx, loaders...)
	closeErr := s.Close()

	cmd.Printf("delivered %d of %d (%d empty, %d source errors, %d sink errors)\n",
		summary.Delivered, summary.Received, summary.DroppedEmpty, summary.SourceErrors, summary.SinkErrors)

	if err := errors.Join(runErr, closeErr); err != nil {
		return err
	}
	if failed := summary.SourceErrors + summary.SinkErrors; failed > 0 {
		return fmt.Errorf("%d loads or deliveries failed", failed)
	}
	return nil
}
