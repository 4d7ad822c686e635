package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/google/uuid"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/message"
	"github.com/couchcryptid/sounding-graphs/internal/observability"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/source"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// Result is everything delivered for one ensemble.
type Result struct {
	Ensemble timeseries.EnsembleSeries[sounding.AnalyzedData]
	Merged   timeseries.MergedSeries[sounding.AnalyzedData]
	// HeatMap holds the CAPE partitions of the merged profiles.
	HeatMap timeseries.MergedSeries[sounding.CapePartitions]
}

// Sink receives the result of each ensemble.
type Sink interface {
	Deliver(ctx context.Context, r Result) error
}

// Summary counts what happened to the messages of one run.
type Summary struct {
	Received     int
	Delivered    int
	DroppedEmpty int
	SourceErrors int
	SinkErrors   int
}

type counters struct {
	received, delivered, droppedEmpty, sourceErrors, sinkErrors atomic.Int64
}

func (c *counters) summary() Summary {
	return Summary{
		Received:     int(c.received.Load()),
		Delivered:    int(c.delivered.Load()),
		DroppedEmpty: int(c.droppedEmpty.Load()),
		SourceErrors: int(c.sourceErrors.Load()),
		SinkErrors:   int(c.sinkErrors.Load()),
	}
}

// Pipeline drains loader messages, analyzes them in parallel, and merges and
// delivers each result on a single consumer.
type Pipeline struct {
	sink    Sink
	logger  *slog.Logger
	metrics *observability.Metrics
	workers int
	ready   atomic.Bool
}

// New creates a Pipeline. A non-positive workers uses one worker per CPU.
func New(sink Sink, logger *slog.Logger, metrics *observability.Metrics, workers int) *Pipeline {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		workers: workers,
	}
}

// CheckReadiness returns nil once the pipeline has delivered at least one
// series, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not delivered any series yet")
	}
	return nil
}

// Ready reports whether the pipeline has delivered at least one series.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

type stageResult struct {
	profiles timeseries.EnsembleSeries[sounding.Profile]
	analyzed timeseries.EnsembleSeries[sounding.AnalyzedData]
	keep     bool
}

// Run starts every loader, processes all messages they publish, and returns
// once the last one has been delivered or dropped. Source and sink failures
// are logged and counted, never retried.
func (p *Pipeline) Run(ctx context.Context, loaders ...source.Loader) (Summary, error) {
	logger := p.logger.With("run_id", uuid.NewString())
	logger.Info("pipeline started", "loaders", len(loaders), "workers", p.workers)
	p.metrics.Runs.Inc()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	q := message.NewQueue()
	source.Spawn(ctx, q, loaders...)
	q.Seal()

	var c counters
	in := rill.FromChan(q.Messages(), nil)
	analyzed := rill.Map(in, p.workers, func(m *message.Message) (stageResult, error) {
		return p.analyze(logger, m, &c), nil
	})
	kept := rill.Filter(analyzed, p.workers, func(r stageResult) (bool, error) {
		return r.keep, nil
	})
	err := rill.ForEach(kept, 1, func(r stageResult) error {
		p.deliver(ctx, logger, r, &c)
		return nil
	})

	s := c.summary()
	if s.Delivered > 0 {
		p.metrics.LastSuccess.Set(float64(domain.Clock().Now().Unix()))
	}
	logger.Info("pipeline finished",
		"received", s.Received,
		"delivered", s.Delivered,
		"dropped_empty", s.DroppedEmpty,
		"source_errors", s.SourceErrors,
		"sink_errors", s.SinkErrors,
	)
	return s, err
}

func (p *Pipeline) analyze(logger *slog.Logger, m *message.Message, c *counters) stageResult {
	payload, err := m.Take()
	if err != nil {
		logger.Warn("skipping message", "error", err)
		return stageResult{}
	}
	c.received.Add(1)
	p.metrics.MessagesReceived.Inc()

	switch payload := payload.(type) {
	case message.SourceError:
		kind := domain.KindOf(payload.Err)
		logger.Error("source failed", "kind", kind.String(), "error", payload.Err)
		p.metrics.SourceErrors.WithLabelValues(kind.String()).Inc()
		c.sourceErrors.Add(1)
		return stageResult{}
	case message.StringData:
		profiles, analyzed, ok := Transform(payload)
		if !ok {
			logger.Debug("no usable runs",
				"site", payload.Meta.Site.ID, "model", payload.Meta.Model, "runs", len(payload.Runs))
			p.metrics.MessagesDroppedEmpty.Inc()
			c.droppedEmpty.Add(1)
			return stageResult{}
		}
		return stageResult{profiles: profiles, analyzed: analyzed, keep: true}
	default:
		logger.Warn("skipping message with unknown payload")
		return stageResult{}
	}
}

func (p *Pipeline) deliver(ctx context.Context, logger *slog.Logger, sr stageResult, c *counters) {
	start := time.Now()
	r := Result{
		Ensemble: sr.analyzed,
		Merged:   timeseries.Merge(sr.analyzed),
		HeatMap:  timeseries.FilterMapMerged(timeseries.Merge(sr.profiles), sounding.AnalyzeCapePartitions),
	}
	site, model := r.Ensemble.Meta.Site.ID, r.Ensemble.Meta.Model

	if err := p.sink.Deliver(ctx, r); err != nil {
		logger.Error("deliver failed", "site", site, "model", model, "error", err)
		p.metrics.SinkErrors.Inc()
		c.sinkErrors.Add(1)
		return
	}

	p.metrics.DeliverDuration.Observe(time.Since(start).Seconds())
	p.metrics.MessagesDelivered.Inc()
	c.delivered.Add(1)
	p.ready.Store(true)
	logger.Info("delivered", "site", site, "model", model,
		"runs", len(r.Ensemble.Runs), "points", r.Merged.Data.Len(), "heat_map_points", r.HeatMap.Data.Len())
}
