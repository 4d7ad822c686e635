package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/message"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// RangeLoader loads every run of one site and model with soundings valid
// from DaysBack days before Ref through the model's horizon after it.
// Logger defaults to slog.Default().
type RangeLoader struct {
	Connect  ConnectFunc
	SiteID   string
	Model    domain.Model
	Ref      time.Time
	DaysBack int
	Logger   *slog.Logger
}

func (l RangeLoader) Load(ctx context.Context, out message.Sender) {
	arc, err := l.Connect(ctx)
	if err != nil {
		out.Send(message.Error(sourceErr(domain.KindConnection, "connect archive", l.SiteID, l.Model.String(), err)))
		return
	}
	defer closeArchive(arc, l.Logger, "site", l.SiteID, "model", l.Model.String())

	site, err := arc.SiteInfo(ctx, l.SiteID)
	if err != nil {
		out.Send(message.Error(sourceErr(lookupKind(err), "look up site", l.SiteID, l.Model.String(), err)))
		return
	}

	data, err := loadRange(ctx, arc, site, l.Model, l.Ref, l.DaysBack)
	if err != nil {
		out.Send(message.Error(err))
		return
	}
	out.Send(message.Data(data))
}

// SiteLoader is a RangeLoader whose reference time is the current time when
// Load runs.
type SiteLoader struct {
	Connect  ConnectFunc
	SiteID   string
	Model    domain.Model
	DaysBack int
	Logger   *slog.Logger
}

func (l SiteLoader) Load(ctx context.Context, out message.Sender) {
	RangeLoader{
		Connect:  l.Connect,
		SiteID:   l.SiteID,
		Model:    l.Model,
		Ref:      domain.Clock().Now(),
		DaysBack: l.DaysBack,
		Logger:   l.Logger,
	}.Load(ctx, out)
}

// AllSitesLoader loads the current runs of every archived site for each of
// Models, publishing one message per site and model. Models defaults to
// domain.Models().
type AllSitesLoader struct {
	Connect  ConnectFunc
	Models   []domain.Model
	DaysBack int
	Logger   *slog.Logger
}

func (l AllSitesLoader) Load(ctx context.Context, out message.Sender) {
	arc, err := l.Connect(ctx)
	if err != nil {
		out.Send(message.Error(sourceErr(domain.KindConnection, "connect archive", "", "", err)))
		return
	}
	defer closeArchive(arc, l.Logger)

	sites, err := arc.Sites(ctx)
	if err != nil {
		out.Send(message.Error(sourceErr(domain.KindIO, "list sites", "", "", err)))
		return
	}

	models := l.Models
	if len(models) == 0 {
		models = domain.Models()
	}

	now := domain.Clock().Now()
	for _, site := range sites {
		for _, model := range models {
			data, err := loadRange(ctx, arc, site, model, now, l.DaysBack)
			if err != nil {
				out.Send(message.Error(err))
				continue
			}
			out.Send(message.Data(data))
		}
	}
}

// closeArchive closes arc once loading is over. What was loaded has already
// been sent, so a failure is only logged.
func closeArchive(arc Archive, logger *slog.Logger, attrs ...any) {
	if err := arc.Close(); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Debug("close archive failed", append(attrs, "error", err)...)
	}
}

// loadRange retrieves every run of site and model with soundings in the
// window around ref. Failures are returned as *domain.SourceError.
func loadRange(ctx context.Context, arc Archive, site domain.Site, model domain.Model, ref time.Time, daysBack int) (message.StringData, error) {
	meta := domain.MetaData{
		Site:  site,
		Model: model.String(),
		Start: ref.Add(-time.Duration(daysBack) * 24 * time.Hour),
		Now:   ref,
		End:   ref.Add(model.Horizon()),
	}

	inits, err := arc.InitTimesValidBetween(ctx, site.ID, model, meta.Start, meta.End)
	if err != nil {
		return message.StringData{}, sourceErr(lookupKind(err), "list runs", site.ID, model.String(), err)
	}

	runs := make([]timeseries.Run[string], 0, len(inits))
	for _, init := range inits {
		raw, err := arc.Retrieve(ctx, site.ID, model, init)
		if err != nil {
			op := fmt.Sprintf("retrieve run %s", init.UTC().Format(time.RFC3339))
			return message.StringData{}, sourceErr(lookupKind(err), op, site.ID, model.String(), err)
		}
		runs = append(runs, timeseries.Run[string]{InitTime: init, Data: raw})
	}
	return message.StringData{Meta: meta, Runs: runs}, nil
}
