// Package source loads raw sounding text and publishes it as messages.
//
// Every loader reports at most what it found: data it could load arrives as
// message.StringData, and any failure arrives as a single message.SourceError
// wrapping a *domain.SourceError. Loaders never retry.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/message"
)

// Archive is an indexed store of raw model runs.
type Archive interface {
	SiteInfo(ctx context.Context, id string) (domain.Site, error)
	InitTimesValidBetween(ctx context.Context, siteID string, model domain.Model, start, end time.Time) ([]time.Time, error)
	Retrieve(ctx context.Context, siteID string, model domain.Model, init time.Time) (string, error)
	Sites(ctx context.Context) ([]domain.Site, error)
	Close() error
}

// ConnectFunc opens an archive connection.
type ConnectFunc func(ctx context.Context) (Archive, error)

// Loader publishes what it loads to out.
type Loader interface {
	Load(ctx context.Context, out message.Sender)
}

// Spawn runs each loader on its own producer goroutine of q.
func Spawn(ctx context.Context, q *message.Queue, loaders ...Loader) {
	for _, l := range loaders {
		q.Go(func(s message.Sender) {
			l.Load(ctx, s)
		})
	}
}

func sourceErr(kind domain.ErrorKind, op, site, model string, err error) *domain.SourceError {
	return &domain.SourceError{Kind: kind, Op: op, Site: site, Model: model, Err: err}
}

// lookupKind classifies archive errors where "not found" is expected.
func lookupKind(err error) domain.ErrorKind {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnknownModel) {
		return domain.KindLookup
	}
	return domain.KindIO
}
