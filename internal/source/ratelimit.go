package source

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
)

// WithRateLimit wraps connect so every archive it opens draws from one token
// bucket of qps calls per second. A non-positive qps disables the limit.
func WithRateLimit(connect ConnectFunc, qps float64, burst int) ConnectFunc {
	if qps <= 0 {
		return connect
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(qps), burst)
	return func(ctx context.Context) (Archive, error) {
		if err := wait(ctx, limiter); err != nil {
			return nil, err
		}
		arc, err := connect(ctx)
		if err != nil {
			return nil, err
		}
		return &limitedArchive{Archive: arc, limiter: limiter}, nil
	}
}

type limitedArchive struct {
	Archive
	limiter *rate.Limiter
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("wait for archive rate limit: %w", err)
	}
	return nil
}

func (a *limitedArchive) SiteInfo(ctx context.Context, id string) (domain.Site, error) {
	if err := wait(ctx, a.limiter); err != nil {
		return domain.Site{}, err
	}
	return a.Archive.SiteInfo(ctx, id)
}

func (a *limitedArchive) InitTimesValidBetween(ctx context.Context, siteID string, model domain.Model, start, end time.Time) ([]time.Time, error) {
	if err := wait(ctx, a.limiter); err != nil {
		return nil, err
	}
	return a.Archive.InitTimesValidBetween(ctx, siteID, model, start, end)
}

func (a *limitedArchive) Retrieve(ctx context.Context, siteID string, model domain.Model, init time.Time) (string, error) {
	if err := wait(ctx, a.limiter); err != nil {
		return "", err
	}
	return a.Archive.Retrieve(ctx, siteID, model, init)
}

func (a *limitedArchive) Sites(ctx context.Context) ([]domain.Site, error) {
	if err := wait(ctx, a.limiter); err != nil {
		return nil, err
	}
	return a.Archive.Sites(ctx)
}
