package output

import (
	"context"
	"errors"

	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
)

// Multi delivers to every sink in order, continuing past failures, and
// returns the joined errors.
type Multi []pipeline.Sink

func (m Multi) Deliver(ctx context.Context, r pipeline.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
