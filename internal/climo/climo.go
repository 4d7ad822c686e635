// Package climo provides hourly climatological deciles of analyzed
// parameters for comparison against forecasts.
package climo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
)

// ElementHDW is the Hot-Dry-Windy element name.
const ElementHDW = "hdw"

// Deciles holds the 10th through 90th percentiles in steps of ten.
type Deciles [9]float64

// Missing returns deciles with every value NaN.
func Missing() Deciles {
	var d Deciles
	for i := range d {
		d[i] = math.NaN()
	}
	return d
}

// HourlyDeciles is the climatology of one element at one hour.
type HourlyDeciles struct {
	ValidTime time.Time
	Deciles   Deciles
}

// Key locates a climatology row by day of year (1-366) and UTC hour.
type Key struct {
	DayOfYear int
	Hour      int
}

// KeyFor returns the key for t in UTC.
func KeyFor(t time.Time) Key {
	t = t.UTC()
	return Key{DayOfYear: t.YearDay(), Hour: t.Hour()}
}

// Store reads climatology for a site.
type Store interface {
	HourlyDeciles(ctx context.Context, siteID, model, element string, start, end time.Time) ([]HourlyDeciles, error)
}

// Lookup returns hourly deciles of element covering meta's window. A nil
// store yields placeholder rows of NaN.
func Lookup(ctx context.Context, store Store, meta domain.MetaData, element string) ([]HourlyDeciles, error) {
	if store == nil {
		return Placeholder(meta.Start, meta.End), nil
	}
	rows, err := store.HourlyDeciles(ctx, meta.Site.ID, meta.Model, element, meta.Start, meta.End)
	if err != nil {
		return nil, fmt.Errorf("look up %s climatology for %s/%s: %w", element, meta.Site.ID, meta.Model, err)
	}
	return rows, nil
}

// Placeholder returns one NaN row per hour from start through end.
func Placeholder(start, end time.Time) []HourlyDeciles {
	return Expand(nil, start, end)
}

// Expand returns one row per hour from start (truncated to the hour) through
// end, taking values from byKey and NaN where a key is absent.
func Expand(byKey map[Key]Deciles, start, end time.Time) []HourlyDeciles {
	var out []HourlyDeciles
	for t := start.UTC().Truncate(time.Hour); !t.After(end); t = t.Add(time.Hour) {
		d, ok := byKey[KeyFor(t)]
		if !ok {
			d = Missing()
		}
		out = append(out, HourlyDeciles{ValidTime: t, Deciles: d})
	}
	return out
}
