// Package timeseries holds the containers that carry model runs through the
// pipeline and the merge that collapses overlapping runs into one series.
package timeseries

import (
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
)

// ValidTimer is implemented by records that apply to a specific instant.
type ValidTimer interface {
	ValidTime() (time.Time, bool)
}

// LeadTimer is implemented by forecast records that know how far they are
// from their model's initialization.
type LeadTimer interface {
	LeadTime() (time.Duration, bool)
}

// ModelTimer is a record with both a valid time and a lead time.
type ModelTimer interface {
	ValidTimer
	LeadTimer
}

// TimeSeries is an ordered slice of records. Raw per-run series keep the
// source order; series produced by Merge are sorted by valid time.
type TimeSeries[T ValidTimer] struct {
	Data []T
}

// Len returns the number of records.
func (ts TimeSeries[T]) Len() int {
	return len(ts.Data)
}

// Run pairs one model run's initialization time with its payload.
type Run[T any] struct {
	InitTime time.Time
	Data     T
}

// EnsembleList is a MetaData block plus one payload per model run.
type EnsembleList[T any] struct {
	Meta domain.MetaData
	Runs []Run[T]
}

// IsEmpty reports whether the list holds no runs.
func (e EnsembleList[T]) IsEmpty() bool {
	return len(e.Runs) == 0
}

// EnsembleSeries is the per-run view before merging.
type EnsembleSeries[T ValidTimer] = EnsembleList[TimeSeries[T]]

// MergedSeries is a single series with at most one record per valid time.
type MergedSeries[T ValidTimer] struct {
	Meta domain.MetaData
	Data TimeSeries[T]
}

// IsEmpty reports whether the merged series holds no records.
func (m MergedSeries[T]) IsEmpty() bool {
	return len(m.Data.Data) == 0
}

// FilterMap applies f to every run's payload and keeps the runs where f
// reports ok, in their original order.
func FilterMap[T, U any](e EnsembleList[T], f func(T) (U, bool)) EnsembleList[U] {
	runs := make([]Run[U], 0, len(e.Runs))
	for _, r := range e.Runs {
		if u, ok := f(r.Data); ok {
			runs = append(runs, Run[U]{InitTime: r.InitTime, Data: u})
		}
	}
	return EnsembleList[U]{Meta: e.Meta, Runs: runs}
}

// FilterMapInner applies f to every record of every run. Records where f
// reports !ok are dropped, and so is any run left without records.
func FilterMapInner[T, U ValidTimer](e EnsembleSeries[T], f func(T) (U, bool)) EnsembleSeries[U] {
	runs := make([]Run[TimeSeries[U]], 0, len(e.Runs))
	for _, r := range e.Runs {
		inner := filterMapSlice(r.Data.Data, f)
		if len(inner) == 0 {
			continue
		}
		runs = append(runs, Run[TimeSeries[U]]{InitTime: r.InitTime, Data: TimeSeries[U]{Data: inner}})
	}
	return EnsembleSeries[U]{Meta: e.Meta, Runs: runs}
}

// FilterMapMerged applies f to every record of a merged series.
func FilterMapMerged[T, U ValidTimer](m MergedSeries[T], f func(T) (U, bool)) MergedSeries[U] {
	return MergedSeries[U]{Meta: m.Meta, Data: TimeSeries[U]{Data: filterMapSlice(m.Data.Data, f)}}
}

func filterMapSlice[T, U any](in []T, f func(T) (U, bool)) []U {
	out := make([]U, 0, len(in))
	for _, t := range in {
		if u, ok := f(t); ok {
			out = append(out, u)
		}
	}
	return out
}
