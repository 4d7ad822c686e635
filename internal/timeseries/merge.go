package timeseries

import (
	"slices"
	"time"
)

// Merge collapses an ensemble into one series holding, for each valid time,
// the record with the shortest lead time. On equal lead times the record seen
// first (runs in order, records in order) is kept. Records missing a valid or
// lead time are skipped. Runs are expected in ascending initialization order.
func Merge[T ModelTimer](e EnsembleSeries[T]) MergedSeries[T] {
	type candidate struct {
		valid time.Time
		lead  time.Duration
		value T
	}

	// Keyed by Unix nanoseconds so equal instants in different locations collide.
	pool := make(map[int64]candidate)
	for _, run := range e.Runs {
		for _, v := range run.Data.Data {
			valid, ok := v.ValidTime()
			if !ok {
				continue
			}
			lead, ok := v.LeadTime()
			if !ok {
				continue
			}
			key := valid.UnixNano()
			if cur, seen := pool[key]; seen && lead >= cur.lead {
				continue
			}
			pool[key] = candidate{valid: valid, lead: lead, value: v}
		}
	}

	sorted := make([]candidate, 0, len(pool))
	for _, c := range pool {
		sorted = append(sorted, c)
	}
	slices.SortFunc(sorted, func(a, b candidate) int {
		return a.valid.Compare(b.valid)
	})

	data := make([]T, len(sorted))
	for i, c := range sorted {
		data[i] = c.value
	}
	return MergedSeries[T]{Meta: e.Meta, Data: TimeSeries[T]{Data: data}}
}
