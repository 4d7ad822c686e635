package timeseries_test

import (
	"testing"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ensemble(runs ...timeseries.Run[timeseries.TimeSeries[rec]]) timeseries.EnsembleSeries[rec] {
	return timeseries.EnsembleSeries[rec]{Meta: testMeta(), Runs: runs}
}

func run(init time.Time, recs ...rec) timeseries.Run[timeseries.TimeSeries[rec]] {
	return timeseries.Run[timeseries.TimeSeries[rec]]{InitTime: init, Data: series(recs...)}
}

func tags(m timeseries.MergedSeries[rec]) []string {
	out := make([]string, 0, m.Data.Len())
	for _, r := range m.Data.Data {
		out = append(out, r.tag)
	}
	return out
}

func TestMerge_TwoRunsPreferShortestLead(t *testing.T) {
	ens := ensemble(
		run(at(0),
			rec{valid: at(0), lead: 0, tag: "run1-T0"},
			rec{valid: at(6), lead: h(6), tag: "run1-T1"},
		),
		run(at(6),
			rec{valid: at(6), lead: 0, tag: "run2-T1"},
		),
	)

	merged := timeseries.Merge(ens)

	require.Equal(t, 2, merged.Data.Len())
	assert.Equal(t, []string{"run1-T0", "run2-T1"}, tags(merged))
	assert.Equal(t, testMeta(), merged.Meta)
}

func TestMerge_EqualLeadKeepsFirstSeen(t *testing.T) {
	ens := ensemble(
		run(at(0), rec{valid: at(12), lead: h(12), tag: "first"}),
		run(at(6), rec{valid: at(12), lead: h(12), tag: "second"}),
	)

	merged := timeseries.Merge(ens)

	assert.Equal(t, []string{"first"}, tags(merged))
}

func TestMerge_LaterShorterLeadReplacesEarlier(t *testing.T) {
	ens := ensemble(
		run(at(6), rec{valid: at(12), lead: h(6), tag: "newer"}),
		run(at(0), rec{valid: at(12), lead: h(12), tag: "older"}),
	)

	merged := timeseries.Merge(ens)

	assert.Equal(t, []string{"newer"}, tags(merged))
}

func TestMerge_SkipsRecordsMissingTimes(t *testing.T) {
	ens := ensemble(
		run(at(0),
			rec{valid: time.Time{}, lead: 0, tag: "no-valid"},
			rec{valid: at(3), lead: -1, tag: "no-lead"},
			rec{valid: at(6), lead: h(6), tag: "ok"},
		),
	)

	merged := timeseries.Merge(ens)

	assert.Equal(t, []string{"ok"}, tags(merged))
}

func TestMerge_AllLeadTimesMissingIsEmpty(t *testing.T) {
	ens := ensemble(run(at(0), rec{valid: at(0), lead: -1}, rec{valid: at(1), lead: -1}))

	assert.True(t, timeseries.Merge(ens).IsEmpty())
}

func TestMerge_EmptyEnsemble(t *testing.T) {
	merged := timeseries.Merge(ensemble())

	assert.True(t, merged.IsEmpty())
	assert.Equal(t, testMeta(), merged.Meta)
}

func TestMerge_SameInstantDifferentLocation(t *testing.T) {
	denver := time.FixedZone("MDT", -6*3600)
	ens := ensemble(
		run(at(0), rec{valid: at(6), lead: h(6), tag: "utc"}),
		run(at(3), rec{valid: at(6).In(denver), lead: h(3), tag: "local"}),
	)

	assert.Equal(t, []string{"local"}, tags(timeseries.Merge(ens)))
}

func TestMerge_SortedUniqueMinimalLead(t *testing.T) {
	// Four overlapping 6-hourly runs, each forecasting 24h at 3h steps,
	// supplied out of init order.
	inits := []int{12, 0, 18, 6}
	var runs []timeseries.Run[timeseries.TimeSeries[rec]]
	for _, init := range inits {
		var recs []rec
		for step := 0; step <= 24; step += 3 {
			recs = append(recs, rec{valid: at(init + step), lead: h(step)})
		}
		runs = append(runs, run(at(init), recs...))
	}

	merged := timeseries.Merge(ensemble(runs...))

	// Minimal lead for each valid time across all candidates.
	best := map[int64]time.Duration{}
	for _, r := range runs {
		for _, v := range r.Data.Data {
			k := v.valid.UnixNano()
			if cur, ok := best[k]; !ok || v.lead < cur {
				best[k] = v.lead
			}
		}
	}

	require.Equal(t, len(best), merged.Data.Len())
	for i, v := range merged.Data.Data {
		if i > 0 {
			assert.True(t, merged.Data.Data[i-1].valid.Before(v.valid), "not strictly ascending at %d", i)
		}
		assert.Equal(t, best[v.valid.UnixNano()], v.lead, "lead at %s", v.valid)
	}
}

func TestMerge_IdempotentOnMergedSingleRun(t *testing.T) {
	first := timeseries.Merge(ensemble(
		run(at(0), rec{valid: at(0), lead: 0, tag: "a"}, rec{valid: at(6), lead: h(6), tag: "b"}),
		run(at(6), rec{valid: at(6), lead: 0, tag: "c"}, rec{valid: at(12), lead: h(6), tag: "d"}),
	))

	again := timeseries.Merge(ensemble(run(at(0), first.Data.Data...)))

	if diff := cmp.Diff(tags(first), tags(again)); diff != "" {
		t.Fatalf("merge not idempotent (-first +again):\n%s", diff)
	}
}
