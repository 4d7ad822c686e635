package pipeline

import (
	"github.com/couchcryptid/sounding-graphs/internal/message"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// Transform parses every run of data within its window and analyzes each
// profile, returning both the parsed profiles and their analysis. Runs that
// fail to parse or yield nothing are dropped; false means no run survived.
func Transform(data message.StringData) (timeseries.EnsembleSeries[sounding.Profile], timeseries.EnsembleSeries[sounding.AnalyzedData], bool) {
	list := timeseries.EnsembleList[string](data)
	start, end := list.Meta.Start, list.Meta.End

	parsed := timeseries.FilterMap(list, func(raw string) (timeseries.TimeSeries[sounding.Profile], bool) {
		return sounding.Parse(raw, start, end)
	})
	if parsed.IsEmpty() {
		return parsed, timeseries.EnsembleSeries[sounding.AnalyzedData]{}, false
	}

	analyzed := timeseries.FilterMapInner(parsed, sounding.Analyze)
	if analyzed.IsEmpty() {
		return parsed, analyzed, false
	}
	return parsed, analyzed, true
}
