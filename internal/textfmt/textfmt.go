// Package textfmt writes analyzed series in the whitespace separated text
// schemas read by gnuplot, and reads the merged schema back.
//
// Every document opens with a comment header and a blank line:
//
//	# Site: kmso
//	# Model: gfs
//	# Start: 2017-09-01-12
//	# Now: 2017-09-02-12
//	# End: 2017-09-09-12
//
// Timestamps use TimeLayout in UTC. Missing values are written as NaN.
package textfmt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// TimeLayout formats every timestamp in the schemas.
const TimeLayout = "2006-01-02-15"

const (
	ensembleColumns = "valid_time lead_time e0 de hdw"
	mergedColumns   = "valid_time lead_time dt0 e0 de hdw"
	climoColumns    = "valid_time p10 p20 p30 p40 p50 p60 p70 p80 p90"
	heatMapColumns  = "valid_time dt dry_cape wet_cape"
)

// ErrMalformed is returned when text does not follow the schema.
var ErrMalformed = errors.New("malformed series text")

// FormatTime formats t in UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteHeader writes the metadata comment block.
func WriteHeader(w io.Writer, meta domain.MetaData) error {
	_, err := fmt.Fprintf(w, "# Site: %s\n# Model: %s\n# Start: %s\n# Now: %s\n# End: %s\n\n",
		meta.Site.ID, meta.Model, FormatTime(meta.Start), FormatTime(meta.Now), FormatTime(meta.End))
	return err
}

// WriteEnsemble writes every run as a block introduced by its init time and
// terminated by a blank line.
func WriteEnsemble(w io.Writer, ens timeseries.EnsembleSeries[sounding.AnalyzedData]) error {
	bw := bufio.NewWriter(w)
	if err := WriteHeader(bw, ens.Meta); err != nil {
		return err
	}
	fmt.Fprintln(bw, ensembleColumns)
	for _, run := range ens.Runs {
		fmt.Fprintf(bw, "# init_time: %s\n", FormatTime(run.InitTime))
		for _, a := range run.Data.Data {
			fmt.Fprintf(bw, "%s %d %s %s %s\n", FormatTime(a.Valid), a.LeadHours, num(a.E0), num(a.DE), num(a.HDW))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// WriteMerged writes one row per valid time.
func WriteMerged(w io.Writer, m timeseries.MergedSeries[sounding.AnalyzedData]) error {
	bw := bufio.NewWriter(w)
	if err := WriteHeader(bw, m.Meta); err != nil {
		return err
	}
	fmt.Fprintln(bw, mergedColumns)
	for _, a := range m.Data.Data {
		fmt.Fprintf(bw, "%s %d %s %s %s %s\n",
			FormatTime(a.Valid), a.LeadHours, num(a.DT0), num(a.E0), num(a.DE), num(a.HDW))
	}
	return bw.Flush()
}

// WriteClimo writes hourly deciles of the window in meta.
func WriteClimo(w io.Writer, meta domain.MetaData, rows []climo.HourlyDeciles) error {
	bw := bufio.NewWriter(w)
	if err := WriteHeader(bw, meta); err != nil {
		return err
	}
	fmt.Fprintln(bw, climoColumns)
	for _, r := range rows {
		fields := make([]string, 0, len(r.Deciles)+1)
		fields = append(fields, FormatTime(r.ValidTime))
		for _, v := range r.Deciles {
			fields = append(fields, num(v))
		}
		fmt.Fprintln(bw, strings.Join(fields, " "))
	}
	return bw.Flush()
}

// WriteHeatMap writes every CAPE partition of each merged valid time, one
// block per valid time terminated by a blank line.
func WriteHeatMap(w io.Writer, m timeseries.MergedSeries[sounding.CapePartitions]) error {
	bw := bufio.NewWriter(w)
	if err := WriteHeader(bw, m.Meta); err != nil {
		return err
	}
	fmt.Fprintln(bw, heatMapColumns)
	for _, parts := range m.Data.Data {
		for _, cp := range parts {
			fmt.Fprintf(bw, "%s %s %s %s\n", FormatTime(cp.Valid), num(cp.DT), num(cp.Dry), num(cp.Wet))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// ParseMerged reads text written by WriteMerged. The site carries only its
// ID, and T0, which the schema omits, is NaN.
func ParseMerged(r io.Reader) (timeseries.MergedSeries[sounding.AnalyzedData], error) {
	var (
		out     timeseries.MergedSeries[sounding.AnalyzedData]
		lineNo  int
		columns bool
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			if err := parseHeader(&out.Meta, line); err != nil {
				return out, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case line == mergedColumns:
			columns = true
		case !columns:
			return out, fmt.Errorf("line %d: data before column row: %w", lineNo, ErrMalformed)
		default:
			a, err := parseMergedRow(line)
			if err != nil {
				return out, fmt.Errorf("line %d: %w", lineNo, err)
			}
			out.Data.Data = append(out.Data.Data, a)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan merged series: %w", err)
	}
	if !columns {
		return out, fmt.Errorf("missing column row: %w", ErrMalformed)
	}
	return out, nil
}

func parseHeader(meta *domain.MetaData, line string) error {
	key, val, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), ":")
	if !ok {
		return nil
	}
	val = strings.TrimSpace(val)

	var dst *time.Time
	switch key {
	case "Site":
		meta.Site = domain.Site{ID: val}
		return nil
	case "Model":
		meta.Model = val
		return nil
	case "Start":
		dst = &meta.Start
	case "Now":
		dst = &meta.Now
	case "End":
		dst = &meta.End
	default:
		return nil
	}
	t, err := time.Parse(TimeLayout, val)
	if err != nil {
		return fmt.Errorf("header %s %q: %w", key, val, ErrMalformed)
	}
	*dst = t
	return nil
}

func parseMergedRow(line string) (sounding.AnalyzedData, error) {
	f := strings.Fields(line)
	if len(f) != 6 {
		return sounding.AnalyzedData{}, fmt.Errorf("want 6 fields, got %d: %w", len(f), ErrMalformed)
	}
	valid, err := time.Parse(TimeLayout, f[0])
	if err != nil {
		return sounding.AnalyzedData{}, fmt.Errorf("valid time %q: %w", f[0], ErrMalformed)
	}
	lead, err := strconv.Atoi(f[1])
	if err != nil {
		return sounding.AnalyzedData{}, fmt.Errorf("lead time %q: %w", f[1], ErrMalformed)
	}
	var vals [4]float64
	for i, s := range f[2:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return sounding.AnalyzedData{}, fmt.Errorf("value %q: %w", s, ErrMalformed)
		}
		vals[i] = v
	}
	return sounding.AnalyzedData{
		Valid:     valid,
		LeadHours: lead,
		T0:        math.NaN(),
		DT0:       vals[0],
		E0:        vals[1],
		DE:        vals[2],
		HDW:       vals[3],
	}, nil
}
