package sounding

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// TimeLayout is the layout of the TIME header value.
const TimeLayout = "060102/1504"

const missingValue = -9999.0

// DefaultColumns is used when a file names no columns.
var DefaultColumns = []string{"PRES", "TMPC", "DWPC", "HGHT", "SKNT", "DRCT"}

// ErrMalformed is returned when sounding text cannot be parsed.
var ErrMalformed = errors.New("malformed sounding")

var headerPair = regexp.MustCompile(`([A-Z]+)\s*=\s*(\S+)`)

type block struct {
	profile Profile
	stim    int
	hasStim bool
	columns []string
	values  []float64
}

// origin returns the init time implied by the first block.
func origin(first block) time.Time {
	if first.hasStim {
		return first.profile.Valid.Add(-time.Duration(first.stim) * time.Hour)
	}
	return first.profile.Valid
}

// InitTime returns the model initialization time of the run in raw.
func InitTime(raw string) (time.Time, error) {
	blocks, err := parseBlocks(raw)
	if err != nil {
		return time.Time{}, err
	}
	if len(blocks) == 0 {
		return time.Time{}, fmt.Errorf("init time: %w", domain.ErrNoData)
	}
	return origin(blocks[0]), nil
}

// Parse decodes raw into the profiles valid within [start, end]. It reports
// false when the text is malformed or nothing falls in the window.
func Parse(raw string, start, end time.Time) (timeseries.TimeSeries[Profile], bool) {
	blocks, err := parseBlocks(raw)
	if err != nil || len(blocks) == 0 {
		return timeseries.TimeSeries[Profile]{}, false
	}

	init := origin(blocks[0])
	var out timeseries.TimeSeries[Profile]
	for _, b := range blocks {
		p := b.profile
		if b.hasStim {
			p.Lead = time.Duration(b.stim) * time.Hour
		} else {
			p.Lead = p.Valid.Sub(init)
		}
		p.HasLead = p.Lead >= 0
		if p.Valid.Before(start) || p.Valid.After(end) {
			continue
		}
		out.Data = append(out.Data, p)
	}
	return out, len(out.Data) > 0
}

func parseBlocks(raw string) ([]block, error) {
	var (
		blocks   []block
		cur      *block
		defaults = DefaultColumns
		lineNo   int
	)

	flush := func() error {
		if cur == nil {
			return nil
		}
		if err := cur.build(defaults); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		blocks = append(blocks, *cur)
		cur = nil
		return nil
	}

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "SNPARM"):
			_, v, _ := strings.Cut(line, "=")
			defaults = strings.Split(strings.TrimSpace(v), ";")
		case strings.HasPrefix(line, "STN ") || line == "STN":
			// Surface section; profiles are complete.
			if err := flush(); err != nil {
				return nil, err
			}
			return blocks, nil
		case strings.HasPrefix(line, "STID"):
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &block{}
			if err := cur.header(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case cur == nil:
			// Preamble before the first profile.
		case strings.Contains(line, "="):
			if err := cur.header(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case unicode.IsLetter(rune(line[0])):
			if len(cur.values) == 0 {
				cur.columns = append(cur.columns, strings.Fields(line)...)
			}
		default:
			for _, f := range strings.Fields(line) {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %q: %w", lineNo, f, ErrMalformed)
				}
				cur.values = append(cur.values, v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan sounding: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (b *block) header(line string) error {
	for _, m := range headerPair.FindAllStringSubmatch(line, -1) {
		key, val := m[1], m[2]
		switch key {
		case "STID":
			b.profile.Station = val
		case "STNM":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("station number %q: %w", val, ErrMalformed)
			}
			b.profile.StationNum = n
		case "TIME":
			t, err := time.Parse(TimeLayout, val)
			if err != nil {
				return fmt.Errorf("time %q: %w", val, ErrMalformed)
			}
			b.profile.Valid = t.UTC()
		case "STIM":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("forecast hour %q: %w", val, ErrMalformed)
			}
			b.stim, b.hasStim = n, true
		case "SELV":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("elevation %q: %w", val, ErrMalformed)
			}
			b.profile.Elevation = v
		}
	}
	return nil
}

func (b *block) build(defaults []string) error {
	if b.profile.Valid.IsZero() {
		return fmt.Errorf("profile %s has no time: %w", b.profile.Station, ErrMalformed)
	}
	cols := b.columns
	if len(cols) == 0 {
		cols = defaults
	}
	if len(cols) == 0 || len(b.values)%len(cols) != 0 {
		return fmt.Errorf("profile %s: %d values for %d columns: %w",
			b.profile.Station, len(b.values), len(cols), ErrMalformed)
	}

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	if _, ok := index["PRES"]; !ok {
		return fmt.Errorf("profile %s has no PRES column: %w", b.profile.Station, ErrMalformed)
	}

	get := func(row []float64, name string) float64 {
		i, ok := index[name]
		if !ok || row[i] == missingValue {
			return math.NaN()
		}
		return row[i]
	}

	for i := 0; i < len(b.values); i += len(cols) {
		row := b.values[i : i+len(cols)]
		b.profile.Levels = append(b.profile.Levels, Level{
			Pressure:      get(row, "PRES"),
			Temperature:   get(row, "TMPC"),
			DewPoint:      get(row, "DWPC"),
			Height:        get(row, "HGHT"),
			WindSpeed:     get(row, "SKNT"),
			WindDirection: get(row, "DRCT"),
		})
	}
	return nil
}
