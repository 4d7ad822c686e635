// Command validate re-reads the text products saved by graphs and checks the
// invariants of every merged series: strictly increasing valid times, values
// inside the series window, and complete companion files.
//
// Usage:
//
//	go run ./cmd/validate -dir images
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/output"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/textfmt"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type mergedFile struct {
	path   string
	series timeseries.MergedSeries[sounding.AnalyzedData]
}

func main() {
	dir := flag.String("dir", "images", "directory containing saved products")
	flag.Parse()

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Merged Series Validation ===")
	fmt.Println()

	files, err := loadMerged(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load merged series: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no *_%s.dat files in %s\n", output.KindMerged, dir)
		return 1
	}

	phases := []*phase{
		validateOrdering(files),
		validateWindow(files),
		validateCompanions(files),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	points := 0
	for _, f := range files {
		points += f.series.Data.Len()
	}
	fmt.Println()
	fmt.Printf("Series: %d files, %d points\n", len(files), points)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadMerged(dir string) ([]mergedFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*_"+output.KindMerged+".dat"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	files := make([]mergedFile, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		series, err := textfmt.ParseMerged(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		files = append(files, mergedFile{path: path, series: series})
	}
	return files, nil
}

// ── Phase 1: Ordering ──
// Valid times strictly increase, so each appears once.

func validateOrdering(files []mergedFile) *phase {
	p := &phase{name: "Phase 1: Ordering (unique, ascending)"}
	for _, f := range files {
		data := f.series.Data.Data
		for i := 1; i < len(data); i++ {
			if !data[i].Valid.After(data[i-1].Valid) {
				p.errorf("%s row %d: %s does not follow %s", filepath.Base(f.path), i+1,
					textfmt.FormatTime(data[i].Valid), textfmt.FormatTime(data[i-1].Valid))
			}
		}
	}
	return p
}

// ── Phase 2: Window ──
// Every point lies in [Start, End] with a non-negative lead time.

func validateWindow(files []mergedFile) *phase {
	p := &phase{name: "Phase 2: Window (start <= valid <= end)"}
	for _, f := range files {
		meta := f.series.Meta
		name := filepath.Base(f.path)
		if meta.Start.IsZero() || meta.End.IsZero() {
			p.errorf("%s: header lacks start or end", name)
			continue
		}
		if meta.Now.Before(meta.Start) || meta.Now.After(meta.End) {
			p.errorf("%s: now %s outside window", name, textfmt.FormatTime(meta.Now))
		}
		for i, a := range f.series.Data.Data {
			if !meta.Contains(a.Valid) {
				p.errorf("%s row %d: %s outside %s..%s", name, i+1, textfmt.FormatTime(a.Valid),
					textfmt.FormatTime(meta.Start), textfmt.FormatTime(meta.End))
			}
			if a.LeadHours < 0 {
				p.errorf("%s row %d: negative lead time %d", name, i+1, a.LeadHours)
			}
		}
	}
	return p
}

// ── Phase 3: Companions ──
// Each merged file has ensemble, climatology, and heat map files beside it.
// The climatology covers every hour of the window and the heat map holds the
// full warming range for each of its valid times.

func validateCompanions(files []mergedFile) *phase {
	p := &phase{name: "Phase 3: Companions (ens, cli, hm)"}
	for _, f := range files {
		base := strings.TrimSuffix(f.path, output.KindMerged+".dat")
		ens, cli := base+output.KindEnsemble+".dat", base+output.KindClimo+".dat"

		if _, err := os.Stat(ens); err != nil {
			p.errorf("%s: %v", filepath.Base(ens), err)
		}
		rows, err := countDataRows(cli)
		if err != nil {
			p.errorf("%s: %v", filepath.Base(cli), err)
			continue
		}
		meta := f.series.Meta
		want := int(meta.End.Sub(meta.Start.Truncate(time.Hour)).Hours()) + 1
		if rows != want {
			p.errorf("%s: %d hourly rows, want %d", filepath.Base(cli), rows, want)
		}

		hm := base + output.KindHeatMap + ".dat"
		rows, err = countDataRows(hm)
		if err != nil {
			p.errorf("%s: %v", filepath.Base(hm), err)
			continue
		}
		const perTime = sounding.HeatMapSteps + 1
		if rows%perTime != 0 {
			p.errorf("%s: %d rows do not form whole blocks of %d", filepath.Base(hm), rows, perTime)
		}
	}
	return p
}

// countDataRows counts lines that are neither blank, comments, nor the
// column row.
func countDataRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "valid_time") {
			continue
		}
		n++
	}
	return n, sc.Err()
}
