package output

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
	"github.com/couchcryptid/sounding-graphs/internal/textfmt"
)

var (
	//go:embed scripts/initialize.plt
	gpInit string
	//go:embed scripts/ens_template.plt
	gpEnsemble string
	//go:embed scripts/mrg_template.plt
	gpMerged string
)

// Gnuplot streams plot scripts and inline data to a gnuplot process, one
// ensemble plot and one merged plot per delivery.
type Gnuplot struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	cmd    *exec.Cmd
	climo  climo.Store
	logger *slog.Logger
}

// StartGnuplot launches gnuplot at path writing images into outputDir.
func StartGnuplot(ctx context.Context, path, outputDir string, store climo.Store, logger *slog.Logger) (*Gnuplot, error) {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, "-p")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("gnuplot stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start gnuplot: %w", err)
	}

	g, err := newGnuplot(stdin, outputDir, store, logger)
	if err != nil {
		_ = stdin.Close()
		_ = cmd.Wait()
		return nil, err
	}
	g.closer = stdin
	g.cmd = cmd
	return g, nil
}

// NewGnuplotWriter writes the gnuplot program to w instead of a process.
func NewGnuplotWriter(w io.Writer, outputDir string, store climo.Store, logger *slog.Logger) (*Gnuplot, error) {
	return newGnuplot(w, outputDir, store, logger)
}

func newGnuplot(w io.Writer, outputDir string, store climo.Store, logger *slog.Logger) (*Gnuplot, error) {
	g := &Gnuplot{w: bufio.NewWriter(w), climo: store, logger: logger}
	g.w.WriteString(gpInit)
	fmt.Fprintf(g.w, "output_prefix=%s\n", quote(outputDir))
	if err := g.w.Flush(); err != nil {
		return nil, fmt.Errorf("initialize gnuplot: %w", err)
	}
	return g, nil
}

func (g *Gnuplot) Deliver(ctx context.Context, r pipeline.Result) error {
	ens, merged := r.Ensemble, r.Merged
	rows := climatology(ctx, g.climo, g.logger, merged.Meta)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.setVariables(ens.Meta, plotName(ens.Meta, "_ens.png"))
	g.w.WriteString("$data << EOD\n")
	if err := textfmt.WriteEnsemble(g.w, ens); err != nil {
		return fmt.Errorf("write ensemble plot data: %w", err)
	}
	g.w.WriteString("EOD\n")
	g.w.WriteString(gpEnsemble)

	g.setVariables(merged.Meta, plotName(merged.Meta, ".png"))
	g.w.WriteString("$data << EOD\n")
	if err := textfmt.WriteMerged(g.w, merged); err != nil {
		return fmt.Errorf("write merged plot data: %w", err)
	}
	g.w.WriteString("EOD\n$climo << EOD\n")
	if err := textfmt.WriteClimo(g.w, merged.Meta, rows); err != nil {
		return fmt.Errorf("write climatology plot data: %w", err)
	}
	g.w.WriteString("EOD\n$wet_dry_data << EOD\n")
	if err := textfmt.WriteHeatMap(g.w, r.HeatMap); err != nil {
		return fmt.Errorf("write heat map plot data: %w", err)
	}
	g.w.WriteString("EOD\n")
	g.w.WriteString(gpMerged)

	if err := g.w.Flush(); err != nil {
		return fmt.Errorf("send plot to gnuplot: %w", err)
	}
	return nil
}

func (g *Gnuplot) setVariables(meta domain.MetaData, outputName string) {
	fmt.Fprintf(g.w, "num_hours=%d\n", int(meta.End.Sub(meta.Now).Hours()))
	fmt.Fprintf(g.w, "now_time=%s\n", quote(textfmt.FormatTime(meta.Now)))
	fmt.Fprintf(g.w, "start_time=%s\n", quote(textfmt.FormatTime(meta.Start)))
	fmt.Fprintf(g.w, "end_time=%s\n", quote(textfmt.FormatTime(meta.End)))
	fmt.Fprintf(g.w, "main_title=%s\n", quote(fmt.Sprintf("Fire Weather Parameters - %s - %s",
		meta.Site.DisplayName(), strings.ToUpper(meta.Model))))
	fmt.Fprintf(g.w, "output_name=%s\n", quote(outputName))
}

// Close ends the gnuplot program and waits for the process to exit.
func (g *Gnuplot) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.w.Flush(); err != nil {
		return fmt.Errorf("flush gnuplot: %w", err)
	}
	if g.closer == nil {
		return nil
	}
	if err := g.closer.Close(); err != nil {
		return fmt.Errorf("close gnuplot stdin: %w", err)
	}
	if err := g.cmd.Wait(); err != nil {
		return fmt.Errorf("gnuplot exited: %w", err)
	}
	return nil
}

func plotName(meta domain.MetaData, suffix string) string {
	return meta.Site.ID + "_" + strings.ToUpper(meta.Model) + suffix
}

// quote returns s as a double quoted gnuplot string.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
