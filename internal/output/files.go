package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
)

// Files saves the rendered products of each delivery as
// {dir}/{SITE}_{MODEL}_{ens,mrg,cli,hm}.dat.
type Files struct {
	dir    string
	climo  climo.Store
	logger *slog.Logger
}

func NewFiles(dir string, store climo.Store, logger *slog.Logger) *Files {
	return &Files{dir: dir, climo: store, logger: logger}
}

func (f *Files) Deliver(ctx context.Context, r pipeline.Result) error {
	p, err := Render(ctx, f.climo, f.logger, r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	meta := r.Merged.Meta
	for kind, data := range p.ByKind() {
		path := filepath.Join(f.dir, FileName(meta, kind))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
	}
	f.logger.Debug("saved products", "site", meta.Site.ID, "model", meta.Model, "dir", f.dir)
	return nil
}
