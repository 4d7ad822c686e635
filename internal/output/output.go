// Package output renders analyzed ensembles and their merged series into
// text products, gnuplot images, and the JSON document shared by the
// streaming sinks.
package output

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
	"github.com/couchcryptid/sounding-graphs/internal/textfmt"
)

// Product suffixes.
const (
	KindEnsemble = "ens"
	KindMerged   = "mrg"
	KindClimo    = "cli"
	KindHeatMap  = "hm"
)

// FileName returns "{SITE}_{MODEL}_{kind}.dat" for meta.
func FileName(meta domain.MetaData, kind string) string {
	return fmt.Sprintf("%s_%s_%s.dat", meta.Site.ID, strings.ToUpper(meta.Model), kind)
}

// Products holds the rendered text of one delivery.
type Products struct {
	Ensemble []byte
	Merged   []byte
	Climo    []byte
	HeatMap  []byte
}

// ByKind maps each product suffix to its text.
func (p Products) ByKind() map[string][]byte {
	return map[string][]byte{
		KindEnsemble: p.Ensemble,
		KindMerged:   p.Merged,
		KindClimo:    p.Climo,
		KindHeatMap:  p.HeatMap,
	}
}

// Render writes the ensemble, merged, climatology, and heat map schemas.
// Climatology that cannot be looked up is logged and replaced by placeholder
// rows.
func Render(ctx context.Context, store climo.Store, logger *slog.Logger, r pipeline.Result) (Products, error) {
	var ensBuf, mrgBuf, cliBuf, hmBuf bytes.Buffer
	if err := textfmt.WriteEnsemble(&ensBuf, r.Ensemble); err != nil {
		return Products{}, fmt.Errorf("write ensemble: %w", err)
	}
	if err := textfmt.WriteMerged(&mrgBuf, r.Merged); err != nil {
		return Products{}, fmt.Errorf("write merged: %w", err)
	}
	if err := textfmt.WriteClimo(&cliBuf, r.Merged.Meta, climatology(ctx, store, logger, r.Merged.Meta)); err != nil {
		return Products{}, fmt.Errorf("write climatology: %w", err)
	}
	if err := textfmt.WriteHeatMap(&hmBuf, r.HeatMap); err != nil {
		return Products{}, fmt.Errorf("write heat map: %w", err)
	}
	return Products{
		Ensemble: ensBuf.Bytes(),
		Merged:   mrgBuf.Bytes(),
		Climo:    cliBuf.Bytes(),
		HeatMap:  hmBuf.Bytes(),
	}, nil
}

func climatology(ctx context.Context, store climo.Store, logger *slog.Logger, meta domain.MetaData) []climo.HourlyDeciles {
	rows, err := climo.Lookup(ctx, store, meta, climo.ElementHDW)
	if err != nil {
		logger.Warn("climatology unavailable, using placeholder",
			"site", meta.Site.ID, "model", meta.Model, "error", err)
		return climo.Placeholder(meta.Start, meta.End)
	}
	return rows
}

// Document is the JSON form of a merged series published by streaming sinks.
// Values that could not be computed are null.
type Document struct {
	Site     string    `json:"site"`
	SiteName string    `json:"site_name,omitempty"`
	Model    string    `json:"model"`
	Start    time.Time `json:"start"`
	Now      time.Time `json:"now"`
	End      time.Time `json:"end"`
	Runs     int       `json:"runs"`
	Points   []Point   `json:"points"`
}

// Point is one merged valid time.
type Point struct {
	ValidTime time.Time `json:"valid_time"`
	LeadHours int       `json:"lead_hours"`
	HDW       *float64  `json:"hdw"`
	T0        *float64  `json:"t0"`
	DT0       *float64  `json:"dt0"`
	E0        *float64  `json:"e0"`
	DE        *float64  `json:"de"`
}

// NewDocument builds the document for one delivery.
func NewDocument(r pipeline.Result) Document {
	meta := r.Merged.Meta
	d := Document{
		Site:     meta.Site.ID,
		SiteName: meta.Site.Name,
		Model:    meta.Model,
		Start:    meta.Start.UTC(),
		Now:      meta.Now.UTC(),
		End:      meta.End.UTC(),
		Runs:     len(r.Ensemble.Runs),
		Points:   make([]Point, 0, r.Merged.Data.Len()),
	}
	for _, a := range r.Merged.Data.Data {
		d.Points = append(d.Points, Point{
			ValidTime: a.Valid.UTC(),
			LeadHours: a.LeadHours,
			HDW:       finite(a.HDW),
			T0:        finite(a.T0),
			DT0:       finite(a.DT0),
			E0:        finite(a.E0),
			DE:        finite(a.DE),
		})
	}
	return d
}

// Key identifies the series a document describes.
func (d Document) Key() string {
	return d.Site + "/" + d.Model
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
