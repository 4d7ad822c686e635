package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/climo"
)

const schema = `
CREATE TABLE IF NOT EXISTS climo_deciles (
	site_id     TEXT     NOT NULL,
	model       TEXT     NOT NULL,
	element     TEXT     NOT NULL,
	day_of_year SMALLINT NOT NULL CHECK (day_of_year BETWEEN 1 AND 366),
	hour_of_day SMALLINT NOT NULL CHECK (hour_of_day BETWEEN 0 AND 23),
	p10 DOUBLE PRECISION, p20 DOUBLE PRECISION, p30 DOUBLE PRECISION,
	p40 DOUBLE PRECISION, p50 DOUBLE PRECISION, p60 DOUBLE PRECISION,
	p70 DOUBLE PRECISION, p80 DOUBLE PRECISION, p90 DOUBLE PRECISION,
	PRIMARY KEY (site_id, model, element, day_of_year, hour_of_day)
)`

// ClimoStore reads hourly deciles from the climo_deciles table.
type ClimoStore struct {
	db *sql.DB
}

var _ climo.Store = (*ClimoStore)(nil)

func NewClimoStore(db *sql.DB) *ClimoStore {
	return &ClimoStore{db: db}
}

// EnsureSchema creates the climo_deciles table if it does not exist.
func (s *ClimoStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create climo schema: %w", err)
	}
	return nil
}

// HourlyDeciles returns one row per hour of [start, end]; hours without
// stored climatology are NaN.
func (s *ClimoStore) HourlyDeciles(ctx context.Context, siteID, model, element string, start, end time.Time) ([]climo.HourlyDeciles, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day_of_year, hour_of_day, p10, p20, p30, p40, p50, p60, p70, p80, p90
		FROM climo_deciles
		WHERE site_id = $1 AND model = $2 AND element = $3 AND day_of_year = ANY($4)`,
		siteID, model, element, daysOfYear(start, end))
	if err != nil {
		return nil, fmt.Errorf("query climo deciles: %w", err)
	}
	defer rows.Close()

	byKey := make(map[climo.Key]climo.Deciles)
	for rows.Next() {
		var (
			k    climo.Key
			vals [9]sql.NullFloat64
		)
		dest := []any{&k.DayOfYear, &k.Hour}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan climo deciles: %w", err)
		}
		d := climo.Missing()
		for i, v := range vals {
			if v.Valid {
				d[i] = v.Float64
			}
		}
		byKey[k] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate climo deciles: %w", err)
	}
	return climo.Expand(byKey, start, end), nil
}

// Upsert stores the deciles of one element at one key.
func (s *ClimoStore) Upsert(ctx context.Context, siteID, model, element string, k climo.Key, d climo.Deciles) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO climo_deciles
			(site_id, model, element, day_of_year, hour_of_day, p10, p20, p30, p40, p50, p60, p70, p80, p90)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (site_id, model, element, day_of_year, hour_of_day) DO UPDATE SET
			p10 = EXCLUDED.p10, p20 = EXCLUDED.p20, p30 = EXCLUDED.p30,
			p40 = EXCLUDED.p40, p50 = EXCLUDED.p50, p60 = EXCLUDED.p60,
			p70 = EXCLUDED.p70, p80 = EXCLUDED.p80, p90 = EXCLUDED.p90`,
		siteID, model, element, k.DayOfYear, k.Hour,
		d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[8])
	if err != nil {
		return fmt.Errorf("upsert climo deciles %s/%s/%s: %w", siteID, model, element, err)
	}
	return nil
}

// daysOfYear lists the distinct UTC days of year touched by [start, end].
func daysOfYear(start, end time.Time) []int32 {
	seen := make(map[int]bool)
	var days []int32
	for t := start.UTC().Truncate(time.Hour); !t.After(end); t = t.Add(time.Hour) {
		d := t.YearDay()
		if !seen[d] {
			seen[d] = true
			days = append(days, int32(d))
		}
	}
	return days
}
