package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/couchcryptid/sounding-graphs/internal/adapter/sqlite/migrations"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

// Archive is a sounding archive backed by one SQLite file.
type Archive struct {
	db   *sql.DB
	path string
}

var _ source.Archive = (*Archive)(nil)

// Open opens or creates the archive at path and applies pending migrations.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	a, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := a.migrate(migrations.FS); err != nil {
		a.db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return a, nil
}

// Connect returns a source.ConnectFunc that opens the existing archive at
// path for each loader.
func Connect(path string) source.ConnectFunc {
	return func(ctx context.Context) (source.Archive, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a, err := open(path)
		if err != nil {
			return nil, err
		}
		if err := a.db.PingContext(ctx); err != nil {
			a.db.Close()
			return nil, fmt.Errorf("ping archive: %w", err)
		}
		return a, nil
	}
}

func open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Archive{db: db, path: path}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// migrate runs all pending migrations.
func (a *Archive) migrate(fsys fs.FS) error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := a.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := a.db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := a.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// SiteInfo returns the site with the given ID.
func (a *Archive) SiteInfo(ctx context.Context, id string) (domain.Site, error) {
	var s domain.Site
	err := a.db.QueryRowContext(ctx,
		`SELECT id, station_num, name, state, time_zone, notes FROM sites WHERE id = ?`, id,
	).Scan(&s.ID, &s.StationNum, &s.Name, &s.State, &s.TimeZone, &s.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Site{}, fmt.Errorf("site %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Site{}, fmt.Errorf("query site %s: %w", id, err)
	}
	return s, nil
}

// Sites returns every archived site ordered by ID.
func (a *Archive) Sites(ctx context.Context) ([]domain.Site, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, station_num, name, state, time_zone, notes FROM sites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []domain.Site
	for rows.Next() {
		var s domain.Site
		if err := rows.Scan(&s.ID, &s.StationNum, &s.Name, &s.State, &s.TimeZone, &s.Notes); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

// InitTimesValidBetween returns, in ascending order, the init times of runs
// with at least one sounding valid in [start, end].
func (a *Archive) InitTimesValidBetween(ctx context.Context, siteID string, model domain.Model, start, end time.Time) ([]time.Time, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT init_time FROM runs
		WHERE site_id = ? AND model = ? AND first_valid <= ? AND last_valid >= ?
		ORDER BY init_time`,
		siteID, model.String(), end.Unix(), start.Unix())
	if err != nil {
		return nil, fmt.Errorf("query runs for %s/%s: %w", siteID, model, err)
	}
	defer rows.Close()

	var inits []time.Time
	for rows.Next() {
		var unix int64
		if err := rows.Scan(&unix); err != nil {
			return nil, fmt.Errorf("scan init time: %w", err)
		}
		inits = append(inits, time.Unix(unix, 0).UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return inits, nil
}

// Retrieve returns the raw text of one run.
func (a *Archive) Retrieve(ctx context.Context, siteID string, model domain.Model, init time.Time) (string, error) {
	var raw string
	err := a.db.QueryRowContext(ctx,
		`SELECT raw FROM runs WHERE site_id = ? AND model = ? AND init_time = ?`,
		siteID, model.String(), init.Unix(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("run %s/%s %s: %w", siteID, model, init.UTC().Format(time.RFC3339), domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query run: %w", err)
	}
	return raw, nil
}

// AddSite inserts or updates a site.
func (a *Archive) AddSite(ctx context.Context, s domain.Site) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sites (id, station_num, name, state, time_zone, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			station_num = excluded.station_num,
			name = excluded.name,
			state = excluded.state,
			time_zone = excluded.time_zone,
			notes = excluded.notes`,
		s.ID, s.StationNum, s.Name, s.State, s.TimeZone, s.Notes)
	if err != nil {
		return fmt.Errorf("save site %s: %w", s.ID, err)
	}
	return nil
}

// AddRun stores the raw text of one run, replacing any run with the same
// init time. The init time and valid range are read from raw.
func (a *Archive) AddRun(ctx context.Context, siteID string, model domain.Model, raw string) error {
	init, err := sounding.InitTime(raw)
	if err != nil {
		return fmt.Errorf("read init time: %w", err)
	}
	profiles, ok := sounding.Parse(raw, time.Time{}, time.Unix(1<<40, 0))
	if !ok {
		return fmt.Errorf("parse run %s/%s: %w", siteID, model, sounding.ErrMalformed)
	}
	first, last := profiles.Data[0].Valid, profiles.Data[0].Valid
	for _, p := range profiles.Data[1:] {
		if p.Valid.Before(first) {
			first = p.Valid
		}
		if p.Valid.After(last) {
			last = p.Valid
		}
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO runs (site_id, model, init_time, first_valid, last_valid, raw)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, model, init_time) DO UPDATE SET
			first_valid = excluded.first_valid,
			last_valid = excluded.last_valid,
			raw = excluded.raw`,
		siteID, model.String(), init.Unix(), first.Unix(), last.Unix(), raw)
	if err != nil {
		return fmt.Errorf("save run %s/%s: %w", siteID, model, err)
	}
	return nil
}
