package source_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/message"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

var kmso = domain.Site{ID: "kmso", StationNum: 727730, Name: "Missoula", State: "MT"}

func freezeClock(t *testing.T, now time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func TestRangeLoader_LoadsRunsInWindow(t *testing.T) {
	arc := newFakeArchive(kmso)
	arc.addRun("kmso", domain.GFS, at("2017-09-02-06"), rawRun(at("2017-09-02-06")))
	arc.addRun("kmso", domain.GFS, at("2017-09-02-00"), rawRun(at("2017-09-02-00")))

	ref := at("2017-09-02-12")
	var rec recorder
	source.RangeLoader{Connect: arc.connect, SiteID: "kmso", Model: domain.GFS, Ref: ref, DaysBack: 2}.
		Load(context.Background(), &rec)

	data, errs := rec.split()
	require.Empty(t, errs)
	require.Len(t, data, 1)

	meta := data[0].Meta
	assert.Equal(t, kmso, meta.Site)
	assert.Equal(t, "gfs", meta.Model)
	assert.Equal(t, ref.Add(-48*time.Hour), meta.Start)
	assert.Equal(t, ref, meta.Now)
	assert.Equal(t, ref.Add(7*24*time.Hour), meta.End)

	require.Len(t, data[0].Runs, 2)
	assert.Equal(t, at("2017-09-02-00"), data[0].Runs[0].InitTime)
	assert.Equal(t, rawRun(at("2017-09-02-00")), data[0].Runs[0].Data)
	assert.Equal(t, at("2017-09-02-06"), data[0].Runs[1].InitTime)

	require.Len(t, arc.windows, 1)
	assert.Equal(t, window{meta.Start, meta.End}, arc.windows[0])
	assert.Equal(t, 1, arc.closed)
}

func TestRangeLoader_NoRunsIsEmptyData(t *testing.T) {
	arc := newFakeArchive(kmso)

	var rec recorder
	source.RangeLoader{Connect: arc.connect, SiteID: "kmso", Model: domain.NAM, Ref: at("2017-09-02-12"), DaysBack: 2}.
		Load(context.Background(), &rec)

	data, errs := rec.split()
	assert.Empty(t, errs)
	require.Len(t, data, 1)
	assert.Empty(t, data[0].Runs)
	assert.Equal(t, at("2017-09-06-12"), data[0].Meta.End)
}

func TestRangeLoader_Failures(t *testing.T) {
	ref := at("2017-09-02-12")
	tests := []struct {
		name     string
		setup    func() source.ConnectFunc
		siteID   string
		wantKind domain.ErrorKind
		wantIs   error
	}{
		{
			name:     "connect",
			setup:    func() source.ConnectFunc { return failConnect },
			siteID:   "kmso",
			wantKind: domain.KindConnection,
		},
		{
			name:     "unknown site",
			setup:    func() source.ConnectFunc { return newFakeArchive(kmso).connect },
			siteID:   "kxxx",
			wantKind: domain.KindLookup,
			wantIs:   domain.ErrNotFound,
		},
		{
			name: "list runs",
			setup: func() source.ConnectFunc {
				arc := newFakeArchive(kmso)
				arc.initsErr = errors.New("index corrupt")
				return arc.connect
			},
			siteID:   "kmso",
			wantKind: domain.KindIO,
		},
		{
			name: "retrieve",
			setup: func() source.ConnectFunc {
				arc := newFakeArchive(kmso)
				arc.addRun("kmso", domain.GFS, at("2017-09-02-00"), "x")
				arc.addRun("kmso", domain.GFS, at("2017-09-02-06"), "y")
				arc.retrieveErr["kmso"] = errors.New("disk error")
				return arc.connect
			},
			siteID:   "kmso",
			wantKind: domain.KindIO,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			source.RangeLoader{Connect: tt.setup(), SiteID: tt.siteID, Model: domain.GFS, Ref: ref, DaysBack: 1}.
				Load(context.Background(), &rec)

			data, errs := rec.split()
			assert.Empty(t, data)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantKind, errs[0].Kind)
			assert.Equal(t, tt.siteID, errs[0].Site)
			assert.Equal(t, "gfs", errs[0].Model)
			if tt.wantIs != nil {
				assert.ErrorIs(t, errs[0], tt.wantIs)
			}
		})
	}
}

func TestSiteLoader_UsesCurrentTime(t *testing.T) {
	now := at("2017-09-02-12")
	freezeClock(t, now)

	arc := newFakeArchive(kmso)
	var rec recorder
	source.SiteLoader{Connect: arc.connect, SiteID: "kmso", Model: domain.NAM4KM, DaysBack: 1}.
		Load(context.Background(), &rec)

	data, errs := rec.split()
	require.Empty(t, errs)
	require.Len(t, data, 1)
	assert.Equal(t, now, data[0].Meta.Now)
	assert.Equal(t, now.Add(-24*time.Hour), data[0].Meta.Start)
	assert.Equal(t, now.Add(3*24*time.Hour), data[0].Meta.End)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileLoader_LoadsAllFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "run1.buf", rawRun(at("2017-09-02-00")))
	p2 := writeFile(t, dir, "run2.buf", rawRun(at("2017-09-02-06")))

	start, end := at("2017-09-02-00"), at("2017-09-05-00")
	var rec recorder
	source.FileLoader{Site: kmso, Model: "gfs", Start: start, End: end, Paths: []string{p1, p2}}.
		Load(context.Background(), &rec)

	data, errs := rec.split()
	require.Empty(t, errs)
	require.Len(t, data, 1)

	meta := data[0].Meta
	assert.Equal(t, start, meta.Start)
	assert.Equal(t, start, meta.Now)
	assert.Equal(t, end, meta.End)
	require.Len(t, data[0].Runs, 2)
	assert.Equal(t, at("2017-09-02-00"), data[0].Runs[0].InitTime)
	assert.Equal(t, at("2017-09-02-06"), data[0].Runs[1].InitTime)
}

func TestFileLoader_UnreadableFileIsOneError(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "run1.buf", rawRun(at("2017-09-02-00")))
	missing := filepath.Join(dir, "missing.buf")

	var rec recorder
	source.FileLoader{Site: kmso, Model: "gfs", Start: at("2017-09-02-00"), End: at("2017-09-05-00"), Paths: []string{good, missing}}.
		Load(context.Background(), &rec)

	data, errs := rec.split()
	assert.Empty(t, data)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindIO, errs[0].Kind)
	assert.ErrorIs(t, errs[0], os.ErrNotExist)
}

func TestFileLoader_UndatableFileIsParseError(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.buf", "not a sounding\n")

	var rec recorder
	source.FileLoader{Site: kmso, Model: "gfs", Paths: []string{bad}}.Load(context.Background(), &rec)

	data, errs := rec.split()
	assert.Empty(t, data)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindParse, errs[0].Kind)
}

func TestAllSitesLoader_OneMessagePerSiteAndModel(t *testing.T) {
	now := at("2017-09-02-12")
	freezeClock(t, now)

	good := domain.Site{ID: "kmso"}
	bad := domain.Site{ID: "kgpi"}
	arc := newFakeArchive(good, bad)
	for _, m := range domain.Models() {
		arc.addRun("kmso", m, at("2017-09-02-00"), rawRun(at("2017-09-02-00")))
		arc.addRun("kgpi", m, at("2017-09-02-00"), rawRun(at("2017-09-02-00")))
	}
	arc.retrieveErr["kgpi"] = errors.New("corrupt run")

	var rec recorder
	source.AllSitesLoader{Connect: arc.connect, DaysBack: 2}.Load(context.Background(), &rec)

	data, errs := rec.split()
	require.Len(t, data, 3)
	require.Len(t, errs, 3)

	models := map[string]bool{}
	for _, d := range data {
		assert.Equal(t, "kmso", d.Meta.Site.ID)
		assert.Equal(t, now, d.Meta.Now)
		assert.Len(t, d.Runs, 1)
		models[d.Meta.Model] = true
	}
	assert.Equal(t, map[string]bool{"gfs": true, "nam": true, "nam4km": true}, models)

	for _, e := range errs {
		assert.Equal(t, "kgpi", e.Site)
		assert.Equal(t, domain.KindIO, e.Kind)
	}
	assert.Equal(t, 1, arc.closed)
}

func TestAllSitesLoader_Failures(t *testing.T) {
	t.Run("connect", func(t *testing.T) {
		var rec recorder
		source.AllSitesLoader{Connect: failConnect}.Load(context.Background(), &rec)

		data, errs := rec.split()
		assert.Empty(t, data)
		require.Len(t, errs, 1)
		assert.Equal(t, domain.KindConnection, errs[0].Kind)
	})

	t.Run("list sites", func(t *testing.T) {
		arc := newFakeArchive()
		arc.sitesErr = errors.New("no table")

		var rec recorder
		source.AllSitesLoader{Connect: arc.connect}.Load(context.Background(), &rec)

		data, errs := rec.split()
		assert.Empty(t, data)
		require.Len(t, errs, 1)
		assert.Equal(t, domain.KindIO, errs[0].Kind)
	})
}

func TestLoaders_LogCloseFailure(t *testing.T) {
	ref := at("2017-09-02-12")
	tests := map[string]func(arc *fakeArchive, logger *slog.Logger) source.Loader{
		"range": func(arc *fakeArchive, logger *slog.Logger) source.Loader {
			return source.RangeLoader{Connect: arc.connect, SiteID: "kmso", Model: domain.GFS, Ref: ref, DaysBack: 1, Logger: logger}
		},
		"all sites": func(arc *fakeArchive, logger *slog.Logger) source.Loader {
			return source.AllSitesLoader{Connect: arc.connect, Models: []domain.Model{domain.GFS}, DaysBack: 1, Logger: logger}
		},
	}
	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			freezeClock(t, ref)
			arc := newFakeArchive(kmso)
			arc.addRun("kmso", domain.GFS, at("2017-09-02-00"), rawRun(at("2017-09-02-00")))
			arc.closeErr = errors.New("database is locked")

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			var rec recorder
			build(arc, logger).Load(context.Background(), &rec)

			data, errs := rec.split()
			assert.Len(t, data, 1, "loaded data still arrives")
			assert.Empty(t, errs)
			assert.Equal(t, 1, arc.closed)
			assert.Contains(t, buf.String(), "close archive failed")
			assert.Contains(t, buf.String(), "database is locked")
		})
	}
}

func TestSpawn_QueueClosesAfterAllLoaders(t *testing.T) {
	arc := newFakeArchive(kmso)
	arc.addRun("kmso", domain.GFS, at("2017-09-02-00"), rawRun(at("2017-09-02-00")))
	ref := at("2017-09-02-12")

	q := message.NewQueue()
	source.Spawn(context.Background(), q,
		source.RangeLoader{Connect: arc.connect, SiteID: "kmso", Model: domain.GFS, Ref: ref, DaysBack: 1},
		source.RangeLoader{Connect: arc.connect, SiteID: "kmso", Model: domain.NAM, Ref: ref, DaysBack: 1},
		source.FileLoader{Site: kmso, Model: "gfs", Paths: []string{filepath.Join(t.TempDir(), "nope")}},
	)
	q.Seal()

	var rec recorder
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case m, ok := <-q.Messages():
			if !ok {
				done = true
				continue
			}
			rec.Send(m)
		case <-timeout:
			t.Fatal("queue did not close")
		}
	}

	data, errs := rec.split()
	assert.Len(t, data, 2)
	assert.Len(t, errs, 1)
}
