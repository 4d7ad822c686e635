package source_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/message"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

// --- fake archive ---

type fakeArchive struct {
	mu sync.Mutex

	sites        []domain.Site
	runs         map[string]map[time.Time]string
	retrieveErr  map[string]error
	initsErr     error
	sitesErr     error
	closeErr     error
	siteInfoCall int
	closed       int
	windows      []window
}

type window struct{ start, end time.Time }

func newFakeArchive(sites ...domain.Site) *fakeArchive {
	return &fakeArchive{
		sites:       sites,
		runs:        make(map[string]map[time.Time]string),
		retrieveErr: make(map[string]error),
	}
}

func runKey(site string, model domain.Model) string {
	return fmt.Sprintf("%s/%s", site, model)
}

func (f *fakeArchive) addRun(site string, model domain.Model, init time.Time, raw string) {
	k := runKey(site, model)
	if f.runs[k] == nil {
		f.runs[k] = make(map[time.Time]string)
	}
	f.runs[k][init] = raw
}

func (f *fakeArchive) connect(context.Context) (source.Archive, error) {
	return f, nil
}

func failConnect(context.Context) (source.Archive, error) {
	return nil, errors.New("archive offline")
}

func (f *fakeArchive) SiteInfo(_ context.Context, id string) (domain.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.siteInfoCall++
	for _, s := range f.sites {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Site{}, fmt.Errorf("site %s: %w", id, domain.ErrNotFound)
}

func (f *fakeArchive) InitTimesValidBetween(_ context.Context, siteID string, model domain.Model, start, end time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, window{start, end})
	if f.initsErr != nil {
		return nil, f.initsErr
	}
	var inits []time.Time
	for init := range f.runs[runKey(siteID, model)] {
		inits = append(inits, init)
	}
	slices.SortFunc(inits, func(a, b time.Time) int { return a.Compare(b) })
	return inits, nil
}

func (f *fakeArchive) Retrieve(_ context.Context, siteID string, model domain.Model, init time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.retrieveErr[siteID]; err != nil {
		return "", err
	}
	raw, ok := f.runs[runKey(siteID, model)][init]
	if !ok {
		return "", domain.ErrNotFound
	}
	return raw, nil
}

func (f *fakeArchive) Sites(context.Context) ([]domain.Site, error) {
	if f.sitesErr != nil {
		return nil, f.sitesErr
	}
	return f.sites, nil
}

func (f *fakeArchive) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.closeErr
}

// --- recording sender ---

type recorder struct {
	mu       sync.Mutex
	payloads []message.Payload
}

func (r *recorder) Send(m *message.Message) {
	p, err := m.Take()
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *recorder) split() ([]message.StringData, []*domain.SourceError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var data []message.StringData
	var errs []*domain.SourceError
	for _, p := range r.payloads {
		switch p := p.(type) {
		case message.StringData:
			data = append(data, p)
		case message.SourceError:
			var se *domain.SourceError
			if !errors.As(p.Err, &se) {
				panic(fmt.Sprintf("unclassified source error: %v", p.Err))
			}
			errs = append(errs, se)
		}
	}
	return data, errs
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02-15", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rawRun(init time.Time) string {
	return fmt.Sprintf("STID = KMSO STNM = 727730 TIME = %s\nSTIM = 0\n\nPRES TMPC HGHT\n900 20 1000\n",
		init.Format("060102/1504"))
}
