package climo

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoKey struct {
	siteID, model, element string
	start, end             time.Time
}

// Memo remembers the most recent successful lookup of a Store. Sinks that
// render the same delivery share one query; the next delivery's window
// replaces the entry. Failed lookups are not remembered.
type Memo struct {
	store Store

	mu   sync.Mutex
	key  memoKey
	rows []HourlyDeciles
	ok   bool
}

func NewMemo(store Store) *Memo {
	return &Memo{store: store}
}

func (m *Memo) HourlyDeciles(ctx context.Context, siteID, model, element string, start, end time.Time) ([]HourlyDeciles, error) {
	key := memoKey{siteID: siteID, model: model, element: element, start: start.UTC(), end: end.UTC()}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ok && m.key == key {
		return slices.Clone(m.rows), nil
	}

	rows, err := m.store.HourlyDeciles(ctx, siteID, model, element, start, end)
	if err != nil {
		return nil, err
	}
	m.key, m.rows, m.ok = key, slices.Clone(rows), true
	return rows, nil
}
