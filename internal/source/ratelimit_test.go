package source_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

func TestWithRateLimit_PassesCallsThrough(t *testing.T) {
	arc := newFakeArchive(kmso)
	arc.addRun("kmso", domain.GFS, at("2017-09-02-00"), rawRun(at("2017-09-02-00")))
	connect := source.WithRateLimit(arc.connect, 1000, 10)

	var rec recorder
	source.RangeLoader{Connect: connect, SiteID: "kmso", Model: domain.GFS, Ref: at("2017-09-02-12"), DaysBack: 1}.
		Load(context.Background(), &rec)

	data, errs := rec.split()
	require.Empty(t, errs)
	require.Len(t, data, 1)
	assert.Len(t, data[0].Runs, 1)
}

func TestWithRateLimit_CanceledContext(t *testing.T) {
	arc := newFakeArchive(kmso)
	connect := source.WithRateLimit(arc.connect, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var rec recorder
	source.RangeLoader{Connect: connect, SiteID: "kmso", Model: domain.GFS, Ref: at("2017-09-02-12")}.Load(ctx, &rec)

	data, errs := rec.split()
	assert.Empty(t, data)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindConnection, errs[0].Kind)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestWithRateLimit_Disabled(t *testing.T) {
	arc := newFakeArchive(kmso)
	connect := source.WithRateLimit(arc.connect, 0, 0)

	conn, err := connect(context.Background())
	require.NoError(t, err)
	_, isFake := conn.(*fakeArchive)
	assert.True(t, isFake)
}
