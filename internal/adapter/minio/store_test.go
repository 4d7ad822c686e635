package minio_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-graphs/internal/adapter/minio"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

type putCall struct {
	bucket, key, contentType, body string
}

type fakePutter struct {
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, body io.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	if f.err != nil {
		return miniogo.UploadInfo{}, f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return miniogo.UploadInfo{}, err
	}
	if int64(len(data)) != size {
		return miniogo.UploadInfo{}, errors.New("size mismatch")
	}
	f.calls = append(f.calls, putCall{bucket: bucket, key: key, contentType: opts.ContentType, body: string(data)})
	return miniogo.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func fixture() pipeline.Result {
	now := time.Date(2017, 9, 2, 12, 0, 0, 0, time.UTC)
	ens := timeseries.EnsembleSeries[sounding.AnalyzedData]{
		Meta: domain.MetaData{Site: domain.Site{ID: "kmso"}, Model: "gfs", Start: now.Add(-time.Hour), Now: now, End: now.Add(time.Hour)},
		Runs: []timeseries.Run[timeseries.TimeSeries[sounding.AnalyzedData]]{
			{InitTime: now, Data: timeseries.TimeSeries[sounding.AnalyzedData]{Data: []sounding.AnalyzedData{
				{Valid: now, HDW: 12, T0: 20, DT0: 1, E0: 100, DE: 10},
			}}},
		},
	}
	return pipeline.Result{
		Ensemble: ens,
		Merged:   timeseries.Merge(ens),
		HeatMap: timeseries.MergedSeries[sounding.CapePartitions]{
			Meta: ens.Meta,
			Data: timeseries.TimeSeries[sounding.CapePartitions]{Data: []sounding.CapePartitions{
				{{Valid: now, DT: 0, Dry: 0, Wet: 120}},
			}},
		},
	}
}

func TestStore_Deliver(t *testing.T) {
	putter := &fakePutter{}
	store := minio.NewStore(putter, "plots", nil, slog.Default())
	require.NoError(t, store.Deliver(context.Background(), fixture()))
	require.Len(t, putter.calls, 4)

	keys := make([]string, 0, len(putter.calls))
	for _, c := range putter.calls {
		keys = append(keys, c.key)
		assert.Equal(t, "plots", c.bucket)
		assert.True(t, strings.HasPrefix(c.contentType, "text/plain"))
		assert.True(t, strings.HasPrefix(c.body, "# Site: kmso\n"))
	}
	assert.Equal(t, []string{"kmso/kmso_GFS_ens.dat", "kmso/kmso_GFS_mrg.dat", "kmso/kmso_GFS_cli.dat", "kmso/kmso_GFS_hm.dat"}, keys)
	assert.Contains(t, putter.calls[3].body, "2017-09-02-12 0 0 120\n")
}

func TestStore_DeliverError(t *testing.T) {
	store := minio.NewStore(&fakePutter{err: errors.New("access denied")}, "plots", nil, slog.Default())
	err := store.Deliver(context.Background(), fixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plots/kmso/kmso_GFS_ens.dat")
}

func TestConfig_Validate(t *testing.T) {
	valid := minio.Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "plots"}
	require.NoError(t, valid.Validate())

	tests := map[string]func(*minio.Config){
		"no endpoint": func(c *minio.Config) { c.Endpoint = "" },
		"no bucket":   func(c *minio.Config) { c.Bucket = "" },
		"no secret":   func(c *minio.Config) { c.SecretKey = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
