// Package minio uploads rendered text products to an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/output"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
)

// Config locates the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return errors.New("minio endpoint is required")
	case c.Bucket == "":
		return errors.New("minio bucket is required")
	case c.AccessKey == "" || c.SecretKey == "":
		return errors.New("minio credentials are required")
	}
	return nil
}

// NewClient creates a MinIO client for cfg.
func NewClient(cfg Config) (*miniogo.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: newTransport(),
	})
}

// EnsureBucket creates bucket if it does not exist.
func EnsureBucket(ctx context.Context, client *miniogo.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// ObjectPutter is the subset of *miniogo.Client the store uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

// Store saves the ensemble, merged, climatology, and heat map schemas of each
// delivery as {SITE}/{SITE}_{MODEL}_{ens,mrg,cli,hm}.dat, replacing earlier
// uploads.
// It implements pipeline.Sink.
type Store struct {
	client ObjectPutter
	bucket string
	climo  climo.Store
	logger *slog.Logger
}

func NewStore(client ObjectPutter, bucket string, store climo.Store, logger *slog.Logger) *Store {
	return &Store{client: client, bucket: bucket, climo: store, logger: logger}
}

func (s *Store) Deliver(ctx context.Context, r pipeline.Result) error {
	p, err := output.Render(ctx, s.climo, s.logger, r)
	if err != nil {
		return err
	}

	meta := r.Merged.Meta
	for _, obj := range []struct {
		kind string
		data []byte
	}{
		{output.KindEnsemble, p.Ensemble},
		{output.KindMerged, p.Merged},
		{output.KindClimo, p.Climo},
		{output.KindHeatMap, p.HeatMap},
	} {
		key := ObjectKey(meta.Site.ID, output.FileName(meta, obj.kind))
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(obj.data), int64(len(obj.data)),
			miniogo.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
		if err != nil {
			return fmt.Errorf("upload %s/%s: %w", s.bucket, key, err)
		}
	}
	s.logger.Debug("uploaded products", "bucket", s.bucket, "site", meta.Site.ID, "model", meta.Model)
	return nil
}

// ObjectKey returns the key of a product file for site.
func ObjectKey(site, fileName string) string {
	return site + "/" + fileName
}
