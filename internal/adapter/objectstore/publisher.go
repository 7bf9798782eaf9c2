// Package objectstore uploads finished output files to an S3-compatible
// bucket so the dashboard can read them without access to the ETL host.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// Config holds connection settings for the bucket.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

// objectAPI is the subset of *minio.Client the publisher uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher copies each run's output file to the stable "latest" key the
// dashboard reads.
type Publisher struct {
	api    objectAPI
	bucket string
	prefix string
	logger *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

// NewPublisher connects to the configured endpoint. The bucket is created
// on first publish if it does not exist.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return newPublisher(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newPublisher(api objectAPI, bucket, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{api: api, bucket: bucket, prefix: prefix, logger: logger}
}

func (p *Publisher) Name() string { return "objectstore" }

// Publish uploads the file at run.OutputPath.
func (p *Publisher) Publish(ctx context.Context, run domain.RunSummary) error {
	if err := p.ensureBucket(ctx); err != nil {
		return err
	}

	data, err := os.ReadFile(run.OutputPath)
	if err != nil {
		return fmt.Errorf("read output: %w", err)
	}

	opts := minio.PutObjectOptions{
		ContentType: "text/csv",
		UserMetadata: map[string]string{
			"pipeline":    run.Pipeline,
			"run-id":      run.RunID,
			"records":     strconv.Itoa(run.Records),
			"placeholder": strconv.FormatBool(run.Placeholder),
		},
	}

	key := Key(p.prefix, run)
	if _, err := p.api.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("put %s/%s: %w", p.bucket, key, err)
	}
	p.logger.InfoContext(ctx, "output published",
		"pipeline", run.Pipeline, "run_id", run.RunID, "bucket", p.bucket, "key", key, "bytes", len(data))
	return nil
}

// Key returns the object key for a run's output. Every run overwrites the
// same key; prior outputs are not kept.
func Key(prefix string, run domain.RunSummary) string {
	return path.Join(prefix, run.Pipeline, "latest", filepath.Base(run.OutputPath))
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bucketReady {
		return nil
	}

	exists, err := p.api.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.api.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", p.bucket, err)
		}
		p.logger.InfoContext(ctx, "bucket created", "bucket", p.bucket)
	}
	p.bucketReady = true
	return nil
}
