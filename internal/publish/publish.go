// Package publish uploads finished bundles to S3-compatible object storage.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ifgstack/internal/config"
	"ifgstack/internal/logging"
	"ifgstack/internal/services"
)

// ObjectStore is the subset of the minio client used for uploads.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads bundle directories under prefix/<id>/.
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	region string
	logger *slog.Logger
}

// New wraps an object store.
func New(store ObjectStore, bucket, prefix, region string, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		region: region,
		logger: logging.NewComponentLogger(logger, "publish"),
	}
}

// NewFromConfig builds a minio-backed publisher. It returns nil when
// publishing is disabled.
func NewFromConfig(cfg config.Publish, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfig, "publish", "connect", "Invalid object store endpoint "+cfg.Endpoint, err)
	}
	return New(client, cfg.Bucket, cfg.Prefix, cfg.Region, logger), nil
}

// ObjectKey returns the key a bundle file is stored under.
func (p *Publisher) ObjectKey(id, rel string) string {
	return path.Join(p.prefix, id, filepath.ToSlash(rel))
}

// Publish uploads every regular file in dir and returns the object keys.
func (p *Publisher) Publish(ctx context.Context, dir, id string) ([]string, error) {
	logger := logging.WithContext(ctx, p.logger)
	if err := p.ensureBucket(ctx); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "publish", "ensure bucket", p.bucket, err)
	}

	started := time.Now()
	var keys []string
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		key := p.ObjectKey(id, rel)
		opts := minio.PutObjectOptions{ContentType: contentType(file)}
		if _, err := p.store.FPutObject(ctx, p.bucket, key, file, opts); err != nil {
			return fmt.Errorf("upload %s: %w", rel, err)
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, services.Wrap(services.ErrExternalTool, "publish", "upload", id, err)
	}

	logger.Info("bundle published",
		logging.String(logging.FieldEventType, "publish_complete"),
		logging.String("bucket", p.bucket),
		logging.String("prefix", p.ObjectKey(id, "")),
		logging.Int("objects", len(keys)),
		logging.Duration("duration", time.Since(started).Round(time.Millisecond)),
	)
	return keys, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
}

func contentType(file string) string {
	if strings.HasSuffix(file, ".gz") {
		return "application/gzip"
	}
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		return ct
	}
	return "application/octet-stream"
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
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
