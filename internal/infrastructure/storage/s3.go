package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"

	"read-aloud-api/internal/config"
	"read-aloud-api/pkg/metrics"
)

// objectsRoutePrefix is the app route that streams objects when no public
// bucket URL is configured.
const objectsRoutePrefix = "/api/v1/objects/"

// S3Store stores artifacts in any S3-compatible bucket (R2, MinIO, AWS).
type S3Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewS3Store connects to the configured endpoint and ensures the bucket
// exists.
func NewS3Store(ctx context.Context, cfg *config.S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Put uploads the object, retrying transient failures.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, span := tracer.Start(ctx, "storage.S3Store.Put")
	defer span.End()
	span.SetAttributes(attribute.String("storage.key", key), attribute.Int("storage.size", len(data)))

	err := putWithRetry(ctx, "put", func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// GetBytes downloads the whole object.
func (s *S3Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "storage.S3Store.GetBytes")
	defer span.End()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// Stream opens the object for streaming.
func (s *S3Store) Stream(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	ctx, span := tracer.Start(ctx, "storage.S3Store.Stream")
	defer span.End()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		span.RecordError(err)
		return nil, nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	contentType := stat.ContentType
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	return obj, &ObjectInfo{ContentType: contentType, ContentLength: stat.Size}, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "storage.S3Store.Delete")
	defer span.End()

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		metrics.StorageOpsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "storage.S3Store.Exists")
	defer span.End()

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return true, nil
}

// URLFor returns the reference persisted for a key. With a public bucket URL
// configured it points straight at the bucket; otherwise at the app's object
// route.
func (s *S3Store) URLFor(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return objectsRoutePrefix + key
}

// KeyForURL inverts URLFor. It accepts both public-bucket URLs and app-route
// references so stored paths survive a backend change.
func (s *S3Store) KeyForURL(url string) (string, bool) {
	if s.publicURL != "" {
		if rest, ok := strings.CutPrefix(url, s.publicURL+"/"); ok {
			return rest, true
		}
	}
	return keyForRouteURL(url)
}

func keyForRouteURL(url string) (string, bool) {
	if idx := strings.Index(url, objectsRoutePrefix); idx >= 0 {
		key := url[idx+len(objectsRoutePrefix):]
		if key != "" {
			return key, true
		}
	}
	return "", false
}
