package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"read-aloud-api/internal/config"
)

// LocalStore stores artifacts under a directory on disk. Intended for
// development and tests; production deployments use S3Store.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(cfg *config.LocalConfig) (*LocalStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{dir: cfg.Dir}, nil
}

// pathFor resolves a key inside the root, rejecting traversal.
func (s *LocalStore) pathFor(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(s.dir, clean), nil
}

// Put writes the object atomically via a temp file rename.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, span := tracer.Start(ctx, "storage.LocalStore.Put")
	defer span.End()
	span.SetAttributes(attribute.String("storage.key", key))

	p, err := s.pathFor(key)
	if err != nil {
		return err
	}

	err = putWithRetry(ctx, "put", func(ctx context.Context) error {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
		if err != nil {
			return err
		}
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return err
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return err
		}
		return os.Rename(tmp.Name(), p)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// GetBytes reads the whole object.
func (s *LocalStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	_, span := tracer.Start(ctx, "storage.LocalStore.GetBytes")
	defer span.End()

	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// Stream opens the object for streaming.
func (s *LocalStore) Stream(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	_, span := tracer.Start(ctx, "storage.LocalStore.Stream")
	defer span.End()

	p, err := s.pathFor(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return f, &ObjectInfo{ContentType: ContentTypeForKey(key), ContentLength: stat.Size()}, nil
}

// Delete removes the object. Missing files are not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	_, span := tracer.Start(ctx, "storage.LocalStore.Delete")
	defer span.End()

	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// URLFor returns the app-route reference for the key.
func (s *LocalStore) URLFor(key string) string {
	return objectsRoutePrefix + key
}

// KeyForURL inverts URLFor.
func (s *LocalStore) KeyForURL(url string) (string, bool) {
	return keyForRouteURL(url)
}
