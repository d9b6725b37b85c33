// Package storage provides the artifact store for page images, synthesized
// audio and alignment documents.
package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"read-aloud-api/pkg/metrics"
)

var tracer = otel.Tracer("storage")

// ObjectInfo describes a stored object for streaming responses.
type ObjectInfo struct {
	ContentType   string
	ContentLength int64
}

// ArtifactStore is the blob backend behind page images, audio and alignments.
// Keys are opaque relative paths; URLFor and KeyForURL convert between keys
// and the references persisted on entities.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Stream(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	URLFor(key string) string
	KeyForURL(url string) (string, bool)
}

const (
	putAttempts    = 3
	retryBaseDelay = 200 * time.Millisecond
)

// UploadKey builds the key for a captured page image. The millisecond stamp
// plus random suffix keeps concurrent uploads from colliding.
func UploadKey(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("uploads/%d-%s%s", time.Now().UnixMilli(), randomDigits(7), ext)
}

// AudioKey builds the content-addressed key for synthesized audio.
func AudioKey(contentUUID string) string {
	return fmt.Sprintf("audio/tts_content_%s.mp3", contentUUID)
}

// AlignmentKey builds the key for the raw character alignment document.
func AlignmentKey(contentUUID string) string {
	return fmt.Sprintf("alignment/tts_content_%s_alignment.json", contentUUID)
}

// NormalizedAlignmentKey builds the key for the normalized alignment document.
func NormalizedAlignmentKey(contentUUID string) string {
	return fmt.Sprintf("alignment/tts_content_%s_normalized.json", contentUUID)
}

func randomDigits(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String()
}

// ContentTypeForKey infers the MIME type from the key extension.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".mp3":
		return "audio/mpeg"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// ExtForContentType maps an upload MIME type to a file extension.
func ExtForContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ""
	}
}

// putWithRetry wraps a single-attempt put with bounded exponential backoff.
func putWithRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < putAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = fn(ctx); err == nil {
			metrics.StorageOpsTotal.WithLabelValues(op, "success").Inc()
			return nil
		}
	}
	metrics.StorageOpsTotal.WithLabelValues(op, "error").Inc()
	return err
}
