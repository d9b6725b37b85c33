package vision

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"read-aloud-api/pkg/logger"
	"read-aloud-api/pkg/metrics"
)

const defaultOCRTimeout = 30 * time.Second

// Service chains the primary recognizer and the fallback model, and
// reconciles provider coordinates into the displayed frame.
type Service struct {
	primary  Provider
	fallback Provider
	timeout  time.Duration
}

// NewService builds the detection chain. fallback may be nil.
func NewService(primary, fallback Provider, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}
	return &Service{primary: primary, fallback: fallback, timeout: timeout}
}

// Detect returns blocks in the displayed coordinate frame, in reading order.
// When both providers fail or find nothing it returns an empty slice; the
// caller decides whether an empty page is an error.
func (s *Service) Detect(ctx context.Context, image []byte) ([]Block, error) {
	ctx, span := tracer.Start(ctx, "vision.Service.Detect")
	defer span.End()

	meta, err := DecodeMeta(image)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("image.width", meta.Width),
		attribute.Int("image.height", meta.Height),
		attribute.Int("image.orientation", meta.Orientation),
	)

	blocks := s.callProvider(ctx, s.primary, image, meta)
	if len(blocks) == 0 && s.fallback != nil {
		metrics.OCRFallbacksTotal.Inc()
		logger.Info(ctx, "primary vision provider yielded no blocks, trying fallback")
		blocks = s.callProvider(ctx, s.fallback, image, meta)
	}

	return reconcile(blocks, meta), nil
}

func (s *Service) callProvider(ctx context.Context, p Provider, image []byte, meta ImageMeta) []Block {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	blocks, err := p.DetectBlocks(ctx, image, meta.Width, meta.Height)
	metrics.OCRCallDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OCRCallsTotal.WithLabelValues(p.Name(), "error").Inc()
		logger.Warn(ctx, "vision provider call failed", "provider", p.Name(), "error", err.Error())
		return nil
	}
	metrics.OCRCallsTotal.WithLabelValues(p.Name(), "success").Inc()
	return blocks
}
