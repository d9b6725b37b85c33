// Package vision turns page images into ordered paragraph blocks with
// bounding boxes in the displayed coordinate frame.
package vision

import (
	"context"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("vision")

// minBlockTextLen rejects noise blocks the recognizer tends to emit for
// specks and page edges.
const minBlockTextLen = 3

// defaultConfidence is used when the provider reports no word confidences.
const defaultConfidence = 0.9

// Block is one paragraph-level text region. Coordinates are in the stored
// (pre-rotation) frame as reported by the provider; Service reconciles them
// to the displayed frame.
type Block struct {
	Text       string
	X          int
	Y          int
	Width      int
	Height     int
	Confidence float64
}

// Provider extracts blocks from an encoded image.
type Provider interface {
	Name() string
	DetectBlocks(ctx context.Context, image []byte, width, height int) ([]Block, error)
}
