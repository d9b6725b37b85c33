package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	blocks []Block
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) DetectBlocks(_ context.Context, _ []byte, _, _ int) ([]Block, error) {
	s.calls++
	return s.blocks, s.err
}

func testImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestServiceUsesPrimary(t *testing.T) {
	primary := &stubProvider{name: "primary", blocks: []Block{
		{Text: "some text", X: 1, Y: 2, Width: 3, Height: 4, Confidence: 0.9},
	}}
	fallback := &stubProvider{name: "fallback"}

	svc := NewService(primary, fallback, time.Second)
	blocks, err := svc.Detect(context.Background(), testImage(t, 100, 100))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestServiceFallsBackOnPrimaryError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("quota exceeded")}
	fallback := &stubProvider{name: "fallback", blocks: []Block{
		{Text: "rescued text", X: 10, Y: 10, Width: 20, Height: 20, Confidence: 0.7},
	}}

	svc := NewService(primary, fallback, time.Second)
	blocks, err := svc.Detect(context.Background(), testImage(t, 100, 100))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "rescued text", blocks[0].Text)
	assert.Equal(t, 1, fallback.calls)
}

func TestServiceFallsBackOnEmptyPrimary(t *testing.T) {
	primary := &stubProvider{name: "primary"}
	fallback := &stubProvider{name: "fallback", blocks: []Block{
		{Text: "found it", X: 0, Y: 0, Width: 5, Height: 5, Confidence: 0.5},
	}}

	svc := NewService(primary, fallback, time.Second)
	blocks, err := svc.Detect(context.Background(), testImage(t, 100, 100))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
}

func TestServiceEmptyWhenBothFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	fallback := &stubProvider{name: "fallback", err: errors.New("also down")}

	svc := NewService(primary, fallback, time.Second)
	blocks, err := svc.Detect(context.Background(), testImage(t, 100, 100))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestServiceRejectsUndecodableImage(t *testing.T) {
	svc := NewService(&stubProvider{name: "primary"}, nil, time.Second)
	_, err := svc.Detect(context.Background(), []byte("garbage"))
	assert.Error(t, err)
}
