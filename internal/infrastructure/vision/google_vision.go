package vision

import (
	"context"
	"fmt"
	"strings"

	gcv "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"read-aloud-api/internal/config"
)

// GoogleVisionProvider is the primary recognizer, backed by Cloud Vision
// document text detection.
type GoogleVisionProvider struct {
	client *gcv.ImageAnnotatorClient
}

// NewGoogleVisionProvider creates the Cloud Vision client. An empty
// credentials file falls back to application default credentials.
func NewGoogleVisionProvider(ctx context.Context, cfg *config.VisionConfig) (*GoogleVisionProvider, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcv.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &GoogleVisionProvider{client: client}, nil
}

// Name identifies the provider in logs and metrics.
func (p *GoogleVisionProvider) Name() string { return "google_vision" }

// DetectBlocks runs document text detection and flattens the annotation tree
// into paragraph blocks in the stored frame.
func (p *GoogleVisionProvider) DetectBlocks(ctx context.Context, image []byte, width, height int) ([]Block, error) {
	ctx, span := tracer.Start(ctx, "vision.GoogleVisionProvider.DetectBlocks")
	defer span.End()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := p.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vision api call failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("vision api returned no response")
	}
	annotation := resp.Responses[0]
	if annotation.Error != nil {
		return nil, fmt.Errorf("vision api error: %s", annotation.Error.Message)
	}
	if annotation.FullTextAnnotation == nil {
		return nil, nil
	}

	var blocks []Block
	for _, page := range annotation.FullTextAnnotation.Pages {
		for _, block := range page.Blocks {
			b, ok := flattenBlock(block)
			if ok {
				blocks = append(blocks, b)
			}
		}
	}
	return blocks, nil
}

// flattenBlock joins a block's paragraphs into one text run and computes the
// axis-aligned bounds over its word polygons.
func flattenBlock(block *visionpb.Block) (Block, bool) {
	var paragraphs []string
	var confSum float64
	var confCount int
	minX, minY := int(^uint32(0)>>1), int(^uint32(0)>>1)
	maxX, maxY := -1, -1

	for _, para := range block.Paragraphs {
		var words []string
		for _, word := range para.Words {
			var sb strings.Builder
			for _, sym := range word.Symbols {
				sb.WriteString(sym.Text)
			}
			if sb.Len() == 0 {
				continue
			}
			words = append(words, sb.String())

			if word.Confidence > 0 {
				confSum += float64(word.Confidence)
				confCount++
			}
			if word.BoundingBox != nil {
				for _, v := range word.BoundingBox.Vertices {
					x, y := int(v.X), int(v.Y)
					if x < minX {
						minX = x
					}
					if y < minY {
						minY = y
					}
					if x > maxX {
						maxX = x
					}
					if y > maxY {
						maxY = y
					}
				}
			}
		}
		if len(words) > 0 {
			paragraphs = append(paragraphs, strings.Join(words, " "))
		}
	}

	text := strings.Join(paragraphs, " ")
	if len(strings.TrimSpace(text)) < minBlockTextLen || maxX < 0 || maxY < 0 {
		return Block{}, false
	}

	confidence := defaultConfidence
	if confCount > 0 {
		confidence = confSum / float64(confCount)
	}

	return Block{
		Text:       text,
		X:          minX,
		Y:          minY,
		Width:      maxX - minX,
		Height:     maxY - minY,
		Confidence: confidence,
	}, true
}

// Close releases the underlying client.
func (p *GoogleVisionProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
