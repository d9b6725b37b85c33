package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"read-aloud-api/internal/config"
	"read-aloud-api/pkg/logger"
)

// GeminiProvider is the fallback recognizer and the cover analyzer, backed by
// a general-purpose multimodal model.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates the Gemini client.
func NewGeminiProvider(ctx context.Context, cfg *config.VisionConfig) (*GeminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.GeminiModel}, nil
}

// Name identifies the provider in logs and metrics.
func (p *GeminiProvider) Name() string { return "gemini" }

const blockPromptTemplate = `This image is %d pixels wide and %d pixels tall.
Identify every paragraph of printed text in the image. Respond with ONLY a JSON
array, no prose, where each element is an object:
{"text": "...", "x": 0, "y": 0, "width": 0, "height": 0, "confidence": 0.0}
Coordinates are pixels in the image as given, origin top-left. Confidence is
between 0 and 1. Order elements in natural reading order.`

// DetectBlocks asks the model for paragraph blocks. The prompt pins the pixel
// dimensions so returned coordinates land in the stored frame.
func (p *GeminiProvider) DetectBlocks(ctx context.Context, image []byte, width, height int) ([]Block, error) {
	ctx, span := tracer.Start(ctx, "vision.GeminiProvider.DetectBlocks")
	defer span.End()

	prompt := fmt.Sprintf(blockPromptTemplate, width, height)
	text, err := p.generate(ctx, image, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	blocks, err := parseBlocksJSON(text)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse gemini blocks: %w", err)
	}

	out := blocks[:0]
	for _, b := range blocks {
		if len(strings.TrimSpace(b.Text)) >= minBlockTextLen {
			out = append(out, b)
		}
	}
	return out, nil
}

// CoverInfo is the metadata extracted from a book's first page.
type CoverInfo struct {
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	Category   string   `json:"category"`
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
}

const coverPrompt = `This is the first captured page of a physical book,
usually its cover or title page. Respond with ONLY a JSON object:
{"title": "...", "author": "...", "category": "...", "categories": ["..."], "keywords": ["..."]}
Use the visible text to infer the fields. "category" is the single best genre,
"categories" up to three genres, "keywords" up to five topical words. Leave
"author" empty if not visible.`

// AnalyzeCover extracts book metadata from the first page image. Parse
// failures degrade to defaults rather than failing ingestion.
func (p *GeminiProvider) AnalyzeCover(ctx context.Context, image []byte) (CoverInfo, error) {
	ctx, span := tracer.Start(ctx, "vision.GeminiProvider.AnalyzeCover")
	defer span.End()

	info := CoverInfo{Title: "Unknown Book", Category: "General"}

	text, err := p.generate(ctx, image, coverPrompt)
	if err != nil {
		span.RecordError(err)
		return info, err
	}

	var parsed CoverInfo
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		logger.Warn(ctx, "cover analysis returned unparseable JSON, using defaults", "error", err.Error())
		return info, nil
	}
	if strings.TrimSpace(parsed.Title) != "" {
		info.Title = strings.TrimSpace(parsed.Title)
	}
	if strings.TrimSpace(parsed.Category) != "" {
		info.Category = strings.TrimSpace(parsed.Category)
	}
	info.Author = strings.TrimSpace(parsed.Author)
	info.Categories = parsed.Categories
	info.Keywords = parsed.Keywords
	return info, nil
}

func (p *GeminiProvider) generate(ctx context.Context, image []byte, prompt string) (string, error) {
	model := p.client.GenerativeModel(p.model)
	resp, err := model.GenerateContent(ctx, genai.ImageData(imageFormat(image), image), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text")
	}
	return sb.String(), nil
}

// imageFormat sniffs the encoding for the ImageData part.
func imageFormat(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "png"
	case len(data) >= 12 && string(data[8:12]) == "WEBP":
		return "webp"
	default:
		return "jpeg"
	}
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
