package vision

import (
	"encoding/json"
	"strings"
)

// geminiBlock decodes one element of the fallback model's JSON output.
// Models drift between snake_case and camelCase field names, so decoding
// accepts explicit aliases and exposes a single shape.
type geminiBlock struct {
	Text       string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Confidence float64
}

func (b *geminiBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text        string   `json:"text"`
		X           float64  `json:"x"`
		Y           float64  `json:"y"`
		Width       float64  `json:"width"`
		Height      float64  `json:"height"`
		Confidence  *float64 `json:"confidence"`
		BoxWidth    *float64 `json:"w"`
		BoxHeight   *float64 `json:"h"`
		WidthCamel  *float64 `json:"boundingWidth"`
		HeightCamel *float64 `json:"boundingHeight"`
		ConfSnake   *float64 `json:"confidence_score"`
		ConfCamel   *float64 `json:"confidenceScore"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.Text = raw.Text
	b.X = raw.X
	b.Y = raw.Y
	b.Width = raw.Width
	b.Height = raw.Height
	if b.Width == 0 && raw.BoxWidth != nil {
		b.Width = *raw.BoxWidth
	}
	if b.Width == 0 && raw.WidthCamel != nil {
		b.Width = *raw.WidthCamel
	}
	if b.Height == 0 && raw.BoxHeight != nil {
		b.Height = *raw.BoxHeight
	}
	if b.Height == 0 && raw.HeightCamel != nil {
		b.Height = *raw.HeightCamel
	}

	switch {
	case raw.Confidence != nil:
		b.Confidence = *raw.Confidence
	case raw.ConfSnake != nil:
		b.Confidence = *raw.ConfSnake
	case raw.ConfCamel != nil:
		b.Confidence = *raw.ConfCamel
	default:
		b.Confidence = defaultConfidence
	}
	return nil
}

// parseBlocksJSON decodes the model output, tolerating a fenced code block
// around the JSON array.
func parseBlocksJSON(text string) ([]Block, error) {
	var raw []geminiBlock
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(raw))
	for _, b := range raw {
		blocks = append(blocks, Block{
			Text:       b.Text,
			X:          int(b.X),
			Y:          int(b.Y),
			Width:      int(b.Width),
			Height:     int(b.Height),
			Confidence: b.Confidence,
		})
	}
	return blocks, nil
}

// stripCodeFence unwraps ```json fences the model sometimes adds.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop a language hint like "json" on the fence line.
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
