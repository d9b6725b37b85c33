// Package tts adapts an external speech synthesis provider.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"read-aloud-api/internal/config"
	apperrors "read-aloud-api/pkg/errors"
	"read-aloud-api/pkg/metrics"
)

var tracer = otel.Tracer("tts")

const (
	defaultTimeout = 60 * time.Second

	// Fixed voice shaping parameters for read-aloud output.
	stability       = 0.5
	similarityBoost = 0.75
)

// CharAlignment times one character of the synthesized text.
type CharAlignment struct {
	Character  string  `json:"character"`
	StartTimeS float64 `json:"start_time_s"`
	EndTimeS   float64 `json:"end_time_s"`
}

// Result is a synthesis output. Alignment fields are nil when the provider
// omits them; playback still works, only highlighting is lost.
type Result struct {
	Audio               []byte
	Alignment           []CharAlignment
	NormalizedAlignment []CharAlignment
}

// Voice selects credentials and voice for one synthesis call.
type Voice struct {
	APIKey  string
	VoiceID string
}

// Synthesizer converts text to timed speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) (*Result, error)
}

// ElevenLabsClient calls the ElevenLabs with-timestamps endpoint.
type ElevenLabsClient struct {
	baseURL string
	http    *http.Client
}

// NewElevenLabsClient creates the synthesis client.
func NewElevenLabsClient(cfg *config.TTSConfig) *ElevenLabsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ElevenLabsClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type rawAlignment struct {
	Characters          []string  `json:"characters"`
	CharacterStartTimes []float64 `json:"character_start_times_seconds"`
	CharacterEndTimes   []float64 `json:"character_end_times_seconds"`
}

type synthesisResponse struct {
	AudioBase64         string        `json:"audio_base64"`
	Alignment           *rawAlignment `json:"alignment"`
	NormalizedAlignment *rawAlignment `json:"normalized_alignment"`
}

// Synthesize performs one synthesis call. It fails with ConfigMissing when
// the voice carries no credentials.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string, voice Voice) (*Result, error) {
	ctx, span := tracer.Start(ctx, "tts.ElevenLabsClient.Synthesize")
	defer span.End()

	if voice.APIKey == "" || voice.VoiceID == "" {
		return nil, apperrors.ErrConfigMissing
	}

	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		VoiceSettings: voiceSettings{Stability: stability, SimilarityBoost: similarityBoost},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps", c.baseURL, voice.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", voice.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.TTSSynthesisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TTSSynthesesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, apperrors.Transient(err, "synthesis request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.TTSSynthesesTotal.WithLabelValues("error").Inc()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("synthesis returned status %d: %s", resp.StatusCode, payload)
		span.RecordError(err)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, apperrors.Wrap(err, apperrors.CodeConfigMissing, "synthesis credentials rejected")
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, apperrors.Transient(err, "synthesis provider unavailable")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeSynthesisFailed, "synthesis failed")
	}

	var parsed synthesisResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.TTSSynthesesTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeSynthesisFailed, "failed to decode synthesis response")
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.AudioBase64)
	if err != nil || len(audio) == 0 {
		metrics.TTSSynthesesTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeSynthesisFailed, "synthesis returned no audio")
	}

	metrics.TTSSynthesesTotal.WithLabelValues("success").Inc()
	return &Result{
		Audio:               audio,
		Alignment:           convertAlignment(parsed.Alignment),
		NormalizedAlignment: convertAlignment(parsed.NormalizedAlignment),
	}, nil
}

func convertAlignment(raw *rawAlignment) []CharAlignment {
	if raw == nil || len(raw.Characters) == 0 {
		return nil
	}
	out := make([]CharAlignment, len(raw.Characters))
	for i, ch := range raw.Characters {
		a := CharAlignment{Character: ch}
		if i < len(raw.CharacterStartTimes) {
			a.StartTimeS = raw.CharacterStartTimes[i]
		}
		if i < len(raw.CharacterEndTimes) {
			a.EndTimeS = raw.CharacterEndTimes[i]
		}
		out[i] = a
	}
	return out
}
