package dto

import (
	"read-aloud-api/internal/application/reading"
	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/infrastructure/tts"
)

// SpeakTextRequest is the ad-hoc synthesis request body.
type SpeakTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// SpeakResponse is the speech payload for a block or ad-hoc text.
type SpeakResponse struct {
	AudioURL            string              `json:"audio_url"`
	Text                string              `json:"text"`
	Alignment           []tts.CharAlignment `json:"alignment,omitempty"`
	NormalizedAlignment []tts.CharAlignment `json:"normalized_alignment,omitempty"`
}

// NewSpeakResponse maps a speak result.
func NewSpeakResponse(r *reading.SpeakResult) SpeakResponse {
	return SpeakResponse{
		AudioURL:            r.AudioURI,
		Text:                r.Text,
		Alignment:           r.Alignment,
		NormalizedAlignment: r.NormalizedAlignment,
	}
}

// PreferencesRequest is the preferences update body. The API key is write-only.
type PreferencesRequest struct {
	TTSVoiceID   string  `json:"tts_voice_id"`
	TTSAPIKey    string  `json:"tts_api_key"`
	ReadingSpeed float64 `json:"reading_speed"`
}

// PreferencesResponse exposes preferences without credentials.
type PreferencesResponse struct {
	TTSVoiceID    string  `json:"tts_voice_id,omitempty"`
	TTSConfigured bool    `json:"tts_configured"`
	ReadingSpeed  float64 `json:"reading_speed,omitempty"`
}

// NewPreferencesResponse maps a preferences row.
func NewPreferencesResponse(p *entity.UserPreferences) PreferencesResponse {
	return PreferencesResponse{
		TTSVoiceID:    p.TTSVoiceID,
		TTSConfigured: p.HasTTSConfig(),
		ReadingSpeed:  p.ReadingSpeed,
	}
}
