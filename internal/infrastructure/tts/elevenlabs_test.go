package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"read-aloud-api/internal/config"
	apperrors "read-aloud-api/pkg/errors"
)

func newTestClient(url string) *ElevenLabsClient {
	return NewElevenLabsClient(&config.TTSConfig{BaseURL: url, Timeout: 2 * time.Second})
}

func TestSynthesizeRequiresCredentials(t *testing.T) {
	client := newTestClient("http://localhost:0")

	_, err := client.Synthesize(context.Background(), "hello", Voice{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfigMissing))

	_, err = client.Synthesize(context.Background(), "hello", Voice{APIKey: "k"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfigMissing))
}

func TestSynthesizeSuccess(t *testing.T) {
	audio := []byte("fake-mp3")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1/with-timestamps", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello world", req["text"])
		settings := req["voice_settings"].(map[string]any)
		assert.InDelta(t, 0.5, settings["stability"], 1e-9)
		assert.InDelta(t, 0.75, settings["similarity_boost"], 1e-9)

		json.NewEncoder(w).Encode(map[string]any{
			"audio_base64": base64.StdEncoding.EncodeToString(audio),
			"alignment": map[string]any{
				"characters":                    []string{"H", "i"},
				"character_start_times_seconds": []float64{0, 0.1},
				"character_end_times_seconds":   []float64{0.1, 0.2},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	res, err := client.Synthesize(context.Background(), "Hello world", Voice{APIKey: "secret", VoiceID: "voice-1"})
	require.NoError(t, err)
	assert.Equal(t, audio, res.Audio)
	require.Len(t, res.Alignment, 2)
	assert.Equal(t, "H", res.Alignment[0].Character)
	assert.InDelta(t, 0.1, res.Alignment[1].StartTimeS, 1e-9)
	// Normalized alignment was not returned; that is not an error.
	assert.Nil(t, res.NormalizedAlignment)
}

func TestSynthesizeServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Synthesize(context.Background(), "x", Voice{APIKey: "k", VoiceID: "v"})
	assert.True(t, apperrors.IsTransient(err))
}

func TestSynthesizeUnauthorizedIsConfigMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Synthesize(context.Background(), "x", Voice{APIKey: "bad", VoiceID: "v"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfigMissing))
}

func TestSynthesizeEmptyAudioFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"audio_base64": ""})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Synthesize(context.Background(), "x", Voice{APIKey: "k", VoiceID: "v"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSynthesisFailed))
}
