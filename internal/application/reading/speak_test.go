package reading

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"read-aloud-api/internal/config"
	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/infrastructure/tts"
	apperrors "read-aloud-api/pkg/errors"
)

type stubSynth struct {
	mu        sync.Mutex
	calls     int
	lastVoice tts.Voice
	err       error
}

func (s *stubSynth) Synthesize(_ context.Context, text string, voice tts.Voice) (*tts.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastVoice = voice
	if s.err != nil {
		return nil, s.err
	}
	return &tts.Result{
		Audio: []byte("mp3-for-" + text),
		Alignment: []tts.CharAlignment{
			{Character: string(text[0]), StartTimeS: 0, EndTimeS: 0.1},
		},
		NormalizedAlignment: []tts.CharAlignment{
			{Character: string(text[0]), StartTimeS: 0, EndTimeS: 0.12},
		},
	}, nil
}

func (f *readingFixture) synth() *stubSynth {
	return f.svc.synth.(*stubSynth)
}

func (f *readingFixture) setVoicePrefs(t *testing.T, ownerID, apiKey, voiceID string) {
	t.Helper()
	require.NoError(t, f.db.Users().UpsertPreferences(context.Background(), &entity.UserPreferences{
		UserID:     ownerID,
		TTSAPIKey:  apiKey,
		TTSVoiceID: voiceID,
	}))
}

func TestSpeakBlockSynthesizesAndStores(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()
	_, page := f.addBook(t, "owner-1", "Read this aloud.")
	f.setVoicePrefs(t, "owner-1", "key-1", "voice-1")

	blocks, err := f.db.Blocks().ListByPage(ctx, page.ID)
	require.NoError(t, err)
	block := blocks[0]

	res, err := f.svc.SpeakBlock(ctx, "owner-1", block.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read this aloud.", res.Text)
	require.Len(t, res.Alignment, 1)
	require.Len(t, res.NormalizedAlignment, 1)
	assert.Equal(t, 1, f.synth().calls)
	assert.Equal(t, tts.Voice{APIKey: "key-1", VoiceID: "voice-1"}, f.synth().lastVoice)

	// The audio blob lives under the content-derived key.
	contentUUID := ContentUUID("Read this aloud.")
	exists, err := f.store.Exists(ctx, storage.AudioKey(contentUUID))
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = f.store.Exists(ctx, storage.AlignmentKey(contentUUID))
	require.NoError(t, err)
	assert.True(t, exists)

	// The block row now references the audio.
	stored, err := f.db.Blocks().GetByID(ctx, block.ID)
	require.NoError(t, err)
	assert.Equal(t, res.AudioURI, stored.AudioPath)
}

func TestSpeakBlockSharesAudioByContent(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()
	// Two blocks whose texts differ only in surrounding whitespace share one
	// content identity.
	_, page := f.addBook(t, "owner-1", "Chapter One", "  Chapter One  ")
	f.setVoicePrefs(t, "owner-1", "key-1", "voice-1")

	blocks, err := f.db.Blocks().ListByPage(ctx, page.ID)
	require.NoError(t, err)

	first, err := f.svc.SpeakBlock(ctx, "owner-1", blocks[0].ID)
	require.NoError(t, err)
	second, err := f.svc.SpeakBlock(ctx, "owner-1", blocks[1].ID)
	require.NoError(t, err)

	// The second block is served from cache, no second synthesis.
	assert.Equal(t, 1, f.synth().calls)
	assert.Equal(t, first.AudioURI, second.AudioURI)
	require.Len(t, second.Alignment, 1)

	// Both rows reference the shared artifact.
	for _, b := range blocks {
		stored, err := f.db.Blocks().GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, first.AudioURI, stored.AudioPath)
	}
}

func TestSpeakBlockValidation(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()
	_, page := f.addBook(t, "owner-1", "   ")
	f.setVoicePrefs(t, "owner-1", "key-1", "voice-1")

	blocks, err := f.db.Blocks().ListByPage(ctx, page.ID)
	require.NoError(t, err)

	_, err = f.svc.SpeakBlock(ctx, "owner-1", blocks[0].ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = f.svc.SpeakBlock(ctx, "owner-1", "no-such-block")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBlockNotFound))

	_, err = f.svc.SpeakBlock(ctx, "owner-2", blocks[0].ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestSpeakTextAdHoc(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()
	f.setVoicePrefs(t, "owner-1", "key-1", "voice-1")

	res, err := f.svc.SpeakText(ctx, "owner-1", "The Lighthouse")
	require.NoError(t, err)
	assert.Equal(t, "The Lighthouse", res.Text)
	assert.Equal(t, 1, f.synth().calls)

	// Repeating the same text is a cache hit.
	again, err := f.svc.SpeakText(ctx, "owner-1", "The Lighthouse")
	require.NoError(t, err)
	assert.Equal(t, res.AudioURI, again.AudioURI)
	assert.Equal(t, 1, f.synth().calls)

	_, err = f.svc.SpeakText(ctx, "owner-1", "  ")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestSpeakVoiceResolution(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()

	// No preferences and no server fallback.
	_, err := f.svc.SpeakText(ctx, "owner-1", "hello")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfigMissing))

	// Server-wide fallback applies when the owner has no voice configured.
	withFallback := NewService(
		f.db.Books(), f.db.Pages(), f.db.Blocks(), f.db.Users(),
		f.store, f.detector, f.synth(), noopLock{},
		config.TTSConfig{APIKey: "server-key", VoiceID: "server-voice"},
	)
	_, err = withFallback.SpeakText(ctx, "owner-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, tts.Voice{APIKey: "server-key", VoiceID: "server-voice"}, f.synth().lastVoice)

	// Owner preferences win over the server fallback.
	f.setVoicePrefs(t, "owner-1", "own-key", "own-voice")
	_, err = withFallback.SpeakText(ctx, "owner-1", "different text")
	require.NoError(t, err)
	assert.Equal(t, tts.Voice{APIKey: "own-key", VoiceID: "own-voice"}, f.synth().lastVoice)
}

func TestSpeakSynthesisFailure(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()
	f.setVoicePrefs(t, "owner-1", "key-1", "voice-1")
	f.synth().err = apperrors.New(apperrors.CodeSynthesisFailed, "synthesis failed")

	_, err := f.svc.SpeakText(ctx, "owner-1", "hello")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSynthesisFailed))

	// Nothing was cached for the failed synthesis.
	exists, storeErr := f.store.Exists(ctx, storage.AudioKey(ContentUUID("hello")))
	require.NoError(t, storeErr)
	assert.False(t, exists)
}
