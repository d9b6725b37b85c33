package reading

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/infrastructure/tts"
	apperrors "read-aloud-api/pkg/errors"
	"read-aloud-api/pkg/logger"
	"read-aloud-api/pkg/metrics"
)

// SpeakResult is the speech payload for a block or ad-hoc text. Alignment
// fields are nil when no alignment artifact exists.
type SpeakResult struct {
	AudioURI            string              `json:"audio_uri"`
	Text                string              `json:"text"`
	Alignment           []tts.CharAlignment `json:"alignment"`
	NormalizedAlignment []tts.CharAlignment `json:"normalized_alignment"`
}

// SpeakBlock synthesizes (or serves cached) speech for a block's text and
// persists the audio reference on the block.
func (s *Service) SpeakBlock(ctx context.Context, ownerID, blockID string) (*SpeakResult, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.SpeakBlock")
	defer span.End()

	block, err := s.blocks.GetByID(ctx, blockID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load block")
	}
	if block == nil {
		return nil, apperrors.ErrBlockNotFound
	}
	if _, err := s.ownedPage(ctx, ownerID, block.PageID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(block.OCRText) == "" {
		return nil, apperrors.ErrValidation.WithDetail("block has no text")
	}

	return s.speak(ctx, ownerID, block.OCRText, block)
}

// SpeakText synthesizes ad-hoc text (titles, UI strings) with no block
// persistence. Caching still applies through content identity.
func (s *Service) SpeakText(ctx context.Context, ownerID, text string) (*SpeakResult, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.SpeakText")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrValidation.WithDetail("text is required")
	}
	return s.speak(ctx, ownerID, text, nil)
}

// speak is the shared cache-or-synthesize path. block may be nil.
func (s *Service) speak(ctx context.Context, ownerID, text string, block *entity.TextBlock) (*SpeakResult, error) {
	voice, err := s.resolveVoice(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	contentUUID := ContentUUID(text)
	ctx, span := tracer.Start(ctx, "reading.Service.speak")
	defer span.End()
	span.SetAttributes(attribute.String("tts.content_uuid", contentUUID))

	// Concurrent callers for the same (text, voice) pair collapse to one
	// in-process synthesis; the redis lock narrows the cross-replica window.
	key := contentUUID + ":" + voice.VoiceID
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.speakOnce(ctx, text, contentUUID, voice, block)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SpeakResult), nil
}

func (s *Service) speakOnce(ctx context.Context, text, contentUUID string, voice tts.Voice, block *entity.TextBlock) (*SpeakResult, error) {
	audioKey := storage.AudioKey(contentUUID)

	if res, ok := s.tryCached(ctx, text, contentUUID, audioKey, block); ok {
		metrics.TTSCacheTotal.WithLabelValues("hit").Inc()
		return res, nil
	}
	metrics.TTSCacheTotal.WithLabelValues("miss").Inc()

	if block != nil && block.AudioPath != "" {
		// Legacy row pointing at a missing blob: drop the stale reference
		// before synthesizing fresh.
		if err := s.blocks.ClearAudioPath(ctx, block.ID); err != nil {
			logger.Warn(ctx, "failed to clear stale audio reference", "block_id", block.ID, "error", err.Error())
		}
	}

	if !s.lock.TryAcquire(ctx, contentUUID) {
		// Another replica is synthesizing this content; wait briefly and
		// re-check the cache before synthesizing ourselves.
		if s.lock.WaitForHolder(ctx, contentUUID) {
			if res, ok := s.tryCached(ctx, text, contentUUID, audioKey, block); ok {
				metrics.TTSCacheTotal.WithLabelValues("hit").Inc()
				return res, nil
			}
		}
	}
	defer s.lock.Release(ctx, contentUUID)

	result, err := s.synth.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}

	// Upload audio and both alignment documents in parallel. The audio
	// upload must succeed; alignment uploads are best-effort.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.store.Put(gctx, audioKey, result.Audio, "audio/mpeg")
	})
	g.Go(func() error {
		s.putAlignment(gctx, storage.AlignmentKey(contentUUID), result.Alignment)
		return nil
	})
	g.Go(func() error {
		s.putAlignment(gctx, storage.NormalizedAlignmentKey(contentUUID), result.NormalizedAlignment)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Transient(err, "failed to store audio artifact")
	}

	audioURI := s.store.URLFor(audioKey)
	if block != nil {
		if err := s.blocks.SetAudioPath(ctx, block.ID, audioURI); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to persist audio reference")
		}
	}

	return &SpeakResult{
		AudioURI:            audioURI,
		Text:                text,
		Alignment:           result.Alignment,
		NormalizedAlignment: result.NormalizedAlignment,
	}, nil
}

// tryCached serves the hit path: the audio blob exists under the content
// key. Missing alignment blobs are non-fatal.
func (s *Service) tryCached(ctx context.Context, text, contentUUID, audioKey string, block *entity.TextBlock) (*SpeakResult, bool) {
	exists, err := s.store.Exists(ctx, audioKey)
	if err != nil || !exists {
		return nil, false
	}

	audioURI := s.store.URLFor(audioKey)
	if block != nil && block.AudioPath != audioURI {
		if err := s.blocks.SetAudioPath(ctx, block.ID, audioURI); err != nil {
			logger.Warn(ctx, "failed to persist audio reference on cache hit", "block_id", block.ID, "error", err.Error())
		}
	}

	var alignment, normalized []tts.CharAlignment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		alignment = s.getAlignment(gctx, storage.AlignmentKey(contentUUID))
		return nil
	})
	g.Go(func() error {
		normalized = s.getAlignment(gctx, storage.NormalizedAlignmentKey(contentUUID))
		return nil
	})
	_ = g.Wait()

	return &SpeakResult{
		AudioURI:            audioURI,
		Text:                text,
		Alignment:           alignment,
		NormalizedAlignment: normalized,
	}, true
}

func (s *Service) putAlignment(ctx context.Context, key string, alignment []tts.CharAlignment) {
	if len(alignment) == 0 {
		return
	}
	data, err := json.Marshal(alignment)
	if err != nil {
		return
	}
	if err := s.store.Put(ctx, key, data, "application/json"); err != nil {
		logger.Warn(ctx, "failed to store alignment", "key", key, "error", err.Error())
	}
}

func (s *Service) getAlignment(ctx context.Context, key string) []tts.CharAlignment {
	data, err := s.store.GetBytes(ctx, key)
	if err != nil {
		return nil
	}
	var alignment []tts.CharAlignment
	if err := json.Unmarshal(data, &alignment); err != nil {
		return nil
	}
	return alignment
}

// resolveVoice picks the owner's configured voice, falling back to the
// server-wide default. No usable configuration is a ConfigMissing error.
func (s *Service) resolveVoice(ctx context.Context, ownerID string) (tts.Voice, error) {
	prefs, err := s.users.GetPreferences(ctx, ownerID)
	if err != nil {
		return tts.Voice{}, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load preferences")
	}
	if prefs != nil && prefs.HasTTSConfig() {
		return tts.Voice{APIKey: prefs.TTSAPIKey, VoiceID: prefs.TTSVoiceID}, nil
	}
	if s.ttsCfg.APIKey != "" && s.ttsCfg.VoiceID != "" {
		return tts.Voice{APIKey: s.ttsCfg.APIKey, VoiceID: s.ttsCfg.VoiceID}, nil
	}
	return tts.Voice{}, apperrors.ErrConfigMissing
}
