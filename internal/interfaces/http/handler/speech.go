package handler

import (
	"github.com/gin-gonic/gin"

	"read-aloud-api/internal/application/reading"
	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/interfaces/http/dto"
	apperrors "read-aloud-api/pkg/errors"
)

// SpeechHandler serves synthesis and preferences.
type SpeechHandler struct {
	reading *reading.Service
}

// NewSpeechHandler creates the speech handler.
func NewSpeechHandler(readingSvc *reading.Service) *SpeechHandler {
	return &SpeechHandler{reading: readingSvc}
}

// SpeakBlock returns cached or fresh speech for a block.
// POST /blocks/:id/speak
func (h *SpeechHandler) SpeakBlock(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	result, err := h.reading.SpeakBlock(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewSpeakResponse(result))
}

// SpeakText synthesizes ad-hoc text with no block persistence.
// POST /tts/direct
func (h *SpeechHandler) SpeakText(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req dto.SpeakTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.AppError(c, apperrors.ErrValidation.WithDetail("text is required"))
		return
	}

	result, err := h.reading.SpeakText(c.Request.Context(), owner, req.Text)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewSpeakResponse(result))
}

// GetPreferences returns the caller's reading preferences.
// GET /preferences
func (h *SpeechHandler) GetPreferences(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	prefs, err := h.reading.GetPreferences(c.Request.Context(), owner)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewPreferencesResponse(prefs))
}

// UpdatePreferences upserts the caller's reading preferences.
// PUT /preferences
func (h *SpeechHandler) UpdatePreferences(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req dto.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.AppError(c, apperrors.ErrValidation.WithDetail("invalid preferences body"))
		return
	}

	prefs, err := h.reading.UpdatePreferences(c.Request.Context(), &entity.UserPreferences{
		UserID:       owner,
		TTSVoiceID:   req.TTSVoiceID,
		TTSAPIKey:    req.TTSAPIKey,
		ReadingSpeed: req.ReadingSpeed,
	})
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewPreferencesResponse(prefs))
}
