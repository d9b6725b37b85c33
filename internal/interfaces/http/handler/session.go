package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"read-aloud-api/internal/application/capture"
	"read-aloud-api/internal/interfaces/http/dto"
	apperrors "read-aloud-api/pkg/errors"
)

// SessionHandler serves the token-authenticated capture endpoints used by
// the phone.
type SessionHandler struct {
	capture *capture.Coordinator
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(captureSvc *capture.Coordinator) *SessionHandler {
	return &SessionHandler{capture: captureSvc}
}

// AddPage accepts one multipart page image.
// POST /sessions/:token/pages
func (h *SessionHandler) AddPage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		dto.AppError(c, apperrors.ErrBadImage.WithDetail("multipart field 'image' is required"))
		return
	}

	f, err := file.Open()
	if err != nil {
		dto.AppError(c, apperrors.ErrBadImage.WithDetail("unreadable upload"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		dto.AppError(c, apperrors.ErrBadImage.WithDetail("unreadable upload"))
		return
	}

	contentType := file.Header.Get("Content-Type")
	upload, err := h.capture.AddPage(c.Request.Context(), c.Param("token"), data, contentType)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Created(c, dto.AddPageResponse{
		PageNumber: upload.PageNumber,
		ImagePath:  upload.ImageURI,
	})
}

// Complete closes the session for uploads and starts ingestion.
// POST /sessions/:token/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	if err := h.capture.Complete(c.Request.Context(), c.Param("token")); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Accepted(c, gin.H{"status": "processing"})
}

// Status returns the polling view of the session.
// GET /sessions/:token/status
func (h *SessionHandler) Status(c *gin.Context) {
	status, err := h.capture.Status(c.Request.Context(), c.Param("token"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewSessionStatusResponse(status))
}
