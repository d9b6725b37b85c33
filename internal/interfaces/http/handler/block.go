package handler

import (
	"github.com/gin-gonic/gin"

	"read-aloud-api/internal/application/reading"
	"read-aloud-api/internal/interfaces/http/dto"
)

// BlockHandler serves page block operations.
type BlockHandler struct {
	reading *reading.Service
}

// NewBlockHandler creates the block handler.
func NewBlockHandler(readingSvc *reading.Service) *BlockHandler {
	return &BlockHandler{reading: readingSvc}
}

// List returns the blocks of a page in insertion order.
// GET /pages/:id/blocks
func (h *BlockHandler) List(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	blocks, err := h.reading.GetBlocks(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewBlockListResponse(blocks))
}

// Detect re-runs layout extraction for a page, replacing its blocks.
// POST /pages/:id/detect-blocks
func (h *BlockHandler) Detect(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	blocks, err := h.reading.DetectBlocks(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewBlockListResponse(blocks))
}
