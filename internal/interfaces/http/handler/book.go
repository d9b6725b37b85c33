package handler

import (
	"github.com/gin-gonic/gin"

	"read-aloud-api/internal/application/capture"
	"read-aloud-api/internal/application/reading"
	"read-aloud-api/internal/interfaces/http/dto"
)

// BookHandler serves the book operations.
type BookHandler struct {
	capture *capture.Coordinator
	reading *reading.Service
}

// NewBookHandler creates the book handler.
func NewBookHandler(captureSvc *capture.Coordinator, readingSvc *reading.Service) *BookHandler {
	return &BookHandler{capture: captureSvc, reading: readingSvc}
}

// Create creates an empty book and its capture session.
// POST /books
func (h *BookHandler) Create(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	session, err := h.capture.CreateSession(c.Request.Context(), owner)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Created(c, dto.NewCreateBookResponse(session))
}

// List returns the caller's books, optionally filtered by category.
// GET /books?filter=<category>
func (h *BookHandler) List(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	summaries, err := h.reading.ListBooks(c.Request.Context(), owner, c.Query("filter"))
	if err != nil {
		dto.AppError(c, err)
		return
	}

	out := make([]dto.BookSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, dto.NewBookSummaryResponse(s))
	}
	dto.Success(c, out)
}

// Get returns a book with its ordered pages.
// GET /books/:id
func (h *BookHandler) Get(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	book, err := h.reading.GetBook(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewBookResponse(book))
}

// Delete removes a book and best-effort deletes its image blobs.
// DELETE /books/:id
func (h *BookHandler) Delete(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	if err := h.reading.DeleteBook(c.Request.Context(), owner, c.Param("id")); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.NoContent(c)
}
