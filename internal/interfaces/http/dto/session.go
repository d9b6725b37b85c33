package dto

import (
	"read-aloud-api/internal/application/capture"
	"read-aloud-api/internal/domain/entity"
)

// CreateBookResponse is the pairing material returned by POST /books.
type CreateBookResponse struct {
	BookID    string `json:"bookId"`
	SessionID string `json:"sessionId"`
	QRCode    string `json:"qrCode"`
	MobileURL string `json:"mobileUrl"`
}

// NewCreateBookResponse maps a created capture session.
func NewCreateBookResponse(s *capture.Session) CreateBookResponse {
	return CreateBookResponse{
		BookID:    s.BookID,
		SessionID: s.Token,
		QRCode:    s.QRPNG,
		MobileURL: s.MobileURL,
	}
}

// AddPageResponse is the result of one page upload.
type AddPageResponse struct {
	PageNumber int    `json:"pageNumber"`
	ImagePath  string `json:"imagePath"`
}

// SessionPage is one uploaded page in the status view.
type SessionPage struct {
	PageNumber int    `json:"pageNumber"`
	ImagePath  string `json:"imagePath"`
}

// SessionStatusResponse is the polling view of a session.
type SessionStatusResponse struct {
	Status    entity.SessionStatus `json:"status"`
	PageCount int                  `json:"pageCount"`
	Pages     []SessionPage        `json:"pages"`
	Progress  entity.Progress      `json:"progress"`
}

// NewSessionStatusResponse maps a session status.
func NewSessionStatusResponse(s *capture.Status) SessionStatusResponse {
	pages := make([]SessionPage, 0, len(s.Pages))
	for _, p := range s.Pages {
		pages = append(pages, SessionPage{PageNumber: p.PageNumber, ImagePath: p.ImageURI})
	}
	return SessionStatusResponse{
		Status:    s.Status,
		PageCount: len(pages),
		Pages:     pages,
		Progress:  s.Progress,
	}
}
