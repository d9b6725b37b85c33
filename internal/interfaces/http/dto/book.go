package dto

import (
	"time"

	"read-aloud-api/internal/application/reading"
	"read-aloud-api/internal/domain/entity"
)

// BookSummaryResponse is one element of the book list.
type BookSummaryResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Author         string            `json:"author,omitempty"`
	Category       string            `json:"category"`
	Categories     []string          `json:"categories,omitempty"`
	Keywords       []entity.Keyword  `json:"keywords,omitempty"`
	KeywordString  string            `json:"keyword_string,omitempty"`
	SearchableText string            `json:"searchable_text,omitempty"`
	CoverImagePath string            `json:"cover_image_path,omitempty"`
	Status         entity.BookStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewBookSummaryResponse maps a derived book summary.
func NewBookSummaryResponse(s *reading.BookSummary) BookSummaryResponse {
	return BookSummaryResponse{
		ID:             s.ID,
		Title:          s.Title,
		Author:         s.Author,
		Category:       s.Category,
		Categories:     s.Categories,
		Keywords:       s.Keywords,
		KeywordString:  s.KeywordString,
		SearchableText: s.SearchableText,
		CoverImagePath: s.CoverImagePath,
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
	}
}

// PageResponse is one page of a book.
type PageResponse struct {
	ID         string `json:"id"`
	PageNumber int    `json:"pageNumber"`
	ImagePath  string `json:"imagePath"`
}

// BookResponse is a book with its ordered pages.
type BookResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Author         string            `json:"author,omitempty"`
	Category       string            `json:"category"`
	Categories     []string          `json:"categories,omitempty"`
	Keywords       []entity.Keyword  `json:"keywords,omitempty"`
	CoverImagePath string            `json:"cover_image_path,omitempty"`
	Status         entity.BookStatus `json:"status"`
	FullText       string            `json:"full_text,omitempty"`
	Pages          []PageResponse    `json:"pages"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewBookResponse maps a book entity with pages.
func NewBookResponse(b *entity.Book) BookResponse {
	pages := make([]PageResponse, 0, len(b.Pages))
	for _, p := range b.Pages {
		pages = append(pages, PageResponse{
			ID:         p.ID,
			PageNumber: p.PageNumber,
			ImagePath:  p.ImagePath,
		})
	}
	return BookResponse{
		ID:             b.ID,
		Title:          b.Title,
		Author:         b.Author,
		Category:       b.Category,
		Categories:     b.Categories,
		Keywords:       b.Keywords,
		CoverImagePath: b.CoverImagePath,
		Status:         b.Status,
		FullText:       b.FullText,
		Pages:          pages,
		CreatedAt:      b.CreatedAt,
	}
}

// BlockResponse is one text block of a page.
type BlockResponse struct {
	ID         string             `json:"id"`
	PageID     string             `json:"page_id"`
	X          int                `json:"x"`
	Y          int                `json:"y"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Text       string             `json:"text"`
	Confidence float64            `json:"confidence"`
	Status     entity.BlockStatus `json:"status"`
	AudioPath  string             `json:"audio_path,omitempty"`
}

// NewBlockResponse maps a text block entity.
func NewBlockResponse(b *entity.TextBlock) BlockResponse {
	return BlockResponse{
		ID:         b.ID,
		PageID:     b.PageID,
		X:          b.X,
		Y:          b.Y,
		Width:      b.Width,
		Height:     b.Height,
		Text:       b.OCRText,
		Confidence: b.Confidence,
		Status:     b.Status,
		AudioPath:  b.AudioPath,
	}
}

// BlockListResponse is the detect-blocks result.
type BlockListResponse struct {
	Blocks      []BlockResponse `json:"blocks"`
	TotalBlocks int             `json:"totalBlocks"`
}

// NewBlockListResponse maps a block slice.
func NewBlockListResponse(blocks []*entity.TextBlock) BlockListResponse {
	out := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, NewBlockResponse(b))
	}
	return BlockListResponse{Blocks: out, TotalBlocks: len(out)}
}
