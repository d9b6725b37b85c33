package repository

import (
	"context"

	"read-aloud-api/internal/domain/entity"
)

// PageRepository persists pages.
type PageRepository interface {
	// CreateNext inserts the page with the next free ordinal for its book
	// and returns the assigned number. Concurrent inserts on the same book
	// observe unique, dense ordinals.
	CreateNext(ctx context.Context, page *entity.Page) (int, error)
	// GetByID returns nil when the page does not exist.
	GetByID(ctx context.Context, id string) (*entity.Page, error)
	// ListByBook returns pages ordered by page number.
	ListByBook(ctx context.Context, bookID string) ([]*entity.Page, error)
	CountByBook(ctx context.Context, bookID string) (int64, error)
}
