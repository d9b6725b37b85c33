package repository

import (
	"context"

	"read-aloud-api/internal/domain/entity"
)

// BookRepository persists books.
type BookRepository interface {
	Create(ctx context.Context, book *entity.Book) error
	// GetByID returns nil when the book does not exist.
	GetByID(ctx context.Context, id string) (*entity.Book, error)
	// GetWithPages returns the book with pages ordered by page number.
	GetWithPages(ctx context.Context, id string) (*entity.Book, error)
	// ListByOwner returns books for an owner, optionally narrowed by
	// primary category, newest first.
	ListByOwner(ctx context.Context, ownerID, category string) ([]*entity.Book, error)
	Update(ctx context.Context, book *entity.Book) error
	// Complete atomically sets status=completed together with the
	// aggregated full text and cover metadata.
	Complete(ctx context.Context, book *entity.Book) error
	// Delete removes the book; pages, blocks and the session cascade.
	Delete(ctx context.Context, id string) error
}
