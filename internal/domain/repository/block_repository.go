package repository

import (
	"context"

	"read-aloud-api/internal/domain/entity"
)

// BlockRepository persists text blocks.
type BlockRepository interface {
	// CreateBatch inserts blocks preserving slice order.
	CreateBatch(ctx context.Context, blocks []*entity.TextBlock) error
	// GetByID returns nil when the block does not exist.
	GetByID(ctx context.Context, id string) (*entity.TextBlock, error)
	// ListByPage returns blocks in insertion order.
	ListByPage(ctx context.Context, pageID string) ([]*entity.TextBlock, error)
	// ReplaceForPage deletes a page's blocks and inserts the new set in one
	// transaction.
	ReplaceForPage(ctx context.Context, pageID string, blocks []*entity.TextBlock) error
	// SetAudioPath records the cached audio reference for a block.
	SetAudioPath(ctx context.Context, blockID, audioPath string) error
	// ClearAudioPath drops a stale audio reference (legacy rows).
	ClearAudioPath(ctx context.Context, blockID string) error
	// ListTextByBook returns the OCR text of all the book's blocks in page
	// then insertion order; used to derive searchable text.
	ListTextByBook(ctx context.Context, bookID string) ([]string, error)
}
