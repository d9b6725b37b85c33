package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"read-aloud-api/internal/domain/entity"
)

// BlockRepository is the PostgreSQL text-block repository.
type BlockRepository struct {
	client *Client
}

// NewBlockRepository creates a block repository.
func NewBlockRepository(client *Client) *BlockRepository {
	return &BlockRepository{client: client}
}

// CreateBatch inserts blocks preserving slice order.
func (r *BlockRepository) CreateBatch(ctx context.Context, blocks []*entity.TextBlock) error {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.CreateBatch")
	defer span.End()

	if len(blocks) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Create(blocks).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create blocks: %w", err)
	}
	return nil
}

// GetByID returns the block or nil.
func (r *BlockRepository) GetByID(ctx context.Context, id string) (*entity.TextBlock, error) {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var block entity.TextBlock
	if err := db.First(&block, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return &block, nil
}

// ListByPage returns blocks in insertion order.
func (r *BlockRepository) ListByPage(ctx context.Context, pageID string) ([]*entity.TextBlock, error) {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.ListByPage")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var blocks []*entity.TextBlock
	if err := db.Where("page_id = ?", pageID).
		Order("created_at ASC, id ASC").
		Find(&blocks).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	return blocks, nil
}

// ReplaceForPage swaps a page's block set in one transaction.
func (r *BlockRepository) ReplaceForPage(ctx context.Context, pageID string, blocks []*entity.TextBlock) error {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.ReplaceForPage")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.TextBlock{}, "page_id = ?", pageID).Error; err != nil {
			return err
		}
		if len(blocks) == 0 {
			return nil
		}
		return tx.Create(blocks).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to replace blocks: %w", err)
	}
	return nil
}

// SetAudioPath records the cached audio reference.
func (r *BlockRepository) SetAudioPath(ctx context.Context, blockID, audioPath string) error {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.SetAudioPath")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.TextBlock{}).Where("id = ?", blockID).
		Update("audio_path", audioPath).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set audio path: %w", err)
	}
	return nil
}

// ClearAudioPath drops a stale audio reference.
func (r *BlockRepository) ClearAudioPath(ctx context.Context, blockID string) error {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.ClearAudioPath")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.TextBlock{}).Where("id = ?", blockID).
		Update("audio_path", "").Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear audio path: %w", err)
	}
	return nil
}

// ListTextByBook returns block text in page then insertion order.
func (r *BlockRepository) ListTextByBook(ctx context.Context, bookID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.BlockRepository.ListTextByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var texts []string
	err := db.Model(&entity.TextBlock{}).
		Joins("JOIN pages ON pages.id = text_blocks.page_id").
		Where("pages.book_id = ?", bookID).
		Order("pages.page_number ASC, text_blocks.created_at ASC, text_blocks.id ASC").
		Pluck("text_blocks.ocr_text", &texts).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list block text: %w", err)
	}
	return texts, nil
}
