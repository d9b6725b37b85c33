package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"read-aloud-api/internal/domain/entity"
)

// PageRepository is the PostgreSQL page repository.
type PageRepository struct {
	client *Client
}

// NewPageRepository creates a page repository.
func NewPageRepository(client *Client) *PageRepository {
	return &PageRepository{client: client}
}

// ordinalInsertAttempts bounds the retry loop on ordinal collisions.
const ordinalInsertAttempts = 5

// CreateNext inserts the page with the next ordinal for its book. The
// ordinal is computed inside the INSERT; the unique index on
// (book_id, page_number) rejects the loser of a concurrent race, which is
// then retried. Ordinals stay unique and dense.
func (r *PageRepository) CreateNext(ctx context.Context, page *entity.Page) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.CreateNext")
	defer span.End()

	db := getDB(ctx, r.client.db)

	for attempt := 0; attempt < ordinalInsertAttempts; attempt++ {
		var assigned int
		err := db.Raw(
			`INSERT INTO pages (id, book_id, page_number, image_path, created_at)
			 VALUES (?, ?, (SELECT COALESCE(MAX(page_number), 0) + 1 FROM pages WHERE book_id = ?), ?, ?)
			 RETURNING page_number`,
			page.ID, page.BookID, page.BookID, page.ImagePath, page.CreatedAt,
		).Scan(&assigned).Error
		if err == nil {
			page.PageNumber = assigned
			return assigned, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		span.RecordError(err)
		return 0, fmt.Errorf("failed to insert page: %w", err)
	}

	return 0, fmt.Errorf("failed to assign page ordinal after %d attempts", ordinalInsertAttempts)
}

// GetByID returns the page or nil.
func (r *PageRepository) GetByID(ctx context.Context, id string) (*entity.Page, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var page entity.Page
	if err := db.First(&page, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

// ListByBook returns pages ordered by page number.
func (r *PageRepository) ListByBook(ctx context.Context, bookID string) ([]*entity.Page, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.ListByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var pages []*entity.Page
	if err := db.Where("book_id = ?", bookID).
		Order("page_number ASC").
		Find(&pages).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// CountByBook returns the number of pages for a book.
func (r *PageRepository) CountByBook(ctx context.Context, bookID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.PageRepository.CountByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.Page{}).Where("book_id = ?", bookID).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}
