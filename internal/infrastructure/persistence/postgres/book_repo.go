package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"read-aloud-api/internal/domain/entity"
)

// BookRepository is the PostgreSQL book repository.
type BookRepository struct {
	client *Client
}

// NewBookRepository creates a book repository.
func NewBookRepository(client *Client) *BookRepository {
	return &BookRepository{client: client}
}

// Create inserts a book.
func (r *BookRepository) Create(ctx context.Context, book *entity.Book) error {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(book).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetByID returns the book or nil.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*entity.Book, error) {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var book entity.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &book, nil
}

// GetWithPages returns the book with pages ordered by page number, or nil.
func (r *BookRepository) GetWithPages(ctx context.Context, id string) (*entity.Book, error) {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.GetWithPages")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var book entity.Book
	err := db.Preload("Pages", func(db *gorm.DB) *gorm.DB {
		return db.Order("page_number ASC")
	}).First(&book, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get book with pages: %w", err)
	}
	return &book, nil
}

// ListByOwner returns the owner's books newest first, optionally filtered by
// primary category.
func (r *BookRepository) ListByOwner(ctx context.Context, ownerID, category string) ([]*entity.Book, error) {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.ListByOwner")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Where("owner_id = ?", ownerID)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var books []*entity.Book
	if err := query.Order("created_at DESC").Find(&books).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// Update saves the book.
func (r *BookRepository) Update(ctx context.Context, book *entity.Book) error {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	book.UpdatedAt = time.Now()
	if err := db.Save(book).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

// Complete writes status, full text and cover metadata in one statement so
// readers never observe completed without text.
func (r *BookRepository) Complete(ctx context.Context, book *entity.Book) error {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.Complete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	updates := map[string]interface{}{
		"status":           entity.BookStatusCompleted,
		"full_text":        book.FullText,
		"title":            book.Title,
		"author":           book.Author,
		"category":         book.Category,
		"categories":       book.Categories,
		"keywords":         book.Keywords,
		"cover_image_path": book.CoverImagePath,
		"updated_at":       time.Now(),
	}
	if err := db.Model(&entity.Book{}).Where("id = ?", book.ID).Updates(updates).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to complete book: %w", err)
	}
	return nil
}

// Delete removes the book; dependents cascade via foreign keys.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Book{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}
