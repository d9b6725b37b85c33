// Package reading serves the reader-facing book, block and speech operations.
package reading

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"read-aloud-api/internal/config"
	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/domain/repository"
	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/infrastructure/tts"
	"read-aloud-api/internal/infrastructure/vision"
	apperrors "read-aloud-api/pkg/errors"
	"read-aloud-api/pkg/logger"
)

var tracer = otel.Tracer("reading")

// searchableWordLimit bounds the derived searchable text.
const searchableWordLimit = 500

// BlockDetector re-runs layout extraction for a page.
type BlockDetector interface {
	Detect(ctx context.Context, image []byte) ([]vision.Block, error)
}

// SynthLock narrows the cross-replica synthesis race window.
type SynthLock interface {
	TryAcquire(ctx context.Context, contentUUID string) bool
	WaitForHolder(ctx context.Context, contentUUID string) bool
	Release(ctx context.Context, contentUUID string)
}

// BookSummary is a book plus the derived listing fields.
type BookSummary struct {
	*entity.Book
	SearchableText string `json:"searchable_text"`
	KeywordString  string `json:"keyword_string"`
}

// Service implements the reading operations.
type Service struct {
	books    repository.BookRepository
	pages    repository.PageRepository
	blocks   repository.BlockRepository
	users    repository.UserRepository
	store    storage.ArtifactStore
	detector BlockDetector
	synth    tts.Synthesizer
	lock     SynthLock
	ttsCfg   config.TTSConfig

	flight singleflight.Group
}

// NewService wires the reading operations.
func NewService(
	books repository.BookRepository,
	pages repository.PageRepository,
	blocks repository.BlockRepository,
	users repository.UserRepository,
	store storage.ArtifactStore,
	detector BlockDetector,
	synth tts.Synthesizer,
	lock SynthLock,
	ttsCfg config.TTSConfig,
) *Service {
	return &Service{
		books:    books,
		pages:    pages,
		blocks:   blocks,
		users:    users,
		store:    store,
		detector: detector,
		synth:    synth,
		lock:     lock,
		ttsCfg:   ttsCfg,
	}
}

// ListBooks returns the owner's books with derived searchable text and a
// joined keyword string, optionally narrowed by category.
func (s *Service) ListBooks(ctx context.Context, ownerID, category string) ([]*BookSummary, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.ListBooks")
	defer span.End()

	books, err := s.books.ListByOwner(ctx, ownerID, category)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list books")
	}

	summaries := make([]*BookSummary, 0, len(books))
	for _, book := range books {
		texts, err := s.blocks.ListTextByBook(ctx, book.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to derive searchable text")
		}
		summaries = append(summaries, &BookSummary{
			Book:           book,
			SearchableText: searchableText(texts),
			KeywordString:  keywordString(book.Keywords),
		})
	}
	return summaries, nil
}

// GetBook returns a book with its pages ordered by page number.
func (s *Service) GetBook(ctx context.Context, ownerID, bookID string) (*entity.Book, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.GetBook")
	defer span.End()

	book, err := s.books.GetWithPages(ctx, bookID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load book")
	}
	if book == nil {
		return nil, apperrors.ErrBookNotFound
	}
	if book.OwnerID != ownerID {
		return nil, apperrors.ErrForbidden
	}
	return book, nil
}

// GetBlocks returns a page's blocks in insertion order.
func (s *Service) GetBlocks(ctx context.Context, ownerID, pageID string) ([]*entity.TextBlock, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.GetBlocks")
	defer span.End()

	if _, err := s.ownedPage(ctx, ownerID, pageID); err != nil {
		return nil, err
	}
	blocks, err := s.blocks.ListByPage(ctx, pageID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list blocks")
	}
	return blocks, nil
}

// DetectBlocks re-runs layout extraction for a page, replacing its blocks.
func (s *Service) DetectBlocks(ctx context.Context, ownerID, pageID string) ([]*entity.TextBlock, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.DetectBlocks")
	defer span.End()

	page, err := s.ownedPage(ctx, ownerID, pageID)
	if err != nil {
		return nil, err
	}

	key, ok := s.store.KeyForURL(page.ImagePath)
	if !ok {
		return nil, apperrors.New(apperrors.CodeInternal, "unresolvable image reference")
	}
	image, err := s.store.GetBytes(ctx, key)
	if err != nil {
		return nil, apperrors.Transient(err, "failed to load page image")
	}

	detected, err := s.detector.Detect(ctx, image)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOCRFailed, "block detection failed")
	}

	now := time.Now()
	rows := make([]*entity.TextBlock, 0, len(detected))
	for i, b := range detected {
		rows = append(rows, &entity.TextBlock{
			ID:         uuid.NewString(),
			PageID:     page.ID,
			X:          b.X,
			Y:          b.Y,
			Width:      b.Width,
			Height:     b.Height,
			OCRText:    b.Text,
			Confidence: b.Confidence,
			Status:     entity.BlockStatusCompleted,
			CreatedAt:  now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	if err := s.blocks.ReplaceForPage(ctx, pageID, rows); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to replace blocks")
	}
	return rows, nil
}

// DeleteBook removes the book row (pages and blocks cascade) and then makes
// a best-effort pass deleting referenced image blobs. Audio artifacts are
// shared across books by content identity and are never deleted.
func (s *Service) DeleteBook(ctx context.Context, ownerID, bookID string) error {
	ctx, span := tracer.Start(ctx, "reading.Service.DeleteBook")
	defer span.End()

	book, err := s.books.GetWithPages(ctx, bookID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to load book")
	}
	if book == nil {
		return apperrors.ErrBookNotFound
	}
	if book.OwnerID != ownerID {
		return apperrors.ErrForbidden
	}

	if err := s.books.Delete(ctx, bookID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete book")
	}

	for _, page := range book.Pages {
		key, ok := s.store.KeyForURL(page.ImagePath)
		if !ok {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			logger.Warn(ctx, "failed to delete page image", "key", key, "error", err.Error())
		}
	}
	if book.CoverImagePath != "" {
		if key, ok := s.store.KeyForURL(book.CoverImagePath); ok {
			if err := s.store.Delete(ctx, key); err != nil {
				logger.Warn(ctx, "failed to delete cover image", "key", key, "error", err.Error())
			}
		}
	}
	return nil
}

// GetPreferences returns the owner's preferences, zero-valued when unset.
func (s *Service) GetPreferences(ctx context.Context, ownerID string) (*entity.UserPreferences, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.GetPreferences")
	defer span.End()

	prefs, err := s.users.GetPreferences(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load preferences")
	}
	if prefs == nil {
		prefs = &entity.UserPreferences{UserID: ownerID}
	}
	return prefs, nil
}

// UpdatePreferences upserts the owner's preferences.
func (s *Service) UpdatePreferences(ctx context.Context, prefs *entity.UserPreferences) (*entity.UserPreferences, error) {
	ctx, span := tracer.Start(ctx, "reading.Service.UpdatePreferences")
	defer span.End()

	if prefs.UserID == "" {
		return nil, apperrors.ErrValidation.WithDetail("user id is required")
	}
	if err := s.users.UpsertPreferences(ctx, prefs); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to store preferences")
	}
	return prefs, nil
}

// ownedPage loads a page and verifies the book owner.
func (s *Service) ownedPage(ctx context.Context, ownerID, pageID string) (*entity.Page, error) {
	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load page")
	}
	if page == nil {
		return nil, apperrors.ErrPageNotFound
	}
	book, err := s.books.GetByID(ctx, page.BookID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load book")
	}
	if book == nil {
		return nil, apperrors.ErrBookNotFound
	}
	if book.OwnerID != ownerID {
		return nil, apperrors.ErrForbidden
	}
	return page, nil
}

// searchableText lowercases and joins the first 500 words of the block text.
func searchableText(texts []string) string {
	var words []string
	for _, t := range texts {
		for _, w := range strings.Fields(t) {
			words = append(words, strings.ToLower(w))
			if len(words) == searchableWordLimit {
				return strings.Join(words, " ")
			}
		}
	}
	return strings.Join(words, " ")
}

// keywordString joins keyword labels for display and search.
func keywordString(keywords entity.KeywordList) string {
	labels := make([]string, 0, len(keywords))
	for _, k := range keywords {
		labels = append(labels, k.Label)
	}
	return strings.Join(labels, ", ")
}
