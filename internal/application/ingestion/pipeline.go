// Package ingestion turns a completed capture session into a readable book.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/domain/repository"
	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/infrastructure/vision"
	apperrors "read-aloud-api/pkg/errors"
	"read-aloud-api/pkg/logger"
	"read-aloud-api/pkg/metrics"
)

var tracer = otel.Tracer("ingestion")

const (
	maxAttempts    = 3
	retryBaseDelay = time.Second
)

// pageSeparator prefixes each page's text in the aggregated full text.
const pageSeparator = "=== Page %d ==="

// BlockDetector extracts displayed-frame text blocks from a page image.
type BlockDetector interface {
	Detect(ctx context.Context, image []byte) ([]vision.Block, error)
}

// CoverAnalyzer extracts book metadata from the first page image.
type CoverAnalyzer interface {
	AnalyzeCover(ctx context.Context, image []byte) (vision.CoverInfo, error)
}

// ProgressCache invalidates the polling cache when progress moves.
type ProgressCache interface {
	Invalidate(ctx context.Context, token string)
}

// Pipeline executes the ingestion steps for one session. At most one worker
// runs per session; the coordinator's CAS transition guarantees that.
type Pipeline struct {
	books    repository.BookRepository
	pages    repository.PageRepository
	blocks   repository.BlockRepository
	sessions repository.SessionRepository
	tx       repository.Transactor
	store    storage.ArtifactStore
	detector BlockDetector
	cover    CoverAnalyzer
	progress ProgressCache
}

// NewPipeline wires the ingestion worker.
func NewPipeline(
	books repository.BookRepository,
	pages repository.PageRepository,
	blocks repository.BlockRepository,
	sessions repository.SessionRepository,
	tx repository.Transactor,
	store storage.ArtifactStore,
	detector BlockDetector,
	cover CoverAnalyzer,
	progress ProgressCache,
) *Pipeline {
	return &Pipeline{
		books:    books,
		pages:    pages,
		blocks:   blocks,
		sessions: sessions,
		tx:       tx,
		store:    store,
		detector: detector,
		cover:    cover,
		progress: progress,
	}
}

// Run executes the pipeline for a session already in the processing state.
// It never returns an error; terminal outcomes land on the book and session.
func (p *Pipeline) Run(ctx context.Context, token string) {
	ctx, span := tracer.Start(ctx, "ingestion.Pipeline.Run")
	defer span.End()

	metrics.ActiveIngestions.Inc()
	defer metrics.ActiveIngestions.Dec()
	start := time.Now()
	defer func() {
		metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	}()

	session, err := p.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		logger.Error(ctx, "ingestion could not load session", err)
		metrics.IngestionsTotal.WithLabelValues("failed").Inc()
		return
	}
	ctx = logger.WithContext(ctx, logger.BookIDKey, session.BookID)

	book, err := p.books.GetByID(ctx, session.BookID)
	if err != nil {
		p.fail(ctx, token, nil, err)
		return
	}
	if book == nil {
		p.abort(ctx, token)
		return
	}

	// Prepare: snapshot the page list and publish the step budget.
	pageList, err := p.pages.ListByBook(ctx, session.BookID)
	if err != nil {
		p.fail(ctx, token, book, err)
		return
	}
	stepsTotal := len(pageList) + 3
	p.publish(ctx, token, entity.Progress{
		StepLabel:  "Preparing book for processing",
		StepsDone:  0,
		StepsTotal: stepsTotal,
	})

	// Cover analysis from the first page.
	if err := p.analyzeCover(ctx, book, pageList); err != nil {
		p.fail(ctx, token, book, err)
		return
	}
	p.publish(ctx, token, entity.Progress{
		StepLabel:  "Analyzing book cover",
		StepsDone:  1,
		StepsTotal: stepsTotal,
	})

	// Per-page OCR.
	var segments []string
	for i, page := range pageList {
		// Abort at the step boundary if the book was deleted mid-run.
		current, err := p.books.GetByID(ctx, book.ID)
		if err != nil {
			p.fail(ctx, token, book, err)
			return
		}
		if current == nil {
			p.abort(ctx, token)
			return
		}

		p.publish(ctx, token, entity.Progress{
			StepLabel:  fmt.Sprintf("Reading page %d of %d", page.PageNumber, len(pageList)),
			StepsDone:  1 + i,
			StepsTotal: stepsTotal,
		})

		text, err := p.processPage(ctx, page)
		if err != nil {
			p.fail(ctx, token, book, err)
			return
		}
		if text != "" {
			segments = append(segments, fmt.Sprintf(pageSeparator, page.PageNumber)+"\n"+text)
		}
	}

	// Finalize: completed status, full text and metadata land atomically,
	// and the session follows in the same transaction.
	book.Complete(strings.Join(segments, "\n\n"))
	err = p.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.books.Complete(ctx, book); err != nil {
			return err
		}
		changed, err := p.sessions.TransitionStatus(ctx, token,
			entity.SessionStatusProcessing, entity.SessionStatusCompleted)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("session %s left processing state mid-run", token)
		}
		return p.sessions.UpdateProgress(ctx, token, entity.Progress{
			StepLabel:  "Completed",
			StepsDone:  stepsTotal,
			StepsTotal: stepsTotal,
		})
	})
	if err != nil {
		p.fail(ctx, token, book, err)
		return
	}
	p.progress.Invalidate(ctx, token)

	metrics.IngestionsTotal.WithLabelValues("completed").Inc()
	logger.Info(ctx, "ingestion completed", "pages", len(pageList))
}

// analyzeCover fills book metadata from the first page. Parse trouble inside
// the analyzer degrades to defaults; only transport failure after retries is
// an error.
func (p *Pipeline) analyzeCover(ctx context.Context, book *entity.Book, pages []*entity.Page) error {
	info := vision.CoverInfo{Title: "Unknown Book", Category: "General"}

	if len(pages) > 0 {
		image, err := p.loadImage(ctx, pages[0].ImagePath)
		if err != nil {
			return err
		}
		err = p.withRetry(ctx, func(ctx context.Context) error {
			var coverErr error
			info, coverErr = p.cover.AnalyzeCover(ctx, image)
			return coverErr
		})
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "cover analysis failed")
		}
		book.CoverImagePath = pages[0].ImagePath
	}

	book.Title = info.Title
	book.Author = info.Author
	book.Category = info.Category
	book.Categories = entity.StringList(info.Categories)
	keywords := make(entity.KeywordList, 0, len(info.Keywords))
	for _, k := range info.Keywords {
		keywords = append(keywords, entity.Keyword{Label: k})
	}
	book.Keywords = keywords

	if err := p.books.Update(ctx, book); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to store cover metadata")
	}
	return nil
}

// processPage detects blocks for one page, persists them and returns the
// page's plain text. An empty result skips the page in the aggregate.
func (p *Pipeline) processPage(ctx context.Context, page *entity.Page) (string, error) {
	image, err := p.loadImage(ctx, page.ImagePath)
	if err != nil {
		return "", err
	}

	var detected []vision.Block
	err = p.withRetry(ctx, func(ctx context.Context) error {
		var detectErr error
		detected, detectErr = p.detector.Detect(ctx, image)
		return detectErr
	})
	if err != nil {
		// Undecodable images skip the page rather than sinking the book.
		logger.Warn(ctx, "page skipped, detection failed", "page_id", page.ID, "error", err.Error())
		return "", nil
	}
	if len(detected) == 0 {
		logger.Info(ctx, "page yielded no text", "page_id", page.ID)
		return "", nil
	}

	now := time.Now()
	rows := make([]*entity.TextBlock, 0, len(detected))
	texts := make([]string, 0, len(detected))
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
			// Spread creation stamps so insertion order survives sorting.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
		texts = append(texts, b.Text)
	}
	if err := p.blocks.ReplaceForPage(ctx, page.ID, rows); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to persist blocks")
	}

	return strings.Join(texts, "\n"), nil
}

func (p *Pipeline) loadImage(ctx context.Context, imageURI string) ([]byte, error) {
	key, ok := p.store.KeyForURL(imageURI)
	if !ok {
		return nil, apperrors.New(apperrors.CodeInternal, "unresolvable image reference").WithDetail(imageURI)
	}
	var image []byte
	err := p.withRetry(ctx, func(ctx context.Context) error {
		var getErr error
		image, getErr = p.store.GetBytes(ctx, key)
		return getErr
	})
	if err != nil {
		return nil, apperrors.Transient(err, "failed to load page image")
	}
	return image, nil
}

// withRetry retries transient failures with exponential backoff. Non-app
// errors from providers and storage count as retryable.
func (p *Pipeline) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeTransient &&
			appErr.Code != apperrors.CodeRateLimited &&
			appErr.Code != apperrors.CodeInternal {
			return err
		}
	}
	return err
}

// publish writes progress to the database and drops the polling cache entry.
func (p *Pipeline) publish(ctx context.Context, token string, progress entity.Progress) {
	if err := p.sessions.UpdateProgress(ctx, token, progress); err != nil {
		logger.Warn(ctx, "failed to update progress", "error", err.Error())
	}
	p.progress.Invalidate(ctx, token)
}

// abort handles mid-run book deletion: the session is failed with a detail
// but nothing is rolled back.
func (p *Pipeline) abort(ctx context.Context, token string) {
	logger.Info(ctx, "ingestion aborted, book deleted mid-run")
	_ = p.sessions.SetStatus(ctx, token, entity.SessionStatusFailed)
	_ = p.sessions.UpdateProgress(ctx, token, entity.Progress{
		StepLabel: "Aborted",
		Detail:    "book was deleted during processing",
	})
	p.progress.Invalidate(ctx, token)
	metrics.IngestionsTotal.WithLabelValues("aborted").Inc()
}

func (p *Pipeline) fail(ctx context.Context, token string, book *entity.Book, cause error) {
	logger.Error(ctx, "ingestion failed", cause)

	if book != nil {
		book.Fail()
		if err := p.books.Update(ctx, book); err != nil {
			logger.Error(ctx, "failed to mark book failed", err)
		}
	}
	if err := p.sessions.SetStatus(ctx, token, entity.SessionStatusFailed); err != nil {
		logger.Error(ctx, "failed to mark session failed", err)
	}
	detail := "ingestion failed"
	if cause != nil {
		detail = cause.Error()
	}
	if err := p.sessions.UpdateProgress(ctx, token, entity.Progress{
		StepLabel: "Failed",
		Detail:    detail,
	}); err != nil {
		logger.Error(ctx, "failed to record failure detail", err)
	}
	p.progress.Invalidate(ctx, token)
	metrics.IngestionsTotal.WithLabelValues("failed").Inc()
}
