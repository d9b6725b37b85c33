package ingestion

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"read-aloud-api/internal/config"
	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/infrastructure/persistence/memory"
	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/infrastructure/vision"
	apperrors "read-aloud-api/pkg/errors"
)

type fakeDetector struct {
	mu     sync.Mutex
	blocks map[string][]vision.Block
	errs   map[string]error
	calls  int
}

func (d *fakeDetector) Detect(_ context.Context, image []byte) ([]vision.Block, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if err, ok := d.errs[string(image)]; ok {
		return nil, err
	}
	return d.blocks[string(image)], nil
}

type fakeCover struct {
	info vision.CoverInfo
	err  error
}

func (c *fakeCover) AnalyzeCover(context.Context, []byte) (vision.CoverInfo, error) {
	if c.err != nil {
		return vision.CoverInfo{}, c.err
	}
	return c.info, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	count int
}

func (f *fakeInvalidator) Invalidate(context.Context, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
}

type pipelineFixture struct {
	pipeline *Pipeline
	db       *memory.Store
	store    storage.ArtifactStore
	detector *fakeDetector
	cover    *fakeCover
	token    string
	bookID   string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	store, err := storage.NewLocalStore(&config.LocalConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	db := memory.NewStore()
	detector := &fakeDetector{
		blocks: make(map[string][]vision.Block),
		errs:   make(map[string]error),
	}
	cover := &fakeCover{info: vision.CoverInfo{
		Title:    "The Lighthouse",
		Author:   "A. Writer",
		Category: "Fiction",
		Keywords: []string{"sea", "night"},
	}}

	f := &pipelineFixture{
		db:       db,
		store:    store,
		detector: detector,
		cover:    cover,
		token:    "tok-" + uuid.NewString(),
		bookID:   uuid.NewString(),
	}
	f.pipeline = NewPipeline(
		db.Books(), db.Pages(), db.Blocks(), db.Sessions(),
		db, store, detector, cover, &fakeInvalidator{},
	)
	return f
}

// seed creates the book and a processing session, then uploads one page per
// image payload.
func (f *pipelineFixture) seed(t *testing.T, images ...string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.db.Books().Create(ctx, entity.NewBook(f.bookID, "owner-1")))

	session := entity.NewScanSession(f.token, f.bookID, time.Hour)
	session.Status = entity.SessionStatusProcessing
	require.NoError(t, f.db.Sessions().Create(ctx, session))

	for _, img := range images {
		key := storage.UploadKey(".jpg")
		require.NoError(t, f.store.Put(ctx, key, []byte(img), "image/jpeg"))
		_, err := f.db.Pages().CreateNext(ctx, &entity.Page{
			ID:        uuid.NewString(),
			BookID:    f.bookID,
			ImagePath: f.store.URLFor(key),
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
	}
}

func TestPipelineCompletesBook(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "img-1", "img-2")
	f.detector.blocks["img-1"] = []vision.Block{
		{Text: "Chapter One", X: 10, Y: 10, Width: 200, Height: 40, Confidence: 0.98},
		{Text: "It was a dark night.", X: 10, Y: 60, Width: 400, Height: 30, Confidence: 0.95},
	}
	f.detector.blocks["img-2"] = []vision.Block{
		{Text: "The storm arrived.", X: 10, Y: 10, Width: 380, Height: 30, Confidence: 0.97},
	}

	ctx := context.Background()
	f.pipeline.Run(ctx, f.token)

	book, err := f.db.Books().GetWithPages(ctx, f.bookID)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, entity.BookStatusCompleted, book.Status)
	assert.Equal(t, "The Lighthouse", book.Title)
	assert.Equal(t, "A. Writer", book.Author)
	assert.Equal(t, "Fiction", book.Category)
	require.Len(t, book.Keywords, 2)
	assert.Equal(t, "sea", book.Keywords[0].Label)
	assert.NotEmpty(t, book.CoverImagePath)

	want := "=== Page 1 ===\nChapter One\nIt was a dark night.\n\n" +
		"=== Page 2 ===\nThe storm arrived."
	assert.Equal(t, want, book.FullText)

	// Blocks landed in detector order.
	blocks, err := f.db.Blocks().ListByPage(ctx, book.Pages[0].ID)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Chapter One", blocks[0].OCRText)
	assert.Equal(t, "It was a dark night.", blocks[1].OCRText)
	assert.Equal(t, entity.BlockStatusCompleted, blocks[0].Status)

	session, err := f.db.Sessions().GetByToken(ctx, f.token)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusCompleted, session.Status)
	assert.Equal(t, "Completed", session.StepLabel)
	assert.Equal(t, 5, session.StepsTotal) // 2 pages + 3
	assert.Equal(t, 5, session.StepsDone)
}

func TestPipelineSkipsPagesWithoutText(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "img-1", "img-blank", "img-3")
	f.detector.blocks["img-1"] = []vision.Block{{Text: "First page."}}
	// img-blank detects nothing.
	f.detector.blocks["img-3"] = []vision.Block{{Text: "Third page."}}

	ctx := context.Background()
	f.pipeline.Run(ctx, f.token)

	book, err := f.db.Books().GetByID(ctx, f.bookID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookStatusCompleted, book.Status)
	// The blank page contributes no segment and no separator.
	want := "=== Page 1 ===\nFirst page.\n\n=== Page 3 ===\nThird page."
	assert.Equal(t, want, book.FullText)
}

func TestPipelineSkipsUndetectablePage(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "img-1", "img-bad")
	f.detector.blocks["img-1"] = []vision.Block{{Text: "Readable."}}
	// Non-retryable detector failure skips the page instead of failing the book.
	f.detector.errs["img-bad"] = apperrors.ErrBadImage

	ctx := context.Background()
	f.pipeline.Run(ctx, f.token)

	book, err := f.db.Books().GetByID(ctx, f.bookID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookStatusCompleted, book.Status)
	assert.Equal(t, "=== Page 1 ===\nReadable.", book.FullText)
}

func TestPipelineCoverFailureFailsRun(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "img-1")
	f.cover.err = apperrors.ErrValidation.WithDetail("cover analysis rejected")

	ctx := context.Background()
	f.pipeline.Run(ctx, f.token)

	book, err := f.db.Books().GetByID(ctx, f.bookID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookStatusFailed, book.Status)

	session, err := f.db.Sessions().GetByToken(ctx, f.token)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFailed, session.Status)
	assert.Equal(t, "Failed", session.StepLabel)
	assert.Contains(t, session.Detail, "cover analysis failed")
}

func TestPipelineAbortsWhenBookDeleted(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	// Session exists but its book is already gone.
	session := entity.NewScanSession(f.token, f.bookID, time.Hour)
	session.Status = entity.SessionStatusProcessing
	require.NoError(t, f.db.Sessions().Create(ctx, session))

	f.pipeline.Run(ctx, f.token)

	stored, err := f.db.Sessions().GetByToken(ctx, f.token)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusFailed, stored.Status)
	assert.Equal(t, "book was deleted during processing", stored.Detail)
}

func TestPipelineEmptySessionCompletes(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t) // no pages

	ctx := context.Background()
	f.pipeline.Run(ctx, f.token)

	book, err := f.db.Books().GetByID(ctx, f.bookID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookStatusCompleted, book.Status)
	// No pages means cover defaults and empty full text.
	assert.Equal(t, "Unknown Book", book.Title)
	assert.Equal(t, "General", book.Category)
	assert.Empty(t, book.FullText)
	assert.Empty(t, book.CoverImagePath)
	assert.Zero(t, f.detector.calls)

	session, err := f.db.Sessions().GetByToken(ctx, f.token)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusCompleted, session.Status)
	assert.Equal(t, 3, session.StepsTotal)
}

func TestPipelineRetriesTransientDetection(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "img-flaky")

	var attempts int
	f.detector.blocks["img-flaky"] = []vision.Block{{Text: "Recovered."}}
	flaky := detectorFunc(func(ctx context.Context, image []byte) ([]vision.Block, error) {
		attempts++
		if attempts == 1 {
			return nil, apperrors.Transient(fmt.Errorf("upstream 503"), "ocr unavailable")
		}
		return f.detector.Detect(ctx, image)
	})
	f.pipeline.detector = flaky

	ctx := context.Background()
	f.pipeline.Run(ctx, f.token)

	assert.Equal(t, 2, attempts)
	book, err := f.db.Books().GetByID(ctx, f.bookID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookStatusCompleted, book.Status)
	assert.Equal(t, "=== Page 1 ===\nRecovered.", book.FullText)
}

type detectorFunc func(ctx context.Context, image []byte) ([]vision.Block, error)

func (f detectorFunc) Detect(ctx context.Context, image []byte) ([]vision.Block, error) {
	return f(ctx, image)
}
