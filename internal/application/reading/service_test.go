package reading

import (
	"context"
	"fmt"
	"strings"
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

type stubDetector struct {
	blocks []vision.Block
	err    error
}

func (d *stubDetector) Detect(context.Context, []byte) ([]vision.Block, error) {
	return d.blocks, d.err
}

type noopLock struct{}

func (noopLock) TryAcquire(context.Context, string) bool    { return true }
func (noopLock) WaitForHolder(context.Context, string) bool { return true }
func (noopLock) Release(context.Context, string)            {}

type readingFixture struct {
	svc      *Service
	db       *memory.Store
	store    storage.ArtifactStore
	detector *stubDetector
}

func newReadingFixture(t *testing.T) *readingFixture {
	t.Helper()

	store, err := storage.NewLocalStore(&config.LocalConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	db := memory.NewStore()
	detector := &stubDetector{}
	svc := NewService(
		db.Books(), db.Pages(), db.Blocks(), db.Users(),
		store, detector, &stubSynth{}, noopLock{}, config.TTSConfig{},
	)
	return &readingFixture{svc: svc, db: db, store: store, detector: detector}
}

// addBook seeds a completed book with one page and the given block texts.
func (f *readingFixture) addBook(t *testing.T, ownerID string, texts ...string) (*entity.Book, *entity.Page) {
	t.Helper()
	ctx := context.Background()

	book := entity.NewBook(uuid.NewString(), ownerID)
	book.Complete("")
	require.NoError(t, f.db.Books().Create(ctx, book))

	key := storage.UploadKey(".jpg")
	require.NoError(t, f.store.Put(ctx, key, []byte("page-image"), "image/jpeg"))
	page := &entity.Page{
		ID:        uuid.NewString(),
		BookID:    book.ID,
		ImagePath: f.store.URLFor(key),
		CreatedAt: time.Now(),
	}
	_, err := f.db.Pages().CreateNext(ctx, page)
	require.NoError(t, err)

	now := time.Now()
	rows := make([]*entity.TextBlock, 0, len(texts))
	for i, text := range texts {
		rows = append(rows, &entity.TextBlock{
			ID:        uuid.NewString(),
			PageID:    page.ID,
			OCRText:   text,
			Status:    entity.BlockStatusCompleted,
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	require.NoError(t, f.db.Blocks().CreateBatch(ctx, rows))
	return book, page
}

func TestListBooksDerivesSearchableText(t *testing.T) {
	f := newReadingFixture(t)
	book, _ := f.addBook(t, "owner-1", "The Quick", "Brown FOX")
	book.Keywords = entity.KeywordList{{Label: "sea"}, {Label: "night"}}
	require.NoError(t, f.db.Books().Update(context.Background(), book))

	summaries, err := f.svc.ListBooks(context.Background(), "owner-1", "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "the quick brown fox", summaries[0].SearchableText)
	assert.Equal(t, "sea, night", summaries[0].KeywordString)
}

func TestListBooksCapsSearchableText(t *testing.T) {
	f := newReadingFixture(t)

	words := make([]string, 600)
	for i := range words {
		words[i] = fmt.Sprintf("Word%d", i)
	}
	f.addBook(t, "owner-1", strings.Join(words, " "))

	summaries, err := f.svc.ListBooks(context.Background(), "owner-1", "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	got := strings.Fields(summaries[0].SearchableText)
	require.Len(t, got, 500)
	assert.Equal(t, "word0", got[0])
	assert.Equal(t, "word499", got[499])
}

func TestListBooksFiltersByCategory(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()

	fiction, _ := f.addBook(t, "owner-1")
	fiction.Category = "Fiction"
	require.NoError(t, f.db.Books().Update(ctx, fiction))
	science, _ := f.addBook(t, "owner-1")
	science.Category = "Science"
	require.NoError(t, f.db.Books().Update(ctx, science))

	summaries, err := f.svc.ListBooks(ctx, "owner-1", "Science")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, science.ID, summaries[0].ID)
}

func TestGetBookOwnership(t *testing.T) {
	f := newReadingFixture(t)
	book, _ := f.addBook(t, "owner-1", "text")

	got, err := f.svc.GetBook(context.Background(), "owner-1", book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
	require.Len(t, got.Pages, 1)

	_, err = f.svc.GetBook(context.Background(), "owner-2", book.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = f.svc.GetBook(context.Background(), "owner-1", "no-such-book")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBookNotFound))
}

func TestGetBlocksPreservesOrder(t *testing.T) {
	f := newReadingFixture(t)
	_, page := f.addBook(t, "owner-1", "first", "second", "third")

	blocks, err := f.svc.GetBlocks(context.Background(), "owner-1", page.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, "first", blocks[0].OCRText)
	assert.Equal(t, "second", blocks[1].OCRText)
	assert.Equal(t, "third", blocks[2].OCRText)

	_, err = f.svc.GetBlocks(context.Background(), "owner-2", page.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestDetectBlocksReplacesExisting(t *testing.T) {
	f := newReadingFixture(t)
	_, page := f.addBook(t, "owner-1", "stale")
	f.detector.blocks = []vision.Block{
		{Text: "fresh one", X: 1, Y: 2, Width: 3, Height: 4, Confidence: 0.9},
		{Text: "fresh two", X: 5, Y: 6, Width: 7, Height: 8, Confidence: 0.8},
	}

	rows, err := f.svc.DetectBlocks(context.Background(), "owner-1", page.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	stored, err := f.db.Blocks().ListByPage(context.Background(), page.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "fresh one", stored[0].OCRText)
	assert.Equal(t, "fresh two", stored[1].OCRText)
}

func TestDetectBlocksDetectionError(t *testing.T) {
	f := newReadingFixture(t)
	_, page := f.addBook(t, "owner-1", "stale")
	f.detector.err = fmt.Errorf("provider unavailable")

	_, err := f.svc.DetectBlocks(context.Background(), "owner-1", page.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeOCRFailed))
}

func TestDeleteBookRemovesImagesKeepsAudio(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()
	book, page := f.addBook(t, "owner-1", "text")
	book.CoverImagePath = page.ImagePath
	require.NoError(t, f.db.Books().Update(ctx, book))

	// A cached audio artifact shared by content identity.
	audioKey := storage.AudioKey(ContentUUID("text"))
	require.NoError(t, f.store.Put(ctx, audioKey, []byte("mp3"), "audio/mpeg"))

	require.NoError(t, f.svc.DeleteBook(ctx, "owner-1", book.ID))

	gone, err := f.db.Books().GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	imageKey, ok := f.store.KeyForURL(page.ImagePath)
	require.True(t, ok)
	exists, err := f.store.Exists(ctx, imageKey)
	require.NoError(t, err)
	assert.False(t, exists, "page image should be deleted")

	exists, err = f.store.Exists(ctx, audioKey)
	require.NoError(t, err)
	assert.True(t, exists, "audio artifacts are shared and must survive")

	// The cascaded page is gone too.
	_, err = f.svc.GetBlocks(ctx, "owner-1", page.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePageNotFound))
}

func TestDeleteBookOwnership(t *testing.T) {
	f := newReadingFixture(t)
	book, _ := f.addBook(t, "owner-1", "text")

	err := f.svc.DeleteBook(context.Background(), "owner-2", book.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	err = f.svc.DeleteBook(context.Background(), "owner-1", "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBookNotFound))
}

func TestPreferencesRoundTrip(t *testing.T) {
	f := newReadingFixture(t)
	ctx := context.Background()

	// Unset preferences read as a zero-valued record.
	prefs, err := f.svc.GetPreferences(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", prefs.UserID)
	assert.Empty(t, prefs.TTSVoiceID)

	_, err = f.svc.UpdatePreferences(ctx, &entity.UserPreferences{
		UserID:       "owner-1",
		TTSVoiceID:   "voice-7",
		TTSAPIKey:    "key-7",
		ReadingSpeed: 0.8,
	})
	require.NoError(t, err)

	prefs, err = f.svc.GetPreferences(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "voice-7", prefs.TTSVoiceID)
	assert.Equal(t, 0.8, prefs.ReadingSpeed)

	_, err = f.svc.UpdatePreferences(ctx, &entity.UserPreferences{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}
