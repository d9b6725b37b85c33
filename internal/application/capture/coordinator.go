// Package capture implements the phone-pairing capture session workflow.
package capture

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.opentelemetry.io/otel"

	"read-aloud-api/internal/config"
	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/domain/repository"
	"read-aloud-api/internal/infrastructure/storage"
	apperrors "read-aloud-api/pkg/errors"
	"read-aloud-api/pkg/logger"
	"read-aloud-api/pkg/metrics"
)

var tracer = otel.Tracer("capture")

// Ingestor runs the ingestion pipeline for a completed session. The
// coordinator spawns it on its own detached context.
type Ingestor interface {
	Run(ctx context.Context, token string)
}

// ProgressCache is the short-TTL read cache in front of session progress.
// Implemented by the redis progress cache.
type ProgressCache interface {
	Get(ctx context.Context, token string) *entity.Progress
	Put(ctx context.Context, token string, progress entity.Progress)
	Invalidate(ctx context.Context, token string)
}

// Session is the client-facing result of creating a capture session.
type Session struct {
	Token     string `json:"token"`
	BookID    string `json:"book_id"`
	MobileURL string `json:"mobile_url"`
	// QRPNG is a data URL of a PNG encoding MobileURL.
	QRPNG     string    `json:"qr_png"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PageUpload is the result of accepting one page image.
type PageUpload struct {
	PageNumber int    `json:"page_number"`
	ImageURI   string `json:"image_uri"`
}

// Status is the polling view of a session.
type Status struct {
	Status   entity.SessionStatus `json:"status"`
	Pages    []PageUpload         `json:"pages"`
	Progress entity.Progress      `json:"progress"`
}

// Coordinator owns the capture session lifecycle: pairing, uploads,
// completion and polling.
type Coordinator struct {
	books    repository.BookRepository
	sessions repository.SessionRepository
	pages    repository.PageRepository
	store    storage.ArtifactStore
	progress ProgressCache
	ingestor Ingestor
	cfg      config.CaptureConfig
	baseURL  string
}

// NewCoordinator wires the capture workflow.
func NewCoordinator(
	books repository.BookRepository,
	sessions repository.SessionRepository,
	pages repository.PageRepository,
	store storage.ArtifactStore,
	progress ProgressCache,
	ingestor Ingestor,
	cfg config.CaptureConfig,
	baseURL string,
) *Coordinator {
	return &Coordinator{
		books:    books,
		sessions: sessions,
		pages:    pages,
		store:    store,
		progress: progress,
		ingestor: ingestor,
		cfg:      cfg,
		baseURL:  baseURL,
	}
}

// CreateSession creates an empty processing book and an active session bound
// to it, returning the pairing material for the phone.
func (c *Coordinator) CreateSession(ctx context.Context, ownerID string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "capture.Coordinator.CreateSession")
	defer span.End()

	token, err := newSessionToken()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to generate session token")
	}

	book := entity.NewBook(uuid.NewString(), ownerID)
	if err := c.books.Create(ctx, book); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create book")
	}

	session := entity.NewScanSession(token, book.ID, c.cfg.SessionTTL)
	if err := c.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create session")
	}

	mobileURL := fmt.Sprintf("%s/mobile?session=%s", strings.TrimRight(c.baseURL, "/"), token)
	qrPNG, err := qrcode.Encode(mobileURL, qrcode.Medium, 256)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode pairing QR")
	}

	logger.Info(ctx, "capture session created", "book_id", book.ID)
	return &Session{
		Token:     token,
		BookID:    book.ID,
		MobileURL: mobileURL,
		QRPNG:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// AddPage accepts one page image for an active session. The image blob is
// written before the page row so a stored page always has its image.
func (c *Coordinator) AddPage(ctx context.Context, token string, image []byte, contentType string) (*PageUpload, error) {
	ctx, span := tracer.Start(ctx, "capture.Coordinator.AddPage")
	defer span.End()

	session, err := c.sessions.GetAcceptingUploads(ctx, token, time.Now())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load session")
	}
	if session == nil {
		return nil, apperrors.ErrSessionInvalid
	}

	ext := storage.ExtForContentType(contentType)
	if ext == "" {
		return nil, apperrors.ErrBadImage.WithDetail("unsupported content type: " + contentType)
	}
	if int64(len(image)) > c.cfg.MaxImageSize {
		return nil, apperrors.ErrBadImage.WithDetail(
			fmt.Sprintf("image exceeds %d bytes", c.cfg.MaxImageSize))
	}
	if len(image) == 0 {
		return nil, apperrors.ErrBadImage.WithDetail("empty image")
	}

	key := storage.UploadKey(ext)
	if err := c.store.Put(ctx, key, image, contentType); err != nil {
		return nil, apperrors.Transient(err, "failed to store page image")
	}

	page := &entity.Page{
		ID:        uuid.NewString(),
		BookID:    session.BookID,
		ImagePath: c.store.URLFor(key),
		CreatedAt: time.Now(),
	}
	number, err := c.pages.CreateNext(ctx, page)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create page")
	}

	metrics.PagesUploadedTotal.Inc()
	logger.Info(ctx, "page accepted", "book_id", session.BookID, "page_number", number)
	return &PageUpload{PageNumber: number, ImageURI: page.ImagePath}, nil
}

// Complete transitions the session to processing and spawns ingestion.
// Idempotent: calls in processing or completed return success.
func (c *Coordinator) Complete(ctx context.Context, token string) error {
	ctx, span := tracer.Start(ctx, "capture.Coordinator.Complete")
	defer span.End()

	session, err := c.sessions.GetByToken(ctx, token)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to load session")
	}
	if session == nil {
		return apperrors.ErrSessionInvalid
	}

	switch session.EffectiveStatus(time.Now()) {
	case entity.SessionStatusProcessing, entity.SessionStatusCompleted:
		return nil
	case entity.SessionStatusExpired:
		return apperrors.ErrSessionExpired
	case entity.SessionStatusFailed:
		return apperrors.ErrSessionInvalid.WithDetail("session already failed")
	}

	changed, err := c.sessions.TransitionStatus(ctx, token, entity.SessionStatusActive, entity.SessionStatusProcessing)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to transition session")
	}
	if !changed {
		// Lost the race to a concurrent complete; that worker owns the run.
		return nil
	}

	c.progress.Invalidate(ctx, token)
	logger.Info(ctx, "capture session completed, starting ingestion", "book_id", session.BookID)

	runCtx := logger.WithContext(context.WithoutCancel(ctx), logger.SessionTokenKey, token)
	go c.ingestor.Run(runCtx, token)
	return nil
}

// Status returns the polling view. Progress reads go through the short-TTL
// cache to absorb the polling load.
func (c *Coordinator) Status(ctx context.Context, token string) (*Status, error) {
	ctx, span := tracer.Start(ctx, "capture.Coordinator.Status")
	defer span.End()

	session, err := c.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load session")
	}
	if session == nil {
		return nil, apperrors.ErrSessionInvalid
	}

	pages, err := c.pages.ListByBook(ctx, session.BookID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list pages")
	}
	uploads := make([]PageUpload, 0, len(pages))
	for _, p := range pages {
		uploads = append(uploads, PageUpload{PageNumber: p.PageNumber, ImageURI: p.ImagePath})
	}

	progress := c.progress.Get(ctx, token)
	if progress == nil {
		record := session.ProgressRecord()
		progress = &record
		c.progress.Put(ctx, token, record)
	}

	return &Status{
		Status:   session.EffectiveStatus(time.Now()),
		Pages:    uploads,
		Progress: *progress,
	}, nil
}

// newSessionToken returns 32 random bytes hex-encoded.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
