package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"read-aloud-api/internal/application/capture"
	"read-aloud-api/internal/application/ingestion"
	"read-aloud-api/internal/application/reading"
	"read-aloud-api/internal/config"
	"read-aloud-api/internal/domain/entity"
	"read-aloud-api/internal/infrastructure/persistence/memory"
	"read-aloud-api/internal/infrastructure/storage"
	"read-aloud-api/internal/infrastructure/tts"
	"read-aloud-api/internal/infrastructure/vision"
	"read-aloud-api/internal/interfaces/http/handler"
	"read-aloud-api/pkg/utils"
)

type memProgress struct{}

func (memProgress) Get(context.Context, string) *entity.Progress        { return nil }
func (memProgress) Put(context.Context, string, entity.Progress)        {}
func (memProgress) Invalidate(context.Context, string)                  {}

type stubDetector struct{}

func (stubDetector) Detect(context.Context, []byte) ([]vision.Block, error) {
	return []vision.Block{{Text: "Hello page", X: 0, Y: 0, Width: 100, Height: 20, Confidence: 0.9}}, nil
}

type stubCover struct{}

func (stubCover) AnalyzeCover(context.Context, []byte) (vision.CoverInfo, error) {
	return vision.CoverInfo{Title: "Test Book", Category: "General"}, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(_ context.Context, text string, _ tts.Voice) (*tts.Result, error) {
	return &tts.Result{Audio: []byte("mp3")}, nil
}

type noopLock struct{}

func (noopLock) TryAcquire(context.Context, string) bool    { return true }
func (noopLock) WaitForHolder(context.Context, string) bool { return true }
func (noopLock) Release(context.Context, string)            {}

const testSecret = "test-secret"

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStore(&config.LocalConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	db := memory.NewStore()
	captureCfg := config.CaptureConfig{SessionTTL: time.Hour, MaxImageSize: 10 * 1024 * 1024}
	ttsCfg := config.TTSConfig{APIKey: "server-key", VoiceID: "server-voice"}

	pipeline := ingestion.NewPipeline(
		db.Books(), db.Pages(), db.Blocks(), db.Sessions(),
		db, store, stubDetector{}, stubCover{}, memProgress{},
	)
	captureSvc := capture.NewCoordinator(
		db.Books(), db.Sessions(), db.Pages(), store, memProgress{}, pipeline,
		captureCfg, "http://localhost:8080",
	)
	readingSvc := reading.NewService(
		db.Books(), db.Pages(), db.Blocks(), db.Users(),
		store, stubDetector{}, stubSynth{}, noopLock{}, ttsCfg,
	)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.JWT.Secret = testSecret
	cfg.Security.JWT.Issuer = "read-aloud-api"
	cfg.Security.CORS.AllowedOrigins = []string{"*"}

	return New(cfg, Handlers{
		Health:  handler.NewHealthHandler(nil, nil),
		Book:    handler.NewBookHandler(captureSvc, readingSvc),
		Session: handler.NewSessionHandler(captureSvc),
		Block:   handler.NewBlockHandler(readingSvc),
		Speech:  handler.NewSpeechHandler(readingSvc),
		Object:  handler.NewObjectHandler(store),
	})
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := utils.NewJWTManager(testSecret, "read-aloud-api").
		GenerateToken(userID, "", "access", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBooksRequireAuth(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/books", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCaptureFlowOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	// Desktop creates the book + session with its JWT.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", nil)
	req.Header.Set("Authorization", bearer(t, "owner-1"))
	r.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data struct {
			BookID    string `json:"bookId"`
			SessionID string `json:"sessionId"`
			QRCode    string `json:"qrCode"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.SessionID)
	assert.Contains(t, created.Data.QRCode, "data:image/png;base64,")

	// Phone uploads a page with only the session token.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="image"; filename="page.jpg"`},
		"Content-Type":        {"image/jpeg"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+created.Data.SessionID+"/pages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded struct {
		Data struct {
			PageNumber int    `json:"pageNumber"`
			ImagePath  string `json:"imagePath"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.Equal(t, 1, uploaded.Data.PageNumber)

	// The stored image is served back unauthenticated through /objects.
	w = httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, uploaded.Data.ImagePath, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg-bytes", w.Body.String())

	// Complete and poll until the in-process pipeline finishes.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+created.Data.SessionID+"/complete", nil)
	r.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	deadline := time.Now().Add(5 * time.Second)
	var status struct {
		Data struct {
			Status    string `json:"status"`
			PageCount int    `json:"pageCount"`
		} `json:"data"`
	}
	for {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+created.Data.SessionID+"/status", nil)
		r.Engine().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		if status.Data.Status == "completed" || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, "completed", status.Data.Status)
	assert.Equal(t, 1, status.Data.PageCount)

	// The owner's book now carries the detected text.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/books/"+created.Data.BookID, nil)
	req.Header.Set("Authorization", bearer(t, "owner-1"))
	r.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var book struct {
		Data struct {
			Title    string `json:"title"`
			Status   string `json:"status"`
			FullText string `json:"full_text"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	assert.Equal(t, "Test Book", book.Data.Title)
	assert.Equal(t, "completed", book.Data.Status)
	assert.Equal(t, "=== Page 1 ===\nHello page", book.Data.FullText)
}

func TestForeignOwnerGetsForbidden(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", nil)
	req.Header.Set("Authorization", bearer(t, "owner-1"))
	r.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data struct {
			BookID string `json:"bookId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/books/"+created.Data.BookID, nil)
	req.Header.Set("Authorization", bearer(t, "intruder"))
	r.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
