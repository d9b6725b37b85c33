package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"read-aloud-api/internal/domain/entity"
)

// SessionRepository is the PostgreSQL capture-session repository.
type SessionRepository struct {
	client *Client
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(client *Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Create inserts a session.
func (r *SessionRepository) Create(ctx context.Context, session *entity.ScanSession) error {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByToken returns the session or nil.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*entity.ScanSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.GetByToken")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.ScanSession
	if err := db.First(&session, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// GetAcceptingUploads filters status and expiry in one indexed query.
func (r *SessionRepository) GetAcceptingUploads(ctx context.Context, token string, now time.Time) (*entity.ScanSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.GetAcceptingUploads")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.ScanSession
	err := db.Where("token = ? AND status = ? AND expires_at > ?",
		token, entity.SessionStatusActive, now).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &session, nil
}

// GetByBook returns the session for a book, or nil.
func (r *SessionRepository) GetByBook(ctx context.Context, bookID string) (*entity.ScanSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.GetByBook")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.ScanSession
	if err := db.First(&session, "book_id = ?", bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get session by book: %w", err)
	}
	return &session, nil
}

// TransitionStatus performs a compare-and-set on the status column. The
// WHERE clause keeps transitions monotonic under concurrent callers.
func (r *SessionRepository) TransitionStatus(ctx context.Context, token string, from, to entity.SessionStatus) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.TransitionStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.ScanSession{}).
		Where("token = ? AND status = ?", token, from).
		Update("status", to)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to transition session status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpdateProgress writes the progress record.
func (r *SessionRepository) UpdateProgress(ctx context.Context, token string, progress entity.Progress) error {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.UpdateProgress")
	defer span.End()

	db := getDB(ctx, r.client.db)
	updates := map[string]interface{}{
		"step_label":  progress.StepLabel,
		"steps_done":  progress.StepsDone,
		"steps_total": progress.StepsTotal,
		"detail":      progress.Detail,
	}
	if err := db.Model(&entity.ScanSession{}).Where("token = ?", token).Updates(updates).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	return nil
}

// SetStatus writes the status unconditionally.
func (r *SessionRepository) SetStatus(ctx context.Context, token string, status entity.SessionStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.SessionRepository.SetStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.ScanSession{}).Where("token = ?", token).
		Update("status", status).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set session status: %w", err)
	}
	return nil
}
