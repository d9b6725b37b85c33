package repository

import (
	"context"
	"time"

	"read-aloud-api/internal/domain/entity"
)

// SessionRepository persists capture sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.ScanSession) error
	// GetByToken returns nil when the token is unknown. Token lookup is
	// indexed (the token is the primary key).
	GetByToken(ctx context.Context, token string) (*entity.ScanSession, error)
	// GetAcceptingUploads returns the session only if it is active and
	// unexpired at now, in a single filtered query.
	GetAcceptingUploads(ctx context.Context, token string, now time.Time) (*entity.ScanSession, error)
	// GetByBook returns the session weakly referencing the book, or nil.
	GetByBook(ctx context.Context, bookID string) (*entity.ScanSession, error)
	// TransitionStatus moves the session from one status to another and
	// reports whether a row changed; transitions are monotonic.
	TransitionStatus(ctx context.Context, token string, from, to entity.SessionStatus) (bool, error)
	// UpdateProgress writes the polling-visible progress record.
	UpdateProgress(ctx context.Context, token string, progress entity.Progress) error
	SetStatus(ctx context.Context, token string, status entity.SessionStatus) error
}
