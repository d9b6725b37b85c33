package entity

import "time"

// SessionStatus is the lifecycle state of a capture session.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
	// SessionStatusExpired is an observation overlay: a session whose
	// expires_at has passed reports expired regardless of its stored
	// non-terminal status.
	SessionStatusExpired SessionStatus = "expired"
)

// ScanSession pairs a desktop initiator with a phone uploader through an
// unguessable token.
type ScanSession struct {
	Token      string        `json:"token" gorm:"primaryKey"`
	BookID     string        `json:"book_id" gorm:"index;not null"`
	Status     SessionStatus `json:"status" gorm:"index"`
	StepLabel  string        `json:"step_label"`
	StepsDone  int           `json:"steps_done"`
	StepsTotal int           `json:"steps_total"`
	Detail     string        `json:"detail,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at" gorm:"index"`
}

// TableName pins the table name.
func (ScanSession) TableName() string { return "scanning_sessions" }

// NewScanSession creates an active session for a book.
func NewScanSession(token, bookID string, ttl time.Duration) *ScanSession {
	now := time.Now()
	return &ScanSession{
		Token:     token,
		BookID:    bookID,
		Status:    SessionStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *ScanSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// EffectiveStatus overlays expiry onto non-terminal statuses.
func (s *ScanSession) EffectiveStatus(now time.Time) SessionStatus {
	switch s.Status {
	case SessionStatusCompleted, SessionStatusFailed:
		return s.Status
	}
	if s.Expired(now) {
		return SessionStatusExpired
	}
	return s.Status
}

// AcceptsUploads reports whether add_page is currently legal.
func (s *ScanSession) AcceptsUploads(now time.Time) bool {
	return s.Status == SessionStatusActive && !s.Expired(now)
}

// Progress is the polling-visible progress record.
type Progress struct {
	StepLabel  string `json:"step_label"`
	StepsDone  int    `json:"steps_done"`
	StepsTotal int    `json:"steps_total"`
	Detail     string `json:"detail,omitempty"`
}

// ProgressRecord returns the session progress fields as one value.
func (s *ScanSession) ProgressRecord() Progress {
	return Progress{
		StepLabel:  s.StepLabel,
		StepsDone:  s.StepsDone,
		StepsTotal: s.StepsTotal,
		Detail:     s.Detail,
	}
}
