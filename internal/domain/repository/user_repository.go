package repository

import (
	"context"

	"read-aloud-api/internal/domain/entity"
)

// UserRepository persists users and preferences.
type UserRepository interface {
	// GetByID returns nil when the user does not exist.
	GetByID(ctx context.Context, id string) (*entity.User, error)
	EnsureExists(ctx context.Context, user *entity.User) error
	// GetPreferences returns nil when no preferences row exists.
	GetPreferences(ctx context.Context, userID string) (*entity.UserPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *entity.UserPreferences) error
}
