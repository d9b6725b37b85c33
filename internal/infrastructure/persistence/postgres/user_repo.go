package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"read-aloud-api/internal/domain/entity"
)

// UserRepository is the PostgreSQL user repository.
type UserRepository struct {
	client *Client
}

// NewUserRepository creates a user repository.
func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// GetByID returns the user or nil.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var user entity.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// EnsureExists inserts the user row if absent. Identity is external; the
// row only anchors ownership.
func (r *UserRepository) EnsureExists(ctx context.Context, user *entity.User) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.EnsureExists")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// GetPreferences returns the preferences row or nil.
func (r *UserRepository) GetPreferences(ctx context.Context, userID string) (*entity.UserPreferences, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetPreferences")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var prefs entity.UserPreferences
	if err := db.First(&prefs, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return &prefs, nil
}

// UpsertPreferences writes the preferences row.
func (r *UserRepository) UpsertPreferences(ctx context.Context, prefs *entity.UserPreferences) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.UpsertPreferences")
	defer span.End()

	prefs.UpdatedAt = time.Now()
	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(prefs).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}
