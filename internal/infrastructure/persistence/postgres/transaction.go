package postgres

import (
	"context"

	"gorm.io/gorm"

	"read-aloud-api/internal/domain/repository"
)

// TxManager runs functions inside database transactions.
type TxManager struct {
	client *Client
}

// NewTxManager creates a transaction manager.
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction executes fn inside a transaction. A call made while a
// transaction is already on the context joins it.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	return m.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, repository.TxKey{}, tx)
		return fn(txCtx)
	})
}

func txFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// getDB returns the ambient transaction when present, the base handle
// otherwise. All repositories route queries through this.
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
