// Package repository defines the persistence contracts the application layer
// depends on.
package repository

import "context"

// TxKey marks a transaction stored in a context.
type TxKey struct{}

// Transactor runs a function inside a database transaction. Nested calls
// join the ambient transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
