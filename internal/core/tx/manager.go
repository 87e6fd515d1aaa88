// Package tx provides transaction management abstractions.
// This package defines interfaces that decouple domain logic from specific
// database implementations, following the Dependency Inversion Principle.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction support.
//
// Domain services depend on this interface, not concrete implementations.
// The actual implementation lives in infrastructure/storage/postgres.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SavepointManager extends Manager with partial-rollback support inside an
// open transaction. Callers that retry a statement which may violate a
// constraint need this: without a savepoint the first violation aborts the
// whole transaction.
type SavepointManager interface {
	Manager

	// WithSavepoint executes fn inside a savepoint when a transaction is
	// already open; on error only fn's writes are rolled back. Outside a
	// transaction it behaves like RunInTransaction.
	WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

