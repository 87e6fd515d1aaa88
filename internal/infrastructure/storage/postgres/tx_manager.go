package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"numerus/internal/core/tx"
	"numerus/pkg/logger"
)

var tracer = otel.Tracer("numerus/tx")

// statementTimeout bounds every statement inside a managed transaction.
// Allocation retries rely on contended transactions failing fast instead
// of hanging on a lock.
const statementTimeout = 30 * time.Second

var (
	_ tx.Manager          = (*TxManager)(nil)
	_ tx.SavepointManager = (*TxManager)(nil)
)

// TxManager runs closures inside PostgreSQL transactions. A nested
// RunInTransaction joins the transaction already in context; WithSavepoint
// shields the enclosing transaction from an expected constraint violation.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a transaction manager over a pgx pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

type txKey struct{}

// Tx is the context-carried transaction handle.
type Tx struct {
	pgx.Tx
}

// GetTx returns the open transaction from context, or nil.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if t, ok := ctx.Value(txKey{}).(*Tx); ok {
		return t
	}
	return nil
}

// Querier is the query surface repositories run on: the open transaction
// when one is in context, the pool otherwise.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the querier for ctx.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t.Tx
	}
	return m.pool
}

// RunInTransaction executes fn inside a transaction, committing when fn
// returns nil and rolling back otherwise. If ctx already carries a
// transaction, fn simply joins it.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "db.transaction",
		trace.WithAttributes(attribute.String("db.isolation", string(pgx.ReadCommitted))))
	defer span.End()

	t, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	timeout := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", statementTimeout.Milliseconds())
	if _, err := t.Exec(ctx, timeout); err != nil {
		_ = t.Rollback(ctx)
		return fmt.Errorf("set statement_timeout: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, &Tx{Tx: t})
	if err := fn(txCtx); err != nil {
		// Roll back on a fresh context so request cancellation cannot
		// strand the transaction open.
		rbErr := t.Rollback(context.Background())
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error(ctx, "transaction rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}

	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Savepoint names only need to be unique within one transaction, but a
// process-wide sequence costs nothing and keeps logs unambiguous.
var savepointSeq atomic.Uint64

// WithSavepoint executes fn inside a savepoint, so an anticipated failure
// (a unique violation on number allocation, typically) rolls back fn's
// writes without aborting the enclosing transaction. Outside a transaction
// it behaves like RunInTransaction.
func (m *TxManager) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	t := m.GetTx(ctx)
	if t == nil {
		return m.RunInTransaction(ctx, fn)
	}

	name := fmt.Sprintf("sp_%d", savepointSeq.Add(1))
	if _, err := t.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := t.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			logger.Error(ctx, "rollback to savepoint failed", "savepoint", name, "error", rbErr)
		}
		return err
	}

	if _, err := t.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
