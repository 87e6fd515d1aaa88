// Package numbering_repo provides the PostgreSQL implementation of the
// numbering engine's persistence port. In Database-per-Tenant architecture,
// TxManager is obtained from context.
package numbering_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
	"numerus/internal/domain/numbering"
	"numerus/internal/infrastructure/storage/postgres"
)

const (
	documentsTable      = "documents"
	sequencesTable      = "sys_sequences"
	sequenceEventsTable = "reg_sequence_events"
)

// SQL regex equivalents of the number grammar. Postgres applies these so
// shape filtering happens in the index scan, not in Go.
const (
	bareSQLPattern        = `^[0-9]{1,6}$`
	placeholderSQLPattern = `^[0-9]{1,6}-(DRAFT|[0-9]{10,16})$`
)

// NumberingRepo implements numbering.Repository on the documents table,
// the sys_sequences counters and the sequence journal.
type NumberingRepo struct {
	builder squirrel.StatementBuilderType
}

// NewNumberingRepo creates a new numbering repository.
func NewNumberingRepo() *NumberingRepo {
	return &NumberingRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// getTxManager retrieves TxManager from context.
func (r *NumberingRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// FindNumbers returns numbers of live documents in scope matching shape.
func (r *NumberingRepo) FindNumbers(ctx context.Context, workspaceID id.ID, kind entity.Kind, shape number.Shape) ([]string, error) {
	q := r.builder.Select("number").
		From(documentsTable).
		Where(squirrel.Eq{
			"workspace_id":  workspaceID,
			"kind":          kind,
			"deletion_mark": false,
		})

	switch shape {
	case number.ShapeBare:
		q = q.Where(squirrel.NotEq{"status": entity.StatusDraft}).
			Where("number ~ ?", bareSQLPattern)
	case number.ShapePlaceholder:
		q = q.Where(squirrel.Eq{"status": entity.StatusDraft}).
			Where("number ~ ?", placeholderSQLPattern)
	case number.ShapeTemp:
		q = q.Where(squirrel.Like{"number": number.TempPrefix + "%"})
	default:
		return nil, apperror.NewValidation("unsupported number shape").
			WithDetail("shape", string(shape))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var numbers []string
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &numbers, sql, args...); err != nil {
		return nil, fmt.Errorf("select numbers: %w", err)
	}

	return numbers, nil
}

// NumberExists reports whether the exact number string is held in scope.
func (r *NumberingRepo) NumberExists(ctx context.Context, workspaceID id.ID, kind entity.Kind, num string) (bool, error) {
	sql := `
		SELECT EXISTS(
			SELECT 1 FROM documents
			WHERE workspace_id = $1 AND kind = $2 AND deletion_mark = false
			  AND number = $3
		)
	`

	var exists bool
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, workspaceID, kind, num).Scan(&exists); err != nil {
		return false, fmt.Errorf("number exists: %w", err)
	}

	return exists, nil
}

// HasOfficialDocuments reports whether any non-DRAFT document exists in scope.
func (r *NumberingRepo) HasOfficialDocuments(ctx context.Context, workspaceID id.ID, kind entity.Kind) (bool, error) {
	sql := `
		SELECT EXISTS(
			SELECT 1 FROM documents
			WHERE workspace_id = $1 AND kind = $2 AND deletion_mark = false
			  AND status <> $3
		)
	`

	var exists bool
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, workspaceID, kind, entity.StatusDraft).Scan(&exists); err != nil {
		return false, fmt.Errorf("has official documents: %w", err)
	}

	return exists, nil
}

// FindHolder locates the document holding bare exactly or as the base of its
// "<bare>-DRAFT" placeholder. An exact bare holder sorts first.
func (r *NumberingRepo) FindHolder(ctx context.Context, workspaceID id.ID, kind entity.Kind, bare string, excludeID id.ID) (*numbering.Holder, error) {
	q := r.builder.Select("id AS document_id", "number", "status").
		From(documentsTable).
		Where(squirrel.Eq{
			"workspace_id":  workspaceID,
			"kind":          kind,
			"deletion_mark": false,
		}).
		Where(squirrel.Eq{"number": []string{bare, bare + number.DraftSuffix}}).
		OrderByClause("(number = ?) DESC", bare).
		Limit(1)

	if !id.IsNil(excludeID) {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var holder numbering.Holder
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &holder, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find holder: %w", err)
	}

	return &holder, nil
}

// WriteNumber persists a number on a document. The partial unique index on
// (workspace_id, kind, number) turns a collision into CodeDuplicate so the
// allocation loop can retry.
func (r *NumberingRepo) WriteNumber(ctx context.Context, documentID id.ID, num string) error {
	q := r.builder.Update(documentsTable).
		Set("number", num).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": documentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("document", "number", num).WithCause(err)
		}
		return fmt.Errorf("write number: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(documentsTable, documentID.String())
	}

	return nil
}

// AtomicIncrement bumps the per-scope counter row and returns the new value.
func (r *NumberingRepo) AtomicIncrement(ctx context.Context, scopeKey string) (int64, error) {
	sql := `
		INSERT INTO sys_sequences (scope_key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (scope_key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`

	var val int64
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, scopeKey).Scan(&val); err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", scopeKey, err)
	}

	return val, nil
}

// Peek reads the counter without consuming; 0 when the scope has no row.
func (r *NumberingRepo) Peek(ctx context.Context, scopeKey string) (int64, error) {
	sql := `SELECT current_val FROM sys_sequences WHERE scope_key = $1`

	var val int64
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, scopeKey).Scan(&val); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("peek sequence %s: %w", scopeKey, err)
	}

	return val, nil
}

// LockScope takes the transaction-scoped advisory lock for one
// (workspace, kind) sequence. Released automatically at commit/rollback,
// which is why a transaction context is required.
func (r *NumberingRepo) LockScope(ctx context.Context, workspaceID id.ID, kind entity.Kind) error {
	txm := r.getTxManager(ctx)
	if txm.GetTx(ctx) == nil {
		return fmt.Errorf("lock scope requires transaction context")
	}

	key := numbering.ScopeKey(workspaceID, kind)
	_, err := txm.GetQuerier(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	if err != nil {
		return fmt.Errorf("lock scope %s: %w", key, err)
	}

	return nil
}

// FindTempNumbers returns live documents resting with TEMP-shaped numbers.
func (r *NumberingRepo) FindTempNumbers(ctx context.Context, workspaceID *id.ID) ([]numbering.TempNumber, error) {
	q := r.builder.Select("id AS document_id", "workspace_id", "kind", "number", "status").
		From(documentsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Like{"number": number.TempPrefix + "%"}).
		OrderBy("workspace_id", "kind", "id")

	if workspaceID != nil {
		q = q.Where(squirrel.Eq{"workspace_id": *workspaceID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var temps []numbering.TempNumber
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &temps, sql, args...); err != nil {
		return nil, fmt.Errorf("select temp numbers: %w", err)
	}

	return temps, nil
}

// FindSwapOrigin returns the previous number journaled by the most recent
// SWAP_STARTED line that moved documentID onto temp.
func (r *NumberingRepo) FindSwapOrigin(ctx context.Context, documentID id.ID, temp string) (string, error) {
	q := r.builder.Select("previous_number").
		From(sequenceEventsTable).
		Where(squirrel.Eq{
			"document_id": documentID,
			"event":       entity.SequenceEventSwapStarted,
			"number":      temp,
		}).
		OrderBy("recorded_at DESC", "line_id DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var origin string
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &origin, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("find swap origin: %w", err)
	}

	return origin, nil
}

// Ensure interface compliance.
var _ numbering.Repository = (*NumberingRepo)(nil)
