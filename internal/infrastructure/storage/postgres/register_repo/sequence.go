// Package register_repo provides PostgreSQL implementations for register repositories.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/domain/registers/sequence"
	"numerus/internal/infrastructure/storage/postgres"
)

const sequenceEventsTable = "reg_sequence_events"

// bareNumberPattern matches an official number at rest; placeholders and
// TEMP values never parse as bigint, so aggregates must filter on it.
const bareNumberPattern = `^[0-9]{1,6}$`

var sequenceEventCols = []string{
	"line_id", "workspace_id", "kind", "document_id",
	"event", "number", "previous_number", "actor", "recorded_at",
}

// SequenceRepo implements sequence.Repository.
// In Database-per-Tenant architecture, TxManager is obtained from context.
type SequenceRepo struct {
	builder squirrel.StatementBuilderType
}

// NewSequenceRepo creates a new sequence register repository.
func NewSequenceRepo() *SequenceRepo {
	return &SequenceRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// getTxManager retrieves TxManager from context.
func (r *SequenceRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Append inserts one journal line. Lines are immutable; there is no update
// or delete path.
func (r *SequenceRepo) Append(ctx context.Context, event entity.SequenceEvent) error {
	q := r.builder.Insert(sequenceEventsTable).
		Columns(sequenceEventCols...).
		Values(
			event.LineID, event.WorkspaceID, event.Kind, event.DocumentID,
			event.Event, event.Number, event.PreviousNumber, event.Actor, event.RecordedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// Movements retrieves journal lines, newest first.
func (r *SequenceRepo) Movements(ctx context.Context, filter sequence.MovementFilter) ([]entity.SequenceEvent, error) {
	q := r.builder.Select(sequenceEventCols...).
		From(sequenceEventsTable)

	if filter.WorkspaceID != nil {
		q = q.Where(squirrel.Eq{"workspace_id": *filter.WorkspaceID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.DocumentID != nil {
		q = q.Where(squirrel.Eq{"document_id": *filter.DocumentID})
	}
	if len(filter.Events) > 0 {
		q = q.Where(squirrel.Eq{"event": filter.Events})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"recorded_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"recorded_at": *filter.To})
	}

	q = q.OrderBy("recorded_at DESC", "line_id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var events []entity.SequenceEvent
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &events, sql, args...); err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	return events, nil
}

// Balances derives per-kind sequence state for one workspace. Max number and
// document counts come from the documents table, release counts from the
// journal; the two aggregates merge in memory.
func (r *SequenceRepo) Balances(ctx context.Context, workspaceID id.ID) ([]entity.SequenceBalance, error) {
	docSQL := fmt.Sprintf(`
		SELECT
			workspace_id,
			kind,
			COALESCE(MAX(CASE WHEN status <> 'DRAFT' AND number ~ '%s' THEN number::bigint END), 0) AS max_number,
			COUNT(*) FILTER (WHERE status <> 'DRAFT') AS official_count,
			COUNT(*) FILTER (WHERE status = 'DRAFT') AS draft_count
		FROM documents
		WHERE workspace_id = $1 AND deletion_mark = false
		GROUP BY workspace_id, kind
		ORDER BY kind
	`, bareNumberPattern)

	var balances []entity.SequenceBalance
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, docSQL, workspaceID); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}

	releasedSQL := `
		SELECT kind, COUNT(*) AS released_count
		FROM reg_sequence_events
		WHERE workspace_id = $1 AND event = $2
		GROUP BY kind
	`

	rows, err := querier.Query(ctx, releasedSQL, workspaceID, entity.SequenceEventReleased)
	if err != nil {
		return nil, fmt.Errorf("select released counts: %w", err)
	}
	defer rows.Close()

	released := make(map[entity.Kind]int64)
	for rows.Next() {
		var kind entity.Kind
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan released count: %w", err)
		}
		released[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("released counts: %w", err)
	}

	for i := range balances {
		balances[i].ReleasedCount = released[balances[i].Kind]
	}

	return balances, nil
}

// Turnovers aggregates journal activity per period bucket.
func (r *SequenceRepo) Turnovers(ctx context.Context, filter sequence.TurnoverFilter) ([]sequence.TurnoverBucket, error) {
	args := []any{filter.Bucket, filter.WorkspaceID, filter.From, filter.To}
	conditions := "workspace_id = $2 AND recorded_at >= $3 AND recorded_at < $4"

	if filter.Kind != nil {
		conditions += " AND kind = $5"
		args = append(args, *filter.Kind)
	}

	sql := fmt.Sprintf(`
		SELECT
			date_trunc($1, recorded_at) AS period,
			COUNT(*) FILTER (WHERE event IN ('ALLOCATED', 'MANUAL_ACCEPTED')) AS allocated,
			COUNT(*) FILTER (WHERE event = 'RELEASED') AS released,
			COUNT(*) FILTER (WHERE event = 'SWAP_COMPLETED') AS swapped,
			COUNT(*) FILTER (WHERE event = 'REPAIRED') AS repaired
		FROM reg_sequence_events
		WHERE %s
		GROUP BY period
		ORDER BY period
	`, conditions)

	var buckets []sequence.TurnoverBucket
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &buckets, sql, args...); err != nil {
		return nil, fmt.Errorf("select turnovers: %w", err)
	}

	return buckets, nil
}

// Ensure interface compliance.
var _ sequence.Repository = (*SequenceRepo)(nil)
