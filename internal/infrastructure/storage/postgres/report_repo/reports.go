// Package report_repo provides PostgreSQL implementations for report repositories.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package report_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"numerus/internal/domain/numbering"
	"numerus/internal/domain/reports"
	"numerus/internal/infrastructure/storage/postgres"
)

// bareNumberPattern matches an official number at rest; placeholders and
// TEMP values never parse as bigint.
const bareNumberPattern = `^[0-9]{1,6}$`

// journalSortColumns maps API sort keys to SQL expressions.
var journalSortColumns = map[string]string{
	"date":   "d.date",
	"number": "d.number",
	"kind":   "d.kind",
	"total":  "d.total",
}

// ReportRepo implements reports.Repository.
// In Database-per-Tenant architecture, TxManager is obtained from context.
type ReportRepo struct{}

// NewReportRepo creates a new report repository.
func NewReportRepo() *ReportRepo {
	return &ReportRepo{}
}

// getTxManager retrieves TxManager from context.
func (r *ReportRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// journalConditions builds the WHERE clause shared by the journal page and
// the kind summary. Placeholders start at $1.
func journalConditions(filter reports.DocumentJournalFilter) (string, []any) {
	conditions := []string{"1=1"}
	var args []any
	argIndex := 1

	if !filter.IncludeDeleted {
		conditions = append(conditions, "d.deletion_mark = false")
	}

	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("d.date >= $%d", argIndex))
		args = append(args, *filter.FromDate)
		argIndex++
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("d.date < $%d", argIndex))
		args = append(args, *filter.ToDate)
		argIndex++
	}

	if len(filter.WorkspaceIDs) > 0 {
		placeholders := make([]string, len(filter.WorkspaceIDs))
		for i, wsID := range filter.WorkspaceIDs {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, wsID)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("d.workspace_id IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, kind := range filter.Kinds {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, kind)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("d.kind IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, status)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("d.status IN (%s)", strings.Join(placeholders, ",")))
	}

	if filter.NumberContains != "" {
		conditions = append(conditions, fmt.Sprintf("d.number ILIKE $%d", argIndex))
		args = append(args, "%"+filter.NumberContains+"%")
		argIndex++
	}

	return strings.Join(conditions, " AND "), args
}

// GetDocumentJournal retrieves documents for the cross-kind journal view.
func (r *ReportRepo) GetDocumentJournal(ctx context.Context, filter reports.DocumentJournalFilter) (*reports.DocumentJournal, error) {
	where, args := journalConditions(filter)

	querier := r.getTxManager(ctx).GetQuerier(ctx)

	countSQL := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM documents d
		WHERE %s
	`, where)

	var totalCount int
	if err := querier.QueryRow(ctx, countSQL, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("document journal count: %w", err)
	}

	sortCol, ok := journalSortColumns[filter.SortBy]
	if !ok {
		sortCol = "d.date"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT
			d.id, d.workspace_id,
			w.name AS workspace_name, w.company_name,
			d.kind, d.number, d.status, d.prefix,
			d.date, d.total, d.currency,
			d.comment, d.deletion_mark, d.created_at, d.updated_at
		FROM documents d
		JOIN workspaces w ON w.id = d.workspace_id
		WHERE %s
		ORDER BY %s %s, d.number ASC
	`, where, sortCol, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var items []reports.DocumentJournalItem
	if err := pgxscan.Select(ctx, querier, &items, query, args...); err != nil {
		return nil, fmt.Errorf("document journal: %w", err)
	}

	return &reports.DocumentJournal{
		Items:      items,
		TotalCount: totalCount,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// GetKindSummary returns counts and totals by kind for the journal filter.
func (r *ReportRepo) GetKindSummary(ctx context.Context, filter reports.DocumentJournalFilter) ([]reports.KindSummary, error) {
	where, args := journalConditions(filter)

	query := fmt.Sprintf(`
		SELECT
			d.kind,
			COUNT(*) AS count,
			COUNT(*) FILTER (WHERE d.status = 'DRAFT') AS draft_count,
			COUNT(*) FILTER (WHERE d.status <> 'DRAFT') AS official_count,
			COALESCE(SUM(d.total), 0) AS total_amount
		FROM documents d
		WHERE %s
		GROUP BY d.kind
		ORDER BY d.kind
	`, where)

	var summary []reports.KindSummary
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("kind summary: %w", err)
	}

	return summary, nil
}

// GetNumberingGaps reports holes in the bare sequence of one scope.
// A hole is any value in [1, max] that no live document holds.
func (r *ReportRepo) GetNumberingGaps(ctx context.Context, filter reports.NumberingGapsFilter) (*reports.NumberingGapsReport, error) {
	report := &reports.NumberingGapsReport{
		WorkspaceID: filter.WorkspaceID,
		Kind:        filter.Kind,
		Gaps:        []reports.NumberingGap{},
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)

	aggSQL := fmt.Sprintf(`
		SELECT
			COALESCE(MAX(number::bigint), 0) AS max_n,
			COUNT(*) AS cnt
		FROM documents
		WHERE workspace_id = $1 AND kind = $2
		  AND deletion_mark = false
		  AND number ~ '%s'
	`, bareNumberPattern)

	var maxN, cnt int64
	if err := querier.QueryRow(ctx, aggSQL, filter.WorkspaceID, filter.Kind).Scan(&maxN, &cnt); err != nil {
		return nil, fmt.Errorf("numbering aggregates: %w", err)
	}

	report.MaxAssigned = maxN
	report.TotalMissing = maxN - cnt

	// Counter position; absent row means the scanner strategy owns the scope.
	counterSQL := `SELECT current_val FROM sys_sequences WHERE scope_key = $1`
	scopeKey := numbering.ScopeKey(filter.WorkspaceID, filter.Kind)
	if err := querier.QueryRow(ctx, counterSQL, scopeKey).Scan(&report.CounterValue); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("counter position: %w", err)
		}
	}

	if report.TotalMissing == 0 {
		return report, nil
	}

	gapsSQL := fmt.Sprintf(`
		WITH nums AS (
			SELECT number::bigint AS n
			FROM documents
			WHERE workspace_id = $1 AND kind = $2
			  AND deletion_mark = false
			  AND number ~ '%s'
		),
		pairs AS (
			SELECT n, LEAD(n) OVER (ORDER BY n) AS next_n FROM nums
		),
		inner_gaps AS (
			SELECT n + 1 AS gap_from, next_n - 1 AS gap_to
			FROM pairs
			WHERE next_n > n + 1
		),
		lead_gap AS (
			SELECT 1::bigint AS gap_from, MIN(n) - 1 AS gap_to
			FROM nums
			HAVING MIN(n) > 1
		)
		SELECT gap_from AS "from", gap_to AS "to"
		FROM (
			SELECT * FROM lead_gap
			UNION ALL
			SELECT * FROM inner_gaps
		) g
		ORDER BY gap_from
		LIMIT $3
	`, bareNumberPattern)

	var gaps []reports.NumberingGap
	if err := pgxscan.Select(ctx, querier, &gaps, gapsSQL, filter.WorkspaceID, filter.Kind, filter.MaxGaps+1); err != nil {
		return nil, fmt.Errorf("numbering gaps: %w", err)
	}

	if len(gaps) > filter.MaxGaps {
		gaps = gaps[:filter.MaxGaps]
		report.Truncated = true
	}
	report.Gaps = gaps

	return report, nil
}

// Ensure interface compliance
var _ reports.Repository = (*ReportRepo)(nil)
