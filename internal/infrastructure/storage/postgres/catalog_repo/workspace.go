// Package catalog_repo provides the PostgreSQL repository for the workspace
// catalog. In Database-per-Tenant architecture, TxManager is obtained from
// context per-request and queries carry no tenant filter (isolation is
// physical).
package catalog_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"numerus/internal/core/apperror"
	"numerus/internal/core/id"
	"numerus/internal/domain"
	"numerus/internal/domain/filter"
	"numerus/internal/domain/workspace"
	"numerus/internal/infrastructure/storage/postgres"
)

const workspaceTable = "workspaces"

// WorkspaceRepo implements workspace.Repository.
type WorkspaceRepo struct {
	selectCols []string
}

// NewWorkspaceRepo creates a new workspace repository.
func NewWorkspaceRepo() *WorkspaceRepo {
	return &WorkspaceRepo{
		selectCols: postgres.ExtractDBColumns[workspace.Workspace](),
	}
}

// getTxManager retrieves TxManager from context.
// Panics if not found - this indicates a programming error (missing TenantDB middleware).
func (r *WorkspaceRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *WorkspaceRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new workspace using its "db" tags.
func (r *WorkspaceRepo) Create(ctx context.Context, ws *workspace.Workspace) error {
	data := postgres.StructToMap(ws)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in workspace")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(workspaceTable).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("workspace", "code", ws.Code).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", workspaceTable, err)
	}

	return nil
}

// Update modifies an existing workspace with optimistic locking.
func (r *WorkspaceRepo) Update(ctx context.Context, ws *workspace.Workspace) error {
	data := postgres.StructToMap(ws)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in workspace")
	}

	// Exclude fields the repo manages itself from SET
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "version" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(workspaceTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": ws.ID}).
		Where(squirrel.Eq{"version": ws.Version}) // optimistic lock: expect current version

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("workspace", "code", ws.Code).WithCause(err)
		}
		return fmt.Errorf("update %s: %w", workspaceTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("workspace", ws.ID)
	}

	return nil
}

func (r *WorkspaceRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(workspaceTable)
}

// GetByID retrieves workspace by ID.
func (r *WorkspaceRepo) GetByID(ctx context.Context, workspaceID id.ID) (*workspace.Workspace, error) {
	ws := &workspace.Workspace{}

	q := r.baseSelect().
		Where(squirrel.Eq{"id": workspaceID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, ws, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("workspace", workspaceID.String())
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}

	return ws, nil
}

// GetByCode retrieves a live workspace by code.
func (r *WorkspaceRepo) GetByCode(ctx context.Context, code string) (*workspace.Workspace, error) {
	ws := &workspace.Workspace{}

	q := r.baseSelect().
		Where(squirrel.Eq{"code": code}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, ws, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("workspace", code)
		}
		return nil, fmt.Errorf("get by code: %w", err)
	}

	return ws, nil
}

// List retrieves workspaces with filtering and pagination.
func (r *WorkspaceRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*workspace.Workspace], error) {
	result := domain.ListResult[*workspace.Workspace]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q := r.baseSelect()

	if !f.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
			squirrel.ILike{"company_name": pattern},
		})
	}

	if len(f.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": f.IDs})
	}

	if f.ParentID != nil {
		q = q.Where(squirrel.Eq{"parent_id": *f.ParentID})
	}

	if f.IsFolder != nil {
		q = q.Where(squirrel.Eq{"is_folder": *f.IsFolder})
	}

	var err error
	q, err = r.applyAdvancedFilters(q, f.AdvancedFilters)
	if err != nil {
		return domain.ListResult[*workspace.Workspace]{}, err
	}

	// Count total (before pagination)
	countQ := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub")

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

// applyAdvancedFilters applies complex filters to query.
func (r *WorkspaceRepo) applyAdvancedFilters(q squirrel.SelectBuilder, filters []filter.Item) (squirrel.SelectBuilder, error) {
	// Whitelist columns for SQL injection protection
	validCols := make(map[string]bool, len(r.selectCols))
	for _, col := range r.selectCols {
		validCols[col] = true
	}

	for _, item := range filters {
		if !validCols[item.Field] {
			return q, fmt.Errorf("invalid filter column: %s", item.Field)
		}

		switch item.Operator {
		case filter.Equal:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotEqual:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.LessOrEqual:
			q = q.Where(squirrel.LtOrEq{item.Field: item.Value})
		case filter.GreaterOrEqual:
			q = q.Where(squirrel.GtOrEq{item.Field: item.Value})
		case filter.Less:
			q = q.Where(squirrel.Lt{item.Field: item.Value})
		case filter.Greater:
			q = q.Where(squirrel.Gt{item.Field: item.Value})
		case filter.InList:
			q = q.Where(squirrel.Eq{item.Field: item.Value})
		case filter.NotInList:
			q = q.Where(squirrel.NotEq{item.Field: item.Value})
		case filter.IsNull:
			q = q.Where(squirrel.Eq{item.Field: nil})
		case filter.IsNotNull:
			q = q.Where(squirrel.NotEq{item.Field: nil})
		case filter.Contains:
			val := fmt.Sprintf("%%%v%%", item.Value)
			q = q.Where(squirrel.ILike{item.Field: val})
		case filter.NotContains:
			val := fmt.Sprintf("%%%v%%", item.Value)
			q = q.Where(squirrel.NotILike{item.Field: val})
		case filter.InHierarchy:
			q = q.Where(squirrel.Expr(hierarchyCond("IN"), item.Value))
		case filter.NotInHierarchy:
			q = q.Where(squirrel.Expr(hierarchyCond("NOT IN"), item.Value))
		}
	}

	return q, nil
}

func hierarchyCond(op string) string {
	return fmt.Sprintf(`
                id %s (
                    WITH RECURSIVE hierarchy AS (
                        SELECT id FROM %s WHERE id = ?
                        UNION ALL
                        SELECT t.id FROM %s t JOIN hierarchy h ON t.parent_id = h.id
                    )
                    SELECT id FROM hierarchy
                )
            `, op, workspaceTable, workspaceTable)
}

// Exists checks if a live (not deletion-marked) workspace with the given id
// exists. Hierarchy validation uses it for parent references.
func (r *WorkspaceRepo) Exists(ctx context.Context, workspaceID id.ID) (bool, error) {
	q := r.Builder().
		Select("1").
		From(workspaceTable).
		Where(squirrel.Eq{"id": workspaceID, "deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	var exists int
	err = querier.QueryRow(ctx, sql, args...).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	return true, nil
}

// SetDeletionMark sets or clears the deletion mark (soft delete). The CDC
// timestamp follows the mark so replicas see retirement and revival.
func (r *WorkspaceRepo) SetDeletionMark(ctx context.Context, workspaceID id.ID, marked bool) error {
	q := r.Builder().
		Update(workspaceTable).
		Set("deletion_mark", marked).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": workspaceID})

	if marked {
		q = q.Set("_deleted_at", squirrel.Expr("NOW()"))
	} else {
		q = q.Set("_deleted_at", nil)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set deletion mark: %w", err)
	}

	result, err := r.getTxManager(ctx).GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("execute set deletion mark: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("workspace", workspaceID.String())
	}

	return nil
}

// GetTree retrieves the workspace hierarchy using a recursive CTE.
func (r *WorkspaceRepo) GetTree(ctx context.Context, rootID *id.ID) ([]*workspace.Workspace, error) {
	var items []*workspace.Workspace

	rootCond, args := r.rootCondition(rootID)

	cteSQL := fmt.Sprintf(`
		WITH RECURSIVE tree AS (
			SELECT *, 0 as level
			FROM %s
			WHERE %s AND deletion_mark = false

			UNION ALL

			SELECT c.*, t.level + 1
			FROM %s c
			INNER JOIN tree t ON c.parent_id = t.id
			WHERE c.deletion_mark = false
		)
		SELECT %s FROM tree
		ORDER BY level, name
	`, workspaceTable, rootCond, workspaceTable, strings.Join(r.selectCols, ", "))

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, cteSQL, args...); err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}

	return items, nil
}

// HasLiveDocuments reports whether any non-deleted document still belongs
// to the workspace. The retirement guard in the service uses this: a scope
// whose numbers are still in circulation may not be marked deleted.
func (r *WorkspaceRepo) HasLiveDocuments(ctx context.Context, workspaceID id.ID) (bool, error) {
	q := r.Builder().
		Select("1").
		From("documents").
		Where(squirrel.Eq{"workspace_id": workspaceID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	var exists int
	err = querier.QueryRow(ctx, sql, args...).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has live documents: %w", err)
	}

	return true, nil
}

// Helper methods

func (r *WorkspaceRepo) rootCondition(rootID *id.ID) (string, []any) {
	if rootID == nil {
		return "parent_id IS NULL", nil
	}
	return "parent_id = $1", []any{*rootID}
}

func (r *WorkspaceRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if orderBy == "" {
		return "name ASC", nil
	}

	// Support "-field" for DESC.
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// Ensure interface compliance
var _ workspace.Repository = (*WorkspaceRepo)(nil)
