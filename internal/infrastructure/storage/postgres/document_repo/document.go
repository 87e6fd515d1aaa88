// Package document_repo provides the PostgreSQL repository for documents.
// All three kinds share one table; kind is a filter column, not a table
// split. In Database-per-Tenant architecture, TxManager is obtained from
// context per-request.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/domain"
	"numerus/internal/domain/document"
	"numerus/internal/infrastructure/storage/postgres"
)

const documentsTable = "documents"

// DocumentRepo implements document.Repository over the unified documents
// table. It also serves the numbering engine's DocumentStore port.
type DocumentRepo struct {
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewDocumentRepo creates the documents repository.
// Note: TxManager is obtained from context, not stored in struct.
func NewDocumentRepo() *DocumentRepo {
	return &DocumentRepo{
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[entity.Document](),
	}
}

// getTxManager retrieves TxManager from context.
func (r *DocumentRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a new document.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.
		Insert(documentsTable).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("document", "number", doc.Number).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", documentsTable, err)
	}

	return nil
}

// Update updates a document with optimistic locking. Number, status,
// workspace and kind never change through this path: number and status
// belong to the numbering engine, the other two are immutable.
func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "created_at", "created_by":
			continue
		case "version", "updated_at":
			continue // managed by repo
		case "workspace_id", "kind", "number", "status":
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.
		Update(documentsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": doc.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", documentsTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("document", doc.ID)
	}

	return nil
}

// Delete soft-deletes a document. The partial unique index ignores
// marked rows, so the number becomes reusable at once.
func (r *DocumentRepo) Delete(ctx context.Context, docID id.ID) error {
	q := r.builder.
		Update(documentsTable).
		Set("deletion_mark", true).
		Set("_deleted_at", squirrel.Expr("NOW()")). // CDC: replicas reconstruct the DELETE from this
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": docID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", documentsTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}

	return nil
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(r.selectCols...).
		From(documentsTable)
}

// GetByID retrieves a document by ID.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*entity.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": docID})

	return r.getOne(ctx, q, docID.String())
}

// GetForUpdate retrieves a document with a row lock.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*entity.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": docID}).
		Suffix("FOR UPDATE")

	return r.getOne(ctx, q, docID.String())
}

// GetByNumber retrieves a document by number within one sequencing scope.
func (r *DocumentRepo) GetByNumber(ctx context.Context, workspaceID id.ID, kind entity.Kind, number string) (*entity.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"workspace_id": workspaceID}).
		Where(squirrel.Eq{"kind": kind}).
		Where(squirrel.Eq{"number": number}).
		Where(squirrel.Eq{"deletion_mark": false})

	return r.getOne(ctx, q, number)
}

func (r *DocumentRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*entity.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc entity.Document
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", key)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

// SetStatus persists a status change on behalf of the numbering engine.
// Version bumps without an optimistic check: the caller holds the row lock.
func (r *DocumentRepo) SetStatus(ctx context.Context, docID id.ID, status entity.Status) error {
	q := r.builder.
		Update(documentsTable).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": docID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set status: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}

	return nil
}

// List retrieves documents with filtering and pagination.
func (r *DocumentRepo) List(ctx context.Context, filter document.ListFilter) (domain.ListResult[*entity.Document], error) {
	result := domain.ListResult[*entity.Document]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.WorkspaceID != nil {
		q = q.Where(squirrel.Eq{"workspace_id": *filter.WorkspaceID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Prefix != "" {
		q = q.Where(squirrel.Eq{"prefix": filter.Prefix})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.Lt{"date": *filter.DateTo})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	// Count
	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	// Order
	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	// Page
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
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

func (r *DocumentRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "date DESC, number ASC", nil
	}

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
var _ document.Repository = (*DocumentRepo)(nil)
