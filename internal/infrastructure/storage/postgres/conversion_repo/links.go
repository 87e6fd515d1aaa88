// Package conversion_repo persists document conversion links.
package conversion_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"numerus/internal/core/apperror"
	"numerus/internal/core/id"
	"numerus/internal/domain/conversion"
	"numerus/internal/infrastructure/storage/postgres"
)

const linksTable = "document_links"

var linkCols = []string{"link_id", "source_id", "derived_id", "relation", "created_at", "created_by"}

// LinkRepo implements conversion.Repository.
type LinkRepo struct {
	builder squirrel.StatementBuilderType
}

// NewLinkRepo creates the conversion links repository.
func NewLinkRepo() *LinkRepo {
	return &LinkRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LinkRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a conversion link. The unique index on source_id turns a
// second conversion of the same document into CodeDuplicate.
func (r *LinkRepo) Create(ctx context.Context, link conversion.Link) error {
	q := r.builder.
		Insert(linksTable).
		Columns(linkCols...).
		Values(link.LinkID, link.SourceID, link.DerivedID, link.Relation, link.CreatedAt, link.CreatedBy)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("document_link", "source_id", link.SourceID.String()).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", linksTable, err)
	}

	return nil
}

// GetBySource returns the link converting documentID, nil when none exists.
func (r *LinkRepo) GetBySource(ctx context.Context, documentID id.ID) (*conversion.Link, error) {
	return r.getOne(ctx, squirrel.Eq{"source_id": documentID})
}

// GetByDerived returns the link that produced documentID, nil when the
// document is not a conversion product.
func (r *LinkRepo) GetByDerived(ctx context.Context, documentID id.ID) (*conversion.Link, error) {
	return r.getOne(ctx, squirrel.Eq{"derived_id": documentID})
}

func (r *LinkRepo) getOne(ctx context.Context, where squirrel.Eq) (*conversion.Link, error) {
	q := r.builder.
		Select(linkCols...).
		From(linksTable).
		Where(where)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var link conversion.Link
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &link, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get link: %w", err)
	}

	return &link, nil
}

// Ensure interface compliance
var _ conversion.Repository = (*LinkRepo)(nil)
