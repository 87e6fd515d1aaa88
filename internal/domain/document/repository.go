// Package document provides the unified lifecycle service for the three
// business-document kinds (quote, invoice, credit note). One model and one
// table serve all kinds; kind is a sequencing dimension, not a type split.
package document

import (
	"context"
	"time"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/domain"
)

// Repository defines persistence for documents. It is a superset of the
// numbering engine's DocumentStore port, so one implementation serves both.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, docID id.ID) (*entity.Document, error)
	GetByNumber(ctx context.Context, workspaceID id.ID, kind entity.Kind, number string) (*entity.Document, error)
	Update(ctx context.Context, doc *entity.Document) error
	Delete(ctx context.Context, docID id.ID) error

	// Numbering engine operations
	GetForUpdate(ctx context.Context, docID id.ID) (*entity.Document, error)
	SetStatus(ctx context.Context, docID id.ID, status entity.Status) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.Document], error)
}

// ListFilter for filtering documents.
type ListFilter struct {
	domain.ListFilter

	// Document-specific filters
	WorkspaceID *id.ID
	Kind        *entity.Kind
	Status      *entity.Status
	Prefix      string
	DateFrom    *time.Time
	DateTo      *time.Time
}
