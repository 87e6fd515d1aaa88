package conversion

import (
	"context"

	"numerus/internal/core/id"
)

// Repository defines persistence for document links.
type Repository interface {
	// Create inserts a link. A duplicate source surfaces as CodeDuplicate.
	Create(ctx context.Context, link Link) error

	// GetBySource returns the link whose source is documentID, nil when the
	// document was never converted.
	GetBySource(ctx context.Context, documentID id.ID) (*Link, error)

	// GetByDerived returns the link that produced documentID, nil when the
	// document is not a conversion product.
	GetByDerived(ctx context.Context, documentID id.ID) (*Link, error)
}
