package conversion

import (
	"context"

	"numerus/internal/core/id"
	"numerus/internal/core/security"
	"numerus/internal/domain/numbering"
)

// Service records conversions and answers the engine's transition-lock
// queries.
type Service struct {
	repo Repository
}

// NewService creates a new conversion service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record journals that sourceID was converted into derivedID. The write
// joins the caller's transaction; racing converters lose on the source_id
// unique constraint.
func (s *Service) Record(ctx context.Context, sourceID, derivedID id.ID) (Link, error) {
	link := NewLink(sourceID, derivedID, security.GetUserID(ctx))
	if err := s.repo.Create(ctx, link); err != nil {
		return Link{}, err
	}
	return link, nil
}

// LockedBy reports whether documentID has a derived artifact, and which one.
// Implements numbering.ConversionTracker.
func (s *Service) LockedBy(ctx context.Context, documentID id.ID) (id.ID, bool, error) {
	link, err := s.repo.GetBySource(ctx, documentID)
	if err != nil {
		return id.Nil(), false, err
	}
	if link == nil {
		return id.Nil(), false, nil
	}
	return link.DerivedID, true, nil
}

// Provenance returns the link that produced documentID, nil when it is not
// a conversion product.
func (s *Service) Provenance(ctx context.Context, documentID id.ID) (*Link, error) {
	return s.repo.GetByDerived(ctx, documentID)
}

// Ensure interface compliance.
var _ numbering.ConversionTracker = (*Service)(nil)
