package reports

import (
	"context"
	"fmt"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
)

// Service provides report generation operations.
type Service struct {
	repo Repository
}

// NewService creates a new reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetDocumentJournal returns the cross-kind document journal.
func (s *Service) GetDocumentJournal(ctx context.Context, filter DocumentJournalFilter) (*DocumentJournal, error) {
	for _, k := range filter.Kinds {
		if !k.Valid() {
			return nil, apperror.NewValidation("unknown document kind").
				WithDetail("kind", string(k))
		}
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperror.NewValidation("unknown document status").
				WithDetail("status", string(st))
		}
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate) {
		return nil, apperror.NewValidation("fromDate must be before toDate")
	}

	// Set default pagination
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}

	// Default sort
	if filter.SortBy == "" {
		filter.SortBy = "date"
	}
	if filter.SortOrder == "" {
		filter.SortOrder = "desc"
	}

	journal, err := s.repo.GetDocumentJournal(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get document journal: %w", err)
	}

	// Summary rides along on the first page only
	if filter.Offset == 0 {
		summary, err := s.repo.GetKindSummary(ctx, filter)
		if err == nil {
			journal.Summary = summary
		}
	}

	return journal, nil
}

// GetNumberingGaps reports holes in the bare sequence of one
// (workspace, kind) scope.
func (s *Service) GetNumberingGaps(ctx context.Context, filter NumberingGapsFilter) (*NumberingGapsReport, error) {
	if id.IsNil(filter.WorkspaceID) {
		return nil, apperror.NewValidation("workspaceId is required")
	}
	if !filter.Kind.Valid() {
		return nil, apperror.NewValidation("unknown document kind").
			WithDetail("kind", string(filter.Kind))
	}

	if filter.MaxGaps <= 0 {
		filter.MaxGaps = 100
	}
	if filter.MaxGaps > 1000 {
		filter.MaxGaps = 1000
	}

	report, err := s.repo.GetNumberingGaps(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get numbering gaps: %w", err)
	}

	return report, nil
}

// KindTargets lists the kinds the journal covers; handy for clients
// building filter UIs.
func KindTargets() []entity.Kind {
	return entity.Kinds()
}
