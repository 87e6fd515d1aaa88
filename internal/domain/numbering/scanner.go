package numbering

import (
	"context"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
)

// Scanner derives the next official number from the documents themselves:
// max+1 over bare numbers held by non-DRAFT documents in scope. There is no
// counter row to drift; numbers freed by PENDING->DRAFT reverts are reused.
//
// The scan alone is not atomic. Callers pair it with the unique index on
// (workspace_id, kind, number) and retry on conflict.
type Scanner struct {
	repo Repository
}

// NewScanner creates a scanner over the given repository.
func NewScanner(repo Repository) *Scanner {
	return &Scanner{repo: repo}
}

// NextOfficial returns max+1 over official bare numbers in scope, 1 for an
// empty scope. Draft placeholders never count, whatever their base digits.
func (s *Scanner) NextOfficial(ctx context.Context, workspaceID id.ID, kind entity.Kind) (int64, error) {
	nums, err := s.repo.FindNumbers(ctx, workspaceID, kind, number.ShapeBare)
	if err != nil {
		return 0, err
	}

	var max int64
	for _, n := range nums {
		v, err := number.Parse(n)
		if err != nil {
			// Shape filtering happens in the repository; a non-bare value
			// here means the filter and the grammar disagree.
			return 0, apperror.NewInconsistentState("document", n, "official document holds a non-bare number")
		}
		if v > max {
			max = v
		}
	}

	if max >= number.MaxValue {
		return 0, apperror.NewAllocationFailed(workspaceID.String(), string(kind), 0).
			WithDetail("reason", "sequence exhausted").
			WithDetail("max", number.MaxValue)
	}
	return max + 1, nil
}
