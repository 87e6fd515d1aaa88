// Package sequence provides the sequence register service.
package sequence

import (
	"context"
	"fmt"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/domain/numbering"
)

// Service provides business operations for the sequence register.
// Journal writes arrive from the numbering engine inside its transaction;
// queries serve the registers API and ops tooling.
type Service struct {
	repo Repository
}

// NewService creates a new sequence register service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Record appends one numbering movement to the journal.
// Implements numbering.EventRecorder.
func (s *Service) Record(ctx context.Context, event entity.SequenceEvent) error {
	if !event.Event.Valid() {
		return apperror.NewValidation("unknown sequence event type").
			WithDetail("event", string(event.Event))
	}
	if id.IsNil(event.WorkspaceID) {
		return apperror.NewValidation("sequence event requires a workspace").
			WithDetail("field", "workspaceId")
	}
	if id.IsNil(event.DocumentID) {
		return apperror.NewValidation("sequence event requires a document").
			WithDetail("field", "documentId")
	}

	if err := s.repo.Append(ctx, event); err != nil {
		return fmt.Errorf("append sequence event: %w", err)
	}

	return nil
}

// Movements retrieves journal lines, newest first.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]entity.SequenceEvent, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.Movements(ctx, filter)
}

// Balances derives the current sequence state per kind for one workspace.
func (s *Service) Balances(ctx context.Context, workspaceID id.ID) ([]entity.SequenceBalance, error) {
	if id.IsNil(workspaceID) {
		return nil, apperror.NewValidation("workspace is required").
			WithDetail("field", "workspaceId")
	}
	return s.repo.Balances(ctx, workspaceID)
}

// Turnovers aggregates numbering activity per period bucket.
func (s *Service) Turnovers(ctx context.Context, filter TurnoverFilter) ([]TurnoverBucket, error) {
	if id.IsNil(filter.WorkspaceID) {
		return nil, apperror.NewValidation("workspace is required").
			WithDetail("field", "workspaceId")
	}
	if filter.Bucket == "" {
		filter.Bucket = "day"
	}
	if filter.Bucket != "day" && filter.Bucket != "month" {
		return nil, apperror.NewValidation("bucket must be day or month").
			WithDetail("bucket", filter.Bucket)
	}
	return s.repo.Turnovers(ctx, filter)
}

// Ensure interface compliance.
var _ numbering.EventRecorder = (*Service)(nil)
