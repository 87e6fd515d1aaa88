package workspace

import (
	"context"

	"numerus/internal/core/id"
	"numerus/internal/domain"
)

// Repository defines the interface for workspace storage.
// Delete is intentionally absent: workspaces are only ever soft-deleted
// through SetDeletionMark, because their id keys every document number
// ever issued in the scope.
type Repository interface {
	// Create inserts a new workspace
	Create(ctx context.Context, ws *Workspace) error

	// GetByID retrieves workspace by ID
	GetByID(ctx context.Context, workspaceID id.ID) (*Workspace, error)

	// GetByCode retrieves a live workspace by code (unique within tenant)
	GetByCode(ctx context.Context, code string) (*Workspace, error)

	// Update modifies existing workspace (with optimistic locking)
	Update(ctx context.Context, ws *Workspace) error

	// SetDeletionMark устанавливает или снимает пометку удаления
	SetDeletionMark(ctx context.Context, workspaceID id.ID, marked bool) error

	// List retrieves workspaces with filtering and pagination
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Workspace], error)

	// Exists checks if a live workspace with the given ID exists
	Exists(ctx context.Context, workspaceID id.ID) (bool, error)

	// GetTree retrieves the workspace hierarchy
	GetTree(ctx context.Context, rootID *id.ID) ([]*Workspace, error)

	// HasLiveDocuments reports whether any non-deleted document still
	// belongs to the workspace.
	HasLiveDocuments(ctx context.Context, workspaceID id.ID) (bool, error)
}
