package workspace

import (
	"context"
	"fmt"

	"numerus/internal/core/apperror"
	"numerus/internal/core/id"
	"numerus/internal/core/tenant"
	"numerus/internal/core/tx"
	"numerus/internal/domain"
)

// Service provides business logic for the Workspace catalog.
// In Database-per-Tenant architecture, TxManager can be nil - it will be obtained from context.
type Service struct {
	repo      Repository
	txManager tx.Manager // Optional - if nil, obtained from context
	hooks     *domain.HookRegistry[*Workspace]
}

// NewService creates a new Workspace service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		hooks: domain.NewHookRegistry[*Workspace](),
	}
}

// getTxManager returns TxManager from config or context.
func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	// Get from context (Database-per-Tenant mode)
	return tenant.GetTxManager(ctx)
}

// Hooks returns the hook registry for external registration.
func (s *Service) Hooks() *domain.HookRegistry[*Workspace] {
	return s.hooks
}

func normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	// If entity already returns structured AppError, keep it.
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func normalizeGetErr(err error, idOrCode any) error {
	if err == nil {
		return nil
	}
	// Preserve existing AppError, but ensure not-found is mapped to the correct entity name.
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("workspace", idOrCode)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", "workspace").WithDetail("id", idOrCode)
}

// Create creates a new workspace.
func (s *Service) Create(ctx context.Context, ws *Workspace) error {
	if err := ws.Validate(ctx); err != nil {
		return normalizeValidationErr(err)
	}
	if err := s.validateParent(ctx, ws); err != nil {
		return err
	}

	if err := s.hooks.RunBeforeCreate(ctx, ws); err != nil {
		return err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, ws); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_ = s.hooks.RunAfterCreate(ctx, ws)
	return nil
}

// GetByID retrieves workspace by ID.
func (s *Service) GetByID(ctx context.Context, workspaceID id.ID) (*Workspace, error) {
	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, normalizeGetErr(err, workspaceID.String())
	}
	return ws, nil
}

// GetByCode retrieves a live workspace by code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Workspace, error) {
	ws, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, normalizeGetErr(err, code)
	}
	return ws, nil
}

// Update updates an existing workspace.
func (s *Service) Update(ctx context.Context, ws *Workspace) error {
	if err := ws.Validate(ctx); err != nil {
		return normalizeValidationErr(err)
	}
	if err := s.validateParent(ctx, ws); err != nil {
		return err
	}

	if err := s.hooks.RunBeforeUpdate(ctx, ws); err != nil {
		return err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, ws); err != nil {
			return fmt.Errorf("update workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_ = s.hooks.RunAfterUpdate(ctx, ws)
	return nil
}

// Delete retires a workspace (soft delete). A workspace that still holds
// live documents cannot be retired: every issued number keeps pointing at
// its scope for as long as the documents exist.
func (s *Service) Delete(ctx context.Context, workspaceID id.ID) error {
	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return normalizeGetErr(err, workspaceID.String())
	}

	if err := s.guardRetirement(ctx, workspaceID); err != nil {
		return err
	}

	if err := s.hooks.RunBeforeDelete(ctx, ws); err != nil {
		return err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetDeletionMark(ctx, workspaceID, true); err != nil {
			return fmt.Errorf("delete workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_ = s.hooks.RunAfterDelete(ctx, ws)
	return nil
}

// SetDeletionMark sets or clears the deletion mark. Marking is subject to
// the same live-documents guard as Delete; unmarking always goes through.
func (s *Service) SetDeletionMark(ctx context.Context, workspaceID id.ID, marked bool) error {
	if marked {
		if err := s.guardRetirement(ctx, workspaceID); err != nil {
			return err
		}
	}
	return s.repo.SetDeletionMark(ctx, workspaceID, marked)
}

// validateParent checks the optional hierarchy reference: parent_id has no
// foreign key (it is a plain text column shared with the tree CTEs), so the
// service verifies the parent is an existing live workspace.
func (s *Service) validateParent(ctx context.Context, ws *Workspace) error {
	if ws.ParentID == nil || *ws.ParentID == "" {
		return nil
	}

	parentID, err := id.Parse(*ws.ParentID)
	if err != nil {
		return apperror.NewValidation("invalid parentId format").
			WithDetail("parentId", *ws.ParentID)
	}
	if parentID == ws.ID {
		return apperror.NewValidation("workspace cannot be its own parent").
			WithDetail("parentId", *ws.ParentID)
	}

	alive, err := s.repo.Exists(ctx, parentID)
	if err != nil {
		return fmt.Errorf("check parent workspace: %w", err)
	}
	if !alive {
		return apperror.NewValidation("parent workspace not found").
			WithDetail("parentId", *ws.ParentID)
	}
	return nil
}

func (s *Service) guardRetirement(ctx context.Context, workspaceID id.ID) error {
	held, err := s.repo.HasLiveDocuments(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("check workspace documents: %w", err)
	}
	if held {
		return apperror.NewConflict("workspace still holds documents").
			WithDetail("workspace_id", workspaceID.String())
	}
	return nil
}

// List retrieves workspaces with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Workspace], error) {
	return s.repo.List(ctx, filter)
}

// Exists checks if workspace exists.
func (s *Service) Exists(ctx context.Context, workspaceID id.ID) (bool, error) {
	return s.repo.Exists(ctx, workspaceID)
}

// GetTree retrieves the workspace hierarchy.
func (s *Service) GetTree(ctx context.Context, rootID *id.ID) ([]*Workspace, error) {
	return s.repo.GetTree(ctx, rootID)
}

// RequireLive loads a workspace and rejects deleted ones. Document creation
// goes through this so drafts cannot be attached to a retired scope.
func (s *Service) RequireLive(ctx context.Context, workspaceID id.ID) (*Workspace, error) {
	ws, err := s.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.DeletionMark {
		return nil, apperror.NewNotFound("workspace", workspaceID.String())
	}
	return ws, nil
}
