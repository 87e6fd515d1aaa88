package document

import (
	"context"
	"fmt"
	"time"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/security"
	"numerus/internal/core/tenant"
	"numerus/internal/core/tx"
	"numerus/internal/domain"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/numbering"
	"numerus/internal/domain/workspace"
	"numerus/pkg/logger"
)

// WorkspaceDirectory is the slice of the workspace catalog the document
// service consumes: existence checks plus numbering flags.
type WorkspaceDirectory interface {
	RequireLive(ctx context.Context, workspaceID id.ID) (*workspace.Workspace, error)
}

// ConversionLog records derivations and answers lock queries.
type ConversionLog interface {
	Record(ctx context.Context, sourceID, derivedID id.ID) (conversion.Link, error)
	LockedBy(ctx context.Context, documentID id.ID) (id.ID, bool, error)
}

// Config wires the document service collaborators.
type Config struct {
	Repo        Repository
	Engine      *numbering.Service
	Workspaces  WorkspaceDirectory
	Conversions ConversionLog

	// Flags is the tenant-level feature switchboard. Optional; nil skips
	// the tenant check and leaves only the per-workspace settings.
	Flags security.FeatureFlagProvider

	// TxManager is optional. If nil, obtained from context (DB-per-tenant).
	TxManager tx.Manager
}

// Service provides business operations for documents across all kinds.
// In Database-per-Tenant architecture, TxManager is obtained from context.
type Service struct {
	repo        Repository
	engine      *numbering.Service
	workspaces  WorkspaceDirectory
	conversions ConversionLog
	flags       security.FeatureFlagProvider
	txManager   tx.Manager
	hooks       *domain.HookRegistry[*entity.Document]
}

// NewService creates a new document service.
func NewService(cfg Config) *Service {
	return &Service{
		repo:        cfg.Repo,
		engine:      cfg.Engine,
		workspaces:  cfg.Workspaces,
		conversions: cfg.Conversions,
		flags:       cfg.Flags,
		txManager:   cfg.TxManager,
		hooks:       domain.NewHookRegistry[*entity.Document](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*entity.Document] {
	return s.hooks
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Create creates a new document. Documents are always born in DRAFT; the
// issuer assigns a placeholder number (manual base honored when allowed).
func (s *Service) Create(ctx context.Context, doc *entity.Document, manualNumber string) error {
	doc.Status = entity.StatusDraft
	if doc.Date.IsZero() {
		doc.Date = time.Now().UTC()
	}

	if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
		return err
	}

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	ws, err := s.workspaces.RequireLive(ctx, doc.WorkspaceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("workspace not found").
				WithDetail("workspaceId", doc.WorkspaceID.String())
		}
		return err
	}

	if manualNumber != "" {
		if err := s.manualAllowed(ctx, ws); err != nil {
			return err
		}
	}

	alloc, err := s.engine.Allocate(ctx, numbering.AllocationRequest{
		WorkspaceID:  doc.WorkspaceID,
		Kind:         doc.Kind,
		Prefix:       doc.Prefix,
		ManualNumber: manualNumber,
		TargetStatus: entity.StatusDraft,
	})
	if err != nil {
		return err
	}
	doc.Number = alloc.Number

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "document created",
		"id", doc.ID,
		"kind", doc.Kind,
		"number", doc.Number,
		"workspace_id", doc.WorkspaceID)

	return nil
}

// GetByID retrieves a document.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*entity.Document, error) {
	return s.repo.GetByID(ctx, docID)
}

// GetByNumber retrieves a document by its exact stored number within a scope.
func (s *Service) GetByNumber(ctx context.Context, workspaceID id.ID, kind entity.Kind, number string) (*entity.Document, error) {
	return s.repo.GetByNumber(ctx, workspaceID, kind, number)
}

// List retrieves documents with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.Document], error) {
	return s.repo.List(ctx, filter)
}

// Update updates mutable document fields. Number, status, workspace and kind
// never change through this path; the repository skips those columns and the
// stored values are copied back so the returned entity reflects reality.
func (s *Service) Update(ctx context.Context, doc *entity.Document) error {
	if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
		return err
	}

	stored, err := s.repo.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	if err := stored.CanModify(); err != nil {
		return err
	}

	doc.WorkspaceID = stored.WorkspaceID
	doc.Kind = stored.Kind
	doc.Number = stored.Number
	doc.Status = stored.Status

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterUpdate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	return nil
}

// Delete soft-deletes a document. DRAFT and PENDING only; deleting a PENDING
// document releases its bare number back to the sequence.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if err := s.hooks.RunBeforeDelete(ctx, doc); err != nil {
		return err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := locked.CanDelete(); err != nil {
			return err
		}
		if err := s.engine.ReleaseOnDelete(ctx, locked); err != nil {
			return fmt.Errorf("release number: %w", err)
		}
		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterDelete(ctx, doc); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}

	logger.Info(ctx, "document deleted",
		"id", docID,
		"kind", doc.Kind,
		"number", doc.Number)

	return nil
}

// Transition moves a document along the lifecycle, delegating numbering to
// the engine. Empty from means "whatever the document holds right now";
// a non-empty from acts as an optimistic guard against racing transitions.
func (s *Service) Transition(ctx context.Context, docID id.ID, from, to entity.Status, manualNumber string) (*numbering.TransitionResult, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if from == "" {
		from = doc.Status
	}

	if manualNumber != "" {
		ws, err := s.workspaces.RequireLive(ctx, doc.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if err := s.manualAllowed(ctx, ws); err != nil {
			return nil, err
		}
		return s.engine.TransitionWithNumber(ctx, docID, from, to, manualNumber)
	}

	return s.engine.Transition(ctx, docID, from, to)
}

// Convert derives a new DRAFT document from an official one:
// QUOTE → INVOICE, INVOICE → CREDIT_NOTE. The derivation is recorded in
// document_links, which locks the source against further transitions.
func (s *Service) Convert(ctx context.Context, sourceID id.ID, targetKind entity.Kind) (*entity.Document, error) {
	source, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.DeletionMark {
		return nil, apperror.NewNotFound("document", sourceID.String())
	}

	want, ok := conversion.TargetFor(source.Kind)
	if !ok || want != targetKind {
		return nil, apperror.NewValidation("unsupported conversion").
			WithDetail("from", string(source.Kind)).
			WithDetail("to", string(targetKind))
	}
	if !source.Status.Official() {
		return nil, apperror.NewValidation("only official documents can be converted").
			WithDetail("status", string(source.Status))
	}

	if derivedID, locked, err := s.conversions.LockedBy(ctx, sourceID); err != nil {
		return nil, err
	} else if locked {
		return nil, apperror.NewConflict("document already converted").
			WithDetail("document_id", sourceID.String()).
			WithDetail("derived_id", derivedID.String())
	}

	doc := entity.NewDocument(source.WorkspaceID, targetKind)
	derived := &doc
	derived.Prefix = source.Prefix
	derived.Total = source.Total
	derived.Currency = source.Currency
	derived.Comment = source.Comment

	if err := s.hooks.RunBeforeCreate(ctx, derived); err != nil {
		return nil, err
	}
	if err := derived.Validate(ctx); err != nil {
		return nil, err
	}

	alloc, err := s.engine.Allocate(ctx, numbering.AllocationRequest{
		WorkspaceID:  derived.WorkspaceID,
		Kind:         derived.Kind,
		Prefix:       derived.Prefix,
		TargetStatus: entity.StatusDraft,
	})
	if err != nil {
		return nil, err
	}
	derived.Number = alloc.Number

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, derived); err != nil {
			return fmt.Errorf("create derived document: %w", err)
		}
		if _, err := s.conversions.Record(ctx, sourceID, derived.ID); err != nil {
			return fmt.Errorf("record conversion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.RunAfterCreate(ctx, derived); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "document converted",
		"source_id", sourceID,
		"derived_id", derived.ID,
		"from", source.Kind,
		"to", targetKind,
		"number", derived.Number)

	return derived, nil
}

// manualAllowed rejects user-supplied numbers when either the tenant flag or
// the workspace setting turns them off.
func (s *Service) manualAllowed(ctx context.Context, ws *workspace.Workspace) error {
	if s.flags != nil && !s.flags.IsEnabled(ctx, security.FlagManualNumbers) {
		return apperror.NewValidation("manual numbers are disabled for this tenant").
			WithDetail("flag", security.FlagManualNumbers)
	}
	if !ws.AllowManualNumbers {
		return apperror.NewValidation("manual numbers are disabled for this workspace").
			WithDetail("workspace_id", ws.ID.String())
	}
	return nil
}
