package numbering

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"numerus/internal/core/apperror"
	appctx "numerus/internal/core/context"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
	"numerus/internal/core/security"
	"numerus/internal/core/tenant"
	"numerus/internal/core/tx"
	"numerus/pkg/logger"
)

// maxAllocationAttempts bounds the retry loop around scan-and-write races.
// Exhaustion surfaces as NUMBER_ALLOCATION_FAILED; the whole request is safe
// to retry later.
const maxAllocationAttempts = 3

// Config wires the facade's collaborators.
type Config struct {
	Repository  Repository
	Documents   DocumentStore
	Events      EventRecorder
	Conversions ConversionTracker

	// Audit and Outbox are optional; nil disables the concern.
	Audit  AuditTrail
	Outbox MessagePublisher

	// Policy gates transitions by business date. Defaults to OpenPolicy.
	Policy security.TransitionPolicy

	// Strategy selects the allocator. Defaults to StrategyScan.
	Strategy Strategy

	// TxManager is optional. If nil, it is obtained from context
	// (DB-per-tenant).
	TxManager tx.Manager
}

// Service is the numbering facade: the single entry point for issuing draft
// placeholders, allocating official numbers and executing status transitions.
// Number and status always change in the same transaction.
type Service struct {
	repo        Repository
	store       DocumentStore
	events      EventRecorder
	conversions ConversionTracker
	audit       AuditTrail
	outbox      MessagePublisher
	policy      security.TransitionPolicy
	txManager   tx.Manager

	machine   *Machine
	allocator Allocator
	scanner   *Scanner
	issuer    *Issuer
	swapper   *Swapper
}

// NewService builds the engine for the configured strategy.
func NewService(cfg Config) (*Service, error) {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyScan
	}
	alloc, err := NewAllocator(strategy, cfg.Repository)
	if err != nil {
		return nil, err
	}

	policy := cfg.Policy
	if policy == nil {
		policy = security.OpenPolicy{}
	}

	scanner := NewScanner(cfg.Repository)
	issuer := NewIssuer(cfg.Repository, alloc)

	return &Service{
		repo:        cfg.Repository,
		store:       cfg.Documents,
		events:      cfg.Events,
		conversions: cfg.Conversions,
		audit:       cfg.Audit,
		outbox:      cfg.Outbox,
		policy:      policy,
		txManager:   cfg.TxManager,
		machine:     NewMachine(),
		allocator:   alloc,
		scanner:     scanner,
		issuer:      issuer,
		swapper:     NewSwapper(cfg.Repository, scanner, issuer, cfg.Events),
	}, nil
}

// Machine exposes the transition tables for the metadata endpoint.
func (s *Service) Machine() *Machine { return s.machine }

// Strategy reports the configured allocation strategy.
func (s *Service) Strategy() Strategy { return s.allocator.Strategy() }

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// withSavepoint shields the enclosing transaction from a failing fn when the
// manager supports partial rollback; managers that do not simply run fn.
func withSavepoint(ctx context.Context, txm tx.Manager, fn func(ctx context.Context) error) error {
	if sp, ok := txm.(tx.SavepointManager); ok {
		return sp.WithSavepoint(ctx, fn)
	}
	return fn(ctx)
}

// AllocationRequest asks the facade for a number.
type AllocationRequest struct {
	WorkspaceID id.ID
	Kind        entity.Kind
	Prefix      string

	// ManualNumber is an optional user-supplied bare number (1-6 digits).
	ManualNumber string

	// CurrentStatus / TargetStatus drive routing: DRAFT targets get a
	// placeholder, official targets run the full transition. An empty
	// CurrentStatus means the document does not exist yet and is treated
	// as DRAFT for table validation.
	CurrentStatus entity.Status
	TargetStatus  entity.Status

	// DocumentID is required for official targets (the transition must
	// land on a persisted row); unused for DRAFT issuance.
	DocumentID id.ID
}

// Allocation is the facade's answer.
type Allocation struct {
	Number  string `json:"number"`
	Prefix  string `json:"prefix,omitempty"`
	Manual  bool   `json:"manual,omitempty"`
	Swapped bool   `json:"swapped,omitempty"`
}

// Allocate routes a numbering request by target status: DRAFT targets
// receive a non-consuming placeholder (pure string, caller persists it as
// part of the document write), any other target runs the corresponding
// status transition and returns the resulting official number.
func (s *Service) Allocate(ctx context.Context, req AllocationRequest) (*Allocation, error) {
	if id.IsNil(req.WorkspaceID) {
		return nil, apperror.NewValidation("workspace is required").WithDetail("field", "workspaceId")
	}
	if !req.Kind.Valid() {
		return nil, apperror.NewValidation("unknown document kind").WithDetail("kind", string(req.Kind))
	}

	if req.TargetStatus == entity.StatusDraft {
		placeholder, err := s.issuer.IssueDraft(ctx, req.WorkspaceID, req.Kind, req.ManualNumber)
		if err != nil {
			return nil, err
		}
		return &Allocation{
			Number: placeholder,
			Prefix: req.Prefix,
			Manual: req.ManualNumber != "",
		}, nil
	}

	if id.IsNil(req.DocumentID) {
		return nil, apperror.NewValidation("documentId is required for official allocation").
			WithDetail("target_status", string(req.TargetStatus))
	}

	current := req.CurrentStatus
	if current == "" {
		current = entity.StatusDraft
	}

	res, err := s.transition(ctx, req.DocumentID, current, req.TargetStatus, req.ManualNumber)
	if err != nil {
		return nil, err
	}
	return &Allocation{
		Number:  res.Number,
		Prefix:  req.Prefix,
		Manual:  req.ManualNumber != "",
		Swapped: res.Swapped,
	}, nil
}

// TransitionResult reports a completed status transition.
type TransitionResult struct {
	DocumentID     id.ID         `json:"documentId"`
	Number         string        `json:"number"`
	PreviousNumber string        `json:"previousNumber,omitempty"`
	Status         entity.Status `json:"status"`
	Event          string        `json:"event"`
	Swapped        bool          `json:"swapped,omitempty"`
}

// Transition moves a document from one status to another, allocating or
// releasing its number as the transition table dictates.
func (s *Service) Transition(ctx context.Context, documentID id.ID, from, to entity.Status) (*TransitionResult, error) {
	return s.transition(ctx, documentID, from, to, "")
}

// TransitionWithNumber is Transition with a user-requested bare number for
// the allocating edge (bootstrap imports).
func (s *Service) TransitionWithNumber(ctx context.Context, documentID id.ID, from, to entity.Status, manual string) (*TransitionResult, error) {
	return s.transition(ctx, documentID, from, to, manual)
}

func (s *Service) transition(ctx context.Context, documentID id.ID, from, to entity.Status, manual string) (*TransitionResult, error) {
	if !from.Valid() {
		return nil, apperror.NewValidation("unknown document status").WithDetail("status", string(from))
	}
	if !to.Valid() {
		return nil, apperror.NewValidation("unknown document status").WithDetail("status", string(to))
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	var result *TransitionResult
	var kind entity.Kind
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		// Plain read first: the scope lock must be taken before any row
		// lock, and the scope is not known until the document is loaded.
		peek, err := s.store.GetByID(ctx, documentID)
		if err != nil {
			return err
		}
		kind = peek.Kind
		if err := s.repo.LockScope(ctx, peek.WorkspaceID, peek.Kind); err != nil {
			return err
		}

		doc, err := s.store.GetForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != from {
			return apperror.NewConcurrentModification("document", documentID.String()).
				WithDetail("expected_status", string(from)).
				WithDetail("actual_status", string(doc.Status))
		}

		// A document already converted into a derived one is frozen,
		// whatever the table says.
		if lockedBy, locked, err := s.conversions.LockedBy(ctx, documentID); err != nil {
			return err
		} else if locked {
			return apperror.NewInvalidTransition(string(from), string(to)).
				WithDetail("reason", "document is locked by a derived document").
				WithDetail("locked_by", lockedBy.String())
		}

		plan, err := s.machine.Plan(ctx, doc.Kind, from, to)
		if err != nil {
			return err
		}

		if plan.Action == ActionRelease {
			if err := s.policy.CanRevert(ctx, doc.Date); err != nil {
				return err
			}
		} else if err := s.policy.CanTransition(ctx, doc.Date); err != nil {
			return err
		}

		result, err = s.apply(ctx, doc, plan, manual)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document transitioned",
		"document_id", result.DocumentID,
		"kind", kind,
		"event", result.Event,
		"status", result.Status,
		"number", result.Number)
	return result, nil
}

// apply executes the numbering action and the status write inside the
// caller's transaction.
func (s *Service) apply(ctx context.Context, doc *entity.Document, plan Plan, manual string) (*TransitionResult, error) {
	actor := appctx.GetUserID(ctx)
	previous := doc.Number
	finalNumber := doc.Number
	swapped := false

	switch plan.Action {
	case ActionAllocate:
		asg, manualUsed, err := s.allocateOfficial(ctx, doc, manual)
		if err != nil {
			return nil, err
		}
		finalNumber = asg.Number
		swapped = asg.Swapped

		eventType := entity.SequenceEventAllocated
		if manualUsed {
			eventType = entity.SequenceEventManualAccepted
		}
		ev := entity.NewSequenceEvent(doc.WorkspaceID, doc.Kind, doc.ID, eventType, finalNumber, previous, actor)
		if err := s.events.Record(ctx, ev); err != nil {
			return nil, err
		}
		if s.outbox != nil {
			payload := NumberAllocatedPayload{
				DocumentID:     doc.ID,
				WorkspaceID:    doc.WorkspaceID,
				Kind:           doc.Kind,
				Number:         finalNumber,
				PreviousNumber: previous,
				Manual:         manualUsed,
			}
			if err := s.outbox.PublishEvent(ctx, "document", doc.ID, TopicNumberAllocated, payload); err != nil {
				return nil, err
			}
		}

	case ActionRelease:
		placeholder, err := s.release(ctx, doc)
		if err != nil {
			return nil, err
		}
		finalNumber = placeholder
		ev := entity.NewSequenceEvent(doc.WorkspaceID, doc.Kind, doc.ID, entity.SequenceEventReleased, placeholder, previous, actor)
		if err := s.events.Record(ctx, ev); err != nil {
			return nil, err
		}
	}

	if err := s.store.SetStatus(ctx, doc.ID, plan.To); err != nil {
		return nil, err
	}

	if s.audit != nil {
		changes := map[string]any{
			"status": map[string]any{"old": string(plan.From), "new": string(plan.To)},
		}
		if finalNumber != previous {
			changes["number"] = map[string]any{"old": previous, "new": finalNumber}
		}
		if err := s.audit.RecordChange(ctx, "document", doc.ID, "transition", changes); err != nil {
			return nil, err
		}
	}
	if s.outbox != nil {
		payload := StatusChangedPayload{
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Kind:        doc.Kind,
			From:        plan.From,
			To:          plan.To,
			Number:      finalNumber,
		}
		if err := s.outbox.PublishEvent(ctx, "document", doc.ID, TopicStatusChanged, payload); err != nil {
			return nil, err
		}
	}

	return &TransitionResult{
		DocumentID:     doc.ID,
		Number:         finalNumber,
		PreviousNumber: previous,
		Status:         plan.To,
		Event:          plan.Event,
		Swapped:        swapped,
	}, nil
}

// allocateOfficial picks a target bare number and drives it through the
// swapper, retrying on write conflicts. Each attempt runs inside its own
// savepoint: a unique-index violation must not abort the enclosing
// transaction. Returns the assignment and whether a manual number was used.
func (s *Service) allocateOfficial(ctx context.Context, doc *entity.Document, manual string) (Assignment, bool, error) {
	target, manualUsed, err := s.pickTarget(ctx, doc, manual)
	if err != nil {
		return Assignment{}, false, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return Assignment{}, false, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	attempts := 0
	var assignment Assignment
	operation := func() error {
		attempts++
		if attempts > 1 {
			// The previous write lost a race; re-derive the target unless
			// the user pinned one.
			if !manualUsed {
				target, err = s.allocator.Next(ctx, doc.WorkspaceID, doc.Kind)
				if err != nil {
					return backoff.Permanent(err)
				}
			}
			logger.Warn(ctx, "number allocation retry",
				"document_id", doc.ID,
				"attempt", attempts,
				"target", target)
		}

		err := withSavepoint(ctx, txm, func(ctx context.Context) error {
			asg, err := s.swapper.ResolveAndAssign(ctx, doc.ID, doc.WorkspaceID, doc.Kind, target, manualUsed)
			if err != nil {
				return err
			}
			assignment = asg
			return nil
		})
		if err != nil {
			// Only the transient write conflict is worth another attempt.
			if apperror.IsCode(err, apperror.CodeDuplicate) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second

	err = backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, maxAllocationAttempts-1), ctx))
	if err != nil {
		if apperror.IsCode(err, apperror.CodeDuplicate) {
			return Assignment{}, false, apperror.
				NewAllocationFailed(doc.WorkspaceID.String(), string(doc.Kind), attempts).
				WithCause(err)
		}
		return Assignment{}, false, err
	}
	return assignment, manualUsed, nil
}

// pickTarget resolves the bare number to attempt. Manual numbers are
// normalized to the padded width and gated by the bootstrap rule: once a
// scope holds any official document, only the allocator hands out numbers.
// A colliding manual number is reported as a duplicate before the bootstrap
// rule so the user sees the most actionable error.
func (s *Service) pickTarget(ctx context.Context, doc *entity.Document, manual string) (string, bool, error) {
	if manual == "" {
		target, err := s.allocator.Next(ctx, doc.WorkspaceID, doc.Kind)
		return target, false, err
	}

	v, err := number.Parse(manual)
	if err != nil {
		return "", false, apperror.NewValidation("manual number must be 1 to 6 digits").
			WithDetail("number", manual)
	}
	padded := number.Format(v)

	holder, err := s.repo.FindHolder(ctx, doc.WorkspaceID, doc.Kind, padded, doc.ID)
	if err != nil {
		return "", false, err
	}
	if holder != nil && holder.Status != entity.StatusDraft {
		return "", false, apperror.NewDuplicateNumber(string(doc.Kind), padded)
	}

	hasOfficial, err := s.repo.HasOfficialDocuments(ctx, doc.WorkspaceID, doc.Kind)
	if err != nil {
		return "", false, err
	}
	if hasOfficial {
		return "", false, apperror.NewValidation(
			"manual numbers are only accepted while the scope has no official documents").
			WithDetail("number", padded).
			WithDetail("kind", string(doc.Kind))
	}
	return padded, true, nil
}

// release rewrites the document's bare number to a placeholder on the same
// base, returning the number to the pool under the scan strategy.
func (s *Service) release(ctx context.Context, doc *entity.Document) (string, error) {
	base, ok := number.Base(doc.Number)
	if !ok {
		return "", apperror.NewInconsistentState("document", doc.ID.String(),
			"official document holds a non-bare number").
			WithDetail("number", doc.Number)
	}
	placeholder, err := s.issuer.PlaceholderFor(ctx, doc.WorkspaceID, doc.Kind, base)
	if err != nil {
		return "", err
	}
	if err := s.repo.WriteNumber(ctx, doc.ID, placeholder); err != nil {
		return "", err
	}
	return placeholder, nil
}

// SequencePreview is the non-consuming answer to "what number comes next".
type SequencePreview struct {
	WorkspaceID id.ID       `json:"workspaceId"`
	Kind        entity.Kind `json:"kind"`
	Number      string      `json:"number"`
	Strategy    Strategy    `json:"strategy"`
}

// Preview reports the next official number without consuming anything.
// Under the scan strategy this is exact until the next allocation; under
// the counter strategy concurrent allocations may step past it.
func (s *Service) Preview(ctx context.Context, workspaceID id.ID, kind entity.Kind) (*SequencePreview, error) {
	if id.IsNil(workspaceID) {
		return nil, apperror.NewValidation("workspace is required").WithDetail("field", "workspaceId")
	}
	if !kind.Valid() {
		return nil, apperror.NewValidation("unknown document kind").WithDetail("kind", string(kind))
	}
	num, err := s.allocator.Preview(ctx, workspaceID, kind)
	if err != nil {
		return nil, err
	}
	return &SequencePreview{
		WorkspaceID: workspaceID,
		Kind:        kind,
		Number:      num,
		Strategy:    s.allocator.Strategy(),
	}, nil
}

// ReleaseOnDelete journals the sequence effect of deleting a document: a
// PENDING document frees its bare number (the scan strategy will reuse it),
// drafts free nothing. Runs inside the caller's delete transaction.
func (s *Service) ReleaseOnDelete(ctx context.Context, doc *entity.Document) error {
	if doc.Status != entity.StatusPending || !number.IsBare(doc.Number) {
		return nil
	}
	ev := entity.NewSequenceEvent(doc.WorkspaceID, doc.Kind, doc.ID,
		entity.SequenceEventReleased, "", doc.Number, appctx.GetUserID(ctx))
	return s.events.Record(ctx, ev)
}
