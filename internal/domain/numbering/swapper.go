package numbering

import (
	"context"

	"numerus/internal/core/apperror"
	appctx "numerus/internal/core/context"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
	"numerus/pkg/logger"
)

// Swapper assigns a target bare number to a transitioning document,
// resolving collisions with a draft that informally holds it.
//
// A draft holder is moved aside in three phases: holder onto a transient
// TEMP value (frees the contested string), transitioner through its own
// TEMP value onto the target, holder restored as a placeholder based on the
// target. The intermediate TEMP writes keep every document numbered at each
// step, which is what the repair sweep keys on when a swap is found torn.
// All phases run inside the caller's transaction under the scope lock, so a
// TEMP value never survives a committed request.
type Swapper struct {
	repo    Repository
	scanner *Scanner
	issuer  *Issuer
	events  EventRecorder
}

// NewSwapper wires the swap protocol over the engine's collaborators.
func NewSwapper(repo Repository, scanner *Scanner, issuer *Issuer, events EventRecorder) *Swapper {
	return &Swapper{repo: repo, scanner: scanner, issuer: issuer, events: events}
}

// Assignment reports how a number landed on the transitioning document.
type Assignment struct {
	// Number is the final bare number the document holds.
	Number string

	// Swapped is true when a draft holder was moved to a placeholder.
	Swapped bool

	// Rescanned is true when the requested target was abandoned because an
	// official document already held it and a fresh scan was used instead.
	Rescanned bool
}

// ResolveAndAssign gives documentID the target bare number, or a freshly
// scanned one if an official document turns out to hold the target.
//
// Manual requests never silently rename: an official holder surfaces as
// DUPLICATE_DOCUMENT_NUMBER so the user can pick another value.
func (s *Swapper) ResolveAndAssign(ctx context.Context, documentID, workspaceID id.ID, kind entity.Kind, target string, manual bool) (Assignment, error) {
	return s.resolve(ctx, documentID, workspaceID, kind, target, manual, 1)
}

func (s *Swapper) resolve(ctx context.Context, documentID, workspaceID id.ID, kind entity.Kind, target string, manual bool, rescansLeft int) (Assignment, error) {
	holder, err := s.repo.FindHolder(ctx, workspaceID, kind, target, documentID)
	if err != nil {
		return Assignment{}, err
	}

	switch {
	case holder == nil:
		if err := s.repo.WriteNumber(ctx, documentID, target); err != nil {
			return Assignment{}, err
		}
		return Assignment{Number: target, Rescanned: rescansLeft == 0}, nil

	case holder.Status == entity.StatusDraft:
		if err := s.swap(ctx, documentID, workspaceID, kind, target, holder); err != nil {
			return Assignment{}, err
		}
		return Assignment{Number: target, Swapped: true, Rescanned: rescansLeft == 0}, nil

	default:
		// An official document already holds the target. Never swap an
		// official number from under its owner.
		if manual {
			return Assignment{}, apperror.NewDuplicateNumber(string(kind), target)
		}
		if rescansLeft <= 0 {
			return Assignment{}, apperror.NewInconsistentState("document", holder.DocumentID.String(),
				"official number collision persisted after rescan").
				WithDetail("number", target).
				WithDetail("kind", string(kind))
		}
		next, err := s.scanner.NextOfficial(ctx, workspaceID, kind)
		if err != nil {
			return Assignment{}, err
		}
		fresh := number.Format(next)
		logger.Warn(ctx, "official number collision, rescanning",
			"document_id", documentID,
			"requested", target,
			"fresh", fresh,
			"holder_id", holder.DocumentID,
			"holder_status", holder.Status)
		return s.resolve(ctx, documentID, workspaceID, kind, fresh, false, rescansLeft-1)
	}
}

// swap performs the three-phase rename. The unique index on
// (workspace_id, kind, number) stays satisfied after every statement.
func (s *Swapper) swap(ctx context.Context, documentID, workspaceID id.ID, kind entity.Kind, target string, holder *Holder) error {
	actor := appctx.GetUserID(ctx)

	// Phase 1: journal intent, then move the holder onto a transient value.
	holderTemp := number.NewTempToken()
	started := entity.NewSequenceEvent(workspaceID, kind, holder.DocumentID,
		entity.SequenceEventSwapStarted, holderTemp, holder.Number, actor)
	if err := s.events.Record(ctx, started); err != nil {
		return err
	}
	if err := s.repo.WriteNumber(ctx, holder.DocumentID, holderTemp); err != nil {
		return err
	}

	// Phase 2: walk the transitioner through its own transient value onto
	// the target, so it is never caught without a persisted number.
	if err := s.repo.WriteNumber(ctx, documentID, number.NewTempToken()); err != nil {
		return err
	}
	if err := s.repo.WriteNumber(ctx, documentID, target); err != nil {
		return err
	}

	// Phase 3: restore the holder as a placeholder on the same base.
	base, err := number.Parse(target)
	if err != nil {
		return apperror.NewInconsistentState("document", documentID.String(), "swap target is not a bare number").
			WithDetail("number", target)
	}
	placeholder, err := s.issuer.PlaceholderFor(ctx, workspaceID, kind, base)
	if err != nil {
		return err
	}
	if err := s.repo.WriteNumber(ctx, holder.DocumentID, placeholder); err != nil {
		return err
	}

	completed := entity.NewSequenceEvent(workspaceID, kind, holder.DocumentID,
		entity.SequenceEventSwapCompleted, placeholder, holder.Number, actor)
	return s.events.Record(ctx, completed)
}
