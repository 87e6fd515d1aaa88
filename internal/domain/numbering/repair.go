package numbering

import (
	"context"

	"numerus/internal/core/apperror"
	appctx "numerus/internal/core/context"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
	"numerus/internal/core/tenant"
	"numerus/internal/core/tx"
	"numerus/pkg/logger"
)

// Repairer resolves documents found resting with a TEMP number. Swaps run
// inside one transaction, so a committed request never leaves TEMP behind;
// what the sweep actually meets is imported data, hand-edited rows, or a
// torn swap from a system that predates the transactional protocol. Each
// finding is INCONSISTENT_STATE_DETECTED: logged, journaled and repaired,
// never silently ignored.
type Repairer struct {
	repo      Repository
	store     DocumentStore
	events    EventRecorder
	outbox    MessagePublisher
	allocator Allocator
	issuer    *Issuer
	swapper   *Swapper
	txManager tx.Manager
}

// NewRepairer builds the sweep over the engine's collaborators.
// Outbox is optional; TxManager falls back to context when nil.
func NewRepairer(cfg Config) (*Repairer, error) {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyScan
	}
	alloc, err := NewAllocator(strategy, cfg.Repository)
	if err != nil {
		return nil, err
	}
	scanner := NewScanner(cfg.Repository)
	issuer := NewIssuer(cfg.Repository, alloc)
	return &Repairer{
		repo:      cfg.Repository,
		store:     cfg.Documents,
		events:    cfg.Events,
		outbox:    cfg.Outbox,
		allocator: alloc,
		issuer:    issuer,
		swapper:   NewSwapper(cfg.Repository, scanner, issuer, cfg.Events),
		txManager: cfg.TxManager,
	}, nil
}

// SweepReport summarizes one repair pass.
type SweepReport struct {
	Found    int             `json:"found"`
	Repaired int             `json:"repaired"`
	Failed   int             `json:"failed"`
	Details  []RepairedEntry `json:"details,omitempty"`
}

// RepairedEntry describes one resolved document.
type RepairedEntry struct {
	DocumentID  id.ID         `json:"documentId"`
	WorkspaceID id.ID         `json:"workspaceId"`
	Kind        entity.Kind   `json:"kind"`
	Status      entity.Status `json:"status"`
	From        string        `json:"from"`
	To          string        `json:"to"`
}

// Sweep finds and repairs every document resting with a TEMP number,
// optionally restricted to one workspace. Each document is repaired in its
// own transaction under the scope lock, so one stubborn row does not block
// the rest of the pass. Idempotent: a second pass over a repaired set finds
// nothing.
func (r *Repairer) Sweep(ctx context.Context, workspaceID *id.ID) (*SweepReport, error) {
	stuck, err := r.repo.FindTempNumbers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Found: len(stuck)}
	for _, t := range stuck {
		entry, err := r.repairOne(ctx, t)
		if err != nil {
			report.Failed++
			logger.Error(ctx, "number repair failed",
				"document_id", t.DocumentID,
				"number", t.Number,
				"error", err)
			continue
		}
		report.Repaired++
		report.Details = append(report.Details, *entry)
	}

	if report.Found > 0 {
		logger.Warn(ctx, "temp number sweep",
			"found", report.Found,
			"repaired", report.Repaired,
			"failed", report.Failed)
	}
	return report, nil
}

func (r *Repairer) repairOne(ctx context.Context, t TempNumber) (*RepairedEntry, error) {
	txm := r.txManager
	if txm == nil {
		var err error
		txm, err = tenant.GetTxManager(ctx)
		if err != nil {
			return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
		}
	}

	var entry *RepairedEntry
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.repo.LockScope(ctx, t.WorkspaceID, t.Kind); err != nil {
			return err
		}
		doc, err := r.store.GetForUpdate(ctx, t.DocumentID)
		if err != nil {
			return err
		}
		// Someone else may have resolved it between the scan and the lock.
		if !number.IsTemp(doc.Number) {
			entry = &RepairedEntry{
				DocumentID:  doc.ID,
				WorkspaceID: doc.WorkspaceID,
				Kind:        doc.Kind,
				Status:      doc.Status,
				From:        t.Number,
				To:          doc.Number,
			}
			return nil
		}

		repaired, err := r.resolve(ctx, doc)
		if err != nil {
			return err
		}

		ev := entity.NewSequenceEvent(doc.WorkspaceID, doc.Kind, doc.ID,
			entity.SequenceEventRepaired, repaired, doc.Number, appctx.GetUserID(ctx))
		if err := r.events.Record(ctx, ev); err != nil {
			return err
		}
		if r.outbox != nil {
			payload := NumberRepairedPayload{
				DocumentID:     doc.ID,
				WorkspaceID:    doc.WorkspaceID,
				Kind:           doc.Kind,
				Number:         repaired,
				PreviousNumber: doc.Number,
			}
			if err := r.outbox.PublishEvent(ctx, "document", doc.ID, TopicNumberRepaired, payload); err != nil {
				return err
			}
		}

		entry = &RepairedEntry{
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Kind:        doc.Kind,
			Status:      doc.Status,
			From:        doc.Number,
			To:          repaired,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// resolve re-runs the swap protocol's detection for one stuck document.
//
// A DRAFT was a holder moved aside: it goes back to a placeholder, based on
// the number it held before the swap when the journal remembers it, on the
// next preview otherwise. An official document was the transitioner: it
// still needs a bare number, so allocation is re-run from scratch.
func (r *Repairer) resolve(ctx context.Context, doc *entity.Document) (string, error) {
	if doc.Status == entity.StatusDraft {
		base := int64(0)
		origin, err := r.repo.FindSwapOrigin(ctx, doc.ID, doc.Number)
		if err != nil {
			return "", err
		}
		if origin != "" {
			if b, ok := number.Base(origin); ok {
				base = b
			}
		}
		if base == 0 {
			preview, err := r.allocator.Preview(ctx, doc.WorkspaceID, doc.Kind)
			if err != nil {
				return "", err
			}
			if b, err := number.Parse(preview); err == nil {
				base = b
			} else {
				return "", apperror.NewInconsistentState("allocator", preview, "preview returned a non-bare number")
			}
		}
		placeholder, err := r.issuer.PlaceholderFor(ctx, doc.WorkspaceID, doc.Kind, base)
		if err != nil {
			return "", err
		}
		if err := r.repo.WriteNumber(ctx, doc.ID, placeholder); err != nil {
			return "", err
		}
		return placeholder, nil
	}

	target, err := r.allocator.Next(ctx, doc.WorkspaceID, doc.Kind)
	if err != nil {
		return "", err
	}
	asg, err := r.swapper.ResolveAndAssign(ctx, doc.ID, doc.WorkspaceID, doc.Kind, target, false)
	if err != nil {
		return "", err
	}
	return asg.Number, nil
}
