// Package numbering implements the document numbering and status-transition
// engine: scanning for the next official number, issuing draft placeholders,
// swapping contested numbers, and the per-kind transition state machine.
package numbering

import (
	"context"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/number"
)

// Repository defines the persistence operations the engine consumes.
// Implemented by infrastructure/storage/postgres/numbering_repo.
type Repository interface {
	// FindNumbers returns numbers of live documents in scope matching shape.
	// Shape selects the owning status set: bare numbers are read from
	// non-DRAFT documents, placeholders from DRAFT documents, TEMP values
	// from any status.
	FindNumbers(ctx context.Context, workspaceID id.ID, kind entity.Kind, shape number.Shape) ([]string, error)

	// NumberExists reports whether the exact number string is held by any
	// live document in scope.
	NumberExists(ctx context.Context, workspaceID id.ID, kind entity.Kind, num string) (bool, error)

	// HasOfficialDocuments reports whether any non-DRAFT document exists in
	// scope. Drives the bootstrap rule for manual numbers.
	HasOfficialDocuments(ctx context.Context, workspaceID id.ID, kind entity.Kind) (bool, error)

	// FindHolder locates the document (excluding excludeID) holding bare as
	// its exact number, or as the base of its "<bare>-DRAFT" placeholder.
	// An exact bare holder wins when both exist. Returns nil when no holder.
	FindHolder(ctx context.Context, workspaceID id.ID, kind entity.Kind, bare string, excludeID id.ID) (*Holder, error)

	// WriteNumber persists a number on a document. A unique-constraint
	// conflict surfaces as a CodeDuplicate AppError so callers can retry.
	WriteNumber(ctx context.Context, documentID id.ID, num string) error

	// AtomicIncrement bumps the per-scope counter row and returns the new
	// value. Used by the counter allocation strategy.
	AtomicIncrement(ctx context.Context, scopeKey string) (int64, error)

	// Peek reads the counter without consuming; 0 when the scope has no row.
	Peek(ctx context.Context, scopeKey string) (int64, error)

	// LockScope takes the per-scope advisory lock for the duration of the
	// current transaction. Must be called inside a transaction.
	LockScope(ctx context.Context, workspaceID id.ID, kind entity.Kind) error

	// FindTempNumbers returns live documents resting with TEMP-shaped
	// numbers, optionally restricted to one workspace. Feeds the sweeper.
	FindTempNumbers(ctx context.Context, workspaceID *id.ID) ([]TempNumber, error)

	// FindSwapOrigin returns the previous number journaled by the most
	// recent SWAP_STARTED line that moved documentID onto temp. Empty when
	// the journal has no matching line (imported or hand-edited data).
	FindSwapOrigin(ctx context.Context, documentID id.ID, temp string) (string, error)
}

// Holder describes a document occupying a contested number.
type Holder struct {
	DocumentID id.ID
	Number     string
	Status     entity.Status
}

// TempNumber is a document found resting mid-swap.
type TempNumber struct {
	DocumentID  id.ID
	WorkspaceID id.ID
	Kind        entity.Kind
	Number      string
	Status      entity.Status
}

// DocumentStore is the slice of document persistence the engine needs to
// drive transitions. Implemented by the document repository.
type DocumentStore interface {
	GetByID(ctx context.Context, documentID id.ID) (*entity.Document, error)

	// GetForUpdate loads the document with a row lock.
	GetForUpdate(ctx context.Context, documentID id.ID) (*entity.Document, error)

	// SetStatus persists a status change (bumps version and updated_at).
	SetStatus(ctx context.Context, documentID id.ID, status entity.Status) error
}

// EventRecorder appends numbering movements to the sequence register.
// Implemented by registers/sequence.Service; writes join the caller's
// transaction.
type EventRecorder interface {
	Record(ctx context.Context, event entity.SequenceEvent) error
}

// ConversionTracker reports derived-artifact locks: a document already
// converted into another one is frozen against all transitions.
type ConversionTracker interface {
	LockedBy(ctx context.Context, documentID id.ID) (id.ID, bool, error)
}

// AuditTrail records entity change snapshots.
type AuditTrail interface {
	RecordChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Outbox event types emitted by the engine.
const (
	TopicNumberAllocated = "document.number_allocated"
	TopicStatusChanged   = "document.status_changed"
	TopicNumberRepaired  = "document.number_repaired"
)

// MessagePublisher writes domain events to the transactional outbox.
type MessagePublisher interface {
	PublishEvent(ctx context.Context, aggregateType string, aggregateID id.ID, eventType string, payload any) error
}

// NumberAllocatedPayload is the outbox payload for TopicNumberAllocated.
type NumberAllocatedPayload struct {
	DocumentID     id.ID       `json:"documentId"`
	WorkspaceID    id.ID       `json:"workspaceId"`
	Kind           entity.Kind `json:"kind"`
	Number         string      `json:"number"`
	PreviousNumber string      `json:"previousNumber,omitempty"`
	Manual         bool        `json:"manual,omitempty"`
}

// StatusChangedPayload is the outbox payload for TopicStatusChanged.
type StatusChangedPayload struct {
	DocumentID  id.ID         `json:"documentId"`
	WorkspaceID id.ID         `json:"workspaceId"`
	Kind        entity.Kind   `json:"kind"`
	From        entity.Status `json:"from"`
	To          entity.Status `json:"to"`
	Number      string        `json:"number"`
}

// NumberRepairedPayload is the outbox payload for TopicNumberRepaired.
type NumberRepairedPayload struct {
	DocumentID     id.ID       `json:"documentId"`
	WorkspaceID    id.ID       `json:"workspaceId"`
	Kind           entity.Kind `json:"kind"`
	Number         string      `json:"number"`
	PreviousNumber string      `json:"previousNumber"`
}
