// Package entity provides core domain entities.
package entity

import (
	"time"

	"numerus/internal/core/id"
)

// SequenceEventType classifies numbering movements in the sequence register.
type SequenceEventType string

const (
	// SequenceEventAllocated - an official bare number was assigned
	SequenceEventAllocated SequenceEventType = "ALLOCATED"
	// SequenceEventReleased - a bare number was returned to the pool
	// (PENDING reverted to DRAFT, or a PENDING document was deleted)
	SequenceEventReleased SequenceEventType = "RELEASED"
	// SequenceEventSwapStarted - a draft holder is being moved off a
	// contested bare number; recorded before the TEMP phase
	SequenceEventSwapStarted SequenceEventType = "SWAP_STARTED"
	// SequenceEventSwapCompleted - the contested number reached its new owner
	SequenceEventSwapCompleted SequenceEventType = "SWAP_COMPLETED"
	// SequenceEventRepaired - the sweeper rewrote a TEMP-* leftover
	SequenceEventRepaired SequenceEventType = "REPAIRED"
	// SequenceEventManualAccepted - a user-supplied number was taken as-is
	SequenceEventManualAccepted SequenceEventType = "MANUAL_ACCEPTED"
)

// Valid reports whether t is a known event type.
func (t SequenceEventType) Valid() bool {
	switch t {
	case SequenceEventAllocated, SequenceEventReleased,
		SequenceEventSwapStarted, SequenceEventSwapCompleted,
		SequenceEventRepaired, SequenceEventManualAccepted:
		return true
	}
	return false
}

// SequenceEvent is one row of the append-only numbering journal.
// Events are immutable and written in the same transaction as the document
// mutation they describe, so the journal and the documents never disagree.
type SequenceEvent struct {
	// LineID is unique identifier for this journal line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// WorkspaceID + Kind identify the sequence scope the event belongs to
	WorkspaceID id.ID `db:"workspace_id" json:"workspaceId"`
	Kind        Kind  `db:"kind" json:"kind"`

	// DocumentID is the document whose number moved
	DocumentID id.ID `db:"document_id" json:"documentId"`

	// Event classifies the movement
	Event SequenceEventType `db:"event" json:"event"`

	// Number is the value after the movement
	Number string `db:"number" json:"number"`

	// PreviousNumber is the value before the movement (empty for first issue)
	PreviousNumber string `db:"previous_number" json:"previousNumber,omitempty"`

	// Actor is the user or system identity that caused the movement
	Actor string `db:"actor" json:"actor,omitempty"`

	// RecordedAt is when the movement was journaled
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

// NewSequenceEvent creates a journal line with generated LineID.
func NewSequenceEvent(
	workspaceID id.ID,
	kind Kind,
	documentID id.ID,
	event SequenceEventType,
	number, previousNumber, actor string,
) SequenceEvent {
	return SequenceEvent{
		LineID:         id.New(),
		WorkspaceID:    workspaceID,
		Kind:           kind,
		DocumentID:     documentID,
		Event:          event,
		Number:         number,
		PreviousNumber: previousNumber,
		Actor:          actor,
		RecordedAt:     time.Now().UTC(),
	}
}

// SequenceBalance is the current state of one sequence scope, derived from
// documents and the journal. Serves the balances endpoint and ops checks.
type SequenceBalance struct {
	// Dimensions
	WorkspaceID id.ID `db:"workspace_id" json:"workspaceId"`
	Kind        Kind  `db:"kind" json:"kind"`

	// MaxNumber is the highest bare number held by a non-DRAFT document
	// (0 when the scope has no official documents yet)
	MaxNumber int64 `db:"max_number" json:"maxNumber"`

	// Counts
	OfficialCount int64 `db:"official_count" json:"officialCount"`
	DraftCount    int64 `db:"draft_count" json:"draftCount"`
	ReleasedCount int64 `db:"released_count" json:"releasedCount"`
}
