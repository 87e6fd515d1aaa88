package dto

import (
	"time"

	"numerus/internal/core/entity"
)

// --- Sequence register DTOs ---

// SequenceEventResponse represents one journal line in API responses.
type SequenceEventResponse struct {
	LineID      string `json:"lineId"`
	WorkspaceID string `json:"workspaceId"`
	Kind        string `json:"kind"`
	DocumentID  string `json:"documentId"`

	Event          string `json:"event"`
	Number         string `json:"number"`
	PreviousNumber string `json:"previousNumber,omitempty"`
	Actor          string `json:"actor,omitempty"`

	RecordedAt time.Time `json:"recordedAt"`
}

// FromSequenceEvent converts a journal line to response DTO.
func FromSequenceEvent(e entity.SequenceEvent) SequenceEventResponse {
	return SequenceEventResponse{
		LineID:         e.LineID.String(),
		WorkspaceID:    e.WorkspaceID.String(),
		Kind:           string(e.Kind),
		DocumentID:     e.DocumentID.String(),
		Event:          string(e.Event),
		Number:         e.Number,
		PreviousNumber: e.PreviousNumber,
		Actor:          e.Actor,
		RecordedAt:     e.RecordedAt,
	}
}

// SequenceEventListResponse is a page of journal lines.
type SequenceEventListResponse struct {
	Items      []SequenceEventResponse `json:"items"`
	TotalCount int                     `json:"totalCount"`
}

// SequenceBalanceResponse is the derived state of one scope.
type SequenceBalanceResponse struct {
	WorkspaceID string `json:"workspaceId"`
	Kind        string `json:"kind"`

	MaxNumber     int64 `json:"maxNumber"`
	OfficialCount int64 `json:"officialCount"`
	DraftCount    int64 `json:"draftCount"`
	ReleasedCount int64 `json:"releasedCount"`
}

// FromSequenceBalance converts a balance row to response DTO.
func FromSequenceBalance(b entity.SequenceBalance) SequenceBalanceResponse {
	return SequenceBalanceResponse{
		WorkspaceID:   b.WorkspaceID.String(),
		Kind:          string(b.Kind),
		MaxNumber:     b.MaxNumber,
		OfficialCount: b.OfficialCount,
		DraftCount:    b.DraftCount,
		ReleasedCount: b.ReleasedCount,
	}
}

// SequenceBalanceListResponse lists scope balances for a workspace.
type SequenceBalanceListResponse struct {
	Items []SequenceBalanceResponse `json:"items"`
}
