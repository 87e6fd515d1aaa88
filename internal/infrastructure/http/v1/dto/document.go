package dto

import (
	"time"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/types"
)

// --- Request DTOs ---

// CreateDocumentRequest represents a request to create a document.
// Documents are always created in DRAFT; manualNumber reserves a bare
// number for the eventual official transition (workspace switch permitting).
type CreateDocumentRequest struct {
	WorkspaceID  string            `json:"workspaceId" binding:"required"`
	Kind         string            `json:"kind" binding:"required"`
	Prefix       string            `json:"prefix,omitempty"`
	Date         *time.Time        `json:"date,omitempty"`
	Total        types.Money       `json:"total"`
	Currency     string            `json:"currency,omitempty"`
	Comment      string            `json:"comment,omitempty"`
	ManualNumber string            `json:"manualNumber,omitempty"`
	Attributes   entity.Attributes `json:"attributes,omitempty"`
}

// ToEntity converts request to domain entity. Malformed IDs become nil and
// fail domain validation with a proper error.
func (r *CreateDocumentRequest) ToEntity() *entity.Document {
	workspaceID, _ := id.Parse(r.WorkspaceID)

	doc := entity.NewDocument(workspaceID, entity.Kind(r.Kind))
	doc.Prefix = r.Prefix
	if r.Date != nil {
		doc.Date = *r.Date
	}
	doc.Total = r.Total
	if r.Currency != "" {
		doc.Currency = r.Currency
	}
	doc.Comment = r.Comment
	if r.Attributes != nil {
		doc.Attributes = r.Attributes
	}

	return &doc
}

// UpdateDocumentRequest represents a request to update a document.
// Number, status, workspace and kind are not updatable: number and status
// move only through transitions, the other two never.
type UpdateDocumentRequest struct {
	Prefix     *string           `json:"prefix,omitempty"`
	Date       *time.Time        `json:"date,omitempty"`
	Total      *types.Money      `json:"total,omitempty"`
	Currency   *string           `json:"currency,omitempty"`
	Comment    *string           `json:"comment,omitempty"`
	Attributes entity.Attributes `json:"attributes,omitempty"`

	// Version carries the client's optimistic-lock token; when absent the
	// freshly loaded version is used.
	Version *int `json:"version,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateDocumentRequest) ApplyTo(doc *entity.Document) {
	if r.Prefix != nil {
		doc.Prefix = *r.Prefix
	}
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.Total != nil {
		doc.Total = *r.Total
	}
	if r.Currency != nil {
		doc.Currency = *r.Currency
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}
	if r.Attributes != nil {
		doc.Attributes = r.Attributes
	}
	if r.Version != nil {
		doc.Version = *r.Version
	}
}

// TransitionDocumentRequest asks for a status change.
type TransitionDocumentRequest struct {
	To string `json:"to" binding:"required"`

	// From is the status the client believes the document is in; a
	// mismatch surfaces as CONCURRENT_MODIFICATION.
	From string `json:"from,omitempty"`

	// ManualNumber requests a specific bare number for official targets.
	ManualNumber string `json:"manualNumber,omitempty"`
}

// ConvertDocumentRequest asks to derive the follow-up document.
type ConvertDocumentRequest struct {
	TargetKind string `json:"targetKind" binding:"required"`
}

// --- Response DTOs ---

// DocumentResponse represents a document in API responses.
type DocumentResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Kind        string `json:"kind"`

	Number string `json:"number"`
	Prefix string `json:"prefix,omitempty"`
	Status string `json:"status"`

	Date     time.Time   `json:"date"`
	Total    types.Money `json:"total"`
	Currency string      `json:"currency,omitempty"`
	Comment  string      `json:"comment,omitempty"`

	DeletionMark bool              `json:"deletionMark,omitempty"`
	Version      int               `json:"version"`
	Attributes   entity.Attributes `json:"attributes,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	CreatedBy    string            `json:"createdBy,omitempty"`
	UpdatedBy    string            `json:"updatedBy,omitempty"`
}

// FromDocument converts domain entity to response DTO.
func FromDocument(doc *entity.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:           doc.ID.String(),
		WorkspaceID:  doc.WorkspaceID.String(),
		Kind:         string(doc.Kind),
		Number:       doc.Number,
		Prefix:       doc.Prefix,
		Status:       string(doc.Status),
		Date:         doc.Date,
		Total:        doc.Total,
		Currency:     doc.Currency,
		Comment:      doc.Comment,
		DeletionMark: doc.DeletionMark,
		Version:      doc.Version,
		Attributes:   doc.Attributes,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CreatedBy:    doc.CreatedBy,
		UpdatedBy:    doc.UpdatedBy,
	}
}

// DocumentListResponse represents a page of documents.
type DocumentListResponse struct {
	Items      []*DocumentResponse `json:"items"`
	TotalCount int                 `json:"totalCount"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}
