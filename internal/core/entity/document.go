package entity

import (
	"context"
	"time"

	"numerus/internal/core/apperror"
	"numerus/internal/core/id"
	"numerus/internal/core/types"
)

// Kind identifies the business document type.
// All kinds share one table and one Go type; kind is a sequencing dimension.
type Kind string

const (
	KindQuote      Kind = "QUOTE"
	KindInvoice    Kind = "INVOICE"
	KindCreditNote Kind = "CREDIT_NOTE"
)

// Kinds lists all supported document kinds.
func Kinds() []Kind {
	return []Kind{KindQuote, KindInvoice, KindCreditNote}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindQuote, KindInvoice, KindCreditNote:
		return true
	}
	return false
}

// ParseKind validates a kind string from the outside world.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", apperror.NewValidation("unknown document kind").
			WithDetail("kind", s)
	}
	return k, nil
}

// Status is the document lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// Statuses lists all lifecycle states.
func Statuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusCompleted, StatusCanceled}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Official reports whether documents in this status hold a sequence-consuming
// bare number. Drafts hold placeholders only.
func (s Status) Official() bool {
	return s.Valid() && s != StatusDraft
}

// ParseStatus validates a status string from the outside world.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", apperror.NewValidation("unknown document status").
			WithDetail("status", s)
	}
	return st, nil
}

// Document is a numbered business transaction (quote, invoice, credit note).
// Line items, VAT arithmetic and the like live in upstream services; the row
// carries an opaque total for journal display.
type Document struct {
	BaseDocument

	// WorkspaceID scopes numbering and uniqueness. Immutable after creation.
	WorkspaceID id.ID `db:"workspace_id" json:"workspaceId"`

	// Kind is the document type. Immutable after creation.
	Kind Kind `db:"kind" json:"kind"`

	// Number holds one of three shapes: bare official ("000042"),
	// draft placeholder ("000042-DRAFT" / "000042-<millis>"), or a
	// transient swap value ("TEMP-<token>") that must never rest.
	// Managed by the numbering engine; immutable through Update.
	Number string `db:"number" json:"number"`

	// Prefix is a display/filtering label (e.g. "2026-08-"). Not a
	// sequencing partition: documents with different prefixes share one
	// sequence per (workspace, kind).
	Prefix string `db:"prefix" json:"prefix,omitempty"`

	// Status is the lifecycle state. Changed only via Transition.
	Status Status `db:"status" json:"status"`

	// Date is the business date; gates the period-close policy.
	Date time.Time `db:"date" json:"date"`

	// Total is an opaque pass-through amount computed upstream.
	Total types.Money `db:"total" json:"total"`

	CurrencyAware

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a document in DRAFT. The number is assigned by the
// draft issuer before persisting.
func NewDocument(workspaceID id.ID, kind Kind) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		WorkspaceID:  workspaceID,
		Kind:         kind,
		Status:       StatusDraft,
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.WorkspaceID) {
		return apperror.NewValidation("workspace is required").
			WithDetail("field", "workspaceId")
	}
	if !d.Kind.Valid() {
		return apperror.NewValidation("unknown document kind").
			WithDetail("field", "kind").
			WithDetail("kind", string(d.Kind))
	}
	if !d.Status.Valid() {
		return apperror.NewValidation("unknown document status").
			WithDetail("field", "status").
			WithDetail("status", string(d.Status))
	}
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return d.ValidateCurrency(ctx)
}

// CanModify checks if document fields can still be edited.
// COMPLETED and CANCELED documents are frozen; amendments happen via a
// separate credit note, never by editing.
func (d *Document) CanModify() error {
	if d.Status.IsTerminal() {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"Cannot modify a document in a terminal status",
		).WithDetail("document_id", d.ID.String()).
			WithDetail("status", string(d.Status))
	}
	return nil
}

// CanDelete checks if the document may be (soft-)deleted.
func (d *Document) CanDelete() error {
	if d.Status.IsTerminal() {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"Cannot delete a document in a terminal status",
		).WithDetail("document_id", d.ID.String()).
			WithDetail("status", string(d.Status))
	}
	return nil
}

// HoldsOfficialNumber reports whether the document's number consumes the
// sequence: only non-DRAFT documents compete for bare numbers.
func (d *Document) HoldsOfficialNumber() bool {
	return d.Status.Official()
}

// FullNumber returns the display form: prefix concatenated with the stored
// number. The prefix never participates in uniqueness or scanning.
func (d *Document) FullNumber() string {
	return d.Prefix + d.Number
}

// IsBackdated checks if document date is in the past.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}
