// Package reports provides read-only reporting over documents and the
// sequence register.
package reports

import (
	"time"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/types"
)

// --- Document Journal ---

// DocumentJournalFilter defines filter for the cross-kind document journal.
type DocumentJournalFilter struct {
	// Period (by business date)
	FromDate *time.Time
	ToDate   *time.Time

	// Filters
	WorkspaceIDs []id.ID
	Kinds        []entity.Kind
	Statuses     []entity.Status

	// Search by number fragment
	NumberContains string

	// Include soft-deleted rows
	IncludeDeleted bool

	// Sorting
	SortBy    string // "date", "number", "kind", "total"
	SortOrder string // "asc", "desc"

	// Pagination
	Limit  int
	Offset int
}

// DocumentJournalItem represents a document in the journal.
type DocumentJournalItem struct {
	ID          id.ID `json:"id"`
	WorkspaceID id.ID `json:"workspaceId"`

	// Workspace display fields resolved by join
	WorkspaceName string `json:"workspaceName,omitempty"`
	CompanyName   string `json:"companyName,omitempty"`

	Kind   entity.Kind   `json:"kind"`
	Number string        `json:"number"`
	Status entity.Status `json:"status"`
	Prefix string        `json:"prefix,omitempty"`

	Date     time.Time   `json:"date"`
	Total    types.Money `json:"total"`
	Currency string      `json:"currency"`

	Comment      string    `json:"comment,omitempty"`
	DeletionMark bool      `json:"deletionMark"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DocumentJournal represents the document journal result.
type DocumentJournal struct {
	Items      []DocumentJournalItem `json:"items"`
	TotalCount int                   `json:"totalCount"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`

	// Summary by kind
	Summary []KindSummary `json:"summary,omitempty"`
}

// KindSummary provides counts and totals by document kind.
type KindSummary struct {
	Kind          entity.Kind `json:"kind"`
	Count         int         `json:"count"`
	DraftCount    int         `json:"draftCount"`
	OfficialCount int         `json:"officialCount"`
	TotalAmount   types.Money `json:"totalAmount"`
}

// --- Numbering Gaps ---

// NumberingGapsFilter defines the scope for gap detection.
type NumberingGapsFilter struct {
	WorkspaceID id.ID
	Kind        entity.Kind

	// MaxGaps caps the number of reported ranges.
	MaxGaps int
}

// NumberingGap is a contiguous range of unused bare numbers, inclusive.
type NumberingGap struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Missing returns the count of numbers covered by the gap.
func (g NumberingGap) Missing() int64 {
	return g.To - g.From + 1
}

// NumberingGapsReport lists holes in the bare sequence of a scope:
// numbers below the maximum in use that no live document holds.
// Gaps come from deletions, manual assignment skipping ahead, and
// counter increments that were never written back.
type NumberingGapsReport struct {
	WorkspaceID id.ID       `json:"workspaceId"`
	Kind        entity.Kind `json:"kind"`

	// MaxAssigned is the highest bare number held by a live document.
	MaxAssigned int64 `json:"maxAssigned"`
	// CounterValue is the persisted counter position; zero when the
	// scope has no counter row (scanner strategy).
	CounterValue int64 `json:"counterValue"`

	Gaps         []NumberingGap `json:"gaps"`
	TotalMissing int64          `json:"totalMissing"`
	// Truncated is set when more ranges exist than MaxGaps allows.
	Truncated bool `json:"truncated,omitempty"`
}
