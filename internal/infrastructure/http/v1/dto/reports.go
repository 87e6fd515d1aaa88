package dto

import (
	"time"

	"numerus/internal/core/types"
	"numerus/internal/domain/reports"
)

// --- Document Journal ---

// DocumentJournalRequest represents request for document journal.
type DocumentJournalRequest struct {
	FromDate       *string  `form:"fromDate"`
	ToDate         *string  `form:"toDate"`
	WorkspaceIDs   []string `form:"workspaceId"`
	Kinds          []string `form:"kind"`
	Statuses       []string `form:"status"`
	NumberContains string   `form:"number"`
	IncludeDeleted bool     `form:"includeDeleted"`
	SortBy         string   `form:"sortBy"`
	SortOrder      string   `form:"sortOrder"`
	Limit          int      `form:"limit"`
	Offset         int      `form:"offset"`
}

// DocumentJournalResponse represents document journal response.
type DocumentJournalResponse struct {
	Items      []DocumentJournalItemResponse `json:"items"`
	TotalCount int                           `json:"totalCount"`
	Limit      int                           `json:"limit"`
	Offset     int                           `json:"offset"`
	Summary    []KindSummaryResponse         `json:"summary,omitempty"`
}

// DocumentJournalItemResponse represents a document in journal.
type DocumentJournalItemResponse struct {
	ID            string      `json:"id"`
	WorkspaceID   string      `json:"workspaceId"`
	WorkspaceName string      `json:"workspaceName,omitempty"`
	CompanyName   string      `json:"companyName,omitempty"`
	Kind          string      `json:"kind"`
	Number        string      `json:"number"`
	Status        string      `json:"status"`
	Prefix        string      `json:"prefix,omitempty"`
	Date          string      `json:"date"`
	Total         types.Money `json:"total"`
	Currency      string      `json:"currency,omitempty"`
	Comment       string      `json:"comment,omitempty"`
	DeletionMark  bool        `json:"deletionMark,omitempty"`
	CreatedAt     string      `json:"createdAt"`
	UpdatedAt     string      `json:"updatedAt"`
}

// KindSummaryResponse represents summary by document kind.
type KindSummaryResponse struct {
	Kind          string      `json:"kind"`
	Count         int         `json:"count"`
	DraftCount    int         `json:"draftCount"`
	OfficialCount int         `json:"officialCount"`
	TotalAmount   types.Money `json:"totalAmount"`
}

// FromDocumentJournal converts domain journal to response DTO.
func FromDocumentJournal(j *reports.DocumentJournal) *DocumentJournalResponse {
	resp := &DocumentJournalResponse{
		Items:      make([]DocumentJournalItemResponse, len(j.Items)),
		TotalCount: j.TotalCount,
		Limit:      j.Limit,
		Offset:     j.Offset,
	}

	for i, item := range j.Items {
		resp.Items[i] = DocumentJournalItemResponse{
			ID:            item.ID.String(),
			WorkspaceID:   item.WorkspaceID.String(),
			WorkspaceName: item.WorkspaceName,
			CompanyName:   item.CompanyName,
			Kind:          string(item.Kind),
			Number:        item.Number,
			Status:        string(item.Status),
			Prefix:        item.Prefix,
			Date:          item.Date.Format(time.RFC3339),
			Total:         item.Total,
			Currency:      item.Currency,
			Comment:       item.Comment,
			DeletionMark:  item.DeletionMark,
			CreatedAt:     item.CreatedAt.Format(time.RFC3339),
			UpdatedAt:     item.UpdatedAt.Format(time.RFC3339),
		}
	}

	if j.Summary != nil {
		resp.Summary = make([]KindSummaryResponse, len(j.Summary))
		for i, s := range j.Summary {
			resp.Summary[i] = KindSummaryResponse{
				Kind:          string(s.Kind),
				Count:         s.Count,
				DraftCount:    s.DraftCount,
				OfficialCount: s.OfficialCount,
				TotalAmount:   s.TotalAmount,
			}
		}
	}

	return resp
}

// --- Numbering Gaps ---

// NumberingGapsRequest represents request for the numbering gaps report.
type NumberingGapsRequest struct {
	WorkspaceID string `form:"workspaceId" binding:"required"`
	Kind        string `form:"kind" binding:"required"`
	MaxGaps     int    `form:"maxGaps"`
}

// NumberingGapResponse is one missing range, inclusive.
type NumberingGapResponse struct {
	From    int64 `json:"from"`
	To      int64 `json:"to"`
	Missing int64 `json:"missing"`
}

// NumberingGapsResponse represents the gaps report.
type NumberingGapsResponse struct {
	WorkspaceID  string                 `json:"workspaceId"`
	Kind         string                 `json:"kind"`
	MaxAssigned  int64                  `json:"maxAssigned"`
	CounterValue int64                  `json:"counterValue"`
	Gaps         []NumberingGapResponse `json:"gaps"`
	TotalMissing int64                  `json:"totalMissing"`
	Truncated    bool                   `json:"truncated,omitempty"`
}

// FromNumberingGaps converts the domain report to response DTO.
func FromNumberingGaps(r *reports.NumberingGapsReport) *NumberingGapsResponse {
	resp := &NumberingGapsResponse{
		WorkspaceID:  r.WorkspaceID.String(),
		Kind:         string(r.Kind),
		MaxAssigned:  r.MaxAssigned,
		CounterValue: r.CounterValue,
		Gaps:         make([]NumberingGapResponse, len(r.Gaps)),
		TotalMissing: r.TotalMissing,
		Truncated:    r.Truncated,
	}

	for i, g := range r.Gaps {
		resp.Gaps[i] = NumberingGapResponse{
			From:    g.From,
			To:      g.To,
			Missing: g.Missing(),
		}
	}

	return resp
}
