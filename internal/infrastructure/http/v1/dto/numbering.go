package dto

// --- Numbering engine DTOs ---
// Responses reuse the engine's own result types (numbering.SequencePreview,
// numbering.Allocation, numbering.SweepReport); only requests live here.

// AllocateNumberRequest drives POST /numbering/allocate: number issuance for
// callers that manage document rows themselves (imports, external resolvers).
type AllocateNumberRequest struct {
	WorkspaceID string `json:"workspaceId" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
	Prefix      string `json:"prefix,omitempty"`

	// TargetStatus defaults to DRAFT (placeholder issuance). An official
	// status requires documentId and runs the full transition.
	TargetStatus string `json:"targetStatus,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`

	// CurrentStatus is the caller's view of the document status; empty
	// means the document does not exist yet.
	CurrentStatus string `json:"currentStatus,omitempty"`

	ManualNumber string `json:"manualNumber,omitempty"`
}

// RepairRequest scopes POST /numbering/repair; empty workspaceId sweeps the
// whole tenant.
type RepairRequest struct {
	WorkspaceID string `json:"workspaceId,omitempty"`
}
