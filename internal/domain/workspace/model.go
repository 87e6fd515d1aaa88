// Package workspace provides the Workspace catalog. A workspace is the
// sequencing scope of the platform: document numbers are unique and gapless
// per (workspace, kind), never across workspaces. A workspace also stands in
// for the issuing company: it carries the company name shown on documents
// plus the workspace's numbering feature flags.
package workspace

import (
	"context"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
)

// Workspace represents one numbering scope inside a tenant database.
type Workspace struct {
	entity.Catalog

	// CompanyName is the legal name printed on documents issued from this
	// workspace.
	CompanyName string `db:"company_name" json:"companyName"`

	// AllowManualNumbers permits user-supplied official numbers. The
	// bootstrap rule of the numbering engine still applies on top.
	AllowManualNumbers bool `db:"allow_manual_numbers" json:"allowManualNumbers"`

	// DraftPreviewEnabled exposes the next-number preview to draft editors.
	DraftPreviewEnabled bool `db:"draft_preview_enabled" json:"draftPreviewEnabled"`
}

// NewWorkspace creates a workspace with both numbering flags enabled.
func NewWorkspace(code, name, companyName string) *Workspace {
	return &Workspace{
		Catalog:             entity.NewCatalog(code, name),
		CompanyName:         companyName,
		AllowManualNumbers:  true,
		DraftPreviewEnabled: true,
	}
}

// Validate implements entity.Validatable interface.
func (w *Workspace) Validate(ctx context.Context) error {
	if err := w.Catalog.Validate(ctx); err != nil {
		return err
	}
	if w.CompanyName == "" {
		return apperror.NewValidation("company name is required").
			WithDetail("field", "companyName")
	}
	return nil
}
