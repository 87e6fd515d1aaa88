// Package audit provides audit-field enrichment for domain entities.
package audit

import (
	"context"

	"numerus/internal/core/security"
)

// EnrichCreatedByDirect stamps both actor fields from the context user.
// Registered as a BeforeCreate hook. No-op when no user is in context
// (worker and seed paths).
func EnrichCreatedByDirect(ctx context.Context, createdBy, updatedBy *string) {
	userID := security.GetUserID(ctx)
	if userID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = userID
		*updatedBy = userID
	}
}

// EnrichUpdatedByDirect stamps only UpdatedBy. Registered as a BeforeUpdate hook.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	userID := security.GetUserID(ctx)
	if userID != "" && updatedBy != nil {
		*updatedBy = userID
	}
}
