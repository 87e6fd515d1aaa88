// Package security provides authorization and access control.
package security

import (
	"context"
	"fmt"

	"numerus/internal/core/apperror"
	appctx "numerus/internal/core/context"
)

// Permission defines available permissions in the system.
type Permission string

const (
	// CRUD permissions
	PermissionRead   Permission = "read"
	PermissionCreate Permission = "create"
	PermissionUpdate Permission = "update"
	PermissionDelete Permission = "delete"

	// Document-specific permissions
	PermissionTransition Permission = "transition"
	PermissionConvert    Permission = "convert"

	// Admin permissions
	PermissionAdmin  Permission = "admin"
	PermissionRepair Permission = "repair"
	PermissionAudit  Permission = "audit"
)

// Role defines a set of permissions.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleManager    Role = "manager"
	RoleViewer     Role = "viewer"
)

// AccessScope defines the boundaries of data visibility for current request.
// In Database-per-Tenant architecture this scope is used for authorization
// decisions (workspace access) and for consistent logging/audit context.
type AccessScope struct {
	// TenantID is the current tenant (from request/JWT).
	TenantID string

	// UserID is the authenticated user
	UserID string

	// IsAdmin bypasses workspace filtering
	IsAdmin bool

	// AllowedWorkspaceIDs limits access to specific workspaces
	// Empty = no access (unless IsAdmin)
	AllowedWorkspaceIDs []string

	// Permissions available to user
	Permissions map[string][]Permission
}

// NewAccessScope creates AccessScope from context.
func NewAccessScope(ctx context.Context) *AccessScope {
	user := appctx.GetUser(ctx)
	if user == nil {
		return &AccessScope{}
	}

	return &AccessScope{
		TenantID:            user.TenantID,
		UserID:              user.UserID,
		IsAdmin:             user.IsAdmin,
		AllowedWorkspaceIDs: user.WorkspaceIDs,
	}
}

// CanAccessWorkspace checks if user can access workspace.
func (s *AccessScope) CanAccessWorkspace(workspaceID string) bool {
	if s.IsAdmin {
		return true
	}
	for _, id := range s.AllowedWorkspaceIDs {
		if id == workspaceID {
			return true
		}
	}
	return false
}

// HasPermission checks if user has permission on entity.
func (s *AccessScope) HasPermission(entity string, perm Permission) bool {
	if s.IsAdmin {
		return true
	}
	if perms, ok := s.Permissions[entity]; ok {
		for _, p := range perms {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// RequirePermission returns error if permission is missing.
func (s *AccessScope) RequirePermission(entity string, perm Permission) error {
	if !s.HasPermission(entity, perm) {
		return apperror.NewForbidden(
			fmt.Sprintf("permission %s on %s required", perm, entity),
		).WithDetail("entity", entity).WithDetail("permission", perm)
	}
	return nil
}

// FilterWorkspaceIDs returns intersection of requested and allowed workspace IDs.
// Used to safely filter queries by workspace.
func (s *AccessScope) FilterWorkspaceIDs(requested []string) []string {
	if s.IsAdmin {
		return requested
	}

	if len(requested) == 0 {
		return s.AllowedWorkspaceIDs
	}

	allowed := make(map[string]bool, len(s.AllowedWorkspaceIDs))
	for _, id := range s.AllowedWorkspaceIDs {
		allowed[id] = true
	}

	var result []string
	for _, id := range requested {
		if allowed[id] {
			result = append(result, id)
		}
	}
	return result
}

// --- Context-based scope access ---

type scopeKey struct{}

// WithScope adds AccessScope to context.
func WithScope(ctx context.Context, scope *AccessScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// GetScope returns AccessScope from context.
func GetScope(ctx context.Context) *AccessScope {
	if v, ok := ctx.Value(scopeKey{}).(*AccessScope); ok {
		return v
	}
	return NewAccessScope(ctx)
}
