package cache

import (
	"context"
	"sync"
	"time"

	"numerus/internal/core/id"
	"numerus/internal/core/tenant"
	"numerus/internal/domain/document"
	"numerus/internal/domain/workspace"
)

// DefaultWorkspaceTTL bounds how long a cached workspace row is served.
const DefaultWorkspaceTTL = 30 * time.Second

// WorkspaceCache decorates the workspace catalog with a short-lived
// per-entry cache. Document creation and number allocation read the
// workspace row on every call for its numbering settings; those settings
// change rarely enough that a brief staleness window is acceptable.
type WorkspaceCache struct {
	inner document.WorkspaceDirectory
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]wsEntry
}

type wsEntry struct {
	ws       workspace.Workspace
	loadedAt time.Time
}

// NewWorkspaceCache wraps inner with a TTL cache.
// ttl <= 0 falls back to DefaultWorkspaceTTL.
func NewWorkspaceCache(inner document.WorkspaceDirectory, ttl time.Duration) *WorkspaceCache {
	if ttl <= 0 {
		ttl = DefaultWorkspaceTTL
	}
	return &WorkspaceCache{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]wsEntry),
	}
}

// RequireLive returns the workspace when it exists and is not marked deleted.
// Hits are served from cache; misses and errors are not cached, so a
// just-created workspace is usable immediately.
func (c *WorkspaceCache) RequireLive(ctx context.Context, workspaceID id.ID) (*workspace.Workspace, error) {
	key := cacheKey(ctx, workspaceID)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && time.Since(entry.loadedAt) <= c.ttl {
		ws := entry.ws
		return &ws, nil
	}

	ws, err := c.inner.RequireLive(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = wsEntry{ws: *ws, loadedAt: time.Now()}
	c.mu.Unlock()

	return ws, nil
}

// Invalidate drops one workspace from the cache.
func (c *WorkspaceCache) Invalidate(ctx context.Context, workspaceID id.ID) {
	c.mu.Lock()
	delete(c.entries, cacheKey(ctx, workspaceID))
	c.mu.Unlock()
}

func cacheKey(ctx context.Context, workspaceID id.ID) string {
	return tenant.GetTenantID(ctx) + "/" + workspaceID.String()
}

// Ensure interface compliance at compile time.
var _ document.WorkspaceDirectory = (*WorkspaceCache)(nil)
