package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numerus/internal/core/apperror"
	"numerus/internal/core/id"
	"numerus/internal/domain/workspace"
)

type fakeDirectory struct {
	calls int
	ws    map[id.ID]*workspace.Workspace
	err   error
}

func (f *fakeDirectory) RequireLive(_ context.Context, workspaceID id.ID) (*workspace.Workspace, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ws, ok := f.ws[workspaceID]
	if !ok {
		return nil, apperror.NewNotFound("workspace", workspaceID.String())
	}
	copied := *ws
	return &copied, nil
}

func newFakeDirectory(ws ...*workspace.Workspace) *fakeDirectory {
	m := make(map[id.ID]*workspace.Workspace, len(ws))
	for _, w := range ws {
		m[w.ID] = w
	}
	return &fakeDirectory{ws: m}
}

func TestWorkspaceCache_ServesFromCache(t *testing.T) {
	ws := workspace.NewWorkspace("MAIN", "Main Office", "Acme")
	inner := newFakeDirectory(ws)
	cache := NewWorkspaceCache(inner, time.Minute)

	ctx := tenantCtx("t1")

	got, err := cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)

	got, err = cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)

	assert.Equal(t, 1, inner.calls)
}

func TestWorkspaceCache_ErrorsAreNotCached(t *testing.T) {
	inner := newFakeDirectory()
	cache := NewWorkspaceCache(inner, time.Minute)

	ctx := tenantCtx("t1")
	missing := id.New()

	_, err := cache.RequireLive(ctx, missing)
	require.Error(t, err)
	_, err = cache.RequireLive(ctx, missing)
	require.Error(t, err)

	// Both lookups reached the catalog: a workspace created in between
	// would have been found on the second call.
	assert.Equal(t, 2, inner.calls)
}

func TestWorkspaceCache_TTLExpiry(t *testing.T) {
	ws := workspace.NewWorkspace("MAIN", "Main Office", "Acme")
	inner := newFakeDirectory(ws)
	cache := NewWorkspaceCache(inner, time.Nanosecond)

	ctx := tenantCtx("t1")

	_, err := cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestWorkspaceCache_Invalidate(t *testing.T) {
	ws := workspace.NewWorkspace("MAIN", "Main Office", "Acme")
	inner := newFakeDirectory(ws)
	cache := NewWorkspaceCache(inner, time.Minute)

	ctx := tenantCtx("t1")

	_, err := cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)

	cache.Invalidate(ctx, ws.ID)

	_, err = cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestWorkspaceCache_TenantsDoNotShareEntries(t *testing.T) {
	ws := workspace.NewWorkspace("MAIN", "Main Office", "Acme")
	inner := newFakeDirectory(ws)
	cache := NewWorkspaceCache(inner, time.Minute)

	_, err := cache.RequireLive(tenantCtx("t1"), ws.ID)
	require.NoError(t, err)
	_, err = cache.RequireLive(tenantCtx("t2"), ws.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestWorkspaceCache_ReturnsCopies(t *testing.T) {
	ws := workspace.NewWorkspace("MAIN", "Main Office", "Acme")
	inner := newFakeDirectory(ws)
	cache := NewWorkspaceCache(inner, time.Minute)

	ctx := tenantCtx("t1")

	first, err := cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)
	first.AllowManualNumbers = false
	first.CompanyName = "mutated"

	second, err := cache.RequireLive(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, second.AllowManualNumbers)
	assert.Equal(t, "Acme", second.CompanyName)
	assert.Equal(t, 1, inner.calls)
}
