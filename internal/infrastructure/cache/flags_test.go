package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"numerus/internal/core/tenant"
)

func tenantCtx(tenantID string) context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{ID: tenantID, Slug: tenantID})
}

// seed installs a snapshot directly, bypassing the database load path.
func (p *TenantFlags) seed(tenantID string, loadedAt time.Time, flags ...FeatureFlag) {
	m := make(map[string]FeatureFlag, len(flags))
	for _, f := range flags {
		m[f.FlagName] = f
	}
	p.mu.Lock()
	p.snapshots[tenantID] = &flagSnapshot{flags: m, loadedAt: loadedAt}
	p.mu.Unlock()
}

func TestFeatureFlag_EnabledAt(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name string
		flag FeatureFlag
		want bool
	}{
		{"off", FeatureFlag{IsEnabled: false}, false},
		{"on without window", FeatureFlag{IsEnabled: true}, true},
		{"window open", FeatureFlag{IsEnabled: true, ValidFrom: &before, ValidUntil: &after}, true},
		{"not yet valid", FeatureFlag{IsEnabled: true, ValidFrom: &after}, false},
		{"expired", FeatureFlag{IsEnabled: true, ValidUntil: &before}, false},
		{"off inside window", FeatureFlag{IsEnabled: false, ValidFrom: &before, ValidUntil: &after}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flag.enabledAt(now))
		})
	}
}

func TestTenantFlags_IsEnabled(t *testing.T) {
	p := NewTenantFlags(time.Minute)
	p.seed("t1", time.Now(),
		FeatureFlag{FlagName: "manual_numbers", IsEnabled: true},
		FeatureFlag{FlagName: "draft_preview", IsEnabled: false},
	)

	ctx := tenantCtx("t1")
	assert.True(t, p.IsEnabled(ctx, "manual_numbers"))
	assert.False(t, p.IsEnabled(ctx, "draft_preview"))
	assert.False(t, p.IsEnabled(ctx, "no_such_flag"))
}

func TestTenantFlags_NoTenantReadsAllOff(t *testing.T) {
	p := NewTenantFlags(time.Minute)
	p.seed("t1", time.Now(), FeatureFlag{FlagName: "manual_numbers", IsEnabled: true})

	assert.False(t, p.IsEnabled(context.Background(), "manual_numbers"))
}

func TestTenantFlags_TenantsAreIsolated(t *testing.T) {
	p := NewTenantFlags(time.Minute)
	p.seed("t1", time.Now(), FeatureFlag{FlagName: "manual_numbers", IsEnabled: true})
	p.seed("t2", time.Now(), FeatureFlag{FlagName: "manual_numbers", IsEnabled: false})

	assert.True(t, p.IsEnabled(tenantCtx("t1"), "manual_numbers"))
	assert.False(t, p.IsEnabled(tenantCtx("t2"), "manual_numbers"))
}

func TestTenantFlags_StaleSnapshotServedOnLoadFailure(t *testing.T) {
	// The snapshot is past its TTL and the context has no pool, so the
	// reload fails. The stale data must still answer.
	p := NewTenantFlags(time.Minute)
	p.seed("t1", time.Now().Add(-time.Hour), FeatureFlag{FlagName: "manual_numbers", IsEnabled: true})

	assert.True(t, p.IsEnabled(tenantCtx("t1"), "manual_numbers"))
}

func TestTenantFlags_NoSnapshotAndLoadFailure(t *testing.T) {
	p := NewTenantFlags(time.Minute)

	assert.False(t, p.IsEnabled(tenantCtx("t1"), "manual_numbers"))
}

func TestTenantFlags_Invalidate(t *testing.T) {
	p := NewTenantFlags(time.Minute)
	p.seed("t1", time.Now(), FeatureFlag{FlagName: "manual_numbers", IsEnabled: true})

	p.Invalidate("t1")

	// Snapshot gone, reload impossible without a pool: reads as off.
	assert.False(t, p.IsEnabled(tenantCtx("t1"), "manual_numbers"))
}

func TestTenantFlags_GetVariantAndValue(t *testing.T) {
	p := NewTenantFlags(time.Minute)
	p.seed("t1", time.Now(), FeatureFlag{
		FlagName:  "draft_preview",
		IsEnabled: true,
		Variant:   "compact",
		Config:    map[string]any{"limit": float64(10)},
	})

	ctx := tenantCtx("t1")
	assert.Equal(t, "compact", p.GetVariant(ctx, "draft_preview"))
	assert.Equal(t, "", p.GetVariant(ctx, "missing"))

	val := p.GetValue(ctx, "draft_preview")
	cfg, ok := val.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, float64(10), cfg["limit"])

	// The returned map is a copy; mutating it must not leak back.
	cfg["limit"] = float64(99)
	again := p.GetValue(ctx, "draft_preview").(map[string]any)
	assert.Equal(t, float64(10), again["limit"])

	assert.Nil(t, p.GetValue(ctx, "missing"))
}
