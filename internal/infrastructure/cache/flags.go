// Package cache provides short-lived read caches over tenant databases.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"numerus/internal/core/security"
	"numerus/internal/core/tenant"
	"numerus/pkg/logger"
)

// DefaultFlagsTTL bounds how stale a tenant's flag snapshot may get.
const DefaultFlagsTTL = 30 * time.Second

// FeatureFlag is one row of sys_feature_flags.
type FeatureFlag struct {
	ID          string
	FlagName    string
	Description string
	IsEnabled   bool
	Variant     string
	Config      map[string]any
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

// enabledAt applies the validity window on top of the stored switch.
func (f FeatureFlag) enabledAt(now time.Time) bool {
	if !f.IsEnabled {
		return false
	}
	if f.ValidFrom != nil && now.Before(*f.ValidFrom) {
		return false
	}
	if f.ValidUntil != nil && now.After(*f.ValidUntil) {
		return false
	}
	return true
}

// TenantFlags implements security.FeatureFlagProvider over the per-tenant
// sys_feature_flags table. Each tenant gets its own snapshot, reloaded
// through the tenant pool in context once the TTL expires. Lookups never
// fail the request: a tenant whose flags cannot be loaded reads as all-off.
type TenantFlags struct {
	ttl time.Duration

	mu        sync.RWMutex
	snapshots map[string]*flagSnapshot
}

type flagSnapshot struct {
	flags    map[string]FeatureFlag
	loadedAt time.Time
}

// NewTenantFlags creates the provider. ttl <= 0 falls back to DefaultFlagsTTL.
func NewTenantFlags(ttl time.Duration) *TenantFlags {
	if ttl <= 0 {
		ttl = DefaultFlagsTTL
	}
	return &TenantFlags{
		ttl:       ttl,
		snapshots: make(map[string]*flagSnapshot),
	}
}

// IsEnabled reports whether the flag is on for the context's tenant.
func (p *TenantFlags) IsEnabled(ctx context.Context, flag string) bool {
	f, ok := p.lookup(ctx, flag)
	return ok && f.enabledAt(time.Now())
}

// GetVariant returns the variant name for A/B tests.
func (p *TenantFlags) GetVariant(ctx context.Context, flag string) string {
	if f, ok := p.lookup(ctx, flag); ok {
		return f.Variant
	}
	return ""
}

// GetValue returns a copy of the flag's config map.
func (p *TenantFlags) GetValue(ctx context.Context, flag string) any {
	f, ok := p.lookup(ctx, flag)
	if !ok || len(f.Config) == 0 {
		return nil
	}
	cfg := make(map[string]any, len(f.Config))
	for k, v := range f.Config {
		cfg[k] = v
	}
	return cfg
}

func (p *TenantFlags) lookup(ctx context.Context, flag string) (FeatureFlag, bool) {
	tenantID := tenant.GetTenantID(ctx)
	if tenantID == "" {
		return FeatureFlag{}, false
	}

	p.mu.RLock()
	snap := p.snapshots[tenantID]
	p.mu.RUnlock()

	if snap == nil || time.Since(snap.loadedAt) > p.ttl {
		fresh, err := p.load(ctx)
		if err != nil {
			logger.Error(ctx, "failed to load feature flags", "tenant", tenantID, "error", err)
			// Serve the stale snapshot if there is one.
			if snap == nil {
				return FeatureFlag{}, false
			}
		} else {
			snap = fresh
			p.mu.Lock()
			p.snapshots[tenantID] = snap
			p.mu.Unlock()
		}
	}

	f, ok := snap.flags[flag]
	return f, ok
}

// load reads all flags for the context's tenant in one query.
func (p *TenantFlags) load(ctx context.Context) (*flagSnapshot, error) {
	pool, err := tenant.GetPool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, flag_name, description, is_enabled, variant,
		       config, valid_from, valid_until
		FROM sys_feature_flags
	`)
	if err != nil {
		return nil, fmt.Errorf("query feature flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[string]FeatureFlag)
	for rows.Next() {
		var f FeatureFlag
		var config []byte

		err := rows.Scan(
			&f.ID, &f.FlagName, &f.Description, &f.IsEnabled, &f.Variant,
			&config, &f.ValidFrom, &f.ValidUntil,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature flag: %w", err)
		}

		if len(config) > 0 {
			var m map[string]any
			if err := json.Unmarshal(config, &m); err != nil {
				return nil, fmt.Errorf("unmarshal feature flag config (%s): %w", f.FlagName, err)
			}
			f.Config = m
		}

		flags[f.FlagName] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature flags: %w", err)
	}

	return &flagSnapshot{flags: flags, loadedAt: time.Now()}, nil
}

// Invalidate drops a tenant's snapshot so the next lookup reloads.
func (p *TenantFlags) Invalidate(tenantID string) {
	p.mu.Lock()
	delete(p.snapshots, tenantID)
	p.mu.Unlock()
}

// Ensure interface compliance at compile time.
var _ security.FeatureFlagProvider = (*TenantFlags)(nil)
