package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"numerus/pkg/logger"
)

// ManagerConfig tunes the per-tenant pool manager.
type ManagerConfig struct {
	// Credentials the API uses against every tenant database.
	DBUser     string
	DBPassword string

	MaxConnsPerTenant int32
	MinConnsPerTenant int32
	ConnectTimeout    time.Duration

	// MaxTotalPools caps simultaneously open pools. 0 means no cap.
	MaxTotalPools int

	// PoolIdleTimeout retires pools nobody touched for this long.
	// 0 keeps pools open forever.
	PoolIdleTimeout time.Duration

	// HealthCheckPeriod is how often open pools get pinged. 0 disables
	// probing.
	HealthCheckPeriod time.Duration
}

// DefaultManagerConfig returns production-safe defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConnsPerTenant: 10,
		MinConnsPerTenant: 2,
		ConnectTimeout:    10 * time.Second,
		MaxTotalPools:     100,
		PoolIdleTimeout:   30 * time.Minute,
		HealthCheckPeriod: 1 * time.Minute,
	}
}

// ManagedPool is one tenant's pgx pool plus the bookkeeping the manager
// needs to retire it safely: when it was last handed out, how many requests
// hold it right now, and since when pings fail.
type ManagedPool struct {
	pool   *pgxpool.Pool
	tenant *Tenant

	lastUsed  atomic.Int64 // unix seconds
	refs      atomic.Int32
	downSince atomic.Int64 // unix seconds, 0 while healthy
}

// Touch records a handout so the idle sweep keeps the pool.
func (mp *ManagedPool) Touch() { mp.lastUsed.Store(time.Now().Unix()) }

// Pool returns the underlying pgx pool.
func (mp *ManagedPool) Pool() *pgxpool.Pool { return mp.pool }

// Tenant returns the owning tenant record.
func (mp *ManagedPool) Tenant() *Tenant { return mp.tenant }

// AcquireRef marks the pool as held by an in-flight request. A held pool
// is never closed, not even when its pings fail.
func (mp *ManagedPool) AcquireRef() { mp.refs.Add(1) }

// ReleaseRef undoes AcquireRef.
func (mp *ManagedPool) ReleaseRef() { mp.refs.Add(-1) }

func (mp *ManagedPool) held() bool { return mp.refs.Load() > 0 }

// Manager opens and retires pgx pools per tenant database. Lookups are
// lock-free; racing first requests for the same tenant collapse into a
// single pool creation.
type Manager struct {
	cfg      ManagerConfig
	registry Registry
	log      *logger.Logger

	pools   sync.Map // tenant id -> *ManagedPool
	open    atomic.Int32
	creates singleflight.Group

	stop context.CancelFunc
	done chan struct{}
}

// NewManager starts a manager and its background janitor.
func NewManager(cfg ManagerConfig, registry Registry, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		cfg:      cfg,
		registry: registry,
		log:      log.WithComponent("tenant-manager"),
		stop:     cancel,
		done:     make(chan struct{}),
	}
	go m.janitor(ctx)

	m.log.Infow("tenant pool manager started",
		"max_pools", cfg.MaxTotalPools,
		"idle_timeout", cfg.PoolIdleTimeout,
		"health_check_period", cfg.HealthCheckPeriod,
	)
	return m
}

// GetPool returns the pool for a tenant, opening it on first use.
func (m *Manager) GetPool(ctx context.Context, tenantID string) (*ManagedPool, error) {
	if v, ok := m.pools.Load(tenantID); ok {
		mp := v.(*ManagedPool)
		mp.Touch()
		return mp, nil
	}

	// First request for this tenant. Racing callers share one creation;
	// the re-check covers a pool stored between Load and Do.
	v, err, _ := m.creates.Do(tenantID, func() (any, error) {
		if v, ok := m.pools.Load(tenantID); ok {
			return v.(*ManagedPool), nil
		}
		return m.openPool(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}

	mp := v.(*ManagedPool)
	mp.Touch()
	return mp, nil
}

func (m *Manager) openPool(ctx context.Context, tenantID string) (*ManagedPool, error) {
	if limit := m.cfg.MaxTotalPools; limit > 0 && int(m.open.Load()) >= limit {
		return nil, fmt.Errorf("%w (%d)", ErrMaxPoolLimit, limit)
	}

	t, err := m.registry.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: status=%s", ErrTenantNotActive, t.Status)
	}

	pc, err := pgxpool.ParseConfig(t.DSN(m.cfg.DBUser, m.cfg.DBPassword))
	if err != nil {
		return nil, fmt.Errorf("parse dsn for tenant %s: %w", tenantID, err)
	}
	pc.MaxConns = m.cfg.MaxConnsPerTenant
	pc.MinConns = m.cfg.MinConnsPerTenant
	pc.HealthCheckPeriod = m.cfg.HealthCheckPeriod
	pc.ConnConfig.ConnectTimeout = m.cfg.ConnectTimeout

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool for tenant %s: %w", tenantID, err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tenant %s: %w", tenantID, err)
	}

	mp := &ManagedPool{pool: pool, tenant: t}
	mp.Touch()
	m.pools.Store(tenantID, mp)
	m.open.Add(1)

	m.log.Infow("opened tenant pool",
		"tenant_id", tenantID,
		"db_name", t.DBName,
		"open_pools", m.open.Load(),
	)
	return mp, nil
}

// janitor owns the background lifecycle: sweeping idle pools and probing
// open ones. A zero period leaves the matching channel nil, so the select
// never fires it.
func (m *Manager) janitor(ctx context.Context) {
	defer close(m.done)

	var sweep, probe <-chan time.Time
	if m.cfg.PoolIdleTimeout > 0 {
		t := time.NewTicker(m.cfg.PoolIdleTimeout / 2)
		defer t.Stop()
		sweep = t.C
	}
	if m.cfg.HealthCheckPeriod > 0 {
		t := time.NewTicker(m.cfg.HealthCheckPeriod)
		defer t.Stop()
		probe = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep:
			m.sweepIdle()
		case <-probe:
			m.probePools(ctx)
		}
	}
}

// sweepIdle retires pools nobody touched within the idle window. Pools
// flagged unhealthy go as soon as the last holder releases them.
func (m *Manager) sweepIdle() {
	cutoff := time.Now().Add(-m.cfg.PoolIdleTimeout).Unix()

	m.pools.Range(func(key, v any) bool {
		mp := v.(*ManagedPool)
		if mp.held() {
			return true
		}
		switch {
		case mp.downSince.Load() > 0:
			m.retire(key.(string), mp, "unhealthy")
		case mp.lastUsed.Load() < cutoff:
			m.retire(key.(string), mp, "idle")
		}
		return true
	})
}

// probePools pings every open pool. A failing pool is retired immediately
// when free, otherwise it stays flagged for the sweep.
func (m *Manager) probePools(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m.pools.Range(func(key, v any) bool {
		tenantID := key.(string)
		mp := v.(*ManagedPool)

		if err := mp.pool.Ping(pingCtx); err != nil {
			mp.downSince.CompareAndSwap(0, time.Now().Unix())
			m.log.Warnw("tenant pool failed ping",
				"tenant_id", tenantID,
				"error", err,
			)
			if !mp.held() {
				m.retire(tenantID, mp, "failed ping")
			}
			return true
		}

		mp.downSince.Store(0)
		return true
	})
}

func (m *Manager) retire(tenantID string, mp *ManagedPool, reason string) {
	m.pools.Delete(tenantID)
	mp.pool.Close()
	m.open.Add(-1)

	m.log.Infow("closed tenant pool",
		"tenant_id", tenantID,
		"reason", reason,
		"open_pools", m.open.Load(),
	)
}

// Close stops the janitor and closes every open pool.
func (m *Manager) Close() {
	m.stop()
	<-m.done

	var closed int
	m.pools.Range(func(key, v any) bool {
		v.(*ManagedPool).pool.Close()
		m.pools.Delete(key)
		closed++
		return true
	})

	m.log.Infow("tenant pool manager closed", "pools_closed", closed)
}

// ManagerStats is a point-in-time snapshot across all open pools.
type ManagerStats struct {
	TotalPools    int
	TotalConns    int
	IdleConns     int
	AcquiredConns int
	Tenants       []TenantPoolStats
}

// TenantPoolStats is the per-tenant slice of ManagerStats.
type TenantPoolStats struct {
	TenantID      string
	DBName        string
	TotalConns    int
	IdleConns     int
	AcquiredConns int
	ActiveRefs    int
	LastUsed      time.Time
}

// Stats snapshots every open pool for the health endpoints.
func (m *Manager) Stats() ManagerStats {
	stats := ManagerStats{TotalPools: int(m.open.Load())}

	m.pools.Range(func(key, v any) bool {
		mp := v.(*ManagedPool)
		st := mp.pool.Stat()

		stats.TotalConns += int(st.TotalConns())
		stats.IdleConns += int(st.IdleConns())
		stats.AcquiredConns += int(st.AcquiredConns())

		stats.Tenants = append(stats.Tenants, TenantPoolStats{
			TenantID:      key.(string),
			DBName:        mp.tenant.DBName,
			TotalConns:    int(st.TotalConns()),
			IdleConns:     int(st.IdleConns()),
			AcquiredConns: int(st.AcquiredConns()),
			ActiveRefs:    int(mp.refs.Load()),
			LastUsed:      time.Unix(mp.lastUsed.Load(), 0),
		})
		return true
	})
	return stats
}

// GetActiveTenants lists tenants the worker loop should visit.
func (m *Manager) GetActiveTenants(ctx context.Context) ([]*Tenant, error) {
	return m.registry.ListActive(ctx)
}

// PrewarmPools opens a pool for every active tenant so first requests skip
// the connect. All tenants are attempted; the first failure is reported.
func (m *Manager) PrewarmPools(ctx context.Context) error {
	tenants, err := m.registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	m.log.Infow("prewarming tenant pools", "tenant_count", len(tenants))

	var g errgroup.Group
	g.SetLimit(8)
	for _, t := range tenants {
		g.Go(func() error {
			if _, err := m.GetPool(ctx, t.ID); err != nil {
				return fmt.Errorf("prewarm %s: %w", t.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.log.Infow("tenant pools prewarmed", "open_pools", m.open.Load())
	return nil
}
