// Package main is the entry point for the numerus background worker.
// Multi-tenant architecture: processes jobs for all tenants.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"numerus/internal/core/tenant"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/numbering"
	"numerus/internal/domain/registers/sequence"
	"numerus/internal/infrastructure/storage/postgres"
	"numerus/internal/infrastructure/storage/postgres/conversion_repo"
	"numerus/internal/infrastructure/storage/postgres/document_repo"
	"numerus/internal/infrastructure/storage/postgres/numbering_repo"
	"numerus/internal/infrastructure/storage/postgres/register_repo"
	"numerus/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting numerus multi-tenant worker")

	// Connect to meta-database
	metaPool, err := pgxpool.New(ctx, mustEnv("META_DATABASE_URL"))
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	// Create tenant registry and manager
	registry := tenant.NewPostgresRegistry(metaPool)

	managerCfg := tenant.DefaultManagerConfig()
	managerCfg.DBUser = mustEnv("TENANT_DB_USER")
	managerCfg.DBPassword = mustEnv("TENANT_DB_PASSWORD")
	managerCfg.PoolIdleTimeout = 10 * time.Minute // Shorter for worker

	manager := tenant.NewManager(managerCfg, registry, log)
	defer manager.Close()

	// The repairer shares the engine's wiring; repos resolve their
	// TxManager from the per-tenant context built in runTenantWorker.
	repairer, err := numbering.NewRepairer(numbering.Config{
		Repository:  numbering_repo.NewNumberingRepo(),
		Documents:   document_repo.NewDocumentRepo(),
		Events:      sequence.NewService(register_repo.NewSequenceRepo()),
		Conversions: conversion.NewService(conversion_repo.NewLinkRepo()),
		Outbox:      postgres.NewOutboxPublisher(nil),
		Strategy:    numbering.Strategy(getEnv("NUMBERING_STRATEGY", "scan")),
	})
	if err != nil {
		log.Fatalw("failed to create repairer", "error", err)
	}

	// Start multi-tenant worker
	worker := NewMultiTenantWorker(manager, repairer, log)
	worker.sweepInterval = getEnvDuration("SWEEP_INTERVAL", 5*time.Minute)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// MultiTenantWorker processes background jobs for all tenants: relaying the
// transactional outbox, sweeping documents stuck on TEMP numbers, and
// housekeeping.
type MultiTenantWorker struct {
	manager       *tenant.Manager
	repairer      *numbering.Repairer
	log           *logger.Logger
	sweepInterval time.Duration
}

func NewMultiTenantWorker(manager *tenant.Manager, repairer *numbering.Repairer, log *logger.Logger) *MultiTenantWorker {
	return &MultiTenantWorker{
		manager:       manager,
		repairer:      repairer,
		log:           log.WithComponent("worker"),
		sweepInterval: 5 * time.Minute,
	}
}

// Run starts worker goroutines for all active tenants.
func (w *MultiTenantWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	var wg sync.WaitGroup
	tenantContexts := make(map[string]context.CancelFunc) // tenant_id(UUID) -> cancel
	var mu sync.Mutex

	// Initial start
	w.refreshTenants(ctx, &wg, tenantContexts, &mu)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, cancel := range tenantContexts {
				cancel()
			}
			mu.Unlock()
			wg.Wait()
			return

		case <-ticker.C:
			w.refreshTenants(ctx, &wg, tenantContexts, &mu)
		}
	}
}

func (w *MultiTenantWorker) refreshTenants(ctx context.Context, wg *sync.WaitGroup, tenantContexts map[string]context.CancelFunc, mu *sync.Mutex) {
	tenants, err := w.manager.GetActiveTenants(ctx)
	if err != nil {
		w.log.Errorw("failed to get active tenants", "error", err)
		return
	}

	activeTenants := make(map[string]*tenant.Tenant, len(tenants))
	for _, t := range tenants {
		activeTenants[t.ID] = t
	}

	mu.Lock()
	defer mu.Unlock()

	for tenantID, cancel := range tenantContexts {
		if _, active := activeTenants[tenantID]; !active {
			cancel()
			delete(tenantContexts, tenantID)
			w.log.Infow("stopped worker for inactive tenant", "tenant_id", tenantID)
		}
	}

	for _, t := range tenants {
		if _, exists := tenantContexts[t.ID]; !exists {
			tenantCtx, tenantCancel := context.WithCancel(ctx)
			tenantContexts[t.ID] = tenantCancel

			wg.Add(1)
			go func(t *tenant.Tenant) {
				defer wg.Done()
				w.runTenantWorker(tenantCtx, t)
			}(t)

			w.log.Infow("started worker for tenant", "tenant_id", t.ID)
		}
	}
}

func (w *MultiTenantWorker) runTenantWorker(ctx context.Context, t *tenant.Tenant) {
	mp, err := w.manager.GetPool(ctx, t.ID)
	if err != nil {
		w.log.Errorw("failed to get pool for tenant", "tenant_id", t.ID, "error", err)
		return
	}

	pool := mp.Pool()
	txManager := postgres.NewTxManager(pool)

	// Repos and the repairer resolve their collaborators from this context,
	// same as a request would.
	ctx = tenant.WithTenant(ctx, t)
	ctx = tenant.WithPool(ctx, pool)
	ctx = tenant.WithTxManager(ctx, txManager)
	ctx = logger.WithLogger(ctx, w.log)

	relay := postgres.NewOutboxRelay(pool, 100, &eventLogger{log: w.log, tenantID: t.ID})

	outboxTicker := time.NewTicker(500 * time.Millisecond)
	defer outboxTicker.Stop()

	sweepTicker := time.NewTicker(w.sweepInterval)
	defer sweepTicker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Infow("stopping worker for tenant", "tenant_id", t.ID)
			return
		case <-outboxTicker.C:
			w.processOutbox(ctx, relay, t.ID)
		case <-sweepTicker.C:
			w.sweepTempNumbers(ctx, t.ID)
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx, pool, t.ID)
			w.moveFailedToDLQ(ctx, relay, t.ID)
		}
	}
}

func (w *MultiTenantWorker) processOutbox(ctx context.Context, relay *postgres.OutboxRelay, tenantID string) {
	count, err := relay.ProcessBatch(ctx)
	if err != nil {
		w.log.Errorw("outbox relay failed", "tenant_id", tenantID, "error", err)
		return
	}
	if count > 0 {
		w.log.Debugw("processed outbox batch", "tenant_id", tenantID, "count", count)
	}
}

// sweepTempNumbers repairs documents found resting with a TEMP number.
// The HTTP repair endpoint does the same on demand; this is the safety net.
func (w *MultiTenantWorker) sweepTempNumbers(ctx context.Context, tenantID string) {
	report, err := w.repairer.Sweep(ctx, nil)
	if err != nil {
		w.log.Errorw("temp number sweep failed", "tenant_id", tenantID, "error", err)
		return
	}
	if report.Found > 0 {
		w.log.Infow("temp number sweep finished",
			"tenant_id", tenantID,
			"found", report.Found,
			"repaired", report.Repaired,
			"failed", report.Failed)
	}
}

func (w *MultiTenantWorker) cleanupIdempotency(ctx context.Context, pool *pgxpool.Pool, tenantID string) {
	result, err := pool.Exec(ctx, `
		DELETE FROM sys_idempotency
		WHERE created_at < NOW() - INTERVAL '24 hours'
	`)
	if err != nil {
		return
	}

	if result.RowsAffected() > 0 {
		w.log.Infow("cleaned up idempotency keys", "tenant_id", tenantID, "count", result.RowsAffected())
	}
}

func (w *MultiTenantWorker) moveFailedToDLQ(ctx context.Context, relay *postgres.OutboxRelay, tenantID string) {
	moved, err := relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("failed to move outbox messages to DLQ", "tenant_id", tenantID, "error", err)
		return
	}
	if moved > 0 {
		w.log.Warnw("moved failed outbox messages to DLQ", "tenant_id", tenantID, "count", moved)
	}
}

// eventLogger ships outbox events to the log stream. Downstream delivery to
// a broker is the platform's job; this service only guarantees the events
// leave the outbox in order.
type eventLogger struct {
	log      *logger.Logger
	tenantID string
}

func (h *eventLogger) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("outbox event",
		"tenant_id", h.tenantID,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"event_type", msg.EventType,
		"payload", string(msg.Payload))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
