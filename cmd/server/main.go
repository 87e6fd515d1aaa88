// Package main is the entry point for the numerus API server.
// Multi-tenant architecture: Database-per-Tenant.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"numerus/internal/core/security"
	"numerus/internal/core/tenant"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/numbering"
	"numerus/internal/domain/registers/sequence"
	"numerus/internal/infrastructure/cache"
	v1 "numerus/internal/infrastructure/http/v1"
	"numerus/internal/infrastructure/storage/postgres"
	"numerus/internal/infrastructure/storage/postgres/conversion_repo"
	"numerus/internal/infrastructure/storage/postgres/document_repo"
	"numerus/internal/infrastructure/storage/postgres/numbering_repo"
	"numerus/internal/infrastructure/storage/postgres/register_repo"
	"numerus/pkg/logger"
)

// config is the server configuration, loaded from environment.
type config struct {
	Port     string
	LogLevel string
	AppEnv   string

	MetaDatabaseURL  string
	TenantDBUser     string
	TenantDBPassword string

	JWTSecret string
	JWTIssuer string

	NumberingStrategy string // scan or counter
	TransitionPolicy  string // open, strict, flexible or expr
	PolicyExpr        string // CEL source for the expr policy
	ClosedUntil       string // YYYY-MM-DD, documents dated earlier are frozen

	IdempotencyEnabled bool
	PrewarmPools       bool

	TenantMaxPools    int
	TenantMaxConns    int
	TenantIdleTimeout time.Duration

	FlagsCacheTTL time.Duration
}

func loadConfig() config {
	return config{
		Port:     getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		AppEnv:   getEnv("APP_ENV", "development"),

		MetaDatabaseURL:  os.Getenv("META_DATABASE_URL"),
		TenantDBUser:     os.Getenv("TENANT_DB_USER"),
		TenantDBPassword: os.Getenv("TENANT_DB_PASSWORD"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTIssuer: getEnv("JWT_ISSUER", "numerus-auth"),

		NumberingStrategy: getEnv("NUMBERING_STRATEGY", "scan"),
		TransitionPolicy:  getEnv("TRANSITION_POLICY", "open"),
		PolicyExpr:        os.Getenv("TRANSITION_POLICY_EXPR"),
		ClosedUntil:       os.Getenv("CLOSED_UNTIL"),

		IdempotencyEnabled: getEnv("IDEMPOTENCY_ENABLED", "false") == "true",
		PrewarmPools:       getEnv("PREWARM_POOLS", "false") == "true",

		TenantMaxPools:    getEnvInt("TENANT_MAX_POOLS", 100),
		TenantMaxConns:    getEnvInt("TENANT_MAX_CONNS_PER_POOL", 10),
		TenantIdleTimeout: getEnvDuration("TENANT_POOL_IDLE_TIMEOUT", 30*time.Minute),

		FlagsCacheTTL: getEnvDuration("FLAGS_CACHE_TTL", cache.DefaultFlagsTTL),
	}
}

// Validate checks the configuration before anything connects.
func (c config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MetaDatabaseURL, validation.Required),
		validation.Field(&c.TenantDBUser, validation.Required),
		validation.Field(&c.TenantDBPassword, validation.Required),
		validation.Field(&c.NumberingStrategy, validation.In("scan", "counter")),
		validation.Field(&c.TransitionPolicy, validation.In("open", "strict", "flexible", "expr")),
		validation.Field(&c.PolicyExpr, validation.Required.When(c.TransitionPolicy == "expr")),
		validation.Field(&c.ClosedUntil, validation.Date("2006-01-02")),
		validation.Field(&c.TenantMaxPools, validation.Min(1)),
		validation.Field(&c.TenantMaxConns, validation.Min(1)),
	)
}

// buildPolicy assembles the period-close policy from configuration.
func buildPolicy(cfg config) (security.TransitionPolicy, error) {
	var closedUntil time.Time
	if cfg.ClosedUntil != "" {
		t, err := time.Parse("2006-01-02", cfg.ClosedUntil)
		if err != nil {
			return nil, fmt.Errorf("parse CLOSED_UNTIL: %w", err)
		}
		closedUntil = t
	}

	switch cfg.TransitionPolicy {
	case "strict":
		return security.NewStrictPolicy(closedUntil), nil
	case "flexible":
		return security.NewFlexiblePolicy(30*24*time.Hour, closedUntil), nil
	case "expr":
		return security.NewExprPolicy(cfg.PolicyExpr, closedUntil)
	default:
		return security.OpenPolicy{}, nil
	}
}

func main() {
	cfg := loadConfig()

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.AppEnv == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := context.Background()
	log.Info("starting numerus server (multi-tenant mode)")

	// --- Meta-database connection ---
	metaPool, err := pgxpool.New(ctx, cfg.MetaDatabaseURL)
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	if err := metaPool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping meta database", "error", err)
	}
	log.Info("meta database connection established")

	// --- Tenant Registry and Manager ---
	registry := tenant.NewPostgresRegistry(metaPool)

	managerCfg := tenant.DefaultManagerConfig()
	managerCfg.DBUser = cfg.TenantDBUser
	managerCfg.DBPassword = cfg.TenantDBPassword
	managerCfg.MaxTotalPools = cfg.TenantMaxPools
	managerCfg.MaxConnsPerTenant = int32(cfg.TenantMaxConns)
	managerCfg.PoolIdleTimeout = cfg.TenantIdleTimeout

	tenantManager := tenant.NewManager(managerCfg, registry, log)
	defer tenantManager.Close()

	log.Infow("tenant manager initialized",
		"max_pools", managerCfg.MaxTotalPools,
		"max_conns_per_tenant", managerCfg.MaxConnsPerTenant,
		"idle_timeout", managerCfg.PoolIdleTimeout,
	)

	// Optional: Prewarm pools for known tenants
	if cfg.PrewarmPools {
		log.Info("prewarming tenant pools...")
		if err := tenantManager.PrewarmPools(ctx); err != nil {
			log.Warnw("failed to prewarm some pools", "error", err)
		}
	}

	// --- JWT validation ---
	// Tokens come from the platform auth service; this server only verifies.
	jwtValidator := security.NewJWTValidator(security.JWTConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
	})

	// --- Numbering engine ---
	// Note: repos are created once; TxManager comes from context per-request
	policy, err := buildPolicy(cfg)
	if err != nil {
		log.Fatalw("failed to build transition policy", "error", err)
	}

	auditTrail, err := postgres.NewAuditService(nil)
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}

	numberingCfg := numbering.Config{
		Repository:  numbering_repo.NewNumberingRepo(),
		Documents:   document_repo.NewDocumentRepo(),
		Events:      sequence.NewService(register_repo.NewSequenceRepo()),
		Conversions: conversion.NewService(conversion_repo.NewLinkRepo()),
		Audit:       auditTrail,
		Outbox:      postgres.NewOutboxPublisher(nil),
		Policy:      policy,
		Strategy:    numbering.Strategy(cfg.NumberingStrategy),
	}

	engine, err := numbering.NewService(numberingCfg)
	if err != nil {
		log.Fatalw("failed to create numbering engine", "error", err)
	}

	repairer, err := numbering.NewRepairer(numberingCfg)
	if err != nil {
		log.Fatalw("failed to create numbering repairer", "error", err)
	}

	log.Infow("numbering engine initialized",
		"strategy", engine.Strategy(),
		"policy", cfg.TransitionPolicy,
	)

	// --- Feature flags ---
	flags := cache.NewTenantFlags(cfg.FlagsCacheTTL)

	// --- Metadata Registry ---
	metadataRegistry := setupMetadataRegistry()
	log.Info("metadata registry initialized")

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		TenantManager:      tenantManager,
		MetaPool:           metaPool,
		Logger:             log,
		JWTValidator:       jwtValidator,
		Engine:             engine,
		Repairer:           repairer,
		Flags:              flags,
		IdempotencyEnabled: cfg.IdempotencyEnabled,
		MetadataRegistry:   metadataRegistry,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", cfg.Port, "mode", "multi-tenant")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
