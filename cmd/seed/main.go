// Package main provides a CLI tool for seeding a tenant database with demo
// workspaces and documents. It drives the same services the API uses, so the
// sequence journal, audit trail and outbox all reflect the seeded data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"numerus/internal/core/entity"
	"numerus/internal/core/security"
	"numerus/internal/core/tenant"
	"numerus/internal/core/types"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/document"
	"numerus/internal/domain/numbering"
	"numerus/internal/domain/registers/sequence"
	"numerus/internal/domain/workspace"
	"numerus/internal/infrastructure/storage/postgres"
	"numerus/internal/infrastructure/storage/postgres/catalog_repo"
	"numerus/internal/infrastructure/storage/postgres/conversion_repo"
	"numerus/internal/infrastructure/storage/postgres/document_repo"
	"numerus/internal/infrastructure/storage/postgres/numbering_repo"
	"numerus/internal/infrastructure/storage/postgres/register_repo"
	"numerus/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to tenant database")

	if err := seedTenantRegistry(ctx, dbURL, log); err != nil {
		log.Warnw("failed to seed tenant registry", "error", err)
	}

	// Seed through the regular services: repos resolve their TxManager from
	// the per-tenant context, same as a request would.
	txManager := postgres.NewTxManager(pool.Pool)
	ctx = tenant.WithPool(ctx, pool.Pool)
	ctx = tenant.WithTxManager(ctx, txManager)

	workspaces := workspace.NewService(catalog_repo.NewWorkspaceRepo())

	hq, err := ensureWorkspace(ctx, workspaces, log, "MAIN", "Main Office", "Acme Trading Ltd")
	if err != nil {
		log.Fatalw("failed to seed workspace", "code", "MAIN", "error", err)
	}
	north, err := ensureWorkspace(ctx, workspaces, log, "NORTH", "North Branch", "Acme Trading Ltd")
	if err != nil {
		log.Fatalw("failed to seed workspace", "code", "NORTH", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoDocuments(ctx, log, hq, north); err != nil {
			log.Fatalw("failed to seed demo documents", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// ensureWorkspace creates the workspace unless a live one with the same code
// already exists, making reruns of the seeder harmless.
func ensureWorkspace(ctx context.Context, svc *workspace.Service, log *logger.Logger, code, name, company string) (*workspace.Workspace, error) {
	existing, err := svc.GetByCode(ctx, code)
	if err == nil {
		log.Infow("workspace already exists", "code", code, "workspace_id", existing.ID)
		return existing, nil
	}

	ws := workspace.NewWorkspace(code, name, company)
	if err := svc.Create(ctx, ws); err != nil {
		return nil, err
	}

	log.Infow("workspace created", "code", code, "workspace_id", ws.ID)
	return ws, nil
}

func seedDemoDocuments(ctx context.Context, log *logger.Logger, hq, north *workspace.Workspace) error {
	docs, err := buildDocumentService()
	if err != nil {
		return err
	}

	// Skip when the workspace already holds documents; the demo set is only
	// meaningful on a fresh database.
	existing, err := docs.List(ctx, document.ListFilter{WorkspaceID: &hq.ID})
	if err != nil {
		return fmt.Errorf("check existing documents: %w", err)
	}
	if existing.TotalCount > 0 {
		log.Infow("demo documents already present, skipping",
			"workspace_id", hq.ID,
			"count", existing.TotalCount)
		return nil
	}

	log.Info("seeding demo documents...")

	quotes := []struct {
		total    float64
		currency string
		comment  string
	}{
		{1250.00, "EUR", "Office refit, phase one"},
		{480.50, "EUR", "Quarterly maintenance"},
		{9900.00, "USD", "Warehouse automation pilot"},
	}

	created := make([]*entity.Document, 0, len(quotes))
	for _, q := range quotes {
		doc := entity.NewDocument(hq.ID, entity.KindQuote)
		doc.Total = types.NewMoney(q.total)
		doc.Currency = q.currency
		doc.Comment = q.comment
		doc.CreatedBy = "seed"
		doc.UpdatedBy = "seed"

		if err := docs.Create(ctx, &doc, ""); err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		created = append(created, &doc)
		log.Infow("quote created", "number", doc.Number, "total", q.total)
	}

	// Walk the first quote through its whole life: official number, terminal
	// status, then conversion into an invoice that itself goes official.
	first := created[0]
	if _, err := docs.Transition(ctx, first.ID, entity.StatusDraft, entity.StatusPending, ""); err != nil {
		return fmt.Errorf("transition quote to pending: %w", err)
	}
	if _, err := docs.Transition(ctx, first.ID, entity.StatusPending, entity.StatusCompleted, ""); err != nil {
		return fmt.Errorf("complete quote: %w", err)
	}

	invoice, err := docs.Convert(ctx, first.ID, entity.KindInvoice)
	if err != nil {
		return fmt.Errorf("convert quote to invoice: %w", err)
	}
	res, err := docs.Transition(ctx, invoice.ID, entity.StatusDraft, entity.StatusPending, "")
	if err != nil {
		return fmt.Errorf("transition invoice to pending: %w", err)
	}
	log.Infow("invoice issued", "number", res.Number, "source", first.ID)

	// Second quote gets an official number and is then canceled. The number
	// stays burned: canceled official documents never release theirs.
	second := created[1]
	if _, err := docs.Transition(ctx, second.ID, entity.StatusDraft, entity.StatusPending, ""); err != nil {
		return fmt.Errorf("transition quote to pending: %w", err)
	}
	if _, err := docs.Transition(ctx, second.ID, entity.StatusPending, entity.StatusCanceled, ""); err != nil {
		return fmt.Errorf("cancel quote: %w", err)
	}

	// One draft in the second workspace shows that sequences do not cross
	// workspace boundaries.
	branch := entity.NewDocument(north.ID, entity.KindQuote)
	branch.Total = types.NewMoney(75.00)
	branch.Currency = "EUR"
	branch.Comment = "Branch stationery order"
	branch.CreatedBy = "seed"
	branch.UpdatedBy = "seed"
	if err := docs.Create(ctx, &branch, ""); err != nil {
		return fmt.Errorf("create branch quote: %w", err)
	}

	log.Info("demo documents seeded successfully")
	return nil
}

// buildDocumentService wires the document service exactly as the API server
// does, minus the HTTP layer.
func buildDocumentService() (*document.Service, error) {
	auditTrail, err := postgres.NewAuditService(nil)
	if err != nil {
		return nil, fmt.Errorf("build audit service: %w", err)
	}

	engine, err := numbering.NewService(numbering.Config{
		Repository:  numbering_repo.NewNumberingRepo(),
		Documents:   document_repo.NewDocumentRepo(),
		Events:      sequence.NewService(register_repo.NewSequenceRepo()),
		Conversions: conversion.NewService(conversion_repo.NewLinkRepo()),
		Audit:       auditTrail,
		Outbox:      postgres.NewOutboxPublisher(nil),
		Policy:      security.OpenPolicy{},
		Strategy:    numbering.Strategy(os.Getenv("NUMBERING_STRATEGY")),
	})
	if err != nil {
		return nil, fmt.Errorf("build numbering engine: %w", err)
	}

	docs := document.NewService(document.Config{
		Repo:        document_repo.NewDocumentRepo(),
		Engine:      engine,
		Workspaces:  workspace.NewService(catalog_repo.NewWorkspaceRepo()),
		Conversions: conversion.NewService(conversion_repo.NewLinkRepo()),
	})

	return docs, nil
}

func seedTenantRegistry(ctx context.Context, dbURL string, log *logger.Logger) error {
	metaDSN := os.Getenv("META_DATABASE_URL")
	if metaDSN == "" {
		log.Warn("META_DATABASE_URL is not set; skipping tenant registry seed")
		return nil
	}

	metaPool, err := pgxpool.New(ctx, metaDSN)
	if err != nil {
		return fmt.Errorf("connect meta database: %w", err)
	}
	defer metaPool.Close()

	if err := metaPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping meta database: %w", err)
	}

	tenantSlug := os.Getenv("TENANT_SLUG")
	if tenantSlug == "" {
		tenantSlug = "demo"
	}

	tenantName := os.Getenv("TENANT_NAME")
	if tenantName == "" {
		tenantName = "Demo Tenant"
	}

	tenantPlan := os.Getenv("TENANT_PLAN")
	if tenantPlan == "" {
		tenantPlan = string(tenant.PlanStandard)
	}

	dbConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return fmt.Errorf("parse tenant database url: %w", err)
	}

	dbHost := dbConfig.ConnConfig.Host
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := int(dbConfig.ConnConfig.Port)
	if dbPort == 0 {
		dbPort = 5432
	}

	dbName := dbConfig.ConnConfig.Database
	if dbName == "" {
		dbName = "numerus"
	}

	var existingID string
	err = metaPool.QueryRow(ctx, `SELECT id FROM tenants WHERE slug = $1`, tenantSlug).Scan(&existingID)
	if err == nil {
		log.Infow("tenant already exists in registry", "slug", tenantSlug, "tenant_id", existingID)
		return nil
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check tenant exists: %w", err)
	}

	registry := tenant.NewPostgresRegistry(metaPool)
	newTenant := &tenant.Tenant{
		Slug:        tenantSlug,
		DisplayName: tenantName,
		DBName:      dbName,
		DBHost:      dbHost,
		DBPort:      dbPort,
		Status:      tenant.StatusActive,
		Plan:        tenant.Plan(tenantPlan),
		Settings:    map[string]any{},
	}

	if err := registry.Create(ctx, newTenant); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	log.Infow("tenant seeded in registry", "slug", tenantSlug, "tenant_id", newTenant.ID)
	return nil
}
