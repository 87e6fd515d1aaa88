// Package v1 provides HTTP API version 1.
package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"numerus/internal/core/entity"
	"numerus/internal/core/security"
	"numerus/internal/core/tenant"
	"numerus/internal/domain/audit"
	"numerus/internal/domain/conversion"
	"numerus/internal/domain/document"
	"numerus/internal/domain/numbering"
	"numerus/internal/domain/registers/sequence"
	"numerus/internal/domain/reports"
	"numerus/internal/domain/workspace"
	"numerus/internal/infrastructure/cache"
	"numerus/internal/infrastructure/http/v1/handlers"
	"numerus/internal/infrastructure/http/v1/middleware"
	"numerus/internal/infrastructure/storage/postgres"
	"numerus/internal/infrastructure/storage/postgres/catalog_repo"
	"numerus/internal/infrastructure/storage/postgres/conversion_repo"
	"numerus/internal/infrastructure/storage/postgres/document_repo"
	"numerus/internal/infrastructure/storage/postgres/register_repo"
	"numerus/internal/infrastructure/storage/postgres/report_repo"
	"numerus/internal/metadata"
	"numerus/pkg/logger"
)

// RouterConfig holds router configuration for multi-tenant architecture.
type RouterConfig struct {
	// TenantManager manages database connections for all tenants
	TenantManager *tenant.Manager

	// MetaPool is connection to meta-database (for health checks)
	MetaPool *pgxpool.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Engine is the numbering facade shared by the document service and the
	// numbering endpoints
	Engine *numbering.Service

	// Repairer sweeps documents stranded on TEMP numbers
	Repairer *numbering.Repairer

	// Flags is the tenant-level feature switchboard
	Flags security.FeatureFlagProvider

	// IdempotencyEnabled enables idempotency middleware
	IdempotencyEnabled bool

	// MetadataRegistry stores entity definitions
	MetadataRegistry *metadata.Registry
}

// NewRouter creates and configures the Gin router for multi-tenant architecture.
func NewRouter(cfg RouterConfig) *gin.Engine {
	// Set Gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth, no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.MetaPool, cfg.TenantManager)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
		health.GET("/tenants", healthHandler.TenantsStats) // Admin endpoint for tenant stats
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Protected endpoints - TenantDB runs first, then Auth
		protected := v1.Group("")
		protected.Use(middleware.TenantDB(cfg.TenantManager)) // 1. Resolve tenant, get DB pool
		protected.Use(middleware.Auth(cfg.JWTValidator))      // 2. Validate JWT
		protected.Use(middleware.UserContext())               // 3. Add UserID to context for domain layer

		// Apply idempotency middleware for mutating operations
		if cfg.IdempotencyEnabled {
			protected.Use(idempotencyMiddleware(10 * time.Minute))
		}

		// Register entity routes
		registerWorkspaceRoutes(protected, cfg)
		registerDocumentRoutes(protected, cfg)
		registerNumberingRoutes(protected, cfg)
		registerRegisterRoutes(protected, cfg)
		registerReportRoutes(protected, cfg)
		registerMetaRoutes(protected, cfg)
	}

	return router
}

// idempotencyMiddleware creates idempotency middleware over the tenant's
// TxManager from context.
func idempotencyMiddleware(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		txm := postgres.MustGetTxManager(c.Request.Context())
		store := postgres.NewIdempotencyStore(txm, ttl)
		middleware.Idempotency(store)(c)
	}
}

// registerWorkspaceRoutes registers the workspace catalog endpoints.
func registerWorkspaceRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	// Note: Repos and services are created once but TxManager is obtained from context per-request
	repo := catalog_repo.NewWorkspaceRepo()
	service := workspace.NewService(repo)
	handler := handlers.NewWorkspaceHandler(baseHandler, service)

	RegisterCatalogRoutes(rg.Group("/workspaces"), handler, "catalog:workspace")
}

// registerDocumentRoutes registers document endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	// Workspace lookups ride a short TTL cache: creation and allocation read
	// the workspace row for numbering settings on every call.
	wsRepo := catalog_repo.NewWorkspaceRepo()
	directory := cache.NewWorkspaceCache(workspace.NewService(wsRepo), cache.DefaultWorkspaceTTL)

	links := conversion.NewService(conversion_repo.NewLinkRepo())

	repo := document_repo.NewDocumentRepo()
	service := document.NewService(document.Config{
		Repo:        repo,
		Engine:      cfg.Engine,
		Workspaces:  directory,
		Conversions: links,
		Flags:       cfg.Flags,
	})

	// Register audit hooks
	service.Hooks().OnBeforeCreate(func(ctx context.Context, doc *entity.Document) error {
		audit.EnrichCreatedByDirect(ctx, &doc.CreatedBy, &doc.UpdatedBy)
		return nil
	})
	service.Hooks().OnBeforeUpdate(func(ctx context.Context, doc *entity.Document) error {
		audit.EnrichUpdatedByDirect(ctx, &doc.UpdatedBy)
		return nil
	})

	handler := handlers.NewDocumentHandler(baseHandler, service)
	RegisterDocumentRoutes(rg.Group("/documents"), handler, "document")
}

// registerNumberingRoutes registers the numbering engine endpoints.
func registerNumberingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	wsRepo := catalog_repo.NewWorkspaceRepo()
	workspaces := workspace.NewService(wsRepo)

	handler := handlers.NewNumberingHandler(baseHandler, cfg.Engine, cfg.Repairer, workspaces, cfg.Flags)

	numGroup := rg.Group("/numbering")
	numGroup.GET("/preview", middleware.RequirePermission("numbering:read"), handler.Preview)
	numGroup.POST("/allocate", middleware.RequirePermission("numbering:allocate"), handler.Allocate)
	numGroup.POST("/repair", middleware.RequirePermission("numbering:repair"), handler.Repair)
}

// registerRegisterRoutes registers sequence register endpoints.
func registerRegisterRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	registers := rg.Group("/registers")
	baseHandler := handlers.NewBaseHandler()

	// Sequence register
	{
		seqRepo := register_repo.NewSequenceRepo()
		seqService := sequence.NewService(seqRepo)
		seqHandler := handlers.NewSequenceHandler(baseHandler, seqService)

		seqGroup := registers.Group("/sequence")
		seqGroup.GET("/balances", middleware.RequirePermission("register:sequence:read"), seqHandler.GetBalances)
		seqGroup.GET("/movements", middleware.RequirePermission("register:sequence:read"), seqHandler.GetMovements)
		seqGroup.GET("/turnovers", middleware.RequirePermission("register:sequence:read"), seqHandler.GetTurnovers)
	}
}

// registerMetaRoutes registers metadata/schema endpoints.
func registerMetaRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.MetadataRegistry == nil {
		return
	}

	handler := handlers.NewMetadataHandler(cfg.MetadataRegistry, cfg.Engine)
	meta := rg.Group("/meta")
	{
		meta.GET("", handler.ListEntities)
		meta.GET("/:name", handler.GetEntity)
	}
}

// registerReportRoutes registers report endpoints.
func registerReportRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	reportsGroup := rg.Group("/reports")
	baseHandler := handlers.NewBaseHandler()

	reportRepo := report_repo.NewReportRepo()
	reportService := reports.NewService(reportRepo)
	reportHandler := handlers.NewReportsHandler(baseHandler, reportService)

	reportsGroup.GET("/document-journal", middleware.RequirePermission("report:documents:read"), reportHandler.GetDocumentJournal)
	reportsGroup.GET("/numbering-gaps", middleware.RequirePermission("report:numbering:read"), reportHandler.GetNumberingGaps)
}
