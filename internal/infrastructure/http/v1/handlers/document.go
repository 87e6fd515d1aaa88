package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/domain"
	"numerus/internal/domain/document"
	"numerus/internal/infrastructure/http/v1/dto"
)

// DocumentHandler handles HTTP requests for documents of every kind.
// Kind is a field, not a route: one set of endpoints serves quotes,
// invoices and credit notes alike.
type DocumentHandler struct {
	*BaseHandler
	service *document.Service
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, service *document.Service) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /documents. Documents are always born DRAFT; an
// optional manualNumber pins the placeholder base when the workspace
// allows it.
func (h *DocumentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity()
	if err := h.service.Create(ctx, doc, req.ManualNumber); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromDocument(doc)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromDocument(doc))
}

// Update handles PUT /documents/:id, mutable fields only. Number and
// status changes go through /transition.
func (h *DocumentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(doc)

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromDocument(doc)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}

// Delete handles DELETE /documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /documents - cross-kind listing with filtering.
func (h *DocumentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := document.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"
	filter.Prefix = c.Query("prefix")

	// Parse optional filters
	if wsStr := c.Query("workspaceId"); wsStr != "" {
		parsed, err := id.Parse(wsStr)
		if err == nil {
			filter.WorkspaceID = &parsed
		}
	}

	if kindStr := c.Query("kind"); kindStr != "" {
		kind := entity.Kind(kindStr)
		if !kind.Valid() {
			h.Error(c, apperror.NewValidation("unknown document kind").WithDetail("kind", kindStr))
			return
		}
		filter.Kind = &kind
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := entity.Status(statusStr)
		if !status.Valid() {
			h.Error(c, apperror.NewValidation("unknown document status").WithDetail("status", statusStr))
			return
		}
		filter.Status = &status
	}

	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}

	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.respondList(c, result)
}

// Transition handles POST /documents/:id/transition, the lifecycle
// endpoint. Number and status change together or not at all.
func (h *DocumentHandler) Transition(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.TransitionDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	to := entity.Status(req.To)
	if !to.Valid() {
		h.Error(c, apperror.NewValidation("unknown document status").WithDetail("to", req.To))
		return
	}

	from := entity.Status(req.From)
	if req.From != "" && !from.Valid() {
		h.Error(c, apperror.NewValidation("unknown document status").WithDetail("from", req.From))
		return
	}

	result, err := h.service.Transition(ctx, docID, from, to, req.ManualNumber)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CompleteIdempotency(c, http.StatusOK, "application/json", result)
	c.JSON(http.StatusOK, result)
}

// Convert handles POST /documents/:id/convert. It derives a new DRAFT
// from an official document and locks the source.
func (h *DocumentHandler) Convert(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.ConvertDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	targetKind := entity.Kind(req.TargetKind)
	if !targetKind.Valid() {
		h.Error(c, apperror.NewValidation("unknown document kind").WithDetail("targetKind", req.TargetKind))
		return
	}

	derived, err := h.service.Convert(ctx, docID, targetKind)
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromDocument(derived)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// RegisterRoutes registers document routes.
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/transition", h.Transition)
	rg.POST("/:id/convert", h.Convert)
}

// respondList sends paginated list response.
func (h *DocumentHandler) respondList(c *gin.Context, result domain.ListResult[*entity.Document]) {
	items := make([]*dto.DocumentResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromDocument(doc)
	}

	c.JSON(http.StatusOK, dto.DocumentListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
