package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"numerus/internal/core/apperror"
	"numerus/internal/core/id"
	"numerus/internal/domain"
	domainFilter "numerus/internal/domain/filter"
	"numerus/internal/domain/workspace"
	"numerus/internal/infrastructure/http/v1/dto"
)

// WorkspaceHandler handles HTTP requests for the workspace catalog.
// In Database-per-Tenant architecture, tenantID is not needed (isolation is physical).
type WorkspaceHandler struct {
	*BaseHandler
	service *workspace.Service
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(base *BaseHandler, service *workspace.Service) *WorkspaceHandler {
	return &WorkspaceHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /workspaces - list with filtering and pagination.
func (h *WorkspaceHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "name")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if parentID := c.Query("parentId"); parentID != "" {
		filter.ParentID = &parentID
	}

	if isFolder := c.Query("isFolder"); isFolder != "" {
		val := isFolder == "true"
		filter.IsFolder = &val
	}

	if filterJSON := c.Query("filter"); filterJSON != "" {
		var advFilters []domainFilter.Item
		if err := json.Unmarshal([]byte(filterJSON), &advFilters); err != nil {
			h.Error(c, apperror.NewValidation("invalid filter format (json expected)"))
			return
		}
		filter.AdvancedFilters = advFilters
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.WorkspaceResponse, len(result.Items))
	for i, ws := range result.Items {
		items[i] = dto.FromWorkspace(ws)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	workspaceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	ws, err := h.service.GetByID(ctx, workspaceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromWorkspace(ws))
}

// Create handles POST /workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateWorkspaceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ws := req.ToEntity()
	if err := h.service.Create(ctx, ws); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromWorkspace(ws)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Update handles PUT /workspaces/:id
func (h *WorkspaceHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	workspaceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateWorkspaceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.GetByID(ctx, workspaceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(existing)

	if err := h.service.Update(ctx, existing); err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromWorkspace(existing)
	h.CompleteIdempotency(c, http.StatusOK, "application/json", response)
	c.JSON(http.StatusOK, response)
}

// Delete handles DELETE /workspaces/:id - soft delete. Retirement is
// refused while live documents still reference the workspace.
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	workspaceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, workspaceID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetDeletionMark handles POST /workspaces/:id/deletion-mark
func (h *WorkspaceHandler) SetDeletionMark(c *gin.Context) {
	ctx := c.Request.Context()

	workspaceID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SetDeletionMarkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetDeletionMark(ctx, workspaceID, req.Marked); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "deletion mark updated")
}

// GetTree handles GET /workspaces/tree - branch offices nest under their
// head office, so the catalog is hierarchical.
func (h *WorkspaceHandler) GetTree(c *gin.Context) {
	ctx := c.Request.Context()

	var rootID *id.ID
	if rootStr := c.Query("rootId"); rootStr != "" {
		parsed, err := id.Parse(rootStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid rootId format"))
			return
		}
		rootID = &parsed
	}

	items, err := h.service.GetTree(ctx, rootID)
	if err != nil {
		h.Error(c, err)
		return
	}

	dtos := make([]dto.WorkspaceResponse, len(items))
	for i, ws := range items {
		dtos[i] = dto.FromWorkspace(ws)
	}

	c.JSON(http.StatusOK, gin.H{"items": dtos})
}
