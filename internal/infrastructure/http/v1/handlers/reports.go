package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/domain/reports"
	"numerus/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetDocumentJournal handles GET /reports/document-journal
func (h *ReportsHandler) GetDocumentJournal(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.DocumentJournalRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return
	}

	filter := reports.DocumentJournalFilter{
		NumberContains: req.NumberContains,
		IncludeDeleted: req.IncludeDeleted,
		SortBy:         req.SortBy,
		SortOrder:      req.SortOrder,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}

	// Parse dates
	if req.FromDate != nil {
		if t, err := time.Parse(time.RFC3339, *req.FromDate); err == nil {
			filter.FromDate = &t
		}
	}
	if req.ToDate != nil {
		if t, err := time.Parse(time.RFC3339, *req.ToDate); err == nil {
			filter.ToDate = &t
		}
	}

	// Parse workspace IDs
	for _, wsStr := range req.WorkspaceIDs {
		if wsID, err := id.Parse(wsStr); err == nil {
			filter.WorkspaceIDs = append(filter.WorkspaceIDs, wsID)
		}
	}

	// Kinds and statuses are validated by the service
	for _, k := range req.Kinds {
		filter.Kinds = append(filter.Kinds, entity.Kind(k))
	}
	for _, s := range req.Statuses {
		filter.Statuses = append(filter.Statuses, entity.Status(s))
	}

	journal, err := h.service.GetDocumentJournal(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromDocumentJournal(journal))
}

// GetNumberingGaps handles GET /reports/numbering-gaps
func (h *ReportsHandler) GetNumberingGaps(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.NumberingGapsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return
	}

	workspaceID, err := id.Parse(req.WorkspaceID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid workspaceId format"))
		return
	}

	filter := reports.NumberingGapsFilter{
		WorkspaceID: workspaceID,
		Kind:        entity.Kind(req.Kind),
		MaxGaps:     req.MaxGaps,
	}

	report, err := h.service.GetNumberingGaps(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromNumberingGaps(report))
}

// RegisterRoutes registers report routes.
func (h *ReportsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/document-journal", h.GetDocumentJournal)
	rg.GET("/numbering-gaps", h.GetNumberingGaps)
}
