package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/core/security"
	"numerus/internal/domain/numbering"
	"numerus/internal/domain/workspace"
	"numerus/internal/infrastructure/http/v1/dto"
)

// NumberingHandler exposes the numbering facade over HTTP: next-number
// preview, direct allocation for callers that manage document rows
// themselves, and the TEMP-number sweep.
type NumberingHandler struct {
	*BaseHandler
	engine     *numbering.Service
	repairer   *numbering.Repairer
	workspaces *workspace.Service
	flags      security.FeatureFlagProvider
}

// NewNumberingHandler creates a new numbering handler.
func NewNumberingHandler(
	base *BaseHandler,
	engine *numbering.Service,
	repairer *numbering.Repairer,
	workspaces *workspace.Service,
	flags security.FeatureFlagProvider,
) *NumberingHandler {
	return &NumberingHandler{
		BaseHandler: base,
		engine:      engine,
		repairer:    repairer,
		workspaces:  workspaces,
		flags:       flags,
	}
}

// Preview handles GET /numbering/preview - the next official number for a
// scope, without consuming it.
func (h *NumberingHandler) Preview(c *gin.Context) {
	ctx := c.Request.Context()

	wsStr := c.Query("workspaceId")
	if wsStr == "" {
		h.Error(c, apperror.NewValidation("workspaceId is required"))
		return
	}
	workspaceID, err := id.Parse(wsStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid workspaceId format"))
		return
	}

	ws, err := h.workspaces.RequireLive(ctx, workspaceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if h.flags != nil && !h.flags.IsEnabled(ctx, security.FlagDraftPreview) {
		h.Error(c, apperror.NewValidation("draft preview is disabled for this tenant").
			WithDetail("flag", security.FlagDraftPreview))
		return
	}
	if !ws.DraftPreviewEnabled {
		h.Error(c, apperror.NewValidation("draft preview is disabled for this workspace").
			WithDetail("workspaceId", ws.ID.String()))
		return
	}

	preview, err := h.engine.Preview(ctx, workspaceID, entity.Kind(c.Query("kind")))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// Allocate handles POST /numbering/allocate. DRAFT targets get a
// placeholder string; official targets run the full transition and need a
// documentId.
func (h *NumberingHandler) Allocate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AllocateNumberRequest
	if !h.BindJSON(c, &req) {
		return
	}

	workspaceID, err := id.Parse(req.WorkspaceID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid workspaceId format"))
		return
	}

	ws, err := h.workspaces.RequireLive(ctx, workspaceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	// Same gates the document service applies on its own create path.
	if req.ManualNumber != "" {
		if h.flags != nil && !h.flags.IsEnabled(ctx, security.FlagManualNumbers) {
			h.Error(c, apperror.NewValidation("manual numbers are disabled for this tenant").
				WithDetail("flag", security.FlagManualNumbers))
			return
		}
		if !ws.AllowManualNumbers {
			h.Error(c, apperror.NewValidation("manual numbers are disabled for this workspace").
				WithDetail("workspaceId", ws.ID.String()))
			return
		}
	}

	areq := numbering.AllocationRequest{
		WorkspaceID:   workspaceID,
		Kind:          entity.Kind(req.Kind),
		Prefix:        req.Prefix,
		ManualNumber:  req.ManualNumber,
		CurrentStatus: entity.Status(req.CurrentStatus),
		TargetStatus:  entity.Status(req.TargetStatus),
	}
	if areq.TargetStatus == "" {
		areq.TargetStatus = entity.StatusDraft
	}
	if req.DocumentID != "" {
		docID, err := id.Parse(req.DocumentID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid documentId format"))
			return
		}
		areq.DocumentID = docID
	}

	alloc, err := h.engine.Allocate(ctx, areq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CompleteIdempotency(c, http.StatusOK, "application/json", alloc)
	c.JSON(http.StatusOK, alloc)
}

// Repair handles POST /numbering/repair - sweeps documents resting with a
// TEMP number. Body is optional; without it the whole tenant is swept.
func (h *NumberingHandler) Repair(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RepairRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}

	var workspaceID *id.ID
	if req.WorkspaceID != "" {
		parsed, err := id.Parse(req.WorkspaceID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid workspaceId format"))
			return
		}
		workspaceID = &parsed
	}

	report, err := h.repairer.Sweep(ctx, workspaceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CompleteIdempotency(c, http.StatusOK, "application/json", report)
	c.JSON(http.StatusOK, report)
}

// RegisterRoutes registers numbering routes. Permission checks are applied
// by the router.
func (h *NumberingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/preview", h.Preview)
	rg.POST("/allocate", h.Allocate)
	rg.POST("/repair", h.Repair)
}
