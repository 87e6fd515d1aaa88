package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"numerus/internal/core/apperror"
	"numerus/internal/core/entity"
	"numerus/internal/core/id"
	"numerus/internal/domain/registers/sequence"
	"numerus/internal/infrastructure/http/v1/dto"
)

// SequenceHandler handles HTTP requests for the sequence register.
type SequenceHandler struct {
	*BaseHandler
	service *sequence.Service
}

// NewSequenceHandler creates a new sequence register handler.
func NewSequenceHandler(base *BaseHandler, service *sequence.Service) *SequenceHandler {
	return &SequenceHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetBalances handles GET /registers/sequence/balances
func (h *SequenceHandler) GetBalances(c *gin.Context) {
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

	balances, err := h.service.Balances(ctx, workspaceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.SequenceBalanceResponse, len(balances))
	for i, b := range balances {
		items[i] = dto.FromSequenceBalance(b)
	}

	c.JSON(http.StatusOK, dto.SequenceBalanceListResponse{Items: items})
}

// GetMovements handles GET /registers/sequence/movements
func (h *SequenceHandler) GetMovements(c *gin.Context) {
	ctx := c.Request.Context()

	filter := sequence.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	// Parse optional filters
	if wsStr := c.Query("workspaceId"); wsStr != "" {
		parsed, err := id.Parse(wsStr)
		if err == nil {
			filter.WorkspaceID = &parsed
		}
	}

	if docStr := c.Query("documentId"); docStr != "" {
		parsed, err := id.Parse(docStr)
		if err == nil {
			filter.DocumentID = &parsed
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

	for _, evStr := range c.QueryArray("event") {
		ev := entity.SequenceEventType(evStr)
		if !ev.Valid() {
			h.Error(c, apperror.NewValidation("unknown sequence event type").WithDetail("event", evStr))
			return
		}
		filter.Events = append(filter.Events, ev)
	}

	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.From = &parsed
		}
	}

	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.To = &parsed
		}
	}

	movements, err := h.service.Movements(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.SequenceEventResponse, len(movements))
	for i, m := range movements {
		items[i] = dto.FromSequenceEvent(m)
	}

	c.JSON(http.StatusOK, dto.SequenceEventListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// GetTurnovers handles GET /registers/sequence/turnovers
func (h *SequenceHandler) GetTurnovers(c *gin.Context) {
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

	fromStr := c.Query("fromDate")
	toStr := c.Query("toDate")
	if fromStr == "" || toStr == "" {
		h.Error(c, apperror.NewValidation("fromDate and toDate are required"))
		return
	}

	fromDate, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid fromDate format, expected RFC3339"))
		return
	}

	toDate, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid toDate format, expected RFC3339"))
		return
	}

	filter := sequence.TurnoverFilter{
		WorkspaceID: workspaceID,
		From:        fromDate,
		To:          toDate,
		Bucket:      c.DefaultQuery("bucket", "day"),
	}

	if kindStr := c.Query("kind"); kindStr != "" {
		kind := entity.Kind(kindStr)
		if !kind.Valid() {
			h.Error(c, apperror.NewValidation("unknown document kind").WithDetail("kind", kindStr))
			return
		}
		filter.Kind = &kind
	}

	buckets, err := h.service.Turnovers(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	// TurnoverBucket carries its own json tags; no mapping layer needed.
	c.JSON(http.StatusOK, gin.H{"items": buckets})
}

// RegisterRoutes registers sequence register routes.
func (h *SequenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balances", h.GetBalances)
	rg.GET("/movements", h.GetMovements)
	rg.GET("/turnovers", h.GetTurnovers)
}
