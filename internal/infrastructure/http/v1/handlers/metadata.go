package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"numerus/internal/core/entity"
	"numerus/internal/core/number"
	"numerus/internal/domain/numbering"
	"numerus/internal/metadata"
)

// MetadataHandler serves the self-describing API surface: entity shapes
// from the registry plus the numbering rules of each document kind.
type MetadataHandler struct {
	registry *metadata.Registry
	engine   *numbering.Service
}

func NewMetadataHandler(registry *metadata.Registry, engine *numbering.Service) *MetadataHandler {
	return &MetadataHandler{
		registry: registry,
		engine:   engine,
	}
}

// ListEntities returns all registered entity shapes plus the numbering
// constants clients need to render numbers.
// GET /api/v1/meta
func (h *MetadataHandler) ListEntities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"entities": h.registry.List(),
		"kinds":    entity.Kinds(),
		"statuses": entity.Statuses(),
		"numbering": gin.H{
			"width":       number.DefaultWidth,
			"maxValue":    number.MaxValue,
			"draftSuffix": number.DraftSuffix,
			"strategy":    h.engine.Strategy(),
		},
	})
}

// GetEntity returns the full metadata for one entity, or the transition
// table when the name is a document kind.
// GET /api/v1/meta/:name
func (h *MetadataHandler) GetEntity(c *gin.Context) {
	name := c.Param("name")

	if def, ok := h.registry.Get(name); ok {
		c.JSON(http.StatusOK, def)
		return
	}

	if kind := entity.Kind(name); kind.Valid() {
		c.JSON(http.StatusOK, gin.H{
			"kind":        kind,
			"statuses":    entity.Statuses(),
			"transitions": h.engine.Machine().Describe(kind),
		})
		return
	}

	c.Status(http.StatusNotFound)
}
