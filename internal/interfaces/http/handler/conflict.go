package handler

import (
	"github.com/gin-gonic/gin"

	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/interfaces/http/middleware"
	"github.com/oliehub/backend/internal/interfaces/http/router"
)

// ConflictHandler serves price conflicts between the ERP and the storefront
type ConflictHandler struct {
	BaseHandler
	conflicts ConflictService
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(conflicts ConflictService) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts}
}

// RegisterRoutes registers the conflict routes
func (h *ConflictHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("conflicts", "/conflicts").
		GET("", h.List).
		POST("/detect", h.Detect).
		GET("/resolutions", h.Resolutions).
		POST("/:sku/resolve", h.Resolve).
		RegisterRoutes(rg)
}

// List godoc
// @ID           listConflicts
// @Summary      Pending price conflicts
// @Description  Conflicts found by the last detection run that are not resolved yet
// @Tags         conflicts
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[[]integration.ConflictRecord]
// @Router       /api/v1/conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	h.Success(c, h.conflicts.Pending())
}

// Detect godoc
// @ID           detectConflicts
// @Summary      Compare prices between both sources
// @Tags         conflicts
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[[]integration.ConflictRecord]
// @Failure      502 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /api/v1/conflicts/detect [post]
func (h *ConflictHandler) Detect(c *gin.Context) {
	records, err := h.conflicts.DetectConflicts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// Resolve godoc
// @ID           resolveConflict
// @Summary      Pick the winning price for a SKU
// @Description  The winning price is kept on later syncs until a new conflict appears
// @Tags         conflicts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        sku     path string true "Product SKU"
// @Param        request body appintegration.ResolveConflictRequest true "Winning source"
// @Success      200 {object} APIResponse[integration.ConflictResolution]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/conflicts/{sku}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	var req appintegration.ResolveConflictRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	source, err := integration.ParseSource(req.Source)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resolution, err := h.conflicts.Resolve(c.Request.Context(), c.Param("sku"), source)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resolution)
}

// Resolutions godoc
// @ID           listConflictResolutions
// @Summary      Recent conflict resolutions
// @Tags         conflicts
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Number of entries" default(50)
// @Success      200 {object} APIResponse[[]integration.ConflictResolution]
// @Router       /api/v1/conflicts/resolutions [get]
func (h *ConflictHandler) Resolutions(c *gin.Context) {
	resolutions, err := h.conflicts.ListResolutions(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resolutions)
}
