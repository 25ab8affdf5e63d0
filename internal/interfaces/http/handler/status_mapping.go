package handler

import (
	"github.com/gin-gonic/gin"

	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/interfaces/http/middleware"
	"github.com/oliehub/backend/internal/interfaces/http/router"
)

// StatusMappingHandler edits the ERP status to production stage table
type StatusMappingHandler struct {
	BaseHandler
	translator StatusMappingService
}

// NewStatusMappingHandler creates a new StatusMappingHandler
func NewStatusMappingHandler(translator StatusMappingService) *StatusMappingHandler {
	return &StatusMappingHandler{translator: translator}
}

// TranslationResponse is the stage a raw status resolves to
type TranslationResponse struct {
	Status string                      `json:"status" example:"Em produção"`
	Stage  integration.ProductionStage `json:"stage" example:"montagem"`
}

// RegisterRoutes registers the status mapping routes
func (h *StatusMappingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("status-mappings", "/status-mappings").
		GET("", h.List).
		PUT("", h.Set).
		GET("/translate", h.Translate).
		POST("/reset", h.Reset).
		PUT("/:raw", h.Set).
		DELETE("/:raw", h.Delete).
		RegisterRoutes(rg)
}

// List godoc
// @ID           listStatusMappings
// @Summary      List status mappings
// @Tags         status-mappings
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[[]integration.StatusMapping]
// @Router       /api/v1/status-mappings [get]
func (h *StatusMappingHandler) List(c *gin.Context) {
	h.Success(c, h.translator.ListMappings())
}

// Set godoc
// @ID           setStatusMapping
// @Summary      Create or replace a status mapping
// @Description  The raw status comes from the path or the body; keys are matched case-insensitively
// @Tags         status-mappings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        raw     path string false "Raw ERP status"
// @Param        request body appintegration.SetStatusMappingRequest true "Mapping"
// @Success      200 {object} APIResponse[integration.StatusMapping]
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/status-mappings/{raw} [put]
func (h *StatusMappingHandler) Set(c *gin.Context) {
	var req appintegration.SetStatusMappingRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	raw := c.Param("raw")
	if raw == "" {
		raw = req.RawStatus
	}

	mapping, err := h.translator.SetMapping(c.Request.Context(), raw, integration.ProductionStage(req.Stage))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mapping)
}

// Delete godoc
// @ID           deleteStatusMapping
// @Summary      Delete a status mapping
// @Description  Statuses without a mapping fall back to the default stage
// @Tags         status-mappings
// @Security     BearerAuth
// @Param        raw path string true "Raw ERP status"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/status-mappings/{raw} [delete]
func (h *StatusMappingHandler) Delete(c *gin.Context) {
	if err := h.translator.DeleteMapping(c.Request.Context(), c.Param("raw")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Reset godoc
// @ID           resetStatusMappings
// @Summary      Restore the default status mappings
// @Tags         status-mappings
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[[]integration.StatusMapping]
// @Router       /api/v1/status-mappings/reset [post]
func (h *StatusMappingHandler) Reset(c *gin.Context) {
	if err := h.translator.ResetDefaults(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.translator.ListMappings())
}

// Translate godoc
// @ID           translateStatus
// @Summary      Resolve a raw status to its production stage
// @Tags         status-mappings
// @Produce      json
// @Security     BearerAuth
// @Param        status query string true "Raw ERP status"
// @Success      200 {object} APIResponse[TranslationResponse]
// @Router       /api/v1/status-mappings/translate [get]
func (h *StatusMappingHandler) Translate(c *gin.Context) {
	raw := c.Query("status")
	h.Success(c, TranslationResponse{Status: raw, Stage: h.translator.Translate(raw)})
}
