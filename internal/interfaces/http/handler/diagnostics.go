package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oliehub/backend/internal/interfaces/http/router"
)

// DiagnosticsHandler reports credential and upstream health
type DiagnosticsHandler struct {
	BaseHandler
	credentials CredentialReporter
	upstreams   UpstreamChecker
}

// NewDiagnosticsHandler creates a new DiagnosticsHandler
func NewDiagnosticsHandler(credentials CredentialReporter, upstreams UpstreamChecker) *DiagnosticsHandler {
	return &DiagnosticsHandler{credentials: credentials, upstreams: upstreams}
}

// RegisterRoutes registers the diagnostics routes
func (h *DiagnosticsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("diagnostics", "/diagnostics").
		GET("/credentials", h.Credentials).
		GET("/upstreams", h.Upstreams).
		RegisterRoutes(rg)
}

// Credentials godoc
// @ID           diagnoseCredentials
// @Summary      Credential presence and length
// @Description  Never returns credential values
// @Tags         diagnostics
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[[]config.CredentialStatus]
// @Router       /api/v1/diagnostics/credentials [get]
func (h *DiagnosticsHandler) Credentials(c *gin.Context) {
	h.Success(c, h.credentials())
}

// Upstreams godoc
// @ID           diagnoseUpstreams
// @Summary      Ping the ERP and the storefront
// @Tags         diagnostics
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[[]appintegration.UpstreamHealth]
// @Router       /api/v1/diagnostics/upstreams [get]
func (h *DiagnosticsHandler) Upstreams(c *gin.Context) {
	h.Success(c, h.upstreams.CheckUpstreams(c.Request.Context()))
}
