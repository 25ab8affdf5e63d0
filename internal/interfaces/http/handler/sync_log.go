package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/infrastructure/export"
	"github.com/oliehub/backend/internal/interfaces/http/middleware"
	"github.com/oliehub/backend/internal/interfaces/http/router"
)

// SyncLogHandler serves the sync audit log
type SyncLogHandler struct {
	BaseHandler
	runner   SyncRunner
	exporter AuditExporter
}

// NewSyncLogHandler creates a new SyncLogHandler
func NewSyncLogHandler(runner SyncRunner, exporter AuditExporter) *SyncLogHandler {
	return &SyncLogHandler{runner: runner, exporter: exporter}
}

// RegisterRoutes registers the audit log routes
func (h *SyncLogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("sync-logs", "/sync-logs").
		GET("", h.List).
		GET("/recent", h.Recent).
		GET("/export.csv", h.ExportCSV).
		GET("/export.xlsx", h.ExportXLSX).
		POST("/archive", h.Archive).
		RegisterRoutes(rg)
}

// List godoc
// @ID           listSyncLogs
// @Summary      List sync log entries
// @Description  Pages through the durable audit log, newest first
// @Tags         sync-logs
// @Produce      json
// @Security     BearerAuth
// @Param        type      query string false "Sync type" Enums(orders, products, customers)
// @Param        status    query string false "Status" Enums(success, error)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(50)
// @Success      200 {object} APIResponse[[]integration.SyncLogEntry]
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/sync-logs [get]
func (h *SyncLogHandler) List(c *gin.Context) {
	var query appintegration.SyncLogListFilter
	if !middleware.BindQuery(c, &query) {
		return
	}
	filter := query.ToDomainFilter()

	entries, total, err := h.runner.ListLogs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, filter.Page, filter.PageSize)
}

// Recent godoc
// @ID           recentSyncLogs
// @Summary      Latest sync log entries
// @Description  Served from the cache when available
// @Tags         sync-logs
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Number of entries" default(20)
// @Success      200 {object} APIResponse[[]integration.SyncLogEntry]
// @Router       /api/v1/sync-logs/recent [get]
func (h *SyncLogHandler) Recent(c *gin.Context) {
	entries, err := h.runner.RecentLogs(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// ExportCSV godoc
// @ID           exportSyncLogsCSV
// @Summary      Export the audit log as CSV
// @Tags         sync-logs
// @Produce      text/csv
// @Security     BearerAuth
// @Success      200 {file} file
// @Router       /api/v1/sync-logs/export.csv [get]
func (h *SyncLogHandler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.exporter.ExportCSV(c.Request.Context(), &buf); err != nil {
		h.HandleError(c, err)
		return
	}
	h.attachment(c, "csv", export.ContentTypeCSV, buf.Bytes())
}

// ExportXLSX godoc
// @ID           exportSyncLogsXLSX
// @Summary      Export the audit log as a spreadsheet
// @Tags         sync-logs
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Success      200 {file} file
// @Router       /api/v1/sync-logs/export.xlsx [get]
func (h *SyncLogHandler) ExportXLSX(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.exporter.ExportXLSX(c.Request.Context(), &buf); err != nil {
		h.HandleError(c, err)
		return
	}
	h.attachment(c, "xlsx", export.ContentTypeXLSX, buf.Bytes())
}

// Archive godoc
// @ID           archiveSyncLogs
// @Summary      Archive the audit log to object storage
// @Description  Uploads a CSV export and returns a time-limited download link
// @Tags         sync-logs
// @Produce      json
// @Security     BearerAuth
// @Success      201 {object} APIResponse[appintegration.ArchiveResult]
// @Failure      502 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /api/v1/sync-logs/archive [post]
func (h *SyncLogHandler) Archive(c *gin.Context) {
	result, err := h.exporter.Archive(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, APIResponse[*appintegration.ArchiveResult]{Success: true, Data: result})
}

// attachment writes an export body; the whole body is rendered before the
// first byte so a failure can still answer with a JSON error
func (h *SyncLogHandler) attachment(c *gin.Context, ext, contentType string, body []byte) {
	name := fmt.Sprintf("sync-logs-%s.%s", time.Now().UTC().Format("20060102-150405"), ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, body)
}
