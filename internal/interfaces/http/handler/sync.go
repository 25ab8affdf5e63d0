package handler

import (
	"github.com/gin-gonic/gin"

	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/interfaces/http/dto"
	"github.com/oliehub/backend/internal/interfaces/http/middleware"
	"github.com/oliehub/backend/internal/interfaces/http/router"
)

// SyncHandler triggers syncs and manages the background schedule
type SyncHandler struct {
	BaseHandler
	runner   SyncRunner
	schedule ScheduleController
}

// NewSyncHandler creates a new SyncHandler. schedule may be nil when the
// background sync is not configured.
func NewSyncHandler(runner SyncRunner, schedule ScheduleController) *SyncHandler {
	return &SyncHandler{runner: runner, schedule: schedule}
}

// RegisterRoutes registers the sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("sync", "/sync").
		POST("", h.SyncAll).
		GET("/schedule", h.GetSchedule).
		PUT("/schedule", h.UpdateSchedule).
		POST("/:type", h.SyncOne).
		RegisterRoutes(rg)
}

// SyncAll godoc
// @ID           syncAll
// @Summary      Run every sync type
// @Description  Runs orders, products and customers independently. One failing type never aborts the others.
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[[]appintegration.SyncReport]
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/sync [post]
func (h *SyncHandler) SyncAll(c *gin.Context) {
	reports := h.runner.SyncAll(c.Request.Context(), integration.TriggerManual)
	h.Success(c, reports)
}

// SyncOne godoc
// @ID           syncOne
// @Summary      Run one sync type
// @Description  Runs a single sync type. Upstream failures are reported in the body; a sync already in progress answers 409.
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        type path string true "Sync type" Enums(orders, products, customers)
// @Success      200 {object} APIResponse[appintegration.SyncReport]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/sync/{type} [post]
func (h *SyncHandler) SyncOne(c *gin.Context) {
	syncType, err := integration.ParseSyncType(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.runner.Sync(c.Request.Context(), syncType, integration.TriggerManual)
	if appintegration.IsSkipped(err) {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetSchedule godoc
// @ID           getSyncSchedule
// @Summary      Background sync status
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} APIResponse[scheduler.ScheduleStatus]
// @Failure      503 {object} ErrorResponse
// @Router       /api/v1/sync/schedule [get]
func (h *SyncHandler) GetSchedule(c *gin.Context) {
	if h.schedule == nil {
		h.ErrorWithCode(c, dto.ErrCodeConfiguration, "Background sync is not configured")
		return
	}
	h.Success(c, h.schedule.Status())
}

// UpdateSchedule godoc
// @ID           updateSyncSchedule
// @Summary      Enable, disable or retime the background sync
// @Description  Disabling stops future passes; a pass already running finishes.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body appintegration.UpdateScheduleRequest true "Schedule changes"
// @Success      200 {object} APIResponse[scheduler.ScheduleStatus]
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/sync/schedule [put]
func (h *SyncHandler) UpdateSchedule(c *gin.Context) {
	if h.schedule == nil {
		h.ErrorWithCode(c, dto.ErrCodeConfiguration, "Background sync is not configured")
		return
	}

	var req appintegration.UpdateScheduleRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	if interval := req.Interval(); interval > 0 {
		if err := h.schedule.SetInterval(interval); err != nil {
			h.HandleError(c, err)
			return
		}
	}
	if req.Enabled != nil {
		if *req.Enabled {
			h.schedule.Enable()
		} else {
			h.schedule.Disable()
		}
	}
	h.Success(c, h.schedule.Status())
}
