package handler

import (
	"github.com/gin-gonic/gin"

	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/interfaces/http/middleware"
	"github.com/oliehub/backend/internal/interfaces/http/router"
)

// OrderHandler serves the canonical orders
type OrderHandler struct {
	BaseHandler
	orders OrderReader
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderReader) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes registers the order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("orders", "/orders").
		GET("", h.Board).
		GET("/list", h.List).
		RegisterRoutes(rg)
}

// Board godoc
// @ID           orderBoard
// @Summary      Workshop board
// @Description  ERP orders grouped by production stage. A stage limits the board to that column.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        stage query string false "Production stage" Enums(corte, costura, montagem, acabamento, pronto)
// @Success      200 {object} APIResponse[[]appintegration.KanbanColumn]
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/orders [get]
func (h *OrderHandler) Board(c *gin.Context) {
	var stage integration.ProductionStage
	if raw := c.Query("stage"); raw != "" {
		parsed, err := integration.ParseProductionStage(raw)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		stage = parsed
	}

	columns, err := h.orders.Board(c.Request.Context(), stage)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, columns)
}

// List godoc
// @ID           listOrders
// @Summary      List orders
// @Description  Pages through orders from every source
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        source    query string false "Source" Enums(tiny, vnda, other)
// @Param        stage     query string false "Production stage"
// @Param        state     query string false "Lifecycle state"
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(50)
// @Param        sort_by   query string false "Sort column" Enums(updated_at, created_at, external_id, total_value, production_stage)
// @Param        sort_dir  query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]appintegration.OrderCard]
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/orders/list [get]
func (h *OrderHandler) List(c *gin.Context) {
	var query appintegration.OrderListFilter
	if !middleware.BindQuery(c, &query) {
		return
	}
	filter := query.ToDomainFilter()

	orders, total, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appintegration.ToOrderCards(orders), total, filter.Page, filter.PageSize)
}
