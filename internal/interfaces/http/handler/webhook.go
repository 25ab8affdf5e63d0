package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/ecommerce/vnda"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/interfaces/http/router"
)

const (
	// WebhookTokenHeader carries the shared webhook secret
	WebhookTokenHeader = "X-Webhook-Token"
	// VndaWebhookPath is where storefront deliveries arrive
	VndaWebhookPath = "/webhooks/vnda"
)

// WebhookHandler receives storefront deliveries. The storefront retries on
// anything but 200, so every delivery is acknowledged with 200 and the
// outcome is reported in the body. Throttling and the body cap are applied
// here rather than by middleware for the same reason.
type WebhookHandler struct {
	BaseHandler
	receiver WebhookReceiver
	secret   string
	allow    func(key string) bool
	maxBody  int64
}

// WebhookOption configures a WebhookHandler
type WebhookOption func(*WebhookHandler)

// WithWebhookThrottle limits deliveries per client IP. allow reports
// whether a delivery from key may proceed.
func WithWebhookThrottle(allow func(key string) bool) WebhookOption {
	return func(h *WebhookHandler) { h.allow = allow }
}

// WithWebhookMaxBody caps the delivery body in bytes
func WithWebhookMaxBody(n int64) WebhookOption {
	return func(h *WebhookHandler) { h.maxBody = n }
}

// NewWebhookHandler creates a new WebhookHandler. An empty secret disables
// the token check.
func NewWebhookHandler(receiver WebhookReceiver, secret string, opts ...WebhookOption) *WebhookHandler {
	h := &WebhookHandler{receiver: receiver, secret: secret}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	router.NewDomainGroup("webhooks", "/webhooks").
		POST("/vnda", h.Vnda).
		RegisterRoutes(rg)
}

// Vnda godoc
// @ID           vndaWebhook
// @Summary      Receive a storefront delivery
// @Description  Always answers 200. The ack status is processed, duplicate, ignored or failed.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        token    query  string false "Shared secret"
// @Param        resource query  string false "Resource when the payload has no header"
// @Param        event    query  string false "Event when the payload has no header"
// @Success      200 {object} APIResponse[integration.WebhookAck]
// @Router       /webhooks/vnda [post]
func (h *WebhookHandler) Vnda(c *gin.Context) {
	log := logger.GetGinLogger(c)
	resource, event := c.Query("resource"), c.Query("event")

	if h.allow != nil && !h.allow(c.ClientIP()) {
		log.Warn("Webhook throttled", zap.String("client_ip", c.ClientIP()))
		h.ack(c, integration.WebhookAck{
			Status:   integration.AckFailed,
			Resource: resource,
			Event:    event,
			Message:  "too many deliveries, try again later",
		})
		return
	}

	if h.maxBody > 0 {
		if c.Request.ContentLength > h.maxBody {
			log.Warn("Webhook body too large", zap.Int64("content_length", c.Request.ContentLength))
			h.ack(c, integration.WebhookAck{
				Status:   integration.AckFailed,
				Resource: resource,
				Event:    event,
				Message:  "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}

	if !h.authorized(c) {
		log.Warn("Webhook rejected, token mismatch", zap.String("client_ip", c.ClientIP()))
		h.ack(c, integration.WebhookAck{
			Status:   integration.AckFailed,
			Resource: resource,
			Event:    event,
			Message:  "invalid webhook token",
		})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("Webhook body unreadable", zap.Error(err))
		h.ack(c, integration.WebhookAck{
			Status:   integration.AckFailed,
			Resource: resource,
			Event:    event,
			Message:  "request body could not be read",
		})
		return
	}

	ack, err := h.receiver.Receive(c.Request.Context(), resource, event, payload)
	if err != nil {
		log.Warn("Webhook delivery failed",
			zap.String("resource", ack.Resource),
			zap.String("event", ack.Event),
			zap.Error(err))
		if ack.Message == "" {
			ack.Message = integration.UserMessage(err)
		}
		ack.Status = integration.AckFailed
	}
	h.ack(c, ack)
}

func (h *WebhookHandler) authorized(c *gin.Context) bool {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader(WebhookTokenHeader)
	}
	return vnda.SecretMatches(h.secret, token)
}

func (h *WebhookHandler) ack(c *gin.Context, ack integration.WebhookAck) {
	c.JSON(http.StatusOK, APIResponse[integration.WebhookAck]{Success: true, Data: ack})
}
