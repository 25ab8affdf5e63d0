package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/infrastructure/scheduler"
	"github.com/oliehub/backend/internal/interfaces/http/dto"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// queryInt reads an integer query parameter, falling back to def
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Accepted sends a 202 response for work that continues in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 422 response listing the rejected fields
func (h *BaseHandler) ValidationError(c *gin.Context, message string, details []dto.ValidationDetail) {
	c.JSON(http.StatusUnprocessableEntity, dto.NewValidationErrorResponse(message, getRequestID(c), details))
}

// errorCode maps an error to its API error code. The second result is
// false for errors the API does not know, which are reported as internal.
func errorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, integration.ErrValidationFailure):
		return dto.ErrCodeValidation, true
	case errors.Is(err, integration.ErrConfiguration):
		return dto.ErrCodeConfiguration, true
	case errors.Is(err, integration.ErrTimeout):
		return dto.ErrCodeUpstreamTimeout, true
	case errors.Is(err, integration.ErrUpstreamRejected):
		return dto.ErrCodeUpstreamRejected, true
	case errors.Is(err, integration.ErrUpstreamUnavailable):
		return dto.ErrCodeUpstreamUnavailable, true
	case errors.Is(err, integration.ErrInvalidResponse):
		return dto.ErrCodeInvalidResponse, true
	case errors.Is(err, integration.ErrSyncInProgress):
		return dto.ErrCodeSyncInProgress, true
	case errors.Is(err, integration.ErrConflictDetected):
		return dto.ErrCodeConflict, true
	case errors.Is(err, integration.ErrConflictNotFound),
		errors.Is(err, integration.ErrMappingNotFound),
		errors.Is(err, integration.ErrOrderNotFound),
		errors.Is(err, integration.ErrProductNotFound),
		errors.Is(err, integration.ErrCustomerNotFound):
		return dto.ErrCodeNotFound, true
	case errors.Is(err, integration.ErrInvalidStage),
		errors.Is(err, integration.ErrInvalidSource),
		errors.Is(err, integration.ErrInvalidSyncType),
		errors.Is(err, integration.ErrEmptyStatusKey),
		errors.Is(err, scheduler.ErrInvalidInterval):
		return dto.ErrCodeInvalidInput, true
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		return dto.ErrCodeConflict, true
	}
	return dto.ErrCodeInternal, false
}

// errorMessage returns the operator-facing message for a known error
func errorMessage(err error) string {
	switch {
	case errors.Is(err, integration.ErrConflictNotFound):
		return "No pending conflict for this SKU"
	case errors.Is(err, integration.ErrMappingNotFound):
		return "Status mapping not found"
	case errors.Is(err, integration.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, integration.ErrInvalidStage):
		return "Unknown production stage"
	case errors.Is(err, integration.ErrInvalidSource):
		return "Unknown source"
	case errors.Is(err, integration.ErrInvalidSyncType):
		return "Unknown sync type"
	case errors.Is(err, integration.ErrEmptyStatusKey):
		return "Status is required"
	case errors.Is(err, scheduler.ErrInvalidInterval):
		return err.Error()
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		return "Scheduler is not running"
	}
	return integration.UserMessage(err)
}

// HandleError converts integration errors to HTTP responses. Unknown
// errors are logged with the request logger and reported as internal.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var failure *integration.ValidationFailure
	if errors.As(err, &failure) {
		details := make([]dto.ValidationDetail, 0, len(failure.Issues))
		for _, issue := range failure.Issues {
			details = append(details, dto.ValidationDetail{Field: issue.Path, Message: issue.Message})
		}
		h.ValidationError(c, integration.UserMessage(err), details)
		return
	}

	code, known := errorCode(err)
	if !known {
		logger.GetGinLogger(c).Error("unhandled error", zap.Error(err))
		h.InternalError(c, "An unexpected error occurred")
		return
	}
	h.ErrorWithCode(c, code, errorMessage(err))
}
