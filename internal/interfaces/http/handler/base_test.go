package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/scheduler"
	"github.com/oliehub/backend/internal/interfaces/http/dto"
)

func newTestContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"configuration", fmt.Errorf("tiny: %w", integration.ErrConfiguration), http.StatusServiceUnavailable, dto.ErrCodeConfiguration},
		{"timeout", integration.ErrTimeout, http.StatusGatewayTimeout, dto.ErrCodeUpstreamTimeout},
		{"rejected", integration.ErrUpstreamRejected, http.StatusBadGateway, dto.ErrCodeUpstreamRejected},
		{"unavailable", integration.ErrUpstreamUnavailable, http.StatusBadGateway, dto.ErrCodeUpstreamUnavailable},
		{"invalid response", integration.ErrInvalidResponse, http.StatusBadGateway, dto.ErrCodeInvalidResponse},
		{"sync in progress", integration.ErrSyncInProgress, http.StatusConflict, dto.ErrCodeSyncInProgress},
		{"conflict not found", integration.ErrConflictNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"mapping not found", integration.ErrMappingNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"invalid stage", integration.ErrInvalidStage, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"invalid sync type", integration.ErrInvalidSyncType, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"invalid interval", scheduler.ErrInvalidInterval, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"scheduler not running", scheduler.ErrSchedulerNotRunning, http.StatusConflict, dto.ErrCodeConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext("/")
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.NotEmpty(t, info.Message)
			assert.NotEqual(t, "boom", info.Message, "internal detail must not leak")
		})
	}
}

func TestBaseHandler_HandleError_ValidationFailure(t *testing.T) {
	c, w := newTestContext("/")
	c.Set(RequestIDKey, "req-1")

	err := fmt.Errorf("order 1001: %w", &integration.ValidationFailure{
		Schema: "order",
		Issues: []integration.Issue{
			{Path: "/total_value", Message: "does not match pattern"},
			{Path: "/external_id", Message: "missing"},
		},
	})
	(&BaseHandler{}).HandleError(c, err)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeValidation, info.Code)
	assert.Equal(t, "req-1", info.RequestID)
	require.Len(t, info.Details, 2)
	assert.Equal(t, "/total_value", info.Details[0].Field)
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	c, w := newTestContext("/")
	(&BaseHandler{}).HandleError(c, nil)
	assert.Equal(t, 0, w.Body.Len())
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/?limit=5", 5},
		{"/", 20},
		{"/?limit=abc", 20},
		{"/?limit=-3", 20},
		{"/?limit=0", 20},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			c, _ := newTestContext(tt.target)
			assert.Equal(t, tt.want, queryInt(c, "limit", 20))
		})
	}
}

func TestGetRequestID(t *testing.T) {
	c, _ := newTestContext("/")
	c.Request.Header.Set("X-Request-ID", "from-header")
	assert.Equal(t, "from-header", getRequestID(c))

	c.Set(RequestIDKey, "from-context")
	assert.Equal(t, "from-context", getRequestID(c))
}
