package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/oliehub/backend/internal/infrastructure/logger"
)

// setupTestTracer returns a tracing config bound to a span recorder.
func setupTestTracer(t *testing.T) (TracingConfig, *tracetest.SpanRecorder) {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	cfg := DefaultTracingConfig()
	cfg.Options = []otelgin.Option{otelgin.WithTracerProvider(tp)}
	return cfg, sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracing_RecordsSpanWithRequestAttributes(t *testing.T) {
	cfg, sr := setupTestTracer(t)
	verifier := newTestVerifier()
	token, err := verifier.Issue("user-1", "Ana", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(logger.RequestID(), TracingWithConfig(cfg), SpanErrorMarker(), JWTAuthMiddleware(verifier), TracingAttributeInjector())
	router.POST("/api/v1/conflicts/:sku/resolve", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conflicts/OL-1/resolve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/conflicts/:sku/resolve", spans[0].Name())

	requestID, ok := spanAttr(spans[0], "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-42", requestID.AsString())
	actor, ok := spanAttr(spans[0], "actor")
	require.True(t, ok)
	assert.Equal(t, "Ana", actor.AsString())
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantCode   codes.Code
		wantStatus bool
	}{
		{"ok", http.StatusOK, codes.Unset, false},
		{"client error keeps status unset", http.StatusNotFound, codes.Unset, true},
		{"server error", http.StatusBadGateway, codes.Error, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, sr := setupTestTracer(t)
			router := gin.New()
			router.Use(TracingWithConfig(cfg), SpanErrorMarker())
			router.GET("/test", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			if tt.wantCode == codes.Error {
				assert.Equal(t, codes.Error, spans[0].Status().Code)
			}
			_, hasStatus := spanAttr(spans[0], "http.status_code")
			assert.Equal(t, tt.wantStatus, hasStatus)
		})
	}
}

func TestGetRequestID_Truncates(t *testing.T) {
	router := gin.New()
	var got string
	router.GET("/x", func(c *gin.Context) {
		got = getRequestID(c)
		c.Status(http.StatusOK)
	})

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", string(long))
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, got, MaxRequestIDLength)
}
