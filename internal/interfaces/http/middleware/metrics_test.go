package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/oliehub/backend/internal/infrastructure/telemetry"
)

// setupTestMeter sets up a test meter provider and reader.
func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

// collectMetrics collects metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// findMetricByName finds a metric by name in the collected metrics.
func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(nil, nil))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_RecordsPerRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetrics(mp.Meter("test"), nil))
	router.POST("/api/v1/conflicts/:sku/resolve", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false})
	})
	router.GET("/api/v1/orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	for _, sku := range []string{"OL-1", "OL-2"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/conflicts/"+sku+"/resolve", nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	rm := collectMetrics(t, reader)

	total := findMetricByName(rm, "oliehub_http_requests_total")
	require.NotNil(t, total)
	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byRoute := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value(telemetry.AttrHTTPRoute)
		class, _ := dp.Attributes.Value("http.status_class")
		byRoute[route.AsString()+" "+class.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), byRoute["/api/v1/conflicts/:sku/resolve 4xx"])
	assert.Equal(t, int64(1), byRoute["/api/v1/orders 2xx"])

	assert.NotNil(t, findMetricByName(rm, "oliehub_http_request_duration_seconds"))

	active := findMetricByName(rm, "oliehub_http_active_requests")
	require.NotNil(t, active)
	activeSum, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range activeSum.DataPoints {
		assert.Equal(t, int64(0), dp.Value)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 422: "4xx", 502: "5xx", 100: "other",
	}
	for code, want := range tests {
		assert.Equal(t, want, statusClass(code), code)
	}
}

func TestRouteOf_Unmatched(t *testing.T) {
	router := gin.New()
	var route string
	router.NoRoute(func(c *gin.Context) {
		route = routeOf(c)
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "unknown", route)
}
