package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/oliehub/backend/internal/infrastructure/telemetry"
)

type httpInstruments struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	requests, err := telemetry.NewCounter(meter, "oliehub_http_requests_total", "HTTP requests by route and status class", "{request}")
	if err != nil {
		return nil, err
	}
	latency, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "oliehub_http_request_duration_seconds",
		Description: "HTTP request latency in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("oliehub_http_active_requests",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create up-down counter: %w", err)
	}
	return &httpInstruments{requests: requests, latency: latency, inFlight: inFlight}, nil
}

// HTTPMetrics counts requests and records latency per matched route. A nil
// meter, or one whose instruments cannot be created, yields a pass-through.
func HTTPMetrics(meter metric.Meter, log *zap.Logger) gin.HandlerFunc {
	if meter == nil {
		return passThrough
	}
	inst, err := newHTTPInstruments(meter)
	if err != nil {
		if log != nil {
			log.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		inst.inFlight.Add(ctx, 1)
		c.Next()
		inst.inFlight.Add(ctx, -1)

		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(routeOf(c)),
		}
		status := c.Writer.Status()
		inst.requests.Inc(ctx, append(attrs,
			telemetry.AttrHTTPStatusCode.Int(status),
			attribute.String("http.status_class", statusClass(status)),
		)...)
		inst.latency.RecordDuration(ctx, time.Since(start), attrs...)
	}
}

func passThrough(c *gin.Context) { c.Next() }

// routeOf returns the route template so SKUs and ids stay out of labels
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func statusClass(code int) string {
	if code < 200 || code >= 600 {
		return "other"
	}
	return fmt.Sprintf("%dxx", code/100)
}
