package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// shutdownTimeout bounds the final flush of each exporter
const shutdownTimeout = 10 * time.Second

// serviceResource describes this process to the collector
func serviceResource(service string) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// shutdownPipeline flushes one signal pipeline within shutdownTimeout
func shutdownPipeline(ctx context.Context, log *zap.Logger, signal string, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error("OTLP pipeline shutdown failed", zap.String("signal", signal), zap.Error(err))
		return fmt.Errorf("shutdown %s pipeline: %w", signal, err)
	}
	log.Info("OTLP pipeline stopped", zap.String("signal", signal))
	return nil
}
