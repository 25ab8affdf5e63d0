package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Upstream health states
const (
	UpstreamOK           = "ok"
	UpstreamTimeout      = "timeout"
	UpstreamRejected     = "rejected"
	UpstreamUnavailable  = "unavailable"
	UpstreamUnconfigured = "unconfigured"
)

// UpstreamHealth is the result of pinging one upstream
type UpstreamHealth struct {
	Source    integration.Source `json:"source"`
	Status    string             `json:"status"`
	LatencyMS int64              `json:"latency_ms"`
	Message   string             `json:"message,omitempty"`
}

// DiagnosticsService pings the upstream systems on demand
type DiagnosticsService struct {
	checkers []integration.HealthChecker
	logger   *zap.Logger
}

// NewDiagnosticsService creates a new DiagnosticsService
func NewDiagnosticsService(logger *zap.Logger, checkers ...integration.HealthChecker) *DiagnosticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiagnosticsService{checkers: checkers, logger: logger.Named("diagnostics")}
}

// CheckUpstreams pings every upstream concurrently. Each checker applies
// its own ping timeout. Results are sorted by source.
func (s *DiagnosticsService) CheckUpstreams(ctx context.Context) []UpstreamHealth {
	results := make([]UpstreamHealth, len(s.checkers))

	var wg sync.WaitGroup
	for i, checker := range s.checkers {
		wg.Add(1)
		go func(i int, checker integration.HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := checker.Ping(ctx)
			results[i] = UpstreamHealth{
				Source:    checker.Name(),
				Status:    upstreamStatus(err),
				LatencyMS: time.Since(start).Milliseconds(),
				Message:   integration.UserMessage(err),
			}
			if err != nil {
				s.logger.Warn("upstream check failed",
					zap.String("source", checker.Name().String()),
					zap.String("status", results[i].Status),
					zap.Error(err),
				)
			}
		}(i, checker)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Source < results[j].Source
	})
	return results
}

func upstreamStatus(err error) string {
	if err == nil {
		return UpstreamOK
	}
	switch integration.KindOf(err) {
	case integration.KindConfiguration:
		return UpstreamUnconfigured
	case integration.KindTimeout:
		return UpstreamTimeout
	case integration.KindRejected, integration.KindInvalidResponse:
		return UpstreamRejected
	default:
		return UpstreamUnavailable
	}
}
