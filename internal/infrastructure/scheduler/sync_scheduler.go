package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oliehub/backend/internal/domain/integration"
)

// Outcome is the result of one sync type inside a scheduled pass
type Outcome struct {
	Type    integration.SyncType   `json:"type"`
	Status  integration.SyncStatus `json:"status"`
	Count   int                    `json:"count"`
	Message string                 `json:"message,omitempty"`
}

// Run is one completed scheduled pass
type Run struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

// PassFunc runs every sync type once and reports per-type outcomes.
// It must not fail as a whole: per-type failures are carried in the outcomes.
type PassFunc func(ctx context.Context) []Outcome

// SyncSchedulerConfig holds configuration for the periodic sync scheduler
type SyncSchedulerConfig struct {
	// Enabled controls whether passes run after Start
	Enabled bool
	// Interval between passes
	Interval time.Duration
	// MinInterval and MaxInterval bound SetInterval
	MinInterval time.Duration
	MaxInterval time.Duration
	// PassTimeout bounds a single pass
	PassTimeout time.Duration
	// RunOnStart runs a pass as soon as the loop starts
	RunOnStart bool
	// MaxHistory is the number of completed passes kept for Status
	MaxHistory int
}

// DefaultSyncSchedulerConfig returns the default scheduler configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:     true,
		Interval:    60 * time.Second,
		MinInterval: 5 * time.Second,
		MaxInterval: 24 * time.Hour,
		PassTimeout: 5 * time.Minute,
		RunOnStart:  true,
		MaxHistory:  20,
	}
}

// Validate validates the scheduler configuration
func (c SyncSchedulerConfig) Validate() error {
	if c.MinInterval <= 0 {
		return fmt.Errorf("%w: min interval must be positive", ErrInvalidConfig)
	}
	if c.MaxInterval < c.MinInterval {
		return fmt.Errorf("%w: max interval below min interval", ErrInvalidConfig)
	}
	if c.Interval < c.MinInterval || c.Interval > c.MaxInterval {
		return fmt.Errorf("%w: interval %s outside [%s, %s]", ErrInvalidConfig, c.Interval, c.MinInterval, c.MaxInterval)
	}
	if c.PassTimeout <= 0 {
		return fmt.Errorf("%w: pass timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("%w: max history must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// ScheduleStatus is a snapshot of the scheduler state
type ScheduleStatus struct {
	Enabled   bool          `json:"enabled"`
	Running   bool          `json:"running"`
	InFlight  bool          `json:"in_flight"`
	Interval  time.Duration `json:"interval"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt *time.Time    `json:"next_run_at,omitempty"`
	History   []Run         `json:"history"`
}

// SyncScheduler runs a full sync pass on a fixed interval.
// Disabling stops future passes; a pass already running is allowed to finish.
type SyncScheduler struct {
	config SyncSchedulerConfig
	pass   PassFunc
	logger *zap.Logger

	mu         sync.Mutex
	isRunning  bool
	enabled    bool
	interval   time.Duration
	rootCtx    context.Context
	rootCancel context.CancelFunc
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	nextRunAt  time.Time

	inFlight atomic.Bool
	passWG   sync.WaitGroup

	historyMu sync.RWMutex
	history   []Run
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, pass PassFunc, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if pass == nil {
		return nil, fmt.Errorf("%w: pass function is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:   config,
		pass:     pass,
		logger:   logger.Named("sync-scheduler"),
		enabled:  config.Enabled,
		interval: config.Interval,
		history:  make([]Run, 0, config.MaxHistory),
	}, nil
}

// Start starts the scheduler. The pass loop only runs while enabled.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	s.rootCtx, s.rootCancel = context.WithCancel(context.WithoutCancel(ctx))
	s.isRunning = true
	if s.enabled {
		s.startLoopLocked()
	}

	s.logger.Info("Sync scheduler started",
		zap.Bool("enabled", s.enabled),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and waits for an in-flight pass, bounded by ctx.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	done := s.stopLoopLocked()
	rootCancel := s.rootCancel
	s.mu.Unlock()

	defer rootCancel()

	waitDone := make(chan struct{})
	go func() {
		if done != nil {
			<-done
		}
		s.passWG.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out, cancelling in-flight pass")
		return ctx.Err()
	}
}

// Enable turns scheduled passes on
func (s *SyncScheduler) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		return
	}
	s.enabled = true
	if s.isRunning {
		s.startLoopLocked()
	}
	s.logger.Info("Scheduled sync enabled", zap.Duration("interval", s.interval))
}

// Disable turns scheduled passes off. A pass in progress runs to completion.
func (s *SyncScheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	s.enabled = false
	s.stopLoopLocked()
	s.logger.Info("Scheduled sync disabled")
}

// SetInterval changes the pass interval, restarting the loop when active
func (s *SyncScheduler) SetInterval(interval time.Duration) error {
	if interval < s.config.MinInterval || interval > s.config.MaxInterval {
		return fmt.Errorf("%w: %s outside [%s, %s]", ErrInvalidInterval, interval, s.config.MinInterval, s.config.MaxInterval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if interval == s.interval {
		return nil
	}
	s.interval = interval
	if s.isRunning && s.enabled {
		s.stopLoopLocked()
		s.startLoopLocked()
	}
	s.logger.Info("Sync interval changed", zap.Duration("interval", interval))
	return nil
}

// Status returns a snapshot of the scheduler state
func (s *SyncScheduler) Status() ScheduleStatus {
	s.mu.Lock()
	status := ScheduleStatus{
		Enabled:  s.enabled,
		Running:  s.isRunning && s.enabled,
		InFlight: s.inFlight.Load(),
		Interval: s.interval,
	}
	if status.Running && !s.nextRunAt.IsZero() {
		next := s.nextRunAt
		status.NextRunAt = &next
	}
	s.mu.Unlock()

	status.History = s.GetHistory(0)
	if len(status.History) > 0 {
		last := status.History[0].FinishedAt
		status.LastRunAt = &last
	}
	return status
}

// GetHistory returns completed passes, newest first
func (s *SyncScheduler) GetHistory(limit int) []Run {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]Run, limit)
	copy(result, s.history[:limit])
	return result
}

// TriggerNow runs a pass immediately unless one is already in flight.
// It reports whether a pass was run.
func (s *SyncScheduler) TriggerNow() (bool, error) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return false, ErrSchedulerNotRunning
	}
	s.mu.Unlock()
	return s.runPass(), nil
}

// startLoopLocked must be called with s.mu held
func (s *SyncScheduler) startLoopLocked() {
	loopCtx, cancel := context.WithCancel(s.rootCtx)
	done := make(chan struct{})
	s.loopCancel = cancel
	s.loopDone = done
	s.nextRunAt = time.Now().Add(s.interval)

	go s.runLoop(loopCtx, s.interval, done)
}

// stopLoopLocked must be called with s.mu held. It returns the channel
// closed when the loop goroutine exits.
func (s *SyncScheduler) stopLoopLocked() chan struct{} {
	done := s.loopDone
	if s.loopCancel != nil {
		s.loopCancel()
	}
	s.loopCancel = nil
	s.loopDone = nil
	s.nextRunAt = time.Time{}
	return done
}

func (s *SyncScheduler) runLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runPass()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if ctx.Err() == nil {
				s.nextRunAt = time.Now().Add(interval)
			}
			s.mu.Unlock()
			s.runPass()
		}
	}
}

// runPass executes one pass on the root context so that disabling the
// loop does not cut it short. Overlapping passes are skipped.
func (s *SyncScheduler) runPass() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("Scheduled sync skipped, previous pass still running")
		return false
	}
	s.passWG.Add(1)
	defer func() {
		s.inFlight.Store(false)
		s.passWG.Done()
	}()

	s.mu.Lock()
	root := s.rootCtx
	s.mu.Unlock()
	if root == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(root, s.config.PassTimeout)
	defer cancel()

	run := Run{StartedAt: time.Now()}
	run.Outcomes = s.pass(ctx)
	run.FinishedAt = time.Now()
	s.addToHistory(run)

	failed := 0
	for _, o := range run.Outcomes {
		if o.Status == integration.SyncStatusError {
			failed++
		}
	}
	s.logger.Info("Scheduled sync pass finished",
		zap.Int("types", len(run.Outcomes)),
		zap.Int("failed", failed),
		zap.Duration("duration", run.FinishedAt.Sub(run.StartedAt)))
	return true
}

func (s *SyncScheduler) addToHistory(run Run) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]Run{run}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}
