package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when the scheduler has not been started
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrInvalidInterval is returned when a requested interval is outside the allowed range
	ErrInvalidInterval = errors.New("invalid sync interval")
)
