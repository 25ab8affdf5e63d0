package integration

import (
	"time"
)

// SyncLogEntry is an immutable audit record written once per sync attempt
type SyncLogEntry struct {
	ID        uint          `json:"id"`
	Type      SyncType      `json:"type"`
	Count     int           `json:"count"`
	Status    SyncStatus    `json:"status"`
	Trigger   Trigger       `json:"trigger"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewSuccessLog records a sync attempt that stored count records
func NewSuccessLog(syncType SyncType, trigger Trigger, count int, details string, duration time.Duration) *SyncLogEntry {
	return &SyncLogEntry{
		Type:      syncType,
		Count:     count,
		Status:    SyncStatusSuccess,
		Trigger:   trigger,
		Details:   details,
		Duration:  duration,
		Timestamp: time.Now(),
	}
}

// NewErrorLog records a failed sync attempt. Failed attempts always count 0.
func NewErrorLog(syncType SyncType, trigger Trigger, err error, duration time.Duration) *SyncLogEntry {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &SyncLogEntry{
		Type:      syncType,
		Count:     0,
		Status:    SyncStatusError,
		Trigger:   trigger,
		Details:   details,
		Duration:  duration,
		Timestamp: time.Now(),
	}
}

// SyncLogFilter narrows a durable audit log query
type SyncLogFilter struct {
	Type     SyncType
	Status   SyncStatus
	Page     int
	PageSize int
}

// Normalize applies paging defaults
func (f *SyncLogFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 500 {
		f.PageSize = 50
	}
}
