package integration

import "strings"

// ---------------------------------------------------------------------------
// Source identifies the upstream system a record came from
// ---------------------------------------------------------------------------

// Source identifies the upstream system a record came from
type Source string

const (
	// SourceTiny is the ERP of record
	SourceTiny Source = "tiny"
	// SourceVnda is the storefront of record
	SourceVnda Source = "vnda"
	// SourceOther covers manual or imported records
	SourceOther Source = "other"
)

// IsValid returns true if the source is known
func (s Source) IsValid() bool {
	switch s {
	case SourceTiny, SourceVnda, SourceOther:
		return true
	default:
		return false
	}
}

// String returns the string representation of Source
func (s Source) String() string {
	return string(s)
}

// ParseSource parses a source name case-insensitively
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", ErrInvalidSource
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// SyncType is one of the three independently synchronized record kinds
// ---------------------------------------------------------------------------

// SyncType is one of the three independently synchronized record kinds
type SyncType string

const (
	SyncTypeOrders    SyncType = "orders"
	SyncTypeProducts  SyncType = "products"
	SyncTypeCustomers SyncType = "customers"
)

// AllSyncTypes returns the sync types in reporting order
func AllSyncTypes() []SyncType {
	return []SyncType{SyncTypeOrders, SyncTypeProducts, SyncTypeCustomers}
}

// IsValid returns true if the sync type is known
func (t SyncType) IsValid() bool {
	switch t {
	case SyncTypeOrders, SyncTypeProducts, SyncTypeCustomers:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncType
func (t SyncType) String() string {
	return string(t)
}

// ParseSyncType parses a sync type name
func ParseSyncType(raw string) (SyncType, error) {
	t := SyncType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", ErrInvalidSyncType
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// SyncStatus is the outcome recorded for a sync attempt
// ---------------------------------------------------------------------------

// SyncStatus is the outcome recorded for a sync attempt
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
	// SyncStatusSkipped is reported, never logged: the type was already running
	SyncStatusSkipped SyncStatus = "skipped"
)

// IsValid returns true if the status is known
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusError, SyncStatusSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Trigger records what started a sync attempt
// ---------------------------------------------------------------------------

// Trigger records what started a sync attempt
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerWebhook   Trigger = "webhook"
)

// String returns the string representation of Trigger
func (t Trigger) String() string {
	return string(t)
}
