package handler

import (
	"context"
	"io"
	"time"

	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/config"
	"github.com/oliehub/backend/internal/infrastructure/scheduler"
)

// SyncRunner runs syncs on demand and reads the audit log
type SyncRunner interface {
	Sync(ctx context.Context, syncType integration.SyncType, trigger integration.Trigger) (appintegration.SyncReport, error)
	SyncAll(ctx context.Context, trigger integration.Trigger) []appintegration.SyncReport
	RecentLogs(ctx context.Context, limit int) ([]integration.SyncLogEntry, error)
	ListLogs(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error)
}

// ScheduleController drives the background sync loop
type ScheduleController interface {
	Status() scheduler.ScheduleStatus
	Enable()
	Disable()
	SetInterval(interval time.Duration) error
}

// AuditExporter renders and archives the audit log
type AuditExporter interface {
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
	ExportXLSX(ctx context.Context, w io.Writer) (int, error)
	Archive(ctx context.Context) (*appintegration.ArchiveResult, error)
}

// StatusMappingService edits the ERP status to production stage table
type StatusMappingService interface {
	ListMappings() []integration.StatusMapping
	SetMapping(ctx context.Context, raw string, stage integration.ProductionStage) (*integration.StatusMapping, error)
	DeleteMapping(ctx context.Context, raw string) error
	ResetDefaults(ctx context.Context) error
	Translate(raw string) integration.ProductionStage
}

// ConflictService lists and resolves price conflicts
type ConflictService interface {
	Pending() []integration.ConflictRecord
	DetectConflicts(ctx context.Context) ([]integration.ConflictRecord, error)
	Resolve(ctx context.Context, sku string, winning integration.Source) (*integration.ConflictResolution, error)
	ListResolutions(ctx context.Context, limit int) ([]integration.ConflictResolution, error)
}

// OrderReader serves the canonical orders
type OrderReader interface {
	ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, int64, error)
	Board(ctx context.Context, stage integration.ProductionStage) ([]appintegration.KanbanColumn, error)
}

// WebhookReceiver ingests storefront deliveries
type WebhookReceiver interface {
	Receive(ctx context.Context, resource, event string, payload []byte) (integration.WebhookAck, error)
}

// UpstreamChecker pings the upstream systems
type UpstreamChecker interface {
	CheckUpstreams(ctx context.Context) []appintegration.UpstreamHealth
}

// CredentialReporter lists configured credentials without their values
type CredentialReporter func() []config.CredentialStatus
