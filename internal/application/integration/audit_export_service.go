package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/export"
	"github.com/oliehub/backend/internal/infrastructure/storage"
	"github.com/oliehub/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ArchiveStorage is the object store audit archives are uploaded to
type ArchiveStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	DownloadURL(ctx context.Context, storageKey string) (string, time.Time, error)
	Bucket() string
	Prefix() string
}

// ArchiveResult describes an uploaded audit archive
type ArchiveResult struct {
	Bucket    string     `json:"bucket"`
	Key       string     `json:"key"`
	Rows      int        `json:"rows"`
	Bytes     int        `json:"bytes"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AuditExportService renders the durable sync log for download or archive
type AuditExportService struct {
	logs    integration.SyncLogRepository
	storage ArchiveStorage
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditExportService creates a new AuditExportService. storage may be nil,
// in which case Archive fails with a configuration error.
func NewAuditExportService(logs integration.SyncLogRepository, store ArchiveStorage, logger *zap.Logger) *AuditExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditExportService{
		logs:    logs,
		storage: store,
		logger:  logger.Named("audit-export"),
		now:     time.Now,
	}
}

// ExportCSV writes every log entry, newest first, as CSV and returns the row count
func (s *AuditExportService) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.logs.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read sync logs: %w", err)
	}
	if err := export.WriteCSV(w, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ExportXLSX writes every log entry, newest first, as a workbook and returns the row count
func (s *AuditExportService) ExportXLSX(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.logs.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read sync logs: %w", err)
	}
	if err := export.WriteXLSX(w, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Archive uploads the CSV export under a fresh, dated key
func (s *AuditExportService) Archive(ctx context.Context) (*ArchiveResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "audit_export", "archive")
	defer span.End()

	if s.storage == nil {
		err := fmt.Errorf("%w: archive storage is not configured", integration.ErrConfiguration)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var buf bytes.Buffer
	rows, err := s.ExportCSV(ctx, &buf)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	key := storage.ArchiveKey(s.storage.Prefix(), s.now(), "csv")
	if err := s.storage.Upload(ctx, key, buf.Bytes(), export.ContentTypeCSV); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("archive upload failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", integration.ErrUpstreamUnavailable, err)
	}

	result := &ArchiveResult{
		Bucket: s.storage.Bucket(),
		Key:    key,
		Rows:   rows,
		Bytes:  buf.Len(),
	}
	if link, expires, err := s.storage.DownloadURL(ctx, key); err == nil {
		result.URL = link
		if !expires.IsZero() {
			result.ExpiresAt = &expires
		}
	}

	telemetry.SetAttributes(span, "archive.key", key, "archive.rows", rows)
	telemetry.SetOK(span)
	s.logger.Info("sync log archived",
		zap.String("bucket", result.Bucket),
		zap.String("key", key),
		zap.Int("rows", rows))
	return result, nil
}
