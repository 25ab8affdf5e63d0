package integration

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/export"
	"github.com/oliehub/backend/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedLogs(t *testing.T, r *rig) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.logs.Append(ctx, integration.NewSuccessLog(integration.SyncTypeOrders, integration.TriggerManual, 7, "3 rows rejected by validation", time.Second)))
	require.NoError(t, r.logs.Append(ctx, integration.NewErrorLog(integration.SyncTypeProducts, integration.TriggerScheduled, errors.New("tiny: upstream timeout"), time.Second)))
}

func TestAuditExportService_ExportCSV(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	seedLogs(t, r)
	svc := NewAuditExportService(r.logs, nil, nil)

	var buf bytes.Buffer
	rows, err := svc.ExportCSV(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, export.Columns, records[0])

	types := []string{records[1][1], records[2][1]}
	assert.ElementsMatch(t, []string{"orders", "products"}, types)
}

func TestAuditExportService_ExportXLSX(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	seedLogs(t, r)
	svc := NewAuditExportService(r.logs, nil, nil)

	var buf bytes.Buffer
	rows, err := svc.ExportXLSX(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	sheetRows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, sheetRows, 3)
}

func TestAuditExportService_Archive(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	seedLogs(t, r)
	store := storage.NewMemoryObjectStorage("sync-logs/")
	svc := NewAuditExportService(r.logs, store, nil)

	result, err := svc.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, "memory", result.Bucket)
	assert.True(t, strings.HasPrefix(result.Key, "sync-logs/"), result.Key)
	assert.True(t, strings.HasSuffix(result.Key, ".csv"), result.Key)
	assert.Equal(t, "memory://archives/"+result.Key, result.URL)

	data, contentType, ok := store.Object(result.Key)
	require.True(t, ok)
	assert.Equal(t, export.ContentTypeCSV, contentType)
	assert.Equal(t, result.Bytes, len(data))
	assert.True(t, strings.HasPrefix(string(data), "id,type,count,status,timestamp,details\n"))
}

func TestAuditExportService_ArchiveWithoutStorage(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	svc := NewAuditExportService(r.logs, nil, nil)

	_, err := svc.Archive(context.Background())
	assert.ErrorIs(t, err, integration.ErrConfiguration)
}

type failingStorage struct{ *storage.MemoryObjectStorage }

func (failingStorage) Upload(context.Context, string, []byte, string) error {
	return errors.New("connection refused")
}

func TestAuditExportService_ArchiveUploadFails(t *testing.T) {
	r := newRig(t, Sources{}, nil)
	seedLogs(t, r)
	svc := NewAuditExportService(r.logs, failingStorage{storage.NewMemoryObjectStorage("")}, nil)

	_, err := svc.Archive(context.Background())
	assert.ErrorIs(t, err, integration.ErrUpstreamUnavailable)
}
