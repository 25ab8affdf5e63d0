package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/scheduler"
	"github.com/oliehub/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// registrar is satisfied by every handler in this package
type registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

func newTestEngine(handlers ...registrar) *gin.Engine {
	engine := gin.New()
	api := engine.Group("/api/v1")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return engine
}

func doRequest(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data field of a success response into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// MockSyncRunner is a mock implementation of SyncRunner
type MockSyncRunner struct {
	mock.Mock
}

func (m *MockSyncRunner) Sync(ctx context.Context, syncType integration.SyncType, trigger integration.Trigger) (appintegration.SyncReport, error) {
	args := m.Called(ctx, syncType, trigger)
	return args.Get(0).(appintegration.SyncReport), args.Error(1)
}

func (m *MockSyncRunner) SyncAll(ctx context.Context, trigger integration.Trigger) []appintegration.SyncReport {
	args := m.Called(ctx, trigger)
	return args.Get(0).([]appintegration.SyncReport)
}

func (m *MockSyncRunner) RecentLogs(ctx context.Context, limit int) ([]integration.SyncLogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncLogEntry), args.Error(1)
}

func (m *MockSyncRunner) ListLogs(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.SyncLogEntry), args.Get(1).(int64), args.Error(2)
}

// MockScheduleController is a mock implementation of ScheduleController
type MockScheduleController struct {
	mock.Mock
}

func (m *MockScheduleController) Status() scheduler.ScheduleStatus {
	return m.Called().Get(0).(scheduler.ScheduleStatus)
}

func (m *MockScheduleController) Enable()  { m.Called() }
func (m *MockScheduleController) Disable() { m.Called() }

func (m *MockScheduleController) SetInterval(interval time.Duration) error {
	return m.Called(interval).Error(0)
}

// MockAuditExporter is a mock implementation of AuditExporter
type MockAuditExporter struct {
	mock.Mock
}

func (m *MockAuditExporter) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	args := m.Called(ctx, w)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditExporter) ExportXLSX(ctx context.Context, w io.Writer) (int, error) {
	args := m.Called(ctx, w)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditExporter) Archive(ctx context.Context) (*appintegration.ArchiveResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.ArchiveResult), args.Error(1)
}

// MockStatusMappingService is a mock implementation of StatusMappingService
type MockStatusMappingService struct {
	mock.Mock
}

func (m *MockStatusMappingService) ListMappings() []integration.StatusMapping {
	return m.Called().Get(0).([]integration.StatusMapping)
}

func (m *MockStatusMappingService) SetMapping(ctx context.Context, raw string, stage integration.ProductionStage) (*integration.StatusMapping, error) {
	args := m.Called(ctx, raw, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.StatusMapping), args.Error(1)
}

func (m *MockStatusMappingService) DeleteMapping(ctx context.Context, raw string) error {
	return m.Called(ctx, raw).Error(0)
}

func (m *MockStatusMappingService) ResetDefaults(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStatusMappingService) Translate(raw string) integration.ProductionStage {
	return m.Called(raw).Get(0).(integration.ProductionStage)
}

// MockConflictService is a mock implementation of ConflictService
type MockConflictService struct {
	mock.Mock
}

func (m *MockConflictService) Pending() []integration.ConflictRecord {
	return m.Called().Get(0).([]integration.ConflictRecord)
}

func (m *MockConflictService) DetectConflicts(ctx context.Context) ([]integration.ConflictRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ConflictRecord), args.Error(1)
}

func (m *MockConflictService) Resolve(ctx context.Context, sku string, winning integration.Source) (*integration.ConflictResolution, error) {
	args := m.Called(ctx, sku, winning)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ConflictResolution), args.Error(1)
}

func (m *MockConflictService) ListResolutions(ctx context.Context, limit int) ([]integration.ConflictResolution, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ConflictResolution), args.Error(1)
}

// MockOrderReader is a mock implementation of OrderReader
type MockOrderReader struct {
	mock.Mock
}

func (m *MockOrderReader) ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderReader) Board(ctx context.Context, stage integration.ProductionStage) ([]appintegration.KanbanColumn, error) {
	args := m.Called(ctx, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appintegration.KanbanColumn), args.Error(1)
}

// MockWebhookReceiver is a mock implementation of WebhookReceiver
type MockWebhookReceiver struct {
	mock.Mock
}

func (m *MockWebhookReceiver) Receive(ctx context.Context, resource, event string, payload []byte) (integration.WebhookAck, error) {
	args := m.Called(ctx, resource, event, payload)
	return args.Get(0).(integration.WebhookAck), args.Error(1)
}

// MockUpstreamChecker is a mock implementation of UpstreamChecker
type MockUpstreamChecker struct {
	mock.Mock
}

func (m *MockUpstreamChecker) CheckUpstreams(ctx context.Context) []appintegration.UpstreamHealth {
	return m.Called(ctx).Get(0).([]appintegration.UpstreamHealth)
}
