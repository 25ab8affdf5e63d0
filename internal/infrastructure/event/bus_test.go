package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", "agg-1"),
		Data:            "test data",
	}
}

// testHandler implements EventHandler for testing
type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicMsg   string
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	event := newTestEvent("TestEvent")
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event, handler.getHandled()[0])
}

func TestInMemoryEventBus_OnlyMatchingTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	orders := newTestHandler()
	bus.Subscribe(orders, "OrderEvent")
	all := newTestHandler()
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("OrderEvent"),
		newTestEvent("ProductEvent"),
	))

	assert.Len(t, orders.getHandled(), 1)
	assert.Len(t, all.getHandled(), 2)
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := newTestHandler()
	failing.err = errors.New("boom")
	panicking := newTestHandler()
	panicking.panicMsg = "kaboom"
	healthy := newTestHandler()

	bus.Subscribe(failing, "TestEvent")
	bus.Subscribe(panicking, "TestEvent")
	bus.Subscribe(healthy, "TestEvent")

	err := bus.Publish(context.Background(), newTestEvent("TestEvent"))

	require.NoError(t, err)
	assert.Len(t, failing.getHandled(), 1)
	assert.Len(t, panicking.getHandled(), 1)
	assert.Len(t, healthy.getHandled(), 1)
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler()
	bus.Subscribe(handler, "A", "B")

	bus.Unsubscribe(handler)
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("B")))

	assert.Empty(t, handler.getHandled())
}

func TestHandlerRegistry_GetHandlers(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()
	registry.Register(typed, "A")
	registry.Register(wildcard)

	handlers := registry.GetHandlers("A")
	require.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])

	assert.Len(t, registry.GetHandlers("B"), 1)

	registry.Unregister(typed)
	assert.Len(t, registry.GetHandlers("A"), 1)
}

func TestAuditLogHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(NewAuditLogHandler(zap.New(core)))

	resolved := integration.NewConflictResolvedEvent(integration.ConflictResolution{
		SKU:           "OL-LILLE-KTA",
		WinningSource: integration.SourceVnda,
		PreviousPrice: decimal.RequireFromString("489.00"),
		ResolvedPrice: decimal.RequireFromString("499.00"),
		ResolvedBy:    "ops",
	})
	regression := integration.NewOrderLifecycleChangedEvent(integration.Order{
		Source:     integration.SourceTiny,
		ExternalID: "1001",
		Lifecycle:  integration.Lifecycle{State: integration.LifecycleOpen},
	}, integration.Lifecycle{State: integration.LifecycleShipped})
	completed := integration.NewSyncCompletedEvent(integration.SyncLogEntry{
		Type:    integration.SyncTypeOrders,
		Status:  integration.SyncStatusSuccess,
		Count:   4,
		Trigger: integration.TriggerManual,
	})

	require.NoError(t, bus.Publish(context.Background(), resolved, regression, completed))

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "OL-LILLE-KTA", entries[0].ContextMap()["sku"])
	assert.Equal(t, "499.00", entries[0].ContextMap()["resolved_price"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, false, entries[1].ContextMap()["regular"])
	assert.Equal(t, "shipped", entries[1].ContextMap()["from"])

	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
	assert.Equal(t, integration.EventTypeSyncCompleted, entries[2].ContextMap()["event_type"])
	assert.Equal(t, int64(4), entries[2].ContextMap()["count"])
}
