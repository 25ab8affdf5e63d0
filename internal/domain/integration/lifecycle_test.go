package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycle_String(t *testing.T) {
	assert.Equal(t, "open", Lifecycle{State: LifecycleOpen}.String())
	assert.Equal(t, "in_production(costura)", Lifecycle{State: LifecycleInProduction, Stage: StageCostura}.String())
}

func TestIsRegularTransition(t *testing.T) {
	open := Lifecycle{State: LifecycleOpen}
	approved := Lifecycle{State: LifecycleApproved}
	corte := Lifecycle{State: LifecycleInProduction, Stage: StageCorte}
	costura := Lifecycle{State: LifecycleInProduction, Stage: StageCostura}
	shipped := Lifecycle{State: LifecycleShipped}
	delivered := Lifecycle{State: LifecycleDelivered}
	canceled := Lifecycle{State: LifecycleCanceled}

	tests := []struct {
		name     string
		from     Lifecycle
		to       Lifecycle
		expected bool
	}{
		{"open to approved", open, approved, true},
		{"approved to production", approved, corte, true},
		{"open skips to production", open, costura, true},
		{"stage advances", corte, costura, true},
		{"stage regresses", costura, corte, false},
		{"production to shipped", costura, shipped, true},
		{"shipped to delivered", shipped, delivered, true},
		{"cancel while open", open, canceled, true},
		{"cancel during production", costura, canceled, true},
		{"cancel after shipment", shipped, canceled, false},
		{"reopen canceled", canceled, open, false},
		{"delivered back to open", delivered, open, false},
		{"unchanged", costura, costura, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRegularTransition(tt.from, tt.to))
		})
	}
}

func TestTinyLifecycle(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		stage    ProductionStage
		expected Lifecycle
	}{
		{"empty is open", "", StageCorte, Lifecycle{State: LifecycleOpen}},
		{"pending sentinel is open", StatusPending, StageCorte, Lifecycle{State: LifecycleOpen}},
		{"em aberto", "Em Aberto", StageCorte, Lifecycle{State: LifecycleOpen}},
		{"cancelado", "Cancelado", StageCorte, Lifecycle{State: LifecycleCanceled}},
		{"enviado", "Enviado", StagePronto, Lifecycle{State: LifecycleShipped}},
		{"entregue", "ENTREGUE", StagePronto, Lifecycle{State: LifecycleDelivered}},
		{"aprovado goes to production", "Aprovado", StageCostura, Lifecycle{State: LifecycleInProduction, Stage: StageCostura}},
		{"invalid stage falls back", "faturado", ProductionStage(""), Lifecycle{State: LifecycleInProduction, Stage: StageCorte}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TinyLifecycle(tt.raw, tt.stage))
		})
	}
}

func TestVndaLifecycle(t *testing.T) {
	tests := []struct {
		status string
		want   LifecycleState
	}{
		{"confirmed", LifecycleApproved},
		{"Paid", LifecycleApproved},
		{"shipped", LifecycleShipped},
		{"canceled", LifecycleCanceled},
		{"received", LifecycleOpen},
		{"", LifecycleOpen},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, VndaLifecycle(tt.status).State)
		})
	}
}

func TestDeriveLifecycle(t *testing.T) {
	assert.Equal(t, Lifecycle{State: LifecycleInProduction, Stage: StageCostura},
		DeriveLifecycle(SourceTiny, "Aprovado", StageCostura))
	assert.Equal(t, Lifecycle{State: LifecycleApproved},
		DeriveLifecycle(SourceVnda, "confirmed", StageCostura))
	assert.Equal(t, Lifecycle{State: LifecycleOpen},
		DeriveLifecycle(SourceOther, "whatever", StagePronto))
}
