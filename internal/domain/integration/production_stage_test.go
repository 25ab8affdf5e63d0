package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// ProductionStage Tests
// ---------------------------------------------------------------------------

func TestProductionStage_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		stage    ProductionStage
		expected bool
	}{
		{"corte", StageCorte, true},
		{"costura", StageCostura, true},
		{"montagem", StageMontagem, true},
		{"acabamento", StageAcabamento, true},
		{"pronto", StagePronto, true},
		{"unknown", ProductionStage("pintura"), false},
		{"empty", ProductionStage(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.stage.IsValid())
		})
	}
}

func TestProductionStage_Position(t *testing.T) {
	assert.Equal(t, 0, StageCorte.Position())
	assert.Equal(t, 4, StagePronto.Position())
	assert.Equal(t, -1, ProductionStage("x").Position())
}

func TestParseProductionStage(t *testing.T) {
	stage, err := ParseProductionStage("  Costura ")
	require.NoError(t, err)
	assert.Equal(t, StageCostura, stage)

	_, err = ParseProductionStage("bordado")
	assert.ErrorIs(t, err, ErrInvalidStage)
}

// ---------------------------------------------------------------------------
// Status key normalization
// ---------------------------------------------------------------------------

func TestNormalizeStatusKey(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"Aprovado", "aprovado"},
		{"  APROVADO  ", "aprovado"},
		{"Em   Aberto", "em aberto"},
		{"EM PRODUÇÃO", "em produção"},
		// decomposed: c + combining cedilla, a + combining tilde
		{"em produc\u0327a\u0303o", "em produção"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeStatusKey(tt.raw))
		})
	}
}

func TestDefaultStatusMappings_KeysAreNormalized(t *testing.T) {
	for key, stage := range DefaultStatusMappings() {
		assert.Equal(t, NormalizeStatusKey(key), key)
		assert.True(t, stage.IsValid(), key)
	}
}

func TestResolveStage(t *testing.T) {
	table := DefaultStatusMappings()

	tests := []struct {
		name     string
		raw      string
		expected ProductionStage
	}{
		{"mapped lower", "aprovado", StageCostura},
		{"mapped mixed case", "ApRoVaDo", StageCostura},
		{"mapped with accents", "Em Produção", StageMontagem},
		{"unmapped falls back", "aguardando pagamento", StageCorte},
		{"empty falls back", "", StageCorte},
		{"garbage falls back", "\x00\xff", StageCorte},
		{"no partial match", "aprovado parcialmente", StageCorte},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveStage(table, tt.raw))
		})
	}
}

func TestResolveStage_NilTable(t *testing.T) {
	assert.Equal(t, DefaultStage, ResolveStage(nil, "aprovado"))
}

// ---------------------------------------------------------------------------
// StatusMapping Tests
// ---------------------------------------------------------------------------

func TestNewStatusMapping(t *testing.T) {
	t.Run("normalizes the key", func(t *testing.T) {
		m, err := NewStatusMapping(" Preparando  Envio ", StageAcabamento)
		require.NoError(t, err)
		assert.Equal(t, "preparando envio", m.RawStatus)
		assert.Equal(t, StageAcabamento, m.Stage)
		assert.False(t, m.UpdatedAt.IsZero())
	})

	t.Run("rejects empty key", func(t *testing.T) {
		_, err := NewStatusMapping("   ", StageCorte)
		assert.ErrorIs(t, err, ErrEmptyStatusKey)
	})

	t.Run("rejects unknown stage", func(t *testing.T) {
		_, err := NewStatusMapping("aprovado", ProductionStage("pintura"))
		assert.ErrorIs(t, err, ErrInvalidStage)
	})
}
