package integration

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// ProductionStage is a workshop-workflow state
// ---------------------------------------------------------------------------

// ProductionStage is one of the five physical manufacturing steps
type ProductionStage string

const (
	StageCorte      ProductionStage = "corte"
	StageCostura    ProductionStage = "costura"
	StageMontagem   ProductionStage = "montagem"
	StageAcabamento ProductionStage = "acabamento"
	StagePronto     ProductionStage = "pronto"

	// DefaultStage is returned for any status the mapping table does not know
	DefaultStage = StageCorte
)

// AllProductionStages returns the stages in workshop order
func AllProductionStages() []ProductionStage {
	return []ProductionStage{StageCorte, StageCostura, StageMontagem, StageAcabamento, StagePronto}
}

// IsValid returns true if the stage is one of the five known stages
func (s ProductionStage) IsValid() bool {
	switch s {
	case StageCorte, StageCostura, StageMontagem, StageAcabamento, StagePronto:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProductionStage
func (s ProductionStage) String() string {
	return string(s)
}

// Position returns the 0-based workshop order of the stage, -1 if unknown
func (s ProductionStage) Position() int {
	for i, stage := range AllProductionStages() {
		if stage == s {
			return i
		}
	}
	return -1
}

// ParseProductionStage parses a stage name case-insensitively
func ParseProductionStage(raw string) (ProductionStage, error) {
	stage := ProductionStage(NormalizeStatusKey(raw))
	if !stage.IsValid() {
		return "", ErrInvalidStage
	}
	return stage, nil
}

// ---------------------------------------------------------------------------
// Status keys
// ---------------------------------------------------------------------------

// NormalizeStatusKey produces the lookup key for a raw ERP status:
// NFC-normalized, whitespace-collapsed and Unicode case-folded.
// Matching on the result is exact; there is no fuzzy matching.
func NormalizeStatusKey(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Join(strings.Fields(s), " ")
	// Casers are stateful; one per call keeps this safe for concurrent use.
	return cases.Fold().String(s)
}

// DefaultStatusMappings returns the seed translation table
func DefaultStatusMappings() map[string]ProductionStage {
	return map[string]ProductionStage{
		"em aberto":         StageCorte,
		"aprovado":          StageCostura,
		"em produção":       StageMontagem,
		"preparando envio":  StageAcabamento,
		"faturado":          StagePronto,
		"pronto para envio": StagePronto,
		"enviado":           StagePronto,
		"entregue":          StagePronto,
		"cancelado":         StageCorte,
	}
}

// ResolveStage looks up raw in table, falling back to DefaultStage.
// It never fails: any input resolves to a valid stage.
func ResolveStage(table map[string]ProductionStage, raw string) ProductionStage {
	if stage, ok := table[NormalizeStatusKey(raw)]; ok && stage.IsValid() {
		return stage
	}
	return DefaultStage
}

// ---------------------------------------------------------------------------
// Mapping table rows
// ---------------------------------------------------------------------------

// StatusMapping is one editable row of the translation table
type StatusMapping struct {
	RawStatus string          `json:"raw_status"`
	Stage     ProductionStage `json:"stage"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewStatusMapping validates and normalizes a mapping row
func NewStatusMapping(rawStatus string, stage ProductionStage) (*StatusMapping, error) {
	key := NormalizeStatusKey(rawStatus)
	if key == "" {
		return nil, ErrEmptyStatusKey
	}
	if !stage.IsValid() {
		return nil, ErrInvalidStage
	}
	return &StatusMapping{
		RawStatus: key,
		Stage:     stage,
		UpdatedAt: time.Now(),
	}, nil
}
