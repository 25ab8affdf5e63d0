package integration

import "fmt"

// ---------------------------------------------------------------------------
// Lifecycle is the internal order state machine
// ---------------------------------------------------------------------------

// LifecycleState is a commercial order state
type LifecycleState string

const (
	LifecycleOpen         LifecycleState = "open"
	LifecycleApproved     LifecycleState = "approved"
	LifecycleInProduction LifecycleState = "in_production"
	LifecycleShipped      LifecycleState = "shipped"
	LifecycleDelivered    LifecycleState = "delivered"
	LifecycleCanceled     LifecycleState = "canceled"
)

// rank orders the canonical path; canceled sits outside it
func (s LifecycleState) rank() int {
	switch s {
	case LifecycleOpen:
		return 0
	case LifecycleApproved:
		return 1
	case LifecycleInProduction:
		return 2
	case LifecycleShipped:
		return 3
	case LifecycleDelivered:
		return 4
	default:
		return -1
	}
}

// IsValid returns true if the state is known
func (s LifecycleState) IsValid() bool {
	return s == LifecycleCanceled || s.rank() >= 0
}

// Lifecycle is a state plus, when in production, the workshop stage
type Lifecycle struct {
	State LifecycleState  `json:"state"`
	Stage ProductionStage `json:"stage,omitempty"`
}

// String renders the lifecycle as "in_production(costura)" or the bare state
func (l Lifecycle) String() string {
	if l.State == LifecycleInProduction {
		return fmt.Sprintf("%s(%s)", l.State, l.Stage)
	}
	return string(l.State)
}

// IsPreShipment returns true while cancellation is still a regular move
func (l Lifecycle) IsPreShipment() bool {
	r := l.State.rank()
	return r >= 0 && r < LifecycleShipped.rank()
}

// IsRegularTransition classifies a move along the state machine.
// Transitions are never rejected; an irregular one (a regression, a
// reopened cancellation, a late cancellation) is applied but reported.
func IsRegularTransition(from, to Lifecycle) bool {
	if from == to {
		return true
	}
	if to.State == LifecycleCanceled {
		return from.IsPreShipment()
	}
	if from.State == LifecycleCanceled {
		return false
	}
	if from.State == LifecycleInProduction && to.State == LifecycleInProduction {
		return to.Stage.Position() >= from.Stage.Position()
	}
	return to.State.rank() > from.State.rank()
}

// TinyLifecycle derives the lifecycle of an ERP order from its raw status
// and the stage the status translates to. It is total.
func TinyLifecycle(rawStatus string, stage ProductionStage) Lifecycle {
	switch NormalizeStatusKey(rawStatus) {
	case "", StatusPending, "em aberto", "aberto":
		return Lifecycle{State: LifecycleOpen}
	case "cancelado":
		return Lifecycle{State: LifecycleCanceled}
	case "enviado":
		return Lifecycle{State: LifecycleShipped}
	case "entregue":
		return Lifecycle{State: LifecycleDelivered}
	}
	if !stage.IsValid() {
		stage = DefaultStage
	}
	return Lifecycle{State: LifecycleInProduction, Stage: stage}
}

// VndaLifecycle maps an e-commerce order status onto the lifecycle.
// The table is fixed: confirmed and paid approve, shipped ships, canceled
// cancels, anything else stays open.
func VndaLifecycle(rawStatus string) Lifecycle {
	switch NormalizeStatusKey(rawStatus) {
	case "confirmed", "paid":
		return Lifecycle{State: LifecycleApproved}
	case "shipped":
		return Lifecycle{State: LifecycleShipped}
	case "canceled", "cancelled":
		return Lifecycle{State: LifecycleCanceled}
	default:
		return Lifecycle{State: LifecycleOpen}
	}
}

// DeriveLifecycle picks the per-source derivation. stage is only used for
// ERP orders.
func DeriveLifecycle(source Source, rawStatus string, stage ProductionStage) Lifecycle {
	switch source {
	case SourceTiny:
		return TinyLifecycle(rawStatus, stage)
	case SourceVnda:
		return VndaLifecycle(rawStatus)
	default:
		return Lifecycle{State: LifecycleOpen}
	}
}
