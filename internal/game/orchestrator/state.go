package orchestrator

import (
	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/plan"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// State is a unit's position in the per-turn state machine.
type State int

const (
	StateNoPlan State = iota
	StatePlanActive
	StatePlanComplete
	StateTurnEnded
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StatePlanActive:
		return "plan_active"
	case StatePlanComplete:
		return "plan_complete"
	case StateTurnEnded:
		return "turn_ended"
	default:
		return "no_plan"
	}
}

// TurnState is everything the orchestrator carries across decision cycles of
// one unit's turn.
type TurnState struct {
	UnitID string
	State  State
	Plan   *plan.TurnPlan
	Flags  situation.Flags

	ConsecutiveFailures int
	Replans             int
	FallbackReplans     int
	WaitFrames          int
	// InFlight is the action handed to the host and not yet resolved.
	InFlight *plan.PlannedAction
	// Context is the strategic bag written by action marks; it survives replans.
	Context map[string]string
	// EndReason records why the turn ended.
	EndReason string
}

func newTurnState(unitID string) *TurnState {
	return &TurnState{UnitID: unitID, Context: make(map[string]string)}
}

// ResultKind tags an ExecutionResult.
type ResultKind int

const (
	ResultCastAbility ResultKind = iota
	ResultMoveTo
	ResultEndTurn
	ResultContinue
	ResultWaiting
	ResultFailure
)

// String returns the kind's name.
func (k ResultKind) String() string {
	switch k {
	case ResultCastAbility:
		return "cast_ability"
	case ResultMoveTo:
		return "move_to"
	case ResultEndTurn:
		return "end_turn"
	case ResultContinue:
		return "continue"
	case ResultWaiting:
		return "waiting"
	default:
		return "failure"
	}
}

// ExecutionResult is the outcome of one decision cycle, for the host to interpret.
//
// CastAbility carries AbilityID and Target; MoveTo carries Target.Point.
// Failure and EndTurn carry a Reason.
type ExecutionResult struct {
	Kind      ResultKind
	Action    *plan.PlannedAction
	AbilityID string
	Target    binding.Target
	Reason    string
}

// Tier is the handling class of a command failure.
type Tier int

const (
	// TierRecoverable drops the failed action and continues the queue.
	TierRecoverable Tier = iota
	// TierReplan discards the queue and builds a new plan.
	TierReplan
	// TierTerminal ends the turn.
	TierTerminal
)

// String returns the tier's name.
func (t Tier) String() string {
	switch t {
	case TierReplan:
		return "replan"
	case TierTerminal:
		return "terminal"
	default:
		return "recoverable"
	}
}

// ClassifyFailure maps an engine failure reason to its handling tier.
func ClassifyFailure(r binding.FailureReason) Tier {
	switch r {
	case binding.FailureNoResources, binding.FailureUnitIncapacitated:
		return TierTerminal
	case binding.FailureTargetInvalid, binding.FailureTargetDead, binding.FailureAbilityUnavailable, binding.FailureUnknown:
		return TierReplan
	default:
		return TierRecoverable
	}
}
