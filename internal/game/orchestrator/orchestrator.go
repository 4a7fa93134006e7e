// Package orchestrator drives each controlled unit's turn one decision cycle
// at a time: it validates the unit, waits for the previous command to resolve,
// builds or replans the turn plan, and hands exactly one action to the host.
//
// The host calls ProcessTurn once per tick for the acting unit. Every outcome,
// including internal faults, is reported as an ExecutionResult.
package orchestrator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/plan"
	"github.com/cory-johannsen/tactician/internal/game/planner"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

// Host is the part of the engine binding the orchestrator reads directly.
type Host interface {
	binding.RosterQuery
	binding.TurnQuery
}

// Analyzer builds the per-cycle situation.
type Analyzer interface {
	Analyze(unitID string, flags situation.Flags, view blackboard.View) (*situation.Situation, error)
	Reset()
}

// Planner turns a situation into a turn plan.
type Planner interface {
	Plan(sit *situation.Situation, ctx map[string]string) (*plan.TurnPlan, error)
}

// PlannerSource selects the planner for a role.
type PlannerSource interface {
	PlannerFor(role situation.Role) (Planner, bool)
}

type registrySource struct{ r *planner.Registry }

func (s registrySource) PlannerFor(role situation.Role) (Planner, bool) {
	p, ok := s.r.PlannerFor(role)
	if !ok {
		return nil, false
	}
	return p, true
}

// FromRegistry adapts a planner registry to a PlannerSource.
func FromRegistry(r *planner.Registry) PlannerSource { return registrySource{r: r} }

// Config holds the turn budgets.
type Config struct {
	MaxActionsPerTurn      int
	MaxConsecutiveFailures int
	MaxReplans             int
	MaxFallbackReplans     int
	// WaitFrameBudget is the number of Waiting cycles tolerated before the turn is forced to end.
	WaitFrameBudget int
	Replan          plan.ReplanConfig
}

// DefaultConfig returns the budgets used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		MaxActionsPerTurn:      15,
		MaxConsecutiveFailures: 3,
		MaxReplans:             3,
		MaxFallbackReplans:     2,
		WaitFrameBudget:        300,
		Replan:                 plan.DefaultReplanConfig(),
	}
}

// Orchestrator owns every unit's TurnState for one combat.
//
// Invariant: only the acting unit's cycle writes to the board.
type Orchestrator struct {
	host     Host
	analyzer Analyzer
	planners PlannerSource
	board    *blackboard.Blackboard
	cfg      Config
	turns    map[string]*TurnState
	logger   *zap.Logger
}

// New constructs an Orchestrator.
//
// Precondition: host, analyzer, planners, and board must not be nil.
func New(host Host, analyzer Analyzer, planners PlannerSource, board *blackboard.Blackboard, cfg Config, logger *zap.Logger) *Orchestrator {
	if host == nil {
		panic("orchestrator.New: host must not be nil")
	}
	if analyzer == nil {
		panic("orchestrator.New: analyzer must not be nil")
	}
	if planners == nil {
		panic("orchestrator.New: planners must not be nil")
	}
	if board == nil {
		panic("orchestrator.New: board must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		host:     host,
		analyzer: analyzer,
		planners: planners,
		board:    board,
		cfg:      cfg,
		turns:    make(map[string]*TurnState),
		logger:   logger.Named("orchestrator"),
	}
}

// Board returns the team blackboard so the host can record damage and kills.
func (o *Orchestrator) Board() *blackboard.Blackboard { return o.board }

// TurnState returns the unit's current turn state.
func (o *Orchestrator) TurnState(unitID string) (*TurnState, bool) {
	ts, ok := o.turns[unitID]
	return ts, ok
}

// OnTurnStart resets unitID's turn state. Reservations the unit held from an
// earlier turn are released, and the board's round fields reset when the round changed.
func (o *Orchestrator) OnTurnStart(unitID string) {
	if _, round := o.host.ActingUnit(); round != o.board.Round() {
		o.board.OnRoundStart(round)
	}
	o.board.Release(unitID)
	ts := newTurnState(unitID)
	if u, ok := o.host.Unit(unitID); ok {
		ts.Flags.APAtTurnStart = u.AP
	}
	o.turns[unitID] = ts
	o.logger.Debug("turn started", zap.String("unit", unitID), zap.Int("round", o.board.Round()))
}

// OnTurnEnd marks unitID's turn as over and discards its remaining plan.
func (o *Orchestrator) OnTurnEnd(unitID string) {
	ts, ok := o.turns[unitID]
	if !ok {
		return
	}
	if ts.State != StateTurnEnded {
		o.end(ts, "turn ended by host")
	}
	ts.InFlight = nil
}

// OnCombatEnd discards every turn state and resets the board and analysis caches.
func (o *Orchestrator) OnCombatEnd() {
	o.turns = make(map[string]*TurnState)
	o.board.Reset()
	o.analyzer.Reset()
	o.logger.Debug("combat ended")
}

// PeekNextAction returns the head of unitID's plan without removing it.
func (o *Orchestrator) PeekNextAction(unitID string) (*plan.PlannedAction, bool) {
	ts, ok := o.turns[unitID]
	if !ok || ts.Plan == nil {
		return nil, false
	}
	return ts.Plan.PeekNextAction()
}

// GetNextAction removes and returns the head of unitID's plan. Hosts that
// drive execution through ProcessTurn never need it.
func (o *Orchestrator) GetNextAction(unitID string) (*plan.PlannedAction, bool) {
	ts, ok := o.turns[unitID]
	if !ok || ts.Plan == nil {
		return nil, false
	}
	return ts.Plan.GetNextAction()
}

// ProcessTurn runs one decision cycle for unitID.
//
// Postcondition: never panics; internal faults end the turn with a diagnostic reason.
func (o *Orchestrator) ProcessTurn(unitID string) (res ExecutionResult) {
	var ts *TurnState
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("decision cycle panicked", zap.String("unit", unitID), zap.Any("panic", r))
			if ts == nil {
				ts = newTurnState(unitID)
				o.turns[unitID] = ts
			}
			res = o.end(ts, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ts, ok := o.turns[unitID]
	if !ok {
		o.OnTurnStart(unitID)
		ts = o.turns[unitID]
	}

	if ts.State == StateTurnEnded {
		return ExecutionResult{Kind: ResultEndTurn, Reason: ts.EndReason}
	}

	u, ok := o.host.Unit(unitID)
	if !ok || u.Dead || !u.Controllable {
		return o.end(ts, "unit cannot act")
	}

	if ts.InFlight != nil {
		st := o.host.CommandStatus(unitID)
		if st.Pending {
			ts.WaitFrames++
			if ts.WaitFrames > o.cfg.WaitFrameBudget {
				return o.end(ts, "wait-frame budget exhausted")
			}
			return ExecutionResult{Kind: ResultWaiting, Action: ts.InFlight}
		}
		ts.WaitFrames = 0
		if r, stop := o.resolve(ts, u, st); stop {
			return r
		}
	}

	if ts.Flags.ActionsTaken >= o.cfg.MaxActionsPerTurn {
		return o.end(ts, "action budget exhausted")
	}

	units := o.host.Units()
	sit, err := o.analyzer.Analyze(unitID, ts.Flags, o.board.View(u.Faction, units))
	if err != nil {
		o.logger.Warn("analysis failed", zap.String("unit", unitID), zap.Error(err))
		return o.end(ts, "analysis failed")
	}

	if ts.Plan == nil {
		if r, stop := o.build(ts, u, sit); stop {
			return r
		}
	} else if d := ts.Plan.NeedsReplan(sit, o.cfg.Replan); d.Needed {
		if d.Urgency == plan.UrgencyMust || ts.Replans < o.cfg.MaxReplans {
			o.logger.Debug("replanning",
				zap.String("unit", unitID),
				zap.Stringer("urgency", d.Urgency),
				zap.String("reason", d.Reason),
			)
			ts.Replans++
			ts.Plan.Cancel()
			if r, stop := o.build(ts, u, sit); stop {
				return r
			}
		}
	}

	next, ok := ts.Plan.GetNextAction()
	if !ok {
		ts.State = StatePlanComplete
		return o.end(ts, "plan complete")
	}
	switch next.Type {
	case plan.ActionEndTurn:
		ts.State = StatePlanComplete
		return o.end(ts, next.Rationale)
	case plan.ActionMove:
		ts.InFlight = next
		return ExecutionResult{Kind: ResultMoveTo, Action: next, Target: next.Target}
	default:
		ts.InFlight = next
		return ExecutionResult{Kind: ResultCastAbility, Action: next, AbilityID: next.AbilityID, Target: next.Target}
	}
}

// build asks the role's planner for a fresh plan and publishes its vote and claims.
func (o *Orchestrator) build(ts *TurnState, u binding.Unit, sit *situation.Situation) (ExecutionResult, bool) {
	p, ok := o.planners.PlannerFor(sit.Role)
	if !ok {
		return o.end(ts, fmt.Sprintf("no planner for role %s", sit.Role)), true
	}
	tp, err := p.Plan(sit, ts.Context)
	if err != nil {
		if !errors.Is(err, planner.ErrNoPlan) {
			o.logger.Warn("planning failed", zap.String("unit", u.ID), zap.Error(err))
		}
		return o.end(ts, "no plan"), true
	}
	ts.Plan = tp
	ts.State = StatePlanActive

	o.board.Release(u.ID)
	if tp.TargetID != "" {
		o.board.Vote(u.ID, u.Faction, tp.TargetID)
	}
	for _, a := range tp.Actions() {
		if a.Claim != nil {
			o.board.Reserve(a.Claim.Kind, a.Claim.Key, u.ID, u.Faction)
		}
	}
	o.logger.Debug("plan adopted",
		zap.String("unit", u.ID),
		zap.String("plan", tp.ID.String()),
		zap.String("strategy", string(tp.Strategy)),
		zap.Stringer("priority", tp.Priority),
		zap.Int("actions", tp.RemainingActionCount()),
	)
	return ExecutionResult{}, false
}

// resolve records the in-flight action's outcome. It reports stop when the
// cycle must return the given result instead of continuing.
func (o *Orchestrator) resolve(ts *TurnState, u binding.Unit, st binding.CommandStatus) (ExecutionResult, bool) {
	a := ts.InFlight
	ts.InFlight = nil
	ts.Flags.ActionsTaken++

	if !st.Failed {
		if err := a.MarkExecuted(true); err != nil {
			o.logger.Warn("action resolved twice", zap.Error(err))
		}
		ts.ConsecutiveFailures = 0
		switch a.Type {
		case plan.ActionMove:
			ts.Flags.Moved = true
		case plan.ActionAttack, plan.ActionDebuff:
			ts.Flags.Attacked = true
		case plan.ActionBuff:
			ts.Flags.Buffed = true
		case plan.ActionHeal:
			ts.Flags.Healed = true
		}
		for _, m := range a.Marks {
			ts.Context[m] = a.AbilityID
		}
		return ExecutionResult{}, false
	}

	if err := a.MarkExecuted(false); err != nil {
		o.logger.Warn("action resolved twice", zap.Error(err))
	}
	ts.ConsecutiveFailures++
	tier := ClassifyFailure(st.Reason)
	reason := fmt.Sprintf("%s failed: %s", a, st.Reason)

	if ts.ConsecutiveFailures > o.cfg.MaxConsecutiveFailures && tier != TierTerminal {
		if (u.AP > 0 || u.MP > 0) && ts.FallbackReplans < o.cfg.MaxFallbackReplans {
			ts.FallbackReplans++
			ts.ConsecutiveFailures = 0
			o.discardPlan(ts)
			o.logger.Debug("fallback replan", zap.String("unit", u.ID), zap.Int("fallbacks", ts.FallbackReplans))
			return ExecutionResult{Kind: ResultContinue, Action: a, Reason: reason}, true
		}
		tier = TierTerminal
	}
	if tier == TierReplan && ts.Replans >= o.cfg.MaxReplans {
		tier = TierTerminal
	}

	o.logger.Debug("action failed",
		zap.String("unit", u.ID),
		zap.Stringer("action", a),
		zap.Stringer("reason", st.Reason),
		zap.Stringer("tier", tier),
		zap.Int("consecutive", ts.ConsecutiveFailures),
	)
	switch tier {
	case TierTerminal:
		return o.end(ts, reason), true
	case TierReplan:
		ts.Replans++
		o.discardPlan(ts)
	default:
		if a.OnFailure == plan.PurgeGroup && ts.Plan != nil {
			ts.Plan.PurgeGroup(a.Group)
		}
	}
	return ExecutionResult{Kind: ResultFailure, Action: a, Reason: reason}, true
}

func (o *Orchestrator) discardPlan(ts *TurnState) {
	if ts.Plan != nil {
		ts.Plan.Cancel()
	}
	ts.Plan = nil
	ts.State = StateNoPlan
}

func (o *Orchestrator) end(ts *TurnState, reason string) ExecutionResult {
	if ts.Plan != nil {
		ts.Plan.Cancel()
	}
	ts.State = StateTurnEnded
	ts.EndReason = reason
	o.logger.Debug("turn ended", zap.String("unit", ts.UnitID), zap.String("reason", reason))
	return ExecutionResult{Kind: ResultEndTurn, Reason: reason}
}
