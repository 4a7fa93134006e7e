package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/binding/mocks"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/orchestrator"
	"github.com/cory-johannsen/tactician/internal/game/plan"
	"github.com/cory-johannsen/tactician/internal/game/planner"
	"github.com/cory-johannsen/tactician/internal/game/situation"
)

var slash = situation.Ability{
	Ability: binding.Ability{ID: "slash", APCost: 1, Range: 1, Damage: true, TargetsEnemy: true},
	Timing:  situation.TimingAttack,
}

func self() binding.Unit {
	return binding.Unit{
		ID: "u", Faction: "blue", Role: "dps", Pos: grid.Point{X: 5.5, Y: 5.5},
		HP: 40, MaxHP: 40, AP: 4, MaxAP: 4, MP: 3, Controllable: true,
	}
}

func enemy(id string) binding.Unit {
	return binding.Unit{ID: id, Faction: "red", Pos: grid.Point{X: 6.5, Y: 5.5}, HP: 20, MaxHP: 20}
}

// harness wires a mocked host whose unit and command status tests mutate between cycles.
type harness struct {
	host   *mocks.MockBinding
	unit   binding.Unit
	others []binding.Unit
	status binding.CommandStatus
	round  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{unit: self(), others: []binding.Unit{enemy("e1")}, round: 1}
	h.host = mocks.NewMockBinding(gomock.NewController(t))
	h.host.EXPECT().Unit(gomock.Any()).DoAndReturn(func(id string) (binding.Unit, bool) {
		if id == h.unit.ID {
			return h.unit, true
		}
		return binding.Unit{}, false
	}).AnyTimes()
	h.host.EXPECT().Units().DoAndReturn(func() []binding.Unit {
		return append([]binding.Unit{h.unit}, h.others...)
	}).AnyTimes()
	h.host.EXPECT().ActingUnit().DoAndReturn(func() (string, int) { return h.unit.ID, h.round }).AnyTimes()
	h.host.EXPECT().CommandStatus(gomock.Any()).DoAndReturn(func(string) binding.CommandStatus {
		return h.status
	}).AnyTimes()
	return h
}

type fakeAnalyzer struct {
	h      *harness
	err    error
	panics bool
	calls  int
	resets int
}

func (a *fakeAnalyzer) Analyze(unitID string, flags situation.Flags, view blackboard.View) (*situation.Situation, error) {
	a.calls++
	if a.panics {
		panic("boom")
	}
	if a.err != nil {
		return nil, a.err
	}
	return situation.Build(situation.Input{
		Self: a.h.unit, Enemies: a.h.others, Abilities: []situation.Ability{slash}, Flags: flags, Board: view,
	}), nil
}

func (a *fakeAnalyzer) Reset() { a.resets++ }

// scriptedPlanner returns whatever build produces for every role.
type scriptedPlanner struct {
	build func(sit *situation.Situation) *plan.TurnPlan
	calls int
	err   error
}

func (p *scriptedPlanner) Plan(sit *situation.Situation, ctx map[string]string) (*plan.TurnPlan, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.build(sit), nil
}

func (p *scriptedPlanner) PlannerFor(situation.Role) (orchestrator.Planner, bool) { return p, true }

func strike(target string) *plan.PlannedAction {
	a := plan.NewAction(plan.ActionAttack, "strike")
	a.AbilityID = "slash"
	a.Target = binding.UnitTarget(target)
	a.APCost = 1
	return a
}

func attacks(n int) func(*situation.Situation) *plan.TurnPlan {
	return func(sit *situation.Situation) *plan.TurnPlan {
		tp := plan.New(sit.Self.ID, plan.StrategyAttack, plan.PriorityNormal, sit.Metrics())
		if len(sit.Enemies) == 0 {
			tp.Enqueue(plan.NewAction(plan.ActionEndTurn, "no enemies"))
			return tp
		}
		tp.TargetID = sit.Enemies[0].ID
		for i := 0; i < n; i++ {
			tp.Enqueue(strike(tp.TargetID))
		}
		tp.Enqueue(plan.NewAction(plan.ActionEndTurn, "done"))
		return tp
	}
}

func newOrchestrator(h *harness, a *fakeAnalyzer, src orchestrator.PlannerSource, cfg orchestrator.Config) *orchestrator.Orchestrator {
	return orchestrator.New(h.host, a, src, blackboard.New(nil), cfg, nil)
}

func kinds(results ...orchestrator.ExecutionResult) []orchestrator.ResultKind {
	out := make([]orchestrator.ResultKind, len(results))
	for i, r := range results {
		out[i] = r.Kind
	}
	return out
}

func TestNew_PanicsOnNilDependencies(t *testing.T) {
	h := newHarness(t)
	a := &fakeAnalyzer{h: h}
	src := &scriptedPlanner{}
	board := blackboard.New(nil)
	cfg := orchestrator.DefaultConfig()
	assert.Panics(t, func() { orchestrator.New(nil, a, src, board, cfg, nil) })
	assert.Panics(t, func() { orchestrator.New(h.host, nil, src, board, cfg, nil) })
	assert.Panics(t, func() { orchestrator.New(h.host, a, nil, board, cfg, nil) })
	assert.Panics(t, func() { orchestrator.New(h.host, a, src, nil, cfg, nil) })
}

func TestProcessTurn_CastWaitSucceedEnd(t *testing.T) {
	h := newHarness(t)
	src := &scriptedPlanner{build: attacks(1)}
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, src, orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	first := o.ProcessTurn("u")
	require.Equal(t, orchestrator.ResultCastAbility, first.Kind)
	assert.Equal(t, "slash", first.AbilityID)
	assert.Equal(t, binding.UnitTarget("e1"), first.Target)

	target, ok := o.Board().SharedTarget("blue", h.host.Units())
	require.True(t, ok)
	assert.Equal(t, "e1", target)

	h.status = binding.CommandStatus{Pending: true}
	assert.Equal(t, orchestrator.ResultWaiting, o.ProcessTurn("u").Kind)

	h.status = binding.CommandStatus{}
	last := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultEndTurn, last.Kind)
	assert.True(t, first.Action.Executed())
	assert.True(t, first.Action.Succeeded())

	ts, ok := o.TurnState("u")
	require.True(t, ok)
	assert.True(t, ts.Flags.Attacked)
	assert.Equal(t, 1, ts.Flags.ActionsTaken)
	assert.Equal(t, orchestrator.StateTurnEnded, ts.State)
	assert.Equal(t, 1, src.calls)

	assert.Equal(t, orchestrator.ResultEndTurn, o.ProcessTurn("u").Kind, "ended turns stay ended")
}

func TestProcessTurn_WaitBudgetEndsTurn(t *testing.T) {
	h := newHarness(t)
	cfg := orchestrator.DefaultConfig()
	cfg.WaitFrameBudget = 2
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, &scriptedPlanner{build: attacks(1)}, cfg)
	o.OnTurnStart("u")

	require.Equal(t, orchestrator.ResultCastAbility, o.ProcessTurn("u").Kind)
	h.status = binding.CommandStatus{Pending: true}
	got := kinds(o.ProcessTurn("u"), o.ProcessTurn("u"), o.ProcessTurn("u"))
	assert.Equal(t, []orchestrator.ResultKind{orchestrator.ResultWaiting, orchestrator.ResultWaiting, orchestrator.ResultEndTurn}, got)
}

func TestProcessTurn_RecoverableFailurePurgesGroup(t *testing.T) {
	h := newHarness(t)
	src := &scriptedPlanner{build: func(sit *situation.Situation) *plan.TurnPlan {
		tp := plan.New("u", plan.StrategyAttack, plan.PriorityNormal, sit.Metrics())
		mv := plan.NewAction(plan.ActionMove, "approach")
		mv.Target = binding.PointTarget(grid.Point{X: 4.5, Y: 5.5})
		mv.Group, mv.OnFailure = "g1", plan.PurgeGroup
		hit := strike("e1")
		hit.Group = "g1"
		tp.Enqueue(mv, hit, plan.NewAction(plan.ActionEndTurn, "done"))
		return tp
	}}
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, src, orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	move := o.ProcessTurn("u")
	require.Equal(t, orchestrator.ResultMoveTo, move.Kind)
	assert.Equal(t, grid.Point{X: 4.5, Y: 5.5}, move.Target.Point)

	h.status = binding.CommandStatus{Failed: true, Reason: binding.FailurePathBlocked}
	fail := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultFailure, fail.Kind)
	assert.Contains(t, fail.Reason, "path_blocked")
	assert.False(t, move.Action.Succeeded())

	_, ok := o.PeekNextAction("u")
	require.True(t, ok)
	h.status = binding.CommandStatus{}
	assert.Equal(t, orchestrator.ResultEndTurn, o.ProcessTurn("u").Kind)
	assert.Equal(t, 1, src.calls)
}

func TestProcessTurn_ReplanTierRebuildsPlan(t *testing.T) {
	h := newHarness(t)
	src := &scriptedPlanner{build: attacks(2)}
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, src, orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	require.Equal(t, orchestrator.ResultCastAbility, o.ProcessTurn("u").Kind)
	h.status = binding.CommandStatus{Failed: true, Reason: binding.FailureTargetDead}
	assert.Equal(t, orchestrator.ResultFailure, o.ProcessTurn("u").Kind)

	h.status = binding.CommandStatus{}
	assert.Equal(t, orchestrator.ResultCastAbility, o.ProcessTurn("u").Kind)
	assert.Equal(t, 2, src.calls)
	ts, _ := o.TurnState("u")
	assert.Equal(t, 1, ts.Replans)
}

func TestProcessTurn_ReplanBudgetExhaustedEndsTurn(t *testing.T) {
	h := newHarness(t)
	cfg := orchestrator.DefaultConfig()
	cfg.MaxReplans = 0
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, &scriptedPlanner{build: attacks(2)}, cfg)
	o.OnTurnStart("u")

	o.ProcessTurn("u")
	h.status = binding.CommandStatus{Failed: true, Reason: binding.FailureAbilityUnavailable}
	assert.Equal(t, orchestrator.ResultEndTurn, o.ProcessTurn("u").Kind)
}

func TestProcessTurn_TerminalFailureEndsTurn(t *testing.T) {
	h := newHarness(t)
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, &scriptedPlanner{build: attacks(3)}, orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	o.ProcessTurn("u")
	h.status = binding.CommandStatus{Failed: true, Reason: binding.FailureNoResources}
	res := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultEndTurn, res.Kind)
	assert.Contains(t, res.Reason, "no_resources")
}

func TestProcessTurn_ConsecutiveFailuresFallBackThenEnd(t *testing.T) {
	h := newHarness(t)
	cfg := orchestrator.DefaultConfig()
	cfg.MaxConsecutiveFailures = 1
	cfg.MaxFallbackReplans = 1
	src := &scriptedPlanner{build: attacks(3)}
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, src, cfg)
	o.OnTurnStart("u")

	fail := binding.CommandStatus{Failed: true, Reason: binding.FailureOutOfRange}
	var got []orchestrator.ResultKind
	for i := 0; i < 4; i++ {
		h.status = binding.CommandStatus{}
		got = append(got, o.ProcessTurn("u").Kind)
		h.status = fail
		got = append(got, o.ProcessTurn("u").Kind)
	}
	assert.Equal(t, []orchestrator.ResultKind{
		orchestrator.ResultCastAbility, orchestrator.ResultFailure,
		orchestrator.ResultCastAbility, orchestrator.ResultContinue,
		orchestrator.ResultCastAbility, orchestrator.ResultFailure,
		orchestrator.ResultCastAbility, orchestrator.ResultEndTurn,
	}, got)
	assert.Equal(t, 2, src.calls)
}

func TestProcessTurn_ActionBudgetEndsTurn(t *testing.T) {
	h := newHarness(t)
	cfg := orchestrator.DefaultConfig()
	cfg.MaxActionsPerTurn = 1
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, &scriptedPlanner{build: attacks(3)}, cfg)
	o.OnTurnStart("u")

	o.ProcessTurn("u")
	res := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultEndTurn, res.Kind)
	assert.Equal(t, "action budget exhausted", res.Reason)
}

func TestProcessTurn_AnalysisFailureEndsTurn(t *testing.T) {
	h := newHarness(t)
	a := &fakeAnalyzer{h: h, err: situation.ErrAnalysisFailed}
	o := newOrchestrator(h, a, &scriptedPlanner{build: attacks(1)}, orchestrator.DefaultConfig())

	res := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultEndTurn, res.Kind)
	assert.Equal(t, "analysis failed", res.Reason)
}

func TestProcessTurn_RecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	o := newOrchestrator(h, &fakeAnalyzer{h: h, panics: true}, &scriptedPlanner{build: attacks(1)}, orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	var res orchestrator.ExecutionResult
	require.NotPanics(t, func() { res = o.ProcessTurn("u") })
	assert.Equal(t, orchestrator.ResultEndTurn, res.Kind)
	assert.Contains(t, res.Reason, "boom")
}

func TestProcessTurn_UncontrollableUnitEndsWithoutAnalysis(t *testing.T) {
	h := newHarness(t)
	h.unit.Controllable = false
	a := &fakeAnalyzer{h: h}
	o := newOrchestrator(h, a, &scriptedPlanner{build: attacks(1)}, orchestrator.DefaultConfig())

	assert.Equal(t, orchestrator.ResultEndTurn, o.ProcessTurn("u").Kind)
	assert.Zero(t, a.calls)
}

func TestProcessTurn_NoPlanEndsTurn(t *testing.T) {
	h := newHarness(t)
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, &scriptedPlanner{err: planner.ErrNoPlan}, orchestrator.DefaultConfig())

	res := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultEndTurn, res.Kind)
	assert.Equal(t, "no plan", res.Reason)
}

func TestProcessTurn_MustReplanWhenTargetDies(t *testing.T) {
	h := newHarness(t)
	src := &scriptedPlanner{build: attacks(2)}
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, src, orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	require.Equal(t, orchestrator.ResultCastAbility, o.ProcessTurn("u").Kind)
	h.others = []binding.Unit{enemy("e2")}
	res := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultCastAbility, res.Kind)
	assert.Equal(t, binding.UnitTarget("e2"), res.Target)
	assert.Equal(t, 2, src.calls)
	ts, _ := o.TurnState("u")
	assert.Equal(t, 1, ts.Replans)
}

func TestProcessTurn_ClaimsAndMarks(t *testing.T) {
	h := newHarness(t)
	src := &scriptedPlanner{build: func(sit *situation.Situation) *plan.TurnPlan {
		tp := plan.New("u", plan.StrategyAttack, plan.PriorityNormal, sit.Metrics())
		hex := strike("e1")
		hex.Type = plan.ActionDebuff
		hex.Marks = []string{"debuffed:e1"}
		hex.Claim = &plan.Claim{Kind: blackboard.ReserveTaunt, Key: "e1"}
		tp.Enqueue(hex, plan.NewAction(plan.ActionEndTurn, "done"))
		return tp
	}}
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, src, orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	o.ProcessTurn("u")
	assert.True(t, o.Board().IsReserved(blackboard.ReserveTaunt, "e1", "someone-else"))

	o.ProcessTurn("u")
	ts, _ := o.TurnState("u")
	assert.Equal(t, "slash", ts.Context["debuffed:e1"])
	assert.True(t, ts.Flags.Attacked)
}

func TestLifecycle_RoundAndCombatReset(t *testing.T) {
	h := newHarness(t)
	a := &fakeAnalyzer{h: h}
	o := newOrchestrator(h, a, &scriptedPlanner{build: attacks(1)}, orchestrator.DefaultConfig())

	h.round = 2
	o.OnTurnStart("u")
	assert.Equal(t, 2, o.Board().Round())
	ts, ok := o.TurnState("u")
	require.True(t, ok)
	assert.Equal(t, 4.0, ts.Flags.APAtTurnStart)

	o.ProcessTurn("u")
	o.OnTurnEnd("u")
	assert.Equal(t, orchestrator.StateTurnEnded, ts.State)
	_, ok = o.PeekNextAction("u")
	assert.False(t, ok)

	o.OnCombatEnd()
	_, ok = o.TurnState("u")
	assert.False(t, ok)
	assert.Equal(t, 1, a.resets)
	assert.Zero(t, o.Board().Round())
}

func TestProcessTurn_WithRegistryPlanner(t *testing.T) {
	h := newHarness(t)
	reg := planner.NewRegistry()
	require.NoError(t, reg.Register(planner.DefaultDomain(), planner.Deps{Oracle: fixedPrediction{}}))
	o := newOrchestrator(h, &fakeAnalyzer{h: h}, orchestrator.FromRegistry(reg), orchestrator.DefaultConfig())
	o.OnTurnStart("u")

	res := o.ProcessTurn("u")
	assert.Equal(t, orchestrator.ResultCastAbility, res.Kind)
	assert.Equal(t, "slash", res.AbilityID)
}

type fixedPrediction struct{}

func (fixedPrediction) PredictDamage(string, string, string) binding.DamageRange {
	return binding.DamageRange{Min: 5, Max: 7}
}
func (fixedPrediction) HitChance(string, string, string) float64   { return 0.8 }
func (fixedPrediction) HasLineOfSight(grid.Point, grid.Point) bool { return true }
func (fixedPrediction) CoverAt(grid.Point, grid.Point) float64     { return 0 }

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, orchestrator.TierTerminal, orchestrator.ClassifyFailure(binding.FailureUnitIncapacitated))
	assert.Equal(t, orchestrator.TierReplan, orchestrator.ClassifyFailure(binding.FailureUnknown))
	assert.Equal(t, orchestrator.TierRecoverable, orchestrator.ClassifyFailure(binding.FailureDuplicateBuff))
}

func TestProperty_TurnAlwaysEndsWithinBudget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		cfg := orchestrator.DefaultConfig()
		cfg.WaitFrameBudget = rapid.IntRange(0, 3).Draw(rt, "waitBudget")
		src := &scriptedPlanner{build: attacks(rapid.IntRange(0, 6).Draw(rt, "attacks"))}
		o := newOrchestrator(h, &fakeAnalyzer{h: h}, src, cfg)
		o.OnTurnStart("u")

		reasons := []binding.FailureReason{
			binding.FailureNone, binding.FailureOutOfRange, binding.FailureTargetDead,
			binding.FailureNoResources, binding.FailureDuplicateBuff,
		}
		ended := false
		for i := 0; i < 200 && !ended; i++ {
			switch rapid.IntRange(0, 2).Draw(rt, "status") {
			case 0:
				h.status = binding.CommandStatus{}
			case 1:
				h.status = binding.CommandStatus{Pending: true}
			default:
				r := rapid.SampledFrom(reasons).Draw(rt, "reason")
				h.status = binding.CommandStatus{Failed: r != binding.FailureNone, Reason: r}
			}
			ended = o.ProcessTurn("u").Kind == orchestrator.ResultEndTurn
		}
		if !ended {
			rt.Fatalf("turn did not end within 200 cycles")
		}
		ts, _ := o.TurnState("u")
		if ts.Flags.ActionsTaken > cfg.MaxActionsPerTurn {
			rt.Fatalf("actions taken %d exceeds budget %d", ts.Flags.ActionsTaken, cfg.MaxActionsPerTurn)
		}
	})
}
