package planner_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/plan"
	"github.com/cory-johannsen/tactician/internal/game/planner"
	"github.com/cory-johannsen/tactician/internal/game/situation"
	"github.com/cory-johannsen/tactician/internal/game/spatial"
)

type fixedPrediction struct {
	// blocked reports a wall between two points; nil means every line is clear.
	blocked func(from, to grid.Point) bool
}

func (fixedPrediction) PredictDamage(string, string, string) binding.DamageRange {
	return binding.DamageRange{Min: 5, Max: 7}
}
func (fixedPrediction) HitChance(string, string, string) float64 { return 0.8 }
func (f fixedPrediction) HasLineOfSight(from, to grid.Point) bool {
	return f.blocked == nil || !f.blocked(from, to)
}
func (fixedPrediction) CoverAt(grid.Point, grid.Point) float64 { return 0 }

// fakeScripts answers every hook from a fixed table.
type fakeScripts struct {
	answers map[string]bool
	calls   []string
	err     error
}

func (f *fakeScripts) EvalPredicate(scope, hook string, facts map[string]any) (bool, error) {
	f.calls = append(f.calls, scope+"/"+hook)
	if f.err != nil {
		return false, f.err
	}
	return f.answers[hook], nil
}

var (
	slash = situation.Ability{
		Ability: binding.Ability{ID: "slash", APCost: 2, Range: 1, Damage: true, TargetsEnemy: true},
		Timing:  situation.TimingAttack,
	}
	mend = situation.Ability{
		Ability: binding.Ability{ID: "mend", APCost: 2, Range: 4, HealAmount: 15, TargetsAlly: true, TargetsSelf: true},
		Timing:  situation.TimingHeal,
	}
	reload = situation.Ability{
		Ability: binding.Ability{ID: "reload", APCost: 1, Reload: true, TargetsSelf: true},
		Timing:  situation.TimingReload,
	}
	meteor = situation.Ability{
		Ability: binding.Ability{ID: "meteor", APCost: 4, Range: 6, Damage: true, Ultimate: true, TargetsEnemy: true},
		Timing:  situation.TimingAttack,
	}
	hex = situation.Ability{
		Ability: binding.Ability{ID: "hex", APCost: 1, Range: 5, Debuff: true, EffectID: "hexed", TargetsEnemy: true},
		Timing:  situation.TimingDebuff,
	}
)

func newPlanner(t *testing.T, d *planner.Domain, scripts planner.Predicates) *planner.Planner {
	t.Helper()
	if d == nil {
		d = planner.DefaultDomain()
	}
	p, err := planner.NewPlanner(d, planner.Deps{Oracle: fixedPrediction{}, Scripts: scripts, Scope: "test"})
	require.NoError(t, err)
	return p
}

func fighter(role string) binding.Unit {
	return binding.Unit{ID: "u", Faction: "blue", Role: role, Pos: grid.Point{X: 5.5, Y: 5.5}, HP: 40, MaxHP: 40, AP: 4, MaxAP: 4, MP: 3}
}

func adjacentEnemy() binding.Unit {
	return binding.Unit{ID: "e1", Faction: "red", Pos: grid.Point{X: 6.5, Y: 5.5}, HP: 20, MaxHP: 20}
}

func types(p *plan.TurnPlan) []plan.ActionType {
	var out []plan.ActionType
	for _, a := range p.Actions() {
		out = append(out, a.Type)
	}
	return out
}

func TestDefaultDomain_Validates(t *testing.T) {
	d := planner.DefaultDomain()
	require.NoError(t, d.Validate())
	assert.Equal(t, "default", d.ID)
	assert.NotEmpty(t, d.MethodsForTask(planner.RootTask))
	assert.Empty(t, d.Roles)
}

func TestDomain_ValidateRejectsBadDomains(t *testing.T) {
	base := func() *planner.Domain {
		return &planner.Domain{
			ID:        "d",
			Tasks:     []*planner.Task{{ID: planner.RootTask}},
			Methods:   []*planner.Method{{TaskID: planner.RootTask, ID: "m", Subtasks: []string{"end"}}},
			Operators: []*planner.Operator{{ID: "end", Action: "end_turn"}},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*planner.Domain){
		"unknown action":  func(d *planner.Domain) { d.Operators[0].Action = "dance" },
		"missing root":    func(d *planner.Domain) { d.Tasks[0].ID = "other"; d.Methods[0].TaskID = "other" },
		"unknown subtask": func(d *planner.Domain) { d.Methods[0].Subtasks = []string{"nope"} },
		"bad guard":       func(d *planner.Domain) { d.Methods[0].When = "HP +" },
		"non-bool guard":  func(d *planner.Domain) { d.Methods[0].When = "HP * 2" },
		"unknown field":   func(d *planner.Domain) { d.Methods[0].When = "Mana > 3" },
		"bad strategy":    func(d *planner.Domain) { d.Methods[0].Strategy = "panic" },
		"bad priority":    func(d *planner.Domain) { d.Methods[0].Priority = "urgent" },
		"duplicate op": func(d *planner.Domain) {
			d.Operators = append(d.Operators, &planner.Operator{ID: "end", Action: "attack"})
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := base()
			mutate(d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestLoadDomains(t *testing.T) {
	dir := t.TempDir()
	good := `domain:
  id: tanks
  roles: [tank]
  tasks:
    - id: turn
  methods:
    - task: turn
      id: only
      when: Enemies > 0
      strategy: attack
      subtasks: [hit, end]
  operators:
    - id: hit
      action: attack
    - id: end
      action: end_turn
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tanks.yaml"), []byte(good), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	domains, err := planner.LoadDomains(dir)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, []string{"tank"}, domains[0].Roles)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("tasks: []\n"), 0o600))
	_, err = planner.LoadDomains(dir)
	assert.ErrorContains(t, err, "bad.yaml")
}

func TestPlan_HealthyDPSAttacksAndEndsTurn(t *testing.T) {
	sit := situation.Build(situation.Input{
		Self: fighter("dps"), Enemies: []binding.Unit{adjacentEnemy()}, Abilities: []situation.Ability{slash},
	})
	tp, err := newPlanner(t, nil, nil).Plan(sit, nil)
	require.NoError(t, err)

	assert.Equal(t, plan.StrategyAttack, tp.Strategy)
	assert.Equal(t, plan.PriorityNormal, tp.Priority)
	assert.Equal(t, "e1", tp.TargetID)
	assert.Equal(t, []plan.ActionType{plan.ActionAttack, plan.ActionAttack, plan.ActionEndTurn}, types(tp))

	var ap float64
	for _, a := range tp.Actions() {
		ap += a.APCost
	}
	assert.LessOrEqual(t, ap, sit.AP)
}

func TestPlan_EmergencySelfHeal(t *testing.T) {
	self := fighter("dps")
	self.HP = 5
	sit := situation.Build(situation.Input{
		Self: self, Enemies: []binding.Unit{adjacentEnemy()}, Abilities: []situation.Ability{slash, mend},
	})
	tp, err := newPlanner(t, nil, nil).Plan(sit, nil)
	require.NoError(t, err)

	assert.Equal(t, plan.StrategyEmergency, tp.Strategy)
	first, ok := tp.PeekNextAction()
	require.True(t, ok)
	assert.Equal(t, plan.ActionHeal, first.Type)
	assert.Equal(t, "u", first.Target.UnitID)
}

func TestPlan_ReloadFirst(t *testing.T) {
	self := fighter("dps")
	self.MaxAmmo, self.Ammo = 6, 0
	sit := situation.Build(situation.Input{
		Self: self, Enemies: []binding.Unit{adjacentEnemy()}, Abilities: []situation.Ability{slash, reload},
	})
	tp, err := newPlanner(t, nil, nil).Plan(sit, nil)
	require.NoError(t, err)

	assert.Equal(t, plan.StrategyReload, tp.Strategy)
	assert.Equal(t, []plan.ActionType{plan.ActionReload, plan.ActionAttack, plan.ActionEndTurn}, types(tp))
}

func TestPlan_UltimateIsCritical(t *testing.T) {
	e := adjacentEnemy()
	sit := situation.Build(situation.Input{
		Self: fighter("dps"), Enemies: []binding.Unit{e}, Abilities: []situation.Ability{slash, meteor},
		Hittable: []situation.Hit{{TargetID: e.ID, AbilityID: meteor.ID, Chance: 0.9}},
	})
	tp, err := newPlanner(t, nil, nil).Plan(sit, nil)
	require.NoError(t, err)

	assert.Equal(t, plan.PriorityCritical, tp.Priority)
	first, _ := tp.PeekNextAction()
	assert.Equal(t, "meteor", first.AbilityID)
	assert.Equal(t, []plan.ActionType{plan.ActionAttack, plan.ActionEndTurn}, types(tp))
}

func TestPlan_OutOfReachMeleeClosesDistance(t *testing.T) {
	e1 := binding.Unit{ID: "e1", Faction: "red", Pos: grid.Point{X: 12.5, Y: 5.5}, HP: 20, MaxHP: 20}
	e2 := binding.Unit{ID: "e2", Faction: "red", Pos: grid.Point{X: 12.5, Y: 6.5}, HP: 20, MaxHP: 20}
	reach := []binding.Reachable{
		{Cell: grid.Cell{X: 6, Y: 5}, Cost: 1},
		{Cell: grid.Cell{X: 7, Y: 5}, Cost: 2},
		{Cell: grid.Cell{X: 8, Y: 5}, Cost: 3},
		{Cell: grid.Cell{X: 4, Y: 5}, Cost: 1},
	}
	pair := spatial.EnemyCluster{
		Members:   []string{"e1", "e2"},
		Positions: []grid.Point{e1.Pos, e2.Pos},
		Centroid:  grid.Point{X: 12.5, Y: 6},
		Radius:    0.5,
		Quality:   2,
		Valid:     true,
	}

	cases := []struct {
		name     string
		enemies  []binding.Unit
		clusters []spatial.EnemyCluster
	}{
		{name: "single enemy", enemies: []binding.Unit{e1}},
		{name: "clustered enemies", enemies: []binding.Unit{e1, e2}, clusters: []spatial.EnemyCluster{pair}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sit := situation.Build(situation.Input{
				Self: fighter("dps"), Enemies: tc.enemies, Abilities: []situation.Ability{slash},
				Reachable: reach, Clusters: tc.clusters,
			})
			tp, err := newPlanner(t, nil, nil).Plan(sit, nil)
			require.NoError(t, err)

			assert.Equal(t, plan.StrategyAttack, tp.Strategy)
			require.Equal(t, []plan.ActionType{plan.ActionMove, plan.ActionEndTurn}, types(tp))
			move, _ := tp.PeekNextAction()
			assert.Equal(t, grid.Cell{X: 8, Y: 5}.Center(), move.Target.Point)
			assert.Equal(t, 3.0, move.MPCost)
		})
	}
}

func TestPlan_WalledOffRangedUnitStepsToAClearLine(t *testing.T) {
	self := fighter("dps")
	self.Ranged = true
	bolt := situation.Ability{
		Ability: binding.Ability{ID: "bolt", APCost: 2, Range: 6, Damage: true, TargetsEnemy: true},
		Timing:  situation.TimingAttack,
	}
	enemy := binding.Unit{ID: "e1", Faction: "red", Pos: grid.Point{X: 9.5, Y: 5.5}, HP: 20, MaxHP: 20}
	side := grid.Cell{X: 5, Y: 7}
	sit := situation.Build(situation.Input{
		Self: self, Enemies: []binding.Unit{enemy}, Abilities: []situation.Ability{bolt},
		Reachable: []binding.Reachable{{Cell: side, Cost: 2}},
	})
	wall := fixedPrediction{blocked: func(from, _ grid.Point) bool { return from == self.Pos }}
	p, err := planner.NewPlanner(planner.DefaultDomain(), planner.Deps{Oracle: wall})
	require.NoError(t, err)

	tp, err := p.Plan(sit, nil)
	require.NoError(t, err)
	actions := tp.Actions()
	require.GreaterOrEqual(t, len(actions), 3)
	assert.Equal(t, plan.ActionMove, actions[0].Type)
	assert.Equal(t, side.Center(), actions[0].Target.Point)
	assert.Equal(t, plan.ActionAttack, actions[1].Type)
	assert.Equal(t, actions[0].Group, actions[1].Group)
	assert.Equal(t, plan.ActionEndTurn, actions[len(actions)-1].Type)
}

func TestPlan_AreaAttackIgnoresCasterInsideBlast(t *testing.T) {
	nova := situation.Ability{
		Ability: binding.Ability{ID: "nova", APCost: 2, Range: 3, AoERadius: 1.5, Damage: true, TargetsPoint: true},
		Timing:  situation.TimingAttack,
	}
	e1 := binding.Unit{ID: "e1", Faction: "red", Pos: grid.Point{X: 4.5, Y: 5.5}, HP: 20, MaxHP: 20}
	e2 := binding.Unit{ID: "e2", Faction: "red", Pos: grid.Point{X: 6.5, Y: 5.5}, HP: 20, MaxHP: 20}
	self := fighter("dps")
	// Any point within the blast of both enemies is within the blast of the caster.
	require.Equal(t, grid.Point{X: 5.5, Y: 5.5}, self.Pos)

	sit := situation.Build(situation.Input{
		Self: self, Enemies: []binding.Unit{e1, e2}, Abilities: []situation.Ability{nova},
		Clusters: []spatial.EnemyCluster{{
			Members:   []string{"e1", "e2"},
			Positions: []grid.Point{e1.Pos, e2.Pos},
			Centroid:  self.Pos,
			Radius:    1,
			Quality:   2,
			Valid:     true,
		}},
	})
	tp, err := newPlanner(t, nil, nil).Plan(sit, nil)
	require.NoError(t, err)

	first, ok := tp.PeekNextAction()
	require.True(t, ok)
	assert.Equal(t, plan.ActionAttack, first.Type)
	assert.Equal(t, "nova", first.AbilityID)
	assert.True(t, first.Target.IsPoint)
}

func supportSituation(board blackboard.View) *situation.Situation {
	ally := binding.Unit{ID: "a1", Faction: "blue", Role: "tank", Pos: grid.Point{X: 6.5, Y: 5.5}, HP: 10, MaxHP: 40}
	far := binding.Unit{ID: "e1", Faction: "red", Pos: grid.Point{X: 15.5, Y: 5.5}, HP: 20, MaxHP: 20}
	return situation.Build(situation.Input{
		Self: fighter("support"), Allies: []binding.Unit{ally}, Enemies: []binding.Unit{far},
		Abilities: []situation.Ability{slash, mend}, Board: board,
	})
}

func TestPlan_SupportHealsWoundedAllyAndClaimsIt(t *testing.T) {
	tp, err := newPlanner(t, nil, nil).Plan(supportSituation(blackboard.View{}), nil)
	require.NoError(t, err)

	assert.Equal(t, plan.StrategySupport, tp.Strategy)
	first, _ := tp.PeekNextAction()
	require.Equal(t, plan.ActionHeal, first.Type)
	assert.Equal(t, "a1", first.Target.UnitID)
	require.NotNil(t, first.Claim)
	assert.Equal(t, blackboard.ReserveHeal, first.Claim.Kind)
	assert.Equal(t, "a1", first.Claim.Key)
}

func TestPlan_HonoursHealReservation(t *testing.T) {
	board := blackboard.New(nil)
	require.True(t, board.Reserve(blackboard.ReserveHeal, "a1", "medic", "blue"))
	view := board.View("blue", nil)

	tp, err := newPlanner(t, nil, nil).Plan(supportSituation(view), nil)
	require.NoError(t, err)
	for _, a := range tp.Actions() {
		assert.NotEqual(t, plan.ActionHeal, a.Type)
	}
}

func TestPlan_DebuffSkippedWhenContextRecordsIt(t *testing.T) {
	sit := situation.Build(situation.Input{
		Self: fighter("dps"), Enemies: []binding.Unit{adjacentEnemy()}, Abilities: []situation.Ability{slash, hex},
	})
	p := newPlanner(t, nil, nil)

	fresh, err := p.Plan(sit, nil)
	require.NoError(t, err)
	first, _ := fresh.PeekNextAction()
	require.Equal(t, plan.ActionDebuff, first.Type)
	assert.Equal(t, []string{"debuffed:e1"}, first.Marks)

	again, err := p.Plan(sit, map[string]string{"debuffed:e1": "hex"})
	require.NoError(t, err)
	for _, a := range again.Actions() {
		assert.NotEqual(t, plan.ActionDebuff, a.Type)
	}
}

func scriptedDomain() *planner.Domain {
	return &planner.Domain{
		ID:    "scripted",
		Tasks: []*planner.Task{{ID: planner.RootTask}},
		Methods: []*planner.Method{
			{TaskID: planner.RootTask, ID: "scripted", Precondition: "press_on", Strategy: "attack", Subtasks: []string{"hit", "end"}},
			{TaskID: planner.RootTask, ID: "fallback", When: "Enemies == 0", Strategy: "end", Subtasks: []string{"end"}},
		},
		Operators: []*planner.Operator{{ID: "hit", Action: "attack"}, {ID: "end", Action: "end_turn"}},
	}
}

func TestPlan_ScriptPreconditions(t *testing.T) {
	sit := situation.Build(situation.Input{
		Self: fighter("dps"), Enemies: []binding.Unit{adjacentEnemy()}, Abilities: []situation.Ability{slash},
	})

	yes := &fakeScripts{answers: map[string]bool{"press_on": true}}
	tp, err := newPlanner(t, scriptedDomain(), yes).Plan(sit, nil)
	require.NoError(t, err)
	assert.Equal(t, plan.StrategyAttack, tp.Strategy)
	assert.Equal(t, []string{"test/press_on"}, yes.calls)

	failing := &fakeScripts{err: errors.New("boom")}
	_, err = newPlanner(t, scriptedDomain(), failing).Plan(sit, nil)
	assert.ErrorIs(t, err, planner.ErrNoPlan)

	_, err = newPlanner(t, scriptedDomain(), nil).Plan(sit, nil)
	assert.ErrorIs(t, err, planner.ErrNoPlan)
}

func TestPlan_NilSituation(t *testing.T) {
	_, err := newPlanner(t, nil, nil).Plan(nil, nil)
	assert.ErrorIs(t, err, planner.ErrNoPlan)
}

func TestRegistry_RoleLookupAndFallback(t *testing.T) {
	deps := planner.Deps{Oracle: fixedPrediction{}}
	r := planner.NewRegistry()
	require.NoError(t, r.Register(planner.DefaultDomain(), deps))

	tanks := scriptedDomain()
	tanks.ID, tanks.Roles = "tanks", []string{"tank"}
	require.NoError(t, r.Register(tanks, deps))

	p, ok := r.PlannerFor(situation.RoleTank)
	require.True(t, ok)
	assert.Equal(t, "tanks", p.Domain().ID)
	p, ok = r.PlannerFor(situation.RoleSupport)
	require.True(t, ok)
	assert.Equal(t, "default", p.Domain().ID)

	assert.Error(t, r.Register(planner.DefaultDomain(), deps), "fallback registered twice")
}

func TestProperty_PlansStayWithinBudgetAndEndTheTurn(t *testing.T) {
	pool := []situation.Ability{slash, mend, reload, meteor, hex}
	p, err := planner.NewPlanner(planner.DefaultDomain(), planner.Deps{Oracle: fixedPrediction{}})
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		self := fighter(rapid.SampledFrom([]string{"tank", "dps", "support"}).Draw(t, "role"))
		self.AP = float64(rapid.IntRange(0, 8).Draw(t, "ap"))
		self.MP = float64(rapid.IntRange(0, 5).Draw(t, "mp"))
		self.HP = float64(rapid.IntRange(1, 40).Draw(t, "hp"))
		self.MaxAmmo = 4
		self.Ammo = rapid.IntRange(0, 4).Draw(t, "ammo")

		var abilities []situation.Ability
		for i, ab := range pool {
			if rapid.Bool().Draw(t, fmt.Sprintf("has%d", i)) {
				abilities = append(abilities, ab)
			}
		}
		var enemies []binding.Unit
		for i := 0; i < rapid.IntRange(0, 3).Draw(t, "enemies"); i++ {
			enemies = append(enemies, binding.Unit{
				ID: fmt.Sprintf("e%d", i), HP: 20, MaxHP: 20,
				Pos: grid.Point{X: float64(rapid.IntRange(0, 15).Draw(t, "ex")) + 0.5, Y: float64(rapid.IntRange(0, 15).Draw(t, "ey")) + 0.5},
			})
		}
		var reach []binding.Reachable
		for i := 0; i < rapid.IntRange(0, 6).Draw(t, "cells"); i++ {
			reach = append(reach, binding.Reachable{
				Cell: grid.Cell{X: rapid.IntRange(0, 15).Draw(t, "cx"), Y: rapid.IntRange(0, 15).Draw(t, "cy")},
				Cost: float64(rapid.IntRange(1, 5).Draw(t, "cost")),
			})
		}
		sit := situation.Build(situation.Input{Self: self, Enemies: enemies, Abilities: abilities, Reachable: reach})

		tp, err := p.Plan(sit, nil)
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		actions := tp.Actions()
		if len(actions) == 0 || actions[len(actions)-1].Type != plan.ActionEndTurn {
			t.Fatalf("plan does not end the turn: %v", actions)
		}
		var ap, mp float64
		moves := 0
		for _, a := range actions {
			ap += a.APCost
			mp += a.MPCost
			if a.Type == plan.ActionMove {
				moves++
			}
		}
		if ap > sit.AP+1e-9 || mp > sit.MP+1e-9 {
			t.Fatalf("plan spends ap=%v mp=%v of %v/%v", ap, mp, sit.AP, sit.MP)
		}
		if moves > 1 {
			t.Fatalf("plan queues %d moves", moves)
		}
	})
}
