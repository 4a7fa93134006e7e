// Package situation builds the per-cycle snapshot a unit's decisions are made
// against: its resources, the living combatants, its classified abilities,
// what it can hit, and the spatial maps of the battlefield.
package situation

import (
	"math"
	"sort"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/spatial"
)

// Ability is a usable ability together with its timing classification.
type Ability struct {
	binding.Ability
	Timing AbilityTiming
}

// Hit records that TargetID can be hit by AbilityID from the unit's current position.
type Hit struct {
	TargetID  string
	AbilityID string
	Chance    float64
}

// Flags carries the turn progress the orchestrator has accumulated so far.
type Flags struct {
	Moved         bool
	Attacked      bool
	Buffed        bool
	Healed        bool
	ActionsTaken  int
	APAtTurnStart float64
}

// Input is everything Build needs. The Analyzer fills it from the binding;
// tests fill it directly.
type Input struct {
	Self      binding.Unit
	Enemies   []binding.Unit
	Allies    []binding.Unit
	Abilities []Ability
	// Unclassified lists usable abilities whose timing is unknown.
	Unclassified []string
	Flags        Flags
	Hittable     []Hit
	Reachable    []binding.Reachable
	Influence    *spatial.InfluenceMap
	Predictive   *spatial.PredictiveMap
	Cover        *spatial.CoverMap
	Clusters     []spatial.EnemyCluster
	Board        blackboard.View
	PhaseConfig  PhaseConfig
}

// Situation is a frozen snapshot of one unit's battle context for one decision cycle.
//
// Invariant: every derived field is consistent with the lists it summarises at
// construction time. A Situation is never mutated after Build returns.
type Situation struct {
	Self       binding.Unit
	Role       Role
	AP         float64
	MP         float64
	HPFraction float64

	// Enemies and Allies hold living units only; Allies excludes Self.
	Enemies []binding.Unit
	Allies  []binding.Unit

	NearestEnemy     binding.Unit
	NearestEnemyDist float64
	HasNearestEnemy  bool
	NearestAlly      binding.Unit
	NearestAllyDist  float64
	HasNearestAlly   bool

	Attacks    []Ability
	Buffs      []Ability
	Heals      []Ability
	Debuffs    []Ability
	Positional []Ability
	Reloads    []Ability

	Unclassified []string

	Flags Flags

	// Hittable holds the best hit per enemy, highest chance first.
	Hittable   []Hit
	Reachable  []binding.Reachable
	Influence  *spatial.InfluenceMap
	Predictive *spatial.PredictiveMap
	Cover      *spatial.CoverMap
	Clusters   []spatial.EnemyCluster
	Board      blackboard.View

	AllyAvgHP float64
	Phase     Phase

	HasHittableEnemy bool
	HasAttack        bool
	HasBuff          bool
	HasHeal          bool
	HasDebuff        bool
	HasReload        bool
	HasPositional    bool
	InDanger         bool
	NeedsReload      bool
	ZeroCostAttacks  int

	usable map[string]struct{}
	hits   map[string]Hit
}

// dangerSafety is the influence-safety level under which the unit counts as
// in danger when no predictive map is available.
const dangerSafety = 0.35

// Build constructs a Situation from in, computing every derived field.
//
// Postcondition: each ability in in.Abilities with a known timing lands in exactly one pool.
func Build(in Input) *Situation {
	s := &Situation{
		Self:             in.Self,
		Role:             ParseRole(in.Self.Role),
		AP:               in.Self.AP,
		MP:               in.Self.MP,
		HPFraction:       in.Self.HPFraction(),
		Unclassified:     in.Unclassified,
		Flags:            in.Flags,
		Reachable:        in.Reachable,
		Influence:        in.Influence,
		Predictive:       in.Predictive,
		Cover:            in.Cover,
		Clusters:         in.Clusters,
		Board:            in.Board,
		NearestEnemyDist: math.Inf(1),
		NearestAllyDist:  math.Inf(1),
		usable:           make(map[string]struct{}),
		hits:             make(map[string]Hit),
	}

	for _, e := range in.Enemies {
		if e.Dead {
			continue
		}
		s.Enemies = append(s.Enemies, e)
		if d := e.Pos.Dist(s.Self.Pos); d < s.NearestEnemyDist {
			s.NearestEnemy, s.NearestEnemyDist, s.HasNearestEnemy = e, d, true
		}
	}
	hpSum, hpN := s.HPFraction, 1
	for _, a := range in.Allies {
		if a.Dead || a.ID == s.Self.ID {
			continue
		}
		s.Allies = append(s.Allies, a)
		hpSum += a.HPFraction()
		hpN++
		if d := a.Pos.Dist(s.Self.Pos); d < s.NearestAllyDist {
			s.NearestAlly, s.NearestAllyDist, s.HasNearestAlly = a, d, true
		}
	}
	s.AllyAvgHP = hpSum / float64(hpN)

	for _, a := range in.Abilities {
		switch a.Timing {
		case TimingAttack:
			s.Attacks = append(s.Attacks, a)
			if a.APCost == 0 {
				s.ZeroCostAttacks++
			}
		case TimingPreAttackBuff, TimingPermanentBuff, TimingEmergencyBuff:
			s.Buffs = append(s.Buffs, a)
		case TimingHeal:
			s.Heals = append(s.Heals, a)
		case TimingDebuff, TimingTaunt:
			s.Debuffs = append(s.Debuffs, a)
		case TimingPositional:
			s.Positional = append(s.Positional, a)
		case TimingReload:
			s.Reloads = append(s.Reloads, a)
		default:
			continue
		}
		s.usable[a.ID] = struct{}{}
	}

	living := make(map[string]bool, len(s.Enemies))
	for _, e := range s.Enemies {
		living[e.ID] = true
	}
	for _, h := range in.Hittable {
		if !living[h.TargetID] {
			continue
		}
		if cur, ok := s.hits[h.TargetID]; !ok || h.Chance > cur.Chance {
			s.hits[h.TargetID] = h
		}
	}
	for _, h := range s.hits {
		s.Hittable = append(s.Hittable, h)
	}
	sort.Slice(s.Hittable, func(i, j int) bool {
		if s.Hittable[i].Chance != s.Hittable[j].Chance {
			return s.Hittable[i].Chance > s.Hittable[j].Chance
		}
		return s.Hittable[i].TargetID < s.Hittable[j].TargetID
	})

	s.HasHittableEnemy = len(s.Hittable) > 0
	s.HasAttack = len(s.Attacks) > 0
	s.HasBuff = len(s.Buffs) > 0
	s.HasHeal = len(s.Heals) > 0
	s.HasDebuff = len(s.Debuffs) > 0
	s.HasReload = len(s.Reloads) > 0
	s.HasPositional = len(s.Positional) > 0
	s.NeedsReload = s.Self.MaxAmmo > 0 && s.Self.Ammo == 0
	if s.Self.Role == "" && s.HasHeal {
		s.Role = RoleSupport
	}
	switch {
	case s.Predictive != nil:
		s.InDanger = s.Predictive.InDanger(s.Self.Pos)
	case s.Influence != nil:
		s.InDanger = s.Influence.Safety(s.Self.Pos) < dangerSafety
	}

	maxAP := s.Self.MaxAP
	if in.Flags.APAtTurnStart > 0 {
		maxAP = math.Max(maxAP, in.Flags.APAtTurnStart)
	}
	s.Phase = DetectPhase(in.PhaseConfig, s.AllyAvgHP, s.HPFraction, len(s.Enemies), in.Flags.ActionsTaken, s.AP, maxAP)
	return s
}

// AbilityUsable reports whether id is in one of the ability pools.
func (s *Situation) AbilityUsable(id string) bool {
	_, ok := s.usable[id]
	return ok
}

// IsHittable reports whether the enemy can be hit from the current position.
func (s *Situation) IsHittable(targetID string) bool {
	_, ok := s.hits[targetID]
	return ok
}

// BestHit returns the highest-chance hit on targetID.
func (s *Situation) BestHit(targetID string) (Hit, bool) {
	h, ok := s.hits[targetID]
	return h, ok
}

// Enemy returns the living enemy with the given ID.
func (s *Situation) Enemy(id string) (binding.Unit, bool) {
	for _, e := range s.Enemies {
		if e.ID == id {
			return e, true
		}
	}
	return binding.Unit{}, false
}

// Ally returns the living ally with the given ID; Self counts as an ally.
func (s *Situation) Ally(id string) (binding.Unit, bool) {
	if id == s.Self.ID {
		return s.Self, true
	}
	for _, a := range s.Allies {
		if a.ID == id {
			return a, true
		}
	}
	return binding.Unit{}, false
}

// UnitAlive reports whether id names a living unit in the snapshot.
func (s *Situation) UnitAlive(id string) bool {
	if _, ok := s.Enemy(id); ok {
		return true
	}
	_, ok := s.Ally(id)
	return ok
}

// Ability returns the pooled ability with the given ID.
func (s *Situation) Ability(id string) (Ability, bool) {
	for _, pool := range [][]Ability{s.Attacks, s.Buffs, s.Heals, s.Debuffs, s.Positional, s.Reloads} {
		for _, a := range pool {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Ability{}, false
}

// CanReach reports whether c is among the reachable cells, and at what cost.
// The unit's own cell is always reachable at zero cost.
func (s *Situation) CanReach(c grid.Cell) (float64, bool) {
	if c == s.Self.Pos.Cell() {
		return 0, true
	}
	for _, r := range s.Reachable {
		if r.Cell == c {
			return r.Cost, true
		}
	}
	return 0, false
}

// SafetyAt blends the predictive map, influence safety, and cover at p into
// a 0..1 score; missing maps contribute a neutral 0.5.
func (s *Situation) SafetyAt(p grid.Point) float64 {
	predicted := 0.5
	if s.Predictive != nil {
		predicted = 1 - s.Predictive.At(p)
	}
	influence := 0.5
	if s.Influence != nil {
		influence = s.Influence.Safety(p)
	}
	cover := 0.5
	if s.Cover != nil {
		cover = s.Cover.At(p)
	}
	return 0.6*predicted + 0.25*influence + 0.15*cover
}

// Metrics is the compact summary a TurnPlan records at creation and compares
// against later snapshots.
type Metrics struct {
	HPFraction       float64
	NearestEnemyDist float64
	HittableCount    int
	AP               float64
	MP               float64
	ZeroCostAttacks  int
	EnemyCount       int
	Ranged           bool
}

// Metrics returns the snapshot's plan metrics.
func (s *Situation) Metrics() Metrics {
	return Metrics{
		HPFraction:       s.HPFraction,
		NearestEnemyDist: s.NearestEnemyDist,
		HittableCount:    len(s.Hittable),
		AP:               s.AP,
		MP:               s.MP,
		ZeroCostAttacks:  s.ZeroCostAttacks,
		EnemyCount:       len(s.Enemies),
		Ranged:           s.Self.Ranged,
	}
}
