package planner

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/tactician/internal/game/binding"
	"github.com/cory-johannsen/tactician/internal/game/blackboard"
	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/plan"
	"github.com/cory-johannsen/tactician/internal/game/scoring"
	"github.com/cory-johannsen/tactician/internal/game/sequence"
	"github.com/cory-johannsen/tactician/internal/game/situation"
	"github.com/cory-johannsen/tactician/internal/game/spatial"
)

// budgetEpsilon absorbs float noise in cost comparisons.
const budgetEpsilon = 1e-9

// Budget tracks the AP and MP still unspent while a plan is assembled.
type Budget struct {
	AP float64
	MP float64
}

// Affords reports whether ap and mp can both be paid.
func (b Budget) Affords(ap, mp float64) bool {
	return ap <= b.AP+budgetEpsilon && mp <= b.MP+budgetEpsilon
}

// Spend deducts ap and mp.
func (b *Budget) Spend(ap, mp float64) {
	b.AP -= ap
	b.MP -= mp
}

// Context key prefixes written through action marks.
const (
	debuffedPrefix = "debuffed:"
	markedPrefix   = "marked:"
)

// meleeReach is the distance at which a melee ability connects.
const meleeReach = 1.5

// build is the mutable state of one Plan call.
//
// Invariant: at most one move is queued, since reachable-cell costs are
// measured from the unit's starting position.
type build struct {
	p      *Planner
	sit    *situation.Situation
	ctx    map[string]string
	prof   scoring.Profile
	budget Budget
	pos    grid.Point

	actions []*plan.PlannedAction
	used    map[string]bool
	// dealt is the expected damage already queued per enemy.
	dealt map[string]float64

	target       binding.Unit
	targetID     string
	targetChosen bool

	moved    bool
	attacked bool
	skipped  bool
	ended    bool
}

func newBuild(p *Planner, sit *situation.Situation, ctx map[string]string) *build {
	return &build{
		p:      p,
		sit:    sit,
		ctx:    ctx,
		prof:   p.profiles.For(sit.Role),
		budget: Budget{AP: sit.AP, MP: sit.MP},
		pos:    sit.Self.Pos,
		used:   make(map[string]bool),
		dealt:  make(map[string]float64),
	}
}

func (b *build) run(action string) {
	if b.ended {
		return
	}
	switch action {
	case "emergency_heal":
		b.emergencyHeal()
	case "emergency_buff":
		b.selfBuff(situation.TimingEmergencyBuff, 0)
	case "retreat":
		b.retreat()
	case "reload":
		b.reload()
	case "heal_ally":
		b.healAlly()
	case "buff":
		b.buff()
	case "pre_attack_buff":
		b.selfBuff(situation.TimingPreAttackBuff, 1)
	case "debuff":
		b.debuff()
	case "mark":
		b.mark()
	case "aoe_attack":
		b.aoeAttack()
	case "attack":
		b.attack()
	case "ultimate":
		b.ultimate()
	case "approach":
		b.approach()
	case "end_turn":
		b.actions = append(b.actions, plan.NewAction(plan.ActionEndTurn, "turn complete"))
		b.ended = true
	}
}

func (b *build) cast(t plan.ActionType, ab situation.Ability, target binding.Target, group, why string) *plan.PlannedAction {
	a := plan.NewAction(t, why)
	a.AbilityID = ab.ID
	a.Target = target
	a.APCost = ab.APCost
	a.MPCost = ab.MPCost
	if group != "" {
		a.Group = group
		a.OnFailure = plan.PurgeGroup
	}
	b.budget.Spend(ab.APCost, ab.MPCost)
	b.used[ab.ID] = true
	b.actions = append(b.actions, a)
	return a
}

func (b *build) move(c grid.Cell, cost float64, group, why string) {
	a := plan.NewAction(plan.ActionMove, why)
	a.Target = binding.PointTarget(c.Center())
	a.MPCost = cost
	a.Claim = &plan.Claim{Kind: blackboard.ReserveMove, Key: blackboard.CellKey(c)}
	if group != "" {
		a.Group = group
		a.OnFailure = plan.PurgeGroup
	}
	b.budget.Spend(0, cost)
	b.pos = c.Center()
	b.moved = true
	b.actions = append(b.actions, a)
}

func (b *build) strike(t binding.Unit, ab situation.Ability, group, why string) {
	b.cast(plan.ActionAttack, ab, binding.UnitTarget(t.ID), group, why)
	b.attacked = true
	b.dealt[t.ID] += b.p.oracle.PredictDamage(b.sit.Self.ID, ab.ID, t.ID).Average() * b.hitChance(ab, t).Value()
}

func (b *build) hitChance(ab situation.Ability, t binding.Unit) scoring.Factor {
	if h, ok := b.sit.BestHit(t.ID); ok && h.AbilityID == ab.ID {
		return scoring.Known(h.Chance)
	}
	return scoring.Known(b.p.oracle.HitChance(b.sit.Self.ID, ab.ID, t.ID))
}

func inReach(from, to grid.Point, ab situation.Ability) bool {
	return from.Dist(to) <= math.Max(ab.Range, meleeReach)
}

// canHit reports whether ab reaches p from the plan's current position with a
// clear line of sight.
func (b *build) canHit(ab situation.Ability, p grid.Point) bool {
	return inReach(b.pos, p, ab) && b.p.oracle.HasLineOfSight(b.pos, p)
}

func (b *build) affords(ab situation.Ability) bool {
	return b.budget.Affords(ab.APCost, ab.MPCost)
}

// keepsAttack reports whether spending ap still leaves enough for the
// cheapest attack. It is true when no attack was affordable to begin with.
func (b *build) keepsAttack(ap float64) bool {
	if !b.sit.HasAttack || len(b.sit.Enemies) == 0 {
		return true
	}
	cheapest := math.Inf(1)
	for _, a := range b.sit.Attacks {
		cheapest = math.Min(cheapest, a.APCost)
	}
	if b.budget.AP+budgetEpsilon < cheapest {
		return true
	}
	return b.budget.AP-ap+budgetEpsilon >= cheapest
}

func (b *build) reservedByOther(kind blackboard.ReservationKind, key string) bool {
	return b.sit.Board.ReservedByOther(kind, key, b.sit.Self.ID)
}

// primary returns the enemy the plan is built around, chosen once by target
// score. It reports false when there is none or it is expected to die from
// damage already queued.
func (b *build) primary() (binding.Unit, bool) {
	if !b.targetChosen {
		b.targetChosen = true
		best := math.Inf(-1)
		for _, e := range b.sit.Enemies {
			est := scoring.TargetEstimate{DamageRatio: scoring.Unknown(), HitChance: scoring.Unknown()}
			if dmg := b.bestDamage(e); dmg > 0 && e.HP > 0 {
				est.DamageRatio = scoring.Known(dmg / e.HP)
			}
			if h, ok := b.sit.BestHit(e.ID); ok {
				est.HitChance = scoring.Known(h.Chance)
			}
			if v := scoring.ScoreTarget(b.sit, e, b.prof, est, b.p.cfg.Scoring); v > best {
				best, b.target, b.targetID = v, e, e.ID
			}
		}
	}
	if b.targetID == "" || b.dealt[b.targetID] >= b.target.HP {
		return binding.Unit{}, false
	}
	return b.target, true
}

func (b *build) bestDamage(e binding.Unit) float64 {
	var best float64
	for _, a := range b.sit.Attacks {
		best = math.Max(best, b.p.oracle.PredictDamage(b.sit.Self.ID, a.ID, e.ID).Average())
	}
	return best
}

func (b *build) emergencyHeal() {
	self := b.sit.Self
	var (
		pick  situation.Ability
		best  float64
		found bool
	)
	for _, h := range b.sit.Heals {
		if !(h.TargetsSelf || h.TargetsAlly) || b.used[h.ID] || !b.affords(h) {
			continue
		}
		s := scoring.ScoreHeal(b.sit, h, self, b.prof, b.p.cfg.Scoring)
		if s.Vetoed || s.Value <= 0 {
			continue
		}
		if !found || s.Value > best {
			pick, best, found = h, s.Value, true
		}
	}
	if found {
		b.cast(plan.ActionHeal, pick, binding.UnitTarget(self.ID), "", "emergency self-heal")
	}
}

// selfBuff casts the best buff of the given timing on the unit itself when it
// scores above floor.
func (b *build) selfBuff(timing situation.AbilityTiming, floor float64) {
	self := b.sit.Self
	var (
		pick  situation.Ability
		best  float64
		found bool
	)
	for _, ab := range b.sit.Buffs {
		if ab.Timing != timing || b.used[ab.ID] || !b.affords(ab) {
			continue
		}
		if timing == situation.TimingPreAttackBuff && !b.keepsAttack(ab.APCost) {
			continue
		}
		s := scoring.ScoreBuff(b.sit, ab, self, b.prof, b.p.cfg.Scoring)
		if s.Vetoed || s.Value <= floor {
			continue
		}
		if !found || s.Value > best {
			pick, best, found = ab, s.Value, true
		}
	}
	if found {
		b.cast(plan.ActionBuff, pick, binding.UnitTarget(self.ID), "", timing.String())
	}
}

// retreatMargin is the safety gain a retreat must achieve.
const retreatMargin = 0.05

// exposedSafety is the safety under which a unit withdraws even when not in danger.
const exposedSafety = 0.4

func (b *build) retreat() {
	if b.moved || b.budget.MP <= 0 {
		return
	}
	here := b.sit.SafetyAt(b.pos)
	if !b.sit.InDanger && here >= exposedSafety {
		return
	}
	var (
		best     grid.Cell
		bestCost float64
		bestSafe = here + retreatMargin
		found    bool
	)
	self := b.pos.Cell()
	for _, r := range b.sit.Reachable {
		if r.Cell == self || r.Cost > b.budget.MP+budgetEpsilon {
			continue
		}
		if b.reservedByOther(blackboard.ReserveMove, blackboard.CellKey(r.Cell)) {
			continue
		}
		s := b.sit.SafetyAt(r.Cell.Center())
		if s > bestSafe || (found && s == bestSafe && r.Cost < bestCost) {
			best, bestCost, bestSafe, found = r.Cell, r.Cost, s, true
		}
	}
	if found {
		b.move(best, bestCost, "", "retreat to safer ground")
	}
}

func (b *build) reload() {
	self := b.sit.Self
	if !b.sit.NeedsReload && (self.MaxAmmo == 0 || self.Ammo >= self.MaxAmmo) {
		return
	}
	for _, ab := range b.sit.Reloads {
		if b.used[ab.ID] || !b.affords(ab) {
			continue
		}
		b.cast(plan.ActionReload, ab, binding.UnitTarget(self.ID), "", "reload")
		return
	}
}

func (b *build) healAlly() {
	var (
		pick   situation.Ability
		target binding.Unit
		best   float64
		found  bool
	)
	for _, h := range b.sit.Heals {
		if !h.TargetsAlly || b.used[h.ID] || !b.affords(h) {
			continue
		}
		for _, a := range b.sit.Allies {
			if a.HPFraction() >= b.p.cfg.WoundedHP || !b.canHit(h, a.Pos) {
				continue
			}
			s := scoring.ScoreHeal(b.sit, h, a, b.prof, b.p.cfg.Scoring)
			if s.Vetoed || s.Value <= 0 {
				continue
			}
			if !found || s.Value > best {
				pick, target, best, found = h, a, s.Value, true
			}
		}
	}
	if !found {
		return
	}
	a := b.cast(plan.ActionHeal, pick, binding.UnitTarget(target.ID), "", "heal wounded ally")
	a.Claim = &plan.Claim{Kind: blackboard.ReserveHeal, Key: target.ID}
}

// buff casts every worthwhile permanent buff that leaves an attack affordable.
func (b *build) buff() {
	for _, ab := range b.sit.Buffs {
		if ab.Timing != situation.TimingPermanentBuff || b.used[ab.ID] || !b.affords(ab) || !b.keepsAttack(ab.APCost) {
			continue
		}
		candidates := []binding.Unit{b.sit.Self}
		if ab.TargetsAlly {
			for _, a := range b.sit.Allies {
				if b.canHit(ab, a.Pos) {
					candidates = append(candidates, a)
				}
			}
		}
		var (
			target binding.Unit
			best   float64
			found  bool
		)
		for _, c := range candidates {
			s := scoring.ScoreBuff(b.sit, ab, c, b.prof, b.p.cfg.Scoring)
			if s.Vetoed || s.Value <= 0 {
				continue
			}
			if !found || s.Value > best {
				target, best, found = c, s.Value, true
			}
		}
		if found {
			b.cast(plan.ActionBuff, ab, binding.UnitTarget(target.ID), "", "permanent buff")
		}
	}
}

func (b *build) debuff() {
	t, ok := b.primary()
	if !ok {
		return
	}
	key := debuffedPrefix + t.ID
	if _, done := b.ctx[key]; done {
		return
	}
	var (
		pick  situation.Ability
		best  float64
		found bool
	)
	for _, ab := range b.sit.Debuffs {
		if b.used[ab.ID] || !b.affords(ab) || !b.canHit(ab, t.Pos) {
			continue
		}
		if ab.Timing != situation.TimingTaunt && !b.keepsAttack(ab.APCost) {
			continue
		}
		s := scoring.ScoreDebuff(b.sit, ab, t, b.prof, b.p.cfg.Scoring)
		if s.Vetoed || s.Value <= 0 {
			continue
		}
		if !found || s.Value > best {
			pick, best, found = ab, s.Value, true
		}
	}
	if !found {
		return
	}
	a := b.cast(plan.ActionDebuff, pick, binding.UnitTarget(t.ID), "", "weaken primary target")
	a.Marks = []string{key}
	if pick.Timing == situation.TimingTaunt {
		a.Claim = &plan.Claim{Kind: blackboard.ReserveTaunt, Key: t.ID}
	}
}

func (b *build) mark() {
	t, ok := b.primary()
	if !ok {
		return
	}
	key := markedPrefix + t.ID
	if _, done := b.ctx[key]; done {
		return
	}
	for _, ab := range b.sit.Positional {
		if b.used[ab.ID] || !b.affords(ab) || !b.keepsAttack(ab.APCost) || b.pos.Dist(t.Pos) > ab.Range || !b.p.oracle.HasLineOfSight(b.pos, t.Pos) {
			continue
		}
		a := b.cast(plan.ActionSupport, ab, binding.PointTarget(t.Pos), "", "mark primary target")
		a.Marks = []string{key}
		return
	}
}

func (b *build) aoeAttack() {
	cfg := b.p.cfg
	enemies := make([]grid.Point, 0, len(b.sit.Enemies))
	for _, e := range b.sit.Enemies {
		enemies = append(enemies, e.Pos)
	}
	allies := make([]grid.Point, 0, len(b.sit.Allies))
	for _, a := range b.sit.Allies {
		allies = append(allies, a.Pos)
	}

	var (
		pick    situation.Ability
		aim     spatial.Placement
		primary binding.Unit
		best    float64
		found   bool
	)
	for _, cl := range b.sit.Clusters {
		if !cl.Valid {
			continue
		}
		for _, ab := range b.sit.Attacks {
			if ab.AoERadius <= 0 || !b.affords(ab) {
				continue
			}
			pl := spatial.FindPlacement(cl, spatial.PlacementRequest{
				Caster:      b.pos,
				CastRange:   ab.Range,
				BlastRadius: ab.AoERadius,
				Enemies:     enemies,
				Allies:      allies,
				MaxAllies:   cfg.Scoring.MaxAlliesInAoE,
				Samples:     cfg.PlacementSamples,
				Step:        cfg.PlacementStep,
			})
			if !pl.Found || pl.EnemyHits < cfg.MinAoEHits || !b.p.oracle.HasLineOfSight(b.pos, pl.Point) {
				continue
			}
			centre, ok := b.nearestMember(cl, pl.Point)
			if !ok {
				continue
			}
			s, _ := scoring.ScoreAttack(b.sit, scoring.AttackInput{
				Ability:   ab,
				Target:    centre,
				From:      b.pos,
				Damage:    b.p.oracle.PredictDamage(b.sit.Self.ID, ab.ID, centre.ID),
				HitChance: b.hitChance(ab, centre),
				ExtraHits: pl.EnemyHits - 1,
				AlliesHit: pl.AllyHits,
			}, b.prof, cfg.Scoring)
			if s.Vetoed {
				continue
			}
			if !found || s.Value > best {
				pick, aim, primary, best, found = ab, pl, centre, s.Value, true
			}
		}
	}
	if !found {
		return
	}
	b.cast(plan.ActionAttack, pick, binding.PointTarget(aim.Point), "", fmt.Sprintf("area attack catching %d", aim.EnemyHits))
	b.attacked = true
	if b.targetID == "" {
		b.target, b.targetID, b.targetChosen = primary, primary.ID, true
	}
}

func (b *build) nearestMember(cl spatial.EnemyCluster, p grid.Point) (binding.Unit, bool) {
	var (
		out   binding.Unit
		bestD = math.Inf(1)
		found bool
	)
	for _, id := range cl.Members {
		e, ok := b.sit.Enemy(id)
		if !ok {
			continue
		}
		if d := e.Pos.Dist(p); d < bestD {
			out, bestD, found = e, d, true
		}
	}
	return out, found
}

func (b *build) attack() {
	if b.skipped {
		return
	}
	t, ok := b.primary()
	if !ok {
		return
	}
	if !b.moved && !b.attacked {
		var attacks []situation.Ability
		for _, ab := range b.sit.Attacks {
			if ab.AoERadius <= 0 && b.affords(ab) {
				attacks = append(attacks, ab)
			}
		}
		if len(attacks) == 0 {
			return
		}
		best := b.p.optimizer.Best(b.sit, t, attacks)
		switch best.Kind {
		case sequence.Skip:
			if best.Forced {
				// Nothing connects from any cell this turn; approach runs later.
				return
			}
			b.skipped = true
			if best.HasMove && best.MoveCost <= b.budget.MP+budgetEpsilon {
				b.move(best.MoveTo, best.MoveCost, "", "hold the attack and withdraw")
			}
			return
		case sequence.DirectAttack:
			b.strike(t, best.Ability, "", best.Kind.String())
		default:
			if !b.budget.Affords(best.Ability.APCost, best.Ability.MPCost+best.MoveCost) {
				return
			}
			group := fmt.Sprintf("%s:%s", best.Kind, t.ID)
			b.move(best.MoveTo, best.MoveCost, group, best.Kind.String())
			b.strike(t, best.Ability, group, best.Kind.String())
		}
	}
	b.followUps()
}

// followUps spends the remaining AP on direct attacks while the primary
// target is expected to survive.
func (b *build) followUps() {
	for i := 0; i < b.p.cfg.MaxFollowUps; i++ {
		t, ok := b.primary()
		if !ok {
			return
		}
		var (
			pick  situation.Ability
			best  float64
			found bool
		)
		for _, ab := range b.sit.Attacks {
			if ab.AoERadius > 0 || ab.Ultimate || !b.affords(ab) || !b.canHit(ab, t.Pos) {
				continue
			}
			if v := b.p.oracle.PredictDamage(b.sit.Self.ID, ab.ID, t.ID).Average(); !found || v > best {
				pick, best, found = ab, v, true
			}
		}
		if !found {
			return
		}
		b.strike(t, pick, "", "follow-up attack")
	}
}

func (b *build) ultimate() {
	var (
		pick   situation.Ability
		target binding.Unit
		best   float64
		found  bool
	)
	for _, ab := range b.sit.Attacks {
		if !ab.Ultimate || !b.affords(ab) {
			continue
		}
		for _, h := range b.sit.Hittable {
			e, ok := b.sit.Enemy(h.TargetID)
			if !ok || !b.canHit(ab, e.Pos) {
				continue
			}
			s, _ := scoring.ScoreAttack(b.sit, scoring.AttackInput{
				Ability:   ab,
				Target:    e,
				From:      b.pos,
				Damage:    b.p.oracle.PredictDamage(b.sit.Self.ID, ab.ID, e.ID),
				HitChance: b.hitChance(ab, e),
			}, b.prof, b.p.cfg.Scoring)
			if s.Vetoed {
				continue
			}
			if !found || s.Value > best {
				pick, target, best, found = ab, e, s.Value, true
			}
		}
	}
	if !found {
		return
	}
	if b.targetID == "" {
		b.target, b.targetID, b.targetChosen = target, target.ID, true
	}
	b.strike(target, pick, "", "ultimate")
}

// approach closes distance to the primary target when no attack connects from
// here. A Skip the optimizer chose on score blocks it; a Skip forced by having
// no attack within reach does not.
func (b *build) approach() {
	if b.attacked || b.moved || b.skipped || b.budget.MP <= 0 {
		return
	}
	t, ok := b.primary()
	if !ok {
		return
	}
	if b.shotFrom(b.pos, t.Pos) {
		return
	}
	var (
		best     grid.Cell
		bestCost float64
		bestDist = b.pos.Dist(t.Pos)
		bestShot bool
		found    bool
	)
	self := b.pos.Cell()
	for _, r := range b.sit.Reachable {
		if r.Cell == self || r.Cost > b.budget.MP+budgetEpsilon {
			continue
		}
		if b.reservedByOther(blackboard.ReserveMove, blackboard.CellKey(r.Cell)) {
			continue
		}
		p := r.Cell.Center()
		d := p.Dist(t.Pos)
		shot := b.shotFrom(p, t.Pos)
		switch {
		case shot && !bestShot:
		case shot == bestShot && (d < bestDist || (found && d == bestDist && r.Cost < bestCost)):
		default:
			continue
		}
		best, bestCost, bestDist, bestShot, found = r.Cell, r.Cost, d, shot, true
	}
	if found {
		b.move(best, bestCost, "", "close distance")
	}
}

// shotFrom reports whether any attack would reach target from p with a clear line.
func (b *build) shotFrom(p, target grid.Point) bool {
	for _, ab := range b.sit.Attacks {
		if inReach(p, target, ab) && b.p.oracle.HasLineOfSight(p, target) {
			return true
		}
	}
	return false
}
