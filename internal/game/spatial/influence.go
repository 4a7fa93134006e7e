// Package spatial implements the grid-based tactical analyses used by the
// decision core: influence (threat/control), cover, predicted enemy mobility,
// and density clustering for area-effect targeting.
//
// Every builder returns a freshly allocated value. Nothing here is edited after
// construction, so results may be shared freely between readers.
package spatial

import (
	"math"
	"sort"

	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// Combatant is the spatial view of a unit: where it stands, how healthy it is,
// and how far it can threaten.
type Combatant struct {
	ID         string
	Pos        grid.Point
	HPFraction float64
	Ranged     bool
}

// InfluenceConfig tunes BuildInfluence.
type InfluenceConfig struct {
	// MeleeWeight and RangedWeight are the range-class weights applied before
	// the HP scaling.
	MeleeWeight  float64
	RangedWeight float64
	// ContactRadius bounds which ally/enemy pairs count as frontline contacts.
	ContactRadius float64
	// SafeZoneRadius bounds the safe-zone search around the ally centroid.
	SafeZoneRadius float64
	MaxSafeZones   int
}

// DefaultInfluenceConfig returns the tuning used when no configuration is supplied.
func DefaultInfluenceConfig() InfluenceConfig {
	return InfluenceConfig{
		MeleeWeight:    1.0,
		RangedWeight:   1.5,
		ContactRadius:  8,
		SafeZoneRadius: 6,
		MaxSafeZones:   5,
	}
}

// InfluenceMap holds per-cell threat and control plus the derived frontline
// and safe zones.
type InfluenceMap struct {
	Threat  *grid.Field
	Control *grid.Field
	// Frontline is meaningful only when HasFrontline is true.
	Frontline    grid.Point
	HasFrontline bool
	// SafeZones are ordered from lowest to highest threat.
	SafeZones []grid.Cell

	enemies []weighted
	allies  []weighted
}

type weighted struct {
	pos grid.Point
	w   float64
}

func (c InfluenceConfig) weight(u Combatant) float64 {
	class := c.MeleeWeight
	if u.Ranged {
		class = c.RangedWeight
	}
	hp := math.Max(0, math.Min(1, u.HPFraction))
	return class * (0.5 + 0.5*hp)
}

// inverseSquare returns Σ w / max(d, 1)² over sources.
func inverseSquare(p grid.Point, sources []weighted) float64 {
	var sum float64
	for _, s := range sources {
		d := math.Max(p.Dist(s.pos), 1)
		sum += s.w / (d * d)
	}
	return sum
}

// BuildInfluence computes the threat field from enemies and the control field
// from allies over bounds, evaluated at each cell center.
//
// allies should include the acting unit. walk filters safe-zone candidates;
// nil treats every cell as walkable.
//
// Precondition: bounds is non-empty.
// Postcondition: len(SafeZones) <= cfg.MaxSafeZones; every safe zone is walkable.
func BuildInfluence(bounds grid.Rect, enemies, allies []Combatant, walk grid.WalkableQuery, cfg InfluenceConfig) *InfluenceMap {
	m := &InfluenceMap{
		Threat:  grid.NewField(bounds, 0),
		Control: grid.NewField(bounds, 0),
	}
	for _, e := range enemies {
		m.enemies = append(m.enemies, weighted{pos: e.Pos, w: cfg.weight(e)})
	}
	for _, a := range allies {
		m.allies = append(m.allies, weighted{pos: a.Pos, w: cfg.weight(a)})
	}

	m.Threat.Each(func(c grid.Cell, _ float64) {
		p := c.Center()
		m.Threat.Set(c, inverseSquare(p, m.enemies))
		m.Control.Set(c, inverseSquare(p, m.allies))
	})

	m.Frontline, m.HasFrontline = frontline(enemies, allies, cfg.ContactRadius)
	m.SafeZones = safeZones(m.Threat, allies, walk, cfg)
	return m
}

// ThreatAt returns the threat at p. Points outside the field are evaluated exactly.
func (m *InfluenceMap) ThreatAt(p grid.Point) float64 {
	if v, ok := m.Threat.At(p.Cell()); ok {
		return v
	}
	return inverseSquare(p, m.enemies)
}

// ControlAt returns the ally control at p.
func (m *InfluenceMap) ControlAt(p grid.Point) float64 {
	if v, ok := m.Control.At(p.Cell()); ok {
		return v
	}
	return inverseSquare(p, m.allies)
}

// Safety returns control/(control+threat) at p in [0, 1]; 0.5 when neither side projects influence.
func (m *InfluenceMap) Safety(p grid.Point) float64 {
	t, c := m.ThreatAt(p), m.ControlAt(p)
	if t+c == 0 {
		return 0.5
	}
	return c / (t + c)
}

func frontline(enemies, allies []Combatant, contactRadius float64) (grid.Point, bool) {
	if len(enemies) == 0 || len(allies) == 0 {
		return grid.Point{}, false
	}
	var sx, sy, sw float64
	for _, a := range allies {
		best, bestD := -1, math.Inf(1)
		for i, e := range enemies {
			if d := a.Pos.Dist(e.Pos); d < bestD {
				best, bestD = i, d
			}
		}
		if best < 0 || bestD > contactRadius {
			continue
		}
		mid := a.Pos.Lerp(enemies[best].Pos, 0.5)
		w := 1 / math.Max(bestD, 1)
		sx += mid.X * w
		sy += mid.Y * w
		sw += w
	}
	if sw > 0 {
		return grid.Point{X: sx / sw, Y: sy / sw}, true
	}
	ac, _ := grid.Centroid(positions(allies))
	ec, _ := grid.Centroid(positions(enemies))
	return ac.Lerp(ec, 0.5), true
}

func safeZones(threat *grid.Field, allies []Combatant, walk grid.WalkableQuery, cfg InfluenceConfig) []grid.Cell {
	center, ok := grid.Centroid(positions(allies))
	if !ok || cfg.MaxSafeZones <= 0 {
		return nil
	}
	type candidate struct {
		cell   grid.Cell
		threat float64
		dist   float64
	}
	var cands []candidate
	grid.CellsInRadius(center, cfg.SafeZoneRadius, func(c grid.Cell, d float64) {
		v, in := threat.At(c)
		if !in {
			return
		}
		if walk != nil && !walk.Walkable(c) {
			return
		}
		cands = append(cands, candidate{cell: c, threat: v, dist: d})
	})
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].threat != cands[j].threat {
			return cands[i].threat < cands[j].threat
		}
		return cands[i].dist < cands[j].dist
	})
	n := min(len(cands), cfg.MaxSafeZones)
	out := make([]grid.Cell, n)
	for i := range out {
		out[i] = cands[i].cell
	}
	return out
}

func positions(us []Combatant) []grid.Point {
	out := make([]grid.Point, len(us))
	for i, u := range us {
		out[i] = u.Pos
	}
	return out
}
