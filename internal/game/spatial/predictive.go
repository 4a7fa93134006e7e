package spatial

import (
	"math"

	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// Step is one tile an enemy can reach next turn and the movement it costs.
type Step struct {
	Cell grid.Cell
	Cost float64
}

// Mover describes an enemy's mobility for next-turn threat prediction.
type Mover struct {
	ID          string
	Pos         grid.Point
	MP          float64
	AttackRange float64
	// GapCloserRange is added to MP when the enemy owns a charge-style ability.
	GapCloserRange float64
	// Reach lists the tiles reported reachable by navigation. When empty a
	// disc of radius MP around Pos is assumed.
	Reach []Step
}

// PredictiveConfig tunes BuildPredictive.
type PredictiveConfig struct {
	// SafeThreshold: cells strictly below are safe zones.
	SafeThreshold float64
	// DangerThreshold: cells at or above are danger zones.
	DangerThreshold float64
	// GapCloserBonus is added inside MP + GapCloserRange.
	GapCloserBonus float64
	// Falloff is the distance, in tiles past attack range, over which threat decays by 1/e.
	Falloff float64
}

// DefaultPredictiveConfig returns the tuning used when no configuration is supplied.
func DefaultPredictiveConfig() PredictiveConfig {
	return PredictiveConfig{
		SafeThreshold:   0.2,
		DangerThreshold: 0.6,
		GapCloserBonus:  0.3,
		Falloff:         2,
	}
}

// PredictiveMap holds the per-cell probability-like value that the cell will
// be threatened during the enemies' next turn.
//
// Invariant: every value lies in [0, 1].
type PredictiveMap struct {
	Field *grid.Field
	cfg   PredictiveConfig
}

// likelihood weights a reachable tile by how much of the mover's budget it
// consumes: tiles at the edge of the budget are half as likely as nearby ones.
func likelihood(cost, mp float64) float64 {
	if mp <= 0 {
		return 1
	}
	return math.Max(0.5, 1-0.5*cost/mp)
}

func decay(over, falloff float64) float64 {
	if over <= 0 {
		return 1
	}
	if falloff <= 0 {
		return 0
	}
	return math.Exp(-over / falloff)
}

// BuildPredictive stamps each mover's potential attack coverage over bounds.
//
// Precondition: bounds is non-empty.
// Postcondition: the result is the per-cell max over movers, clamped to [0, 1].
func BuildPredictive(bounds grid.Rect, movers []Mover, cfg PredictiveConfig) *PredictiveMap {
	total := grid.NewField(bounds, 0)
	for _, mv := range movers {
		own := grid.NewField(bounds, 0)
		reach := mv.Reach
		if len(reach) == 0 {
			grid.CellsInRadius(mv.Pos, mv.MP, func(c grid.Cell, d float64) {
				reach = append(reach, Step{Cell: c, Cost: d})
			})
			if len(reach) == 0 {
				reach = []Step{{Cell: mv.Pos.Cell()}}
			}
		}
		// Beyond this distance from a reachable tile decay is negligible.
		spread := mv.AttackRange + 3*math.Max(cfg.Falloff, 0)
		for _, st := range reach {
			l := likelihood(st.Cost, mv.MP)
			from := st.Cell.Center()
			grid.CellsInRadius(from, spread, func(c grid.Cell, d float64) {
				own.Max(c, l*decay(d-mv.AttackRange, cfg.Falloff))
			})
		}
		if mv.GapCloserRange > 0 && cfg.GapCloserBonus > 0 {
			grid.CellsInRadius(mv.Pos, mv.MP+mv.GapCloserRange, func(c grid.Cell, _ float64) {
				own.Add(c, cfg.GapCloserBonus)
			})
		}
		own.Each(func(c grid.Cell, v float64) { total.Max(c, v) })
	}
	total.Clamp(0, 1)
	return &PredictiveMap{Field: total, cfg: cfg}
}

// At returns the predicted threat at p; points outside the map report 0.
func (m *PredictiveMap) At(p grid.Point) float64 {
	if m == nil {
		return 0
	}
	return m.Field.Sample(p, 0)
}

// SafeZones returns every cell whose value is below the safe threshold, in row-major order.
func (m *PredictiveMap) SafeZones() []grid.Cell {
	var out []grid.Cell
	m.Field.Each(func(c grid.Cell, v float64) {
		if v < m.cfg.SafeThreshold {
			out = append(out, c)
		}
	})
	return out
}

// DangerZones returns every cell whose value is at or above the danger threshold, in row-major order.
func (m *PredictiveMap) DangerZones() []grid.Cell {
	var out []grid.Cell
	m.Field.Each(func(c grid.Cell, v float64) {
		if v >= m.cfg.DangerThreshold {
			out = append(out, c)
		}
	})
	return out
}

// InDanger reports whether p lies in a danger-zone cell.
func (m *PredictiveMap) InDanger(p grid.Point) bool {
	if m == nil {
		return false
	}
	return m.At(p) >= m.cfg.DangerThreshold
}
