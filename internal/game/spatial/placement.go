package spatial

import (
	"math"

	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// PlacementRequest describes an area-effect cast to aim at a cluster.
type PlacementRequest struct {
	Caster    grid.Point
	CastRange float64
	// BlastRadius is the ability's area radius.
	BlastRadius float64
	Enemies     []grid.Point
	Allies      []grid.Point
	// MaxAllies is the largest number of allies the blast may catch.
	MaxAllies int
	// Samples bounds the number of candidate points evaluated.
	Samples int
	// Step is the spacing between candidates in tiles.
	Step float64
}

// Placement is the chosen aim point and what it hits.
type Placement struct {
	Point     grid.Point
	EnemyHits int
	AllyHits  int
	// Evaluated is the number of candidates inspected.
	Evaluated int
	Found     bool
}

// FindPlacement searches a square lattice centred on the cluster centroid for
// the point that maximises enemy hits. Ties prefer fewer ally hits, then
// proximity to the centroid.
//
// Postcondition: Evaluated <= max(req.Samples, 1).
// Postcondition: when Found, Point is within CastRange of Caster and AllyHits <= MaxAllies.
func FindPlacement(cluster EnemyCluster, req PlacementRequest) Placement {
	samples := max(req.Samples, 1)
	step := req.Step
	if step <= 0 {
		step = 0.5
	}
	half := (int(math.Sqrt(float64(samples))) - 1) / 2

	var best Placement
	bestDist := math.Inf(1)
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			if best.Evaluated >= samples {
				return best
			}
			best.Evaluated++
			p := cluster.Centroid.Add(grid.Point{X: float64(dx) * step, Y: float64(dy) * step})
			if p.Dist(req.Caster) > req.CastRange {
				continue
			}
			allies := countWithin(req.Allies, p, req.BlastRadius)
			if allies > req.MaxAllies {
				continue
			}
			enemies := countWithin(req.Enemies, p, req.BlastRadius)
			if enemies == 0 {
				continue
			}
			d := p.Dist(cluster.Centroid)
			if !best.Found || better(enemies, allies, d, best.EnemyHits, best.AllyHits, bestDist) {
				best.Point, best.EnemyHits, best.AllyHits, best.Found = p, enemies, allies, true
				bestDist = d
			}
		}
	}
	return best
}

func better(e, a int, d float64, be, ba int, bd float64) bool {
	if e != be {
		return e > be
	}
	if a != ba {
		return a < ba
	}
	return d < bd
}

func countWithin(pts []grid.Point, center grid.Point, radius float64) int {
	n := 0
	for _, p := range pts {
		if p.Dist(center) <= radius {
			n++
		}
	}
	return n
}
