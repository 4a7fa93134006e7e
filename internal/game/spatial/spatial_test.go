package spatial_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactician/internal/game/grid"
	"github.com/cory-johannsen/tactician/internal/game/spatial"
)

func box(n int) grid.Rect {
	return grid.Rect{Max: grid.Cell{X: n, Y: n}}
}

func TestBuildInfluence_InverseSquare(t *testing.T) {
	enemies := []spatial.Combatant{{ID: "e1", Pos: grid.Point{X: 0.5, Y: 0.5}, HPFraction: 1}}
	m := spatial.BuildInfluence(box(10), enemies, nil, nil, spatial.DefaultInfluenceConfig())

	// Full-HP melee weight is 1; distance is clamped to 1 on the source cell.
	assert.InDelta(t, 1.0, m.ThreatAt(grid.Point{X: 0.5, Y: 0.5}), 1e-9)
	assert.InDelta(t, 1.0/16, m.ThreatAt(grid.Point{X: 4.5, Y: 0.5}), 1e-9)
	assert.Zero(t, m.ControlAt(grid.Point{X: 4.5, Y: 0.5}))
}

func TestBuildInfluence_WeightScalesWithHPAndRange(t *testing.T) {
	cfg := spatial.DefaultInfluenceConfig()
	p := grid.Point{X: 0.5, Y: 0.5}
	hurt := spatial.BuildInfluence(box(4), []spatial.Combatant{{Pos: p, HPFraction: 0}}, nil, nil, cfg)
	ranged := spatial.BuildInfluence(box(4), []spatial.Combatant{{Pos: p, HPFraction: 1, Ranged: true}}, nil, nil, cfg)

	assert.InDelta(t, 0.5, hurt.ThreatAt(p), 1e-9)
	assert.InDelta(t, cfg.RangedWeight, ranged.ThreatAt(p), 1e-9)
}

func TestBuildInfluence_FrontlineFromContacts(t *testing.T) {
	allies := []spatial.Combatant{{ID: "a", Pos: grid.Point{X: 2, Y: 5}, HPFraction: 1}}
	enemies := []spatial.Combatant{{ID: "e", Pos: grid.Point{X: 6, Y: 5}, HPFraction: 1}}
	m := spatial.BuildInfluence(box(12), enemies, allies, nil, spatial.DefaultInfluenceConfig())

	require.True(t, m.HasFrontline)
	assert.InDelta(t, 4, m.Frontline.X, 1e-9)
	assert.InDelta(t, 5, m.Frontline.Y, 1e-9)
}

func TestBuildInfluence_FrontlineFallsBackToCentroids(t *testing.T) {
	cfg := spatial.DefaultInfluenceConfig()
	cfg.ContactRadius = 1
	allies := []spatial.Combatant{{Pos: grid.Point{X: 0, Y: 0}}, {Pos: grid.Point{X: 0, Y: 4}}}
	enemies := []spatial.Combatant{{Pos: grid.Point{X: 10, Y: 2}}}
	m := spatial.BuildInfluence(box(12), enemies, allies, nil, cfg)

	require.True(t, m.HasFrontline)
	assert.InDelta(t, 5, m.Frontline.X, 1e-9)
	assert.InDelta(t, 2, m.Frontline.Y, 1e-9)
}

func TestBuildInfluence_SafeZonesAreWalkableAndBounded(t *testing.T) {
	cfg := spatial.DefaultInfluenceConfig()
	cfg.MaxSafeZones = 3
	allies := []spatial.Combatant{{Pos: grid.Point{X: 5.5, Y: 5.5}, HPFraction: 1}}
	enemies := []spatial.Combatant{{Pos: grid.Point{X: 15.5, Y: 5.5}, HPFraction: 1}}
	blocked := grid.Cell{X: 0, Y: 5}
	walk := grid.WalkableFunc(func(c grid.Cell) bool { return c != blocked })

	m := spatial.BuildInfluence(box(20), enemies, allies, walk, cfg)
	require.Len(t, m.SafeZones, 3)
	for i, c := range m.SafeZones {
		assert.NotEqual(t, blocked, c)
		if i > 0 {
			prev, _ := m.Threat.At(m.SafeZones[i-1])
			cur, _ := m.Threat.At(c)
			assert.LessOrEqual(t, prev, cur)
		}
	}
}

type countingCover struct {
	calls int
	value func(at, from grid.Point) float64
}

func (c *countingCover) CoverAt(at, from grid.Point) float64 {
	c.calls++
	return c.value(at, from)
}

func TestBuildCover_MinCombineMostExposedWins(t *testing.T) {
	q := &countingCover{value: func(at, from grid.Point) float64 {
		if from.X < 5 {
			return 0.8
		}
		return 0.2
	}}
	enemies := []grid.Point{{X: 3.5, Y: 5.5}, {X: 7.5, Y: 5.5}}
	m := spatial.BuildCover(box(12), enemies, 3, q)

	assert.InDelta(t, 0.2, m.At(grid.Point{X: 5.5, Y: 5.5}), 1e-9, "overlap takes the lower value")
	assert.InDelta(t, 0.8, m.At(grid.Point{X: 1.5, Y: 5.5}), 1e-9)
	assert.InDelta(t, 1.0, m.At(grid.Point{X: 11.5, Y: 11.5}), 1e-9, "outside every stamp")
	assert.Equal(t, q.calls, m.Queries)
}

func TestBuildCover_CostIsEnemiesTimesStamp(t *testing.T) {
	q := &countingCover{value: func(grid.Point, grid.Point) float64 { return 0.5 }}
	stamp := 0
	grid.CellsInRadius(grid.Point{X: 20.5, Y: 20.5}, 2, func(grid.Cell, float64) { stamp++ })

	enemies := []grid.Point{{X: 10.5, Y: 10.5}, {X: 20.5, Y: 20.5}, {X: 30.5, Y: 30.5}}
	spatial.BuildCover(box(64), enemies, 2, q)
	assert.Equal(t, len(enemies)*stamp, q.calls)
}

func TestBuildPredictive_NearIsDangerFarIsSafe(t *testing.T) {
	cfg := spatial.DefaultPredictiveConfig()
	movers := []spatial.Mover{{ID: "e", Pos: grid.Point{X: 10.5, Y: 10.5}, MP: 3, AttackRange: 1}}
	m := spatial.BuildPredictive(box(30), movers, cfg)

	assert.InDelta(t, 1.0, m.At(grid.Point{X: 10.5, Y: 10.5}), 1e-9)
	assert.True(t, m.InDanger(grid.Point{X: 12.5, Y: 10.5}))
	assert.False(t, m.InDanger(grid.Point{X: 28.5, Y: 28.5}))
	assert.Contains(t, m.SafeZones(), grid.Cell{X: 28, Y: 28})
	assert.Contains(t, m.DangerZones(), grid.Cell{X: 10, Y: 10})
}

func TestBuildPredictive_GapCloserExtendsThreat(t *testing.T) {
	cfg := spatial.DefaultPredictiveConfig()
	base := spatial.Mover{Pos: grid.Point{X: 10.5, Y: 10.5}, MP: 2, AttackRange: 1}
	charger := base
	charger.GapCloserRange = 4

	probe := grid.Point{X: 16.5, Y: 10.5}
	plain := spatial.BuildPredictive(box(30), []spatial.Mover{base}, cfg).At(probe)
	boosted := spatial.BuildPredictive(box(30), []spatial.Mover{charger}, cfg).At(probe)
	assert.Greater(t, boosted, plain)
	assert.LessOrEqual(t, boosted, 1.0)
}

func TestBuildPredictive_UsesReportedReach(t *testing.T) {
	cfg := spatial.DefaultPredictiveConfig()
	// Reach only extends east; the west side stays quiet despite being within MP.
	mv := spatial.Mover{
		Pos: grid.Point{X: 10.5, Y: 10.5}, MP: 4, AttackRange: 1,
		Reach: []spatial.Step{{Cell: grid.Cell{X: 10, Y: 10}}, {Cell: grid.Cell{X: 14, Y: 10}, Cost: 4}},
	}
	m := spatial.BuildPredictive(box(30), []spatial.Mover{mv}, cfg)
	assert.Greater(t, m.At(grid.Point{X: 14.5, Y: 10.5}), m.At(grid.Point{X: 6.5, Y: 10.5}))
}

func TestDetectClusters_FourEnemiesOneCluster(t *testing.T) {
	enemies := []spatial.Combatant{
		{ID: "e1", Pos: grid.Point{X: 10, Y: 10}},
		{ID: "e2", Pos: grid.Point{X: 13, Y: 10}},
		{ID: "e3", Pos: grid.Point{X: 10, Y: 13}},
		{ID: "e4", Pos: grid.Point{X: 13, Y: 13}},
	}
	clusters := spatial.DetectClusters(enemies, nil, spatial.DefaultClusterConfig())

	require.Len(t, clusters, 1)
	cl := clusters[0]
	assert.ElementsMatch(t, []string{"e1", "e2", "e3", "e4"}, cl.Members)
	assert.InDelta(t, 11.5, cl.Centroid.X, 1e-9)
	assert.InDelta(t, 11.5, cl.Centroid.Y, 1e-9)
	maxD := 0.0
	for _, p := range cl.Positions {
		maxD = max(maxD, p.Dist(cl.Centroid))
	}
	assert.InDelta(t, maxD, cl.Radius, 1e-9)
	assert.True(t, cl.Valid)
}

func TestDetectClusters_AllyInBlastInvalidates(t *testing.T) {
	enemies := []spatial.Combatant{
		{ID: "e1", Pos: grid.Point{X: 10, Y: 10}},
		{ID: "e2", Pos: grid.Point{X: 11, Y: 10}},
	}
	allies := []spatial.Combatant{{ID: "a1", Pos: grid.Point{X: 10.5, Y: 11}}}
	clusters := spatial.DetectClusters(enemies, allies, spatial.DefaultClusterConfig())

	require.Len(t, clusters, 1)
	assert.Equal(t, 1, clusters[0].AlliesInBlast)
	assert.False(t, clusters[0].Valid)
}

func TestDetectClusters_IsolatedEnemiesProduceNothing(t *testing.T) {
	enemies := []spatial.Combatant{
		{ID: "e1", Pos: grid.Point{X: 0, Y: 0}},
		{ID: "e2", Pos: grid.Point{X: 40, Y: 0}},
	}
	assert.Empty(t, spatial.DetectClusters(enemies, nil, spatial.DefaultClusterConfig()))
}

func TestFindPlacement_RespectsRangeAndAllies(t *testing.T) {
	cluster := spatial.EnemyCluster{Centroid: grid.Point{X: 10, Y: 10}}
	req := spatial.PlacementRequest{
		Caster:      grid.Point{X: 2, Y: 10},
		CastRange:   9,
		BlastRadius: 1.5,
		Enemies:     []grid.Point{{X: 9, Y: 10}, {X: 10, Y: 10}, {X: 11, Y: 10}},
		Allies:      []grid.Point{{X: 12, Y: 10}},
		Samples:     49,
	}
	p := spatial.FindPlacement(cluster, req)

	require.True(t, p.Found)
	assert.LessOrEqual(t, p.Point.Dist(req.Caster), req.CastRange)
	assert.Zero(t, p.AllyHits)
	assert.GreaterOrEqual(t, p.EnemyHits, 2)
	assert.LessOrEqual(t, p.Evaluated, 49)
}

func TestFindPlacement_NothingInRange(t *testing.T) {
	cluster := spatial.EnemyCluster{Centroid: grid.Point{X: 30, Y: 30}}
	p := spatial.FindPlacement(cluster, spatial.PlacementRequest{
		Caster: grid.Point{}, CastRange: 5, BlastRadius: 2,
		Enemies: []grid.Point{{X: 30, Y: 30}}, Samples: 25,
	})
	assert.False(t, p.Found)
}

func TestProperty_DetectClusters_Validity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := spatial.DefaultClusterConfig()
		cfg.MinSize = rapid.IntRange(1, 4).Draw(rt, "minSize")
		cfg.Radius = rapid.Float64Range(1, 8).Draw(rt, "radius")
		cfg.MaxRadius = rapid.Float64Range(1, 10).Draw(rt, "maxRadius")

		n := rapid.IntRange(0, 20).Draw(rt, "n")
		enemies := make([]spatial.Combatant, n)
		for i := range enemies {
			enemies[i] = spatial.Combatant{
				ID: fmt.Sprintf("e%d", i),
				Pos: grid.Point{
					X: rapid.Float64Range(0, 30).Draw(rt, "x"),
					Y: rapid.Float64Range(0, 30).Draw(rt, "y"),
				},
			}
		}

		seen := make(map[string]bool)
		for _, cl := range spatial.DetectClusters(enemies, nil, cfg) {
			if cl.Size() < cfg.MinSize {
				rt.Fatalf("cluster of %d below min size %d", cl.Size(), cfg.MinSize)
			}
			for k, p := range cl.Positions {
				if d := p.Dist(cl.Centroid); d > cfg.MaxRadius+1e-9 {
					rt.Fatalf("member %s at %.3f from centroid exceeds max radius %.3f", cl.Members[k], d, cfg.MaxRadius)
				}
			}
			for _, id := range cl.Members {
				if seen[id] {
					rt.Fatalf("enemy %s assigned to two clusters", id)
				}
				seen[id] = true
			}
		}
	})
}
