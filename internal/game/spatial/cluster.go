package spatial

import (
	"math"
	"sort"

	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// ClusterConfig tunes DetectClusters.
type ClusterConfig struct {
	// Radius is the neighbour distance used for seeding and expansion.
	Radius float64
	// MaxRadius bounds every member's distance from the final centroid.
	MaxRadius float64
	MinSize   int
	// BlastRadius is the area used to count allies that would be caught.
	BlastRadius      float64
	MaxAlliesInBlast int
	AllyPenalty      float64
	TightnessBonus   float64
	DensityBonus     float64
}

// DefaultClusterConfig returns the tuning used when no configuration is supplied.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		Radius:           6,
		MaxRadius:        8,
		MinSize:          2,
		BlastRadius:      3,
		MaxAlliesInBlast: 0,
		AllyPenalty:      2,
		TightnessBonus:   1,
		DensityBonus:     1,
	}
}

// EnemyCluster is a density-grouped set of enemies.
//
// Invariant: len(Members) >= MinSize and every member lies within MaxRadius of Centroid.
type EnemyCluster struct {
	Members   []string
	Positions []grid.Point
	Centroid  grid.Point
	// Radius is the largest member distance from Centroid.
	Radius        float64
	Quality       float64
	AlliesInBlast int
	// Valid is false when AlliesInBlast exceeds the configured cap.
	Valid bool
}

// Size returns the number of members.
func (c EnemyCluster) Size() int { return len(c.Members) }

// DetectClusters groups enemies greedily by density.
//
// The seed of each cluster is the unassigned enemy with the most unassigned
// neighbours within cfg.Radius; the cluster then grows breadth-first,
// accepting neighbours that stay within cfg.MaxRadius of the running centroid.
// Members left beyond cfg.MaxRadius of the final centroid are released. A seed
// that cannot grow to cfg.MinSize is consumed without producing a cluster.
//
// allies are the teammates a blast could catch; the caster is never one.
//
// Postcondition: clusters are ordered by descending Quality.
// Postcondition: every returned cluster satisfies the EnemyCluster invariant.
func DetectClusters(enemies, allies []Combatant, cfg ClusterConfig) []EnemyCluster {
	minSize := max(cfg.MinSize, 1)
	assigned := make([]bool, len(enemies))
	var out []EnemyCluster

	for {
		seed, best := -1, -1
		for i := range enemies {
			if assigned[i] {
				continue
			}
			n := 0
			for j := range enemies {
				if j != i && !assigned[j] && enemies[i].Pos.Dist(enemies[j].Pos) <= cfg.Radius {
					n++
				}
			}
			if n > best {
				seed, best = i, n
			}
		}
		if seed < 0 || best+1 < minSize {
			break
		}

		members := grow(enemies, assigned, seed, cfg)
		members = prune(enemies, members, cfg.MaxRadius)
		if len(members) < minSize {
			assigned[seed] = true
			continue
		}
		for _, i := range members {
			assigned[i] = true
		}
		out = append(out, newCluster(enemies, allies, members, cfg))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Quality > out[j].Quality })
	return out
}

func grow(enemies []Combatant, assigned []bool, seed int, cfg ClusterConfig) []int {
	in := map[int]bool{seed: true}
	members := []int{seed}
	queue := []int{seed}
	centroid := enemies[seed].Pos
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for v := range enemies {
			if assigned[v] || in[v] {
				continue
			}
			if enemies[u].Pos.Dist(enemies[v].Pos) > cfg.Radius {
				continue
			}
			if enemies[v].Pos.Dist(centroid) > cfg.MaxRadius {
				continue
			}
			in[v] = true
			members = append(members, v)
			queue = append(queue, v)
			centroid = centroidOf(enemies, members)
		}
	}
	return members
}

// prune drops the farthest member until every remaining member lies within maxRadius of the centroid.
func prune(enemies []Combatant, members []int, maxRadius float64) []int {
	for len(members) > 0 {
		c := centroidOf(enemies, members)
		far, farD := -1, maxRadius
		for k, i := range members {
			if d := enemies[i].Pos.Dist(c); d > farD {
				far, farD = k, d
			}
		}
		if far < 0 {
			return members
		}
		members = append(members[:far:far], members[far+1:]...)
	}
	return members
}

func centroidOf(enemies []Combatant, members []int) grid.Point {
	pts := make([]grid.Point, len(members))
	for k, i := range members {
		pts[k] = enemies[i].Pos
	}
	c, _ := grid.Centroid(pts)
	return c
}

func newCluster(enemies, allies []Combatant, members []int, cfg ClusterConfig) EnemyCluster {
	cl := EnemyCluster{Centroid: centroidOf(enemies, members)}
	for _, i := range members {
		cl.Members = append(cl.Members, enemies[i].ID)
		cl.Positions = append(cl.Positions, enemies[i].Pos)
		cl.Radius = math.Max(cl.Radius, enemies[i].Pos.Dist(cl.Centroid))
	}
	for _, a := range allies {
		if a.Pos.Dist(cl.Centroid) <= cfg.BlastRadius {
			cl.AlliesInBlast++
		}
	}

	n := float64(len(members))
	tightness := 0.0
	if cfg.MaxRadius > 0 {
		tightness = math.Max(0, 1-cl.Radius/cfg.MaxRadius)
	}
	r := math.Max(cl.Radius, 1)
	density := math.Min(1, n/(math.Pi*r*r))
	cl.Quality = n + cfg.TightnessBonus*tightness + cfg.DensityBonus*density - cfg.AllyPenalty*float64(cl.AlliesInBlast)
	cl.Valid = cl.AlliesInBlast <= cfg.MaxAlliesInBlast
	return cl
}
