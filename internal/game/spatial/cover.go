package spatial

import (
	"math"

	"github.com/cory-johannsen/tactician/internal/game/grid"
)

// CoverQuery classifies protection at a point against fire from another point.
// It is normally satisfied by the engine binding.
type CoverQuery interface {
	// CoverAt returns 0 (fully exposed) .. 1 (full cover).
	CoverAt(at, from grid.Point) float64
}

// CoverMap stores, per cell, the protection a unit standing there has against
// the worst-angled enemy.
//
// Cells outside every enemy's stamp keep the value 1: they are beyond the
// stamped engagement radius and treated as fully covered.
type CoverMap struct {
	Field *grid.Field
	// Queries is the number of CoverAt calls made while building the map.
	Queries int
}

// BuildCover stamps each enemy's cover disc of stampRadius onto a field
// initialised to full cover, combining overlapping stamps with min.
//
// Precondition: bounds is non-empty; q is non-nil.
// Postcondition: Queries <= len(enemies) × (cells in one stamp disc).
// Postcondition: every value lies in [0, 1].
func BuildCover(bounds grid.Rect, enemies []grid.Point, stampRadius float64, q CoverQuery) *CoverMap {
	m := &CoverMap{Field: grid.NewField(bounds, 1)}
	for _, e := range enemies {
		grid.CellsInRadius(e, stampRadius, func(c grid.Cell, _ float64) {
			if !bounds.Contains(c) {
				return
			}
			v := math.Max(0, math.Min(1, q.CoverAt(c.Center(), e)))
			m.Queries++
			m.Field.Min(c, v)
		})
	}
	return m
}

// At returns the cover value at p; points outside the map report full cover.
func (m *CoverMap) At(p grid.Point) float64 {
	if m == nil {
		return 0.5
	}
	return m.Field.Sample(p, 1)
}
