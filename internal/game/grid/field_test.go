package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/tactician/internal/game/grid"
)

func TestField_SetAtOutOfBounds(t *testing.T) {
	f := grid.NewField(grid.Rect{Min: grid.Cell{X: -2, Y: -2}, Max: grid.Cell{X: 3, Y: 3}}, 1)

	v, ok := f.At(grid.Cell{X: -2, Y: 2})
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	f.Set(grid.Cell{X: 10, Y: 10}, 5)
	_, ok = f.At(grid.Cell{X: 10, Y: 10})
	assert.False(t, ok)

	f.Min(grid.Cell{X: 0, Y: 0}, 0.25)
	f.Max(grid.Cell{X: 1, Y: 0}, 3)
	v, _ = f.At(grid.Cell{X: 0, Y: 0})
	assert.Equal(t, 0.25, v)
	v, _ = f.At(grid.Cell{X: 1, Y: 0})
	assert.Equal(t, 3.0, v)
	assert.Equal(t, 3.0, f.MaxValue())
}

func TestField_CloneIsIndependent(t *testing.T) {
	f := grid.NewField(grid.Rect{Max: grid.Cell{X: 2, Y: 2}}, 0)
	cp := f.Clone()
	cp.Set(grid.Cell{X: 1, Y: 1}, 9)

	v, _ := f.At(grid.Cell{X: 1, Y: 1})
	assert.Equal(t, 0.0, v)
}

func TestField_EachVisitsRowMajor(t *testing.T) {
	f := grid.NewField(grid.Rect{Min: grid.Cell{X: 1, Y: 1}, Max: grid.Cell{X: 3, Y: 3}}, 0)
	var seen []grid.Cell
	f.Each(func(c grid.Cell, _ float64) { seen = append(seen, c) })
	assert.Equal(t, []grid.Cell{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}}, seen)
}

func TestBoundsOf_Empty(t *testing.T) {
	assert.True(t, grid.BoundsOf(nil, 3).Empty())
}

func TestCellsInRadius_IncludesCenter(t *testing.T) {
	count := 0
	grid.CellsInRadius(grid.Point{X: 0.5, Y: 0.5}, 1, func(c grid.Cell, d float64) {
		count++
		assert.LessOrEqual(t, d, 1.0)
	})
	assert.Equal(t, 5, count)
}
