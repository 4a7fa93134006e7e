// Package grid provides the cell geometry, fixed-cell float buffers, and the
// walkability cache shared by every spatial analysis in the decision core.
package grid

import "math"

// Point is a continuous battlefield position measured in tiles.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Cell is an integer grid coordinate. Cell (x, y) covers the square
// [x, x+1) × [y, y+1) in Point space.
type Cell struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// DistSq returns the squared Euclidean distance between p and q.
func (p Point) DistSq(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Lerp returns the point t of the way from p to q.
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// Cell returns the cell containing p.
func (p Point) Cell() Cell {
	return Cell{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))}
}

// Center returns the Point at the middle of c.
func (c Cell) Center() Point {
	return Point{X: float64(c.X) + 0.5, Y: float64(c.Y) + 0.5}
}

// Add returns c offset by (dx, dy).
func (c Cell) Add(dx, dy int) Cell { return Cell{X: c.X + dx, Y: c.Y + dy} }

// Centroid returns the arithmetic mean of pts.
//
// Postcondition: returns the zero Point and false when pts is empty.
func Centroid(pts []Point) (Point, bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point{X: sx / n, Y: sy / n}, true
}

// Rect is a half-open cell rectangle: Min inclusive, Max exclusive.
//
// Invariant: a Rect with Max.X <= Min.X or Max.Y <= Min.Y is empty.
type Rect struct {
	Min Cell
	Max Cell
}

// Width returns the number of columns in r.
func (r Rect) Width() int { return max(0, r.Max.X-r.Min.X) }

// Height returns the number of rows in r.
func (r Rect) Height() int { return max(0, r.Max.Y-r.Min.Y) }

// Area returns Width × Height.
func (r Rect) Area() int { return r.Width() * r.Height() }

// Empty reports whether r contains no cells.
func (r Rect) Empty() bool { return r.Width() == 0 || r.Height() == 0 }

// Contains reports whether c lies inside r.
func (r Rect) Contains(c Cell) bool {
	return c.X >= r.Min.X && c.X < r.Max.X && c.Y >= r.Min.Y && c.Y < r.Max.Y
}

// Union returns the smallest Rect containing both r and s. Empty operands are ignored.
func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return Rect{
		Min: Cell{X: min(r.Min.X, s.Min.X), Y: min(r.Min.Y, s.Min.Y)},
		Max: Cell{X: max(r.Max.X, s.Max.X), Y: max(r.Max.Y, s.Max.Y)},
	}
}

// Inset shrinks r by n cells on every side (grows it when n is negative).
func (r Rect) Inset(n int) Rect {
	return Rect{
		Min: Cell{X: r.Min.X + n, Y: r.Min.Y + n},
		Max: Cell{X: r.Max.X - n, Y: r.Max.Y - n},
	}
}

// Clip returns the intersection of r and s.
func (r Rect) Clip(s Rect) Rect {
	out := Rect{
		Min: Cell{X: max(r.Min.X, s.Min.X), Y: max(r.Min.Y, s.Min.Y)},
		Max: Cell{X: min(r.Max.X, s.Max.X), Y: min(r.Max.Y, s.Max.Y)},
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// BoundsOf returns the padded bounding Rect of pts.
//
// Postcondition: every cell containing a point in pts lies at least pad cells inside the result.
func BoundsOf(pts []Point, pad int) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	first := pts[0].Cell()
	r := Rect{Min: first, Max: first.Add(1, 1)}
	for _, p := range pts[1:] {
		c := p.Cell()
		r = r.Union(Rect{Min: c, Max: c.Add(1, 1)})
	}
	return r.Inset(-pad)
}

// CellsInRadius calls fn for every cell whose center lies within radius of center.
func CellsInRadius(center Point, radius float64, fn func(c Cell, dist float64)) {
	if radius < 0 {
		return
	}
	r := int(math.Ceil(radius)) + 1
	origin := center.Cell()
	r2 := radius * radius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c := origin.Add(dx, dy)
			d2 := c.Center().DistSq(center)
			if d2 <= r2 {
				fn(c, math.Sqrt(d2))
			}
		}
	}
}
