package grid

import "math"

// Field is a fixed-cell 2-D float buffer over a bounded battlefield region.
// Cells are stored row-major in a single contiguous slice.
//
// Invariant: len(cells) == bounds.Area().
type Field struct {
	bounds Rect
	cells  []float64
}

// NewField allocates a Field covering bounds with every cell set to fill.
//
// Precondition: bounds is non-empty.
// Postcondition: At(c) == fill for every c in bounds.
func NewField(bounds Rect, fill float64) *Field {
	f := &Field{bounds: bounds, cells: make([]float64, bounds.Area())}
	if fill != 0 {
		for i := range f.cells {
			f.cells[i] = fill
		}
	}
	return f
}

// Bounds returns the region covered by f.
func (f *Field) Bounds() Rect { return f.bounds }

func (f *Field) index(c Cell) int {
	return (c.Y-f.bounds.Min.Y)*f.bounds.Width() + (c.X - f.bounds.Min.X)
}

// At returns the value at c, or (0, false) when c is outside the field.
func (f *Field) At(c Cell) (float64, bool) {
	if f == nil || !f.bounds.Contains(c) {
		return 0, false
	}
	return f.cells[f.index(c)], true
}

// Sample returns the value of the cell containing p, or def when p is outside.
func (f *Field) Sample(p Point, def float64) float64 {
	v, ok := f.At(p.Cell())
	if !ok {
		return def
	}
	return v
}

// Set writes v at c; out-of-bounds writes are ignored.
func (f *Field) Set(c Cell, v float64) {
	if !f.bounds.Contains(c) {
		return
	}
	f.cells[f.index(c)] = v
}

// Add accumulates delta at c; out-of-bounds writes are ignored.
func (f *Field) Add(c Cell, delta float64) {
	if !f.bounds.Contains(c) {
		return
	}
	f.cells[f.index(c)] += delta
}

// Min writes min(current, v) at c.
func (f *Field) Min(c Cell, v float64) {
	if !f.bounds.Contains(c) {
		return
	}
	i := f.index(c)
	f.cells[i] = math.Min(f.cells[i], v)
}

// Max writes max(current, v) at c.
func (f *Field) Max(c Cell, v float64) {
	if !f.bounds.Contains(c) {
		return
	}
	i := f.index(c)
	f.cells[i] = math.Max(f.cells[i], v)
}

// Each calls fn for every cell in row-major order.
func (f *Field) Each(fn func(c Cell, v float64)) {
	w := f.bounds.Width()
	for i, v := range f.cells {
		fn(Cell{X: f.bounds.Min.X + i%w, Y: f.bounds.Min.Y + i/w}, v)
	}
}

// Clone returns an independent copy of f.
func (f *Field) Clone() *Field {
	cp := make([]float64, len(f.cells))
	copy(cp, f.cells)
	return &Field{bounds: f.bounds, cells: cp}
}

// MaxValue returns the largest value in f, or 0 for an empty field.
func (f *Field) MaxValue() float64 {
	if len(f.cells) == 0 {
		return 0
	}
	best := f.cells[0]
	for _, v := range f.cells[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// Clamp limits every value to [lo, hi].
func (f *Field) Clamp(lo, hi float64) {
	for i, v := range f.cells {
		f.cells[i] = math.Max(lo, math.Min(hi, v))
	}
}
