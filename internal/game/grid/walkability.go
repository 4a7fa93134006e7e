package grid

// Direction is one of the eight neighbour directions, used as a bit index into a
// cell's connection mask.
type Direction uint8

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// Directions lists all eight directions in mask-bit order.
var Directions = [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

var directionOffsets = [8][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Offset returns the (dx, dy) step for d.
func (d Direction) Offset() (int, int) {
	o := directionOffsets[d]
	return o[0], o[1]
}

// Diagonal reports whether d is one of the four diagonal directions.
func (d Direction) Diagonal() bool { return d%2 == 1 }

// WalkableQuery answers walkability for a single navigation-grid cell. It is
// normally satisfied by the engine binding.
type WalkableQuery interface {
	Walkable(c Cell) bool
}

// WalkableFunc adapts a function to WalkableQuery.
type WalkableFunc func(c Cell) bool

// Walkable calls f(c).
func (f WalkableFunc) Walkable(c Cell) bool { return f(c) }

// WalkabilityCache is a rectangular window of the navigation grid, padded
// around the current combat participants, storing per-cell walkable flags and
// an 8-direction connection mask.
//
// A cache is never edited after construction; Expand returns a new cache.
//
// Invariant: len(walkable) == len(links) == bounds.Area().
type WalkabilityCache struct {
	bounds     Rect
	walkable   []bool
	links      []uint8
	padding    int
	recomputed int
}

// NewWalkabilityCache builds a cache over the bounding box of positions,
// padded by padding cells on each side.
//
// Precondition: q is non-nil; positions is non-empty; padding >= 0.
// Postcondition: every position lies at least padding cells inside Bounds().
func NewWalkabilityCache(q WalkableQuery, positions []Point, padding int) *WalkabilityCache {
	bounds := BoundsOf(positions, padding)
	wc := &WalkabilityCache{
		bounds:   bounds,
		walkable: make([]bool, bounds.Area()),
		links:    make([]uint8, bounds.Area()),
		padding:  padding,
	}
	wc.fill(q, func(Cell) bool { return true })
	return wc
}

// fill computes walkable flags and links for every cell selected by fresh.
// Connection masks query q directly for neighbours outside the window so that a
// cell's cached mask never depends on the window it was computed in.
func (wc *WalkabilityCache) fill(q WalkableQuery, fresh func(Cell) bool) {
	w := wc.bounds.Width()
	for i := range wc.walkable {
		c := Cell{X: wc.bounds.Min.X + i%w, Y: wc.bounds.Min.Y + i/w}
		if !fresh(c) {
			continue
		}
		wc.walkable[i] = q.Walkable(c)
		wc.recomputed++
	}
	walkableAt := func(c Cell) bool {
		if wc.bounds.Contains(c) {
			return wc.walkable[wc.index(c)]
		}
		return q.Walkable(c)
	}
	for i := range wc.links {
		c := Cell{X: wc.bounds.Min.X + i%w, Y: wc.bounds.Min.Y + i/w}
		if !fresh(c) || !wc.walkable[i] {
			continue
		}
		var mask uint8
		for _, d := range Directions {
			dx, dy := d.Offset()
			if !walkableAt(c.Add(dx, dy)) {
				continue
			}
			// No corner cutting: a diagonal needs both orthogonal neighbours open.
			if d.Diagonal() && (!walkableAt(c.Add(dx, 0)) || !walkableAt(c.Add(0, dy))) {
				continue
			}
			mask |= 1 << d
		}
		wc.links[i] = mask
	}
}

func (wc *WalkabilityCache) index(c Cell) int {
	return (c.Y-wc.bounds.Min.Y)*wc.bounds.Width() + (c.X - wc.bounds.Min.X)
}

// Bounds returns the cached window.
func (wc *WalkabilityCache) Bounds() Rect { return wc.bounds }

// Recomputed returns the number of cells whose walkability was queried while
// building this cache value.
func (wc *WalkabilityCache) Recomputed() int { return wc.recomputed }

// Walkable reports whether c is walkable. known is false when c lies outside the window.
func (wc *WalkabilityCache) Walkable(c Cell) (walkable, known bool) {
	if wc == nil || !wc.bounds.Contains(c) {
		return false, false
	}
	return wc.walkable[wc.index(c)], true
}

// Links returns the connection mask of c (bit d set when moving in direction d is allowed).
func (wc *WalkabilityCache) Links(c Cell) (uint8, bool) {
	if wc == nil || !wc.bounds.Contains(c) {
		return 0, false
	}
	return wc.links[wc.index(c)], true
}

// Connected reports whether a unit standing on c may step in direction d.
func (wc *WalkabilityCache) Connected(c Cell, d Direction) bool {
	m, ok := wc.Links(c)
	return ok && m&(1<<d) != 0
}

// NeedsExpansion reports whether any position lies within margin cells of the
// window edge (or outside it).
func (wc *WalkabilityCache) NeedsExpansion(positions []Point, margin int) bool {
	inner := wc.bounds.Inset(margin)
	for _, p := range positions {
		if !inner.Contains(p.Cell()) {
			return true
		}
	}
	return false
}

// Expand returns a new cache re-centred to cover both the existing window and
// the padded bounding box of positions. Cells present in the old window are
// copied verbatim; only newly exposed cells are queried.
//
// Precondition: q is the same navigation source the cache was built from.
// Postcondition: for every cell c in both windows, the new cache's Walkable(c)
// and Links(c) equal the old cache's.
// Postcondition: Recomputed() on the result equals the number of newly exposed cells.
func (wc *WalkabilityCache) Expand(q WalkableQuery, positions []Point) *WalkabilityCache {
	bounds := wc.bounds.Union(BoundsOf(positions, wc.padding))
	next := &WalkabilityCache{
		bounds:   bounds,
		walkable: make([]bool, bounds.Area()),
		links:    make([]uint8, bounds.Area()),
		padding:  wc.padding,
	}
	for y := wc.bounds.Min.Y; y < wc.bounds.Max.Y; y++ {
		for x := wc.bounds.Min.X; x < wc.bounds.Max.X; x++ {
			c := Cell{X: x, Y: y}
			i, j := wc.index(c), next.index(c)
			next.walkable[j] = wc.walkable[i]
			next.links[j] = wc.links[i]
		}
	}
	next.fill(q, func(c Cell) bool { return !wc.bounds.Contains(c) })
	return next
}

// Neighbors returns the cells reachable in one step from c.
func (wc *WalkabilityCache) Neighbors(c Cell) []Cell {
	m, ok := wc.Links(c)
	if !ok || m == 0 {
		return nil
	}
	out := make([]Cell, 0, 8)
	for _, d := range Directions {
		if m&(1<<d) != 0 {
			dx, dy := d.Offset()
			out = append(out, c.Add(dx, dy))
		}
	}
	return out
}
