package core

import "math"

// Point is a position in canvas units.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle. Rectangles produced by the layout
// engine are never mutated afterward.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Short returns the length of the shorter side.
func (r Rect) Short() float64 { return math.Min(r.W, r.H) }

// Long returns the length of the longer side.
func (r Rect) Long() float64 { return math.Max(r.W, r.H) }

// Aspect returns long side over short side, or +Inf for degenerate rects.
func (r Rect) Aspect() float64 {
	short := r.Short()
	if short <= 0 {
		return math.Inf(1)
	}
	return r.Long() / short
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// ContainsStrict reports whether p lies strictly inside r.
func (r Rect) ContainsStrict(p Point) bool {
	return p.X > r.X && p.X < r.X+r.W && p.Y > r.Y && p.Y < r.Y+r.H
}

// Inset shrinks r by d on every side. The result is empty when r is too
// small.
func (r Rect) Inset(d float64) Rect {
	out := Rect{X: r.X + d, Y: r.Y + d, W: r.W - 2*d, H: r.H - 2*d}
	if out.W < 0 {
		out.W = 0
	}
	if out.H < 0 {
		out.H = 0
	}
	return out
}

// Grow expands r by d on every side.
func (r Rect) Grow(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, W: r.W + 2*d, H: r.H + 2*d}
}

// Intersect returns the overlapping region of r and o.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.X+r.W, o.X+o.W)
	y1 := math.Min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Overlaps reports whether r and o share an area larger than eps.
func (r Rect) Overlaps(o Rect, eps float64) bool {
	return r.Intersect(o).Area() > eps
}

// Within reports whether r lies inside c, allowing eps of slack per edge.
func (r Rect) Within(c Rect, eps float64) bool {
	return r.X >= c.X-eps && r.Y >= c.Y-eps &&
		r.X+r.W <= c.X+c.W+eps && r.Y+r.H <= c.Y+c.H+eps
}
