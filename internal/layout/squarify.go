// Package layout computes squarified treemaps with a hard bound on the
// aspect ratio of every rectangle.
//
// Squarify is pure: it reads its arguments and returns new values. Sibling
// groups are cut from an explicit task stack, so stack use is independent
// of the number of siblings.
package layout

import (
	"cmp"
	"math"
	"slices"

	"github.com/entro314-labs/spacemap/internal/core"
)

// Item is one child to lay out.
type Item struct {
	ID   core.ID
	Size int64
}

// Placed is a laid-out item. Target is the exact proportional share the
// item would get without shape correction: of the container area in gutter
// mode, of the whole-cell grid area in grid mode.
type Placed struct {
	ID     core.ID
	Rect   core.Rect
	Target float64
}

// Result is the output of one Squarify call.
type Result struct {
	Rects []Placed
	// Gap is the fraction of the container area left unrendered.
	Gap float64
	// MaxAreaError is the largest relative difference between a rectangle's
	// area and its Target.
	MaxAreaError float64
	// Hidden lists items with a positive size that received no rectangle.
	Hidden []core.ID
	// Outliers lists grid-mode items whose area misses Target by more than
	// max(AreaTolerance*Target, one cell).
	Outliers []core.ID
	// OverBudget is set when the layout misses its tolerance: Gap above
	// GutterTolerance in gutter mode, any Outliers in grid mode. No layout
	// within the aspect bound meets the tolerance for some inputs.
	OverBudget bool
}

// box keeps explicit edges so that neighbours share bit-identical
// coordinates.
type box struct {
	x0, y0, x1, y1 float64
}

func (b box) w() float64    { return b.x1 - b.x0 }
func (b box) h() float64    { return b.y1 - b.y0 }
func (b box) area() float64 { return b.w() * b.h() }

func (b box) empty() bool { return !(b.x1 > b.x0) || !(b.y1 > b.y0) }

// vertical reports whether rows in b run top to bottom, along its short
// side.
func (b box) vertical() bool { return b.w() >= b.h() }

// sides returns the short side a row runs along and the long side rows are
// stacked across.
func (b box) sides() (side, depth float64) {
	if b.vertical() {
		return b.h(), b.w()
	}
	return b.w(), b.h()
}

func (b box) rect() core.Rect {
	return core.Rect{X: b.x0, Y: b.y0, W: b.x1 - b.x0, H: b.y1 - b.y0}
}

func aspect(w, h float64) float64 {
	return core.Rect{W: w, H: h}.Aspect()
}

// Squarify lays out items inside container. Items with a size <= 0 are
// omitted. The returned rectangles follow descending size order, ties broken
// by ascending ID.
func Squarify(container core.Rect, items []Item, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	sorted := make([]Item, 0, len(items))
	var total float64
	for _, it := range items {
		if it.Size > 0 {
			sorted = append(sorted, it)
			total += float64(it.Size)
		}
	}
	slices.SortFunc(sorted, func(a, b Item) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(sorted) == 0 {
		return Result{}, nil
	}
	if container.Empty() {
		return Result{Hidden: ids(sorted)}, nil
	}

	var res Result
	switch cfg.Mode {
	case ModeGrid:
		res = gridLayout(container, sorted, total, cfg)
	default:
		res = gutterLayout(container, sorted, total, cfg)
	}
	res.finish(container, cfg)
	return res, nil
}

func ids(items []Item) []core.ID {
	out := make([]core.ID, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func gutterLayout(container core.Rect, items []Item, total float64, cfg Config) Result {
	area := container.Area()
	areas := make([]float64, len(items))
	for i, it := range items {
		areas[i] = float64(it.Size) / total * area
	}
	origin := box{container.X, container.Y, container.X + container.W, container.Y + container.H}
	p := placer{ratio: cfg.AspectRatio, tol: cfg.GutterTolerance, rollouts: true}
	boxes := p.place(origin, areas)

	var res Result
	for i, b := range boxes {
		b = clampAspect(b, cfg.AspectRatio)
		if b.empty() {
			res.Hidden = append(res.Hidden, items[i].ID)
			continue
		}
		res.Rects = append(res.Rects, Placed{
			ID:     items[i].ID,
			Rect:   b.rect(),
			Target: areas[i],
		})
	}
	return res
}

func (r *Result) finish(container core.Rect, cfg Config) {
	area := container.Area()
	var used float64
	for _, p := range r.Rects {
		a := p.Rect.Area()
		used += a
		if p.Target > 0 {
			r.MaxAreaError = math.Max(r.MaxAreaError, math.Abs(a-p.Target)/p.Target)
		}
	}
	if area > 0 {
		r.Gap = math.Max(0, 1-used/area)
	}
	if cfg.Mode == ModeGrid {
		r.OverBudget = len(r.Outliers) > 0
	} else {
		r.OverBudget = r.Gap > cfg.GutterTolerance
	}
}

// clampAspect shortens the long side of b to ratio times its short side,
// keeping the result centred in b.
func clampAspect(b box, ratio float64) box {
	w, h := b.w(), b.h()
	if w <= 0 || h <= 0 {
		return box{}
	}
	if w > h*ratio {
		nw := h * ratio
		x0 := b.x0 + (w-nw)/2
		return box{x0, b.y0, x0 + nw, b.y1}
	}
	if h > w*ratio {
		nh := w * ratio
		y0 := b.y0 + (h-nh)/2
		return box{b.x0, y0, b.x1, y0 + nh}
	}
	return b
}
