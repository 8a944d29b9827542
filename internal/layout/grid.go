package layout

import (
	"cmp"
	"math"
	"slices"

	"github.com/entro314-labs/spacemap/internal/core"
)

// grid describes the square cells a container is quantized into.
type grid struct {
	cell   float64
	nx, ny int
}

// newGrid fits square cells of side max(W,H)/n into c. Cells are never
// smaller than one unit, so small containers get fewer cells.
func newGrid(c core.Rect, n int) grid {
	cell := c.Long() / float64(n)
	if cell < 1 {
		cell = 1
	}
	return grid{
		cell: cell,
		nx:   int(math.Floor(c.W/cell + 1e-9)),
		ny:   int(math.Floor(c.H/cell + 1e-9)),
	}
}

// allocate splits cells among items by largest remainder. Every count is
// within one cell of its exact share and the counts sum to cells.
func allocate(items []Item, total float64, cells int) []int {
	counts := make([]int, len(items))
	type frac struct {
		idx int
		rem float64
	}
	rems := make([]frac, len(items))
	used := 0
	for i, it := range items {
		exact := float64(it.Size) / total * float64(cells)
		counts[i] = int(math.Floor(exact))
		used += counts[i]
		rems[i] = frac{i, exact - float64(counts[i])}
	}
	slices.SortStableFunc(rems, func(a, b frac) int {
		switch {
		case a.rem > b.rem:
			return -1
		case a.rem < b.rem:
			return 1
		}
		return 0
	})
	for k := 0; used < cells && k < len(rems); k++ {
		counts[rems[k].idx]++
		used++
	}
	return counts
}

func gridLayout(container core.Rect, items []Item, total float64, cfg Config) Result {
	g := newGrid(container, cfg.GridSize)
	var res Result
	if g.nx < 1 || g.ny < 1 {
		res.Hidden = ids(items)
		return res
	}

	cells := g.nx * g.ny
	counts := allocate(items, total, cells)
	kept := make([]int, 0, len(items))
	for i, c := range counts {
		if c == 0 {
			// The exact share is under one cell, within the bound.
			res.Hidden = append(res.Hidden, items[i].ID)
			continue
		}
		kept = append(kept, i)
	}
	// Counts of a descending list stay descending except where rounding
	// bumps an equal neighbour; restore order for the placer.
	slices.SortStableFunc(kept, func(a, b int) int { return cmp.Compare(counts[b], counts[a]) })
	areas := make([]float64, len(kept))
	for k, i := range kept {
		areas[k] = float64(counts[i])
	}

	p := placer{ratio: cfg.AspectRatio, relative: true, tol: cfg.AreaTolerance, rollouts: true}
	boxes := p.place(box{0, 0, float64(g.nx), float64(g.ny)}, areas)

	cellArea := g.cell * g.cell
	for k, b := range boxes {
		it := items[kept[k]]
		target := float64(it.Size) / total * float64(cells)
		x0, y0, x1, y1, ok := fitCells(b, cfg.AspectRatio, target)
		got := 0
		if ok {
			got = (x1 - x0) * (y1 - y0)
		}
		if math.Abs(float64(got)-target) > math.Max(cfg.AreaTolerance*target, 1) {
			res.Outliers = append(res.Outliers, it.ID)
		}
		if !ok {
			res.Hidden = append(res.Hidden, it.ID)
			continue
		}
		res.Rects = append(res.Rects, Placed{
			ID: it.ID,
			Rect: core.Rect{
				X: container.X + float64(x0)*g.cell,
				Y: container.Y + float64(y0)*g.cell,
				W: float64(x1-x0) * g.cell,
				H: float64(y1-y0) * g.cell,
			},
			Target: target * cellArea,
		})
	}
	return res
}

// fitCells rounds the edges of b to whole cells, then picks the
// sub-rectangle within the aspect bound whose cell count is closest to
// target, centred in the rounded box. Rounding is monotone, so boxes that
// did not overlap before do not overlap after.
func fitCells(b box, ratio, target float64) (x0, y0, x1, y1 int, ok bool) {
	if b.empty() {
		return 0, 0, 0, 0, false
	}
	x0 = int(math.Round(b.x0))
	y0 = int(math.Round(b.y0))
	x1 = int(math.Round(b.x1))
	y1 = int(math.Round(b.y1))
	w, h := x1-x0, y1-y0
	if w < 1 || h < 1 {
		return 0, 0, 0, 0, false
	}

	bw, bh, bestErr := 0, 0, math.Inf(1)
	for cw := w; cw >= 1; cw-- {
		hmin := max(1, int(math.Ceil(float64(cw)/ratio-1e-9)))
		hmax := min(h, int(math.Floor(ratio*float64(cw))))
		if hmin > hmax {
			continue
		}
		exact := target / float64(cw)
		for _, ch := range [2]int{
			min(max(int(math.Floor(exact)), hmin), hmax),
			min(max(int(math.Ceil(exact)), hmin), hmax),
		} {
			if cw > int(math.Floor(ratio*float64(ch))) {
				continue
			}
			err := math.Abs(float64(cw*ch) - target)
			if err < bestErr || (err == bestErr && cw*ch > bw*bh) {
				bw, bh, bestErr = cw, ch, err
			}
		}
	}
	if bw == 0 {
		return 0, 0, 0, 0, false
	}
	x0 += (w - bw) / 2
	y0 += (h - bh) / 2
	return x0, y0, x0 + bw, y0 + bh, true
}
