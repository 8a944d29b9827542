package layout

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/entro314-labs/spacemap/internal/core"
)

func sizes(items []Item) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		out[i] = float64(it.Size)
	}
	return out
}

// minGuillotineLoss is the least area lost to clamping over every
// guillotine tiling of w by h into pieces proportional to areas.
func minGuillotineLoss(areas []float64, w, h, ratio float64) float64 {
	var solve func(items []int, w, h float64) float64
	solve = func(items []int, w, h float64) float64 {
		if len(items) == 1 {
			a := aspect(w, h)
			if a <= ratio*(1+slack) {
				return 0
			}
			return w * h * (1 - ratio/a)
		}
		var tot float64
		for _, i := range items {
			tot += areas[i]
		}
		best := math.Inf(1)
		rest := items[1:]
		for sub := 0; sub < 1<<len(rest)-1; sub++ {
			a, b := []int{items[0]}, []int(nil)
			for k, i := range rest {
				if sub>>k&1 == 1 {
					a = append(a, i)
				} else {
					b = append(b, i)
				}
			}
			var sa float64
			for _, i := range a {
				sa += areas[i]
			}
			f := sa / tot
			best = min(best,
				solve(a, w*f, h)+solve(b, w*(1-f), h),
				solve(a, w, h*f)+solve(b, w, h*(1-f)))
		}
		return best
	}
	all := make([]int, len(areas))
	for i := range all {
		all[i] = i
	}
	return solve(all, w, h)
}

func TestSmallGroupsMeetGapBudget(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 5))
	ratios := []float64{1.2, 1.6, 2, 3}
	var checked, infeasible int
	for iter := range 1000 {
		container := core.Rect{W: 20 + rng.Float64()*780, H: 20 + rng.Float64()*780}
		items := make([]Item, 1+rng.IntN(4))
		for i := range items {
			items[i] = Item{ID: core.ID(i + 1), Size: int64(math.Exp(rng.Float64()*14)) + 1}
		}
		cfg := DefaultConfig(ModeGutter)
		cfg.AspectRatio = ratios[iter%len(ratios)]

		// Four or fewer rectangles always tile as a guillotine cut, so an
		// input whose best guillotine tiling loses too much has no layout
		// within budget at all.
		if minGuillotineLoss(sizes(items), container.W, container.H, cfg.AspectRatio) > cfg.GutterTolerance*container.Area() {
			infeasible++
			continue
		}
		checked++
		res := mustSquarify(t, container, items, cfg)
		if res.Gap > cfg.GutterTolerance+1e-9 || res.OverBudget {
			t.Errorf("iter %d: %d items in %.1fx%.1f at R=%v: Gap %v, OverBudget %v",
				iter, len(items), container.W, container.H, cfg.AspectRatio, res.Gap, res.OverBudget)
		}
	}
	if checked == 0 {
		t.Fatal("no feasible inputs generated")
	}
	t.Logf("%d layouts checked, %d skipped as no tiling within budget exists", checked, infeasible)
}

func TestDescendingSizesMeetGapBudget(t *testing.T) {
	items := make([]Item, 10)
	for i := range items {
		items[i] = Item{ID: core.ID(i + 1), Size: int64(10 - i)}
	}
	cfg := DefaultConfig(ModeGutter)
	res := mustSquarify(t, core.Rect{W: 800, H: 600}, items, cfg)
	if len(res.Rects) != 10 {
		t.Fatalf("got %d rects, want 10", len(res.Rects))
	}
	if res.Gap > cfg.GutterTolerance || res.OverBudget {
		t.Errorf("Gap = %v, OverBudget %v, want within %v", res.Gap, res.OverBudget, cfg.GutterTolerance)
	}
}

func TestManySiblingsMeetGapBudget(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 3))
	for iter := range 200 {
		container := core.Rect{W: 200 + rng.Float64()*600, H: 200 + rng.Float64()*600}
		items := make([]Item, 20+rng.IntN(41))
		for i := range items {
			items[i] = Item{ID: core.ID(i + 1), Size: 1 + rng.Int64N(1000)}
		}
		cfg := DefaultConfig(ModeGutter)
		cfg.AspectRatio = []float64{2, 3}[iter%2]
		res := mustSquarify(t, container, items, cfg)
		if res.Gap > cfg.GutterTolerance || res.OverBudget {
			t.Errorf("iter %d: %d items in %.1fx%.1f at R=%v: Gap %v",
				iter, len(items), container.W, container.H, cfg.AspectRatio, res.Gap)
		}
	}
}

func TestSearchKeepsLargestShare(t *testing.T) {
	// No proportional tiling fits; the largest item keeps its share at the
	// bound and its siblings give way.
	items := []Item{{1, 100}, {2, 50}, {3, 50}}
	container := core.Rect{W: 200, H: 200}
	cfg := DefaultConfig(ModeGutter)
	res := mustSquarify(t, container, items, cfg)
	if got := rectOf(t, res, 1).Area(); math.Abs(got-20000) > 1e-3 {
		t.Errorf("largest area = %v, want 20000", got)
	}
	if !res.OverBudget {
		t.Errorf("Gap %v reported within budget", res.Gap)
	}
}

func TestGridReportsOutliers(t *testing.T) {
	items := make([]Item, 10)
	for i := range items {
		items[i] = Item{ID: core.ID(i + 1), Size: int64(10 - i)}
	}
	cfg := DefaultConfig(ModeGrid)
	container := core.Rect{W: 800, H: 600}
	res := mustSquarify(t, container, items, cfg)
	checkGridBound(t, container, res, cfg)

	long := core.Rect{W: 1000, H: 40}
	res = mustSquarify(t, long, []Item{{ID: 1, Size: 1}}, cfg)
	checkGridBound(t, long, res, cfg)
	if len(res.Outliers) != 1 || res.Outliers[0] != 1 || !res.OverBudget {
		t.Errorf("25:1 container: Outliers %v OverBudget %v, want item 1 reported", res.Outliers, res.OverBudget)
	}
}

func TestFitCells(t *testing.T) {
	tests := []struct {
		name           string
		b              box
		target         float64
		x0, y0, x1, y1 int
		ok             bool
	}{
		{"legal box kept", box{0.4, 0, 5.6, 4}, 24, 0, 0, 6, 4, true},
		{"closest square", box{0, 0, 10, 10}, 37, 2, 2, 8, 8, true},
		{"thin strip", box{0, 0, 10, 2}, 20, 3, 0, 6, 2, true},
		{"empty", box{}, 5, 0, 0, 0, 0, false},
		{"under one cell", box{0, 0, 0.4, 5}, 2, 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x0, y0, x1, y1, ok := fitCells(tt.b, 1.6, tt.target)
			if ok != tt.ok || x0 != tt.x0 || y0 != tt.y0 || x1 != tt.x1 || y1 != tt.y1 {
				t.Errorf("fitCells = (%d,%d,%d,%d,%v), want (%d,%d,%d,%d,%v)",
					x0, y0, x1, y1, ok, tt.x0, tt.y0, tt.x1, tt.y1, tt.ok)
			}
		})
	}
}

func TestSearchBudgetGivesUp(t *testing.T) {
	areas := make([]float64, searchMax)
	for i := range areas {
		areas[i] = float64(searchMax - i)
	}
	p := placer{ratio: 1.05, tol: 0, rollouts: true}
	p.want = areas
	p.areas = areas
	p.out = make([]box, len(areas))
	s := newSearcher(&p, 0, len(areas), false)
	cost, plan := s.solve(uint32(1)<<len(areas)-1, 800, 600, -1)
	if !s.exhausted || plan != -1 || !math.IsInf(cost, 1) {
		t.Errorf("solve = %v, %d, exhausted %v; want the budget to run out", cost, plan, s.exhausted)
	}
}
