package layout

import (
	"cmp"
	"math"
	"math/bits"
	"slices"
)

// searchBudget caps the split candidates one search may generate.
const searchBudget = 200000

// searcher finds a guillotine layout of up to searchMax items with the
// least loss. Every rectangle is split in two, with the largest item of the
// subset always on the first side, across all subsets and both
// orientations. Splits are tried cheapest-looking first and the search stops
// as soon as the goal is met, so a layout with zero loss is found whenever
// one exists and the budget allows.
//
// With lone set, a side holding a single item that would be too thin may
// instead get the thickness that fits the item at the bound; the other side
// shrinks to make room.
type searcher struct {
	p     *placer
	lo    int
	lone  bool
	areas []float64
	memo  map[memoKey]memoEntry
	steps []step
	work  int
	// exhausted is set once the budget runs out; the search then gives up
	// and the caller keeps its greedy layout.
	exhausted bool
}

type memoKey struct {
	mask uint32
	w, h float64
}

type memoEntry struct {
	best     float64
	plan     int
	complete bool
}

// step is one node of a plan: a leaf placing item leaf, or a cut at frac
// of the width (vertical) or height with plans a and b on either side.
type step struct {
	leaf     int
	vertical bool
	frac     float64
	a, b     int
}

type split struct {
	penalty  float64
	idx      int
	a, b     uint32
	vertical bool
	frac     float64
	wa, ha   float64
	wb, hb   float64
}

func newSearcher(p *placer, lo, hi int, lone bool) *searcher {
	return &searcher{
		p:     p,
		lo:    lo,
		lone:  lone,
		areas: p.areas[lo:hi],
		memo:  make(map[memoKey]memoEntry),
	}
}

func (s *searcher) total(mask uint32) float64 {
	var t float64
	for m := mask; m != 0; m &= m - 1 {
		t += s.areas[bits.TrailingZeros32(m)]
	}
	return t
}

// penalty guesses how hard it is to fit mask into w by h. A single item is
// judged by its aspect; a group by the aspect each member would get in a
// row.
func (s *searcher) penalty(w, h float64, mask uint32) float64 {
	a := aspect(w, h)
	r := s.p.ratio
	if n := bits.OnesCount32(mask); n > 1 {
		q := a / float64(n)
		if q <= r {
			return math.Log(a)
		}
		return 10*(q-r) + math.Log(a)
	}
	if a <= r {
		return a
	}
	return 10*(a-r) + a
}

// solve returns the least loss found for mask in a w by h rectangle and
// the plan achieving it, stopping early once the loss is within goal.
func (s *searcher) solve(mask uint32, w, h, goal float64) (float64, int) {
	if mask&(mask-1) == 0 {
		s.steps = append(s.steps, step{leaf: bits.TrailingZeros32(mask)})
		return s.p.loss(s.lo+bits.TrailingZeros32(mask), box{0, 0, w, h}), len(s.steps) - 1
	}
	key := memoKey{mask, w, h}
	if m, ok := s.memo[key]; ok && (m.complete || m.best <= goal) {
		return m.best, m.plan
	}

	tot := s.total(mask)
	first := mask & -mask
	rest := mask ^ first
	var splits []split
	for sub := uint32(0); ; sub = (sub - rest) & rest {
		if sub != rest {
			a, b := first|sub, rest^sub
			f := s.total(a) / tot
			for _, vertical := range [2]bool{true, false} {
				for _, frac := range s.fractions(a, b, f, w, h, tot, vertical) {
					sp := split{idx: len(splits), a: a, b: b, vertical: vertical, frac: frac}
					if vertical {
						sp.wa, sp.ha, sp.wb, sp.hb = w*frac, h, w*(1-frac), h
					} else {
						sp.wa, sp.ha, sp.wb, sp.hb = w, h*frac, w, h*(1-frac)
					}
					sp.penalty = s.penalty(sp.wa, sp.ha, a) + s.penalty(sp.wb, sp.hb, b)
					splits = append(splits, sp)
				}
			}
		}
		if sub == rest {
			break
		}
	}
	s.work += len(splits)
	if s.work > searchBudget {
		s.exhausted = true
	}
	if s.exhausted {
		return math.Inf(1), -1
	}
	slices.SortFunc(splits, func(x, y split) int {
		if c := cmp.Compare(x.penalty, y.penalty); c != 0 {
			return c
		}
		return cmp.Compare(x.idx, y.idx)
	})

	best, plan, complete := math.Inf(1), -1, true
	for _, sp := range splits {
		lim := math.Min(goal, best)
		ga, pa := s.solve(sp.a, sp.wa, sp.ha, lim)
		if s.exhausted {
			return math.Inf(1), -1
		}
		if ga >= best {
			continue
		}
		gb, pb := s.solve(sp.b, sp.wb, sp.hb, lim-ga)
		if s.exhausted {
			return math.Inf(1), -1
		}
		if ga+gb < best {
			best = ga + gb
			s.steps = append(s.steps, step{leaf: -1, vertical: sp.vertical, frac: sp.frac, a: pa, b: pb})
			plan = len(s.steps) - 1
		}
		if best <= goal {
			complete = false
			break
		}
	}
	s.memo[key] = memoEntry{best, plan, complete}
	return best, plan
}

// fractions returns where to cut w by h between a and b: at the
// proportional share f, and in lone mode also where a single item on
// either side would sit exactly at the bound.
func (s *searcher) fractions(a, b uint32, f, w, h, tot float64, vertical bool) []float64 {
	out := []float64{f}
	if !s.lone {
		return out
	}
	along, across := w, h
	if !vertical {
		along, across = h, w
	}
	scale := w * h / tot
	for _, m := range [2]uint32{a, b} {
		if m&(m-1) != 0 {
			continue
		}
		area := s.total(m) * scale
		if across*across <= area*s.p.ratio {
			continue
		}
		t := math.Sqrt(area / s.p.ratio)
		if t >= along {
			continue
		}
		if m == a {
			out = append(out, t/along)
		} else {
			out = append(out, 1-t/along)
		}
	}
	return out
}

// emit writes the boxes of plan inside b to out, indexed like areas.
func (s *searcher) emit(plan int, b box, out []box) {
	type frame struct {
		plan int
		b    box
	}
	stack := []frame{{plan, b}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		st := s.steps[f.plan]
		if st.leaf >= 0 {
			out[st.leaf] = f.b
			continue
		}
		if st.vertical {
			xm := f.b.x0 + f.b.w()*st.frac
			stack = append(stack,
				frame{st.b, box{xm, f.b.y0, f.b.x1, f.b.y1}},
				frame{st.a, box{f.b.x0, f.b.y0, xm, f.b.y1}})
		} else {
			ym := f.b.y0 + f.b.h()*st.frac
			stack = append(stack,
				frame{st.b, box{f.b.x0, ym, f.b.x1, f.b.y1}},
				frame{st.a, box{f.b.x0, f.b.y0, f.b.x1, ym}})
		}
	}
}
