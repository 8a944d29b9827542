package layout

import (
	"cmp"
	"math"
	"slices"
)

const (
	// slack absorbs rounding in aspect comparisons.
	slack = 1e-9
	// searchMax is the largest group handed to the subset search.
	searchMax = 10
	// rolloutMax is the largest group whose row candidates are compared by
	// completing the layout greedily.
	rolloutMax = 32
	// gridSlack is the share of the area tolerance a grid rectangle may
	// spend on shape before it counts as lost.
	gridSlack = 0.25
)

// task is the group of items [lo, hi) to place inside b.
type task struct {
	b      box
	lo, hi int
}

// cut starts a group with a row of items [lo, j) of thickness t. Items
// [j, m) are nested in the strip the row leaves beside its last slot, and
// items [m, hi) go to the rest of the box.
type cut struct {
	t    float64
	j, m int
}

// placer partitions a box among areas sorted descending. Rectangles may
// break the aspect bound; the loss function prices that and callers fix it
// up afterwards.
type placer struct {
	ratio float64
	// relative selects the grid loss: the squared relative area error a
	// rectangle ends up with once shrunk to the bound, beyond a quarter of
	// tol. A layout should drive it to zero. The gutter loss is the area a
	// rectangle gives up when clamped, allowed up to tol of the box.
	relative bool
	tol      float64
	rollouts bool

	// want holds the areas as given; areas is rescaled per group.
	want  []float64
	areas []float64
	out   []box
}

func (p *placer) place(origin box, areas []float64) []box {
	p.want = areas
	p.areas = slices.Clone(areas)
	p.out = make([]box, len(areas))
	p.run([]task{{origin, 0, len(areas)}}, true)
	return p.out
}

// run drains a task stack. Without search every group is cut into rows.
func (p *placer) run(stack []task, search bool) {
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.lo >= t.hi || t.b.empty() {
			continue
		}
		p.fit(t)
		switch n := t.hi - t.lo; {
		case n == 1:
			p.out[t.lo] = t.b
		case search && n <= searchMax:
			p.search(t)
		default:
			stack = append(stack, p.row(t)...)
		}
	}
}

// fit scales the group's areas to the area of its box.
func (p *placer) fit(t task) {
	var need float64
	for _, a := range p.areas[t.lo:t.hi] {
		need += a
	}
	if need <= 0 {
		return
	}
	f := t.b.area() / need
	for k := t.lo; k < t.hi; k++ {
		p.areas[k] *= f
	}
}

// loss prices the box of item k.
func (p *placer) loss(k int, b box) float64 {
	w, h := b.w(), b.h()
	if w <= 0 || h <= 0 {
		return 0
	}
	if p.relative {
		want := p.want[k]
		short := math.Min(w, h)
		got := math.Min(want, math.Min(w*h, p.ratio*short*short))
		e := math.Max(0, (want-got)/want-p.tol*gridSlack)
		return e * e
	}
	a := aspect(w, h)
	if a <= p.ratio*(1+slack) {
		return 0
	}
	return w * h * (1 - p.ratio/a)
}

func (p *placer) goal(b box) float64 {
	if p.relative {
		return 0
	}
	return p.tol * b.area()
}

func (p *placer) cost(lo, hi int) float64 {
	var c float64
	for k := lo; k < hi; k++ {
		c += p.loss(k, p.out[k])
	}
	return c
}

// row places the first row of t and returns the groups left over. Only
// rows whose every slot meets the aspect bound are candidates; when there
// is none the largest item starts a row at the bound and the strip beside
// it is nested.
func (p *placer) row(t task) []task {
	a := p.areas
	side, depth := t.b.sides()

	type candidate struct {
		worst float64
		c     cut
	}
	var cands []candidate
	var s float64
	for j := t.lo + 1; j <= t.hi; j++ {
		s += a[j-1]
		th := s / side
		if th > depth*(1+slack) || a[j-1]*p.ratio < th*th*(1-slack) {
			break
		}
		if a[t.lo] > p.ratio*th*th*(1+slack) {
			continue
		}
		cands = append(cands, candidate{math.Max(a[t.lo]/(th*th), th*th/a[j-1]), cut{th, j, j}})
	}
	if len(cands) == 0 {
		cands = append(cands, candidate{math.Inf(1), p.nest(t, side, depth)})
	}
	slices.SortStableFunc(cands, func(x, y candidate) int { return cmp.Compare(x.worst, y.worst) })

	best := cands[0].c
	if p.rollouts && len(cands) > 1 && t.hi-t.lo <= rolloutMax {
		bestCost := math.Inf(1)
		for _, c := range cands {
			cost := p.rollout(t, c.c)
			if cost < bestCost {
				bestCost, best = cost, c.c
			}
			if cost <= 0 {
				break
			}
		}
	}
	return p.apply(t, best)
}

// rollout completes t greedily after c and returns the loss, leaving the
// placer as it found it.
func (p *placer) rollout(t task, c cut) float64 {
	areas := slices.Clone(p.areas[t.lo:t.hi])
	out := slices.Clone(p.out[t.lo:t.hi])
	p.rollouts = false
	p.run(p.apply(t, c), false)
	cost := p.cost(t.lo, t.hi)
	copy(p.areas[t.lo:], areas)
	copy(p.out[t.lo:], out)
	p.rollouts = true
	return cost
}

// nest picks a row for a group whose largest item is too big for any plain
// row: the largest item at thickness sqrt(a/ratio), the next items that fit
// beside it at the same thickness, and a nested group filling the strip to
// the end of the side.
func (p *placer) nest(t task, side, depth float64) cut {
	a := p.areas
	lo := t.lo
	t0 := math.Sqrt(a[lo] / p.ratio)
	if t0 >= depth || a[lo] > p.ratio*side*side {
		return cut{math.Min(a[lo]/side, depth), lo + 1, lo + 1}
	}
	j, s := lo+1, a[lo]
	for j < t.hi && a[j]*p.ratio*p.ratio >= a[lo] && (s+a[j])/t0 < side {
		s += a[j]
		j++
	}
	m, g, need := j, 0.0, side*t0-s
	for m < t.hi && g < need {
		g += a[m]
		m++
	}
	return cut{(s + g) / side, j, m}
}

// apply lays out the row c and returns the nested strip and the rest of
// the box as new tasks.
func (p *placer) apply(t task, c cut) []task {
	b := t.b
	vertical := b.vertical()
	_, depth := b.sides()
	th := c.t
	if c.m == t.hi {
		th = depth
	}
	th = math.Min(th, depth)

	// Cumulative edges keep neighbours touching exactly.
	var acc float64
	for k := t.lo; k < c.j; k++ {
		last := k == c.j-1 && c.m == c.j
		if vertical {
			y0 := b.y0 + acc
			acc += p.areas[k] / th
			y1 := math.Min(b.y0+acc, b.y1)
			if last {
				y1 = b.y1
			}
			p.out[k] = box{b.x0, y0, b.x0 + th, y1}
		} else {
			x0 := b.x0 + acc
			acc += p.areas[k] / th
			x1 := math.Min(b.x0+acc, b.x1)
			if last {
				x1 = b.x1
			}
			p.out[k] = box{x0, b.y0, x1, b.y0 + th}
		}
	}

	var subs []task
	if c.m > c.j {
		strip := box{b.x0, math.Min(b.y0+acc, b.y1), b.x0 + th, b.y1}
		if !vertical {
			strip = box{math.Min(b.x0+acc, b.x1), b.y0, b.x1, b.y0 + th}
		}
		subs = append(subs, task{strip, c.j, c.m})
	}
	if c.m < t.hi {
		rest := box{b.x0 + th, b.y0, b.x1, b.y1}
		if !vertical {
			rest = box{b.x0, b.y0 + th, b.x1, b.y1}
		}
		subs = append(subs, task{rest, c.m, t.hi})
	}
	return subs
}

// search places a small group. The greedy rows are kept when they meet the
// goal. Otherwise the subset search looks for a cheaper guillotine layout,
// first with every box proportional to its items, then also letting a lone
// item take a box at the aspect bound at the expense of its siblings.
func (p *placer) search(t task) {
	p.run([]task{t}, false)
	bound := p.cost(t.lo, t.hi)
	goal := p.goal(t.b)
	for _, lone := range [2]bool{false, true} {
		if bound <= goal {
			return
		}
		s := newSearcher(p, t.lo, t.hi, lone)
		cost, plan := s.solve(uint32(1)<<(t.hi-t.lo)-1, t.b.w(), t.b.h(), goal)
		if plan >= 0 && cost < bound {
			s.emit(plan, t.b, p.out[t.lo:t.hi])
			bound = cost
		}
	}
}
