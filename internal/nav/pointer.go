package nav

import "github.com/entro314-labs/spacemap/internal/core"

type EventKind uint8

const (
	Click EventKind = iota
	DoubleClick
	RightClick
)

func (k EventKind) String() string {
	switch k {
	case DoubleClick:
		return "double-click"
	case RightClick:
		return "right-click"
	default:
		return "click"
	}
}

// Event is a pointer event in canvas coordinates.
type Event struct {
	Kind EventKind
	Pos  core.Point
}

type Region uint8

const (
	Interior Region = iota
	Band
)

// Hit is the tile under a pointer and the part of it that was hit.
type Hit struct {
	Tile   core.Tile
	Region Region
}

// HitTest resolves p against tiles. Expanded directories are tested for
// their border band first; a point on the content edge belongs to the band.
// Points in the gutter between children resolve to the enclosing directory,
// unless they fall within the outward band of an expanded child.
func HitTest(tiles []core.Tile, p core.Point) (Hit, bool) {
	level := 0
	parent := -1
	for {
		found := -1
		for i := range tiles {
			t := &tiles[i]
			if t.Level != level || (parent >= 0 && t.Parent != tiles[parent].ID) {
				continue
			}
			if t.Contains(p) {
				found = i
				break
			}
		}

		if found < 0 {
			for i := range tiles {
				t := &tiles[i]
				if t.Level != level || (parent >= 0 && t.Parent != tiles[parent].ID) {
					continue
				}
				if t.IsDir() && t.Expanded > 0 && t.Grow(t.Band).Contains(p) {
					return Hit{Tile: *t, Region: Band}, true
				}
			}
			if parent >= 0 {
				return Hit{Tile: tiles[parent], Region: Interior}, true
			}
			return Hit{}, false
		}

		t := tiles[found]
		if !t.IsDir() || t.Expanded == 0 {
			return Hit{Tile: t, Region: Interior}, true
		}
		if !t.Content.ContainsStrict(p) {
			return Hit{Tile: t, Region: Band}, true
		}
		parent = found
		level = t.Level + 1
	}
}

// HandlePointerEvent applies ev to s using the tiles the event was aimed
// at. Files only ever change the selection.
func HandlePointerEvent(s State, ev Event, tiles []core.Tile) State {
	next := s.clone()
	hit, ok := HitTest(tiles, ev.Pos)
	if !ok {
		return next
	}
	t := hit.Tile
	if t.Aggregate > 0 {
		return next
	}

	switch ev.Kind {
	case Click, DoubleClick:
		next.Selected = t.ID
		next.HasSelection = true
		if !t.IsDir() {
			return next
		}
		if hit.Region == Band {
			collapse(next, t.ID, tiles)
			return next
		}
		cur := current(s, t)
		if ev.Kind == Click {
			if cur == 0 {
				next.Expanded[t.ID] = min(1, next.MaxDepth)
			}
			return next
		}
		next.Expanded[t.ID] = min(cur+1, next.MaxDepth)
	case RightClick:
		if t.IsDir() {
			next.ZoomRoot = t.ID
		}
	}
	return next
}

// current prefers the depth recorded in s, so that a click followed by a
// double-click against the same tiles drills one level further.
func current(s State, t core.Tile) int {
	if d, ok := s.Expanded[t.ID]; ok {
		return d
	}
	return t.Expanded
}

// collapse closes id and forgets the expansions of its visible descendants.
func collapse(s State, id core.ID, tiles []core.Tile) {
	parents := make(map[core.ID]core.ID, len(tiles))
	for _, t := range tiles {
		if t.Aggregate == 0 && t.Level > 0 {
			parents[t.ID] = t.Parent
		}
	}
	for key := range s.Expanded {
		for cur, ok := parents[key]; ok; cur, ok = parents[cur] {
			if cur == id {
				delete(s.Expanded, key)
				break
			}
		}
	}
	s.Expanded[id] = 0
}
