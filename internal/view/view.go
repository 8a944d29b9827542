// Package view turns a size tree and a navigation state into the tiles a
// renderer draws.
package view

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/layout"
	"github.com/entro314-labs/spacemap/internal/nav"
	"github.com/entro314-labs/spacemap/internal/tree"
)

// Source is the read side of a size tree.
type Source interface {
	Subtree(id core.ID, maxDepth int) ([]tree.Entry, error)
}

// Config bundles everything a view depends on besides the state.
type Config struct {
	Layout    layout.Config   `json:"layout"`
	Nav       nav.Config      `json:"nav"`
	Aggregate AggregateConfig `json:"aggregate"`
}

// DefaultConfig returns the default view configuration for mode.
func DefaultConfig(mode layout.Mode) Config {
	return Config{
		Layout:    layout.DefaultConfig(mode),
		Nav:       nav.DefaultConfig(),
		Aggregate: DefaultAggregateConfig(),
	}
}

func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := c.Nav.Validate(); err != nil {
		return err
	}
	return c.Aggregate.Validate()
}

type frame struct {
	parent core.ID
	rect   core.Rect
	level  int
	depth  int
}

// Build lays out the subtree under st.ZoomRoot on st.Canvas. Parents always
// precede their children in the result, so drawing in order paints nested
// tiles on top. The same tree and state always give the same tiles.
func Build(src Source, st nav.State, cfg Config) ([]core.Tile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	maxDepth := st.MaxDepth
	if maxDepth < 1 {
		maxDepth = cfg.Nav.MaxDepth
	}
	entries, err := src.Subtree(st.ZoomRoot, maxDepth+1)
	if err != nil {
		return nil, fmt.Errorf("view of %d: %w", st.ZoomRoot, err)
	}
	nodes := make(map[core.ID]tree.Node, len(entries))
	for _, e := range entries {
		nodes[e.ID] = e.Node
	}

	rootDepth := 1
	if d, ok := st.Expanded[st.ZoomRoot]; ok && d > rootDepth {
		rootDepth = d
	}

	var tiles []core.Tile
	work := []frame{{parent: st.ZoomRoot, rect: st.Canvas, depth: rootDepth}}
	for len(work) > 0 {
		f := work[0]
		work = work[1:]

		parent, ok := nodes[f.parent]
		if !ok {
			continue
		}
		children := make([]tree.Node, 0, len(parent.Children))
		for _, id := range parent.Children {
			if c, ok := nodes[id]; ok && c.Size > 0 {
				children = append(children, c)
			}
		}
		slices.SortFunc(children, bySizeDesc)

		kept, folded := children, []tree.Node(nil)
		if cfg.Aggregate.Enabled {
			kept, folded = partition(children, f.rect.Area(), cfg.Aggregate)
		}
		items := make([]layout.Item, 0, len(kept)+1)
		for _, c := range kept {
			items = append(items, layout.Item{ID: c.ID, Size: c.Size})
		}
		var foldedSize int64
		for _, c := range folded {
			foldedSize += c.Size
		}
		if len(folded) > 0 {
			// The parent never appears among its own children, so its ID is
			// free to stand for the aggregate.
			items = append(items, layout.Item{ID: f.parent, Size: foldedSize})
		}

		res, err := layout.Squarify(f.rect, items, cfg.Layout)
		if err != nil {
			return nil, err
		}
		for _, p := range res.Rects {
			if p.ID == f.parent {
				tiles = append(tiles, core.Tile{
					Rect:            p.Rect,
					ID:              f.parent,
					Parent:          f.parent,
					Kind:            core.File,
					Size:            foldedSize,
					Level:           f.level,
					LabelSuppressed: nav.LabelSuppressed(p.Rect, cfg.Nav),
					Aggregate:       len(folded),
				})
				continue
			}
			c := nodes[p.ID]
			t := core.Tile{
				Rect:            p.Rect,
				ID:              c.ID,
				Parent:          f.parent,
				Name:            c.Name,
				Kind:            c.Kind,
				Size:            c.Size,
				Level:           f.level,
				LabelSuppressed: nav.LabelSuppressed(p.Rect, cfg.Nav),
				Err:             c.Err,
				Selected:        st.HasSelection && st.Selected == c.ID,
			}
			if c.Kind == core.Dir {
				t.Expanded = min(st.Effective(c.ID, f.depth-1), maxDepth-f.level)
			}
			if t.Expanded > 0 {
				t.Content, t.Band = nav.ContentRect(p.Rect, cfg.Nav)
				if !t.Content.Empty() {
					work = append(work, frame{parent: c.ID, rect: t.Content, level: f.level + 1, depth: t.Expanded})
				}
			}
			tiles = append(tiles, t)
		}
	}
	return tiles, nil
}

func bySizeDesc(a, b tree.Node) int {
	if c := cmp.Compare(b.Size, a.Size); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
