// Package nav implements the navigation state machine of the treemap: which
// directory fills the canvas, how deep each directory is drilled open, and
// how pointer events change that.
//
// Every transition is a pure function from one State to the next. The
// expanded map is copied, never mutated in place.
package nav

import (
	"maps"

	"github.com/entro314-labs/spacemap/internal/core"
)

// Config holds hit-testing geometry and drill limits.
type Config struct {
	MaxDepth    int     `json:"max_depth"`
	BandWidth   float64 `json:"band_width"`
	BorderWidth float64 `json:"border_width"`
	// Header reserves space above an expanded directory's content for its
	// label.
	Header   float64 `json:"header"`
	MinLabel float64 `json:"min_label"`
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:    4,
		BandWidth:   8,
		BorderWidth: 1.5,
		MinLabel:    24,
	}
}

func (c Config) Validate() error {
	if c.MaxDepth < 1 {
		return core.InvalidConfig("nav.max_depth", "must be >= 1, got %d", c.MaxDepth)
	}
	if c.BandWidth < 0 {
		return core.InvalidConfig("nav.band_width", "must be >= 0, got %v", c.BandWidth)
	}
	if c.BorderWidth < 0 {
		return core.InvalidConfig("nav.border_width", "must be >= 0, got %v", c.BorderWidth)
	}
	if c.Header < 0 {
		return core.InvalidConfig("nav.header", "must be >= 0, got %v", c.Header)
	}
	if c.MinLabel < 0 {
		return core.InvalidConfig("nav.min_label", "must be >= 0, got %v", c.MinLabel)
	}
	return nil
}

// State is the navigation state of one interactive session.
type State struct {
	ZoomRoot core.ID
	// Expanded maps a directory to its drill depth. An explicit 0 keeps a
	// directory collapsed even when an ancestor is drilled deep enough to
	// reveal its children.
	Expanded     map[core.ID]int
	MaxDepth     int
	Canvas       core.Rect
	Selected     core.ID
	HasSelection bool
}

// New returns the initial state: zoomed on the scan root, nothing expanded.
func New(canvas core.Rect, maxDepth int) State {
	return State{
		ZoomRoot: core.RootID,
		Expanded: map[core.ID]int{},
		MaxDepth: maxDepth,
		Canvas:   canvas,
	}
}

func (s State) clone() State {
	next := s
	next.Expanded = maps.Clone(s.Expanded)
	if next.Expanded == nil {
		next.Expanded = map[core.ID]int{}
	}
	return next
}

// Depth returns the explicit drill depth recorded for id, if any.
func (s State) Depth(id core.ID) (int, bool) {
	d, ok := s.Expanded[id]
	return d, ok
}

// Effective resolves the drill depth of id given the depth its parent
// passes down.
func (s State) Effective(id core.ID, inherited int) int {
	if d, ok := s.Expanded[id]; ok {
		return d
	}
	return max(inherited, 0)
}

// WithCanvas returns s laid out on a new canvas.
func (s State) WithCanvas(canvas core.Rect) State {
	next := s.clone()
	next.Canvas = canvas
	return next
}

// ParentLookup resolves a node's parent. *tree.Tree satisfies it.
type ParentLookup interface {
	Parent(id core.ID) (core.ID, bool)
}

// ZoomOut moves the zoom root one level up. At the scan root it is a no-op.
func ZoomOut(s State, parents ParentLookup) State {
	next := s.clone()
	if parent, ok := parents.Parent(s.ZoomRoot); ok {
		next.ZoomRoot = parent
	}
	return next
}

// ZoomTo makes id the zoom root.
func ZoomTo(s State, id core.ID) State {
	next := s.clone()
	next.ZoomRoot = id
	return next
}

// CollapseAll forgets every expansion.
func CollapseAll(s State) State {
	next := s.clone()
	clear(next.Expanded)
	return next
}

// ContentRect returns the interior of an expanded directory drawn in outer,
// and the inset actually used. The inset is the border plus the inward half
// of the band, clamped to a quarter of the shorter side.
func ContentRect(outer core.Rect, cfg Config) (core.Rect, float64) {
	inset := cfg.BorderWidth + cfg.BandWidth
	if limit := outer.Short() / 4; inset > limit {
		inset = limit
	}
	header := min(cfg.Header, outer.H/4)
	content := core.Rect{
		X: outer.X + inset,
		Y: outer.Y + inset + header,
		W: outer.W - 2*inset,
		H: outer.H - 2*inset - header,
	}
	if content.W < 0 {
		content.W = 0
	}
	if content.H < 0 {
		content.H = 0
	}
	return content, inset
}

// LabelSuppressed reports whether r is too small to carry a text label. A
// label needs the short side to exceed MinLabel.
func LabelSuppressed(r core.Rect, cfg Config) bool {
	return r.Short() <= cfg.MinLabel
}

// ChildSize is the input to ShouldAutoZoom.
type ChildSize struct {
	ID   core.ID
	Size int64
	Dir  bool
}

// ShouldAutoZoom picks a directory worth zooming into on first view: the
// only directory holding at least 90% of total.
func ShouldAutoZoom(total int64, children []ChildSize) (core.ID, bool) {
	if total <= 0 {
		return 0, false
	}
	for _, c := range children {
		if c.Dir && float64(c.Size) >= 0.9*float64(total) {
			return c.ID, true
		}
	}
	return 0, false
}
