package tree

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/entro314-labs/spacemap/internal/core"
)

const (
	chunkBits = 12
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
)

type node struct {
	name   string
	kind   core.Kind
	own    int64
	parent core.ID

	ready     atomic.Bool
	size      atomic.Int64
	finalized atomic.Bool
	failed    atomic.Bool

	mu       sync.Mutex
	children []core.ID
}

type chunk [chunkSize]node

// Tree is safe for concurrent use by any number of writers and readers.
type Tree struct {
	next   atomic.Uint32
	chunks atomic.Pointer[[]*chunk]
	grow   sync.Mutex
}

// Node is a read-only snapshot of one node.
type Node struct {
	ID        core.ID
	Parent    core.ID
	Name      string
	Kind      core.Kind
	OwnSize   int64
	Size      int64
	Children  []core.ID
	Finalized bool
	Err       bool
}

// Entry pairs a snapshot with its depth relative to the subtree root.
type Entry struct {
	Node
	Depth int
}

// New creates a tree holding only the root directory.
func New(rootName string) *Tree {
	t := &Tree{}
	empty := make([]*chunk, 0, 4)
	t.chunks.Store(&empty)
	id := t.alloc()
	n := t.slot(id)
	n.name = rootName
	n.kind = core.Dir
	n.parent = id
	n.ready.Store(true)
	return t
}

func (t *Tree) alloc() core.ID {
	id := t.next.Add(1) - 1
	ci := int(id >> chunkBits)
	if ci < len(*t.chunks.Load()) {
		return core.ID(id)
	}
	t.grow.Lock()
	defer t.grow.Unlock()
	current := *t.chunks.Load()
	if ci < len(current) {
		return core.ID(id)
	}
	grown := make([]*chunk, len(current), max(ci+1, 2*len(current)))
	copy(grown, current)
	for len(grown) <= ci {
		grown = append(grown, new(chunk))
	}
	t.chunks.Store(&grown)
	return core.ID(id)
}

func (t *Tree) slot(id core.ID) *node {
	chunks := *t.chunks.Load()
	return &chunks[id>>chunkBits][id&chunkMask]
}

func (t *Tree) lookup(id core.ID) (*node, error) {
	if uint32(id) >= t.next.Load() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	chunks := *t.chunks.Load()
	ci := int(id >> chunkBits)
	if ci >= len(chunks) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	n := &chunks[ci][id&chunkMask]
	if !n.ready.Load() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return n, nil
}

// Root returns the root ID.
func (t *Tree) Root() core.ID { return core.RootID }

// Len returns the number of nodes allocated so far.
func (t *Tree) Len() int { return int(t.next.Load()) }

// CreateNode attaches a node under parent and adds own to the aggregate size
// of every ancestor. Negative sizes count as zero.
func (t *Tree) CreateNode(parent core.ID, name string, kind core.Kind, own int64) (core.ID, error) {
	p, err := t.lookup(parent)
	if err != nil {
		return 0, err
	}
	if p.kind != core.Dir {
		return 0, fmt.Errorf("%w: %d", ErrNotDirectory, parent)
	}
	if p.finalized.Load() {
		return 0, fmt.Errorf("%w: %d", ErrFinalized, parent)
	}
	if own < 0 {
		own = 0
	}

	id := t.alloc()
	n := t.slot(id)
	n.name = name
	n.kind = kind
	n.own = own
	n.parent = parent
	n.size.Store(own)
	n.ready.Store(true)

	p.mu.Lock()
	p.children = append(p.children, id)
	p.mu.Unlock()

	if own > 0 {
		t.propagate(parent, own)
	}
	return id, nil
}

func (t *Tree) propagate(from core.ID, delta int64) {
	id := from
	for {
		n := t.slot(id)
		n.size.Add(delta)
		if id == core.RootID {
			return
		}
		id = n.parent
	}
}

// Finalize marks a directory's child list as complete.
func (t *Tree) Finalize(id core.ID) error {
	n, err := t.lookup(id)
	if err != nil {
		return err
	}
	n.finalized.Store(true)
	return nil
}

// MarkError flags a node whose entry could not be read completely.
func (t *Tree) MarkError(id core.ID) error {
	n, err := t.lookup(id)
	if err != nil {
		return err
	}
	n.failed.Store(true)
	return nil
}

// Node returns a snapshot of id.
func (t *Tree) Node(id core.ID) (Node, error) {
	n, err := t.lookup(id)
	if err != nil {
		return Node{}, err
	}
	return snapshot(id, n), nil
}

func snapshot(id core.ID, n *node) Node {
	n.mu.Lock()
	children := slices.Clone(n.children)
	n.mu.Unlock()
	return Node{
		ID:        id,
		Parent:    n.parent,
		Name:      n.name,
		Kind:      n.kind,
		OwnSize:   n.own,
		Size:      n.size.Load(),
		Children:  children,
		Finalized: n.finalized.Load(),
		Err:       n.failed.Load(),
	}
}

// Parent returns the parent of id. The root has no parent.
func (t *Tree) Parent(id core.ID) (core.ID, bool) {
	if id == core.RootID {
		return 0, false
	}
	n, err := t.lookup(id)
	if err != nil {
		return 0, false
	}
	return n.parent, true
}

// Children returns a copy of id's current child list.
func (t *Tree) Children(id core.ID) ([]core.ID, error) {
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.children), nil
}

// Path joins the names from the root down to id.
func (t *Tree) Path(id core.ID) (string, error) {
	var parts []string
	for {
		n, err := t.lookup(id)
		if err != nil {
			return "", err
		}
		parts = append(parts, n.name)
		if id == core.RootID {
			break
		}
		id = n.parent
	}
	slices.Reverse(parts)
	return filepath.Join(parts...), nil
}

// Subtree returns a breadth-first snapshot of id and its descendants down to
// maxDepth levels below it. Depth 0 is id itself.
func (t *Tree) Subtree(id core.ID, maxDepth int) ([]Entry, error) {
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	out := []Entry{{Node: snapshot(id, n)}}
	for i := 0; i < len(out); i++ {
		cur := out[i]
		if cur.Depth >= maxDepth {
			continue
		}
		for _, child := range cur.Children {
			cn, err := t.lookup(child)
			if err != nil {
				continue
			}
			out = append(out, Entry{Node: snapshot(child, cn), Depth: cur.Depth + 1})
		}
	}
	return out, nil
}

// Check verifies that every node's aggregate equals its own size plus the
// aggregates of its children. It is only meaningful once writers are done.
func (t *Tree) Check() error {
	total := t.Len()
	for i := range total {
		id := core.ID(i)
		n, err := t.lookup(id)
		if err != nil {
			continue
		}
		snap := snapshot(id, n)
		sum := snap.OwnSize
		seen := make(map[core.ID]struct{}, len(snap.Children))
		for _, child := range snap.Children {
			if _, dup := seen[child]; dup {
				return fmt.Errorf("node %d: duplicate child %d", id, child)
			}
			seen[child] = struct{}{}
			cn, err := t.lookup(child)
			if err != nil {
				return fmt.Errorf("node %d: %w", id, err)
			}
			if cn.parent != id {
				return fmt.Errorf("node %d: child %d has parent %d", id, child, cn.parent)
			}
			sum += cn.size.Load()
		}
		if sum != snap.Size {
			return fmt.Errorf("node %d: aggregate %d, want %d", id, snap.Size, sum)
		}
	}
	return nil
}
