// Package core holds the types shared by the scanner, the size tree, the
// layout engine and the navigation state machine.
package core

import "fmt"

// ID addresses a node in the size tree. IDs are dense arena indexes and are
// never reused within a scan.
type ID uint32

// RootID is the ID of the scan root.
const RootID ID = 0

// Kind classifies a filesystem entry.
type Kind uint8

const (
	File Kind = iota
	Dir
)

func (k Kind) String() string {
	switch k {
	case Dir:
		return "dir"
	default:
		return "file"
	}
}

// Tile is one rectangle of a computed view, tagged with the node it
// represents and the metadata a renderer needs to draw it.
type Tile struct {
	Rect
	ID       ID
	Parent   ID
	Name     string
	Kind     Kind
	Size     int64
	Level    int
	Expanded int
	// Content is the interior of an expanded directory, strictly inside its
	// border band. Zero for files and collapsed directories.
	Content         Rect
	Band            float64
	LabelSuppressed bool
	Err             bool
	Selected        bool
	// Aggregate is the number of small siblings folded into this tile. Zero
	// for tiles that stand for a real node.
	Aggregate int
}

// IsDir reports whether the tile represents a directory node.
func (t Tile) IsDir() bool {
	return t.Kind == Dir && t.Aggregate == 0
}

// Label returns the text a renderer shows for the tile.
func (t Tile) Label() string {
	if t.Aggregate > 0 {
		return fmt.Sprintf("%d small items", t.Aggregate)
	}
	return t.Name
}
