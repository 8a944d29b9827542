package tree

import "errors"

var (
	ErrUnknownNode  = errors.New("unknown node")
	ErrNotDirectory = errors.New("parent is not a directory")
	ErrFinalized    = errors.New("directory already finalized")
)
