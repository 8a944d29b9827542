package core

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks a per-entry filesystem failure. It is absorbed by the
	// crawler and surfaced as a flag on the node and a counter.
	ErrIO = errors.New("i/o error")

	// ErrCancelled marks a scan stopped by its owner. It is a status, not a
	// fault.
	ErrCancelled = errors.New("scan cancelled")

	// ErrInvalidConfiguration is returned synchronously by validation.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrLayoutInvariant reports overlapping, escaping or over-elongated
	// rectangles. The layout engine never produces them.
	ErrLayoutInvariant = errors.New("layout invariant violated")
)

// EntryError records a failed filesystem operation on one entry.
type EntryError struct {
	Path string
	Op   string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// InvalidConfig wraps ErrInvalidConfiguration with the offending field.
func InvalidConfig(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfiguration, field, fmt.Sprintf(format, args...))
}
