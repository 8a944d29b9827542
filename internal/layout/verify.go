package layout

import (
	"fmt"

	"github.com/entro314-labs/spacemap/internal/core"
)

const (
	edgeEpsilon   = 1e-6
	aspectEpsilon = 1e-9
)

// Verify checks that res is a legal layout of container under cfg: every
// rectangle inside the container, no two overlapping, none beyond the aspect
// bound. Violations wrap core.ErrLayoutInvariant.
func Verify(container core.Rect, res Result, cfg Config) error {
	for i, p := range res.Rects {
		if p.Rect.Empty() {
			return fmt.Errorf("%w: item %d has empty rect %+v", core.ErrLayoutInvariant, p.ID, p.Rect)
		}
		if !p.Rect.Within(container, edgeEpsilon) {
			return fmt.Errorf("%w: item %d rect %+v escapes %+v", core.ErrLayoutInvariant, p.ID, p.Rect, container)
		}
		if a := p.Rect.Aspect(); a > cfg.AspectRatio+aspectEpsilon {
			return fmt.Errorf("%w: item %d aspect %.6f exceeds %.3f", core.ErrLayoutInvariant, p.ID, a, cfg.AspectRatio)
		}
		for _, q := range res.Rects[i+1:] {
			if p.Rect.Overlaps(q.Rect, edgeEpsilon) {
				return fmt.Errorf("%w: items %d and %d overlap", core.ErrLayoutInvariant, p.ID, q.ID)
			}
		}
	}
	return nil
}
