package view

import (
	"slices"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/tree"
)

// AggregateConfig controls folding of small siblings into one tile.
type AggregateConfig struct {
	Enabled bool `json:"enabled"`
	// MinArea and MinShare set the smallest expected area worth its own
	// tile: the larger of MinArea and MinShare of the container.
	MinArea  float64 `json:"min_area"`
	MinShare float64 `json:"min_share"`
	// MaxItems caps the number of individual tiles. 0 disables the cap.
	MaxItems int `json:"max_items"`
	// MaxShare bounds the folded tile's share of the parent's size.
	MaxShare float64 `json:"max_share"`
}

func DefaultAggregateConfig() AggregateConfig {
	return AggregateConfig{
		Enabled:  true,
		MinArea:  400,
		MinShare: 0.005,
		MaxItems: 12,
		MaxShare: 0.08,
	}
}

func (c AggregateConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MinArea < 0 {
		return core.InvalidConfig("aggregate.min_area", "must be >= 0, got %v", c.MinArea)
	}
	if c.MinShare < 0 || c.MinShare >= 1 {
		return core.InvalidConfig("aggregate.min_share", "must be in [0, 1), got %v", c.MinShare)
	}
	if c.MaxItems < 0 {
		return core.InvalidConfig("aggregate.max_items", "must be >= 0, got %d", c.MaxItems)
	}
	if c.MaxShare <= 0 || c.MaxShare > 1 {
		return core.InvalidConfig("aggregate.max_share", "must be in (0, 1], got %v", c.MaxShare)
	}
	return nil
}

// partition splits children, sorted by size descending, into tiles of their
// own and a folded remainder. Children too small for area are folded first,
// then the smallest survivors beyond MaxItems. The largest folded children
// are then pulled back until the remainder fits MaxShare. At least one child
// is always kept and a lone folded child is kept as well.
func partition(children []tree.Node, area float64, cfg AggregateConfig) (kept, folded []tree.Node) {
	if len(children) == 0 {
		return nil, nil
	}
	var total int64
	for _, c := range children {
		total += c.Size
	}
	if total <= 0 {
		return children, nil
	}

	minArea := max(cfg.MinArea, area*cfg.MinShare)
	for _, c := range children {
		if float64(c.Size)/float64(total)*area >= minArea {
			kept = append(kept, c)
		} else {
			folded = append(folded, c)
		}
	}

	if cfg.MaxItems > 0 && len(kept) > cfg.MaxItems {
		folded = append(slices.Clone(kept[cfg.MaxItems:]), folded...)
		kept = kept[:cfg.MaxItems:cfg.MaxItems]
	}

	budget := float64(total) * cfg.MaxShare
	var foldedTotal int64
	for _, c := range folded {
		foldedTotal += c.Size
	}
	for len(folded) > 0 && float64(foldedTotal) > budget {
		foldedTotal -= folded[0].Size
		kept = append(kept, folded[0])
		folded = folded[1:]
	}

	if len(kept) == 0 || len(folded) == 1 {
		kept = append(kept, folded[0])
		folded = folded[1:]
	}
	if len(folded) == 0 {
		folded = nil
	}
	slices.SortFunc(kept, bySizeDesc)
	return kept, folded
}
