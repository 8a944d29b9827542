package layout

import (
	"fmt"
	"strings"

	"github.com/entro314-labs/spacemap/internal/core"
)

// Mode selects how the aspect-ratio bound is enforced. There is no default:
// a Config with ModeUnset does not validate.
type Mode uint8

const (
	ModeUnset Mode = iota
	// ModeGrid quantizes the container into square cells and snaps every
	// rectangle to the grid.
	ModeGrid
	// ModeGutter keeps continuous coordinates and leaves unrendered gaps
	// where a shape had to be corrected.
	ModeGutter
)

func (m Mode) String() string {
	switch m {
	case ModeGrid:
		return "grid"
	case ModeGutter:
		return "gutter"
	default:
		return "unset"
	}
}

// ParseMode accepts "grid" or "gutter".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grid", "grid-quantized":
		return ModeGrid, nil
	case "gutter", "gutter-tolerant":
		return ModeGutter, nil
	case "":
		return ModeUnset, nil
	}
	return ModeUnset, core.InvalidConfig("layout.mode", "unknown mode %q (want grid or gutter)", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if m == ModeUnset {
		return []byte(""), nil
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

const (
	DefaultAspectRatio     = 1.6
	DefaultGridSize        = 200
	DefaultAreaTolerance   = 0.03
	DefaultGutterTolerance = 0.01
)

// Config parameterizes Squarify.
type Config struct {
	Mode            Mode    `json:"mode"`
	AspectRatio     float64 `json:"aspect_ratio"`
	GridSize        int     `json:"grid_size"`
	AreaTolerance   float64 `json:"area_tolerance"`
	GutterTolerance float64 `json:"gutter_tolerance"`
}

// DefaultConfig returns the documented defaults for mode.
func DefaultConfig(mode Mode) Config {
	return Config{
		Mode:            mode,
		AspectRatio:     DefaultAspectRatio,
		GridSize:        DefaultGridSize,
		AreaTolerance:   DefaultAreaTolerance,
		GutterTolerance: DefaultGutterTolerance,
	}
}

// Validate reports the first invalid field, wrapped in
// core.ErrInvalidConfiguration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeGrid, ModeGutter:
	case ModeUnset:
		return core.InvalidConfig("layout.mode", "must be set to grid or gutter")
	default:
		return core.InvalidConfig("layout.mode", "unknown mode %d", c.Mode)
	}
	if !(c.AspectRatio > 1) {
		return core.InvalidConfig("layout.aspect_ratio", "must be > 1, got %v", c.AspectRatio)
	}
	if c.GridSize < 1 {
		return core.InvalidConfig("layout.grid_size", "must be >= 1, got %d", c.GridSize)
	}
	if c.AreaTolerance < 0 || c.AreaTolerance >= 1 {
		return core.InvalidConfig("layout.area_tolerance", "must be in [0, 1), got %v", c.AreaTolerance)
	}
	if c.GutterTolerance < 0 || c.GutterTolerance >= 1 {
		return core.InvalidConfig("layout.gutter_tolerance", "must be in [0, 1), got %v", c.GutterTolerance)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s R=%.2f N=%d", c.Mode, c.AspectRatio, c.GridSize)
}
