package main

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/entro314-labs/spacemap/internal/config"
	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/layout"
)

func parsed(t *testing.T, args ...string) (*cobra.Command, cliFlags) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	var f cliFlags
	f.register(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return cmd, f
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	cmd, f := parsed(t, "--mode", "grid", "--depth", "2", "--no-aggregate", "--skip", "target,dist", "-w", "5")
	cfg := config.Default()
	if err := f.apply(cmd, &cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Layout.Mode != layout.ModeGrid {
		t.Errorf("Mode = %v, want grid", cfg.Layout.Mode)
	}
	if cfg.Nav.MaxDepth != 2 || cfg.Workers != 5 || cfg.Aggregate.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := []string{".git", ".hg", ".svn", "target", "dist"}; !slices.Equal(cfg.Scan.Skip, want) {
		t.Errorf("Skip = %v, want %v", cfg.Scan.Skip, want)
	}
	if cfg.Layout.AspectRatio != layout.DefaultAspectRatio {
		t.Errorf("unset --aspect changed AspectRatio to %v", cfg.Layout.AspectRatio)
	}
}

func TestGridFlag(t *testing.T) {
	cmd, f := parsed(t, "--grid", "80")
	cfg := config.Default()
	if err := f.apply(cmd, &cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Layout.GridSize != 80 {
		t.Errorf("GridSize = %d, want 80", cfg.Layout.GridSize)
	}
	if usage := cmd.PersistentFlags().Lookup("grid").Usage; !strings.Contains(usage, "long side") {
		t.Errorf("--grid usage %q does not say cells run along the long side", usage)
	}
}

func TestFlagsRejectUnknownMode(t *testing.T) {
	cmd, f := parsed(t, "--mode", "pie")
	cfg := config.Default()
	if err := f.apply(cmd, &cfg); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("apply = %v, want ErrInvalidConfiguration", err)
	}
}

func TestRootArg(t *testing.T) {
	got, err := rootArg(nil)
	if err != nil || !filepath.IsAbs(got) {
		t.Errorf("rootArg(nil) = %q, %v", got, err)
	}
	dir := t.TempDir()
	if got, err := rootArg([]string{dir}); err != nil || got != dir {
		t.Errorf("rootArg(%q) = %q, %v", dir, got, err)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		kind core.Kind
		want string
	}{
		{"node_modules", core.Dir, "node"},
		{"target", core.Dir, "rust"},
		{"target", core.File, ""},
		{"movie.MKV", core.File, "video"},
		{"backup.tar", core.File, "archive"},
		{"notes.txt", core.File, ""},
		{"src", core.Dir, ""},
	}
	for _, tt := range tests {
		if got := categoryOf(tt.name, tt.kind); got != tt.want {
			t.Errorf("categoryOf(%q, %v) = %q, want %q", tt.name, tt.kind, got, tt.want)
		}
	}
}
