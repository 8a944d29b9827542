package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/layout"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func isolate(t *testing.T) (home, xdg string) {
	t.Helper()
	home = t.TempDir()
	xdg = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, key := range []string{
		"SPACEMAP_MODE", "SPACEMAP_ASPECT", "SPACEMAP_GRID", "SPACEMAP_WORKERS",
		"SPACEMAP_DEPTH", "SPACEMAP_AGGREGATE", "SPACEMAP_ALLOCATED",
		"SPACEMAP_ONE_FILE_SYSTEM", "SPACEMAP_SKIP", "SPACEMAP_LOG_LEVEL",
		"SPACEMAP_LOG_FORMAT", "SPACEMAP_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
	return home, xdg
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Layout.Mode != layout.ModeGutter {
		t.Errorf("default mode = %v, want gutter", cfg.Layout.Mode)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"aspect one", func(c *Config) { c.Layout.AspectRatio = 1 }},
		{"grid zero", func(c *Config) { c.Layout.GridSize = 0 }},
		{"mode unset", func(c *Config) { c.Layout.Mode = layout.ModeUnset }},
		{"max depth zero", func(c *Config) { c.Nav.MaxDepth = 0 }},
		{"aggregate share zero", func(c *Config) { c.Aggregate.MaxShare = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, core.ErrInvalidConfiguration) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"workers": 12, "layout": {"mode": "grid", "grid_size": 80}, "scan": {"skip": ["node_modules", "node_modules", ""]}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 12 || cfg.Layout.Mode != layout.ModeGrid || cfg.Layout.GridSize != 80 {
		t.Errorf("loaded %+v", cfg)
	}
	if cfg.Layout.AspectRatio != layout.DefaultAspectRatio {
		t.Errorf("AspectRatio = %v, want default", cfg.Layout.AspectRatio)
	}
	if cfg.Nav.MaxDepth != 4 {
		t.Errorf("Nav.MaxDepth = %d, want default 4", cfg.Nav.MaxDepth)
	}
	if want := []string{"node_modules"}; !slices.Equal(cfg.Scan.Skip, want) {
		t.Errorf("Skip = %v, want %v", cfg.Scan.Skip, want)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("missing file: %v", err)
	}
	bad := filepath.Join(dir, "bad.json")
	writeConfig(t, bad, `{"workers": `)
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("bad json: %v", err)
	}
	badMode := filepath.Join(dir, "mode.json")
	writeConfig(t, badMode, `{"layout": {"mode": "hexagons"}}`)
	if _, err := Load(badMode); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Errorf("bad mode: %v", err)
	}
}

func TestResolvePathOrder(t *testing.T) {
	home, xdg := isolate(t)
	root := t.TempDir()

	if _, ok := ResolvePath(root, ""); ok {
		t.Fatal("found a config file in an empty environment")
	}

	homePath := filepath.Join(home, ".config", "spacemap", "config.json")
	writeConfig(t, homePath, `{}`)
	if got, _ := ResolvePath(root, ""); got != homePath {
		t.Errorf("ResolvePath = %q, want %q", got, homePath)
	}

	xdgPath := filepath.Join(xdg, "spacemap", "config.json")
	writeConfig(t, xdgPath, `{}`)
	if got, _ := ResolvePath(root, ""); got != xdgPath {
		t.Errorf("ResolvePath = %q, want %q", got, xdgPath)
	}

	rootPath := filepath.Join(root, FileName)
	writeConfig(t, rootPath, `{}`)
	if got, _ := ResolvePath(root, ""); got != rootPath {
		t.Errorf("ResolvePath = %q, want %q", got, rootPath)
	}

	if got, ok := ResolvePath(root, "/explicit.json"); !ok || got != "/explicit.json" {
		t.Errorf("explicit path = %q, %v", got, ok)
	}
}

func TestResolveAppliesEnv(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeConfig(t, filepath.Join(root, FileName), `{"workers": 3, "layout": {"mode": "grid"}}`)
	t.Setenv("SPACEMAP_MODE", "gutter")
	t.Setenv("SPACEMAP_ASPECT", "2.5")
	t.Setenv("SPACEMAP_WORKERS", "not-a-number")
	t.Setenv("SPACEMAP_ALLOCATED", "true")
	t.Setenv("SPACEMAP_SKIP", "target,.git")
	t.Setenv("SPACEMAP_LOG_LEVEL", "debug")

	cfg, err := Resolve(root, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Layout.Mode != layout.ModeGutter {
		t.Errorf("Mode = %v, want gutter from env", cfg.Layout.Mode)
	}
	if cfg.Layout.AspectRatio != 2.5 {
		t.Errorf("AspectRatio = %v, want 2.5", cfg.Layout.AspectRatio)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3 from file", cfg.Workers)
	}
	if !cfg.Scan.Allocated {
		t.Error("Allocated not set from env")
	}
	if want := []string{".git", ".hg", ".svn", "target"}; !slices.Equal(cfg.Scan.Skip, want) {
		t.Errorf("Skip = %v, want %v", cfg.Scan.Skip, want)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestApplyEnvRejectsUnknownMode(t *testing.T) {
	isolate(t)
	t.Setenv("SPACEMAP_MODE", "spiral")
	cfg := Default()
	if err := ApplyEnv(&cfg); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("ApplyEnv = %v, want ErrInvalidConfiguration", err)
	}
}

func TestViewCarriesSections(t *testing.T) {
	cfg := Default()
	cfg.Nav.MaxDepth = 2
	cfg.Aggregate.Enabled = false
	v := cfg.View()
	if v.Nav.MaxDepth != 2 || v.Aggregate.Enabled || v.Layout != cfg.Layout {
		t.Errorf("View() = %+v", v)
	}
}
