// Package config resolves the application configuration from defaults, a
// JSON file and SPACEMAP_* environment variables. Command-line flags are
// applied on top by the caller.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/layout"
	"github.com/entro314-labs/spacemap/internal/logging"
	"github.com/entro314-labs/spacemap/internal/nav"
	"github.com/entro314-labs/spacemap/internal/view"
)

// FileName is the per-directory config file looked up in the scan root.
const FileName = ".spacemap.json"

type Scan struct {
	Skip          []string `json:"skip"`
	Allocated     bool     `json:"allocated"`
	OneFileSystem bool     `json:"one_file_system"`
}

type Config struct {
	// Workers is the crawler pool size. Zero picks a default from the CPU
	// count.
	Workers   int                  `json:"workers"`
	Layout    layout.Config        `json:"layout"`
	Nav       nav.Config           `json:"nav"`
	Aggregate view.AggregateConfig `json:"aggregate"`
	Scan      Scan                 `json:"scan"`
	Log       logging.Config       `json:"log"`
}

func Default() Config {
	return Config{
		Layout:    layout.DefaultConfig(layout.ModeGutter),
		Nav:       nav.DefaultConfig(),
		Aggregate: view.DefaultAggregateConfig(),
		Scan: Scan{
			Skip: []string{".git", ".hg", ".svn"},
		},
		Log: logging.Config{
			Level:      "info",
			Format:     "json",
			OutputPath: "off",
		},
	}
}

// View returns the part of c that view.Build needs.
func (c Config) View() view.Config {
	return view.Config{Layout: c.Layout, Nav: c.Nav, Aggregate: c.Aggregate}
}

func (c Config) Validate() error {
	if c.Workers < 0 {
		return core.InvalidConfig("workers", "must be >= 0, got %d", c.Workers)
	}
	return c.View().Validate()
}

// ResolvePath returns the config file to load: explicit if set, otherwise
// the first existing default path. found is false when there is none.
func ResolvePath(root, explicit string) (path string, found bool) {
	if explicit != "" {
		return explicit, true
	}
	for _, candidate := range DefaultPaths(root) {
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func DefaultPaths(root string) []string {
	paths := []string{}
	if root != "" {
		paths = append(paths, filepath.Join(root, FileName))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "spacemap", "config.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "spacemap", "config.json"))
	}
	return paths
}

// Load reads path over the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return normalize(cfg), nil
}

// Resolve loads the config file for root, if any, and applies the
// environment. The result is not validated; flags still go on top.
func Resolve(root, explicit string) (Config, error) {
	cfg := Default()
	if path, ok := ResolvePath(root, explicit); ok {
		loaded, err := Load(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return normalize(cfg), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// MergeSkip adds extra directory names to the skip list, once each.
func (c *Config) MergeSkip(extra ...string) {
	for _, item := range extra {
		if item == "" || slices.Contains(c.Scan.Skip, item) {
			continue
		}
		c.Scan.Skip = append(c.Scan.Skip, item)
	}
}

func normalize(cfg Config) Config {
	skip := cfg.Scan.Skip[:0:0]
	for _, s := range cfg.Scan.Skip {
		if s != "" && !slices.Contains(skip, s) {
			skip = append(skip, s)
		}
	}
	cfg.Scan.Skip = skip
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return cfg
}
