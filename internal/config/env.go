package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/entro314-labs/spacemap/internal/layout"
)

// ApplyEnv overrides cfg with SPACEMAP_* variables. Malformed numbers and
// booleans are ignored; an unknown layout mode is an error.
func ApplyEnv(cfg *Config) error {
	if v := envOr("SPACEMAP_MODE", ""); v != "" {
		mode, err := layout.ParseMode(v)
		if err != nil {
			return err
		}
		cfg.Layout.Mode = mode
	}
	cfg.Layout.AspectRatio = envFloat("SPACEMAP_ASPECT", cfg.Layout.AspectRatio)
	cfg.Layout.GridSize = envInt("SPACEMAP_GRID", cfg.Layout.GridSize)
	cfg.Workers = envInt("SPACEMAP_WORKERS", cfg.Workers)
	cfg.Nav.MaxDepth = envInt("SPACEMAP_DEPTH", cfg.Nav.MaxDepth)
	cfg.Aggregate.Enabled = envBool("SPACEMAP_AGGREGATE", cfg.Aggregate.Enabled)
	cfg.Scan.Allocated = envBool("SPACEMAP_ALLOCATED", cfg.Scan.Allocated)
	cfg.Scan.OneFileSystem = envBool("SPACEMAP_ONE_FILE_SYSTEM", cfg.Scan.OneFileSystem)
	if v := envOr("SPACEMAP_SKIP", ""); v != "" {
		cfg.MergeSkip(strings.Split(v, ",")...)
	}
	cfg.Log.Level = envOr("SPACEMAP_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("SPACEMAP_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.OutputPath = envOr("SPACEMAP_LOG_FILE", cfg.Log.OutputPath)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
