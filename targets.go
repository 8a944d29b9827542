package main

import (
	"path/filepath"
	"strings"

	"github.com/entro314-labs/spacemap/internal/core"
)

// dirCategories names well-known directories that are usually safe to
// regenerate. The status line and the report tag them so they stand out.
var dirCategories = map[string]string{
	"node_modules":     "node",
	".pnpm-store":      "node",
	".yarn":            "node",
	"bower_components": "node",
	".turbo":           "node",
	".next":            "node",
	".nuxt":            "node",
	".expo":            "node",
	".angular":         "node",
	".svelte-kit":      "node",

	"target": "rust",
	".cargo": "rust",

	".venv":         "python",
	"venv":          "python",
	".virtualenvs":  "python",
	"__pycache__":   "python",
	".pytest_cache": "python",
	".mypy_cache":   "python",
	".ruff_cache":   "python",
	".tox":          "python",

	".gradle": "java",
	".m2":     "java",
	".ivy2":   "java",
	".nuget":  "dotnet",

	".pub-cache": "dart",
	".dart_tool": "dart",
	".gem":       "ruby",

	"vendor":   "go",
	".cache":   "cache",
	"dist":     "build",
	"build":    "build",
	"out":      "build",
	"coverage": "build",
}

var fileCategories = map[string]string{
	".mp4": "video", ".mkv": "video", ".mov": "video", ".avi": "video", ".webm": "video",
	".iso": "disk image", ".dmg": "disk image", ".img": "disk image",
	".vmdk": "disk image", ".qcow2": "disk image", ".vdi": "disk image", ".raw": "disk image",
	".zip": "archive", ".tar": "archive", ".gz": "archive", ".tgz": "archive",
	".xz": "archive", ".zst": "archive", ".7z": "archive", ".rar": "archive", ".bz2": "archive",
	".log":    "log",
	".sqlite": "database", ".db": "database",
}

// categoryOf returns a short tag for a directory or file name, or "" when
// the name is not recognised.
func categoryOf(name string, kind core.Kind) string {
	if kind == core.Dir {
		return dirCategories[name]
	}
	return fileCategories[strings.ToLower(filepath.Ext(name))]
}
