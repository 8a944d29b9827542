// Package version reports build information for the spacemap binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set by -ldflags at release time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Get returns the version, preferring the linker value over build info.
func Get() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "development"
}

func commit() string {
	if Commit != "unknown" && Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

// Full returns the version with a short commit hash when one is known.
func Full() string {
	c := commit()
	if len(c) > 7 {
		return fmt.Sprintf("%s (%s)", Get(), c[:7])
	}
	return Get()
}
