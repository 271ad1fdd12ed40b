// Package buildconfig exposes release metadata stamped in with
// -ldflags "-X github.com/voterprime/catmatch/internal/buildconfig.version=...".
package buildconfig

import (
	"runtime"
	"runtime/debug"
)

var (
	version   = ""
	commit    = ""
	buildDate = ""
)

// Version is the ldflags version, then the module version recorded by
// `go install`, then "dev".
func Version() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Commit falls back to the VCS revision embedded by the toolchain.
func Commit() string {
	if commit != "" {
		return commit
	}
	if rev := buildSetting("vcs.revision"); rev != "" {
		if len(rev) > 12 {
			rev = rev[:12]
		}
		return rev
	}
	return "unknown"
}

func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// VersionInfo is reported by /health.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": Version(),
		"commit":  Commit(),
		"go":      runtime.Version(),
	}
	if buildDate != "" {
		info["build_date"] = buildDate
	}
	return info
}
