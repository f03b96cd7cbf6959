// Package buildinfo derives the CLI's --version string from Go's own
// build metadata instead of an ldflags-injected constant, so both a
// tagged "go install" and a local dev build report something meaningful
// without a separate build script.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version string for the running binary.
//
//   - a tagged "go install" build reports that tag, e.g. "v0.3.1"
//   - an untagged build reports "dev-<commit>[-dirty]" from VCS info
//   - "dev" if the binary carries no VCS info at all
//   - "unknown" if build info couldn't be read (practically never)
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return devVersion(info)
}

// devVersion builds "dev-<commit>[-dirty]" from the vcs.* build
// settings Go embeds, falling back to "dev" if none are present.
func devVersion(info *debug.BuildInfo) string {
	var revision string
	var dirty bool

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}

	if revision == "" {
		return "dev"
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}

	version := fmt.Sprintf("dev-%s", revision)
	if dirty {
		version += "-dirty"
	}
	return version
}
