// Package upgrade implements the version-aware upgrade predicate, a
// small semver comparison kept deliberately separate from any
// registry-wide version resolution concern. This package answers one
// question only: is a reinstall needed given what's recorded in the
// sidecar versus what the recipe declares.
package upgrade

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NeedsUpgrade decides whether a reinstall is warranted:
// both absent: false. installed present, current absent: true (treat a
// missing current version as corruption, reinstall). installed absent:
// true (not installed). Both present: parse both as semver after
// stripping one leading 'v'; if both parse, installed < current. If
// either fails to parse, fall back to string inequality, which
// conservatively triggers a reinstall for non-semver schemes.
func NeedsUpgrade(installed, current *string) bool {
	if installed == nil && current == nil {
		return false
	}
	if installed != nil && current == nil {
		return true
	}
	if installed == nil && current != nil {
		return true
	}

	instVer, instErr := parseVersion(*installed)
	curVer, curErr := parseVersion(*current)
	if instErr == nil && curErr == nil {
		return instVer.LessThan(curVer)
	}

	return *installed != *current
}

func parseVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(s, "v"))
}
