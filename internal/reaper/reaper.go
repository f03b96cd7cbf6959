// Package reaper removes directories left empty by an uninstall, bounded
// by a prefix. An ancestor-walking empty-directory sweep, distinct from
// a recipe's own cleanup hook.
package reaper

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CleanEmptyDirs walks the ancestors of each path in files, up to but not
// including prefix, and removes any ancestor directory that is empty.
// Directories are removed deepest-first so that removing a child can
// empty its parent within the same pass. Errors are ignored; this is a
// best-effort tidy step.
func CleanEmptyDirs(files []string, prefix string) {
	cleanPrefix := filepath.Clean(prefix)

	ancestors := map[string]struct{}{}
	for _, f := range files {
		dir := filepath.Dir(filepath.Clean(f))
		for dir != cleanPrefix && strings.HasPrefix(dir, cleanPrefix) && dir != "." && dir != string(filepath.Separator) {
			ancestors[dir] = struct{}{}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	ordered := make([]string, 0, len(ancestors))
	for d := range ancestors {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return strings.Count(ordered[i], string(filepath.Separator)) > strings.Count(ordered[j], string(filepath.Separator))
	})

	for _, dir := range ordered {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
}
