// Package stage implements the atomic staging-tree commit: files written
// under a private staging directory during acquire/build/install are
// published into the real prefix all-or-nothing per file, with a
// same-filesystem rename fast path and a copy-then-delete fallback for
// cross-device moves.
package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/levitate-os/recipe/internal/rerr"
)

// Dir returns the staging directory for a build dir.
func Dir(buildDir string) string {
	return filepath.Join(buildDir, ".stage")
}

// Create ensures the staging directory exists and returns its path.
func Create(buildDir string) (string, error) {
	dir := Dir(buildDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", rerr.Wrap(rerr.IoError, "creating staging directory", err)
	}
	return dir, nil
}

// Commit walks stageDir and publishes every regular file found at depth
// >= 1 into prefix, preserving its relative path. On success, stageDir is
// removed (best-effort) and the list of destination paths is returned.
// If any single file fails to move, Commit stops and returns the error
// together with the destinations already committed; stageDir is left in
// place so the caller may retry.
func Commit(stageDir, prefix string) ([]string, error) {
	var committed []string

	err := filepath.Walk(stageDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(stageDir, path)
		if relErr != nil {
			return relErr
		}

		dest := filepath.Join(prefix, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("creating parent dir for %s: %w", dest, err)
		}

		if err := moveFile(path, dest); err != nil {
			return fmt.Errorf("committing %s: %w", rel, err)
		}

		committed = append(committed, dest)
		return nil
	})

	if err != nil {
		return committed, rerr.Wrap(rerr.IoError, "staging commit failed", err)
	}

	_ = os.RemoveAll(stageDir)
	return committed, nil
}

// moveFile attempts a same-filesystem rename first; on cross-device
// failure it falls back to copy-then-delete.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
