// Package recipelock implements the inter-process exclusive lock taken
// around a recipe's lifecycle call, with mtime-based stale-lock
// reclamation, wired to a real advisory-lock library
// (github.com/gofrs/flock) rather than a hand-rolled flock(2) wrapper.
package recipelock

import (
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/levitate-os/recipe/internal/rerr"
)

// Sentinel returns the lock sentinel path for a recipe source file.
func Sentinel(recipePath string) string {
	return recipePath + ".lock"
}

// Guard holds an acquired lock; Release drops the advisory lock and
// deletes the sentinel file. Safe to call Release more than once.
type Guard struct {
	path     string
	fl       *flock.Flock
	released bool
}

// Acquire takes an exclusive, non-blocking advisory lock on the sentinel
// adjacent to recipePath. If the sentinel already exists and is older
// than staleAge, it is removed before the lock is attempted. This is a
// racy heuristic: a long-running build older than the threshold can lose
// its lock to a concurrent reclaimer.
func Acquire(recipePath string, staleAge time.Duration) (*Guard, error) {
	path := Sentinel(recipePath)

	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) > staleAge {
			_ = os.Remove(path)
		}
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, rerr.Wrap(rerr.LockBusy, "acquiring recipe lock at "+path, err)
	}
	if !locked {
		_ = fl.Close()
		return nil, &rerr.RecipeError{Kind: rerr.LockBusy, Message: "recipe lock held by another process", Path: path}
	}

	return &Guard{path: path, fl: fl}, nil
}

// Release drops the advisory lock and deletes the sentinel file. It must
// be called on every exit path of the call it protects, success or
// failure; callers typically `defer guard.Release()` immediately after a
// successful Acquire.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true

	unlockErr := g.fl.Unlock()
	closeErr := g.fl.Close()
	removeErr := os.Remove(g.path)
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}

	if unlockErr != nil {
		return unlockErr
	}
	if closeErr != nil {
		return closeErr
	}
	return removeErr
}

// IsHeld reports whether the sentinel at recipePath currently exists,
// used by the `lock-status` CLI subcommand.
func IsHeld(recipePath string) bool {
	_, err := os.Stat(Sentinel(recipePath))
	return err == nil
}
