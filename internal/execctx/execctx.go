// Package execctx holds the ambient state a recipe's helper functions
// read and mutate during one lifecycle call: prefix, build dir, shell
// cwd, the path of the last acquired file, and the list of staged files.
//
// Goroutines have no idiomatic thread-local equivalent, so this is an
// explicit handle threaded through the helper registry: one *Context per
// in-flight execute call, passed to every helper invocation rather than
// looked up from ambient goroutine state.
package execctx

import (
	"github.com/levitate-os/recipe/internal/rerr"
)

// Context is the per-call ambient record.
type Context struct {
	Prefix         string
	BuildDir       string
	CurrentDir     string
	RecipePath     string
	LastDownloaded *string
	installedFiles []string
}

// New creates a Context scoped to one lifecycle call. CurrentDir starts
// equal to BuildDir.
func New(prefix, buildDir, recipePath string) *Context {
	return &Context{
		Prefix:     prefix,
		BuildDir:   buildDir,
		CurrentDir: buildDir,
		RecipePath: recipePath,
	}
}

// RecordInstalledFile appends path to the installed-files list.
func (c *Context) RecordInstalledFile(path string) {
	c.installedFiles = append(c.installedFiles, path)
}

// InstalledFiles returns a copy of the installed-files list accumulated
// so far.
func (c *Context) InstalledFiles() []string {
	out := make([]string, len(c.installedFiles))
	copy(out, c.installedFiles)
	return out
}

// SetLastDownloaded records the path of the most recently acquired file,
// read by extract.
func (c *Context) SetLastDownloaded(path string) {
	c.LastDownloaded = &path
}

// RequireLastDownloaded returns the last downloaded path or a
// NoAcquiredFile error if none is set — the error extract/verify_*
// raise when called before download/copy.
func (c *Context) RequireLastDownloaded() (string, error) {
	if c.LastDownloaded == nil {
		return "", rerr.New(rerr.NoAcquiredFile, "extract/verify called before download/copy")
	}
	return *c.LastDownloaded, nil
}

// Guard releases a Context on lifecycle exit. It carries no resources of
// its own beyond the Context reference; Release exists so call sites can
// defer it the same way regardless of what future Context fields need
// teardown.
type Guard struct {
	ctx *Context
}

// NewGuard wraps ctx in a release guard.
func NewGuard(ctx *Context) *Guard {
	return &Guard{ctx: ctx}
}

// Context returns the guarded Context.
func (g *Guard) Context() *Context {
	return g.ctx
}

// Release tears down the guarded Context. Safe to call multiple times.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.ctx = nil
}
