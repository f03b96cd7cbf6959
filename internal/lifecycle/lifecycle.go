// Package lifecycle implements the orchestrator: the phase state machine
// that decides which recipe hooks to invoke and in what order, driven by
// predicate hooks. This is the hard core the rest of the engine's
// components (ctxblock, recipelock, builddeps, stage, state, upgrade)
// exist to support.
package lifecycle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/levitate-os/recipe/internal/builddeps"
	"github.com/levitate-os/recipe/internal/config"
	"github.com/levitate-os/recipe/internal/ctxblock"
	"github.com/levitate-os/recipe/internal/execctx"
	"github.com/levitate-os/recipe/internal/helpers"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/levitate-os/recipe/internal/platform"
	"github.com/levitate-os/recipe/internal/progress"
	"github.com/levitate-os/recipe/internal/reaper"
	"github.com/levitate-os/recipe/internal/recipelock"
	"github.com/levitate-os/recipe/internal/recipescript"
	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/levitate-os/recipe/internal/stage"
	"github.com/levitate-os/recipe/internal/state"
	"github.com/levitate-os/recipe/internal/upgrade"
	"go.starlark.net/starlark"
)

// Outcome is the terminal state execute reached. Skipped and Success are
// both exit-code-0 outcomes; the CLI distinguishes them for the
// "already installed, skipping" message.
type Outcome int

const (
	Success Outcome = iota
	Skipped
)

// Engine is the orchestrator's entry point, holding the collaborators
// every lifecycle call needs: resolved directories, the state sidecar,
// and a logger.
type Engine struct {
	Config *config.Config
	State  *state.Store
	Logger log.Logger
	Arch   string
	GPU    string
	Now    func() time.Time

	// Out is where runPhase's per-phase spinner writes its "-> phase"
	// sub-action line. Defaults to os.Stderr.
	Out io.Writer
}

// New constructs an Engine from a resolved Config. Arch is detected once
// via platform.DetectTarget, GPU via platform.DetectGPU; Now defaults to
// time.Now.
func New(cfg *config.Config, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNoop()
	}
	arch := ""
	if t, err := platform.DetectTarget(); err == nil {
		arch = t.Arch()
	}
	return &Engine{
		Config: cfg,
		State:  state.NewStore(cfg.HomeDir),
		Logger: logger,
		Arch:   arch,
		GPU:    platform.DetectGPU(),
		Now:    time.Now,
		Out:    os.Stderr,
	}
}

// RecipePath resolves a recipe name to its source file under RecipesDir.
func (e *Engine) RecipePath(name string) string {
	return filepath.Join(e.Config.RecipesDir, name+".star")
}

func (e *Engine) buildDir(name string) string {
	return filepath.Join(e.Config.BuildDir, name)
}

// compileResult bundles the artifacts produced by compiling a recipe and
// initializing its ambient state, threaded between the phase helpers
// below.
type compileResult struct {
	unit     *recipescript.Unit
	ctx      starlark.Value
	registry *helpers.Registry
}

// Execute runs the full install lifecycle for a recipe: lock, compile,
// scope, predicate, build-deps, acquire, build, install, commit, record,
// persist. defines are extra name/value scope constants forwarded to the
// build-deps resolver and the primary recipe's scope.
func (e *Engine) Execute(name string, defines map[string]string) (Outcome, error) {
	recipePath := e.RecipePath(name)

	lockGuard, err := recipelock.Acquire(recipePath, config.StaleLockAge(false))
	if err != nil {
		return 0, err
	}
	defer lockGuard.Release()

	source, err := os.ReadFile(recipePath)
	if err != nil {
		return 0, rerr.Wrap(rerr.IoError, "reading recipe "+recipePath, err)
	}

	buildDir := e.buildDir(name)
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return 0, rerr.Wrap(rerr.IoError, "creating build dir "+buildDir, err)
	}

	execCtx := execctx.New(e.Config.Prefix, buildDir, recipePath)
	execGrd := execctx.NewGuard(execCtx)
	defer execGrd.Release()

	registry := helpers.New(execCtx, e.Logger, "")
	constants := e.scopeConstants(recipePath, buildDir, "", defines)

	unit, err := recipescript.Compile(recipePath, string(source), constants, registry.Build())
	if err != nil {
		return 0, err
	}

	ctxVal, err := unit.Ctx()
	if err != nil {
		return 0, err
	}

	if unit.HasFunction("is_installed") {
		satisfied, _ := unit.CallPredicate("is_installed", ctxVal)
		if satisfied {
			e.Logger.Info("already installed, skipping", "recipe", name)
			return Skipped, nil
		}
	}

	cr := &compileResult{unit: unit, ctx: ctxVal, registry: registry}

	deps, hasDeps := unit.GlobalStringList("build_deps")
	if hasDeps && len(deps) > 0 {
		resolver := &builddeps.Resolver{
			RecipesDir:    e.Config.RecipesDir,
			BaseRecipeDir: e.Config.BaseRecipesDir,
			BuildDir:      buildDir,
			Defines:       defines,
			Arch:          e.Arch,
			Logger:        e.Logger,
		}
		toolsPrefix, err := resolver.ResolveAndInstall(deps)
		if err != nil {
			e.maybeCleanup(unit, cr.ctx, "build.failed")
			return 0, err
		}
		registry.ToolsBin = filepath.Join(toolsPrefix, "bin")
	}

	if err := e.runPhase(cr, "acquire"); err != nil {
		return 0, err
	}
	if err := e.runPhase(cr, "build"); err != nil {
		return 0, err
	}
	if err := e.runPhase(cr, "install"); err != nil {
		return 0, err
	}

	stageDir := stage.Dir(buildDir)
	var installedFiles []string
	if info, statErr := os.Stat(stageDir); statErr == nil && info.IsDir() {
		committed, err := stage.Commit(stageDir, e.Config.Prefix)
		if err != nil {
			e.maybeCleanup(unit, cr.ctx, "unknown.failure")
			return 0, err
		}
		installedFiles = committed
	}

	version := ctxString(unit, cr.ctx, "version")
	if err := e.State.RecordInstalled(recipePath, version, installedFiles, e.Now()); err != nil {
		e.maybeCleanup(unit, cr.ctx, "unknown.failure")
		return 0, err
	}

	if err := e.persistCtx(recipePath, string(source), unit, cr.ctx); err != nil {
		e.maybeCleanup(unit, cr.ctx, "unknown.failure")
		return 0, err
	}

	return Success, nil
}

// scopeConstants builds the PREFIX/BUILD_DIR/RECIPE_DIR/etc. scope
// exposed to recipes. toolsPrefix is empty outside of build-dep
// execution (that constant is only meaningful to the resolver's own
// recipescript.Compile calls, kept separate from the primary scope).
func (e *Engine) scopeConstants(recipePath, buildDir, toolsPrefix string, defines map[string]string) map[string]string {
	constants := map[string]string{
		"PREFIX":     e.Config.Prefix,
		"BUILD_DIR":  buildDir,
		"RECIPE_DIR": filepath.Dir(recipePath),
		"ARCH":       e.Arch,
		"GPU":        e.GPU,
		"NPROC":      fmt.Sprintf("%d", runtime.NumCPU()),
	}
	if e.Config.BaseRecipesDir != "" {
		constants["BASE_RECIPE_DIR"] = e.Config.BaseRecipesDir
	}
	if toolsPrefix != "" {
		constants["TOOLS_PREFIX"] = toolsPrefix
	}
	for k, v := range defines {
		constants[k] = v
	}
	return constants
}

// runPhase calls the named hook if defined, threading the ctx value
// through and invoking cleanup on both success and failure, so every
// phase transition carries a reason tag.
func (e *Engine) runPhase(cr *compileResult, phase string) error {
	if !cr.unit.HasFunction(phase) {
		return nil
	}

	spinner := progress.NewSpinner(e.Out)
	spinner.Start(fmt.Sprintf("-> %s", phase))

	before := cr.ctx
	result, err := cr.unit.Call(phase, before)
	if err != nil {
		spinner.StopWithMessage(fmt.Sprintf("-> %s failed", phase))
		e.Logger.Error("phase failed", "phase", phase, "error", err)
		e.maybeCleanup(cr.unit, before, fmt.Sprintf("auto.%s.failure", phase))
		return &rerr.RecipeError{Kind: rerr.PhaseError, Phase: phase, Cause: err}
	}

	spinner.StopWithMessage(fmt.Sprintf("-> %s", phase))
	cr.ctx = result
	e.Logger.Info("phase succeeded", "phase", phase)
	e.maybeCleanup(cr.unit, cr.ctx, fmt.Sprintf("auto.%s.success", phase))
	return nil
}

func (e *Engine) maybeCleanup(unit *recipescript.Unit, ctx starlark.Value, reason string) {
	arity, ok := unit.FunctionArity("cleanup")
	if !ok {
		return
	}
	if arity != 2 {
		e.Logger.Warn("cleanup hook has wrong arity, skipping", "want", 2, "got", arity)
		return
	}
	if _, err := unit.Call("cleanup", ctx, starlark.String(reason)); err != nil {
		e.Logger.Warn("cleanup hook failed", "reason", reason, "error", err)
	}
}

func (e *Engine) persistCtx(recipePath, source string, unit *recipescript.Unit, ctxVal starlark.Value) error {
	dict, ok := ctxVal.(*starlark.Dict)
	if !ok {
		return rerr.New(rerr.NoCtx, "ctx is not a mapping after install")
	}
	goMap := recipescript.DictToGo(dict)
	blockMap := recipescript.ToCtxblockMap(goMap)

	newSource, err := ctxblock.Persist(source, blockMap)
	if err != nil {
		return rerr.Wrap(rerr.IoError, "persisting ctx for "+recipePath, err)
	}
	if err := os.WriteFile(recipePath, []byte(newSource), 0644); err != nil {
		return rerr.Wrap(rerr.IoError, "writing recipe "+recipePath, err)
	}
	return nil
}

// Remove uninstalls a recipe: removes every file the sidecar recorded as
// installed, reaps directories left empty, and clears the sidecar entry.
// The recipe source is never rewritten on remove.
func (e *Engine) Remove(name string) error {
	recipePath := e.RecipePath(name)

	entry, err := e.State.Get(recipePath)
	if err != nil {
		return err
	}

	for _, f := range entry.InstalledFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			e.Logger.Warn("failed to remove installed file", "path", f, "error", err)
		}
	}

	reaper.CleanEmptyDirs(entry.InstalledFiles, e.Config.Prefix)

	return e.State.RecordRemoved(recipePath)
}

// Update compiles a recipe, calls its optional check_update hook, and
// compares the returned latest_version ctx key against the recipe's
// declared version. Returns the new version string if an upgrade is
// available, nil otherwise.
func (e *Engine) Update(name string) (*string, error) {
	recipePath := e.RecipePath(name)
	source, err := os.ReadFile(recipePath)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "reading recipe "+recipePath, err)
	}

	buildDir := e.buildDir(name)
	execCtx := execctx.New(e.Config.Prefix, buildDir, recipePath)
	execGrd := execctx.NewGuard(execCtx)
	defer execGrd.Release()

	registry := helpers.New(execCtx, e.Logger, "")
	constants := e.scopeConstants(recipePath, buildDir, "", nil)

	unit, err := recipescript.Compile(recipePath, string(source), constants, registry.Build())
	if err != nil {
		return nil, err
	}

	ctxVal, err := unit.Ctx()
	if err != nil {
		return nil, err
	}

	currentVersion := ctxString(unit, ctxVal, "version")

	if !unit.HasFunction("check_update") {
		return nil, nil
	}

	result, err := unit.Call("check_update", ctxVal)
	if err != nil {
		return nil, &rerr.RecipeError{Kind: rerr.PhaseError, Phase: "check_update", Cause: err}
	}

	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, rerr.New(rerr.NoCtx, "check_update did not return a ctx mapping")
	}
	goMap := recipescript.DictToGo(dict)
	latestRaw, ok := goMap["latest_version"]
	if !ok {
		return nil, nil
	}
	latest, ok := latestRaw.(string)
	if !ok || latest == "" {
		return nil, nil
	}

	current := &currentVersion
	if currentVersion == "" {
		current = nil
	}
	if !upgrade.NeedsUpgrade(current, &latest) {
		return nil, nil
	}
	return &latest, nil
}

// Upgrade compares the sidecar's installed_version against the recipe's
// declared version via the relaxed-semver predicate, executing the full
// install lifecycle if an upgrade is needed. Returns whether execute ran.
func (e *Engine) Upgrade(name string, defines map[string]string) (bool, error) {
	recipePath := e.RecipePath(name)
	entry, err := e.State.Get(recipePath)
	if err != nil {
		return false, err
	}

	source, err := os.ReadFile(recipePath)
	if err != nil {
		return false, rerr.Wrap(rerr.IoError, "reading recipe "+recipePath, err)
	}
	buildDir := e.buildDir(name)
	execCtx := execctx.New(e.Config.Prefix, buildDir, recipePath)
	execGrd := execctx.NewGuard(execCtx)
	defer execGrd.Release()

	registry := helpers.New(execCtx, e.Logger, "")
	constants := e.scopeConstants(recipePath, buildDir, "", defines)
	unit, err := recipescript.Compile(recipePath, string(source), constants, registry.Build())
	if err != nil {
		return false, err
	}
	ctxVal, err := unit.Ctx()
	if err != nil {
		return false, err
	}
	declared := ctxString(unit, ctxVal, "version")

	var installed, current *string
	if entry.Installed && entry.InstalledVersion != "" {
		installed = &entry.InstalledVersion
	}
	if declared != "" {
		current = &declared
	}

	if !upgrade.NeedsUpgrade(installed, current) {
		return false, nil
	}

	if _, err := e.Execute(name, defines); err != nil {
		return false, err
	}
	return true, nil
}

// ctxString reads a string-valued key out of a compiled unit's ctx value,
// returning "" if absent or not a string.
func ctxString(unit *recipescript.Unit, ctxVal starlark.Value, key string) string {
	dict, ok := ctxVal.(*starlark.Dict)
	if !ok {
		return ""
	}
	v, found, _ := dict.Get(starlark.String(key))
	if !found {
		return ""
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
