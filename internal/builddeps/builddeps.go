// Package builddeps recursively executes named dependency recipes into a
// shared tools prefix before a primary recipe's build phase: depth-first
// declared order, the execution stack doubling as cycle detection, and
// the asymmetric is_installed/is_acquired hook convention reused from
// recipescript.
//
// Deps take no recipe lock and never touch the state sidecar; their
// persistence is entirely the files they leave under the tools prefix.
package builddeps

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/levitate-os/recipe/internal/execctx"
	"github.com/levitate-os/recipe/internal/helpers"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/levitate-os/recipe/internal/recipescript"
	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/levitate-os/recipe/internal/stage"
	"go.starlark.net/starlark"
)

// Resolver walks a declared dependency list into buildDir/.tools,
// maintaining an execution stack for cycle detection. BaseRecipeDir is
// optional and only surfaces to dep recipes as BASE_RECIPE_DIR when set.
type Resolver struct {
	RecipesDir    string
	BaseRecipeDir string
	BuildDir      string
	Defines       map[string]string
	Arch          string
	Logger        log.Logger

	stack []string
}

// ToolsPrefix is the shared prefix every dep installs into.
func (r *Resolver) ToolsPrefix() string {
	return filepath.Join(r.BuildDir, ".tools")
}

// ResolveAndInstall resolves deps in declared order, returning the tools
// prefix every dep was installed into.
func (r *Resolver) ResolveAndInstall(deps []string) (string, error) {
	toolsPrefix := r.ToolsPrefix()
	if err := os.MkdirAll(toolsPrefix, 0755); err != nil {
		return "", rerr.Wrap(rerr.IoError, "creating tools prefix "+toolsPrefix, err)
	}
	for _, name := range deps {
		if err := r.installDep(name, toolsPrefix); err != nil {
			return "", err
		}
	}
	return toolsPrefix, nil
}

func (r *Resolver) installDep(name, toolsPrefix string) error {
	for _, seen := range r.stack {
		if seen == name {
			chain := append(append([]string{}, r.stack...), name)
			return &rerr.RecipeError{Kind: rerr.CircularDep, Chain: chain}
		}
	}

	r.stack = append(r.stack, name)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	recipePath := filepath.Join(r.RecipesDir, name+".star")
	source, err := os.ReadFile(recipePath)
	if err != nil {
		return &rerr.RecipeError{Kind: rerr.DepNotFound, Message: name, Path: r.RecipesDir}
	}

	depBuildDir := filepath.Join(r.BuildDir, ".deps", name)
	if err := os.MkdirAll(depBuildDir, 0755); err != nil {
		return rerr.Wrap(rerr.IoError, "creating dep build dir for "+name, err)
	}

	constants := map[string]string{
		"RECIPE_DIR":   r.RecipesDir,
		"BUILD_DIR":    depBuildDir,
		"TOOLS_PREFIX": toolsPrefix,
		"ARCH":         r.Arch,
		"NPROC":        fmt.Sprintf("%d", runtime.NumCPU()),
	}
	if r.BaseRecipeDir != "" {
		constants["BASE_RECIPE_DIR"] = r.BaseRecipeDir
	}
	for k, v := range r.Defines {
		constants[k] = v
	}

	// A dep installs into the tools prefix, so its ambient prefix is the
	// tools prefix, its bin dir already on PATH for later deps' shell
	// commands.
	execCtx := execctx.New(toolsPrefix, depBuildDir, recipePath)
	execGrd := execctx.NewGuard(execCtx)
	defer execGrd.Release()
	registry := helpers.New(execCtx, r.Logger, filepath.Join(toolsPrefix, "bin"))

	unit, err := recipescript.Compile(recipePath, string(source), constants, registry.Build())
	if err != nil {
		return err
	}

	ctx, err := unit.Ctx()
	if err != nil {
		return err
	}

	if unit.HasFunction("is_installed") {
		satisfied, _ := unit.CallPredicate("is_installed", ctx)
		if satisfied {
			return nil
		}
	}

	// Depth-first into this dep's own declared deps before its phases run.
	if subDeps, ok := unit.GlobalStringList("build_deps"); ok {
		for _, sub := range subDeps {
			if err := r.installDep(sub, toolsPrefix); err != nil {
				return err
			}
		}
	}

	var ctxVal starlark.Value = ctx

	needsAcquire := true
	if unit.HasFunction("is_acquired") {
		needsAcquire, _ = predicateNeedsAction(unit, ctxVal)
	}

	if needsAcquire && unit.HasFunction("acquire") {
		next, err := r.callPhase(unit, "acquire", ctxVal)
		if err != nil {
			return err
		}
		ctxVal = next
	}

	if unit.HasFunction("install") {
		if _, err := r.callPhase(unit, "install", ctxVal); err != nil {
			return err
		}
	}

	stageDir := stage.Dir(depBuildDir)
	if info, statErr := os.Stat(stageDir); statErr == nil && info.IsDir() {
		if _, err := stage.Commit(stageDir, toolsPrefix); err != nil {
			return err
		}
	}

	return nil
}

// predicateNeedsAction inverts CallPredicate's satisfied signal: for
// is_acquired, a throw means "not acquired" i.e. acquire is needed.
func predicateNeedsAction(unit *recipescript.Unit, ctx starlark.Value) (bool, error) {
	satisfied, err := unit.CallPredicate("is_acquired", ctx)
	return !satisfied, err
}

// callPhase invokes phase with ctx and returns the value the hook returned,
// which becomes the ctx for the next phase call. On failure it returns the
// ctx unchanged alongside the error so callers that choose to ignore the
// error still have something well-defined to discard.
func (r *Resolver) callPhase(unit *recipescript.Unit, phase string, ctx starlark.Value) (starlark.Value, error) {
	result, err := unit.Call(phase, ctx)
	if err != nil {
		r.maybeCleanup(unit, ctx, fmt.Sprintf("auto.%s.failure", phase))
		return ctx, err
	}
	r.maybeCleanup(unit, result, fmt.Sprintf("auto.%s.success", phase))
	return result, nil
}

func (r *Resolver) maybeCleanup(unit *recipescript.Unit, ctx starlark.Value, reason string) {
	arity, ok := unit.FunctionArity("cleanup")
	if !ok {
		return
	}
	if arity != 2 {
		if r.Logger != nil {
			r.Logger.Warn("cleanup hook has wrong arity, skipping", "want", 2, "got", arity)
		}
		return
	}
	if _, err := unit.Call("cleanup", ctx, starlark.String(reason)); err != nil && r.Logger != nil {
		r.Logger.Warn("cleanup hook failed", "reason", reason, "error", err)
	}
}
