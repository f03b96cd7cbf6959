package builddeps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecipe(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".star"), []byte(body), 0644))
}

func TestResolveAndInstallRunsAcquireAndInstall(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	writeRecipe(t, recipesDir, "leaf", `
ctx = {
    "acquired": False,
}

def is_installed(ctx):
    fail("not installed")

def acquire(ctx):
    ctx["acquired"] = True
    return ctx

def install(ctx):
    return ctx
`)

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir, Arch: "amd64"}
	prefix, err := r.ResolveAndInstall([]string{"leaf"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(buildDir, ".tools"), prefix)
}

func TestResolveAndInstallThreadsCtxFromAcquireIntoInstall(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	writeRecipe(t, recipesDir, "leaf", `
ctx = {
    "token": "",
}

def acquire(ctx):
    return {"token": "minted-by-acquire"}

def install(ctx):
    if ctx["token"] != "minted-by-acquire":
        fail("install did not receive acquire's returned ctx")
    return ctx
`)

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir, Arch: "amd64"}
	_, err := r.ResolveAndInstall([]string{"leaf"})
	require.NoError(t, err)
}

func TestResolveAndInstallSkipsWhenAlreadyInstalled(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	writeRecipe(t, recipesDir, "leaf", `
ctx = {}

def is_installed(ctx):
    return True

def acquire(ctx):
    fail("should not be called")
`)

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir}
	_, err := r.ResolveAndInstall([]string{"leaf"})
	require.NoError(t, err)
}

func TestResolveAndInstallCommitsStagedFilesIntoToolsPrefix(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	writeRecipe(t, recipesDir, "tool", `
ctx = {"version": "1.0"}

def acquire(ctx):
    write_file("tool.sh", "#!/bin/sh\n")
    return ctx

def install(ctx):
    install_bin("tool.sh")
    return ctx
`)

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir, Arch: "amd64"}
	prefix, err := r.ResolveAndInstall([]string{"tool"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(prefix, "bin", "tool.sh"))
}

func TestResolveAndInstallResolvesTransitiveDeps(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	writeRecipe(t, recipesDir, "outer", `
ctx = {}

build_deps = ["inner"]

def install(ctx):
    write_file("outer-ran.txt", "yes")
    install_bin("outer-ran.txt")
    return ctx
`)
	writeRecipe(t, recipesDir, "inner", `
ctx = {}

def install(ctx):
    write_file("inner-ran.txt", "yes")
    install_bin("inner-ran.txt")
    return ctx
`)

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir}
	prefix, err := r.ResolveAndInstall([]string{"outer"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(prefix, "bin", "inner-ran.txt"))
	assert.FileExists(t, filepath.Join(prefix, "bin", "outer-ran.txt"))
}

func TestResolveAndInstallReportsCycleChain(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	writeRecipe(t, recipesDir, "a", `
ctx = {}

build_deps = ["b"]
`)
	writeRecipe(t, recipesDir, "b", `
ctx = {}

build_deps = ["a"]
`)

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir}
	_, err := r.ResolveAndInstall([]string{"a"})
	require.Error(t, err)
	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.CircularDep, re.Kind)
	assert.Equal(t, []string{"a", "b", "a"}, re.Chain)
}

func TestResolveAndInstallExposesBaseRecipeDir(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()
	baseDir := t.TempDir()

	writeRecipe(t, recipesDir, "leaf", `
ctx = {}

def install(ctx):
    if BASE_RECIPE_DIR == "":
        fail("BASE_RECIPE_DIR not set")
    return ctx
`)

	r := &Resolver{RecipesDir: recipesDir, BaseRecipeDir: baseDir, BuildDir: buildDir}
	_, err := r.ResolveAndInstall([]string{"leaf"})
	require.NoError(t, err)
}

func TestResolveAndInstallDetectsCircularDep(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir, stack: []string{"a", "b"}}
	err := r.installDep("a", r.ToolsPrefix())
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.CircularDep))
}

func TestResolveAndInstallMissingDepNotFound(t *testing.T) {
	recipesDir := t.TempDir()
	buildDir := t.TempDir()

	r := &Resolver{RecipesDir: recipesDir, BuildDir: buildDir}
	_, err := r.ResolveAndInstall([]string{"missing"})
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.DepNotFound))
}
