package recipescript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

const sampleRecipe = `
ctx = {
    "name": "foo",
    "version": "1.0",
}

def is_installed(ctx):
    fail("not installed")

def build(ctx):
    return ctx
`

func TestCompileAndCallFunction(t *testing.T) {
	unit, err := Compile("foo.star", sampleRecipe, map[string]string{"PREFIX": "/prefix"}, nil)
	require.NoError(t, err)

	assert.True(t, unit.HasFunction("build"))
	assert.True(t, unit.HasFunction("is_installed"))
	assert.False(t, unit.HasFunction("install"))

	arity, ok := unit.FunctionArity("build")
	require.True(t, ok)
	assert.Equal(t, 1, arity)
}

func TestCallPredicateThrowMeansUnsatisfied(t *testing.T) {
	unit, err := Compile("foo.star", sampleRecipe, nil, nil)
	require.NoError(t, err)

	ctx, err := unit.Ctx()
	require.NoError(t, err)

	satisfied, err := unit.CallPredicate("is_installed", ctx)
	require.NoError(t, err)
	assert.False(t, satisfied)
}

func TestCallPredicateMissingMeansUnsatisfied(t *testing.T) {
	unit, err := Compile("foo.star", sampleRecipe, nil, nil)
	require.NoError(t, err)

	satisfied, err := unit.CallPredicate("is_acquired", starlark.None)
	require.NoError(t, err)
	assert.False(t, satisfied)
}

func TestCtxIsMutableAfterTopLevelFreeze(t *testing.T) {
	src := `
ctx = {"acquired": False}

def acquire(ctx):
    ctx["acquired"] = True
    return ctx
`
	unit, err := Compile("foo.star", src, nil, nil)
	require.NoError(t, err)

	ctx, err := unit.Ctx()
	require.NoError(t, err)

	result, err := unit.Call("acquire", ctx)
	require.NoError(t, err)

	d, ok := result.(*starlark.Dict)
	require.True(t, ok)
	v, found, _ := d.Get(starlark.String("acquired"))
	require.True(t, found)
	assert.Equal(t, starlark.Bool(true), v)
}

func TestCtxMissingFails(t *testing.T) {
	unit, err := Compile("foo.star", "def build(ctx):\n    return ctx\n", nil, nil)
	require.NoError(t, err)

	_, err = unit.Ctx()
	require.Error(t, err)
}

func TestDictToGoRoundTrip(t *testing.T) {
	m := map[string]interface{}{"a": "x", "b": int64(1), "c": true}
	d := GoToDict(m)
	back := DictToGo(d)
	assert.Equal(t, "x", back["a"])
	assert.Equal(t, int64(1), back["b"])
	assert.Equal(t, true, back["c"])
}
