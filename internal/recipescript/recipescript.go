// Package recipescript is the scripting-runtime collaborator the
// lifecycle orchestrator depends on: it compiles a recipe source file,
// enumerates top-level function names and arities, calls a named
// function with an ordered argument tuple, and exposes a dynamic value
// union (string, int, bool, dict, list, none) to the rest of the engine.
// Wired to go.starlark.net as the embeddable scripting runtime.
package recipescript

import (
	"fmt"

	"github.com/levitate-os/recipe/internal/ctxblock"
	"github.com/levitate-os/recipe/internal/rerr"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Unit is a compiled recipe: its global scope after running top-level
// statements, ready to have functions called against it.
type Unit struct {
	Globals starlark.StringDict
	thread  *starlark.Thread
	source  string
	path    string
}

// Builtin is a helper function registered with the runtime, callable
// from recipe top-level and hooks.
type Builtin = starlark.Value

// Compile parses and executes the top-level of a recipe source file,
// seeding its global scope with constants and builtins before running.
// Builtins/constants are merged: constants first, then builtins override
// on key collision (callers should avoid naming collisions in practice).
func Compile(path, source string, constants map[string]string, builtins starlark.StringDict) (*Unit, error) {
	predeclared := starlark.StringDict{}
	for k, v := range constants {
		predeclared[k] = starlark.String(v)
	}
	for k, v := range builtins {
		predeclared[k] = v
	}
	predeclared["struct"] = starlark.NewBuiltin("struct", starlarkstruct.Make)

	thread := &starlark.Thread{
		Name: path,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Println(msg)
		},
	}

	globals, err := starlark.ExecFile(thread, path, source, predeclared)
	if err != nil {
		return nil, rerr.Wrap(rerr.CompileError, "compiling recipe "+path, err)
	}

	return &Unit{Globals: globals, thread: thread, source: source, path: path}, nil
}

// FunctionArity returns the declared arity of a top-level function, and
// whether it exists at all.
func (u *Unit) FunctionArity(name string) (arity int, exists bool) {
	v, ok := u.Globals[name]
	if !ok {
		return 0, false
	}
	fn, ok := v.(*starlark.Function)
	if !ok {
		return 0, false
	}
	return fn.NumParams(), true
}

// HasFunction reports whether name is defined at top level.
func (u *Unit) HasFunction(name string) bool {
	_, ok := u.Globals[name]
	return ok
}

// Call invokes the named top-level function with args, in declared
// order, returning its result or an error if the function threw or does
// not exist.
func (u *Unit) Call(name string, args ...starlark.Value) (starlark.Value, error) {
	v, ok := u.Globals[name]
	if !ok {
		return nil, fmt.Errorf("recipescript: no such function %q", name)
	}
	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("recipescript: %q is not a function", name)
	}

	result, err := starlark.Call(u.thread, fn, starlark.Tuple(args), nil)
	if err != nil {
		return nil, rerr.Wrap(rerr.PhaseError, fmt.Sprintf("calling %s", name), err)
	}
	return result, nil
}

// CallPredicate calls a predicate hook (is_installed/is_acquired) and
// maps the threw-vs-returned signal: a clean return means satisfied
// (true); a thrown error means not satisfied (false). The return value
// itself is discarded.
func (u *Unit) CallPredicate(name string, ctx starlark.Value) (satisfied bool, err error) {
	if !u.HasFunction(name) {
		return false, nil
	}
	_, callErr := u.Call(name, ctx)
	if callErr != nil {
		return false, nil
	}
	return true, nil
}

// GlobalStringList reads a top-level list-of-strings global, such as a
// recipe's declared build_deps list. Returns ok=false if the name is
// undefined or not a list of strings.
func (u *Unit) GlobalStringList(name string) (out []string, ok bool) {
	v, exists := u.Globals[name]
	if !exists {
		return nil, false
	}
	list, isList := v.(*starlark.List)
	if !isList {
		return nil, false
	}
	out = make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, isStr := starlark.AsString(list.Index(i))
		if !isStr {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Ctx reads the global `ctx` binding as a dict-backed value union. Fails
// with NoCtx if absent. ExecFile freezes module globals after the
// top-level runs, but hooks mutate the ctx they receive, so the caller
// gets a mutable deep copy rather than the frozen original.
func (u *Unit) Ctx() (*starlark.Dict, error) {
	v, ok := u.Globals["ctx"]
	if !ok {
		return nil, rerr.New(rerr.NoCtx, "top-level ran but ctx is absent")
	}
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, rerr.New(rerr.NoCtx, "ctx is not a mapping")
	}
	clone, ok := cloneValue(d).(*starlark.Dict)
	if !ok {
		return nil, rerr.New(rerr.NoCtx, "ctx is not a mapping")
	}
	return clone, nil
}

// cloneValue deep-copies dicts and lists into fresh mutable values;
// strings, ints, bools, and None are immutable and shared as-is.
func cloneValue(v starlark.Value) starlark.Value {
	switch x := v.(type) {
	case *starlark.Dict:
		d := starlark.NewDict(x.Len())
		for _, item := range x.Items() {
			_ = d.SetKey(item[0], cloneValue(item[1]))
		}
		return d
	case *starlark.List:
		items := make([]starlark.Value, x.Len())
		for i := 0; i < x.Len(); i++ {
			items[i] = cloneValue(x.Index(i))
		}
		return starlark.NewList(items)
	default:
		return v
	}
}

// DictToGo converts a starlark.Dict into a plain Go map, the boundary
// used by the orchestrator when it hands a recipe's ctx off for
// persistence. Non-string/int/bool values are stringified, a deliberate
// lossy fallback for "other" dynamic types.
func DictToGo(d *starlark.Dict) map[string]interface{} {
	out := map[string]interface{}{}
	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			key = item[0].String()
		}
		out[key] = starlarkToGo(item[1])
	}
	return out
}

func starlarkToGo(v starlark.Value) interface{} {
	switch x := v.(type) {
	case starlark.String:
		return string(x)
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		i, _ := x.Int64()
		return i
	case starlark.NoneType:
		return nil
	default:
		return x.String()
	}
}

// GoToDict converts a plain Go map (string/int64/bool/nil values) into a
// starlark.Dict suitable for seeding a recipe's ctx binding.
func GoToDict(m map[string]interface{}) *starlark.Dict {
	d := starlark.NewDict(len(m))
	for k, v := range m {
		var sv starlark.Value
		switch x := v.(type) {
		case string:
			sv = starlark.String(x)
		case bool:
			sv = starlark.Bool(x)
		case int64:
			sv = starlark.MakeInt64(x)
		case int:
			sv = starlark.MakeInt(x)
		case nil:
			sv = starlark.None
		default:
			sv = starlark.String(fmt.Sprintf("%v", x))
		}
		_ = d.SetKey(starlark.String(k), sv)
	}
	return d
}

// ToCtxblockMap converts the Go map produced by DictToGo into a
// ctxblock.Map ready for Serialize/Persist.
func ToCtxblockMap(m map[string]interface{}) ctxblock.Map {
	out := make(ctxblock.Map, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case string:
			out[k] = ctxblock.StringValue(x)
		case bool:
			out[k] = ctxblock.BoolValue(x)
		case int64:
			out[k] = ctxblock.IntValue(x)
		case nil:
			out[k] = ctxblock.NoneValue()
		default:
			out[k] = ctxblock.StringValue(fmt.Sprintf("%v", x))
		}
	}
	return out
}
