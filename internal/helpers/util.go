package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
)

// utilBuiltins groups small string/path/environment helpers recipes
// lean on for glue logic between the acquire/build/install calls.
func (r *Registry) utilBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"env":       builtin("env", r.getEnv),
		"set_env":   builtin("set_env", r.setEnv),
		"join_path": builtin("join_path", joinPath),
		"basename":  builtin("basename", basenameFn),
		"dirname":   builtin("dirname", dirnameFn),
		"trim":      builtin("trim", trimFn),
		"contains":  builtin("contains", containsFn),
		"replace":   builtin("replace", replaceFn),
		"split":     builtin("split", splitFn),
		"log":       builtin("log", r.logInfo),
		"warn":      builtin("warn", r.logWarn),
	}
}

func (r *Registry) getEnv(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, def string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return starlark.String(v), nil
	}
	return starlark.String(def), nil
}

func (r *Registry) setEnv(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, value string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	if err := os.Setenv(name, value); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func joinPath(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	parts := make([]string, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is not a string", b.Name(), i)
		}
		parts[i] = s
	}
	return starlark.String(filepath.Join(parts...)), nil
}

func basenameFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	return starlark.String(filepath.Base(path)), nil
}

func dirnameFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	return starlark.String(filepath.Dir(path)), nil
}

func trimFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s); err != nil {
		return nil, err
	}
	return starlark.String(strings.TrimSpace(s)), nil
}

func containsFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s, substr string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s, "substr", &substr); err != nil {
		return nil, err
	}
	return starlark.Bool(strings.Contains(s, substr)), nil
}

func replaceFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s, old, repl string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s, "old", &old, "new", &repl); err != nil {
		return nil, err
	}
	return starlark.String(strings.ReplaceAll(s, old, repl)), nil
}

func splitFn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s, sep string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s, "sep", &sep); err != nil {
		return nil, err
	}
	parts := strings.Split(s, sep)
	items := make([]starlark.Value, len(parts))
	for i, p := range parts {
		items[i] = starlark.String(p)
	}
	return starlark.NewList(items), nil
}

func (r *Registry) logInfo(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg); err != nil {
		return nil, err
	}
	r.Logger.Info(msg)
	return starlark.None, nil
}

func (r *Registry) logWarn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg); err != nil {
		return nil, err
	}
	r.Logger.Warn(msg)
	return starlark.None, nil
}
