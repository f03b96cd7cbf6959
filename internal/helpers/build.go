package helpers

import (
	"path/filepath"

	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/levitate-os/recipe/internal/shellrun"
	"go.starlark.net/starlark"
)

// buildBuiltins groups extract (consuming last_downloaded), cd
// (mutating current_dir), and the run/shell variants wired to
// internal/shellrun.
func (r *Registry) buildBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"extract":      builtin("extract", r.extract),
		"cd":           builtin("cd", r.cd),
		"run":          builtin("run", r.run),
		"shell":        builtin("shell", r.run),
		"shell_in":     builtin("shell_in", r.shellIn),
		"shell_output": builtin("shell_output", r.shellOutput),
		"shell_status": builtin("shell_status", r.shellStatus),
	}
}

// extract requires last_downloaded to be set (by a prior acquire-family
// call), failing with NoAcquiredFile otherwise. format may be omitted
// to auto-detect from the downloaded file's name.
func (r *Registry) extract(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var format string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "format?", &format); err != nil {
		return nil, err
	}

	path, err := r.Ctx.RequireLastDownloaded()
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = detectFormat(path)
		if format == "" {
			return nil, rerr.New(rerr.IoError, "cannot auto-detect archive format for "+path)
		}
	}

	if err := extractArchive(path, format, r.Ctx.CurrentDir); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// cd updates current_dir, the shell cwd every subsequent run/shell call
// in this lifecycle call observes.
func (r *Registry) cd(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "dir", &dir); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Ctx.CurrentDir, dir)
	}
	r.Ctx.CurrentDir = dir
	return starlark.None, nil
}

func (r *Registry) env() []string {
	return shellrun.EnvWithTools(r.Ctx.Prefix, r.Ctx.BuildDir, r.ToolsBin)
}

// run executes cmd in current_dir, teeing output live to stderr and
// capturing a tail for failure diagnostics.
func (r *Registry) run(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmd string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cmd", &cmd); err != nil {
		return nil, err
	}
	result, err := shellrun.Run(r.Ctx.CurrentDir, cmd, r.env())
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(result.ExitCode), nil
}

// shellIn runs cmd in an explicit directory, leaving current_dir
// untouched.
func (r *Registry) shellIn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir, cmd string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "dir", &dir, "cmd", &cmd); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Ctx.CurrentDir, dir)
	}
	result, err := shellrun.Run(dir, cmd, r.env())
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(result.ExitCode), nil
}

// shellOutput bypasses the stderr tee, returning stdout verbatim.
func (r *Registry) shellOutput(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmd string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cmd", &cmd); err != nil {
		return nil, err
	}
	out, err := shellrun.Output(r.Ctx.CurrentDir, cmd, r.env())
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}

// shellStatus runs cmd and returns its exit status without capturing a
// failure tail or failing on non-zero exit.
func (r *Registry) shellStatus(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmd string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cmd", &cmd); err != nil {
		return nil, err
	}
	result, err := shellrun.RunStatus(r.Ctx.CurrentDir, cmd, r.env())
	if err != nil {
		if re, ok := rerr.As(err); ok && re.Kind == rerr.CommandFailed {
			return starlark.MakeInt(re.ExitCode), nil
		}
		return nil, err
	}
	return starlark.MakeInt(result.ExitCode), nil
}
