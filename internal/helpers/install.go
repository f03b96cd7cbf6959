package helpers

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/cavaliercoder/go-cpio"
	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/levitate-os/recipe/internal/stage"
	"go.starlark.net/starlark"
)

// installBuiltins groups the install_bin/lib/man trio, which write into
// the private staging tree rather than the real prefix directly so a
// failed install never leaves partial files in place, alongside
// mkdir/rm/mv/ln/chmod/read_file/write_file/append_file/glob_list for
// general file manipulation in the staging/build tree, and rpm_install
// for unpacking RPM payloads.
func (r *Registry) installBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"install_bin": builtin("install_bin", r.installInto("bin", 0755)),
		"install_lib": builtin("install_lib", r.installInto("lib", 0644)),
		"install_man": builtin("install_man", r.installInto("man", 0644)),
		"rpm_install": builtin("rpm_install", r.rpmInstall),
		"mkdir":       builtin("mkdir", r.mkdir),
		"rm":          builtin("rm", r.rm),
		"mv":          builtin("mv", r.mv),
		"ln":          builtin("ln", r.ln),
		"chmod":       builtin("chmod", r.chmod),
		"read_file":   builtin("read_file", r.readFile),
		"write_file":  builtin("write_file", r.writeFile),
		"append_file": builtin("append_file", r.appendFile),
		"glob_list":   builtin("glob_list", r.globList),
	}
}

// installInto returns an install_<family>(src, name) builtin that copies
// src (resolved relative to current_dir if not absolute) into
// <build_dir>/.stage/<family>/name with mode, and records the staged
// path on the ambient context.
func (r *Registry) installInto(family string, mode os.FileMode) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var src, name string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "src", &src, "name?", &name); err != nil {
			return nil, err
		}
		if !filepath.IsAbs(src) {
			src = filepath.Join(r.Ctx.CurrentDir, src)
		}
		if name == "" {
			name = filepath.Base(src)
		}

		stageDir, err := stage.Create(r.Ctx.BuildDir)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(stageDir, family, name)
		if err := copyFileMode(src, dest, mode); err != nil {
			return nil, err
		}
		r.Ctx.RecordInstalledFile(dest)
		return starlark.String(dest), nil
	}
}

func copyFileMode(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return rerr.Wrap(rerr.IoError, "creating staging parent dir", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return rerr.Wrap(rerr.IoError, "opening "+src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return rerr.Wrap(rerr.IoError, "creating "+dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return rerr.Wrap(rerr.IoError, "copying to "+dest, err)
	}
	return nil
}

// rpmInstall converts an RPM's payload to a cpio stream via the system
// rpm2cpio tool and extracts it into staging with
// github.com/cavaliercoder/go-cpio. RPM's lead/header framing is left
// to rpm2cpio; this helper owns only the cpio extraction.
func (r *Registry) rpmInstall(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var rpmPath string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "rpm_path", &rpmPath); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(rpmPath) {
		rpmPath = filepath.Join(r.Ctx.CurrentDir, rpmPath)
	}

	cmd := exec.Command("rpm2cpio", rpmPath)
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "opening rpm2cpio pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "starting rpm2cpio", err)
	}

	stageDir, err := stage.Create(r.Ctx.BuildDir)
	if err != nil {
		return nil, err
	}

	extractErr := extractCPIO(pipe, stageDir, r.Ctx)
	waitErr := cmd.Wait()
	if extractErr != nil {
		return nil, extractErr
	}
	if waitErr != nil {
		return nil, rerr.Wrap(rerr.CommandFailed, "rpm2cpio "+rpmPath, waitErr)
	}
	return starlark.None, nil
}

func extractCPIO(r io.Reader, destDir string, trackFiles interface {
	RecordInstalledFile(string)
}) error {
	cr := cpio.NewReader(r)
	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return rerr.Wrap(rerr.IoError, "reading cpio entry", err)
		}

		target, jerr := safeJoin(destDir, hdr.Name)
		if jerr != nil {
			return jerr
		}

		switch {
		case hdr.Mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return rerr.Wrap(rerr.IoError, "creating directory "+target, err)
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return rerr.Wrap(rerr.IoError, "creating parent dir for "+target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode.Perm()))
			if err != nil {
				return rerr.Wrap(rerr.IoError, "creating file "+target, err)
			}
			if _, err := io.Copy(out, cr); err != nil {
				out.Close()
				return rerr.Wrap(rerr.IoError, "writing file "+target, err)
			}
			out.Close()
			trackFiles.RecordInstalledFile(target)
		}
	}
}

func (r *Registry) mkdir(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var dir string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "dir", &dir); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Ctx.CurrentDir, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "mkdir "+dir, err)
	}
	return starlark.None, nil
}

func (r *Registry) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Ctx.CurrentDir, p)
}

func (r *Registry) rm(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(r.resolvePath(path)); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "rm "+path, err)
	}
	return starlark.None, nil
}

func (r *Registry) mv(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var src, dest string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "src", &src, "dest", &dest); err != nil {
		return nil, err
	}
	srcPath, destPath := r.resolvePath(src), r.resolvePath(dest)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "creating destination parent dir", err)
	}
	if err := os.Rename(srcPath, destPath); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "mv "+src+" "+dest, err)
	}
	return starlark.None, nil
}

func (r *Registry) ln(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target, linkName string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "target", &target, "link_name", &linkName); err != nil {
		return nil, err
	}
	linkPath := r.resolvePath(linkName)
	_ = os.Remove(linkPath)
	if err := os.Symlink(target, linkPath); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "ln "+target+" "+linkName, err)
	}
	return starlark.None, nil
}

func (r *Registry) chmod(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path, modeStr string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "mode", &modeStr); err != nil {
		return nil, err
	}
	mode, err := strconv.ParseUint(modeStr, 8, 32)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "parsing mode "+modeStr, err)
	}
	if err := os.Chmod(r.resolvePath(path), os.FileMode(mode)); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "chmod "+path, err)
	}
	return starlark.None, nil
}

func (r *Registry) readFile(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.resolvePath(path))
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "reading "+path, err)
	}
	return starlark.String(data), nil
}

func (r *Registry) writeFile(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path, content string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "content", &content); err != nil {
		return nil, err
	}
	dest := r.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "creating parent dir for "+path, err)
	}
	if err := os.WriteFile(dest, []byte(content), 0644); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "writing "+path, err)
	}
	return starlark.None, nil
}

func (r *Registry) appendFile(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path, content string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "content", &content); err != nil {
		return nil, err
	}
	dest := r.resolvePath(path)
	f, err := os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "opening "+path+" for append", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return nil, rerr.Wrap(rerr.IoError, "appending to "+path, err)
	}
	return starlark.None, nil
}

func (r *Registry) globList(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(r.Ctx.CurrentDir, pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, rerr.Wrap(rerr.IoError, "glob "+pattern, err)
	}
	items := make([]starlark.Value, len(matches))
	for i, m := range matches {
		items[i] = starlark.String(m)
	}
	return starlark.NewList(items), nil
}
