// Package shellrun spawns POSIX shell commands, teeing child output live
// to the engine's stderr while capturing a bounded tail for failure
// diagnostics. Child stdout is teed to stderr, never to the engine's own
// stdout, so a CLI built on this engine can still emit machine-readable
// data on stdout.
package shellrun

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/levitate-os/recipe/internal/rerr"
)

const captureTailBytes = 256 * 1024

// Result is the outcome of a completed shell command.
type Result struct {
	ExitCode int
	Tail     string
}

// Run executes cmd via `sh -c`, in dir (or the current directory if dir
// is ""), with env appended to the process environment. Stdout and
// stderr are streamed live to os.Stderr and simultaneously captured into
// a ring buffer bounded to the last captureTailBytes. Returns a
// CommandFailed error on non-zero exit.
func Run(dir, cmd string, env []string) (Result, error) {
	return run(dir, cmd, env, true)
}

// RunStatus behaves like Run but does not capture a failure tail (used
// when the caller only needs the exit status).
func RunStatus(dir, cmd string, env []string) (Result, error) {
	return run(dir, cmd, env, false)
}

func run(dir, cmd string, env []string, captureTail bool) (Result, error) {
	c := exec.Command("sh", "-c", cmd)
	if dir != "" {
		c.Dir = dir
	}
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}

	stdout, err := c.StdoutPipe()
	if err != nil {
		return Result{}, rerr.Wrap(rerr.IoError, "opening stdout pipe", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return Result{}, rerr.Wrap(rerr.IoError, "opening stderr pipe", err)
	}

	var tailMu sync.Mutex
	tail := &bytes.Buffer{}

	if err := c.Start(); err != nil {
		return Result{}, rerr.Wrap(rerr.IoError, "starting shell command", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamAndCapture(stdout, &wg, &tailMu, tail, captureTail)
	go streamAndCapture(stderr, &wg, &tailMu, tail, captureTail)
	wg.Wait()

	waitErr := c.Wait()

	tailMu.Lock()
	tailStr := tail.String()
	tailMu.Unlock()

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, rerr.Wrap(rerr.IoError, "waiting for shell command", waitErr)
		}
	}

	result := Result{ExitCode: exitCode, Tail: tailStr}
	if exitCode != 0 {
		return result, &rerr.RecipeError{
			Kind:     rerr.CommandFailed,
			Message:  shortForm(cmd),
			ExitCode: exitCode,
			Tail:     tailStr,
		}
	}
	return result, nil
}

func streamAndCapture(r io.Reader, wg *sync.WaitGroup, mu *sync.Mutex, tail *bytes.Buffer, capture bool) {
	defer wg.Done()

	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			os.Stderr.Write(chunk)
			if capture {
				mu.Lock()
				tail.Write(chunk)
				if tail.Len() > captureTailBytes {
					excess := tail.Len() - captureTailBytes
					tail.Next(excess)
				}
				mu.Unlock()
			}
		}
		if err != nil {
			return
		}
	}
}

func shortForm(cmd string) string {
	if len(cmd) <= 60 {
		return cmd
	}
	return cmd[:60] + "..."
}

// Output runs cmd and returns stdout verbatim, bypassing the stderr tee
// entirely (the shell_output* helper family).
func Output(dir, cmd string, env []string) (string, error) {
	c := exec.Command("sh", "-c", cmd)
	if dir != "" {
		c.Dir = dir
	}
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}

	out, err := c.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", &rerr.RecipeError{
				Kind:     rerr.CommandFailed,
				Message:  shortForm(cmd),
				ExitCode: exitErr.ExitCode(),
				Tail:     string(exitErr.Stderr),
			}
		}
		return "", rerr.Wrap(rerr.IoError, "running shell command for output", err)
	}
	return string(out), nil
}

// EnvWithTools builds the environment passed to shell commands: PREFIX,
// BUILD_DIR, and the inherited environment with PATH prefixed by
// toolsBin (the build-deps resolver's tools_prefix/bin), if non-empty.
func EnvWithTools(prefix, buildDir, toolsBin string) []string {
	env := []string{
		fmt.Sprintf("PREFIX=%s", prefix),
		fmt.Sprintf("BUILD_DIR=%s", buildDir),
	}
	if toolsBin != "" {
		path := os.Getenv("PATH")
		env = append(env, fmt.Sprintf("PATH=%s:%s", toolsBin, path))
	}
	return env
}
