// Package rerr defines the error taxonomy shared by every lifecycle
// component. Callers compare kinds with errors.As, never string-match
// messages.
package rerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the named failure modes a recipe run can hit.
type Kind string

const (
	LockBusy       Kind = "LockBusy"
	CompileError   Kind = "CompileError"
	NoCtx          Kind = "NoCtx"
	NoContext      Kind = "NoContext"
	NoAcquiredFile Kind = "NoAcquiredFile"
	HashMismatch   Kind = "HashMismatch"
	CircularDep    Kind = "CircularDep"
	DepNotFound    Kind = "DepNotFound"
	PhaseError     Kind = "PhaseError"
	CommandFailed  Kind = "CommandFailed"
	IoError        Kind = "IoError"
	LlmError       Kind = "LlmError"
)

// RecipeError wraps a Kind with a human message and an optional cause.
type RecipeError struct {
	Kind    Kind
	Message string
	Cause   error

	// Optional structured fields, populated by the component that raised
	// the error. Only the fields relevant to Kind are set.
	Path     string // sentinel path, file path, or recipe search dir
	Phase    string // acquire/build/install/etc.
	Chain    []string
	Algo     string // hash algorithm name
	Expected string
	Got      string
	ExitCode int
	Tail     string
}

func (e *RecipeError) Error() string {
	msg := e.Message
	switch e.Kind {
	case HashMismatch:
		msg = fmt.Sprintf("%s: %s digest mismatch for %s: expected %s, got %s", e.Kind, e.Algo, e.Path, e.Expected, e.Got)
	case CircularDep:
		msg = fmt.Sprintf("%s: %s", e.Kind, joinChain(e.Chain))
	case CommandFailed:
		msg = fmt.Sprintf("%s: exit %d: %s", e.Kind, e.ExitCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RecipeError) Unwrap() error { return e.Cause }

func joinChain(chain []string) string {
	out := ""
	for i, c := range chain {
		if i > 0 {
			out += " -> "
		}
		out += c
	}
	return out
}

// New constructs a RecipeError of the given kind.
func New(kind Kind, message string) *RecipeError {
	return &RecipeError{Kind: kind, Message: message}
}

// Wrap constructs a RecipeError of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *RecipeError {
	return &RecipeError{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind, anywhere in its chain.
func Is(err error, kind Kind) bool {
	var re *RecipeError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// As extracts the *RecipeError from err, if present.
func As(err error) (*RecipeError, bool) {
	var re *RecipeError
	ok := errors.As(err, &re)
	return re, ok
}

// ExitCode maps a Kind to the CLI's process exit code. 0 is reserved for
// success/skipped and is never returned here.
func ExitCode(kind Kind) int {
	switch kind {
	case LockBusy:
		return 10
	case CompileError:
		return 11
	case NoCtx:
		return 12
	case NoContext:
		return 13
	case NoAcquiredFile:
		return 14
	case HashMismatch:
		return 15
	case CircularDep:
		return 16
	case DepNotFound:
		return 17
	case PhaseError:
		return 18
	case CommandFailed:
		return 19
	case IoError:
		return 20
	case LlmError:
		return 21
	default:
		return 1
	}
}
