// Package errmsg formats RecipeErrors into actionable, user-facing text.
package errmsg

import (
	"fmt"
	"strings"

	"github.com/levitate-os/recipe/internal/rerr"
)

// ErrorContext carries optional detail used to tailor suggestions.
type ErrorContext struct {
	RecipeName string
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx may be nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	re, ok := rerr.As(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString(re.Error())
	sb.WriteString("\n")

	switch re.Kind {
	case rerr.LockBusy:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Another recipe run holds the lock\n")
		sb.WriteString("  - A previous run crashed without releasing it\n")
		sb.WriteString("\nSuggestions:\n")
		if re.Path != "" {
			fmt.Fprintf(&sb, "  - If you're sure no other run is active, delete %s\n", re.Path)
		} else {
			sb.WriteString("  - If you're sure no other run is active, delete the lock sentinel\n")
		}

	case rerr.CompileError:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Syntax error in the recipe source\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-check the recipe against the scripting language's grammar\n")

	case rerr.NoCtx:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The recipe's top-level never defines `ctx`\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Add a ctx literal block at the top of the recipe\n")

	case rerr.HashMismatch:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The upstream artifact changed since the recipe was written\n")
		sb.WriteString("  - A corrupted or tampered download\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-run `recipe hash` against a freshly downloaded copy\n")
		sb.WriteString("  - Verify the download URL still points at the expected release\n")

	case rerr.CircularDep:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Two or more recipes declare each other as build-deps\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Break the cycle named above by removing one of the dep declarations\n")

	case rerr.DepNotFound:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The dep's recipe file does not exist in the search directory\n")
		sb.WriteString("  - Typo in the dep name\n")
		sb.WriteString("\nSuggestions:\n")
		if re.Path != "" {
			fmt.Fprintf(&sb, "  - Confirm the recipe exists under %s\n", re.Path)
		}

	case rerr.PhaseError:
		sb.WriteString("\nPossible causes:\n")
		if re.Phase != "" {
			fmt.Fprintf(&sb, "  - The recipe's %s hook raised an error\n", re.Phase)
		} else {
			sb.WriteString("  - A recipe hook raised an error\n")
		}
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-run with the shell tail above for the underlying command output\n")

	case rerr.CommandFailed:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The shell command exited non-zero\n")
		sb.WriteString("\nSuggestions:\n")
		if re.Tail != "" {
			sb.WriteString("  - Inspect the captured output tail above\n")
		}

	case rerr.IoError:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - Permission problem on the prefix or build dir\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check your internet connection and filesystem permissions\n")
		if re.Path != "" {
			fmt.Fprintf(&sb, "  - Offending path: %s\n", re.Path)
		}

	case rerr.LlmError:
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - No llm.toml with a default_provider exists\n")
		sb.WriteString("  - The provider CLI is not installed, timed out, or exited non-zero\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check llm.toml for the configured provider, timeout, and byte caps\n")

	default:
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Re-run with more verbose logging\n")
	}

	if ctx != nil && ctx.RecipeName != "" {
		fmt.Fprintf(&sb, "\nRecipe: %s\n", ctx.RecipeName)
	}

	return sb.String()
}
