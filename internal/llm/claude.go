package llm

import (
	"fmt"
	"strings"

	"github.com/levitate-os/recipe/internal/rerr"
)

// buildClaude assembles the claude CLI spawn. The bridge forces
// non-interactive mode (-p/--print), text in and out, unless the user's
// configured args already carry those flags.
func buildClaude(s *Settings) *invocation {
	bin := s.Claude.Bin
	if bin == "" {
		bin = "claude"
	}

	argv := []string{bin}
	argv = append(argv, s.Claude.Args...)

	if !hasFlag(s.Claude.Args, "-p") && !hasFlag(s.Claude.Args, "--print") {
		argv = append(argv, "-p")
	}
	if !hasFlag(s.Claude.Args, "--input-format") {
		argv = append(argv, "--input-format", "text")
	}
	if !hasFlag(s.Claude.Args, "--output-format") {
		argv = append(argv, "--output-format", "text")
	}
	if s.Claude.Model != "" {
		argv = append(argv, "--model", s.Claude.Model)
	}
	if s.Claude.Effort != "" {
		argv = append(argv, "--effort", s.Claude.Effort)
	}

	return &invocation{
		argv:     argv,
		env:      envList(s.Claude.Env),
		finalize: finalizeClaude,
	}
}

// finalizeClaude maps a claude run to its answer text: non-zero exit
// surfaces the exit code and stderr; the answer is trimmed stdout.
func finalizeClaude(res *Result) (string, error) {
	if res.ExitCode != 0 {
		stderr := strings.TrimSpace(string(res.Stderr))
		return "", &rerr.RecipeError{
			Kind:     rerr.LlmError,
			Message:  fmt.Sprintf("claude exited with code %d: %s", res.ExitCode, stderr),
			ExitCode: res.ExitCode,
			Tail:     stderr,
		}
	}
	out := strings.TrimSpace(string(res.Stdout))
	if out == "" {
		return "", rerr.New(rerr.LlmError, "claude returned empty output")
	}
	return out, nil
}
