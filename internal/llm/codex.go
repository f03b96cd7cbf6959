package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/levitate-os/recipe/internal/rerr"
)

// buildCodex assembles the codex CLI spawn: `codex exec` with the shell
// tool disabled, every MCP server from ~/.codex/config.toml switched
// off, the final answer routed through --output-last-message, and "-"
// so the prompt is read from stdin. Codex's own progress output is teed
// to the engine's stderr while the run is live.
func buildCodex(s *Settings) (*invocation, error) {
	bin := s.Codex.Bin
	if bin == "" {
		bin = "codex"
	}

	argv := []string{bin, "exec"}
	// Recipe LLM helpers are pure text transforms of provided input.
	// Disable the shell tool so codex doesn't run its own command
	// explorations while "extracting" from the content it was handed.
	argv = append(argv, "--disable", "shell_tool")
	argv = append(argv, s.Codex.Args...)

	if s.Codex.Model != "" {
		argv = append(argv, "--model", s.Codex.Model)
	}
	for _, ov := range s.Codex.ConfigOverrides {
		argv = append(argv, "--config", ov)
	}
	if s.Codex.Effort != "" {
		argv = append(argv, "--config", "model_reasoning_effort="+s.Codex.Effort)
	}

	// There is no `codex exec --no-mcp` flag; codex loads enabled MCP
	// servers from ~/.codex/config.toml, so each discovered server gets
	// an .enabled=false override on the spawn command line. Server names
	// may contain '-', but this is codex's dotted-path override syntax,
	// not TOML dotted keys, so they are not quoted.
	for _, name := range discoverMCPServerNames() {
		argv = append(argv, "--config", fmt.Sprintf("mcp_servers.%s.enabled=false", name))
	}

	lastMessage, err := os.CreateTemp("", "recipe-codex-*.txt")
	if err != nil {
		return nil, rerr.Wrap(rerr.LlmError, "creating temp file for codex output", err)
	}
	lastMessagePath := lastMessage.Name()
	if err := lastMessage.Close(); err != nil {
		_ = os.Remove(lastMessagePath)
		return nil, rerr.Wrap(rerr.LlmError, "creating temp file for codex output", err)
	}

	argv = append(argv, "--output-last-message", lastMessagePath)
	argv = append(argv, "-")

	return &invocation{
		argv: argv,
		env:  envList(s.Codex.Env),
		tee:  true,
		finalize: func(res *Result) (string, error) {
			return finalizeCodex(res, lastMessagePath)
		},
		cleanup: func() { _ = os.Remove(lastMessagePath) },
	}, nil
}

// finalizeCodex maps a codex run to its answer text: non-zero exit
// surfaces the exit code and stderr; the answer is the last-message
// file, not stdout, which carries codex's progress stream.
func finalizeCodex(res *Result, lastMessagePath string) (string, error) {
	if res.ExitCode != 0 {
		stderr := strings.TrimSpace(string(res.Stderr))
		return "", &rerr.RecipeError{
			Kind:     rerr.LlmError,
			Message:  fmt.Sprintf("codex exited with code %d: %s", res.ExitCode, stderr),
			ExitCode: res.ExitCode,
			Tail:     stderr,
		}
	}

	data, err := os.ReadFile(lastMessagePath)
	if err != nil {
		return "", rerr.Wrap(rerr.LlmError, "codex did not write --output-last-message file "+lastMessagePath, err)
	}
	out := strings.TrimSpace(string(data))
	if out == "" {
		return "", rerr.New(rerr.LlmError, "codex last message file was empty")
	}
	return out, nil
}

// discoverMCPServerNames lists the MCP servers configured in
// ~/.codex/config.toml, best-effort: a missing or unparseable file
// means nothing to disable.
func discoverMCPServerNames() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var cfg struct {
		MCPServers map[string]toml.Primitive `toml:"mcp_servers"`
	}
	if _, err := toml.DecodeFile(filepath.Join(home, ".codex", "config.toml"), &cfg); err != nil {
		return nil
	}
	names := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
