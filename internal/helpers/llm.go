package helpers

import (
	"fmt"
	"strings"

	"github.com/levitate-os/recipe/internal/rerr"
	"go.starlark.net/starlark"
)

// llmBuiltins groups the extraction helpers recipes fall back on when a
// release page or download index has no machine-readable API. These
// shell out to an external agent CLI (claude or codex) to do
// non-deterministic extraction when parsing is genuinely hard; the
// engine never interprets the model output - it runs the configured CLI
// non-interactively under timeouts and size limits and returns the
// final text.
func (r *Registry) llmBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"llm_extract":             builtin("llm_extract", r.llmExtract),
		"llm_find_latest_version": builtin("llm_find_latest_version", r.llmFindLatestVersion),
		"llm_find_download_url":   builtin("llm_find_download_url", r.llmFindDownloadURL),
	}
}

func (r *Registry) requireBridge() error {
	if r.LLM == nil {
		return rerr.New(rerr.LlmError, "no LLM provider configured: create llm.toml with a default_provider, or enable LLM helpers in config.toml")
	}
	return nil
}

// recipeFileHint pulls a recipe_file path out of a serialized ctx, when
// present, so the prompt can name the target file.
func recipeFileHint(content string) string {
	idx := strings.Index(content, "recipe_file")
	if idx < 0 {
		return ""
	}
	rest := content[idx+len("recipe_file"):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = rest[colon+1:]
	open := strings.Index(rest, `"`)
	if open < 0 {
		return ""
	}
	rest = rest[open+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// buildExtractPrompt frames content and task the way every llm_* helper
// sends them: the agent is told it is a pure transform of the provided
// text and must not reach for tools of its own.
func buildExtractPrompt(content, task string) string {
	var header strings.Builder
	header.WriteString("You are a precise extraction and editing tool for Starlark recipe files.\n")
	header.WriteString("The complete relevant content is provided below.\n")
	header.WriteString("Do NOT run commands, do NOT browse, and do NOT try to locate files on disk.\n")
	header.WriteString("Return ONLY the requested output. No prose. No markdown. No code fences.\n")

	if path := recipeFileHint(content); path != "" {
		fmt.Fprintf(&header, "\nTARGET FILE PATH:\n%s\n", path)
	}

	return fmt.Sprintf("%s\nTASK:\n%s\n\nCONTENT (complete):\n%s\n", header.String(), task, content)
}

// llmExtract asks the agent to extract information from text: content is
// the text to analyze (HTML, a changelog), prompt is what to extract.
func (r *Registry) llmExtract(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var content, prompt string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "content", &content, "prompt", &prompt); err != nil {
		return nil, err
	}
	if err := r.requireBridge(); err != nil {
		return nil, err
	}
	answer, err := r.LLM.Run(buildExtractPrompt(content, prompt))
	if err != nil {
		return nil, err
	}
	return starlark.String(answer), nil
}

// llmFindLatestVersion fetches url and asks the agent for the latest
// stable version string, with the project name for context.
func (r *Registry) llmFindLatestVersion(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url, project string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url, "project", &project); err != nil {
		return nil, err
	}
	if err := r.requireBridge(); err != nil {
		return nil, err
	}
	content, err := r.getBody(url)
	if err != nil {
		return nil, err
	}
	task := fmt.Sprintf("(source url: %s)\nProject: %s\nReturn ONLY the latest stable version string. No prose.", url, project)
	version, err := r.LLM.Run(buildExtractPrompt(content, task))
	if err != nil {
		return nil, err
	}
	return starlark.String(version), nil
}

// llmFindDownloadURL asks the agent for the download URL in content
// matching criteria ("x86_64 Linux tarball", "DVD ISO").
func (r *Registry) llmFindDownloadURL(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var content, criteria string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "content", &content, "criteria", &criteria); err != nil {
		return nil, err
	}
	if err := r.requireBridge(); err != nil {
		return nil, err
	}
	task := fmt.Sprintf("Return ONLY the matching URL. No prose.\nCriteria: %s", criteria)
	url, err := r.LLM.Run(buildExtractPrompt(content, task))
	if err != nil {
		return nil, err
	}
	return starlark.String(url), nil
}
