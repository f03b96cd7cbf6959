package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub drops a fake provider CLI script into dir and returns its
// path. Scripts record their argv to <name>.args so tests can assert on
// the spawn command line.
func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	full := "#!/bin/sh\nprintf '%s ' \"$@\" > \"" + path + ".args\"\n" + script
	require.NoError(t, os.WriteFile(path, []byte(full), 0755))
	return path
}

func stubArgs(t *testing.T, stubPath string) string {
	t.Helper()
	data, err := os.ReadFile(stubPath + ".args")
	require.NoError(t, err)
	return string(data)
}

func claudeSettings(bin string) *Settings {
	return &Settings{
		DefaultProvider: ProviderClaude,
		Timeout:         10 * time.Second,
		MaxInputBytes:   1 << 20,
		MaxOutputBytes:  1 << 20,
		Claude:          ProviderConfig{Bin: bin},
	}
}

func TestBridgeRunsClaudeCLIWithNonInteractiveFlags(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat > /dev/null\necho '1.2.3'\n")

	b := NewBridgeWithSettings(claudeSettings(stub))
	out, err := b.Run("what is the latest version?")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", out)

	args := stubArgs(t, stub)
	assert.Contains(t, args, "-p")
	assert.Contains(t, args, "--input-format text")
	assert.Contains(t, args, "--output-format text")
}

func TestBridgePipesPromptOnStdin(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat\n")

	b := NewBridgeWithSettings(claudeSettings(stub))
	out, err := b.Run("ROUND-TRIP-ME")
	require.NoError(t, err)
	assert.Equal(t, "ROUND-TRIP-ME", out)
}

func TestBridgeStripsOuterCodeFence(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", `cat > /dev/null
printf '%s\n' '`+"```starlark"+`' 'ctx = {}' '`+"```"+`'
`)

	b := NewBridgeWithSettings(claudeSettings(stub))
	out, err := b.Run("fix the recipe")
	require.NoError(t, err)
	assert.Equal(t, "ctx = {}", out)
}

func TestBridgeTimeoutKillsSubprocess(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat > /dev/null\nsleep 10\n")

	s := claudeSettings(stub)
	s.Timeout = 200 * time.Millisecond
	b := NewBridgeWithSettings(s)

	start := time.Now()
	_, err := b.Run("hang")
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.LlmError))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestBridgeOutputCapBreach(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat > /dev/null\nhead -c 4096 /dev/zero | tr '\\0' 'x'\n")

	s := claudeSettings(stub)
	s.MaxOutputBytes = 64
	b := NewBridgeWithSettings(s)

	_, err := b.Run("flood me")
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.LlmError))
	assert.Contains(t, err.Error(), "max_output_bytes")
}

func TestBridgeInputCapBreachNeverSpawns(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat > /dev/null\necho ok\n")

	s := claudeSettings(stub)
	s.MaxInputBytes = 4
	b := NewBridgeWithSettings(s)

	_, err := b.Run("longer than four bytes")
	require.Error(t, err)
	assert.True(t, rerr.Is(err, rerr.LlmError))
	assert.Contains(t, err.Error(), "max_input_bytes")
	assert.NoFileExists(t, stub+".args")
}

func TestBridgeNonZeroExitSurfacesCodeAndStderr(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat > /dev/null\necho 'auth expired' 1>&2\nexit 3\n")

	b := NewBridgeWithSettings(claudeSettings(stub))
	_, err := b.Run("who am I")
	require.Error(t, err)

	re, ok := rerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rerr.LlmError, re.Kind)
	assert.Equal(t, 3, re.ExitCode)
	assert.Contains(t, re.Tail, "auth expired")
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestBridgeEmptyOutputIsAnError(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat > /dev/null\n")

	b := NewBridgeWithSettings(claudeSettings(stub))
	_, err := b.Run("say nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty output")
}

func TestBridgeCodexReadsAnswerFromLastMessageFile(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "codex", `out=""
while [ "$#" -gt 0 ]; do
  if [ "$1" = "--output-last-message" ]; then
    out="$2"
    shift 2
    continue
  fi
  shift
done
cat > /dev/null
if [ -z "$out" ]; then
  echo "missing --output-last-message" 1>&2
  exit 2
fi
printf 'codex-answer\n' > "$out"
echo "progress chatter"
`)

	s := &Settings{
		DefaultProvider: ProviderCodex,
		Timeout:         10 * time.Second,
		MaxInputBytes:   1 << 20,
		MaxOutputBytes:  1 << 20,
		Codex:           ProviderConfig{Bin: stub},
	}
	b := NewBridgeWithSettings(s)

	out, err := b.Run("extract something")
	require.NoError(t, err)
	assert.Equal(t, "codex-answer", out)

	args := stubArgs(t, stub)
	assert.Contains(t, args, "exec")
	assert.Contains(t, args, "--disable shell_tool")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(args), "-"))
}

func TestBridgeBreakerOpensAfterRepeatedFailures(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "claude", "cat > /dev/null\nexit 1\n")

	b := NewBridgeWithSettings(claudeSettings(stub))
	for i := 0; i < 3; i++ {
		_, err := b.Run("fail")
		require.Error(t, err)
	}

	_, err := b.Run("blocked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestStripOuterCodeFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "plain text", "plain text"},
		{"fence with tag", "```starlark\nctx = {}\n```", "ctx = {}"},
		{"fence without tag", "```\nhello\n```", "hello"},
		{"unterminated fence", "```\nno close", "```\nno close"},
		{"single line", "```not a block```", "```not a block```"},
		{"surrounding whitespace", "  ```\nbody\n```  \n", "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripOuterCodeFence(tc.in))
		})
	}
}

func TestParseProviderID(t *testing.T) {
	id, err := ParseProviderID(" Claude ")
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, id)

	id, err = ParseProviderID("codex")
	require.NoError(t, err)
	assert.Equal(t, ProviderCodex, id)

	_, err = ParseProviderID("gemini")
	assert.Error(t, err)
}
