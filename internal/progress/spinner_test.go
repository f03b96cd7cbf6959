package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func withTerminal(t *testing.T, isTTY bool) {
	t.Helper()
	orig := IsTerminalFunc
	IsTerminalFunc = func(fd int) bool { return isTTY }
	t.Cleanup(func() { IsTerminalFunc = orig })
}

func TestSpinner_NonTTYPrintsMessageOnce(t *testing.T) {
	withTerminal(t, false)

	output := &bytes.Buffer{}
	s := NewSpinner(output)

	s.Start("Generating...")
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	result := output.String()
	if count := strings.Count(result, "Generating..."); count != 1 {
		t.Errorf("non-TTY should print message exactly once, got %d in %q", count, result)
	}
}

func TestSpinner_TTYAnimates(t *testing.T) {
	withTerminal(t, true)

	output := &bytes.Buffer{}
	s := NewSpinner(output)

	s.Start("Analyzing...")
	time.Sleep(350 * time.Millisecond) // let a few ticks render
	s.Stop()

	result := output.String()
	if !strings.Contains(result, "\r") {
		t.Error("TTY output should contain carriage returns from animation")
	}
	if !strings.Contains(result, "Analyzing...") {
		t.Errorf("output should contain message, got %q", result)
	}
}

func TestSpinner_SetMessageWhileRunning(t *testing.T) {
	withTerminal(t, true)

	output := &bytes.Buffer{}
	s := NewSpinner(output)

	s.Start("Step 1...")
	time.Sleep(200 * time.Millisecond)
	s.SetMessage("Step 2...")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	result := output.String()
	if !strings.Contains(result, "Step 1...") {
		t.Error("output should contain first message")
	}
	if !strings.Contains(result, "Step 2...") {
		t.Error("output should contain second message")
	}
}

func TestSpinner_RestartingUpdatesMessageWithoutNewGoroutine(t *testing.T) {
	withTerminal(t, true)

	output := &bytes.Buffer{}
	s := NewSpinner(output)

	s.Start("Phase 1")
	time.Sleep(150 * time.Millisecond)
	s.Start("Phase 2") // Start again before Stop should just retarget the message
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if !strings.Contains(output.String(), "Phase 2") {
		t.Error("output should contain the updated message")
	}
}

func TestSpinner_StopWithMessage_TTY(t *testing.T) {
	withTerminal(t, true)

	output := &bytes.Buffer{}
	s := NewSpinner(output)

	s.Start("Working...")
	time.Sleep(200 * time.Millisecond)
	s.StopWithMessage("Done!")

	if !strings.Contains(output.String(), "Done!") {
		t.Errorf("output should contain final message, got %q", output.String())
	}
}

func TestSpinner_StopWithMessage_NonTTYPrintsBothMessages(t *testing.T) {
	withTerminal(t, false)

	output := &bytes.Buffer{}
	s := NewSpinner(output)

	s.Start("Working...")
	time.Sleep(50 * time.Millisecond)
	s.StopWithMessage("Done!")

	result := output.String()
	if !strings.Contains(result, "Working...") {
		t.Error("output should contain start message")
	}
	if !strings.Contains(result, "Done!") {
		t.Error("output should contain final message")
	}
}

func TestSpinner_DoubleStopDoesNotPanic(t *testing.T) {
	withTerminal(t, true)

	output := &bytes.Buffer{}
	s := NewSpinner(output)

	s.Start("Working...")
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	s.Stop() // must be a no-op, not a double-close panic
}

func TestSpinner_StopWithoutStartDoesNotPanic(t *testing.T) {
	s := NewSpinner(&bytes.Buffer{})
	s.Stop()
}

func TestSpinner_NilOutputDefaultsToStderr(t *testing.T) {
	s := NewSpinner(nil)
	if s.output == nil {
		t.Error("output should default to os.Stderr, not stay nil")
	}
}
