// Package progress renders the two kinds of ad hoc terminal feedback the
// engine shows for long-running work: Writer, a download/hash progress
// bar wrapped around the stream being verified (see internal/checksum),
// and Spinner, the "-> phase" sub-action indicator the lifecycle
// orchestrator shows while a recipe hook runs. Off a terminal, Spinner
// writes only its status lines; Writer draws its bar whatever the output.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// IsTerminalFunc checks whether a file descriptor is a terminal.
// Overridable in tests.
var IsTerminalFunc = term.IsTerminal

// ShouldShowProgress reports whether stdout is a terminal, and therefore
// whether a Spinner animates instead of printing a single line. Writer
// does not consult it.
func ShouldShowProgress() bool {
	return IsTerminalFunc(int(os.Stdout.Fd()))
}

// Writer wraps an io.Writer (typically a hash.Hash fed by an io.Copy)
// and prints a rate-limited progress bar to output as bytes pass
// through it.
type Writer struct {
	writer    io.Writer
	output    io.Writer
	total     int64
	written   int64
	startTime time.Time
	lastPrint time.Time
	mu        sync.Mutex
}

// NewWriter wraps w, reporting progress against total to output. If
// total is <= 0 (size unknown ahead of time) the bar degrades to a
// running byte count and throughput, with no percentage or ETA.
func NewWriter(w io.Writer, total int64, output io.Writer) *Writer {
	return &Writer{
		writer:    w,
		output:    output,
		total:     total,
		startTime: time.Now(),
	}
}

func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	if n > 0 {
		pw.mu.Lock()
		pw.written += int64(n)
		pw.printProgress()
		pw.mu.Unlock()
	}
	return n, err
}

// Finish clears the progress line without printing a final status -
// callers print their own completion message afterward.
func (pw *Writer) Finish() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	fmt.Fprintf(pw.output, "\r%s\r", strings.Repeat(" ", 80))
}

func (pw *Writer) printProgress() {
	now := time.Now()
	if now.Sub(pw.lastPrint) < 100*time.Millisecond {
		return // cap at 10 updates/sec to avoid flicker
	}
	pw.lastPrint = now

	elapsed := now.Sub(pw.startTime).Seconds()
	if elapsed < 0.1 {
		return
	}

	speed := float64(pw.written) / elapsed

	var line string
	if pw.total > 0 {
		percent := float64(pw.written) / float64(pw.total) * 100
		if percent > 100 {
			percent = 100
		}

		etaStr := "--:--"
		if speed > 0 {
			remaining := float64(pw.total-pw.written) / speed
			if remaining < 0 {
				remaining = 0
			}
			etaStr = formatDuration(remaining)
		}

		const barWidth = 30
		filled := int(percent / 100 * float64(barWidth))
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("=", filled)
		if filled < barWidth {
			bar += ">" + strings.Repeat(" ", barWidth-filled-1)
		}

		line = fmt.Sprintf("\r   [%s] %3.0f%% (%s/%s) %s/s ETA: %s",
			bar, percent, formatBytes(pw.written), formatBytes(pw.total), formatBytes(int64(speed)), etaStr)
	} else {
		line = fmt.Sprintf("\r   Downloaded: %s (%s/s)", formatBytes(pw.written), formatBytes(int64(speed)))
	}

	if len(line) < 80 {
		line += strings.Repeat(" ", 80-len(line))
	}
	_, _ = fmt.Fprint(pw.output, line)
}

func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.1fGB", float64(b)/GB)
	case b >= MB:
		return fmt.Sprintf("%.1fMB", float64(b)/MB)
	case b >= KB:
		return fmt.Sprintf("%.1fKB", float64(b)/KB)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

func formatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
