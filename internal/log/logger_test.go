package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newTextLogger(buf *bytes.Buffer, level slog.Level) Logger {
	return New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}))
}

func TestNew_WritesMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf, slog.LevelDebug)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("output missing message: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("output missing attr: %s", output)
	}
}

func TestLogger_EachLevelWritesItsLineAndLabel(t *testing.T) {
	cases := []struct {
		name string
		call func(Logger)
	}{
		{"Debug", func(l Logger) { l.Debug("debug msg") }},
		{"Info", func(l Logger) { l.Info("info msg") }},
		{"Warn", func(l Logger) { l.Warn("warn msg") }},
		{"Error", func(l Logger) { l.Error("error msg") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newTextLogger(&buf, slog.LevelDebug)

			tc.call(logger)

			output := buf.String()
			wantMsg := strings.ToLower(tc.name) + " msg"
			if !strings.Contains(output, wantMsg) {
				t.Errorf("output missing %q: %s", wantMsg, output)
			}
			if !strings.Contains(output, strings.ToUpper(tc.name)) {
				t.Errorf("output missing level label %q: %s", tc.name, output)
			}
		})
	}
}

func TestLogger_WithAddsPersistentAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf, slog.LevelDebug)

	child := logger.With("tool", "gh", "version", "2.0.0")
	child.Info("installing tool")

	output := buf.String()
	for _, want := range []string{"tool=gh", "version=2.0.0", "installing tool"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}
}

func TestLogger_WithChainsAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf, slog.LevelDebug)

	child := logger.With("tool", "gh").With("action", "download")
	child.Debug("starting")

	output := buf.String()
	if !strings.Contains(output, "tool=gh") || !strings.Contains(output, "action=download") {
		t.Errorf("output missing chained attrs: %s", output)
	}
}

func TestNewNoop_NeverPanics(t *testing.T) {
	logger := NewNoop()

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	child := logger.With("key", "value")
	child.Info("should not panic")
}

func TestNoopLogger_WithStaysNoop(t *testing.T) {
	logger := NewNoop()

	child := logger.With("key", "value")
	if _, ok := child.(noopLogger); !ok {
		t.Error("With() on noopLogger should return a noopLogger")
	}
}

func TestDefault_SetDefaultSwapsGlobalLogger(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	Default().Info("should not panic") // initial default is noop

	var buf bytes.Buffer
	SetDefault(newTextLogger(&buf, slog.LevelDebug))

	Default().Info("custom logger message")

	if !strings.Contains(buf.String(), "custom logger message") {
		t.Errorf("Default() did not use the logger set via SetDefault: %s", buf.String())
	}
}

func TestDefault_ConcurrentReadsAndWritesDontRace(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				Default().Info("concurrent read")
			}
			done <- true
		}()
		go func() {
			for j := 0; j < 100; j++ {
				SetDefault(NewNoop())
			}
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}

func TestLogger_HandlerLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf, slog.LevelWarn)

	logger.Debug("debug - should not appear")
	logger.Info("info - should not appear")
	logger.Warn("warn - should appear")
	logger.Error("error - should appear")

	output := buf.String()
	if strings.Contains(output, "debug - should not appear") {
		t.Error("debug message should have been filtered")
	}
	if strings.Contains(output, "info - should not appear") {
		t.Error("info message should have been filtered")
	}
	if !strings.Contains(output, "warn - should appear") {
		t.Errorf("warn message should appear: %s", output)
	}
	if !strings.Contains(output, "error - should appear") {
		t.Errorf("error message should appear: %s", output)
	}
}

func TestLogger_AcceptsMixedValueTypeAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf, slog.LevelDebug)

	logger.Info("test",
		"string", "value",
		"int", 42,
		"bool", true,
		"float", 3.14,
	)

	output := buf.String()
	for _, want := range []string{"string=value", "int=42", "bool=true"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}
}
