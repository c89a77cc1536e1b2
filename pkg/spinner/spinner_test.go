package spinner

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

// TestNew verifies defaults and that a buffer is never treated as a terminal.
func TestNew(t *testing.T) {
	s := New("loading")
	if s.Message() != "loading" {
		t.Errorf("expected message 'loading', got %q", s.Message())
	}
	if s.IsActive() {
		t.Error("spinner should not be active before Start()")
	}

	buffered := NewWithConfig(Config{Writer: &bytes.Buffer{}})
	if buffered.IsTTY() {
		t.Error("a bytes.Buffer must not be detected as a terminal")
	}
}

// TestSpinner_NonTTY verifies the static fallback.
func TestSpinner_NonTTY(t *testing.T) {
	var buf bytes.Buffer
	s := NewWithConfig(Config{Message: "opening archive", Writer: &buf, IsTTY: boolPtr(false)})

	s.Start()
	s.Start() // no-op
	if !s.IsActive() {
		t.Fatal("spinner should be active after Start()")
	}
	s.Success("archive ready")

	out := buf.String()
	if strings.Count(out, "opening archive") != 1 {
		t.Errorf("expected one static start line, got %q", out)
	}
	if !strings.Contains(out, "✓ archive ready") {
		t.Errorf("expected success line, got %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("non-TTY output must not contain ANSI codes: %q", out)
	}
}

// TestSpinner_TTYAnimates verifies frames are drawn and the cursor restored.
func TestSpinner_TTYAnimates(t *testing.T) {
	var buf safeBuffer
	s := NewWithConfig(Config{
		CharSet:     Line,
		Message:     "waiting",
		RefreshRate: 5 * time.Millisecond,
		Writer:      &buf,
		IsTTY:       boolPtr(true),
	})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Fail("gave up")

	out := buf.String()
	if !strings.Contains(out, hideCursor) || !strings.Contains(out, showCursor) {
		t.Error("expected cursor to be hidden and restored")
	}
	if !strings.Contains(out, "| waiting") {
		t.Errorf("expected first frame, got %q", out)
	}
	if !strings.Contains(out, colorRed+symbolFailure+colorReset+" gave up") {
		t.Errorf("expected coloured failure line, got %q", out)
	}
	if s.IsActive() {
		t.Error("spinner should be inactive after Fail()")
	}
}

// TestSpinner_StopIdle verifies Stop on a never-started spinner is safe.
func TestSpinner_StopIdle(t *testing.T) {
	s := NewWithConfig(Config{Writer: &bytes.Buffer{}})
	s.Stop()
	s.Stop()
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1200 * time.Millisecond, "(1.2s)"},
		{90 * time.Second, "(1m 30s)"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
