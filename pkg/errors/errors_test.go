package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// ConsensusError Construction Tests
// -----------------------------------------------------------------------------

func TestNew(t *testing.T) {
	ce := New("TEST_ERROR", CategoryConfig, "test message")

	if ce.Code != "TEST_ERROR" {
		t.Errorf("expected Code 'TEST_ERROR', got %q", ce.Code)
	}
	if ce.Category != CategoryConfig {
		t.Errorf("expected Category CategoryConfig, got %v", ce.Category)
	}
	if ce.Context == nil {
		t.Error("expected Context map to be initialized, got nil")
	}
	if ce.Suggestions != nil {
		t.Errorf("expected Suggestions to be nil, got %v", ce.Suggestions)
	}
}

func TestConsensusError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConsensusError
		expected string
	}{
		{
			name:     "without cause",
			err:      New(ErrEmptySample, CategorySimulation, "sample is empty"),
			expected: "SIM_EMPTY_SAMPLE: sample is empty",
		},
		{
			name: "with cause",
			err: New(ErrIOReadFailed, CategoryIO, "failed to read results").
				WithCause(fmt.Errorf("permission denied")),
			expected: "IO_READ_FAILED: failed to read results: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrChannelClosed, CategorySimulation, "observer gone")
	b := New(ErrChannelClosed, CategorySimulation, "different message")
	c := New(ErrEmptyAgents, CategorySimulation, "observer gone")

	if !errors.Is(a, b) {
		t.Error("expected errors with the same code to match")
	}
	if errors.Is(a, c) {
		t.Error("expected errors with different codes not to match")
	}
}

func TestAsConsensusError_WrappedChain(t *testing.T) {
	inner := New(ErrEmptyAgents, CategorySimulation, "no agents")
	wrapped := fmt.Errorf("phase 3: %w", inner)

	ce, ok := AsConsensusError(wrapped)
	if !ok {
		t.Fatal("expected to find ConsensusError in wrapped chain")
	}
	if ce.Code != ErrEmptyAgents {
		t.Errorf("expected code %q, got %q", ErrEmptyAgents, ce.Code)
	}
	if !IsCode(wrapped, ErrEmptyAgents) {
		t.Error("expected IsCode to see through wrapping")
	}
	if !IsCategory(wrapped, CategorySimulation) {
		t.Error("expected IsCategory to see through wrapping")
	}
	if _, ok := AsConsensusError(errors.New("plain")); ok {
		t.Error("expected plain error not to convert")
	}
	if _, ok := AsConsensusError(nil); ok {
		t.Error("expected nil not to convert")
	}
}

func TestContextString_Sorted(t *testing.T) {
	ce := New("X", CategoryInternal, "m").
		WithContext("b", "2").
		WithContext("a", "1")

	if got := ce.ContextString(); got != `a="1", b="2"` {
		t.Errorf("ContextString() = %q", got)
	}
}

// -----------------------------------------------------------------------------
// Suggestion Tests
// -----------------------------------------------------------------------------

func TestInvalidField_AttachesFieldSuggestion(t *testing.T) {
	err := InvalidField("sample_size", "sample_size %d must be smaller than agent_count %d", 5, 5)

	if err.Code != ErrConfigInvalid {
		t.Fatalf("expected code %q, got %q", ErrConfigInvalid, err.Code)
	}
	if err.Context[ContextField] != "sample_size" {
		t.Errorf("expected field context, got %v", err.Context)
	}
	if len(err.Suggestions) < 2 {
		t.Fatalf("expected field and general suggestions, got %v", err.Suggestions)
	}
	if !strings.Contains(err.Suggestions[0], "sample_size") {
		t.Errorf("expected field-specific suggestion first, got %q", err.Suggestions[0])
	}
	for _, s := range err.Suggestions {
		if strings.Contains(s, "upper_bound_k") {
			t.Errorf("unexpected suggestion for another field: %q", s)
		}
	}
}

func TestRegistry_Priority(t *testing.T) {
	r := NewRegistry().
		RegisterSuggestion("C", Suggestion{Text: "low", Priority: 1}).
		RegisterSuggestion("C", Suggestion{Text: "high", Priority: 10})

	got := r.Get("C", nil)
	if len(got) != 2 || got[0] != "high" || got[1] != "low" {
		t.Errorf("expected [high low], got %v", got)
	}
	if r.HasSuggestions("missing") {
		t.Error("expected no suggestions for unknown code")
	}
}

// -----------------------------------------------------------------------------
// Display Tests
// -----------------------------------------------------------------------------

func TestSprint_PlainOutput(t *testing.T) {
	err := New(ErrIOWriteFailed, CategoryIO, "cannot write export").
		WithContext("path", "/tmp/out.csv").
		WithCause(errors.New("disk full")).
		WithSuggestion("free some space")

	out := Sprint(err)

	for _, want := range []string{
		"ERROR [IO_WRITE_FAILED]: cannot write export",
		"  path: /tmp/out.csv",
		"  cause: disk full",
		"  → free some space",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("expected no ANSI codes in plain output")
	}
}

func TestFormatter_StandardError(t *testing.T) {
	f := &Formatter{UseColor: true, Indent: "  "}
	out := f.Format(errors.New("boom"))
	if !strings.Contains(out, "Error: ") || !strings.Contains(out, "boom") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, colorRed) {
		t.Error("expected color codes when UseColor is set")
	}
	if f.Format(nil) != "" {
		t.Error("expected empty string for nil error")
	}
}

func TestCategoryLabel(t *testing.T) {
	if CategoryLabel(CategorySimulation) != "Simulation Error" {
		t.Errorf("unexpected label %q", CategoryLabel(CategorySimulation))
	}
	if CategoryLabel("other") != "Error" {
		t.Errorf("unexpected fallback label %q", CategoryLabel("other"))
	}
}
