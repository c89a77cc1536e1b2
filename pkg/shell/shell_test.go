package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/logging"
	"github.com/r3d91ll/consensus/pkg/runner"
	"github.com/r3d91ll/consensus/pkg/simulation"
)

func smallConfig() simulation.Config {
	cfg := simulation.DefaultConfig()
	cfg.AgentCount = 30
	cfg.SampleSize = 3
	cfg.UpperBoundK = 4
	cfg.SimulationCount = 2
	cfg.Seed = 7
	return cfg
}

type shellFixture struct {
	shell    *Shell
	runner   *runner.Runner
	batch    *simulation.Batch
	out      *bytes.Buffer
	prompter *MockPrompter
}

// newShellFixture attaches a shell to a started but not yet executed batch.
func newShellFixture(t *testing.T) *shellFixture {
	t.Helper()
	r := runner.New(runner.WithLogger(logging.Discard()))
	b, err := r.Start(smallConfig())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	out := &bytes.Buffer{}
	p := NewMockPrompter(true)
	s := New(r, b, Config{Out: out, Prompter: p})
	return &shellFixture{shell: s, runner: r, batch: b, out: out, prompter: p}
}

// finish runs the attached batch to completion.
func (f *shellFixture) finish(t *testing.T) {
	t.Helper()
	if _, err := f.runner.Execute(context.Background(), f.batch); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
}

func (f *shellFixture) exec(t *testing.T, line string) string {
	t.Helper()
	f.out.Reset()
	if err := f.shell.Exec(context.Background(), line); err != nil {
		t.Fatalf("%s failed: %v", line, err)
	}
	return f.out.String()
}

// -----------------------------------------------------------------------------
// Dispatch
// -----------------------------------------------------------------------------

func TestExec_Dispatch(t *testing.T) {
	f := newShellFixture(t)

	tests := []struct {
		name string
		line string
		code string
	}{
		{"blank line", "   ", ""},
		{"plain text", "hello", cerrors.ErrCommandUnknown},
		{"unknown command", "/rewind", cerrors.ErrCommandUnknown},
		{"attach without id", "/attach", cerrors.ErrCommandInvalidArgs},
		{"export without file", "/export", cerrors.ErrCommandInvalidArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.shell.Exec(context.Background(), tt.line)
			if tt.code == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !cerrors.IsCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestExec_Quit(t *testing.T) {
	f := newShellFixture(t)
	for _, line := range []string{"/quit", "/q"} {
		if err := f.shell.Exec(context.Background(), line); err != errQuit {
			t.Errorf("%s: expected errQuit, got %v", line, err)
		}
	}
}

func TestExec_Help(t *testing.T) {
	f := newShellFixture(t)

	out := f.exec(t, "/help")
	if !strings.Contains(out, "Consensus Shell Commands") {
		t.Errorf("expected full help, got %q", out)
	}

	out = f.exec(t, "/h pause")
	if !strings.Contains(out, "/pause") || strings.Contains(out, "Consensus Shell Commands") {
		t.Errorf("expected help for /pause only, got %q", out)
	}
}

func TestExec_NoBatch(t *testing.T) {
	r := runner.New(runner.WithLogger(logging.Discard()))
	s := New(r, nil, Config{Out: &bytes.Buffer{}})

	for _, line := range []string{"/pause", "/status", "/plot"} {
		if err := s.Exec(context.Background(), line); !cerrors.IsCode(err, cerrors.ErrCommandInvalidArgs) {
			t.Errorf("%s: expected no-batch error, got %v", line, err)
		}
	}
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

func TestExec_Control(t *testing.T) {
	t.Run("pause before start has no effect", func(t *testing.T) {
		f := newShellFixture(t)
		out := f.exec(t, "/pause")
		if !strings.Contains(out, "has not started; nothing to pause") {
			t.Errorf("expected queued message, got %q", out)
		}
	})

	t.Run("abort asks for confirmation", func(t *testing.T) {
		f := newShellFixture(t)
		f.exec(t, "/abort")
		if f.prompter.CallCount() != 1 {
			t.Fatalf("expected one prompt, got %d", f.prompter.CallCount())
		}
		if !strings.Contains(f.prompter.Prompts[0], "Abort batch") {
			t.Errorf("unexpected prompt %q", f.prompter.Prompts[0])
		}

		f.finish(t)
		if got := f.batch.Status().Status; got != simulation.BatchAborted {
			t.Errorf("expected aborted batch, got %s", got)
		}
	})

	t.Run("declined abort leaves the batch alone", func(t *testing.T) {
		f := newShellFixture(t)
		f.prompter.Response = false
		out := f.exec(t, "/stop")
		if !strings.Contains(out, "Abort cancelled.") {
			t.Errorf("expected cancellation, got %q", out)
		}

		f.finish(t)
		if got := f.batch.Status().Status; got != simulation.BatchFinished {
			t.Errorf("expected finished batch, got %s", got)
		}
	})

	t.Run("abort -y skips confirmation", func(t *testing.T) {
		f := newShellFixture(t)
		f.exec(t, "/abort -y")
		if f.prompter.CallCount() != 0 {
			t.Errorf("expected no prompt, got %d", f.prompter.CallCount())
		}
	})

	t.Run("finished batch rejects control", func(t *testing.T) {
		f := newShellFixture(t)
		f.finish(t)
		err := f.shell.Exec(context.Background(), "/play")
		if !cerrors.IsCode(err, cerrors.ErrRunFinished) {
			t.Errorf("expected ErrRunFinished, got %v", err)
		}
	})
}

// -----------------------------------------------------------------------------
// Inspection
// -----------------------------------------------------------------------------

func TestExec_Status(t *testing.T) {
	f := newShellFixture(t)

	out := f.exec(t, "/status")
	for _, want := range []string{f.batch.ID(), "pending", "n=30 j=3 K=4 x2", "0/6"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in status, got:\n%s", want, out)
		}
	}

	f.finish(t)
	out = f.exec(t, "/s")
	for _, want := range []string{"finished", "6/6", "elapsed", "#1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in status, got:\n%s", want, out)
		}
	}
}

func TestExec_PlotWhileRunning(t *testing.T) {
	f := newShellFixture(t)
	err := f.shell.Exec(context.Background(), "/plot")
	if !cerrors.IsCode(err, cerrors.ErrCommandInvalidArgs) {
		t.Errorf("expected error before the batch finished, got %v", err)
	}
}

func TestExec_Plot(t *testing.T) {
	f := newShellFixture(t)
	f.finish(t)

	out := f.exec(t, "/plot")
	if !strings.Contains(out, "Mean over 2 run(s)") {
		t.Errorf("expected averaged plot, got:\n%s", out)
	}

	out = f.exec(t, "/plot 1")
	if !strings.Contains(out, "Instance 1 (seed 8)") {
		t.Errorf("expected instance plot, got:\n%s", out)
	}
	for _, k := range []string{"2", "3", "4"} {
		if !strings.Contains(out, "\n     "+k+" ") {
			t.Errorf("expected row for K=%s, got:\n%s", k, out)
		}
	}

	if err := f.shell.Exec(context.Background(), "/plot 5"); !cerrors.IsCode(err, cerrors.ErrCommandInvalidArgs) {
		t.Errorf("expected invalid instance, got %v", err)
	}
}

func TestExec_Entropy(t *testing.T) {
	f := newShellFixture(t)
	f.finish(t)

	out := f.exec(t, "/entropy 0")
	if !strings.Contains(out, "Instance 0 entropy over 3 phase(s)") {
		t.Errorf("unexpected entropy output:\n%s", out)
	}
	if !strings.Contains(out, "interactions") {
		t.Errorf("expected entropy table, got:\n%s", out)
	}
}

func TestExec_RunsAndAttach(t *testing.T) {
	f := newShellFixture(t)
	other, err := f.runner.Start(smallConfig())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	out := f.exec(t, "/runs")
	if !strings.Contains(out, "* "+shortID(f.batch.ID())) {
		t.Errorf("expected attached batch marked, got:\n%s", out)
	}
	if !strings.Contains(out, "  "+shortID(other.ID())) {
		t.Errorf("expected second batch listed, got:\n%s", out)
	}

	f.exec(t, "/attach "+other.ID()[:8])
	if f.shell.Batch() != other {
		t.Error("expected shell to attach to the second batch")
	}

	err = f.shell.Exec(context.Background(), "/attach missing")
	if !cerrors.IsCode(err, cerrors.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExec_Export(t *testing.T) {
	f := newShellFixture(t)
	f.finish(t)
	dir := t.TempDir()

	records := filepath.Join(dir, "runs.csv")
	f.exec(t, "/export "+records)
	data, err := os.ReadFile(records)
	if err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	if !strings.HasPrefix(string(data), "fingerprint,") {
		t.Errorf("expected records header, got %q", data)
	}

	plot := filepath.Join(dir, "plot.csv")
	f.exec(t, "/export "+plot+" 0")
	data, err = os.ReadFile(plot)
	if err != nil {
		t.Fatalf("expected plot file: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 4 {
		t.Errorf("expected header and 3 rows, got %d lines", len(lines))
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func TestFindBatch_Ambiguous(t *testing.T) {
	reg := simulation.NewRegistry()
	for _, id := range []string{"abc-1", "abc-2"} {
		b, err := simulation.NewBatch(smallConfig(), simulation.WithBatchID(id))
		if err != nil {
			t.Fatalf("NewBatch failed: %v", err)
		}
		reg.Register(b)
	}

	if _, err := findBatch(reg, "abc"); !cerrors.IsCode(err, cerrors.ErrCommandInvalidArgs) {
		t.Errorf("expected ambiguity error, got %v", err)
	}
	if b, err := findBatch(reg, "abc-2"); err != nil || b.ID() != "abc-2" {
		t.Errorf("expected exact match, got %v", err)
	}
}
