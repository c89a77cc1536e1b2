package spinner

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/r3d91ll/consensus/pkg/simulation"
)

// safeBuffer is a bytes.Buffer guarded for use by animation goroutines.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func plainConfig(buf *bytes.Buffer, tty bool) ProgressConfig {
	return ProgressConfig{
		Message:        "sweep",
		Width:          10,
		ShowPercentage: true,
		ShowCount:      true,
		Writer:         buf,
		IsTTY:          boolPtr(tty),
	}
}

func TestNewProgress_Defaults(t *testing.T) {
	p := NewProgressWithConfig(ProgressConfig{Writer: &bytes.Buffer{}})
	if p.Total() != 100 {
		t.Errorf("expected default total 100, got %d", p.Total())
	}
	if p.IsActive() {
		t.Error("progress bar should not be active before Start()")
	}
}

func TestProgress_BuildOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := plainConfig(&buf, true)
	cfg.Total = 4
	p := NewProgressWithConfig(cfg)

	p.Start()
	p.Increment()
	p.SetSuffix("K=3")

	out := buf.String()
	if !strings.Contains(out, "sweep [██░░░░░░░░] 25% (1/4) K=3") {
		t.Errorf("unexpected bar output %q", out)
	}
}

func TestProgress_SetClamps(t *testing.T) {
	var buf bytes.Buffer
	cfg := plainConfig(&buf, true)
	cfg.Total = 10
	p := NewProgressWithConfig(cfg)

	p.Set(5) // inactive: ignored
	if p.Current() != 0 {
		t.Errorf("expected Set before Start to be ignored, got %d", p.Current())
	}

	p.Start()
	tests := []struct {
		set, want int
	}{
		{-3, 0},
		{4, 4},
		{42, 10},
	}
	for _, tt := range tests {
		p.Set(tt.set)
		if p.Current() != tt.want {
			t.Errorf("Set(%d): current = %d, want %d", tt.set, p.Current(), tt.want)
		}
	}
	if p.Percentage() != 100 {
		t.Errorf("expected 100%%, got %v", p.Percentage())
	}
}

func TestProgress_NonTTYPrintsTenths(t *testing.T) {
	var buf bytes.Buffer
	cfg := plainConfig(&buf, false)
	cfg.Total = 20
	p := NewProgressWithConfig(cfg)

	p.Start()
	for range 20 {
		p.Increment()
	}
	p.Complete("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// Start line, ten tenth lines, completion line.
	if len(lines) != 12 {
		t.Errorf("expected 12 lines, got %d: %q", len(lines), buf.String())
	}
	if last := lines[len(lines)-1]; last != "✓ sweep complete" {
		t.Errorf("expected completion line, got %q", last)
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{200 * time.Millisecond, "ETA: 1s"},
		{30 * time.Second, "ETA: 30s"},
		{75 * time.Second, "ETA: 1m 15s"},
		{2 * time.Minute, "ETA: 2m"},
		{150 * time.Minute, "ETA: 2h 30m"},
		{3 * time.Hour, "ETA: 3h"},
	}
	for _, tt := range tests {
		if got := formatETA(tt.d); got != tt.want {
			t.Errorf("formatETA(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// -----------------------------------------------------------------------------
// BatchProgress
// -----------------------------------------------------------------------------

func batchConfig() simulation.Config {
	cfg := simulation.DefaultConfig()
	cfg.AgentCount = 50
	cfg.SimulationCount = 2
	cfg.UpperBoundK = 4
	return cfg
}

func TestBatchProgress_Total(t *testing.T) {
	bp := NewBatchProgress(batchConfig(), plainConfig(&bytes.Buffer{}, false))
	if got := bp.Bar().Total(); got != 6 {
		t.Errorf("expected total 2 x 3 = 6, got %d", got)
	}
}

func TestBatchProgress_CountsPhases(t *testing.T) {
	var buf bytes.Buffer
	bp := NewBatchProgress(batchConfig(), plainConfig(&buf, true))
	bp.Start()

	events := []simulation.Event{
		{Type: simulation.EventUpdate, Instance: 0, K: 2},
		{Type: simulation.EventNext, Instance: 0, K: 3},
		{Type: simulation.EventNext, Instance: 1, K: 3},
		{Type: simulation.EventNext, Instance: 0, K: 4},
		{Type: simulation.EventFinish, Instance: 0, K: 4, Result: &simulation.Result{}},
		{Type: simulation.EventFinish, Instance: 1, K: 3, Result: &simulation.Result{Aborted: true}},
	}
	for _, ev := range events {
		if err := bp.Publish(ev); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if got := bp.Bar().Current(); got != 4 {
		t.Errorf("expected 4 phases counted, got %d", got)
	}
	if !strings.Contains(buf.String(), "K=4") {
		t.Errorf("expected highest K in suffix, got %q", buf.String())
	}

	bp.SetPaused(true)
	if !strings.Contains(buf.String(), "[paused]") {
		t.Errorf("expected paused marker, got %q", buf.String())
	}

	bp.Finish(simulation.BatchSummary{ID: "0123456789abcdef", Status: simulation.BatchAborted, PhasesDone: 4, PhasesTotal: 6})
	if !strings.Contains(buf.String(), "batch 01234567 aborted (4/6 phases)") {
		t.Errorf("expected aborted summary line, got %q", buf.String())
	}
	if bp.Bar().IsActive() {
		t.Error("bar should be inactive after Finish")
	}
}

func TestBatchProgress_DrivenByBatch(t *testing.T) {
	var buf bytes.Buffer
	cfg := batchConfig()
	cfg.Seed = 3
	bp := NewBatchProgress(cfg, plainConfig(&buf, false))

	b, err := simulation.NewBatch(cfg, simulation.WithBatchObserver(bp))
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}
	bp.Start()
	if _, err := b.Run(t.Context()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	bp.Finish(b.Status())

	if bp.Bar().Current() != bp.Bar().Total() {
		t.Errorf("expected a full bar, got %d/%d", bp.Bar().Current(), bp.Bar().Total())
	}
	if !strings.Contains(buf.String(), "finished (6/6 phases)") {
		t.Errorf("expected finished summary, got %q", buf.String())
	}
}
