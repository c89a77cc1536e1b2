package spinner

import (
	"fmt"
	"sync"

	"github.com/r3d91ll/consensus/pkg/simulation"
)

// BatchProgress follows a batch through its K-phases. It implements
// simulation.Observer: every Next event and every completed Finish counts
// one phase, so the bar fills when all instances reach the last K.
type BatchProgress struct {
	bar *ProgressBar

	mu       sync.Mutex
	k        map[int]uint16
	finished int
	aborted  int
	paused   bool
}

// NewBatchProgress creates a bar sized SimulationCount × (UpperBoundK-1).
// config.Total is overwritten.
func NewBatchProgress(cfg simulation.Config, config ProgressConfig) *BatchProgress {
	config.Total = max(1, int(cfg.SimulationCount)*cfg.PhaseCount())
	if config.Message == "" {
		config.Message = fmt.Sprintf("n=%d j=%d", cfg.AgentCount, cfg.SampleSize)
	}
	return &BatchProgress{
		bar: NewProgressWithConfig(config),
		k:   make(map[int]uint16),
	}
}

// Bar returns the underlying progress bar.
func (b *BatchProgress) Bar() *ProgressBar { return b.bar }

// Start shows the bar.
func (b *BatchProgress) Start() { b.bar.Start() }

// Publish implements simulation.Observer.
func (b *BatchProgress) Publish(ev simulation.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case simulation.EventNext:
		b.k[ev.Instance] = ev.K
		b.bar.Increment()
	case simulation.EventFinish:
		b.finished++
		if ev.Result != nil && ev.Result.Aborted {
			b.aborted++
		} else {
			b.bar.Increment()
		}
	default:
		return nil
	}
	b.bar.SetSuffix(b.suffixLocked())
	return nil
}

// SetPaused marks the bar as paused or running.
func (b *BatchProgress) SetPaused(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = paused
	b.bar.SetSuffix(b.suffixLocked())
}

func (b *BatchProgress) suffixLocked() string {
	if b.paused {
		return "[paused]"
	}
	var maxK uint16
	for _, k := range b.k {
		maxK = max(maxK, k)
	}
	if maxK == 0 {
		return ""
	}
	return fmt.Sprintf("K=%d", maxK)
}

// Finish prints the closing line for the batch summary.
func (b *BatchProgress) Finish(summary simulation.BatchSummary) {
	msg := fmt.Sprintf("batch %s %s (%d/%d phases)", shortID(summary.ID), summary.Status,
		summary.PhasesDone, summary.PhasesTotal)
	switch summary.Status {
	case simulation.BatchFinished:
		b.bar.Complete(msg)
	case simulation.BatchAborted:
		b.bar.Abort(msg)
	default:
		if summary.Error != "" {
			msg += ": " + summary.Error
		}
		b.bar.Fail(msg)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
