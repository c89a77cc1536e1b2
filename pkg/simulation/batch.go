package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/r3d91ll/consensus/pkg/logging"
)

// BatchStatus is the lifecycle state of a Batch.
type BatchStatus string

const (
	BatchPending  BatchStatus = "pending"
	BatchRunning  BatchStatus = "running"
	BatchFinished BatchStatus = "finished"
	BatchAborted  BatchStatus = "aborted"
	BatchFailed   BatchStatus = "failed"
)

// Batch runs SimulationCount instances of one Config concurrently and
// broadcasts control messages to all of them.
type Batch struct {
	id       string
	cfg      Config
	controls *ControlBroadcaster
	observer Observer
	logger   *slog.Logger
	done     chan struct{}

	mu             sync.RWMutex
	status         BatchStatus
	abortRequested bool
	sims           []*Simulation
	latest         []*Snapshot
	phasesDone     int
	results        []Result
	err            error
	started        time.Time
	finished       time.Time
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithBatchObserver forwards every instance event to o.
func WithBatchObserver(o Observer) BatchOption {
	return func(b *Batch) { b.observer = o }
}

// WithBatchLogger sets the logger handed to every instance.
func WithBatchLogger(l *slog.Logger) BatchOption {
	return func(b *Batch) { b.logger = l }
}

// WithBatchID overrides the generated batch ID.
func WithBatchID(id string) BatchOption {
	return func(b *Batch) { b.id = id }
}

// NewBatch validates cfg eagerly; no goroutine is started.
func NewBatch(cfg Config, opts ...BatchOption) (*Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Batch{
		cfg:      cfg,
		controls: NewControlBroadcaster(),
		done:     make(chan struct{}),
		status:   BatchPending,
		latest:   make([]*Snapshot, cfg.SimulationCount),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.id == "" {
		b.id = NewRunID()
	}
	b.logger = logging.OrDefault(b.logger)
	return b, nil
}

// ID returns the batch ID.
func (b *Batch) ID() string { return b.id }

// Config returns the batch configuration.
func (b *Batch) Config() Config { return b.cfg }

// Controls returns the broadcaster shared by the batch's instances.
func (b *Batch) Controls() *ControlBroadcaster { return b.controls }

// Done is closed when Run returns.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Pause broadcasts Pause and returns the number of instances reached.
func (b *Batch) Pause() int { return b.controls.Publish(ControlPause) }

// Play broadcasts Play and returns the number of instances reached.
func (b *Batch) Play() int { return b.controls.Publish(ControlPlay) }

// Abort stops every instance and returns the number of instances reached.
// Before Run starts it marks the batch so every instance exits immediately
// with an empty result. While running it moves each instance's control
// state to Exit directly, so no instance can miss it.
func (b *Batch) Abort() int {
	b.mu.Lock()
	if b.status != BatchPending && b.status != BatchRunning {
		b.mu.Unlock()
		return 0
	}
	b.abortRequested = true
	reached := 0
	if b.status == BatchRunning {
		reached = int(b.cfg.SimulationCount)
	}
	sims := b.sims
	b.mu.Unlock()

	for _, sim := range sims {
		sim.Control().Exit()
	}
	b.controls.Publish(ControlAbort)
	return reached
}

// Send broadcasts an arbitrary control message.
func (b *Batch) Send(msg ControlMessage) int {
	if msg == ControlAbort {
		return b.Abort()
	}
	return b.controls.Publish(msg)
}

// Run starts every instance and waits for all of them. Results are ordered
// by instance index. Errors from failed instances are joined.
func (b *Batch) Run(ctx context.Context) ([]Result, error) {
	b.mu.Lock()
	if b.status != BatchPending {
		b.mu.Unlock()
		return nil, fmt.Errorf("batch %s already started", b.id)
	}
	b.status = BatchRunning
	b.started = time.Now().UTC()
	b.mu.Unlock()
	defer close(b.done)

	n := int(b.cfg.SimulationCount)
	observer := ObserverFunc(b.forward)
	sims := make([]*Simulation, n)
	subs := make([]*ControlSubscription, n)
	for i := range n {
		var seed uint64
		if b.cfg.Seed != 0 {
			seed = b.cfg.Seed + uint64(i)
		}
		sim, err := New(b.cfg,
			WithSeed(seed),
			WithInstance(i),
			WithObserver(observer),
			WithLogger(b.logger.With("batch", b.id)),
		)
		if err != nil {
			b.complete(nil, err)
			return nil, err
		}
		sims[i] = sim
		subs[i] = b.controls.Subscribe()
	}

	// Aborts from here on reach sims directly; earlier ones left the flag.
	b.mu.Lock()
	b.sims = sims
	abort := b.abortRequested
	b.mu.Unlock()
	if abort {
		for _, sim := range sims {
			sim.Control().Exit()
		}
	}

	b.logger.Info("batch started", "batch", b.id, "instances", n,
		"agents", b.cfg.AgentCount, "sample_size", b.cfg.SampleSize,
		"upper_bound_k", b.cfg.UpperBoundK, "model", b.cfg.Model)

	results := make([]Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer subs[i].Close()
			results[i], errs[i] = sims[i].Run(ctx, subs[i].C)
		}(i)
	}
	wg.Wait()

	err := errors.Join(errs...)
	b.complete(results, err)
	b.logger.Info("batch finished", "batch", b.id, "status", b.Status().Status)
	return results, err
}

func (b *Batch) complete(results []Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = results
	b.err = err
	b.finished = time.Now().UTC()
	switch {
	case err != nil:
		b.status = BatchFailed
	case anyAborted(results):
		b.status = BatchAborted
	default:
		b.status = BatchFinished
	}
}

func anyAborted(results []Result) bool {
	for _, r := range results {
		if r.Aborted {
			return true
		}
	}
	return false
}

// forward records progress and passes the event on to the batch observer.
func (b *Batch) forward(ev Event) error {
	ev.Batch = b.id

	b.mu.Lock()
	switch ev.Type {
	case EventUpdate:
		if ev.Instance >= 0 && ev.Instance < len(b.latest) {
			b.latest[ev.Instance] = ev.Snapshot
		}
	case EventNext:
		b.phasesDone++
	case EventFinish:
		if ev.Result != nil && !ev.Result.Aborted {
			b.phasesDone++
		}
	}
	b.mu.Unlock()

	if b.observer == nil {
		return nil
	}
	return b.observer.Publish(ev)
}

// BatchSummary is a point-in-time view of a batch.
type BatchSummary struct {
	ID          string      `json:"id"`
	Status      BatchStatus `json:"status"`
	Config      Config      `json:"config"`
	PhasesDone  int         `json:"phases_done"`
	PhasesTotal int         `json:"phases_total"`
	Latest      []Snapshot  `json:"latest,omitempty"`
	Error       string      `json:"error,omitempty"`
	Started     time.Time   `json:"started,omitempty"`
	Finished    time.Time   `json:"finished,omitempty"`
}

// Status returns a summary of the batch.
func (b *Batch) Status() BatchSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	summary := BatchSummary{
		ID:          b.id,
		Status:      b.status,
		Config:      b.cfg,
		PhasesDone:  b.phasesDone,
		PhasesTotal: int(b.cfg.SimulationCount) * b.cfg.PhaseCount(),
		Started:     b.started,
		Finished:    b.finished,
	}
	for _, snap := range b.latest {
		if snap != nil {
			summary.Latest = append(summary.Latest, *snap)
		}
	}
	if b.err != nil {
		summary.Error = b.err.Error()
	}
	return summary
}

// Results returns the instance results once Run has returned.
func (b *Batch) Results() []Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Result, len(b.results))
	copy(out, b.results)
	return out
}
