// Package runner executes simulation batches and persists what they produce.
// It registers every batch so it can be controlled while it runs, merges
// finished results into the JSON results file and archives each instance in
// the run store.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/logging"
	"github.com/r3d91ll/consensus/pkg/simulation"
	"github.com/r3d91ll/consensus/pkg/store"
)

// Outcome is what one batch left behind.
type Outcome struct {
	Batch   simulation.BatchSummary `json:"batch"`
	Results []simulation.Result     `json:"results"`
	Records []export.Record         `json:"records,omitempty"`
}

// Aborted reports whether any instance was aborted.
func (o Outcome) Aborted() bool {
	return o.Batch.Status == simulation.BatchAborted
}

// Runner starts batches and persists their results.
type Runner struct {
	registry    *simulation.Registry
	store       *store.Store
	resultsPath string
	observer    simulation.Observer
	logger      *slog.Logger

	// persistMu serializes read-merge-write cycles on the results file.
	persistMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry shares an existing registry.
func WithRegistry(reg *simulation.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithStore archives every finished instance in s.
func WithStore(s *store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithResultsPath merges averaged records into the JSON file at path.
func WithResultsPath(path string) Option {
	return func(r *Runner) { r.resultsPath = path }
}

// WithObserver receives the events of every batch.
func WithObserver(o simulation.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner. Without a store or results path nothing is
// persisted.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = simulation.NewRegistry()
	}
	r.logger = logging.OrDefault(r.logger)
	return r
}

// Registry returns the registry batches are tracked in.
func (r *Runner) Registry() *simulation.Registry { return r.registry }

// Start validates cfg, builds a batch and registers it. The batch does not
// run until Execute is called. extra observers receive this batch's events
// in addition to the runner-wide observer.
func (r *Runner) Start(cfg simulation.Config, extra ...simulation.Observer) (*simulation.Batch, error) {
	var observers simulation.MultiObserver
	if r.observer != nil {
		observers = append(observers, r.observer)
	}
	for _, o := range extra {
		if o != nil {
			observers = append(observers, o)
		}
	}

	opts := []simulation.BatchOption{simulation.WithBatchLogger(r.logger)}
	if len(observers) > 0 {
		opts = append(opts, simulation.WithBatchObserver(observers))
	}
	b, err := simulation.NewBatch(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.registry.Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Execute runs a started batch to completion and persists its results.
// Persistence failures are returned after the batch itself succeeded; the
// outcome is still complete.
func (r *Runner) Execute(ctx context.Context, b *simulation.Batch) (Outcome, error) {
	results, runErr := b.Run(ctx)
	out := Outcome{Batch: b.Status(), Results: results}
	if len(results) == 0 {
		return out, runErr
	}

	records, err := r.persist(ctx, b.ID(), results)
	out.Records = records
	return out, errors.Join(runErr, err)
}

// Run starts and executes a batch for cfg.
func (r *Runner) Run(ctx context.Context, cfg simulation.Config, extra ...simulation.Observer) (Outcome, error) {
	b, err := r.Start(cfg, extra...)
	if err != nil {
		return Outcome{}, err
	}
	return r.Execute(ctx, b)
}

// Sweep runs one batch per config in order. It stops at the first failure,
// when a batch is aborted, or when ctx is cancelled, returning the outcomes
// collected so far.
func (r *Runner) Sweep(ctx context.Context, configs []simulation.Config, extra ...simulation.Observer) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(configs))
	for i, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		r.logger.Info("sweep point", "index", i+1, "of", len(configs),
			"agents", cfg.AgentCount, "sample_size", cfg.SampleSize)

		out, err := r.Run(ctx, cfg, extra...)
		if out.Batch.ID != "" {
			outcomes = append(outcomes, out)
		}
		if err != nil {
			return outcomes, err
		}
		if out.Aborted() {
			r.logger.Info("sweep stopped", "reason", "batch aborted", "batch", out.Batch.ID)
			break
		}
	}
	return outcomes, nil
}

// persist archives every instance and merges the finished ones into the
// results file.
func (r *Runner) persist(ctx context.Context, batchID string, results []simulation.Result) ([]export.Record, error) {
	var errs []error

	if r.store != nil {
		if err := r.store.SaveResults(ctx, batchID, results); err != nil {
			errs = append(errs, err)
		} else {
			r.logger.Debug("archived runs", "batch", batchID, "count", len(results))
		}
	}

	var records []export.Record
	if r.resultsPath != "" {
		var err error
		records, err = r.mergeResults(results)
		if err != nil {
			errs = append(errs, err)
		}
	} else {
		records = export.Average(results)
	}

	return records, errors.Join(errs...)
}

func (r *Runner) mergeResults(results []simulation.Result) ([]export.Record, error) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	file, err := export.LoadResults(r.resultsPath)
	if err != nil {
		return nil, err
	}
	records := file.Merge(results)
	if len(records) == 0 {
		return nil, nil
	}
	if err := file.Save(r.resultsPath); err != nil {
		return records, err
	}
	r.logger.Info("results merged", "path", r.resultsPath, "records", len(records))
	return records, nil
}

// Control sends msg to the batch with the given ID, or to every running
// batch when id is empty. It returns the number of instances reached.
func (r *Runner) Control(id string, msg simulation.ControlMessage) (int, error) {
	if id != "" {
		b, err := r.registry.Get(id)
		if err != nil {
			return 0, err
		}
		if isTerminal(b.Status().Status) {
			return 0, cerrors.Simulation(cerrors.ErrRunFinished, "run already finished").
				WithContext("id", id)
		}
		return b.Send(msg), nil
	}

	delivered := 0
	for _, b := range r.registry.List() {
		if b.Status().Status == simulation.BatchRunning {
			delivered += b.Send(msg)
		}
	}
	return delivered, nil
}

func isTerminal(s simulation.BatchStatus) bool {
	switch s {
	case simulation.BatchFinished, simulation.BatchAborted, simulation.BatchFailed:
		return true
	}
	return false
}
