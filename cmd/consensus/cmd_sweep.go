package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/r3d91ll/consensus/pkg/config"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/runner"
	"github.com/r3d91ll/consensus/pkg/simulation"
	"github.com/r3d91ll/consensus/pkg/spinner"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a batch for every point of an agent count / sample size grid",
		Long: `Run one batch per grid point of the sweep section, in order.

Every batch is merged into the results file as soon as it finishes, so an
interrupted sweep keeps the completed points. Ctrl+C aborts the running
batch and ends the sweep.

Examples:
  consensus sweep --agents-min 1000 --agents-max 10000 --agents-step 1000
  consensus sweep --sample-min 2 --sample-max 5 --sample-step 1 -k 6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			base := e.cfg.Simulation
			if err := applySimulationFlags(cmd, &base); err != nil {
				return err
			}
			sweep := e.cfg.Sweep
			if err := applySweepFlags(cmd, &sweep); err != nil {
				return err
			}
			if err := sweep.Validate(); err != nil {
				return err
			}
			configs := sweep.Configs(base)
			for _, c := range configs {
				if err := c.Validate(); err != nil {
					return err
				}
			}
			quiet, _ := cmd.Flags().GetBool("quiet")

			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			reg := simulation.NewRegistry()
			var extra []simulation.Observer
			var bars *sweepProgress
			if !quiet {
				bars = &sweepProgress{registry: reg, config: e.progressConfig()}
				extra = append(extra, bars)
			}
			r := e.newRunner(st, runner.WithRegistry(reg))

			ctx, stop := interruptible(cmd.Context(), func() {
				r.Control("", simulation.ControlAbort)
			})
			defer stop()

			fmt.Fprintf(e.errOut, "Sweeping %d configuration(s)\n", len(configs))
			outcomes, err := r.Sweep(ctx, configs, extra...)
			if bars != nil {
				bars.Close()
			}
			if e.jsonOut {
				if jerr := writeJSON(e.out, outcomes); jerr != nil {
					return jerr
				}
				return err
			}

			var records []export.Record
			for _, out := range outcomes {
				records = append(records, out.Records...)
			}
			printRecords(e.out, records)
			fmt.Fprintf(e.out, "\n%d of %d batch(es) completed; results merged into %s\n",
				completed(outcomes), len(configs), e.cfg.Export.ResultsPath())
			return err
		},
	}
	addSimulationFlags(cmd)
	f := cmd.Flags()
	f.Uint64("agents-min", 0, "Smallest agent count")
	f.Uint64("agents-max", 0, "Largest agent count")
	f.Uint64("agents-step", 0, "Agent count step")
	f.Uint8("sample-min", 0, "Smallest sample size")
	f.Uint8("sample-max", 0, "Largest sample size")
	f.Uint8("sample-step", 0, "Sample size step")
	f.BoolP("quiet", "q", false, "Hide the progress bars")
	return cmd
}

func applySweepFlags(cmd *cobra.Command, s *config.SweepConfig) error {
	f := cmd.Flags()
	var err error
	set64 := func(name string, dst *uint64) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetUint64(name)
		}
	}
	set8 := func(name string, dst *uint8) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetUint8(name)
		}
	}
	set64("agents-min", &s.AgentCountMin)
	set64("agents-max", &s.AgentCountMax)
	set64("agents-step", &s.AgentCountStep)
	set8("sample-min", &s.SampleSizeMin)
	set8("sample-max", &s.SampleSizeMax)
	set8("sample-step", &s.SampleSizeStep)
	return err
}

func completed(outcomes []runner.Outcome) int {
	n := 0
	for _, out := range outcomes {
		if out.Batch.Status == simulation.BatchFinished {
			n++
		}
	}
	return n
}

// sweepProgress shows one progress bar per batch of a sweep. Batches run
// one after another, so a new batch ID closes the previous bar.
type sweepProgress struct {
	registry *simulation.Registry
	config   spinner.ProgressConfig

	mu  sync.Mutex
	id  string
	bar *spinner.BatchProgress
}

func (p *sweepProgress) Publish(ev simulation.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Batch != p.id {
		p.finishLocked()
		b, err := p.registry.Get(ev.Batch)
		if err != nil {
			return nil
		}
		p.id = ev.Batch
		p.bar = spinner.NewBatchProgress(b.Config(), p.config)
		p.bar.Start()
	}
	return p.bar.Publish(ev)
}

// Close ends the bar of the last batch.
func (p *sweepProgress) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *sweepProgress) finishLocked() {
	if p.bar == nil {
		return
	}
	if b, err := p.registry.Get(p.id); err == nil {
		p.bar.Finish(b.Status())
	}
	p.bar = nil
}
