package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/runner"
	"github.com/r3d91ll/consensus/pkg/simulation"
	"github.com/r3d91ll/consensus/pkg/spinner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch of simulation instances",
		Long: `Run one batch of independent instances with the configured parameters.

Flags override the simulation section of the config file. The averaged
plot is merged into the results file and every instance is archived.
The first Ctrl+C aborts the batch and keeps what was gathered; a second
one stops immediately.

Examples:
  consensus run                          # config file defaults
  consensus run -n 10000 -j 3 -k 8 -c 10
  consensus run --model gossip --seed 42 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			simCfg := e.cfg.Simulation
			if err := applySimulationFlags(cmd, &simCfg); err != nil {
				return err
			}
			if err := simCfg.Validate(); err != nil {
				return err
			}
			quiet, _ := cmd.Flags().GetBool("quiet")

			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			out, err := runBatch(cmd.Context(), e, e.newRunner(st), simCfg, quiet)
			if err != nil {
				return err
			}
			if e.jsonOut {
				return writeJSON(e.out, out)
			}
			printOutcome(e.out, out)
			fmt.Fprintf(e.out, "Results merged into %s\n", e.cfg.Export.ResultsPath())
			return nil
		},
	}
	addSimulationFlags(cmd)
	cmd.Flags().BoolP("quiet", "q", false, "Hide the progress bar")
	return cmd
}

func addSimulationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Uint64P("agents", "n", 0, "Number of agents")
	f.Uint8P("sample-size", "j", 0, "Agents sampled per interaction")
	f.Uint16P("upper-bound-k", "k", 0, "Largest number of opinions")
	f.UintP("count", "c", 0, "Independent instances per batch")
	f.String("model", "", "Interaction model: population, gossip")
	f.String("distribution", "", "Initial distribution: even, uniform, weighted")
	f.Float64Slice("weights", nil, "Per-opinion weights for the weighted distribution, e.g. 5,3,1,1")
	f.Uint64("seed", 0, "Base seed; instance i uses seed+i (0 = random)")
	f.Uint64("interval", 0, "Interactions between update events")
}

// applySimulationFlags copies the flags the user set onto cfg.
func applySimulationFlags(cmd *cobra.Command, cfg *simulation.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("agents") {
		cfg.AgentCount, err = f.GetUint64("agents")
	}
	if err == nil && f.Changed("sample-size") {
		cfg.SampleSize, err = f.GetUint8("sample-size")
	}
	if err == nil && f.Changed("upper-bound-k") {
		cfg.UpperBoundK, err = f.GetUint16("upper-bound-k")
	}
	if err == nil && f.Changed("count") {
		cfg.SimulationCount, err = f.GetUint("count")
	}
	if err == nil && f.Changed("model") {
		var m string
		m, err = f.GetString("model")
		cfg.Model = simulation.Model(m)
	}
	if err == nil && f.Changed("distribution") {
		var d string
		d, err = f.GetString("distribution")
		cfg.InitialDistribution = simulation.InitialDistribution(d)
	}
	if err == nil && f.Changed("weights") {
		cfg.Weights, err = f.GetFloat64Slice("weights")
	}
	if err == nil && f.Changed("seed") {
		cfg.Seed, err = f.GetUint64("seed")
	}
	if err == nil && f.Changed("interval") {
		cfg.UpdateInterval, err = f.GetUint64("interval")
	}
	return err
}

// runBatch starts and executes one batch with an optional progress bar.
func runBatch(ctx context.Context, e *env, r *runner.Runner, cfg simulation.Config, quiet bool) (runner.Outcome, error) {
	var (
		bar   *spinner.BatchProgress
		extra []simulation.Observer
	)
	if !quiet {
		bar = spinner.NewBatchProgress(cfg, e.progressConfig())
		extra = append(extra, bar)
	}

	b, err := r.Start(cfg, extra...)
	if err != nil {
		return runner.Outcome{}, err
	}
	ctx, stop := interruptible(ctx, func() { b.Abort() })
	defer stop()

	if bar != nil {
		bar.Start()
	}
	out, err := r.Execute(ctx, b)
	if bar != nil {
		bar.Finish(out.Batch)
	}
	return out, err
}

// interruptible calls abort on the first interrupt and cancels the
// returned context on the second.
func interruptible(parent context.Context, abort func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 2)
	notifySignals(ch)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
		case <-ctx.Done():
			return
		}
		abort()
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// printOutcome writes the averaged plot of a batch as a table.
func printOutcome(w io.Writer, out runner.Outcome) {
	sum := out.Batch
	fmt.Fprintf(w, "Batch %s %s (%d/%d phases)\n", sum.ID, sum.Status, sum.PhasesDone, sum.PhasesTotal)

	records := out.Records
	if len(records) == 0 {
		records = export.Average(out.Results)
	}
	printRecords(w, records)
}

func printRecords(w io.Writer, records []export.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No completed instances.")
		return
	}
	for _, rec := range records {
		c := rec.Config
		fmt.Fprintf(w, "\nn=%d j=%d %s/%s  [%s]  %d run(s)\n", c.AgentCount, c.SampleSize,
			c.Model, c.InitialDistribution, export.ShortFingerprint(rec.Fingerprint), rec.Runs)
		fmt.Fprintf(w, "  %4s  %16s  %7s\n", "K", "interactions", "samples")
		for _, p := range rec.Plot {
			fmt.Fprintf(w, "  %4d  %16.1f  %7d\n", p.K, p.Interactions, p.Samples)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
