package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		Long: `List the instance results archived in the run database, newest first.

Examples:
  consensus history
  consensus history --limit 50
  consensus history show <run-id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, st, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if e.jsonOut {
				return writeJSON(e.out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(e.out, "No archived runs.")
				return nil
			}

			fmt.Fprintf(e.out, "%-36s  %-8s  %4s  %10s  %3s  %4s  %-10s  %6s  %s\n",
				"RUN", "BATCH", "#", "AGENTS", "J", "KMAX", "MODEL", "PHASES", "FINISHED")
			for _, r := range runs {
				phases := fmt.Sprintf("%d", r.Phases)
				if r.Aborted {
					phases += "*"
				}
				fmt.Fprintf(e.out, "%-36s  %-8s  %4d  %10d  %3d  %4d  %-10s  %6s  %s\n",
					r.ID, shortBatch(r.BatchID), r.Instance, r.AgentCount, r.SampleSize,
					r.UpperBoundK, r.Model, phases, r.Finished.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the plot and entropy curve of one archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, st, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if e.jsonOut {
				return writeJSON(e.out, run)
			}

			c := run.Config
			fmt.Fprintf(e.out, "Run %s (batch %s, instance %d)\n", run.ID, run.BatchID, run.Instance)
			fmt.Fprintf(e.out, "  n=%d j=%d K=%d %s/%s seed=%d [%s]\n", c.AgentCount, c.SampleSize,
				c.UpperBoundK, c.Model, c.InitialDistribution, run.Seed, export.ShortFingerprint(run.Fingerprint))
			if run.Aborted {
				fmt.Fprintln(e.out, "  aborted before the last phase")
			}
			fmt.Fprintf(e.out, "  %s\n\n", run.Finished.Sub(run.Started).Round(time.Millisecond))

			fmt.Fprintf(e.out, "  %4s  %14s\n", "K", "interactions")
			for _, p := range run.Plot.Points {
				fmt.Fprintf(e.out, "  %4d  %14d\n", p.K, p.Interactions)
			}

			points := run.Entropy.CoveredMean()
			if len(points) == 0 {
				return nil
			}
			fmt.Fprintf(e.out, "\n  Entropy over %d phase(s)\n", run.Entropy.Phases)
			fmt.Fprintf(e.out, "  %14s  %8s\n", "interactions", "H")
			for _, p := range points {
				fmt.Fprintf(e.out, "  %14d  %8.4f\n", p.Interactions, p.Entropy)
			}
			return nil
		},
	}
}

func openArchive(cmd *cobra.Command) (*env, *store.Store, error) {
	e, err := loadEnv(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := e.openStore()
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, cerrors.Config(cerrors.ErrConfigInvalid, "run archive is disabled").
			WithContext("field", "export.archive_path").
			WithSuggestion("Set export.archive_path in the config file")
	}
	return e, st, nil
}

func shortBatch(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
