package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/export"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export merged results as CSV or LaTeX",
		Long: `Export the averaged records stored in the results file.

Examples:
  consensus export csv
  consensus export csv --out results.csv
  consensus export latex --kind kplot --out figures/kplot.tex`,
	}
	cmd.AddCommand(newExportCSVCmd(), newExportLatexCmd())
	return cmd
}

func newExportCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write one row per configuration and K",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			records, err := loadRecords(e)
			if err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			return writeOutput(e, outPath, func(w io.Writer) error {
				return export.WriteRecordsCSV(w, records, e.csvConfig())
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
	return cmd
}

func newExportLatexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latex",
		Short: "Write a LaTeX table or pgfplots figure",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			records, err := loadRecords(e)
			if err != nil {
				return err
			}

			kind, _ := cmd.Flags().GetString("kind")
			var src string
			switch kind {
			case "table":
				cfg := export.DefaultTableConfig()
				cfg.Caption, _ = cmd.Flags().GetString("caption")
				cfg.Label, _ = cmd.Flags().GetString("label")
				src = export.ConvergenceTable(records, cfg)
			case "kplot":
				src = export.KPlot(records)
			case "entropy":
				src = export.EntropyPlot(records)
			default:
				return cerrors.InvalidField("kind", "must be one of table, kplot, entropy").
					WithContext("value", kind)
			}

			outPath, _ := cmd.Flags().GetString("out")
			return writeOutput(e, outPath, func(w io.Writer) error {
				_, err := io.WriteString(w, src)
				return err
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
	cmd.Flags().String("kind", "table", "What to render: table, kplot, entropy")
	cmd.Flags().String("caption", "", "Table caption")
	cmd.Flags().String("label", "", "Table label, e.g. tab:convergence")
	return cmd
}

func loadRecords(e *env) ([]export.Record, error) {
	path := e.cfg.Export.ResultsPath()
	f, err := export.LoadResults(path)
	if err != nil {
		return nil, err
	}
	if len(f.Records) == 0 {
		return nil, cerrors.Command(cerrors.ErrEmptySample, "no results to export").
			WithContext("path", path).
			WithSuggestion("Run 'consensus run' or 'consensus sweep' first")
	}
	return f.Records, nil
}

// writeOutput runs write against stdout or a freshly created file.
func writeOutput(e *env, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(e.out)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to create output directory").
			WithContext("path", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to create output file").
			WithContext("path", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to close output file").
			WithContext("path", path)
	}
	fmt.Fprintf(e.errOut, "Wrote %s\n", path)
	return nil
}
