// Consensus - j-majority opinion dynamics simulator
//
// consensus runs batches of independent simulation instances that sweep the
// number of opinions K from 2 to an upper bound, recording how many
// interactions each phase needs to reach consensus and how the opinion
// entropy decays on the way. Batches can be driven from the command line,
// an interactive shell or the HTTP/websocket server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/r3d91ll/consensus/pkg/config"
	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/logging"
	"github.com/r3d91ll/consensus/pkg/runner"
	"github.com/r3d91ll/consensus/pkg/spinner"
	"github.com/r3d91ll/consensus/pkg/store"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		cerrors.Display(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "consensus",
		Short: "j-majority opinion dynamics simulator",
		Long: `consensus simulates the j-majority rule on a population of agents.

Every instance starts with K opinions and counts the interactions until one
opinion holds the whole population, for K = 2 up to an upper bound. Results
are averaged per configuration, merged into a JSON results file and archived
in a SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file path (default: ./config.yaml or ~/.consensus/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newServeCmd(),
		newShellCmd(),
		newExportCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "consensus version %s\n", version)
		},
	}
}

// env is the loaded configuration shared by every command.
type env struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	jsonOut bool
	out     io.Writer
	errOut  io.Writer
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	jsonOut, _ := cmd.Flags().GetBool("json")

	e := &env{
		cfg:     cfg,
		cfgPath: path,
		jsonOut: jsonOut,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
	}
	if cfg.Logging.JSON || jsonOut {
		e.logger = logging.NewJSONLogger(cfg.Logging.Level, e.errOut)
	} else {
		e.logger = logging.NewLogger(cfg.Logging.Level, e.errOut)
	}
	return e, nil
}

func (e *env) csvConfig() *export.CSVConfig {
	c := export.DefaultCSVConfig()
	if e.cfg.Export.CSVDialect != "" {
		c.Dialect = export.CSVDialect(e.cfg.Export.CSVDialect)
	}
	return c
}

func (e *env) progressConfig() spinner.ProgressConfig {
	c := spinner.DefaultProgressConfig()
	c.Writer = e.errOut
	c.Message = ""
	return c
}

// openStore opens the run archive, or returns nil when archiving is off.
func (e *env) openStore() (*store.Store, error) {
	if e.cfg.Export.ArchivePath == "" {
		return nil, nil
	}
	return store.Open(e.cfg.Export.ArchivePath)
}

// newRunner builds a runner that persists into the results file and st.
func (e *env) newRunner(st *store.Store, opts ...runner.Option) *runner.Runner {
	base := []runner.Option{
		runner.WithLogger(e.logger),
		runner.WithResultsPath(e.cfg.Export.ResultsPath()),
	}
	if st != nil {
		base = append(base, runner.WithStore(st))
	}
	return runner.New(append(base, opts...)...)
}

func closeStore(st *store.Store) {
	if st != nil {
		st.Close()
	}
}
