package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/r3d91ll/consensus/pkg/config"
	cerrors "github.com/r3d91ll/consensus/pkg/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file unless one exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(cmd)
			if err := config.InitConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", path)
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults and environment overrides
(CONSENSUS_LOG_LEVEL, CONSENSUS_OUTPUT, CONSENSUS_ARCHIVE, CONSENSUS_SEED).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if e.jsonOut {
				return writeJSON(e.out, e.cfg)
			}
			data, err := yaml.Marshal(e.cfg)
			if err != nil {
				return cerrors.ConfigWrap(err, cerrors.ErrConfigWriteFailed, "failed to marshal config")
			}
			fmt.Fprintf(e.out, "# %s\n%s", e.cfgPath, data)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path in use",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configPath(cmd))
		},
	}
}

func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return config.DefaultConfigPath()
}
