// Package cli wires the migration engine into cobra commands.
package cli

import (
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/spf13/cobra"
)

// GlobalOptions are shared by every sub-command.
type GlobalOptions struct {
	ConfigFile string
	LogLevel   string
	LogFile    string
}

func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "docshift",
		Short: "docshift - move document data between storage backends",
		Long: `docshift migrates tables of JSON documents between MongoDB, relational
engines (SQLite, SQL Server) and an in-memory cache. It previews source data,
transforms records for the target, reports per-record outcomes and can verify
or roll back a finished migration.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogLevel == "" && opts.LogFile == "" {
				return nil
			}
			return logger.InitLogger(opts.LogFile, opts.LogLevel)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "Append logs to this file")

	rootCmd.AddCommand(
		NewMigrateCmd(opts),
		newPreviewCmd(opts),
		newPlanCmd(opts),
		newCompareCmd(opts),
		newBackupCmd(opts),
		newRollbackCmd(opts),
		newTestConnectionsCmd(opts),
		newProvidersCmd(opts),
	)

	return rootCmd
}
