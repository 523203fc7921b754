package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BartekS5/docshift/internal/backup"
	"github.com/BartekS5/docshift/internal/config"
	"github.com/BartekS5/docshift/internal/etl"
	"github.com/BartekS5/docshift/internal/metrics"
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/spf13/cobra"
)

type MigrateOptions struct {
	From                  string
	To                    string
	Tables                []string
	BatchSize             int
	DryRun                bool
	ContinueOnError       bool
	BackupBeforeMigration bool
	Workers               int
	SchemaFile            string
	ReportDir             string
	BackupFile            string
	MetricsFile           string
}

func NewMigrateCmd(global *GlobalOptions) *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate tables from one provider to another",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				applyDefaults(c, opts, a.cfg)
				return runMigration(ctx, c, a, opts)
			})
		},
	}

	addPlanFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.ReportDir, "report-dir", "", "Directory for JSON and Markdown reports (default from config)")
	cmd.Flags().StringVar(&opts.BackupFile, "backup-file", "", "Save the pre-migration backup to this file")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

func addPlanFlags(cmd *cobra.Command, opts *MigrateOptions) {
	cmd.Flags().StringVarP(&opts.From, "from", "f", "", "Source provider name")
	cmd.Flags().StringVarP(&opts.To, "to", "t", "", "Target provider name")
	cmd.Flags().StringSliceVar(&opts.Tables, "tables", nil, "Tables to migrate (comma separated, default all source tables)")
	cmd.Flags().IntVarP(&opts.BatchSize, "batch-size", "b", config.DefaultBatchSize, "Batch size")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Read and transform without writing")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", true, "Keep going after record or table failures")
	cmd.Flags().BoolVar(&opts.BackupBeforeMigration, "backup", false, "Snapshot target tables before writing")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", config.DefaultWorkers, "Parallel records per batch")
	cmd.Flags().StringVar(&opts.SchemaFile, "schemas", "", "JSON file with per-table schema rules")
}

// applyDefaults fills flags the user did not set from the configuration file.
func applyDefaults(c *cobra.Command, opts *MigrateOptions, cfg *config.Config) {
	flags := c.Flags()
	if !flags.Changed("batch-size") && cfg.Migration.BatchSize > 0 {
		opts.BatchSize = cfg.Migration.BatchSize
	}
	if !flags.Changed("continue-on-error") {
		opts.ContinueOnError = cfg.Migration.ContinueOnError
	}
	if !flags.Changed("backup") {
		opts.BackupBeforeMigration = cfg.Migration.BackupBeforeMigration
	}
	if !flags.Changed("workers") && cfg.Migration.Workers > 0 {
		opts.Workers = cfg.Migration.Workers
	}
	if opts.ReportDir == "" {
		opts.ReportDir = cfg.ReportDir
	}
}

func (o *MigrateOptions) options() (etl.Options, error) {
	eo := etl.Options{
		BatchSize:             o.BatchSize,
		DryRun:                o.DryRun,
		ContinueOnError:       o.ContinueOnError,
		BackupBeforeMigration: o.BackupBeforeMigration,
		Workers:               o.Workers,
	}
	if o.SchemaFile != "" {
		schemas, err := config.LoadSchemas(o.SchemaFile)
		if err != nil {
			return eo, err
		}
		eo.Schemas = schemas
	}
	return eo, nil
}

func logProgress(p models.Progress) {
	switch p.Phase {
	case models.PhaseTable:
		logger.Infof("[%d/%d] %s (overall %.0f%%)", p.TableIndex+1, p.TotalTables, p.CurrentTable, p.OverallProgress)
	case models.PhaseMigration:
		logger.Infof("  %s: %d/%d records (%.0f%%)", p.CurrentTable, p.RecordsProcessed, p.TotalRecordsInTable, p.TableProgress)
	case models.PhaseComplete:
		logger.Infof("Done (%.0f%%)", p.OverallProgress)
	}
}

func runMigration(ctx context.Context, c *cobra.Command, a *app, opts *MigrateOptions) error {
	eo, err := opts.options()
	if err != nil {
		return err
	}
	eo.OnProgress = logProgress

	collector := metrics.New()
	migrator := etl.NewMigrator(a.registry, etl.WithMetrics(collector))

	tables, err := a.tables(ctx, opts.From, opts.Tables)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "Starting migration %s -> %s for %s...\n", opts.From, opts.To, strings.Join(tables, ", "))
	result, runErr := migrator.MigrateData(ctx, opts.From, opts.To, tables, eo)
	if result == nil {
		return runErr
	}
	return finishMigration(c, result, runErr, collector, opts)
}

// finishMigration persists every artifact of a run, aborted or not.
func finishMigration(c *cobra.Command, result *models.MigrationResult, runErr error, collector *metrics.Collector, opts *MigrateOptions) error {
	out := c.OutOrStdout()
	s := result.Summary
	fmt.Fprintf(out, "Tables: %d ok, %d failed. Records: %d/%d migrated in %dms\n",
		s.SuccessfulTables, s.FailedTables, s.MigratedRecords, s.TotalRecords, result.DurationMs)

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if opts.ReportDir != "" {
		jsonPath, mdPath, err := etl.SaveReport(result, opts.ReportDir)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to save report: %w", err))
		} else {
			fmt.Fprintf(out, "Reports: %s, %s\n", jsonPath, mdPath)
		}
	}
	if opts.BackupFile != "" && result.Backup != nil {
		if _, err := backup.Save(result.Backup, opts.BackupFile); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintf(out, "Backup: %s\n", opts.BackupFile)
		}
	}
	if opts.MetricsFile != "" {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if runErr == nil && s.FailedTables > 0 {
		errs = append(errs, fmt.Errorf("%d tables did not migrate cleanly", s.FailedTables))
	}
	return errors.Join(errs...)
}
