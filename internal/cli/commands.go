package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BartekS5/docshift/internal/backup"
	"github.com/BartekS5/docshift/internal/etl"
	"github.com/BartekS5/docshift/internal/metrics"
	"github.com/BartekS5/docshift/internal/preview"
	"github.com/BartekS5/docshift/internal/verify"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPreviewCmd(global *GlobalOptions) *cobra.Command {
	var from, to string
	var tables []string
	var sampleSize int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Analyze source tables without writing anything",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				list, err := a.tables(ctx, from, tables)
				if err != nil {
					return err
				}
				p, err := preview.NewAnalyzer(a.registry, preview.WithSampleSize(sampleSize)).
					PreviewMigration(ctx, from, to, list)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(c.OutOrStdout(), p)
				}
				printPreview(c, p)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "Source provider name")
	cmd.Flags().StringVarP(&to, "to", "t", "", "Target provider name")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "Tables to analyze (comma separated, default all source tables)")
	cmd.Flags().IntVar(&sampleSize, "sample-size", preview.DefaultSampleSize, "Records sampled per table")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full preview as JSON")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func printPreview(c *cobra.Command, p *preview.Preview) {
	out := c.OutOrStdout()
	fmt.Fprintf(out, "Preview %s (%s) -> %s (%s)\n", p.FromProvider, p.From, p.ToProvider, p.To)
	fmt.Fprintf(out, "Chain: %s\n", strings.Join(p.Chain, " -> "))
	for _, t := range p.Tables {
		if t.Error != "" {
			fmt.Fprintf(out, "\n%s: error: %s\n", t.Table, t.Error)
			continue
		}
		fmt.Fprintf(out, "\n%s: %s records, %s\n", t.Table, humanize.Comma(int64(t.RecordCount)), humanize.Bytes(uint64(t.SizeBytes)))
		for _, f := range t.Fields {
			fmt.Fprintf(out, "  %-24s present %3.0f%%  null %3.0f%%  %s\n",
				f.Name, f.PresenceRate*100, f.NullRate*100, strings.Join(f.Types, "|"))
		}
		for _, w := range t.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}
	if len(p.Recommendations) > 0 {
		fmt.Fprintln(out, "\nRecommendations:")
		for _, r := range p.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	fmt.Fprintf(out, "\nTotal: %d records, %s, estimated %s\n", p.Summary.Records, p.Summary.Size, p.Summary.Estimate)
}

// planOutput is the printable form of a generated plan.
type planOutput struct {
	Plan       *etl.Plan           `json:"plan"`
	Chain      []string            `json:"chain"`
	Validation *preview.Validation `json:"validation"`
}

func newPlanCmd(global *GlobalOptions) *cobra.Command {
	opts := &MigrateOptions{}
	var execute bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate and validate a migration plan from a preview",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				applyDefaults(c, opts, a.cfg)
				eo, err := opts.options()
				if err != nil {
					return err
				}
				tables, err := a.tables(ctx, opts.From, opts.Tables)
				if err != nil {
					return err
				}
				p, err := preview.NewAnalyzer(a.registry).PreviewMigration(ctx, opts.From, opts.To, tables)
				if err != nil {
					return err
				}
				plan, err := preview.GenerateMigrationPlan(p, eo)
				if err != nil {
					return err
				}
				v := preview.ValidateMigrationPlan(a.registry, plan, p)
				if err := printJSON(c.OutOrStdout(), planOutput{Plan: plan, Chain: p.Chain, Validation: v}); err != nil {
					return err
				}
				if !v.Valid {
					return fmt.Errorf("plan is invalid: %s", strings.Join(v.Errors, "; "))
				}
				if !execute {
					return nil
				}

				plan.OnProgress = logProgress
				collector := metrics.New()
				result, runErr := etl.NewMigrator(a.registry, etl.WithMetrics(collector)).ExecuteMigrationPlan(ctx, plan, nil)
				if result == nil {
					return runErr
				}
				return finishMigration(c, result, runErr, collector, opts)
			})
		},
	}

	addPlanFlags(cmd, opts)
	cmd.Flags().BoolVar(&execute, "execute", false, "Execute the plan when it is valid")
	cmd.Flags().StringVar(&opts.ReportDir, "report-dir", "", "Directory for reports when executing")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newCompareCmd(global *GlobalOptions) *cobra.Command {
	var p1, p2 string
	var tables, ignore []string
	var normalize bool

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare tables of two providers after a migration",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				opts := verify.Options{Ignore: splitList(ignore)}
				if normalize {
					opts.Normalize = verify.StructuralNormalizer()
				}
				report, err := verify.CompareProviders(ctx, a.registry, p1, p2, splitList(tables), opts)
				if err != nil {
					return err
				}
				if err := printJSON(c.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.Consistent {
					return errors.New("providers are not consistent")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p1, "provider1", "", "First provider")
	cmd.Flags().StringVar(&p2, "provider2", "", "Second provider")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "Tables to compare (comma separated)")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Extra fields to ignore")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Decode serialized arrays and flattened objects before comparing")
	cmd.MarkFlagRequired("provider1")
	cmd.MarkFlagRequired("provider2")
	cmd.MarkFlagRequired("tables")
	return cmd
}

func newBackupCmd(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create or restore table snapshots",
	}

	var name, file string
	var tables []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Snapshot tables of a provider into a file",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				if name == "" {
					name = a.registry.Default()
				}
				entry, err := a.registry.Get(name)
				if err != nil {
					return err
				}
				list, err := a.tables(ctx, entry.Name, tables)
				if err != nil {
					return err
				}
				b, err := backup.Take(ctx, entry.Store, entry.Name, list)
				if err != nil {
					return err
				}
				m, err := backup.Save(b, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "Saved %d records from %s to %s (%s)\n",
					m.Records, entry.Name, file, humanize.Bytes(uint64(m.Size)))
				return nil
			})
		},
	}
	create.Flags().StringVarP(&name, "provider", "p", "", "Provider to snapshot (default provider when empty)")
	create.Flags().StringSliceVar(&tables, "tables", nil, "Tables to snapshot (comma separated, default all tables)")
	create.Flags().StringVarP(&file, "out", "o", "", "Backup file")
	create.MarkFlagRequired("out")

	var target, in string
	var overwrite bool
	restore := &cobra.Command{
		Use:   "restore",
		Short: "Restore a backup file into a provider",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				b, err := backup.Load(in)
				if err != nil {
					return err
				}
				if target == "" {
					target = b.Provider
				}
				entry, err := a.registry.Get(target)
				if err != nil {
					return err
				}
				res, err := backup.Restore(ctx, entry.Store, b, overwrite)
				if res != nil {
					printJSON(c.OutOrStdout(), res)
				}
				return err
			})
		},
	}
	restore.Flags().StringVarP(&target, "provider", "p", "", "Provider to restore into (default: the backup's provider)")
	restore.Flags().StringVarP(&in, "in", "i", "", "Backup file")
	restore.Flags().BoolVar(&overwrite, "overwrite", false, "Delete table contents before restoring")
	restore.MarkFlagRequired("in")

	cmd.AddCommand(create, restore)
	return cmd
}

func newRollbackCmd(global *GlobalOptions) *cobra.Command {
	var resultFile, backupFile string
	var keep bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Undo a migration using its JSON report",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				var result models.MigrationResult
				if err := readJSON(resultFile, &result); err != nil {
					return err
				}
				opts := backup.RollbackOptions{DeleteMigrated: !keep}
				if backupFile != "" {
					b, err := backup.Load(backupFile)
					if err != nil {
						return err
					}
					result.Backup = b
					opts.Restore = true
				}
				target, err := a.registry.Store(result.ToProvider)
				if err != nil {
					return err
				}
				res, err := backup.Rollback(ctx, target, &result, opts)
				if res != nil {
					printJSON(c.OutOrStdout(), res)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&resultFile, "result", "r", "", "JSON migration report")
	cmd.Flags().StringVar(&backupFile, "backup-file", "", "Backup to restore after deleting migrated records")
	cmd.Flags().BoolVar(&keep, "keep-migrated", false, "Do not delete migrated records")
	cmd.MarkFlagRequired("result")
	return cmd
}

func newTestConnectionsCmd(global *GlobalOptions) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "test-connections",
		Short: "Run a create/read/update/delete round-trip on each provider",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				results := verify.TestConnections(ctx, a.registry, splitList(names))
				out := c.OutOrStdout()
				failed := 0
				for _, r := range results {
					status := "ok"
					if !r.Success {
						status = "FAILED"
						failed++
					}
					fmt.Fprintf(out, "%-12s %-7s %-6s arrays=%v nested=%v types=%v  %s\n",
						r.Provider, r.Kind, status, r.Capabilities.ArraySupport,
						r.Capabilities.NestedObjectSupport, r.Capabilities.TypePreservation, r.Message)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d providers failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&names, "providers", "p", nil, "Providers to test (default: all)")
	return cmd
}

func newProvidersCmd(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, global, func(ctx context.Context, a *app) error {
				out := c.OutOrStdout()
				def := a.registry.Default()
				for _, p := range a.registry.Info() {
					marker := " "
					if p.Name == def {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %-12s %-7s upload=%v ttl=%v arrays=%v nested=%v\n", marker, p.Name, p.Kind,
						p.Capabilities.NativeUpload, p.Capabilities.NativeTTL, p.Capabilities.NativeArrays, p.Capabilities.NestedObjects)
				}
				return nil
			})
		},
	}
}
