package preview

import (
	"fmt"
	"sort"

	"github.com/BartekS5/docshift/internal/etl"
	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/internal/transform"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/dustin/go-humanize"
)

const (
	// bigTableRecords is the record count above which a table is
	// considered large.
	bigTableRecords = 10000
	maxBatchSize    = 10000
)

// GenerateMigrationPlan builds a plan from a preview. Tables that could not
// be read are left out. Fields present and non-null in every record of a
// table become required fields of that table's schema.
func GenerateMigrationPlan(p *Preview, opts etl.Options) (*etl.Plan, error) {
	chain, err := transform.Recommended(p.From, p.To)
	if err != nil {
		return nil, err
	}

	var tables []string
	schemas := make(map[string]models.Schema)
	for _, t := range p.Tables {
		if t.Error != "" {
			continue
		}
		tables = append(tables, t.Table)

		schema := models.Schema{}
		for name, rule := range opts.Schemas[t.Table] {
			schema[name] = rule
		}
		for _, f := range t.Fields {
			if !f.AlwaysSet(t.RecordCount) {
				continue
			}
			rule := schema[f.Name]
			rule.Required = true
			schema[f.Name] = rule
		}
		if len(schema) > 0 {
			schemas[t.Table] = schema
		}
	}

	plan := etl.NewPlan(p.FromProvider, p.ToProvider, tables...)
	plan.BatchSize = opts.BatchSize
	plan.DryRun = opts.DryRun
	plan.ContinueOnError = opts.ContinueOnError
	plan.BackupBeforeMigration = opts.BackupBeforeMigration
	plan.Workers = opts.Workers
	plan.OnProgress = opts.OnProgress
	plan.Schemas = schemas
	plan.Transform = chain
	if opts.Transform != nil {
		plan.Transform = opts.Transform
	}
	return plan, nil
}

// Validation is the outcome of ValidateMigrationPlan.
type Validation struct {
	Valid           bool     `json:"valid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// ValidateMigrationPlan checks a plan against the registry. The preview is
// optional and only used to flag large tables.
func ValidateMigrationPlan(r *provider.Registry, plan *etl.Plan, p *Preview) *Validation {
	v := &Validation{Errors: []string{}, Warnings: []string{}, Recommendations: []string{}}

	if _, _, err := etl.ValidatePlan(r, plan); err != nil {
		v.Errors = append(v.Errors, err.Error())
	}
	if plan.BatchSize > maxBatchSize {
		v.Errors = append(v.Errors, fmt.Sprintf("batch size %d exceeds %d", plan.BatchSize, maxBatchSize))
	}
	if plan.Workers < 0 {
		v.Errors = append(v.Errors, fmt.Sprintf("workers must not be negative, got %d", plan.Workers))
	}

	if !plan.ContinueOnError {
		v.Warnings = append(v.Warnings, "migration stops at the first failing record")
		if plan.Workers > 1 {
			v.Warnings = append(v.Warnings, "workers are ignored unless continueOnError is set")
		}
	}
	inPlan := make(map[string]bool, len(plan.Tables))
	for _, t := range plan.Tables {
		inPlan[t] = true
	}
	var orphans []string
	for t := range plan.Schemas {
		if !inPlan[t] {
			orphans = append(orphans, t)
		}
	}
	sort.Strings(orphans)
	for _, t := range orphans {
		v.Warnings = append(v.Warnings, fmt.Sprintf("schema for %s has no matching table", t))
	}

	if p != nil {
		for _, t := range p.Tables {
			if !inPlan[t.Table] {
				continue
			}
			if t.Error != "" {
				v.Warnings = append(v.Warnings, fmt.Sprintf("table %s could not be previewed: %s", t.Table, t.Error))
			}
			if t.RecordCount > bigTableRecords && !plan.BackupBeforeMigration {
				v.Warnings = append(v.Warnings, fmt.Sprintf("table %s has %s records and no backup is taken",
					t.Table, humanize.Comma(int64(t.RecordCount))))
			}
		}
	}

	if !plan.DryRun {
		v.Recommendations = append(v.Recommendations, "run the plan with dry-run first")
	}
	if !plan.BackupBeforeMigration && !plan.DryRun {
		v.Recommendations = append(v.Recommendations, "enable backupBeforeMigration to allow a restore")
	}
	if dst, err := r.Get(plan.ToProvider); err == nil && dst.Kind() == models.KindSQL && dst.WriteLimit() == 0 {
		v.Recommendations = append(v.Recommendations, "set writesPerSecond if the target enforces write-rate limits")
	}

	v.Valid = len(v.Errors) == 0
	return v
}
