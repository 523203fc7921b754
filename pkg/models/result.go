package models

import "time"

// TableStatus is the terminal (or transient) state of a table migration.
type TableStatus string

const (
	TableStatusPending        TableStatus = "pending"
	TableStatusInProgress     TableStatus = "in-progress"
	TableStatusSuccess        TableStatus = "success"
	TableStatusPartialSuccess TableStatus = "partial-success"
	TableStatusFailed         TableStatus = "failed"
	TableStatusSkipped        TableStatus = "skipped"
	TableStatusDryRunSuccess  TableStatus = "dry-run-success"
)

// Clean reports whether the status carries no errors.
func (s TableStatus) Clean() bool {
	return s == TableStatusSuccess || s == TableStatusDryRunSuccess || s == TableStatusSkipped
}

// RecordStatus is the outcome of a single record.
type RecordStatus string

const (
	RecordStatusSuccess RecordStatus = "success"
	RecordStatusError   RecordStatus = "error"
)

// RecordOutcome describes what happened to one source record.
type RecordOutcome struct {
	OriginalKey string       `json:"originalKey"`
	NewKey      string       `json:"newKey,omitempty"`
	Status      RecordStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
}

// TableError is an entry of TableResult.Errors. Key is empty for
// table-level failures.
type TableError struct {
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// TableResult is accumulated per table and never mutated after the table finishes.
type TableResult struct {
	TableName       string          `json:"tableName"`
	Status          TableStatus     `json:"status"`
	TotalRecords    int             `json:"totalRecords"`
	MigratedRecords int             `json:"migratedRecords"`
	Errors          []TableError    `json:"errors"`
	Records         []RecordOutcome `json:"records"`
	DurationMs      int64           `json:"durationMs"`
}

// SuccessRate returns the migrated percentage of the table.
func (t *TableResult) SuccessRate() float64 {
	if t.TotalRecords == 0 {
		return 0
	}
	return float64(t.MigratedRecords) / float64(t.TotalRecords) * 100
}

// Summary aggregates every table of a migration.
type Summary struct {
	TotalTables      int      `json:"totalTables"`
	SuccessfulTables int      `json:"successfulTables"`
	FailedTables     int      `json:"failedTables"`
	TotalRecords     int      `json:"totalRecords"`
	MigratedRecords  int      `json:"migratedRecords"`
	Errors           []string `json:"errors"`
}

// MigrationResult is the structured outcome of one plan execution.
type MigrationResult struct {
	FromProvider string         `json:"fromProvider"`
	ToProvider   string         `json:"toProvider"`
	DryRun       bool           `json:"dryRun"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
	DurationMs   int64          `json:"durationMs"`
	Tables       []*TableResult `json:"tables"`
	Summary      Summary        `json:"summary"`
	Aborted      bool           `json:"aborted"`
	BackupTaken  bool           `json:"backupTaken"`

	// Backup holds the pre-migration snapshot of the target when one was taken.
	Backup *Backup `json:"-"`
}

// Table returns the result for a table, or nil.
func (r *MigrationResult) Table(name string) *TableResult {
	for _, t := range r.Tables {
		if t.TableName == name {
			return t
		}
	}
	return nil
}

// Finalize computes the summary and timing. It is called once when execution ends.
func (r *MigrationResult) Finalize(end time.Time) {
	r.FinishedAt = end
	r.DurationMs = end.Sub(r.StartedAt).Milliseconds()

	s := Summary{TotalTables: len(r.Tables), Errors: r.Summary.Errors}
	for _, t := range r.Tables {
		s.TotalRecords += t.TotalRecords
		s.MigratedRecords += t.MigratedRecords
		if t.Status.Clean() {
			s.SuccessfulTables++
		} else {
			s.FailedTables++
		}
		for _, e := range t.Errors {
			if e.Key != "" {
				s.Errors = append(s.Errors, t.TableName+"/"+e.Key+": "+e.Message)
			} else {
				s.Errors = append(s.Errors, t.TableName+": "+e.Message)
			}
		}
	}
	if s.Errors == nil {
		s.Errors = []string{}
	}
	r.Summary = s
}
