package models

// Progress phases.
const (
	PhaseTable     = "table"
	PhaseMigration = "migration"
	PhaseComplete  = "complete"
)

// Progress is delivered to progress callbacks. PhaseTable and PhaseComplete
// events fill the table-level fields, PhaseMigration events the batch-level ones.
type Progress struct {
	Phase               string  `json:"phase"`
	CurrentTable        string  `json:"currentTable"`
	TableIndex          int     `json:"tableIndex"`
	TotalTables         int     `json:"totalTables"`
	OverallProgress     float64 `json:"overallProgress"`
	TableProgress       float64 `json:"tableProgress"`
	RecordsProcessed    int     `json:"recordsProcessed"`
	TotalRecordsInTable int     `json:"totalRecordsInTable"`
}

// ProgressFunc receives progress events.
type ProgressFunc func(Progress)
