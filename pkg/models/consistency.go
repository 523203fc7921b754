package models

// Mismatch is a sample content difference for a key present on both sides.
type Mismatch struct {
	Key  string `json:"key"`
	Diff string `json:"diff"`
}

// TableConsistency compares one table across two providers.
type TableConsistency struct {
	Table              string     `json:"table"`
	Total1             int        `json:"total1"`
	Total2             int        `json:"total2"`
	OnlyIn1            []string   `json:"onlyIn1"`
	OnlyIn2            []string   `json:"onlyIn2"`
	Common             int        `json:"common"`
	ContentDifferences int        `json:"contentDifferences"`
	Mismatches         []Mismatch `json:"mismatches"`
	Consistency        bool       `json:"consistency"`
	Error              string     `json:"error,omitempty"`
}

// ConsistencyReport is the comparator output for a set of tables.
type ConsistencyReport struct {
	Provider1  string              `json:"provider1"`
	Provider2  string              `json:"provider2"`
	Tables     []*TableConsistency `json:"tables"`
	Consistent bool                `json:"consistent"`
}

// Table returns the entry for a table, or nil.
func (r *ConsistencyReport) Table(name string) *TableConsistency {
	for _, t := range r.Tables {
		if t.Table == name {
			return t
		}
	}
	return nil
}
