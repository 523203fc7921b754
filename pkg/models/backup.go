package models

import "time"

// Backup is a snapshot of a provider's tables taken before a migration.
type Backup struct {
	Timestamp time.Time                      `json:"timestamp"`
	Provider  string                         `json:"provider"`
	Tables    map[string]map[string]Document `json:"tables"`
}

// RecordCount returns the number of documents across all tables.
func (b *Backup) RecordCount() int {
	n := 0
	for _, docs := range b.Tables {
		n += len(docs)
	}
	return n
}
