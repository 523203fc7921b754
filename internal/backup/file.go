package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/dustin/go-humanize"
)

// Manifest describes a saved snapshot and carries its checksum.
type Manifest struct {
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	Provider  string    `json:"provider"`
	Tables    []string  `json:"tables"`
	Records   int       `json:"records"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
}

// ManifestPath returns the manifest location for a snapshot file.
func ManifestPath(path string) string {
	return path + ".manifest.json"
}

// Save writes b to path as JSON together with a manifest.
func Save(b *models.Backup, path string) (*Manifest, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	sum := sha256.Sum256(data)
	m := &Manifest{
		Filename:  filepath.Base(path),
		CreatedAt: b.Timestamp,
		Provider:  b.Provider,
		Tables:    sortedTables(b),
		Records:   b.RecordCount(),
		Size:      int64(len(data)),
		SHA256:    hex.EncodeToString(sum[:]),
	}
	mdata, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(ManifestPath(path), mdata, 0600); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	logger.Infof("Saved backup of %d records to %s (%s)", m.Records, path, humanize.Bytes(uint64(m.Size)))
	return m, nil
}

// Load reads a snapshot and verifies it against its manifest.
func Load(path string) (*models.Backup, error) {
	mdata, err := os.ReadFile(ManifestPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest not found for %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(mdata, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	sum := sha256.Sum256(data)
	if actual := hex.EncodeToString(sum[:]); actual != m.SHA256 {
		return nil, fmt.Errorf("backup checksum mismatch for %s: expected %s, got %s", path, m.SHA256, actual)
	}

	var b models.Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup: %w", err)
	}
	if b.Tables == nil {
		b.Tables = make(map[string]map[string]models.Document)
	}
	return &b, nil
}
