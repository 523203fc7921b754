package etl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *models.MigrationResult {
	users := &models.TableResult{TableName: "users", Status: models.TableStatusPartialSuccess, TotalRecords: 10, MigratedRecords: 3}
	for i := 0; i < 7; i++ {
		users.Errors = append(users.Errors, models.TableError{Key: fmt.Sprintf("u%d", i), Message: "missing required fields: name"})
	}
	orders := &models.TableResult{TableName: "orders", Status: models.TableStatusSuccess, TotalRecords: 2, MigratedRecords: 2}

	start := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	r := &models.MigrationResult{
		FromProvider: "mongo",
		ToProvider:   "sqlite",
		StartedAt:    start,
		Tables:       []*models.TableResult{users, orders},
		Aborted:      true,
		Summary:      models.Summary{Errors: []string{"migration aborted: boom", "tables not started: audit"}},
	}
	r.Finalize(start.Add(1500 * time.Millisecond))
	return r
}

func TestRenderMarkdownCapsErrors(t *testing.T) {
	md, err := RenderMarkdown(sampleResult())
	require.NoError(t, err)

	assert.Contains(t, md, "- **From:** mongo")
	assert.Contains(t, md, "- **Duration:** 1500 ms")
	assert.Contains(t, md, "- **Aborted:** yes")
	assert.Contains(t, md, "| users | partial-success | 10 | 3 | 30.0% |")
	assert.Contains(t, md, "| orders | success | 2 | 2 | 100.0% |")
	assert.Contains(t, md, "### users errors (7)")
	assert.Contains(t, md, "`u4`: missing required fields: name")
	assert.NotContains(t, md, "`u5`")
	assert.Contains(t, md, "... and 2 more")
	assert.NotContains(t, md, "### orders errors")

	assert.Contains(t, md, "## Global errors")
	assert.Contains(t, md, "- tables not started: audit")
	assert.Equal(t, 1, strings.Count(md, "- migration aborted: boom"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "mongo", decoded["fromProvider"])
	summary := decoded["summary"].(map[string]interface{})
	assert.EqualValues(t, 12, summary["totalRecords"])
	assert.EqualValues(t, 1, summary["successfulTables"])
}

func TestSaveReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	jsonPath, mdPath, err := SaveReport(sampleResult(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "migration-20240309-140507.json"), jsonPath)
	assert.Equal(t, filepath.Join(dir, "migration-20240309-140507.md"), mdPath)

	for _, p := range []string{jsonPath, mdPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
