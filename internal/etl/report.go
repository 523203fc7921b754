package etl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/BartekS5/docshift/pkg/models"
	"github.com/Masterminds/sprig"
)

// maxReportErrors caps the errors listed per table in Markdown reports.
const maxReportErrors = 5

// WriteJSON dumps the full result as indented JSON.
func WriteJSON(w io.Writer, result *models.MigrationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

const markdownTmpl = `# Migration Report

- **From:** {{ .FromProvider }}
- **To:** {{ .ToProvider }}
- **Started:** {{ .StartedAt.UTC.Format "2006-01-02 15:04:05" }} UTC
- **Duration:** {{ .DurationMs }} ms
- **Dry run:** {{ .DryRun }}
{{- if .Aborted }}
- **Aborted:** yes
{{- end }}
{{- if .BackupTaken }}
- **Backup taken:** yes
{{- end }}

## Summary

| Metric | Value |
|---|---|
| Total tables | {{ .Summary.TotalTables }} |
| Successful tables | {{ .Summary.SuccessfulTables }} |
| Failed tables | {{ .Summary.FailedTables }} |
| Total records | {{ .Summary.TotalRecords }} |
| Migrated records | {{ .Summary.MigratedRecords }} |

## Tables

| Table | Status | Records | Migrated | Success rate |
|---|---|---|---|---|
{{- range .Tables }}
| {{ .TableName }} | {{ .Status }} | {{ .TotalRecords }} | {{ .MigratedRecords }} | {{ printf "%.1f" .SuccessRate }}% |
{{- end }}
{{ range .Tables }}{{ if .Errors }}
### {{ .TableName }} errors ({{ len .Errors }})
{{ range $i, $e := .Errors }}{{ if lt $i $.MaxErrors }}
- {{ if $e.Key }}` + "`{{ $e.Key }}`" + `: {{ end }}{{ $e.Message | trunc 200 }}
{{- end }}{{ end }}
{{- if gt (len .Errors) $.MaxErrors }}
- ... and {{ sub (len .Errors) $.MaxErrors }} more
{{- end }}
{{ end }}{{ end }}
{{- if .GlobalErrors }}
## Global errors
{{ range .GlobalErrors }}
- {{ . }}
{{- end }}
{{ end }}`

var reportTemplate = template.Must(template.New("report").Funcs(sprig.TxtFuncMap()).Parse(markdownTmpl))

type reportView struct {
	*models.MigrationResult
	MaxErrors    int
	GlobalErrors []string
}

// RenderMarkdown renders a human-readable report listing at most the first
// five errors of each table.
func RenderMarkdown(result *models.MigrationResult) (string, error) {
	view := reportView{MigrationResult: result, MaxErrors: maxReportErrors}
	// Finalize appends table errors after the run-level ones.
	tableErrs := 0
	for _, t := range result.Tables {
		tableErrs += len(t.Errors)
	}
	if n := len(result.Summary.Errors) - tableErrs; n > 0 {
		view.GlobalErrors = result.Summary.Errors[:n]
	}

	var b strings.Builder
	if err := reportTemplate.Execute(&b, view); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return b.String(), nil
}

// SaveReport writes migration-<timestamp>.json and .md into dir.
func SaveReport(result *models.MigrationResult, dir string) (jsonPath, mdPath string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create report directory: %w", err)
	}
	base := filepath.Join(dir, "migration-"+result.StartedAt.UTC().Format("20060102-150405"))
	jsonPath, mdPath = base+".json", base+".md"

	f, err := os.Create(jsonPath)
	if err != nil {
		return "", "", err
	}
	if err := WriteJSON(f, result); err != nil {
		f.Close()
		return "", "", err
	}
	if err := f.Close(); err != nil {
		return "", "", err
	}

	md, err := RenderMarkdown(result)
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		return "", "", err
	}
	return jsonPath, mdPath, nil
}
