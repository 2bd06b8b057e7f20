package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/conductor/internal/model"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// CSVHeader is the fixed column order of the tabular export.
var CSVHeader = []string{
	"executionId",
	"projectName",
	"scenarioName",
	"environmentName",
	"status",
	"durationMs",
	"startedAt",
	"finishedAt",
	"baseUrl",
	"tags",
}

// TagSeparator joins tags into the single tabular tags column.
const TagSeparator = "|"

// ParseFormat normalizes an export format name. Empty selects CSV.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Export renders records in the given format.
func Export(w io.Writer, format string, records []model.HistoryRecord) error {
	switch format {
	case FormatJSON:
		return ExportJSON(w, records)
	case FormatCSV:
		return ExportCSV(w, records)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportJSON writes records as an indented JSON array.
func ExportJSON(w io.Writer, records []model.HistoryRecord) error {
	if records == nil {
		records = []model.HistoryRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode history json: %w", err)
	}
	return nil
}

// ExportCSV writes records with CSVHeader as the first row.
func ExportCSV(w io.Writer, records []model.HistoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.ExecutionID,
			r.ProjectName,
			r.ScenarioName,
			r.EnvironmentName,
			string(r.Status),
			formatDuration(r.DurationMS),
			formatTime(r.StartedAt),
			formatTime(r.FinishedAt),
			r.BaseURL,
			strings.Join(r.Tags, TagSeparator),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ExecutionID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return ""
	}
	return strconv.FormatInt(*ms, 10)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
