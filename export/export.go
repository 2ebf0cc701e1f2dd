// Package export serializes extraction records to CSV and JSON files.
// Column order matches the record's field declaration order.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/use-agent/gridsight/models"
)

var csvHeader = []string{"label", "views", "likes", "comments", "shares", "saves", "scraped_at"}

// WriteCSV writes records as CSV with a header row. Unresolved metrics
// serialize as empty cells.
func WriteCSV(w io.Writer, records []models.PostMetricRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.Label,
			orEmpty(rec.Views),
			orEmpty(rec.Likes),
			orEmpty(rec.Comments),
			orEmpty(rec.Shares),
			orEmpty(rec.Saves),
			rec.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes records as an indented JSON array. Unresolved
// metrics serialize as null, matching the API response shape.
func WriteJSON(w io.Writer, records []models.PostMetricRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// SaveCSV writes records to a CSV file, creating or truncating it.
func SaveCSV(path string, records []models.PostMetricRecord) error {
	return save(path, records, WriteCSV)
}

// SaveJSON writes records to a JSON file, creating or truncating it.
func SaveJSON(path string, records []models.PostMetricRecord) error {
	return save(path, records, WriteJSON)
}

func save(path string, records []models.PostMetricRecord, write func(io.Writer, []models.PostMetricRecord) error) error {
	f, err := os.Create(path)
	if err != nil {
		return models.NewExtractError(models.ErrCodeExport, "failed to create output file", err)
	}
	defer f.Close()

	if err := write(f, records); err != nil {
		return models.NewExtractError(models.ErrCodeExport, "failed to write records", err)
	}
	return f.Sync()
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
