package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/gridsight/models"
)

func sampleRecords() []models.PostMetricRecord {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []models.PostMetricRecord{
		{
			Label:     "image1",
			Views:     models.String("4.4K"),
			Likes:     models.String("312"),
			ScrapedAt: ts,
		},
		{
			Label:     "image2",
			Views:     models.String("120"),
			ScrapedAt: ts,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}

	want := "label,views,likes,comments,shares,saves,scraped_at\n" +
		"image1,4.4K,312,,,,2025-06-01T12:00:00Z\n" +
		"image2,120,,,,,2025-06-01T12:00:00Z\n"
	if got := buf.String(); got != want {
		t.Errorf("CSV output:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}
	if got := buf.String(); got != "label,views,likes,comments,shares,saves,scraped_at\n" {
		t.Errorf("empty CSV = %q, want header only", got)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	var decoded []models.PostMetricRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d records, want 2", len(decoded))
	}
	if decoded[0].Label != "image1" || *decoded[0].Views != "4.4K" {
		t.Errorf("decoded record 0 = %+v", decoded[0])
	}
	// Unresolved metrics round-trip as null, not empty strings.
	if decoded[1].Likes != nil {
		t.Errorf("record 2 likes = %v, want nil", *decoded[1].Likes)
	}
	if !strings.Contains(buf.String(), `"likes": null`) {
		t.Errorf("JSON output should carry explicit nulls:\n%s", buf.String())
	}
}
