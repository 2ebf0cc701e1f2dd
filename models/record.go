package models

import "time"

// PostMetricRecord is one output row of an extraction run: a single
// grid item with its metric values. Views carries the raw on-screen
// magnitude literal (e.g. "4.4K"), never value-normalized. The
// secondary metrics are nil unless detail enrichment resolved them.
type PostMetricRecord struct {
	// Label is the stable sequential identifier ("image1", "image2", …)
	// assigned in reading order. 1-based, no gaps, unique per run.
	Label string `json:"label"`

	Views    *string `json:"views"`
	Likes    *string `json:"likes"`
	Comments *string `json:"comments"`
	Shares   *string `json:"shares"`
	Saves    *string `json:"saves"`

	// ScrapedAt is captured at record-construction time.
	ScrapedAt time.Time `json:"scraped_at"`
}

// String is a pointer-of helper for optional metric fields.
func String(s string) *string { return &s }
