package pipeline

import (
	"regexp"
	"strings"
)

// RawObservation is one sighting of a rendered text fragment during one
// sampling pass. Coordinates are absolute document coordinates
// (viewport-relative top plus the scroll offset at snapshot time);
// Width/Height are rendered bounding-box dimensions in device-independent
// pixels. Observations are value objects: created per pass, never
// mutated, discarded after deduplication.
type RawObservation struct {
	Text   string
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

// CandidateToken is the representative of one or more RawObservations
// believed to be the same visual element.
type CandidateToken struct {
	RawObservation
}

// metricTokenRE is the numeric-token grammar: a non-negative decimal
// number optionally followed by a magnitude letter K/M/B. The whole
// trimmed text must match; anything else ("12 views", "3:45", "#7") is
// not a bare metric token.
var metricTokenRE = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s*([KMB])?$`)

// IsMetricToken reports whether the trimmed text fully matches the
// numeric-token grammar.
func IsMetricToken(text string) bool {
	return metricTokenRE.MatchString(strings.TrimSpace(text))
}

// ScanBounds is the visibility window for candidate tokens. Nodes above
// TopMargin sit in fixed headers; nodes below MaxTop or right of
// MaxLeft are outside the plausible content region (hidden menus,
// off-canvas panels).
type ScanBounds struct {
	TopMargin float64
	MaxTop    float64
	MaxLeft   float64
}

// ScanTokens filters a snapshot of text-bearing nodes down to candidate
// numeric tokens: grammar match on the trimmed text, non-zero rendered
// box, and position inside the visibility window. A result of zero
// tokens is not an error.
func ScanTokens(obs []RawObservation, bounds ScanBounds) []RawObservation {
	out := make([]RawObservation, 0, len(obs))
	for _, o := range obs {
		text := strings.TrimSpace(o.Text)
		if text == "" || !metricTokenRE.MatchString(text) {
			continue
		}
		if o.Width <= 0 || o.Height <= 0 {
			continue
		}
		if o.Top < bounds.TopMargin || o.Top > bounds.MaxTop {
			continue
		}
		if o.Left < 0 || o.Left > bounds.MaxLeft {
			continue
		}
		out = append(out, RawObservation{
			Text:   text,
			Top:    o.Top,
			Left:   o.Left,
			Width:  o.Width,
			Height: o.Height,
		})
	}
	return out
}
