package pipeline

import (
	"math"
	"strings"
)

// FallbackParams tunes the lower-precision fallback extraction. The
// size window is narrower than the classifier's and the dedup cell is
// position-only: the leaf population carries no pass overlap, so text
// cannot help disambiguate and uniqueness per region is all that holds.
type FallbackParams struct {
	WMin, WMax float64 // default 15–80
	CellSize   int     // default 200
}

// DefaultFallbackParams returns the fallback tuning for the default
// dashboard layout.
func DefaultFallbackParams() FallbackParams {
	return FallbackParams{WMin: 15, WMax: 80, CellSize: 200}
}

// FallbackCandidates runs the independent, lower-precision extraction
// over the leaf-container population: same numeric grammar, its own
// size filter (any positive height), and a single-pass positional
// dedup. The output feeds the sequencer in the same shape the primary
// classifier produces, and fully replaces the primary result — it is
// never merged with discarded primary candidates.
func FallbackCandidates(obs []RawObservation, params FallbackParams) []CandidateToken {
	cellSize := params.CellSize
	if cellSize <= 0 {
		cellSize = 1
	}
	size := float64(cellSize)

	type cell struct{ col, row int }
	claimed := make(map[cell]struct{}, len(obs))
	out := make([]CandidateToken, 0, len(obs))

	for _, o := range obs {
		text := strings.TrimSpace(o.Text)
		if text == "" || !metricTokenRE.MatchString(text) {
			continue
		}
		if o.Width < params.WMin || o.Width > params.WMax || o.Height <= 0 {
			continue
		}
		k := cell{
			col: int(math.Floor(o.Left / size)),
			row: int(math.Floor(o.Top / size)),
		}
		if _, taken := claimed[k]; taken {
			continue
		}
		claimed[k] = struct{}{}
		out = append(out, CandidateToken{RawObservation{
			Text:   text,
			Top:    o.Top,
			Left:   o.Left,
			Width:  o.Width,
			Height: o.Height,
		}})
	}
	return out
}
