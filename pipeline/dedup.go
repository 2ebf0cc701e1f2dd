package pipeline

import "math"

// dedupKey identifies observations believed to be the same visual
// element: same coarse grid cell, same text. Including the text keeps
// two distinct elements that happen to share a cell apart — at the
// known cost of merging two genuinely distinct items showing the same
// value at near-identical positions. Distinct items of different
// magnitude almost always differ in text, so precision wins here.
type dedupKey struct {
	col, row int
	text     string
}

// Deduplicate collapses the raw observation multiset into one
// CandidateToken per visual element, removing re-observations caused by
// pass overlap. The first observation of a key is retained in insertion
// order; later ones sharing the key are dropped. The cell size must
// exceed cross-pass sub-pixel jitter and stay below item spacing.
//
// Deduplicate is idempotent: feeding its output back through collapses
// nothing further.
func Deduplicate(obs []RawObservation, cellSize int) []CandidateToken {
	if cellSize <= 0 {
		cellSize = 1
	}
	size := float64(cellSize)

	seen := make(map[dedupKey]struct{}, len(obs))
	out := make([]CandidateToken, 0, len(obs))
	for _, o := range obs {
		k := dedupKey{
			col:  int(math.Floor(o.Left / size)),
			row:  int(math.Floor(o.Top / size)),
			text: o.Text,
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, CandidateToken{o})
	}
	return out
}
