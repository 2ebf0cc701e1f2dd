package pipeline

import "math"

// SizeWindow is the bounding-box window a plausible per-item metric
// renders inside. Below it are incidental digits (timestamps, badge
// counters); above it are headline numbers spanning the whole panel.
type SizeWindow struct {
	WMin, WMax float64
	HMin, HMax float64
}

// Contains reports whether the rendered box fits the window.
func (w SizeWindow) Contains(width, height float64) bool {
	return width >= w.WMin && width <= w.WMax &&
		height >= w.HMin && height <= w.HMax
}

// Classify filters candidates down to those plausibly representing one
// metric per grid item. Two filters run in sequence:
//
//  1. the geometric size window, and
//  2. a re-binning at a second, coarser cell size keyed by position
//     only. Each item's metric occupies a unique on-screen footprint
//     larger than the jitter the dedup stage tolerates, so at most one
//     survivor may claim a cell. The first claimant (in the stable
//     order from deduplication) wins.
//
// The coarse cell size must be strictly larger than the dedup cell
// size for the footprint argument to hold.
func Classify(cands []CandidateToken, window SizeWindow, cellSize int) []CandidateToken {
	if cellSize <= 0 {
		cellSize = 1
	}
	size := float64(cellSize)

	type cell struct{ col, row int }
	claimed := make(map[cell]struct{}, len(cands))
	out := make([]CandidateToken, 0, len(cands))

	for _, c := range cands {
		if !window.Contains(c.Width, c.Height) {
			continue
		}
		k := cell{
			col: int(math.Floor(c.Left / size)),
			row: int(math.Floor(c.Top / size)),
		}
		if _, taken := claimed[k]; taken {
			continue
		}
		claimed[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
