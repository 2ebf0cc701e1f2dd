package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/use-agent/gridsight/models"
)

// Sequence imposes the externally visible reading order on the final
// candidate set: sorted by (⌊top/bandHeight⌋, left) ascending,
// top-to-bottom row bands first, left-to-right within a band. The band
// height is coarser than an individual item so items in the same visual
// row sort together even when their exact tops differ by a few pixels.
// Ties keep their prior relative order, so re-running over an identical
// candidate set yields an identical sequence.
func Sequence(cands []CandidateToken, bandHeight int) []CandidateToken {
	if bandHeight <= 0 {
		bandHeight = 1
	}
	band := func(c CandidateToken) int {
		return int(math.Floor(c.Top / float64(bandHeight)))
	}

	ordered := make([]CandidateToken, len(cands))
	copy(ordered, cands)
	sort.SliceStable(ordered, func(i, j int) bool {
		bi, bj := band(ordered[i]), band(ordered[j])
		if bi != bj {
			return bi < bj
		}
		return ordered[i].Left < ordered[j].Left
	})
	return ordered
}

// Records assigns sequential labels to an already-ordered candidate
// set and builds the output rows. Labels are "image1".."imageN" in
// sequence order; the views field carries the raw token text.
func Records(ordered []CandidateToken, now time.Time) []models.PostMetricRecord {
	records := make([]models.PostMetricRecord, len(ordered))
	for i, c := range ordered {
		records[i] = models.PostMetricRecord{
			Label:     fmt.Sprintf("image%d", i+1),
			Views:     models.String(c.Text),
			ScrapedAt: now,
		}
	}
	return records
}
