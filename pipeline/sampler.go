package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/gridsight/simhash"
)

// Sampler drives the render surface across multiple overlapping scroll
// offsets so the full document height is covered even though only one
// viewport of a virtualized grid is rendered at a time. Successive
// passes overlap by OverlapRatio of the viewport, so an element cut by
// one pass boundary is captured whole in the neighbouring pass.
type Sampler struct {
	// MaxPasses caps the number of scroll-and-snapshot passes.
	MaxPasses int

	// OverlapRatio is the viewport fraction shared by successive
	// passes. Must stay above the tallest expected element divided by
	// the viewport height.
	OverlapRatio float64

	// SettleDelay is the suspension between scrolling and
	// snapshotting, giving the page's own async rendering time to
	// produce the newly visible items.
	SettleDelay time.Duration
}

// Collect samples the surface pass by pass and concatenates every
// pass's snapshot into one unordered observation multiset. Scroll
// position is restored to the origin on return regardless of outcome.
//
// An empty pass is not an error; sampling continues. A pass whose
// observation fingerprint matches the previous non-empty pass while the
// document stopped growing means further scrolling cannot reveal new
// content, and sampling ends early.
func (s Sampler) Collect(ctx context.Context, surf Surface) ([]RawObservation, int, error) {
	viewport, err := surf.ViewportHeight()
	if err != nil {
		return nil, 0, err
	}
	docHeight, err := surf.DocumentHeight()
	if err != nil {
		return nil, 0, err
	}

	stride := viewport - s.OverlapRatio*viewport
	if stride < 1 {
		stride = viewport
	}

	defer func() {
		// The scrolled state is scoped to this collection run.
		_ = surf.ScrollTo(0)
	}()

	var (
		all    []RawObservation
		prevFP uint64
		haveFP bool
		passes int
	)

	for offset := 0.0; offset < docHeight && passes < s.MaxPasses; offset += stride {
		if err := surf.ScrollTo(offset); err != nil {
			return nil, passes, err
		}
		if err := settle(ctx, s.SettleDelay); err != nil {
			return nil, passes, err
		}

		snap, err := surf.Snapshot()
		if err != nil {
			return nil, passes, err
		}
		passes++
		all = append(all, snap...)

		grown, err := surf.DocumentHeight()
		if err != nil {
			return nil, passes, err
		}

		if len(snap) > 0 {
			fp := simhash.FingerprintObservations(observationTexts(snap))
			if haveFP && fp == prevFP && grown <= docHeight {
				slog.Debug("sampler: surface stalled, ending early",
					"pass", passes,
					"offset", offset,
					"docHeight", docHeight,
				)
				break
			}
			prevFP, haveFP = fp, true
		}

		if grown > docHeight {
			docHeight = grown
		}
	}

	slog.Debug("sampler: collection complete",
		"passes", passes,
		"observations", len(all),
	)
	return all, passes, nil
}

// settle suspends for the settle delay or until the context is done.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func observationTexts(obs []RawObservation) []string {
	texts := make([]string, len(obs))
	for i, o := range obs {
		texts[i] = o.Text
	}
	return texts
}
