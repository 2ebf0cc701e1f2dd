package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/gridsight/models"
)

// Options enumerates every tunable of the extraction pipeline. The
// defaults encode the typical rendering of one dashboard layout at a
// ~1080p viewport; a different surface or window size needs retuning.
type Options struct {
	MaxPasses          int           // sampling passes cap; default 50
	ScrollOverlapRatio float64       // pass overlap as viewport fraction; default 0.1
	SettleDelay        time.Duration // post-scroll render suspension; default 1.5s

	DedupCellSize    int // G1, cross-pass dedup grid; default 150
	ClassifyCellSize int // G2 > G1, one-metric-per-item grid; default 250
	RowBandHeight    int // reading-order row band; default 200

	SizeFilter        SizeWindow     // plausible metric box; default 10–100 × 10–50
	FallbackThreshold int            // min classified count before escalating; default 10
	Bounds            ScanBounds     // scan visibility window
	Fallback          FallbackParams // fallback strategy tuning
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxPasses:          50,
		ScrollOverlapRatio: 0.1,
		SettleDelay:        1500 * time.Millisecond,
		DedupCellSize:      150,
		ClassifyCellSize:   250,
		RowBandHeight:      200,
		SizeFilter:         SizeWindow{WMin: 10, WMax: 100, HMin: 10, HMax: 50},
		FallbackThreshold:  10,
		Bounds:             ScanBounds{TopMargin: 60, MaxTop: 200000, MaxLeft: 2400},
		Fallback:           DefaultFallbackParams(),
	}
}

// Result is the outcome of one extraction run. Tokens holds the
// surviving candidates in the same order as Records, so a collaborator
// that needs on-screen positions (detail enrichment) can map a record
// back to where its token rendered.
type Result struct {
	Records  []models.PostMetricRecord
	Tokens   []CandidateToken
	Strategy string // which strategy produced Records
	Passes   int    // sampling passes performed by the primary path
}

// Pipeline turns the noisy, duplicated, over-inclusive observation
// stream of a scrolled virtualized grid into a deterministic,
// one-record-per-item metric sequence. A Pipeline is stateless across
// runs; all per-run state is owned by the Extract invocation, and the
// design assumes at most one run is active per surface at a time.
type Pipeline struct {
	opts Options
	now  func() time.Time
}

// New creates a Pipeline. Zero-valued option fields are replaced by the
// documented defaults, so a partially filled Options is safe.
func New(opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = def.MaxPasses
	}
	if opts.ScrollOverlapRatio <= 0 || opts.ScrollOverlapRatio >= 1 {
		opts.ScrollOverlapRatio = def.ScrollOverlapRatio
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = def.SettleDelay
	}
	if opts.DedupCellSize <= 0 {
		opts.DedupCellSize = def.DedupCellSize
	}
	if opts.ClassifyCellSize <= 0 {
		opts.ClassifyCellSize = def.ClassifyCellSize
	}
	if opts.RowBandHeight <= 0 {
		opts.RowBandHeight = def.RowBandHeight
	}
	if opts.SizeFilter == (SizeWindow{}) {
		opts.SizeFilter = def.SizeFilter
	}
	if opts.FallbackThreshold <= 0 {
		opts.FallbackThreshold = def.FallbackThreshold
	}
	if opts.Bounds == (ScanBounds{}) {
		opts.Bounds = def.Bounds
	}
	if opts.Fallback == (FallbackParams{}) {
		opts.Fallback = def.Fallback
	}
	return &Pipeline{opts: opts, now: time.Now}
}

// Extract runs the full pipeline against the surface:
//
//	sample → scan → dedup (G1) → classify (size + G2) → sequence
//
// If the classifier keeps fewer candidates than the fallback threshold,
// the primary result is discarded entirely and the fallback strategy's
// candidates are sequenced instead — under-extraction at that scale is
// a structural mismatch with the page, not a genuinely sparse page.
//
// Extract is deterministic: an identical sequence of surface snapshots
// yields identical labels, order, and values. Zero records is a valid
// outcome, not an error; only surface communication failures return one.
func (p *Pipeline) Extract(ctx context.Context, surf Surface) (*Result, error) {
	primary := &primaryStrategy{
		sampler: Sampler{
			MaxPasses:    p.opts.MaxPasses,
			OverlapRatio: p.opts.ScrollOverlapRatio,
			SettleDelay:  p.opts.SettleDelay,
		},
		bounds: p.opts.Bounds,
	}

	tokens, err := primary.Collect(ctx, surf)
	if err != nil {
		return nil, snapshotError(err)
	}

	candidates := Deduplicate(tokens, p.opts.DedupCellSize)
	classified := Classify(candidates, p.opts.SizeFilter, p.opts.ClassifyCellSize)

	slog.Debug("pipeline: primary strategy complete",
		"tokens", len(tokens),
		"candidates", len(candidates),
		"classified", len(classified),
		"passes", primary.passes,
	)

	strategy := primary.Name()
	final := classified

	if len(classified) < p.opts.FallbackThreshold {
		slog.Info("pipeline: sparse primary result, switching strategy",
			"classified", len(classified),
			"threshold", p.opts.FallbackThreshold,
		)
		fb := fallbackStrategy{}
		leafObs, err := fb.Collect(ctx, surf)
		if err != nil {
			return nil, snapshotError(err)
		}
		strategy = fb.Name()
		final = FallbackCandidates(leafObs, p.opts.Fallback)
	}

	ordered := Sequence(final, p.opts.RowBandHeight)
	records := Records(ordered, p.now())

	slog.Info("pipeline: extraction complete",
		"strategy", strategy,
		"records", len(records),
		"passes", primary.passes,
	)

	return &Result{
		Records:  records,
		Tokens:   ordered,
		Strategy: strategy,
		Passes:   primary.passes,
	}, nil
}

// snapshotError wraps surface failures, preserving context
// deadline/cancel classification for the API layer.
func snapshotError(err error) error {
	var extractErr *models.ExtractError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.NewExtractError(models.ErrCodeTimeout, "extraction deadline exceeded", err)
	case errors.As(err, &extractErr):
		return err
	default:
		return models.NewExtractError(models.ErrCodeSnapshot, "render surface query failed", err)
	}
}
