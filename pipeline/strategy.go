package pipeline

import "context"

// Strategy is one way of harvesting candidate observations from the
// render surface. Strategies share a single contract so the pipeline
// can try them in priority order instead of hard-coding fallthrough
// between ad-hoc query patterns.
type Strategy interface {
	// Name identifies the strategy ("primary", "fallback").
	Name() string

	// Collect harvests raw observations. An empty result is valid;
	// an error means the surface itself could not be queried.
	Collect(ctx context.Context, surf Surface) ([]RawObservation, error)
}

// primaryStrategy is the full multi-pass path: sampler-driven coverage
// of the whole document, then the token scanner's grammar and
// visibility filters.
type primaryStrategy struct {
	sampler Sampler
	bounds  ScanBounds
	passes  int
}

func (p *primaryStrategy) Name() string { return "primary" }

func (p *primaryStrategy) Collect(ctx context.Context, surf Surface) ([]RawObservation, error) {
	obs, passes, err := p.sampler.Collect(ctx, surf)
	p.passes = passes
	if err != nil {
		return nil, err
	}
	return ScanTokens(obs, p.bounds), nil
}

// fallbackStrategy scans the leaf-container population in a single
// pass at the current (restored) scroll origin. It never re-invokes
// the sampler; it is a parallel path chosen when the primary output is
// implausibly sparse.
type fallbackStrategy struct{}

func (fallbackStrategy) Name() string { return "fallback" }

func (fallbackStrategy) Collect(_ context.Context, surf Surface) ([]RawObservation, error) {
	return surf.LeafSnapshot()
}
