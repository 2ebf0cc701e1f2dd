package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/use-agent/gridsight/models"
)

// fakeSurface replays a scripted sequence of snapshots. Document
// heights are consumed one value per call, holding the last value once
// the script runs out.
type fakeSurface struct {
	viewport float64
	heights  []float64
	passes   [][]RawObservation
	leaf     []RawObservation
	snapErr  error

	scrolls  []float64
	snapCall int
	hCall    int
}

func (f *fakeSurface) Snapshot() ([]RawObservation, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	i := f.snapCall
	f.snapCall++
	if i < len(f.passes) {
		return f.passes[i], nil
	}
	return nil, nil
}

func (f *fakeSurface) LeafSnapshot() ([]RawObservation, error) {
	return f.leaf, nil
}

func (f *fakeSurface) ScrollTo(offsetY float64) error {
	f.scrolls = append(f.scrolls, offsetY)
	return nil
}

func (f *fakeSurface) DocumentHeight() (float64, error) {
	i := f.hCall
	f.hCall++
	if i < len(f.heights) {
		return f.heights[i], nil
	}
	return f.heights[len(f.heights)-1], nil
}

func (f *fakeSurface) ViewportHeight() (float64, error) {
	return f.viewport, nil
}

// gridPass is a two-row, three-column grid of metric tokens shifted by
// delta pixels, simulating cross-pass positional jitter.
func gridPass(delta float64) []RawObservation {
	base := []RawObservation{
		{Text: "120", Top: 100, Left: 10, Width: 40, Height: 20},
		{Text: "4.4K", Top: 100, Left: 310, Width: 40, Height: 20},
		{Text: "89", Top: 100, Left: 620, Width: 40, Height: 20},
		{Text: "1.2M", Top: 420, Left: 10, Width: 40, Height: 20},
		{Text: "3.1K", Top: 420, Left: 310, Width: 40, Height: 20},
		{Text: "500", Top: 420, Left: 620, Width: 40, Height: 20},
	}
	for i := range base {
		base[i].Top += delta
		base[i].Left += delta
	}
	return base
}

func gridSurface() *fakeSurface {
	return &fakeSurface{
		viewport: 800,
		heights:  []float64{900},
		passes:   [][]RawObservation{gridPass(0), gridPass(1.5)},
	}
}

func gridOptions() Options {
	return Options{
		SettleDelay:       time.Nanosecond,
		FallbackThreshold: 1,
	}
}

func TestExtractBasicGrid(t *testing.T) {
	surf := gridSurface()
	p := New(gridOptions())

	result, err := p.Extract(context.Background(), surf)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if result.Strategy != "primary" {
		t.Errorf("strategy = %q, want primary", result.Strategy)
	}
	if len(result.Records) != 6 {
		t.Fatalf("got %d records, want 6: %+v", len(result.Records), result.Records)
	}

	wantViews := []string{"120", "4.4K", "89", "1.2M", "3.1K", "500"}
	for i, r := range result.Records {
		wantLabel := fmt.Sprintf("image%d", i+1)
		if r.Label != wantLabel {
			t.Errorf("record %d label = %q, want %q", i, r.Label, wantLabel)
		}
		if r.Views == nil || *r.Views != wantViews[i] {
			t.Errorf("record %d views = %v, want %q", i, r.Views, wantViews[i])
		}
	}

	if len(result.Tokens) != len(result.Records) {
		t.Errorf("tokens (%d) and records (%d) are not parallel", len(result.Tokens), len(result.Records))
	}
}

func TestExtractDeterministic(t *testing.T) {
	pinned := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	run := func() *Result {
		p := New(gridOptions())
		p.now = func() time.Time { return pinned }
		result, err := p.Extract(context.Background(), gridSurface())
		if err != nil {
			t.Fatalf("Extract returned error: %v", err)
		}
		return result
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical snapshot sequences produced different results:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestExtractScrollRestored(t *testing.T) {
	surf := gridSurface()
	p := New(gridOptions())

	if _, err := p.Extract(context.Background(), surf); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if len(surf.scrolls) == 0 {
		t.Fatal("no scroll commands issued")
	}
	if last := surf.scrolls[len(surf.scrolls)-1]; last != 0 {
		t.Errorf("final scroll offset = %v, want 0 (origin restored)", last)
	}
}

func TestExtractFallbackOnSparseResult(t *testing.T) {
	// Exactly 9 classified candidates against the default threshold
	// of 10: one short of plausible, so the whole primary result goes.
	primary := make([]RawObservation, 9)
	for i := range primary {
		primary[i] = RawObservation{
			Text:   fmt.Sprintf("%d", i+1),
			Top:    100,
			Left:   float64(i)*260 + 10,
			Width:  40,
			Height: 20,
		}
	}
	leaf := make([]RawObservation, 12)
	for i := range leaf {
		leaf[i] = RawObservation{
			Text:   fmt.Sprintf("%d", (i+1)*100),
			Top:    100,
			Left:   float64(i)*210 + 10,
			Width:  40,
			Height: 18,
		}
	}
	surf := &fakeSurface{
		viewport: 800,
		heights:  []float64{900},
		passes:   [][]RawObservation{primary},
		leaf:     leaf,
	}

	p := New(Options{SettleDelay: time.Nanosecond})
	result, err := p.Extract(context.Background(), surf)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if result.Strategy != "fallback" {
		t.Errorf("strategy = %q, want fallback", result.Strategy)
	}
	if len(result.Records) != 12 {
		t.Fatalf("got %d records, want 12 from the leaf population", len(result.Records))
	}
	// Replacement, not merge: none of the 9 primary candidates survive.
	if got := *result.Records[0].Views; got != "100" {
		t.Errorf("record 0 views = %q, want 100 (primary result discarded)", got)
	}
	for _, r := range result.Records {
		if len(*r.Views) == 1 {
			t.Errorf("primary candidate %q leaked into the fallback result", *r.Views)
		}
	}
}

func TestExtractEmptySurface(t *testing.T) {
	surf := &fakeSurface{
		viewport: 800,
		heights:  []float64{900},
	}

	p := New(Options{SettleDelay: time.Nanosecond})
	result, err := p.Extract(context.Background(), surf)
	if err != nil {
		t.Fatalf("empty surface must not error, got: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("got %d records from an empty surface, want 0", len(result.Records))
	}
}

func TestExtractSnapshotError(t *testing.T) {
	surf := gridSurface()
	surf.snapErr = errors.New("websocket closed")

	p := New(gridOptions())
	_, err := p.Extract(context.Background(), surf)
	if err == nil {
		t.Fatal("expected error from failing surface")
	}

	var extractErr *models.ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("error type = %T, want *models.ExtractError", err)
	}
	if extractErr.Code != models.ErrCodeSnapshot {
		t.Errorf("error code = %q, want %q", extractErr.Code, models.ErrCodeSnapshot)
	}
}

func TestExtractTimeoutClassification(t *testing.T) {
	surf := gridSurface()
	surf.snapErr = context.DeadlineExceeded

	p := New(gridOptions())
	_, err := p.Extract(context.Background(), surf)

	var extractErr *models.ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("error type = %T, want *models.ExtractError", err)
	}
	if extractErr.Code != models.ErrCodeTimeout {
		t.Errorf("error code = %q, want %q", extractErr.Code, models.ErrCodeTimeout)
	}
}

func TestSamplerCoversDocument(t *testing.T) {
	// Distinct texts per pass keep the stall detector quiet.
	passes := [][]RawObservation{
		{{Text: "a", Top: 100, Left: 10, Width: 40, Height: 20}},
		{{Text: "b", Top: 900, Left: 10, Width: 40, Height: 20}},
		{{Text: "c", Top: 1700, Left: 10, Width: 40, Height: 20}},
	}
	surf := &fakeSurface{viewport: 800, heights: []float64{2000}, passes: passes}

	s := Sampler{MaxPasses: 50, OverlapRatio: 0.1, SettleDelay: 0}
	obs, n, err := s.Collect(context.Background(), surf)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if n != 3 {
		t.Errorf("passes = %d, want 3 (viewport 800, overlap 0.1, height 2000)", n)
	}
	if len(obs) != 3 {
		t.Errorf("observations = %d, want 3", len(obs))
	}

	// Offsets advance by viewport minus overlap, then restore to origin.
	want := []float64{0, 720, 1440, 0}
	if !reflect.DeepEqual(surf.scrolls, want) {
		t.Errorf("scroll offsets = %v, want %v", surf.scrolls, want)
	}
}

func TestSamplerStallEndsEarly(t *testing.T) {
	// Identical non-empty passes with a non-growing document: scrolling
	// further cannot reveal new content.
	pass := []RawObservation{{Text: "42", Top: 100, Left: 10, Width: 40, Height: 20}}
	surf := &fakeSurface{
		viewport: 800,
		heights:  []float64{100000},
		passes:   [][]RawObservation{pass, pass, pass, pass},
	}

	s := Sampler{MaxPasses: 50, OverlapRatio: 0.1, SettleDelay: 0}
	_, n, err := s.Collect(context.Background(), surf)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("passes = %d, want 2 (stall detected on the second)", n)
	}
}

func TestSamplerFollowsDocumentGrowth(t *testing.T) {
	// The document reports 900 up front and 2000 once the first pass
	// loaded more content.
	passes := [][]RawObservation{
		{{Text: "a", Top: 100, Left: 10, Width: 40, Height: 20}},
		{{Text: "b", Top: 900, Left: 10, Width: 40, Height: 20}},
		{{Text: "c", Top: 1700, Left: 10, Width: 40, Height: 20}},
	}
	surf := &fakeSurface{viewport: 800, heights: []float64{900, 2000}, passes: passes}

	s := Sampler{MaxPasses: 50, OverlapRatio: 0.1, SettleDelay: 0}
	_, n, err := s.Collect(context.Background(), surf)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if n != 3 {
		t.Errorf("passes = %d, want 3 (sampling continues into grown region)", n)
	}
}

func TestSamplerHonoursMaxPasses(t *testing.T) {
	passes := make([][]RawObservation, 10)
	for i := range passes {
		passes[i] = []RawObservation{{
			Text: fmt.Sprintf("%d", i), Top: float64(i) * 800, Left: 10, Width: 40, Height: 20,
		}}
	}
	surf := &fakeSurface{viewport: 800, heights: []float64{100000}, passes: passes}

	s := Sampler{MaxPasses: 4, OverlapRatio: 0.1, SettleDelay: 0}
	_, n, err := s.Collect(context.Background(), surf)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if n != 4 {
		t.Errorf("passes = %d, want 4 (capped)", n)
	}
}

func TestSamplerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	surf := gridSurface()
	s := Sampler{MaxPasses: 50, OverlapRatio: 0.1, SettleDelay: time.Second}
	_, _, err := s.Collect(ctx, surf)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
