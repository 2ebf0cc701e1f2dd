package pipeline

import "testing"

func TestFallbackCandidatesFilters(t *testing.T) {
	params := DefaultFallbackParams()

	obs := []RawObservation{
		{Text: "4.4K", Top: 100, Left: 10, Width: 40, Height: 18},    // keep
		{Text: " 120 ", Top: 100, Left: 310, Width: 30, Height: 18},  // keep, trimmed
		{Text: "caption", Top: 100, Left: 620, Width: 40, Height: 18},// grammar
		{Text: "500", Top: 100, Left: 910, Width: 10, Height: 18},    // too narrow
		{Text: "500", Top: 100, Left: 1210, Width: 200, Height: 18},  // too wide
		{Text: "500", Top: 100, Left: 1510, Width: 40, Height: 0},    // no height
	}

	got := FallbackCandidates(obs, params)
	if len(got) != 2 {
		t.Fatalf("FallbackCandidates kept %d, want 2: %+v", len(got), got)
	}
	if got[0].Text != "4.4K" || got[1].Text != "120" {
		t.Errorf("candidates = %+v, want 4.4K then trimmed 120", got)
	}
}

func TestFallbackCandidatesPositionalDedup(t *testing.T) {
	// Same cell, different text. The fallback population has no pass
	// overlap, so dedup is positional only and one survivor remains.
	params := DefaultFallbackParams()
	obs := []RawObservation{
		{Text: "120", Top: 100, Left: 10, Width: 40, Height: 18},
		{Text: "121", Top: 110, Left: 20, Width: 40, Height: 18},
	}
	got := FallbackCandidates(obs, params)
	if len(got) != 1 || got[0].Text != "120" {
		t.Errorf("FallbackCandidates = %+v, want single first claimant 120", got)
	}
}

func TestFallbackCandidatesEmpty(t *testing.T) {
	if got := FallbackCandidates(nil, DefaultFallbackParams()); len(got) != 0 {
		t.Errorf("FallbackCandidates(nil) = %+v, want empty", got)
	}
}
