package pipeline

import "testing"

var testWindow = SizeWindow{WMin: 10, WMax: 100, HMin: 10, HMax: 50}

func TestSizeWindowContains(t *testing.T) {
	tests := []struct {
		w, h float64
		want bool
	}{
		{40, 20, true},
		{10, 10, true},  // inclusive lower bounds
		{100, 50, true}, // inclusive upper bounds
		{9, 20, false},
		{101, 20, false},
		{40, 9, false},
		{40, 51, false},
		{500, 20, false},
	}
	for _, tt := range tests {
		if got := testWindow.Contains(tt.w, tt.h); got != tt.want {
			t.Errorf("Contains(%v, %v) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestClassifyExcludesOversized(t *testing.T) {
	cands := []CandidateToken{
		{RawObservation{Text: "4.4K", Top: 100, Left: 10, Width: 40, Height: 20}},
		{RawObservation{Text: "88176", Top: 100, Left: 700, Width: 500, Height: 20}}, // headline number
		{RawObservation{Text: "3", Top: 420, Left: 10, Width: 8, Height: 8}},         // badge counter
	}
	got := Classify(cands, testWindow, 250)
	if len(got) != 1 || got[0].Text != "4.4K" {
		t.Errorf("Classify = %+v, want only the 4.4K candidate", got)
	}
}

func TestClassifyOneSurvivorPerCell(t *testing.T) {
	// Two size-plausible candidates inside the same coarse cell. The
	// first in stable order claims it, the second is dropped.
	cands := []CandidateToken{
		{RawObservation{Text: "120", Top: 100, Left: 10, Width: 40, Height: 20}},
		{RawObservation{Text: "121", Top: 130, Left: 60, Width: 40, Height: 20}},
		{RawObservation{Text: "4.4K", Top: 100, Left: 310, Width: 40, Height: 20}},
	}
	got := Classify(cands, testWindow, 250)
	if len(got) != 2 {
		t.Fatalf("Classify kept %d candidates, want 2", len(got))
	}
	if got[0].Text != "120" || got[1].Text != "4.4K" {
		t.Errorf("Classify = %+v, want first claimant 120 then 4.4K", got)
	}
}

func TestClassifyDistantCandidatesNeverCollapse(t *testing.T) {
	// Same text, positions further apart than the cell size in one
	// axis: both survive.
	cands := []CandidateToken{
		{RawObservation{Text: "500", Top: 100, Left: 10, Width: 40, Height: 20}},
		{RawObservation{Text: "500", Top: 100, Left: 620, Width: 40, Height: 20}},
	}
	got := Classify(cands, testWindow, 250)
	if len(got) != 2 {
		t.Errorf("Classify kept %d candidates, want 2 (distinct cells)", len(got))
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	if got := Classify(nil, testWindow, 250); len(got) != 0 {
		t.Errorf("Classify(nil) = %+v, want empty", got)
	}
}
