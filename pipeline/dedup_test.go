package pipeline

import (
	"reflect"
	"testing"
)

// jittered fabricates the overlap re-observations the sampler produces:
// each base element sighted in three passes with small positional
// offsets.
func jittered(base []RawObservation) []RawObservation {
	var out []RawObservation
	for _, delta := range []float64{0, 1.5, -2} {
		for _, o := range base {
			o.Top += delta
			o.Left += delta
			out = append(out, o)
		}
	}
	return out
}

func TestDeduplicateCollapsesJitter(t *testing.T) {
	base := []RawObservation{
		{Text: "120", Top: 100, Left: 10, Width: 40, Height: 20},
		{Text: "4.4K", Top: 100, Left: 310, Width: 40, Height: 20},
		{Text: "89", Top: 100, Left: 620, Width: 40, Height: 20},
		{Text: "1.2M", Top: 420, Left: 10, Width: 40, Height: 20},
		{Text: "3.1K", Top: 420, Left: 310, Width: 40, Height: 20},
		{Text: "500", Top: 420, Left: 620, Width: 40, Height: 20},
	}
	obs := jittered(base)
	if len(obs) != 18 {
		t.Fatalf("setup produced %d observations, want 18", len(obs))
	}

	got := Deduplicate(obs, 150)
	if len(got) != 6 {
		t.Fatalf("Deduplicate kept %d candidates, want 6", len(got))
	}
	for i, c := range got {
		if c.Text != base[i].Text {
			t.Errorf("candidate %d text = %q, want %q (first sighting wins)", i, c.Text, base[i].Text)
		}
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	obs := jittered([]RawObservation{
		{Text: "120", Top: 100, Left: 10, Width: 40, Height: 20},
		{Text: "4.4K", Top: 100, Left: 310, Width: 40, Height: 20},
	})

	once := Deduplicate(obs, 150)

	again := make([]RawObservation, len(once))
	for i, c := range once {
		again[i] = c.RawObservation
	}
	twice := Deduplicate(again, 150)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Deduplicate is not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestDeduplicateTextKeepsDistinctElementsApart(t *testing.T) {
	// Same cell, different text: both survive.
	obs := []RawObservation{
		{Text: "120", Top: 100, Left: 10, Width: 40, Height: 20},
		{Text: "121", Top: 105, Left: 15, Width: 40, Height: 20},
	}
	got := Deduplicate(obs, 150)
	if len(got) != 2 {
		t.Errorf("Deduplicate kept %d candidates, want 2 (text distinguishes)", len(got))
	}
}

func TestDeduplicatePreservesOrder(t *testing.T) {
	obs := []RawObservation{
		{Text: "b", Top: 400, Left: 10},
		{Text: "a", Top: 100, Left: 10},
		{Text: "b", Top: 401, Left: 11}, // dup of first
	}
	got := Deduplicate(obs, 150)
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "a" {
		t.Errorf("Deduplicate order = %+v, want insertion order b, a", got)
	}
}
