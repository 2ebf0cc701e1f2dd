package simhash

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	text := "120 4.4K 89 1.2M 3.1K 500"
	fp1 := Fingerprint(text)
	fp2 := Fingerprint(text)

	if fp1 != fp2 {
		t.Errorf("identical texts produced different fingerprints: %064b vs %064b", fp1, fp2)
	}
}

func TestFingerprint_EmptyInput(t *testing.T) {
	if fp := Fingerprint(""); fp != 0 {
		t.Errorf("empty input should produce fingerprint 0, got: %064b", fp)
	}
}

func TestFingerprint_WhitespaceOnly(t *testing.T) {
	if fp := Fingerprint("   \t\n  "); fp != 0 {
		t.Errorf("whitespace-only input should produce fingerprint 0, got: %064b", fp)
	}
}

func TestFingerprintObservations_SamePass(t *testing.T) {
	pass := []string{"120", "4.4K", "89", "1.2M"}

	fp1 := FingerprintObservations(pass)
	fp2 := FingerprintObservations([]string{"120", "4.4K", "89", "1.2M"})

	if fp1 != fp2 {
		t.Errorf("identical passes produced different fingerprints: %064b vs %064b", fp1, fp2)
	}
	if fp1 == 0 {
		t.Error("non-empty pass should produce a non-zero fingerprint")
	}
}

func TestFingerprintObservations_OrderSensitive(t *testing.T) {
	fp1 := FingerprintObservations([]string{"120", "4.4K", "89", "500", "77", "3.1K"})
	fp2 := FingerprintObservations([]string{"3.1K", "89", "500", "120", "77", "4.4K"})

	if fp1 == fp2 {
		t.Error("reordered observations should produce a different fingerprint")
	}
}

func TestFingerprintObservations_Empty(t *testing.T) {
	if fp := FingerprintObservations(nil); fp != 0 {
		t.Errorf("empty pass should produce fingerprint 0, got: %064b", fp)
	}
}

func TestFingerprintObservations_SingleText(t *testing.T) {
	fp := FingerprintObservations([]string{"4.4K"})
	if fp == 0 {
		t.Error("single observation should produce a non-zero fingerprint")
	}
	if fp != FingerprintObservations([]string{"4.4K"}) {
		t.Error("single observation fingerprint should be deterministic")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
		{"zero zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	fp1 := FingerprintObservations([]string{"120", "4.4K", "89"})

	if !Similar(fp1, fp1, 0) {
		t.Error("identical fingerprints should be similar at threshold 0")
	}

	fp2 := FingerprintObservations([]string{"999", "1", "42", "7.7M", "13"})
	dist := Distance(fp1, fp2)

	if dist > 0 && Similar(fp1, fp2, dist-1) {
		t.Errorf("should not be similar below the actual distance %d", dist)
	}
	if !Similar(fp1, fp2, dist) {
		t.Errorf("should be similar at threshold equal to distance (%d)", dist)
	}
}

func TestMakeShingles(t *testing.T) {
	tokens := []string{"a", "b", "c", "d"}

	shingles := makeShingles(tokens, 2)
	expected := []string{"a_b", "b_c", "c_d"}

	if len(shingles) != len(expected) {
		t.Fatalf("expected %d shingles, got %d: %v", len(expected), len(shingles), shingles)
	}

	for i, s := range shingles {
		if s != expected[i] {
			t.Errorf("shingle[%d] = %q, want %q", i, s, expected[i])
		}
	}
}

func TestMakeShingles_TooFewTokens(t *testing.T) {
	if shingles := makeShingles([]string{"a"}, 2); shingles != nil {
		t.Errorf("expected nil for fewer tokens than n, got: %v", shingles)
	}
}
