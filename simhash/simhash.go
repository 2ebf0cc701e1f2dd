package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash over whitespace-separated
// tokens: FNV-64a per token, accumulated into a bit vector.
func Fingerprint(text string) uint64 {
	return fromTokens(strings.Fields(text))
}

// FingerprintObservations computes a SimHash of a sampling pass's
// observation texts, in observation order. Two passes whose rendered
// content did not change produce the same fingerprint, which is how the
// sampler detects a stalled virtualized feed. Positional shingling
// keeps a reordered grid from fingerprinting as unchanged.
func FingerprintObservations(texts []string) uint64 {
	if len(texts) == 0 {
		return 0
	}

	shingles := makeShingles(texts, 2)
	if len(shingles) == 0 {
		// A single-observation pass has no shingles; hash it directly.
		return fromTokens(texts)
	}
	return fromTokens(shingles)
}

func fromTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

// makeShingles creates n-gram shingles from a slice of tokens.
func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}

	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
