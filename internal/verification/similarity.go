package verification

import (
	"strings"
	"unicode"
)

// thresholdEpsilon absorbs float error so a ratio that is exactly on a
// threshold (e.g. 19/20 against 0.95) is treated as meeting it.
const thresholdEpsilon = 1e-9

// Similarity returns 1 - levenshtein(a', b') / max(len(a'), len(b')) where a'
// and b' are the lowercased, whitespace-collapsed inputs. Two empty strings
// are identical (1.0). The result is symmetric and lies in [0,1].
func Similarity(a, b string) float64 {
	ar := []rune(simplify(a))
	br := []rune(simplify(b))
	if len(ar) == 0 && len(br) == 0 {
		return 1
	}

	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}
	score := 1 - float64(levenshtein(ar, br))/float64(maxLen)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// meetsThreshold compares a similarity against a threshold with epsilon tolerance.
func meetsThreshold(similarity, threshold float64) bool {
	return similarity >= threshold-thresholdEpsilon
}

// levenshtein is the two-row dynamic-programming edit distance.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for c := range prev {
		prev[c] = c
	}

	for r := 1; r <= len(a); r++ {
		curr[0] = r
		for c := 1; c <= len(b); c++ {
			cost := 1
			if a[r-1] == b[c-1] {
				cost = 0
			}
			curr[c] = min(prev[c]+1, curr[c-1]+1, prev[c-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func simplify(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}
