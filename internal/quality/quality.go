package quality

import (
	"math"
	"strings"
	"unicode"
)

// Decision summarizes how usable a page's reconstructed text is for field
// extraction. LowQuality pages are reported but still processed.
type Decision struct {
	Quality    float64
	LowQuality bool
	Reasons    []string
	WordCount  int
}

func CountWords(s string) int {
	return len(strings.Fields(s))
}

func Score(text string, minWords int) Decision {
	wc := CountWords(text)
	total := float64(len([]rune(strings.TrimSpace(text))))
	if total == 0 {
		return Decision{LowQuality: true, Reasons: []string{"empty_text"}}
	}

	alphaRatio := float64(countIf(text, unicode.IsLetter)) / total
	digitRatio := float64(countIf(text, unicode.IsDigit)) / total
	garbageRatio := float64(countGarbage(text)) / total

	score := 1.0
	var reasons []string

	if wc < minWords {
		penalty := 0.40
		if wc < minWords/2 {
			penalty = 0.55
		}
		score -= penalty
		reasons = append(reasons, "low_word_count")
	}

	// Leases are mostly prose; numeric tables pull alpha down legitimately.
	if alphaRatio < 0.30 {
		penalty := 0.35
		if digitRatio > 0.20 {
			penalty = 0.20
		}
		score -= penalty
		reasons = append(reasons, "low_alpha_ratio")
	}

	if garbageRatio > 0.01 {
		score -= math.Min(0.50, garbageRatio*50)
		reasons = append(reasons, "garbage_chars")
	}

	if singleRuneWordRatio(text) > 0.30 {
		score -= 0.25
		reasons = append(reasons, "scrambled_text")
	}

	if hasRuns(text, 5) {
		score -= 0.10
		reasons = append(reasons, "repeated_patterns")
	}

	score = math.Max(0, math.Min(1, score))
	return Decision{
		Quality:    math.Round(score*100) / 100,
		LowQuality: score < 0.5,
		Reasons:    reasons,
		WordCount:  wc,
	}
}

func countIf(s string, pred func(rune) bool) int {
	n := 0
	for _, r := range s {
		if pred(r) {
			n++
		}
	}
	return n
}

func countGarbage(s string) int {
	return countIf(s, func(r rune) bool {
		return r == '\uFFFD' || (unicode.IsControl(r) && r != '\n' && r != '\t')
	})
}

func singleRuneWordRatio(s string) float64 {
	words := strings.Fields(s)
	if len(words) == 0 {
		return 0
	}
	single := 0
	for _, w := range words {
		if len([]rune(w)) == 1 {
			single++
		}
	}
	return float64(single) / float64(len(words))
}

// hasRuns reports a rune repeated n or more times in a row, e.g. "______"
// signature lines or "....." leaders.
func hasRuns(s string, n int) bool {
	count := 0
	var last rune
	for _, r := range s {
		if r == last {
			count++
			if count >= n {
				return true
			}
			continue
		}
		last, count = r, 1
	}
	return false
}
