package similarity

import (
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const (
	// DefaultMatchThreshold is the exclusive lower bound for a Match verdict.
	DefaultMatchThreshold = 0.7

	// DefaultCandidateThreshold is the exclusive lower bound for accepting a
	// fuzzy name candidate against a user hint.
	DefaultCandidateThreshold = 0.5
)

type Verdict int

const (
	NotFound Verdict = iota
	Match
	Mismatch
	FoundOnly
)

var verdictLabels = map[Verdict]string{
	Match:     "✅ Match",
	Mismatch:  "❌ Mismatch",
	NotFound:  "❌ Not Found",
	FoundOnly: "ℹ️ Found",
}

func (v Verdict) String() string {
	if s, ok := verdictLabels[v]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the verdict as its display literal, so JSON output
// carries "✅ Match" rather than an integer.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Fails reports whether the verdict makes the whole document fail. A missing
// field only counts against the document when the user supplied a value.
func (v Verdict) Fails(userSupplied bool) bool {
	switch v {
	case Mismatch:
		return true
	case NotFound:
		return userSupplied
	default:
		return false
	}
}

// Normalize lowercases s and keeps only letters and digits.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var dice = metrics.NewSorensenDice()

// Ratio is the Sørensen–Dice coefficient over character bigrams of the
// normalized inputs. Inputs with nothing left after normalization score 0.
func Ratio(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return strutil.Similarity(na, nb, dice)
}

type Scorer struct {
	MatchThreshold float64
}

func NewScorer(threshold float64) Scorer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	return Scorer{MatchThreshold: threshold}
}

// Classify maps a similarity ratio to Match or Mismatch. The threshold is
// exclusive.
func (s Scorer) Classify(ratio float64) Verdict {
	if ratio > s.MatchThreshold {
		return Match
	}
	return Mismatch
}

func (s Scorer) Score(userValue, extracted string) Verdict {
	if strings.TrimSpace(extracted) == "" {
		return NotFound
	}
	if strings.TrimSpace(userValue) == "" {
		return FoundOnly
	}
	return s.Classify(Ratio(userValue, extracted))
}
