package fields

import (
	"regexp"
	"strings"

	"github.com/toricodesthings/document-verification-service/internal/similarity"
)

// Strategy tries to pull one field value out of the full document text. The
// hint is the user-supplied value for the field and may be empty.
type Strategy func(text, hint string) (string, bool)

// FirstMatch runs strategies in order and returns the first non-empty value,
// with whitespace runs collapsed to single spaces.
func FirstMatch(text, hint string, strategies ...Strategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(text, hint); ok {
			if v = clean(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

var (
	anySpace        = regexp.MustCompile(`\s+`)
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
)

func clean(s string) string {
	return anySpace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// trimName drops sentence punctuation that a name capture picks up at the end
// of a clause.
func trimName(s string) string {
	return strings.TrimRight(clean(s), ".,; ")
}

func oneLine(text string) string {
	return anySpace.ReplaceAllString(text, " ")
}

// lineView collapses horizontal whitespace but keeps line breaks, so label
// captures stop at the end of the line they start on.
func lineView(text string) string {
	return horizontalSpace.ReplaceAllString(text, " ")
}

func alternation(parts ...string) string {
	var alts []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			alts = append(alts, "(?:"+p+")")
		}
	}
	return strings.Join(alts, "|")
}

// nextLabel finds a following "<word> Name:" caption on the same line.
var nextLabel = regexp.MustCompile(`(?i)(?:^|[ \t]+)[A-Za-z]+[ \t]+name[ \t]*[:\-]`)

// LabelName matches "<role> [name] : Value" or "<synonym> [name] - Value".
// role and synonym are regular expression fragments. The value may start on
// the next line when nothing follows the separator, and it stops before a
// second label sharing the line.
func LabelName(role, synonym string) Strategy {
	re := regexp.MustCompile(`(?i)\b(?:` + alternation(role, synonym) +
		`)(?:[ \t]*name)?[ \t]*[:\-][ \t]*(?:\n[ \t]*)?([A-Za-z. \t]{4,40})`)
	return func(text, _ string) (string, bool) {
		view := lineView(text)
		m := re.FindStringSubmatchIndex(view)
		if m == nil {
			return "", false
		}
		v := view[m[2]:m[3]]
		if loc := nextLabel.FindStringIndex(view[m[2]:]); loc != nil && loc[0] < len(v) {
			v = v[:loc[0]]
		}
		v = trimName(v)
		return v, v != ""
	}
}

const partyName = `[A-Z][A-Za-z.']*(?:[ \t]+[A-Z][A-Za-z.']*)*`

var betweenParties = regexp.MustCompile(`(?i:\bbetween)\s+(` + partyName + `)\s+(?i:and|represented\s+by)\s+(` + partyName + `)`)

// Between reads the "between X and Y" clause of an agreement. Group 1 is the
// first-named party (landlord, lessor, seller), group 2 the counterparty.
func Between(group int) Strategy {
	return func(text, _ string) (string, bool) {
		m := betweenParties.FindStringSubmatch(lineView(text))
		if m == nil || group < 1 || group >= len(m) {
			return "", false
		}
		v := trimName(m[group])
		if n := len([]rune(v)); n < 4 || n > 40 {
			return "", false
		}
		return v, true
	}
}

var capitalizedRun = regexp.MustCompile(`[A-Z][a-z']+(?:\s+[A-Z][a-z']+)+`)

// FuzzyName picks the run of capitalized words most similar to the hint. It
// only applies when a hint is present and the best ratio beats threshold.
func FuzzyName(threshold float64) Strategy {
	return func(text, hint string) (string, bool) {
		if strings.TrimSpace(hint) == "" {
			return "", false
		}
		best, bestScore := "", 0.0
		for _, c := range capitalizedRun.FindAllString(text, -1) {
			if r := similarity.Ratio(hint, c); r > bestScore {
				best, bestScore = c, r
			}
		}
		if bestScore > threshold {
			return best, true
		}
		return "", false
	}
}

var (
	addressStart  = regexp.MustCompile(`(?i)^(?:flat|plot|door|apt|apartment|house|villa|d\.?\s?no|no)\b`)
	addressPhrase = regexp.MustCompile(`(?i)located at|situated at|address`)
	trailingComma = regexp.MustCompile(`,:*\s*$`)
)

// LocationLines returns the first line that looks like an address. A line
// ending in a comma continues on the next line.
func LocationLines() Strategy {
	return func(text, _ string) (string, bool) {
		var lines []string
		for _, ln := range strings.Split(text, "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				lines = append(lines, ln)
			}
		}
		for i, ln := range lines {
			if !addressStart.MatchString(ln) && !addressPhrase.MatchString(ln) {
				continue
			}
			if trailingComma.MatchString(ln) && i+1 < len(lines) {
				ln += " " + lines[i+1]
			}
			return ln, true
		}
		return "", false
	}
}

var flatClause = regexp.MustCompile(`(?i)(Flat\s\S.+?)(?:,\s*(?:Chennai|Bengaluru|Bangalore|Hyderabad|Mumbai|Delhi|Pune|Kolkata)[^,]*|,?\s*\b\d{6}\b|$)`)

// LocationFallback captures a "Flat ..." clause up to a city name, a six
// digit PIN code or the end of the text.
func LocationFallback() Strategy {
	return func(text, _ string) (string, bool) {
		m := flatClause.FindStringSubmatch(oneLine(text))
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

const amountValue = `([0-9]{1,3}(?:,[0-9]{2,3})+|[0-9]{3,7})`

// Amount captures the number following label, skipping currency markers
// (₹, Rs, Rs., INR, $). Thousands separators are removed from the result.
func Amount(label string) Strategy {
	re := regexp.MustCompile(`(?i)\b(?:` + label + `)[^0-9₹rs$]*[₹\sRs$.]*` + amountValue)
	return func(text, _ string) (string, bool) {
		m := re.FindStringSubmatch(oneLine(text))
		if m == nil {
			return "", false
		}
		return strings.ReplaceAll(m[1], ",", ""), true
	}
}

const dateValue = `([0-3]?\d[-/][0-1]?\d[-/]\d{4})`

// DateAfter captures a d-m-yyyy or d/m/yyyy date directly after one of the
// keyword fragments.
func DateAfter(keywords []string) Strategy {
	re := regexp.MustCompile(`(?i)\b(?:` + alternation(keywords...) + `)\s*` + dateValue)
	return func(text, _ string) (string, bool) {
		m := re.FindStringSubmatch(oneLine(text))
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// DateLabel captures a date after an explicit "<label>:" caption.
func DateLabel(label string) Strategy {
	re := regexp.MustCompile(`(?i)(?:` + label + `)\s*[:\-]?\s*` + dateValue)
	return func(text, _ string) (string, bool) {
		m := re.FindStringSubmatch(oneLine(text))
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}
