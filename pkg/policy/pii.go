package policy

import (
	"regexp"
	"strings"
)

// Violation type tags. The same tag appears inside the mask that replaces a
// detected span, e.g. [REDACTED:EMAIL].
const (
	TypeEmail      = "EMAIL"
	TypePhone      = "PHONE"
	TypeNationalID = "NATIONAL_ID"
	TypeCard       = "CARD"
)

// detector pairs a compiled pattern with its type tag. Validate, when set,
// confirms a candidate match before it counts as a violation; rejected
// candidates are left untouched.
type detector struct {
	typeTag  string
	expr     *regexp.Regexp
	validate func(match string) bool
}

// Detection order matters: payment cards claim long digit runs first so the
// looser phone and national-id patterns never misclassify them.
var detectors = []detector{
	{
		typeTag:  TypeCard,
		expr:     regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`),
		validate: luhnValid,
	},
	{
		typeTag: TypeNationalID,
		expr:    regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`),
	},
	{
		typeTag: TypePhone,
		expr:    regexp.MustCompile(`\b(?:\+?\d{1,2}[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`),
	},
	{
		typeTag: TypeEmail,
		expr:    regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`),
	},
}

// mask returns the type-tagged replacement for a detected span.
func mask(typeTag string) string {
	return "[REDACTED:" + typeTag + "]"
}

// maskPattern recognizes spans already replaced by mask. Detectors never see
// the inside of an existing mask, which keeps repeated scans idempotent: the
// case-insensitive email pattern would otherwise re-match mask text placed
// next to an "@".
var maskPattern = regexp.MustCompile(`\[REDACTED:[A-Z_]+\]`)

// scanString applies every detector to s and returns the redacted string plus
// the type tags of confirmed matches, in detection order.
func scanString(s string) (string, []string) {
	if s == "" {
		return s, nil
	}

	var found []string
	redacted := s
	for _, d := range detectors {
		matched := false
		redacted = replaceOutsideMasks(redacted, func(segment string) string {
			return d.expr.ReplaceAllStringFunc(segment, func(candidate string) string {
				if d.validate != nil && !d.validate(candidate) {
					return candidate
				}
				matched = true
				return mask(d.typeTag)
			})
		})
		if matched {
			found = append(found, d.typeTag)
		}
	}
	return redacted, found
}

// replaceOutsideMasks applies fn to the stretches of s between existing
// masks, leaving the masks themselves untouched. Mask delimiters are
// non-word characters, so splitting does not invent word boundaries that
// were not already there.
func replaceOutsideMasks(s string, fn func(string) string) string {
	if !containsMask(s) {
		return fn(s)
	}
	locs := maskPattern.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return fn(s)
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(fn(s[prev:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(fn(s[prev:]))
	return b.String()
}

// luhnValid reports whether the digits of candidate pass the Luhn checksum.
// Separators are ignored; runs outside the 13-19 digit card range fail.
func luhnValid(candidate string) bool {
	var digits []int
	for _, r := range candidate {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
			// separator
		default:
			return false
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// containsMask reports whether s already carries a redaction mask. Used by
// tests and callers that want to short-circuit double enforcement.
func containsMask(s string) bool {
	return strings.Contains(s, "[REDACTED:")
}
