package verification

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// twoDigitYearPivot decides the century for DDMMYY dates: yy >= pivot is 19yy,
// otherwise 20yy. A person born in 1949 written as 49 lands in 2049.
const twoDigitYearPivot = 50

// NormalizedField is a canonical value tagged with the document it came from.
type NormalizedField struct {
	FieldName          string       `json:"fieldName"`
	CanonicalValue     string       `json:"canonicalValue"`
	SourceDocumentType DocumentType `json:"sourceDocumentType"`
}

// NormalizeName lowercases, drops everything but letters and spaces,
// and collapses whitespace.
func NormalizeName(s string) string {
	return collapse(s, func(r rune) bool { return unicode.IsLetter(r) })
}

// NormalizeAddress lowercases, drops punctuation, and collapses whitespace.
// Digits are kept since house and postal numbers carry identity.
func NormalizeAddress(s string) string {
	return collapse(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
}

// NormalizeIDNumber strips whitespace and uppercases.
func NormalizeIDNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NormalizeDate returns YYYY-MM-DD or "" when no calendar date can be derived.
//
// With three separated groups the position of the four-digit group decides
// the order: first means YYYY-MM-DD, last means DD-MM-YYYY, and a two-digit
// last group means DD-MM-YY with the century chosen by twoDigitYearPivot.
// Single-digit groups are zero-padded. Eight compact digits are YYYYMMDD when
// that reads as a real date with a year in [1900,2100], otherwise DDMMYYYY.
// Six compact digits are DDMMYY.
func NormalizeDate(s string) string {
	groups := dateGroups(s)
	if len(groups) == 3 {
		switch {
		case len(groups[0]) == 4 && len(groups[1]) == 2 && len(groups[2]) == 2:
			return calendarDate(atoi(groups[0]), atoi(groups[1]), atoi(groups[2]))
		case len(groups[0]) == 2 && len(groups[1]) == 2 && len(groups[2]) == 4:
			return calendarDate(atoi(groups[2]), atoi(groups[1]), atoi(groups[0]))
		case len(groups[0]) == 2 && len(groups[1]) == 2 && len(groups[2]) == 2:
			return calendarDate(expandYear(atoi(groups[2])), atoi(groups[1]), atoi(groups[0]))
		}
		return ""
	}

	digits := strings.Join(groups, "")
	switch len(digits) {
	case 8:
		if y := atoi(digits[:4]); y >= 1900 && y <= 2100 {
			if d := calendarDate(y, atoi(digits[4:6]), atoi(digits[6:8])); d != "" {
				return d
			}
		}
		return calendarDate(atoi(digits[4:8]), atoi(digits[2:4]), atoi(digits[:2]))
	case 6:
		return calendarDate(expandYear(atoi(digits[4:6])), atoi(digits[2:4]), atoi(digits[:2]))
	}
	return ""
}

func expandYear(yy int) int {
	if yy >= twoDigitYearPivot {
		return 1900 + yy
	}
	return 2000 + yy
}

// calendarDate formats a date, or returns "" when it does not exist.
func calendarDate(year, month, day int) string {
	if year < 0 || month < 1 || day < 1 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return ""
	}
	return t.Format("2006-01-02")
}

// NormalizeField dispatches to the normalizer for the named field.
func NormalizeField(field, value string) string {
	switch field {
	case FieldName:
		return NormalizeName(value)
	case FieldDateOfBirth:
		return NormalizeDate(value)
	case FieldIDNumber:
		return NormalizeIDNumber(value)
	case FieldAddress:
		return NormalizeAddress(value)
	}
	return ""
}

// normalizeDocument produces the canonical fields of one document, skipping
// fields whose canonical form is empty.
func normalizeDocument(doc ExtractedDocument) []NormalizedField {
	fields := []string{FieldName, FieldDateOfBirth, FieldIDNumber, FieldAddress}
	out := make([]NormalizedField, 0, len(fields))
	for _, f := range fields {
		v := NormalizeField(f, doc.Fields.Get(f))
		if v == "" {
			continue
		}
		out = append(out, NormalizedField{
			FieldName:          f,
			CanonicalValue:     v,
			SourceDocumentType: doc.DocumentType.Canonical(),
		})
	}
	return out
}

func collapse(s string, keep func(rune) bool) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case keep(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dateGroups splits s into digit runs. In a three-part date single-digit
// groups are zero-padded.
func dateGroups(s string) []string {
	groups := strings.FieldsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if len(groups) == 3 {
		for i, g := range groups {
			if len(g) == 1 {
				groups[i] = "0" + g
			}
		}
	}
	return groups
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
