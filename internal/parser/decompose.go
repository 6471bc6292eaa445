package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "29M Dom", "29 Dom"
	ageGenderRoleCompact = regexp.MustCompile(`^([0-9]{2})(\S+)? (\S+)?$`)
	// "29 M dominant", "35 F Switch Bottom"
	ageGenderRoleSpaced = regexp.MustCompile(`^([0-9]{2})\s+(\S+)\s+(\S.*)$`)

	digitsWithSeparators = regexp.MustCompile(`[0-9][0-9,.\s]*`)
	thumbSize            = regexp.MustCompile(`_110\.(\w+)`)
)

// AgeGenderRole splits a profile's compound "age gender role" text into
// "age", "gender" and "role" fields. Parts that do not match are absent.
func AgeGenderRole(s string) map[string]string {
	s = strings.Join(strings.Fields(s), " ")
	m := ageGenderRoleCompact.FindStringSubmatch(s)
	if m == nil {
		m = ageGenderRoleSpaced.FindStringSubmatch(s)
	}
	out := make(map[string]string, 3)
	if m == nil {
		return out
	}
	for i, key := range []string{"age", "gender", "role"} {
		if v := strings.TrimSpace(m[i+1]); v != "" {
			out[key] = v
		}
	}
	return out
}

// CountText reads a count such as "(1,057)" or "1,057 friends" as an
// integer. Text without digits yields 0.
func CountText(s string) int64 {
	m := digitsWithSeparators.FindString(s)
	if m == "" {
		return 0
	}
	clean := strings.NewReplacer(",", "", ".", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(m))
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// CountField is a Transform that rewrites count text as decimal digits.
func CountField(s string) string {
	return strconv.FormatInt(CountText(s), 10)
}

// StripParens removes parentheses and surrounding space, as found around
// profile locations.
func StripParens(s string) string {
	return strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(s))
}

// LastSegment returns the part of s after the final sep. Trailing
// separators are ignored, so "/users/42/" yields "42".
func LastSegment(s, sep string) string {
	s = strings.TrimRight(s, sep)
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

// IDFromHref is a Transform taking the trailing path segment of a link,
// with any query or fragment dropped.
func IDFromHref(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return LastSegment(s, "/")
}

// IDFromElementID is a Transform taking the part after the final "_" of
// an element id such as "comment_123".
func IDFromElementID(s string) string {
	return LastSegment(s, "_")
}

// ThumbToFull guesses a picture's full-size URL from its 110px thumbnail.
func ThumbToFull(src string) string {
	return thumbSize.ReplaceAllString(src, "_720.$1")
}

// Collapse squeezes runs of whitespace into single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
