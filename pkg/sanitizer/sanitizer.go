package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the string and collapses internal whitespace runs
// into single spaces.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeRoom canonicalizes a room label so that "Ward 3 " and "ward 3"
// refer to the same room in lookups.
func NormalizeRoom(room string) string {
	return strings.ToUpper(TrimAndNormalize(room))
}

// NormalizeID trims reference ids coming from request payloads.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
