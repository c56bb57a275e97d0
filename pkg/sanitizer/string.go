package sanitizer

import (
	"strings"
	"unicode"
)

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

// NormalizeName normalizes an amenity or resident display name.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeNotes collapses whitespace in booking notes and strips control
// characters that would corrupt log lines.
func NormalizeNotes(notes string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, notes)
	return TrimAndNormalize(cleaned)
}

// NormalizeID trims an externally supplied identifier (requester id, unit id).
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}
