// Package dedup collapses noisy multi-source contractor listings into a
// clean set: phone and name normalization, pairwise duplicate detection,
// and source-priority profile merging.
package dedup

import (
	"regexp"
	"strings"
)

// Indonesian phone shapes, validated against the canonical +62 form.
var (
	phoneJunk       = regexp.MustCompile(`[^\d+]`)
	mobilePattern   = regexp.MustCompile(`^\+628[0-9]{8,11}$`)
	landlinePattern = regexp.MustCompile(`^\+62(?:2[1-9]|3[1-9]|4[1-9]|5[1-9]|6[1-9])[0-9]{6,8}$`)
)

// NormalizePhone canonicalizes a free-form Indonesian phone number to
// +62 international format. It accepts local (0812...), bare mobile
// (812...), and already-international (62.../+62...) inputs, with any
// spacing or punctuation. Returns "" for empty, non-Indonesian or
// malformed input; it never returns a partially cleaned string.
func NormalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	cleaned := phoneJunk.ReplaceAllString(raw, "")
	cleaned = strings.TrimPrefix(cleaned, "+")

	var normalized string
	switch {
	case strings.HasPrefix(cleaned, "62"):
		normalized = "+" + cleaned
	case strings.HasPrefix(cleaned, "0"):
		normalized = "+62" + cleaned[1:]
	case strings.HasPrefix(cleaned, "8"):
		normalized = "+62" + cleaned
	default:
		return ""
	}

	if mobilePattern.MatchString(normalized) || landlinePattern.MatchString(normalized) {
		return normalized
	}
	return ""
}
