package mapper

import (
	"strings"
)

// Sentinel placeholders that practice staff type into phone fields instead
// of leaving them blank. Compared case-insensitively after trimming.
var phoneSentinels = map[string]struct{}{
	"":        {},
	"N/A":     {},
	"NA":      {},
	"NONE":    {},
	"TBD":     {},
	"UNKNOWN": {},
	"X":       {},
}

// ValidatePhone reports whether a raw phone string is worth sending to the
// provider: not a sentinel placeholder, 10 to 15 digits, and composed only
// of digits and common separator characters.
func ValidatePhone(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if _, bad := phoneSentinels[strings.ToUpper(trimmed)]; bad {
		return false
	}

	digits := 0
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '(' || r == ')' || r == '-' || r == '.' || r == ' ' || r == '+':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

// StandardizePhone converts a validated phone string to E.164-style form:
// international prefixes are preserved, 00 becomes +, bare 10-digit US
// numbers gain +1, and 11-digit numbers with a leading 1 gain +. Fragments
// under 7 digits are rejected as extensions.
func StandardizePhone(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	international := strings.HasPrefix(trimmed, "+")

	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "00") {
		international = true
		digits = digits[2:]
	}
	if len(digits) < 7 {
		return "", false
	}

	switch {
	case international:
		return "+" + digits, true
	case len(digits) == 10:
		return "+1" + digits, true
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits, true
	default:
		return "+" + digits, true
	}
}

// NormalizePhone reduces a phone string to bare digits with any deducible US
// country code removed. Used for phone-index comparisons, not for outbound
// payloads.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// LastSevenDigits returns the loose-match suffix of a phone string, or ""
// when fewer than 7 digits are present.
func LastSevenDigits(raw string) string {
	digits := NormalizePhone(raw)
	if len(digits) < 7 {
		return ""
	}
	return digits[len(digits)-7:]
}
