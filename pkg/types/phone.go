package types

import (
	"regexp"
	"strings"
)

var mobileRe = regexp.MustCompile(`^09\d{9}$`)

// NormalizePhone converts an Iranian mobile number into its 09xxxxxxxxx form.
// It accepts +98, 0098 and 98 prefixes along with spaces and dashes, and
// reports false for anything that is not a mobile number.
func NormalizePhone(raw string) (string, bool) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	cleaned = toASCIIDigits(cleaned)

	switch {
	case strings.HasPrefix(cleaned, "+98"):
		cleaned = "0" + cleaned[3:]
	case strings.HasPrefix(cleaned, "0098"):
		cleaned = "0" + cleaned[4:]
	case strings.HasPrefix(cleaned, "98") && len(cleaned) == 12:
		cleaned = "0" + cleaned[2:]
	case strings.HasPrefix(cleaned, "9") && len(cleaned) == 10:
		cleaned = "0" + cleaned
	}

	if !mobileRe.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

// toASCIIDigits maps Persian and Arabic-Indic digits to ASCII.
func toASCIIDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
