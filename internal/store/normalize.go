package store

import "strings"

// NormalizeName lowercases and trims a name for comparison. Cards
// persist the result in name_normalized so lookups compare against the
// same folding; SQLite's lower() only folds ASCII.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeEmail lowercases and trims an email for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone canonicalizes a US phone number to 10 digits. It
// strips formatting, accepts a 10-digit number or an 11-digit number
// with a leading 1, and passes anything else through unchanged so
// international numbers still compare against themselves.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return d
	case len(d) == 11 && d[0] == '1':
		return d[1:]
	default:
		return phone
	}
}
