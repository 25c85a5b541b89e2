// Package phone canonicalizes Brazilian phone numbers into the correlation
// key shared by every ingress path. Payment webhooks and gateway webhooks
// deliver the same customer under different raw formats ("+55 (11) 98765-4321",
// "5511987654321@s.whatsapp.net", "11 98765 4321"); both must normalize to an
// identical key or conversation correlation silently breaks.
//
// Normalization policy: the subscriber "9" digit is always preserved. Numbers
// with 10 or 11 digits are treated as local DDD+number and prefixed with the
// country code 55; any remaining number without the 55 prefix gets it
// prepended. The transformation is idempotent: Normalize(Normalize(x)) ==
// Normalize(x).
package phone

import "strings"

// countryCode is the Brazilian country calling code expected on every key.
const countryCode = "55"

// Normalize reduces a raw phone string to its canonical digits-only form.
// An empty or digit-free input yields ""; callers must treat "" as invalid
// and drop the event.
func Normalize(raw string) string {
	cleaned := digitsOnly(raw)
	if cleaned == "" {
		return ""
	}

	// 10 or 11 digits is a local DDD+number; add the country code.
	if len(cleaned) == 10 || len(cleaned) == 11 {
		cleaned = countryCode + cleaned
	}

	if !strings.HasPrefix(cleaned, countryCode) {
		cleaned = countryCode + cleaned
	}
	return cleaned
}

// digitsOnly strips every non-digit byte from s.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
