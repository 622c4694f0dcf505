// Package phone canonicalizes participant identifiers so the directory
// cache, registrar and intake pipeline agree on lookup keys.
package phone

import "strings"

// DefaultCountryCode is prefixed to bare national numbers.
const DefaultCountryCode = "55"

// National numbers carry 10 digits (landline) or 11 (mobile with the 9 prefix).
const (
	nationalLandlineLen = 10
	nationalMobileLen   = 11
)

// Normalize reduces a raw phone string to a digits-only canonical form,
// prefixing the default country code when the input looks like a bare
// national number. It never fails: unusable input normalizes to "", which
// callers treat as "no match".
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) == nationalLandlineLen || len(digits) == nationalMobileLen {
		if !strings.HasPrefix(digits, DefaultCountryCode) {
			return DefaultCountryCode + digits
		}
	}
	return digits
}
