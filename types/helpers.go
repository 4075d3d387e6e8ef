package types

import "strings"

// NormalizeName lowercases a name and strips everything that is not a letter
// or digit. Catalog matching keys on this form so "Acme-Docs" and "acme docs"
// collapse to the same entry.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
