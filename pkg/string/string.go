// Package string holds small helpers for cleaning and shaping request text.
package string

import (
	"strings"
	"unicode"
)

// TrimStrings trims leading and trailing whitespace from each target in place.
// Handlers run it over decoded request fields before validation.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

// ToSnakeCase converts a Go identifier like "CredentialID" to "credential_id"
// so validation errors name fields the way the JSON body spells them.
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
