// ABOUTME: Text-shape classifier for submitted queries
// ABOUTME: Maps raw text to email, phone, username, or unknown

package classify

import (
	"strings"
	"unicode/utf8"
)

// Kind is the entity kind a query classifies to.
type Kind string

const (
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindUsername Kind = "username"
	KindUnknown  Kind = "unknown"
)

// ValidKinds lists all kinds Classify can produce.
var ValidKinds = []Kind{KindEmail, KindPhone, KindUsername, KindUnknown}

// Classify determines the entity kind of a query. Rules are checked in
// priority order and the first match wins:
//
//  1. contains both '@' and '.'                -> email
//  2. all decimal digits after stripping '+'   -> phone
//  3. at least 3 characters                    -> username
//  4. otherwise                                -> unknown
//
// The caller is responsible for trimming whitespace; Classify looks at
// the text exactly as given.
func Classify(text string) Kind {
	if strings.ContainsRune(text, '@') && strings.ContainsRune(text, '.') {
		return KindEmail
	}
	if isPhone(text) {
		return KindPhone
	}
	if utf8.RuneCountInString(text) >= 3 {
		return KindUsername
	}
	return KindUnknown
}

// isPhone reports whether text is all decimal digits once '+' prefixes
// and separators are removed. The stripped string must be non-empty:
// a bare "+++" must not classify as a phone number.
func isPhone(text string) bool {
	stripped := strings.ReplaceAll(text, "+", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
