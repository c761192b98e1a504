package emailaddr

import (
	"net/mail"
	"strings"
)

// Normalize lower-cases and trims an email address. The normalized form is the
// stakeholder dedup key, so every store and service must use it consistently.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether the address parses as a bare RFC 5322 address.
func Valid(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject display-name forms like "Jane <jane@example.org>".
	return addr.Address == strings.TrimSpace(email)
}

// Domain returns the lower-cased domain part, or "" when there is none.
func Domain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
