// Package validate holds the input hardening helpers used before any user
// supplied value reaches the database or an outbound email header.
//
// HEADER INJECTION:
// Mail headers are line oriented. An address such as
//
//	"victim@example.com\r\nBcc: everyone@example.com"
//
// smuggles a second header into the message if it is copied into To: verbatim.
// IsSafeEmailAddress therefore rejects CR/LF outright, and also rejects the
// characters that make RFC 5322 parsing ambiguous (quotes, angle brackets,
// whitespace). Legitimate but exotic addresses ("quoted local"@host) are
// refused; that is an accepted trade-off for a signup form.
package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minEmailLength = 6
	maxEmailLength = 254
	maxNameLength  = 120
)

// emailShape is a conservative local@domain.tld check. The local part allows
// alphanumerics and the RFC 5322 atext punctuation; every domain label is
// alphanumeric or hyphen and at least one dot is required.
var emailShape = regexp.MustCompile("^[A-Za-z0-9.!#$%&*+/=?^_`{|}~-]+@[A-Za-z0-9-]+(\\.[A-Za-z0-9-]+)+$")

// IsSafeEmailAddress reports whether s is an address we are willing to store
// and to use as a mail recipient.
func IsSafeEmailAddress(s string) bool {
	if strings.TrimSpace(s) != s {
		return false
	}
	if n := utf8.RuneCountInString(s); n < minEmailLength || n > maxEmailLength {
		return false
	}
	if strings.ContainsAny(s, "\r\n") {
		return false
	}
	if strings.ContainsAny(s, `<>"'`) || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	return emailShape.MatchString(s)
}

// SafeName cleans a display name for use in a mail header: CR/LF become
// spaces, angle brackets are dropped, and the result is trimmed and capped
// at 120 characters.
func SafeName(name string) string {
	name = strings.NewReplacer("\r", " ", "\n", " ", "<", "", ">", "").Replace(name)
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}
