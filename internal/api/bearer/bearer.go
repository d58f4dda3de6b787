// Package bearer reads and writes Authorization header values of the
// "Bearer <token>" form.
package bearer

import (
	"strings"
	"unicode"
)

const scheme = "Bearer"

// FromHeader returns the token carried by an Authorization value. The scheme
// is matched case-insensitively and must be followed by whitespace and a
// non-empty token.
func FromHeader(value string) (string, bool) {
	value = strings.TrimSpace(value)
	i := strings.IndexFunc(value, unicode.IsSpace)
	if i < 0 || !strings.EqualFold(value[:i], scheme) {
		return "", false
	}

	token := strings.TrimSpace(value[i:])
	if token == "" {
		return "", false
	}
	return token, true
}

// Header formats token as an Authorization value.
func Header(token string) string {
	return scheme + " " + token
}
