// Package validate holds the pure input checks that run before any lookup or
// credential comparison: email syntax, CPF checksum, and the refresh token
// wire shape.
package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	maxEmailLength = 254

	minRefreshTokenLength = 40
	maxRefreshTokenLength = 2048
)

var v = validator.New()

// Email reports whether s is a syntactically valid address. Input longer than
// maxEmailLength is rejected before parsing.
func Email(s string) bool {
	if s == "" || len(s) > maxEmailLength {
		return false
	}
	return v.Var(s, "email") == nil
}

// RefreshTokenShape is a cheap structural pre-filter: three non-empty
// base64url segments separated by dots, within plausible length bounds.
// It does not replace signature verification.
func RefreshTokenShape(s string) bool {
	if len(s) < minRefreshTokenLength || len(s) > maxRefreshTokenLength {
		return false
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || !isBase64URL(p) {
			return false
		}
	}
	return true
}

func isBase64URL(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
