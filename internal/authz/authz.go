// Package authz validates authorization tokens presented during
// initialization and the sealing ceremony.
//
// The stock verifier is a format check, not a verified digital
// signature: a token is accepted when it matches the expected shape,
// nothing more. Callers that need real signature verification supply
// their own Verifier.
package authz

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Verifier reports whether a token is acceptable.
type Verifier interface {
	Verify(token string) bool
}

var tokenPattern = regexp.MustCompile(`^AUTH_[A-Z0-9]{64}$`)

// FormatVerifier accepts tokens of the form AUTH_ followed by exactly
// 64 uppercase alphanumerics.
type FormatVerifier struct{}

func (FormatVerifier) Verify(token string) bool {
	return tokenPattern.MatchString(token)
}

// Default returns the stock format verifier.
func Default() Verifier {
	return FormatVerifier{}
}

// NewToken generates a well-formed token from random bytes. Falls back
// to a timestamp-derived token if the system randomness source fails.
func NewToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("AUTH_%064X", time.Now().UnixNano())
	}
	return "AUTH_" + strings.ToUpper(hex.EncodeToString(b))
}
