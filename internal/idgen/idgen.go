// Package idgen provides cryptographically random ID generation.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// CaseID generates a fraud case identifier: "CASE-" + 8 uppercase hex chars.
func CaseID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return "CASE-" + strings.ToUpper(hex.EncodeToString(b))
}

// WithPrefix generates a random ID with a prefix (e.g. "evt_", "rec_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}
