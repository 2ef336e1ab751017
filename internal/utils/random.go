package utils

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for opaque tokens
	"encoding/hex"  // hex encoding of random bytes and digests
)

// NewOpaqueToken returns a cryptographically random hex string used for
// email-verification, password-reset and workspace-invite links.  Only the
// SHA-256 digest of the value is persisted; the raw string goes into the
// email and is hashed again on redemption, so a leaked database row cannot
// be replayed as a link.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32) // 32 bytes -> 64 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashTokenRaw returns the SHA-256 digest of a raw token as a hex string.
// Used for opaque tokens and for the stored form of refresh tokens.
func HashTokenRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
