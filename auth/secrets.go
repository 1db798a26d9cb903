package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
)

// secureAlphabet is a 32-character alphabet with visually confusable
// characters removed (no 0/o, 1/l). 32 characters means each output byte
// maps cleanly to 5 bits of entropy.
const secureAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

// secureStringLength gives 24 * 5 = 120 bits of entropy per identifier.
const secureStringLength = 24

// GenerateSecureRandomString produces a fixed-length, high-entropy
// identifier suitable for both session ids and session secrets.
func GenerateSecureRandomString() string {
	bytes := make([]byte, secureStringLength)
	_, _ = rand.Read(bytes)

	out := make([]byte, secureStringLength)
	for i, b := range bytes {
		out[i] = secureAlphabet[b>>3]
	}
	return string(out)
}

// HashSecret returns the SHA-256 digest of secret. Only the digest is ever
// persisted; the plaintext lives solely in the client's cookie.
func HashSecret(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// ConstantTimeEqual compares two digests in time independent of where they
// first differ. A length mismatch is an immediate false; equal lengths are
// always compared in full.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
