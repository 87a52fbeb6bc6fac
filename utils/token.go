package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// VerificationTokenBytes is the entropy of a verification token (256 bits).
const VerificationTokenBytes = 32

func GenerateVerificationToken() (string, error) {
	return RandomHex(VerificationTokenBytes)
}

// RandomHex returns n random bytes hex-encoded (2n characters).
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// TokensEqual compares two secrets in constant time. Strings of different
// length are unequal without inspecting their bytes.
func TokensEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
