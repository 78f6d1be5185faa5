package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// APITokenPrefix is the prefix for all bioshelf API tokens.
	// A recognizable prefix lets secret scanners flag leaked tokens.
	APITokenPrefix = "bioshelf_"

	// APITokenRandomBytes is the number of random bytes in a token (256 bits of entropy)
	APITokenRandomBytes = 32

	// APITokenLength is the total token length: prefix + hex-encoded random bytes
	APITokenLength = len(APITokenPrefix) + APITokenRandomBytes*2
)

// GenerateAPIToken creates a new API token. The full token is shown to
// the user exactly once; only its hash is stored.
func GenerateAPIToken() (string, error) {
	b := make([]byte, APITokenRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return APITokenPrefix + hex.EncodeToString(b), nil
}

// HashAPIToken creates a SHA-256 hash of the token for storage. One-way:
// the original token cannot be recovered from the hash.
func HashAPIToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateAPITokenFormat checks if a token has the correct shape. It
// does not check whether the token is known or active.
func ValidateAPITokenFormat(token string) bool {
	if !strings.HasPrefix(token, APITokenPrefix) {
		return false
	}
	if len(token) != APITokenLength {
		return false
	}
	_, err := hex.DecodeString(token[len(APITokenPrefix):])
	return err == nil
}
