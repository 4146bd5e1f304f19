package credentials

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashSecret returns the lower-case hex SHA-256 of secret. This is the
// form stored in devices.secret_hash at provisioning time.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// MatchesDigest reports whether presented hashes to storedDigest
func MatchesDigest(storedDigest, presented string) bool {
	if storedDigest == "" {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(storedDigest))
	got := HashSecret(presented)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
