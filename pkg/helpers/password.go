package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const saltLength = 16

const saltAlphabet = "abcdefghijklmnopqrstuvwxyz"

// HashPassword derives a hex SHA-256 digest of password++salt. When salt is
// empty a fresh random one is generated. Both the digest and the salt used
// are returned; the pair must be stored together.
func HashPassword(password, salt string) (hash string, usedSalt string, err error) {
	if salt == "" {
		salt, err = generateSalt()
		if err != nil {
			return "", "", err
		}
	}

	digest := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(digest[:]), salt, nil
}

// ValidatePassword re-hashes the password with the stored salt and compares
// the result with the stored hash.
func ValidatePassword(password, hash, salt string) bool {
	// TODO(burenotti): switch to a constant-time comparison.
	rehashed, _, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return rehashed == hash
}

func generateSalt() (string, error) {
	raw := make([]byte, saltLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := make([]byte, saltLength)
	for i, b := range raw {
		salt[i] = saltAlphabet[int(b)%len(saltAlphabet)]
	}
	return string(salt), nil
}
