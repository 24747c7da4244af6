// Package auth provides credential primitives and the API key authenticator for the shared
// lists service. Keys are opaque random strings shown once at issuance; only their SHA-256
// digest is stored, so a key can be looked up by exact match without keeping it in plaintext.
// Passwords are stored as bcrypt hashes. See internal/middleware/gate.go for the request-time
// logic that uses these primitives.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the length of the random part of the API key in bytes
	APIKeyLength = 32

	// DisplayPrefixLength is the number of characters kept for display
	DisplayPrefixLength = 10

	// BcryptCost is the cost factor for password hashing
	BcryptCost = 12
)

// GenerateAPIKey creates a new random API key with the given prefix.
// Returns: full key (to show once), SHA-256 hex digest (to store), display prefix.
func GenerateAPIKey(prefix string) (key string, hash string, displayPrefix string, err error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	fullKey := base64.RawURLEncoding.EncodeToString(randomBytes)
	if prefix != "" {
		fullKey = prefix + "_" + fullKey
	}

	displayPrefix = fullKey
	if len(fullKey) > DisplayPrefixLength {
		displayPrefix = fullKey[:DisplayPrefixLength]
	}

	return fullKey, HashAPIKey(fullKey), displayPrefix, nil
}

// HashAPIKey returns the hex SHA-256 digest under which a key is stored and looked up
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
// A malformed hash is reported as an error rather than a mismatch.
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
