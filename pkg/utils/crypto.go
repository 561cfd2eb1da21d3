// Package utils provides cryptographic utility functions
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// GenerateAPIKey generates a secure random API key
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return "rk_" + hex.EncodeToString(bytes), nil
}

// HashAPIKey hashes an API key for storage using bcrypt. Keys are
// pre-digested with SHA-256 so they fit bcrypt's input limit.
func HashAPIKey(apiKey string) (string, error) {
	digest := sha256.Sum256([]byte(apiKey))
	hashed, err := bcrypt.GenerateFromPassword(digest[:], bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hashed), nil
}

// CheckAPIKey verifies an API key against its stored hash
func CheckAPIKey(apiKey, hashedKey string) error {
	digest := sha256.Sum256([]byte(apiKey))
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), digest[:])
}

// LookupDigest returns the deterministic digest used to index API keys.
func LookupDigest(apiKey string) string {
	digest := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(digest[:])
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// MaskAPIKey masks an API key for logging (shows only first 8 characters)
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
