// Package auth provides API key and JWT authentication services
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/model-router/router/internal/storage"
	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

const apiKeyCacheTTL = 5 * time.Minute

// cachedKey is the validation result stored in Redis so repeated calls
// skip the bcrypt comparison.
type cachedKey struct {
	KeyID uint   `json:"key_id"`
	Name  string `json:"name"`
}

// APIKeyService issues and validates caller API keys.
type APIKeyService struct {
	repo   *storage.APIKeyRepository
	cache  *storage.APIKeyCache
	logger *utils.Logger
}

func NewAPIKeyService(repo *storage.APIKeyRepository, cache *storage.APIKeyCache, logger *utils.Logger) *APIKeyService {
	return &APIKeyService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Issue creates a new API key and returns the plaintext exactly once.
func (s *APIKeyService) Issue(ctx context.Context, name string) (string, *storage.APIKey, error) {
	plaintext, err := utils.GenerateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	hash, err := utils.HashAPIKey(plaintext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash API key: %w", err)
	}

	key := &storage.APIKey{
		Name:     name,
		Digest:   utils.LookupDigest(plaintext),
		KeyHash:  hash,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return "", nil, fmt.Errorf("failed to store API key: %w", err)
	}

	s.logger.WithField("key_name", name).Info("API key issued")
	return plaintext, key, nil
}

// Validate checks an API key and returns its record. Results are cached
// briefly so the bcrypt comparison is not paid on every request.
func (s *APIKeyService) Validate(ctx context.Context, apiKey string) (*storage.APIKey, error) {
	if apiKey == "" {
		return nil, errors.ErrAuthenticationRequired
	}

	digest := utils.LookupDigest(apiKey)

	if s.cache != nil {
		var cached cachedKey
		if err := s.cache.Get(ctx, digest, &cached); err == nil {
			return &storage.APIKey{ID: cached.KeyID, Name: cached.Name, IsActive: true}, nil
		}
	}

	record, err := s.repo.GetByDigest(ctx, digest)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidAPIKey, "Invalid API key")
	}

	if err := utils.CheckAPIKey(apiKey, record.KeyHash); err != nil {
		return nil, errors.New(errors.ErrInvalidAPIKey, "Invalid API key")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, digest, cachedKey{KeyID: record.ID, Name: record.Name}, apiKeyCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache API key validation")
		}
	}

	if err := s.repo.UpdateLastUsed(ctx, record.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to update API key last_used_at")
	}

	return record, nil
}

// Revoke deactivates an API key and drops it from the cache.
func (s *APIKeyService) Revoke(ctx context.Context, keyID uint) error {
	return s.repo.Revoke(ctx, keyID)
}

// Claims represents JWT token claims for admin access
type Claims struct {
	Subject string `json:"sub_name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService generates and validates admin tokens.
type JWTService struct {
	secret     []byte
	expiration time.Duration
}

func NewJWTService(config *types.AuthConfig) *JWTService {
	expiration := config.JWTExpiration
	if expiration == 0 {
		expiration = 24 * time.Hour
	}
	return &JWTService{
		secret:     []byte(config.JWTSecret),
		expiration: expiration,
	}
}

// GenerateToken creates a signed admin token.
func (s *JWTService) GenerateToken(subject, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			Issuer:    "model-router",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "Invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New(errors.ErrUnauthorized, "Invalid token claims")
	}

	return claims, nil
}
