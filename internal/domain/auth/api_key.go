package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidKey is returned when an API key is invalid (unknown, expired,
// revoked, or bound to a disabled identity).
var ErrInvalidKey = errors.New("invalid api key")

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// APIKeyService validates API keys and resolves them to identities.
type APIKeyService struct {
	store AuthStore
}

// NewAPIKeyService creates a new APIKeyService with the given store.
func NewAPIKeyService(store AuthStore) *APIKeyService {
	return &APIKeyService{store: store}
}

// Validate checks an API key and returns the associated identity.
// Returns ErrInvalidKey if the key is unknown, expired, or revoked, or if
// its identity is disabled.
//
// Supports both SHA-256 (direct lookup) and Argon2id (iteration) hashes.
func (s *APIKeyService) Validate(ctx context.Context, rawKey string) (*Identity, error) {
	// Direct SHA-256 lookup first (fast path for config-seeded keys).
	keyHash := HashKey(rawKey)
	apiKey, err := s.store.GetAPIKey(ctx, keyHash)
	if err == nil {
		return s.validateAndResolve(ctx, apiKey)
	}

	// Fallback: iterate all keys and verify (supports Argon2id hashes).
	allKeys, err := s.store.ListAPIKeys(ctx)
	if err != nil {
		return nil, ErrInvalidKey
	}
	for _, candidate := range allKeys {
		match, verifyErr := VerifyKey(rawKey, candidate.Key)
		if verifyErr != nil {
			continue
		}
		if match {
			return s.validateAndResolve(ctx, candidate)
		}
	}
	return nil, ErrInvalidKey
}

func (s *APIKeyService) validateAndResolve(ctx context.Context, apiKey *APIKey) (*Identity, error) {
	if apiKey.Revoked || apiKey.IsExpired() {
		return nil, ErrInvalidKey
	}
	identity, err := s.store.GetIdentity(ctx, apiKey.IdentityID)
	if err != nil {
		return nil, err
	}
	if identity.Disabled {
		return nil, ErrInvalidKey
	}
	return identity, nil
}

// HashKey returns the "sha256:<hex>" hash of the raw key. Used for
// config-seeded keys where a deterministic hash allows direct lookup.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// HashKeyArgon2id hashes the raw key with Argon2id default parameters.
// Preferred for keys created at runtime.
func HashKeyArgon2id(rawKey string) (string, error) {
	hash, err := argon2id.CreateHash(rawKey, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return hash, nil
}

// VerifyKey checks a raw key against a stored hash, dispatching on the hash
// format. SHA-256 comparisons are constant-time.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(storedHash, "sha256:"):
		expected := HashKey(rawKey)
		return subtle.ConstantTimeCompare([]byte(expected), []byte(storedHash)) == 1, nil
	case strings.HasPrefix(storedHash, "$argon2id$"):
		return argon2id.ComparePasswordAndHash(rawKey, storedHash)
	default:
		return false, ErrUnknownHashType
	}
}
