package memory

import (
	"context"
	"sync"

	"github.com/storyglot/authz/internal/domain/auth"
)

// AuthStore implements auth.AuthStore with in-memory maps, seeded from
// configuration at startup.
type AuthStore struct {
	mu         sync.RWMutex
	keysByHash map[string]*auth.APIKey
	identities map[string]*auth.Identity
}

// NewAuthStore creates an empty in-memory auth store.
func NewAuthStore() *AuthStore {
	return &AuthStore{
		keysByHash: make(map[string]*auth.APIKey),
		identities: make(map[string]*auth.Identity),
	}
}

// Seed loads identities and API keys, replacing existing entries with the
// same IDs. Called once from config at startup.
func (s *AuthStore) Seed(identities []auth.Identity, keys []auth.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range identities {
		identity := identities[i]
		s.identities[identity.ID] = &identity
	}
	for i := range keys {
		key := keys[i]
		s.keysByHash[key.Key] = &key
	}
}

// GetAPIKey returns the key with the given stored hash.
func (s *AuthStore) GetAPIKey(_ context.Context, keyHash string) (*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keysByHash[keyHash]
	if !ok {
		return nil, auth.ErrAPIKeyNotFound
	}
	key := *k
	return &key, nil
}

// ListAPIKeys returns every stored key.
func (s *AuthStore) ListAPIKeys(_ context.Context) ([]*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.APIKey, 0, len(s.keysByHash))
	for _, k := range s.keysByHash {
		key := *k
		out = append(out, &key)
	}
	return out, nil
}

// GetIdentity returns an identity by ID.
func (s *AuthStore) GetIdentity(_ context.Context, id string) (*auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.identities[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	identity := *i
	return &identity, nil
}

// Compile-time interface verification.
var _ auth.AuthStore = (*AuthStore)(nil)
