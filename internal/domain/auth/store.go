package auth

import (
	"context"
	"errors"
)

// Store errors.
var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrAPIKeyNotFound   = errors.New("api key not found")
)

// AuthStore provides read access to identities and API keys.
type AuthStore interface {
	// GetAPIKey returns the API key with the given stored hash.
	// Returns ErrAPIKeyNotFound when no key matches.
	GetAPIKey(ctx context.Context, keyHash string) (*APIKey, error)
	// ListAPIKeys returns every stored API key.
	ListAPIKeys(ctx context.Context) ([]*APIKey, error)
	// GetIdentity returns an identity by ID.
	// Returns ErrIdentityNotFound when absent.
	GetIdentity(ctx context.Context, id string) (*Identity, error)
}
