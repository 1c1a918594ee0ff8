// Package auth contains the identity and API key types used to resolve an
// inbound request to a UserContext. The engine itself never constructs user
// contexts; this package is the concrete provider the HTTP adapter uses.
package auth

import (
	"time"

	"github.com/storyglot/authz/internal/domain/access"
)

// Identity is an authenticated principal: a platform user or a service
// account calling the authorization API on a user's behalf.
type Identity struct {
	// ID is the unique identifier (the engine's userId).
	ID string `json:"id" mapstructure:"id"`
	// Name is the human-readable name.
	Name string `json:"name" mapstructure:"name"`
	// TenantID is the tenant the identity belongs to; empty means none.
	TenantID string `json:"tenant_id,omitempty" mapstructure:"tenant_id"`
	// Roles assigned to the identity.
	Roles []string `json:"roles" mapstructure:"roles"`
	// Disabled identities fail validation.
	Disabled bool `json:"disabled,omitempty" mapstructure:"disabled"`
}

// UserContext converts the identity into the engine's caller context.
func (i *Identity) UserContext() access.UserContext {
	return access.UserContext{
		UserID:   i.ID,
		TenantID: i.TenantID,
		Roles:    i.Roles,
	}
}

// APIKey is a stored credential resolving to an identity. Only the hash of
// the key material is kept ("sha256:<hex>" or an Argon2id hash string).
type APIKey struct {
	// ID is the unique identifier for this key.
	ID string `json:"id" mapstructure:"id"`
	// Name is a human-readable label.
	Name string `json:"name" mapstructure:"name"`
	// Key is the stored hash of the raw key material.
	Key string `json:"key_hash" mapstructure:"key_hash"`
	// IdentityID links the key to its identity.
	IdentityID string `json:"identity_id" mapstructure:"identity_id"`
	// ExpiresAt is an optional expiry; nil means the key never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty" mapstructure:"expires_at"`
	// Revoked keys fail validation.
	Revoked bool `json:"revoked,omitempty" mapstructure:"revoked"`
}

// IsExpired reports whether the key has an expiry in the past.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}
