package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubAuthStore implements AuthStore over fixed slices.
type stubAuthStore struct {
	keys       []*APIKey
	identities []*Identity
}

func (s *stubAuthStore) GetAPIKey(_ context.Context, keyHash string) (*APIKey, error) {
	for _, k := range s.keys {
		if k.Key == keyHash {
			return k, nil
		}
	}
	return nil, ErrAPIKeyNotFound
}

func (s *stubAuthStore) ListAPIKeys(_ context.Context) ([]*APIKey, error) {
	return s.keys, nil
}

func (s *stubAuthStore) GetIdentity(_ context.Context, id string) (*Identity, error) {
	for _, i := range s.identities {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, ErrIdentityNotFound
}

func TestAPIKeyServiceValidateSHA256(t *testing.T) {
	store := &stubAuthStore{
		keys: []*APIKey{
			{ID: "k1", Key: HashKey("secret-key"), IdentityID: "u1"},
		},
		identities: []*Identity{
			{ID: "u1", Name: "maria", TenantID: "t1", Roles: []string{"teacher"}},
		},
	}
	svc := NewAPIKeyService(store)

	identity, err := svc.Validate(context.Background(), "secret-key")
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if identity.ID != "u1" {
		t.Errorf("identity.ID = %q, want u1", identity.ID)
	}

	ctx := identity.UserContext()
	if ctx.UserID != "u1" || ctx.TenantID != "t1" || len(ctx.Roles) != 1 {
		t.Errorf("UserContext() = %+v", ctx)
	}
}

func TestAPIKeyServiceValidateArgon2id(t *testing.T) {
	hash, err := HashKeyArgon2id("another-key")
	if err != nil {
		t.Fatalf("HashKeyArgon2id() error: %v", err)
	}
	store := &stubAuthStore{
		keys:       []*APIKey{{ID: "k1", Key: hash, IdentityID: "u2"}},
		identities: []*Identity{{ID: "u2", Roles: []string{"student"}}},
	}
	svc := NewAPIKeyService(store)

	identity, err := svc.Validate(context.Background(), "another-key")
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if identity.ID != "u2" {
		t.Errorf("identity.ID = %q, want u2", identity.ID)
	}
}

func TestAPIKeyServiceRejects(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := &stubAuthStore{
		keys: []*APIKey{
			{ID: "revoked", Key: HashKey("revoked-key"), IdentityID: "u1", Revoked: true},
			{ID: "expired", Key: HashKey("expired-key"), IdentityID: "u1", ExpiresAt: &past},
			{ID: "orphan", Key: HashKey("orphan-key"), IdentityID: "missing"},
			{ID: "disabled", Key: HashKey("disabled-key"), IdentityID: "u3"},
		},
		identities: []*Identity{
			{ID: "u1", Roles: []string{"student"}},
			{ID: "u3", Disabled: true},
		},
	}
	svc := NewAPIKeyService(store)

	tests := []struct {
		name    string
		rawKey  string
		wantErr error
	}{
		{"revoked key", "revoked-key", ErrInvalidKey},
		{"expired key", "expired-key", ErrInvalidKey},
		{"unknown key", "no-such-key", ErrInvalidKey},
		{"orphan key", "orphan-key", ErrIdentityNotFound},
		{"disabled identity", "disabled-key", ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(context.Background(), tt.rawKey)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyKeyUnknownHash(t *testing.T) {
	_, err := VerifyKey("key", "md5:abcdef")
	if !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("VerifyKey() error = %v, want ErrUnknownHashType", err)
	}
}
