// Package memory provides in-memory adapter implementations for
// development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/storyglot/authz/internal/domain/policy"
)

// ErrPolicyNotFound is returned when a policy ID does not exist.
var ErrPolicyNotFound = errors.New("policy not found")

// PolicyStore implements policy.AdminStore with an in-memory map.
// Thread-safe for concurrent access.
type PolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*policy.ResourcePolicy
}

// NewPolicyStore creates a new in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{policies: make(map[string]*policy.ResourcePolicy)}
}

// FetchActive returns active policies for the resource scoped globally or
// to tenantID, ordered by descending priority and capped at limit.
func (s *PolicyStore) FetchActive(_ context.Context, resource, tenantID string, limit int) ([]policy.ResourcePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []policy.ResourcePolicy
	for _, p := range s.policies {
		if !p.Active || p.Resource != resource {
			continue
		}
		if p.TenantID != nil && *p.TenantID != tenantID {
			continue
		}
		out = append(out, *copyPolicy(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Save creates or replaces a policy by ID.
func (s *PolicyStore) Save(_ context.Context, p *policy.ResourcePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = copyPolicy(p)
	return nil
}

// Delete removes a policy by ID. Returns ErrPolicyNotFound when absent.
func (s *PolicyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return ErrPolicyNotFound
	}
	delete(s.policies, id)
	return nil
}

// List returns every policy ordered by resource, then descending priority.
func (s *PolicyStore) List(_ context.Context) ([]policy.ResourcePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]policy.ResourcePolicy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, *copyPolicy(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Priority > out[j].Priority
	})
	return out, nil
}

// copyPolicy returns a deep enough copy to prevent external mutation.
func copyPolicy(p *policy.ResourcePolicy) *policy.ResourcePolicy {
	c := *p
	if p.TenantID != nil {
		tenant := *p.TenantID
		c.TenantID = &tenant
	}
	if p.Conditions != nil {
		conditions := make(map[string]any, len(p.Conditions))
		for k, v := range p.Conditions {
			conditions[k] = v
		}
		c.Conditions = conditions
	}
	return &c
}

// Compile-time interface verification.
var _ policy.AdminStore = (*PolicyStore)(nil)
