// Package service contains the application services of the authorization
// engine: ability compilation and caching, the RBAC+ABAC authorization
// facade, and async audit logging.
package service

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/storyglot/authz/internal/domain/access"
)

// Ability cache defaults.
const (
	// DefaultAbilityTTL is how long a compiled ability stays fresh.
	DefaultAbilityTTL = 5 * time.Minute
	// DefaultSweepThreshold is the cache size above which a write
	// triggers a full sweep of expired entries.
	DefaultSweepThreshold = 100
)

// abilityEntry is a cached compiled ability.
type abilityEntry struct {
	ability    *access.Ability
	compiledAt time.Time
}

// AbilityService compiles abilities from the role catalog and memoizes them
// keyed by (user, tenant, role-set) with a TTL.
//
// Concurrent callers may race on the same key and both recompile; this is
// tolerated rather than serialized because compilation is pure and cheap,
// and the later overwrite is identical. Expired entries are swept in bulk
// only once the cache outgrows the threshold, not per request.
type AbilityService struct {
	catalog      access.Catalog
	publicTenant string
	ttl          time.Duration
	sweepAt      int
	logger       *slog.Logger

	mu      sync.RWMutex
	entries map[uint64]abilityEntry

	compiles atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64

	// now is replaceable in tests to control TTL expiry.
	now func() time.Time
}

// AbilityOption configures AbilityService.
type AbilityOption func(*AbilityService)

// WithAbilityTTL overrides the cache TTL.
func WithAbilityTTL(ttl time.Duration) AbilityOption {
	return func(s *AbilityService) {
		s.ttl = ttl
	}
}

// WithSweepThreshold overrides the cache size that triggers a sweep.
func WithSweepThreshold(n int) AbilityOption {
	return func(s *AbilityService) {
		s.sweepAt = n
	}
}

// withClock replaces the time source. Test-only.
func withClock(now func() time.Time) AbilityOption {
	return func(s *AbilityService) {
		s.now = now
	}
}

// NewAbilityService creates an AbilityService over the given catalog.
func NewAbilityService(catalog access.Catalog, publicTenant string, logger *slog.Logger, opts ...AbilityOption) *AbilityService {
	s := &AbilityService{
		catalog:      catalog,
		publicTenant: publicTenant,
		ttl:          DefaultAbilityTTL,
		sweepAt:      DefaultSweepThreshold,
		logger:       logger,
		entries:      make(map[uint64]abilityEntry),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AbilityFor returns the compiled ability for the caller, from cache when
// fresh, recompiling and overwriting otherwise.
func (s *AbilityService) AbilityFor(user access.UserContext) *access.Ability {
	key := abilityCacheKey(user.UserID, user.TenantID, user.Roles)
	now := s.now()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if ok && now.Sub(entry.compiledAt) < s.ttl {
		s.hits.Add(1)
		return entry.ability
	}
	s.misses.Add(1)

	ability := access.Compile(s.catalog, user, s.publicTenant)
	s.compiles.Add(1)

	s.mu.Lock()
	s.entries[key] = abilityEntry{ability: ability, compiledAt: now}
	if len(s.entries) > s.sweepAt {
		s.sweepLocked(now)
	}
	s.mu.Unlock()

	return ability
}

// sweepLocked removes all expired entries. Caller must hold s.mu.
func (s *AbilityService) sweepLocked(now time.Time) {
	before := len(s.entries)
	for key, entry := range s.entries {
		if now.Sub(entry.compiledAt) >= s.ttl {
			delete(s.entries, key)
		}
	}
	s.logger.Debug("ability cache swept",
		"before", before,
		"after", len(s.entries),
	)
}

// Clear empties the cache. Used by tests and on role catalog reload.
func (s *AbilityService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[uint64]abilityEntry)
}

// Size returns the current number of cached abilities.
func (s *AbilityService) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Compiles returns the total number of ability compilations. Exposed for
// idempotence tests and the stats endpoint.
func (s *AbilityService) Compiles() int64 {
	return s.compiles.Load()
}

// CacheHits returns the total number of cache hits.
func (s *AbilityService) CacheHits() int64 {
	return s.hits.Load()
}

// CacheMisses returns the total number of cache misses.
func (s *AbilityService) CacheMisses() int64 {
	return s.misses.Load()
}

// abilityCacheKey hashes (userID, tenantID, sorted roles) into the cache
// key. Roles are sorted on a copy so the key is deterministic regardless of
// role order in the token.
func abilityCacheKey(userID, tenantID string, roles []string) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(userID)
	_, _ = h.Write([]byte{0}) // separator

	_, _ = h.WriteString(tenantID)
	_, _ = h.Write([]byte{0})

	sortedRoles := make([]string, len(roles))
	copy(sortedRoles, roles)
	sort.Strings(sortedRoles)
	_, _ = h.WriteString(strings.Join(sortedRoles, ","))

	return h.Sum64()
}
