package policy

import "context"

// Store is the engine's read-only view of the policy backing store.
// Interface owned by the domain per hexagonal architecture; the ABAC
// evaluator is its only consumer. The store may be entirely absent
// (feature not provisioned), in which case the ABAC phase degrades to a
// no-op and the RBAC result stands.
type Store interface {
	// FetchActive returns active policies for a resource whose tenant
	// scope is global (nil) or equals tenantID, ordered by descending
	// priority and capped at limit. The context carries the caller's
	// request deadline so a slow store cannot stall a check.
	FetchActive(ctx context.Context, resource, tenantID string, limit int) ([]ResourcePolicy, error)
}

// AdminStore extends Store with the write operations used by the policy
// provisioning CLI. The engine itself never writes.
type AdminStore interface {
	Store

	// Save creates or replaces a policy by ID.
	Save(ctx context.Context, p *ResourcePolicy) error
	// Delete removes a policy by ID.
	Delete(ctx context.Context, id string) error
	// List returns every policy, active or not, ordered by resource then
	// descending priority.
	List(ctx context.Context) ([]ResourcePolicy, error)
}
