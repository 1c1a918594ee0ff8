// Package policy contains domain types for tenant resource policies: the
// dynamic, priority-ordered, deny-first overlay applied after the RBAC
// phase of an authorization check.
package policy

import (
	"time"

	"github.com/storyglot/authz/internal/domain/access"
)

// Effect is the outcome a matching policy applies.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// ResourcePolicy is a tenant- or global-scoped policy over a subject.
// Policies are created by tenant administrators through the admin back
// office; the engine only ever reads them.
type ResourcePolicy struct {
	// ID is the unique identifier for this policy.
	ID string `json:"id" yaml:"id"`
	// Resource is the subject the policy applies to (e.g. "Lesson").
	Resource string `json:"resource" yaml:"resource"`
	// Action optionally narrows the policy to one action. The evaluator
	// does not filter on it; it is carried for the admin surface.
	Action access.Action `json:"action,omitempty" yaml:"action,omitempty"`
	// Effect is allow or deny. Only deny influences the engine's decision.
	Effect Effect `json:"effect" yaml:"effect"`
	// Conditions is a condition template; nil means the policy applies
	// unconditionally within its tenant scope.
	Conditions access.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	// Priority orders evaluation, highest first.
	Priority int `json:"priority" yaml:"priority"`
	// TenantID scopes the policy to one tenant; nil means global.
	TenantID *string `json:"tenantId" yaml:"tenantId,omitempty"`
	// Active policies are the only ones the engine fetches.
	Active bool `json:"isActive" yaml:"active"`

	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Global reports whether the policy applies to all tenants.
func (p *ResourcePolicy) Global() bool {
	return p.TenantID == nil
}
