package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/storyglot/authz/internal/ctxkey"
	"github.com/storyglot/authz/internal/domain/access"
	"github.com/storyglot/authz/internal/domain/audit"
	"github.com/storyglot/authz/internal/domain/policy"
)

// DefaultPolicyFetchLimit bounds how many policies the ABAC phase reads per
// subject, capping worst-case latency against a large policy table.
const DefaultPolicyFetchLimit = 50

// CheckRecorder receives one audit record per authorization call. The
// facade never blocks on it.
type CheckRecorder interface {
	Record(record audit.CheckRecord)
}

// AuthorizationService is the single entry point of the engine. It runs the
// two-phase pipeline: the RBAC guard over the cached ability (fast path,
// in-memory), then — only when RBAC allowed — the deny-first ABAC policy
// overlay against the policy store.
//
// Nothing below this facade escapes to the caller as an error or panic;
// every failure mode collapses to a Decision.
type AuthorizationService struct {
	abilities    *AbilityService
	policies     policy.Store  // nil when the feature is not provisioned
	recorder     CheckRecorder // nil disables auditing
	logger       *slog.Logger
	fetchLimit   int
	publicTenant string

	rbacDenials   atomic.Int64
	policyDenials atomic.Int64
}

// RBACDenials returns how many calls were denied by the RBAC guard.
func (s *AuthorizationService) RBACDenials() int64 { return s.rbacDenials.Load() }

// PolicyDenials returns how many calls were denied by the policy overlay.
func (s *AuthorizationService) PolicyDenials() int64 { return s.policyDenials.Load() }

// AuthorizationOption configures AuthorizationService.
type AuthorizationOption func(*AuthorizationService)

// WithPolicyStore wires the ABAC policy store. Without it, the overlay
// phase is skipped and the RBAC result stands.
func WithPolicyStore(store policy.Store) AuthorizationOption {
	return func(s *AuthorizationService) {
		s.policies = store
	}
}

// WithRecorder wires the audit sink.
func WithRecorder(r CheckRecorder) AuthorizationOption {
	return func(s *AuthorizationService) {
		s.recorder = r
	}
}

// WithPolicyFetchLimit overrides the per-subject policy page size.
func WithPolicyFetchLimit(n int) AuthorizationOption {
	return func(s *AuthorizationService) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// NewAuthorizationService creates the facade over an ability service.
func NewAuthorizationService(abilities *AbilityService, publicTenant string, logger *slog.Logger, opts ...AuthorizationOption) *AuthorizationService {
	s := &AuthorizationService{
		abilities:    abilities,
		logger:       logger,
		fetchLimit:   DefaultPolicyFetchLimit,
		publicTenant: publicTenant,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authorize evaluates the required rules for the caller and returns the
// decision. The context carries the request deadline for the policy store
// fetch. All internal panics are normalized to a denied decision with the
// generic check-failed error; one audit record is emitted per call.
func (s *AuthorizationService) Authorize(ctx context.Context, rules []access.RequiredRule, user access.UserContext) (decision access.Decision) {
	start := time.Now()
	var deniedBy string

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("authorization check panicked", "panic", r, "user_id", user.UserID)
			decision = access.Decision{Allowed: false, Error: access.ErrMsgCheckFailed}
		}
		s.emitAudit(ctx, rules, user, decision, deniedBy, start)
	}()

	if len(rules) == 0 {
		return access.Decision{Allowed: false, Error: access.ErrMsgNoRules}
	}

	decision = s.checkRequiredRules(rules, user)
	if !decision.Allowed {
		s.rbacDenials.Add(1)
		return decision
	}

	if s.policies != nil {
		if id, denied := s.applyPolicyOverlay(ctx, rules, user); denied {
			deniedBy = id
			s.policyDenials.Add(1)
			return access.Decision{Allowed: false, Error: access.ErrMsgDeniedPolicy}
		}
	}

	return decision
}

// checkRequiredRules is the RBAC guard. Every rule is evaluated — no
// short-circuit on first failure — so callers get the full failure set.
// Malformed input (missing user id, rule without action or subject) fails
// every rule: an internal problem must never read as "allowed".
func (s *AuthorizationService) checkRequiredRules(rules []access.RequiredRule, user access.UserContext) access.Decision {
	if user.UserID == "" || anyMalformed(rules) {
		failed := make([]access.RequiredRule, len(rules))
		copy(failed, rules)
		return access.Decision{Allowed: false, FailedRules: failed}
	}

	ability := s.abilities.AbilityFor(user)

	var failed []access.RequiredRule
	for _, r := range rules {
		if !ability.Can(r.Action, r.Subject, r.Conditions) {
			failed = append(failed, r)
		}
	}
	return access.Decision{Allowed: len(failed) == 0, FailedRules: failed}
}

func anyMalformed(rules []access.RequiredRule) bool {
	for _, r := range rules {
		if r.Action == "" || r.Subject == "" {
			return true
		}
	}
	return false
}

// applyPolicyOverlay runs the deny-first ABAC phase. For each distinct
// subject it fetches the active global-or-own-tenant policies in priority
// order and returns the first eligible deny. The overlay can only take
// access away from an RBAC-allowed request, never grant it.
//
// A store failure degrades precision, not the security floor: RBAC already
// gated access, so the overlay fails open with a warning.
func (s *AuthorizationService) applyPolicyOverlay(ctx context.Context, rules []access.RequiredRule, user access.UserContext) (string, bool) {
	for _, subject := range distinctSubjects(rules) {
		policies, err := s.policies.FetchActive(ctx, string(subject), user.TenantID, s.fetchLimit)
		if err != nil {
			s.logger.Warn("policy fetch failed, skipping overlay for subject",
				"subject", subject,
				"tenant_id", user.TenantID,
				"error", err,
			)
			continue
		}
		for i := range policies {
			p := &policies[i]
			if p.Effect != policy.EffectDeny {
				continue
			}
			// A tenant-scoped policy never crosses tenants, whatever the
			// store returned.
			if p.TenantID != nil && *p.TenantID != user.TenantID {
				continue
			}
			resolved := access.Interpolate(p.Conditions, user, s.publicTenant)
			if access.ContextOnlyMatch(resolved, user) {
				return p.ID, true
			}
		}
	}
	return "", false
}

func distinctSubjects(rules []access.RequiredRule) []access.Subject {
	seen := make(map[access.Subject]struct{}, len(rules))
	var subjects []access.Subject
	for _, r := range rules {
		if _, ok := seen[r.Subject]; ok {
			continue
		}
		seen[r.Subject] = struct{}{}
		subjects = append(subjects, r.Subject)
	}
	return subjects
}

// emitAudit sends one record per call to the recorder, fire-and-forget.
func (s *AuthorizationService) emitAudit(ctx context.Context, rules []access.RequiredRule, user access.UserContext, decision access.Decision, deniedBy string, start time.Time) {
	if s.recorder == nil {
		return
	}

	record := audit.CheckRecord{
		Timestamp:      start,
		RequestID:      ctxkey.RequestIDFromContext(ctx),
		UserID:         user.UserID,
		TenantID:       user.TenantID,
		Roles:          user.Roles,
		Rules:          ruleRefs(rules),
		Decision:       audit.DecisionAllow,
		FailedRules:    len(decision.FailedRules),
		DeniedByPolicy: deniedBy,
		LatencyMicros:  time.Since(start).Microseconds(),
	}
	if !decision.Allowed {
		record.Decision = audit.DecisionDeny
		record.Reason = denialReason(decision)
	}
	s.recorder.Record(record)
}

// denialReason is the decision error when present, else the first failed
// rule.
func denialReason(d access.Decision) string {
	if d.Error != "" {
		return d.Error
	}
	if len(d.FailedRules) > 0 {
		r := d.FailedRules[0]
		return "rule failed: " + string(r.Action) + " " + string(r.Subject)
	}
	return "denied"
}

func ruleRefs(rules []access.RequiredRule) []audit.RuleRef {
	refs := make([]audit.RuleRef, len(rules))
	for i, r := range rules {
		refs[i] = audit.RuleRef{Action: string(r.Action), Subject: string(r.Subject)}
	}
	return refs
}
