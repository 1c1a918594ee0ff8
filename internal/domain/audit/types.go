// Package audit contains domain types for authorization audit logging.
package audit

import (
	"strings"
	"time"
)

// Decision constants for audit records.
const (
	// DecisionAllow indicates the check passed.
	DecisionAllow = "allow"
	// DecisionDeny indicates the check was denied.
	DecisionDeny = "deny"
)

// RuleRef names one required rule of a check, for the audit trail.
type RuleRef struct {
	Action  string `json:"action"`
	Subject string `json:"subject"`
}

// CheckRecord is a single auditable authorization decision.
type CheckRecord struct {
	// Timestamp is when the check was received.
	Timestamp time.Time `json:"timestamp"`
	// RequestID correlates the record with the inbound request.
	RequestID string `json:"request_id,omitempty"`
	// UserID and TenantID identify the caller.
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
	// Roles held by the caller at check time.
	Roles []string `json:"roles,omitempty"`
	// Rules are the required rules the caller submitted.
	Rules []RuleRef `json:"rules"`
	// Decision is "allow" or "deny".
	Decision string `json:"decision"`
	// Reason explains a denial: the decision error string or the first
	// failed rule.
	Reason string `json:"reason,omitempty"`
	// FailedRules is how many required rules the RBAC phase rejected.
	FailedRules int `json:"failed_rules,omitempty"`
	// DeniedByPolicy is the ID of the resource policy that vetoed an
	// RBAC-allowed check, when the ABAC phase produced the denial.
	DeniedByPolicy string `json:"denied_by_policy,omitempty"`
	// LatencyMicros is the end-to-end check latency in microseconds.
	LatencyMicros int64 `json:"latency_micros"`
	// Metadata carries caller-supplied context (may be redacted).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// sensitiveKeywords lists substrings that indicate a sensitive metadata key.
// Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// RedactSensitiveMetadata returns a copy of metadata with sensitive values
// masked. A key is considered sensitive if it contains any of the
// sensitiveKeywords (case-insensitive).
func RedactSensitiveMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return metadata
	}
	redacted := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if isSensitiveKey(k) {
			redacted[k] = "***REDACTED***"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
