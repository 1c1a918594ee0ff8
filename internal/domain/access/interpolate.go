package access

import "strings"

// Context placeholders recognized inside condition template string leaves.
const (
	PlaceholderUserID       = "${ctx.userId}"
	PlaceholderTenantID     = "${ctx.tenantId}"
	PlaceholderPublicTenant = "${publicTenantId}"
)

// inKey marks a membership constraint: {"in": [v1, v2, ...]}.
const inKey = "in"

// Interpolate resolves the context placeholders in a condition template and
// returns a deep copy; the template itself is never mutated. Substitution is
// a typed walk over the condition tree that touches only string leaves
// (including strings inside "in" lists), so the structure of the condition
// can never be corrupted by the replacement.
func Interpolate(template Condition, user UserContext, publicTenant string) Condition {
	if template == nil {
		return nil
	}
	r := strings.NewReplacer(
		PlaceholderUserID, user.UserID,
		PlaceholderTenantID, user.TenantID,
		PlaceholderPublicTenant, publicTenant,
	)
	out := make(Condition, len(template))
	for k, v := range template {
		out[k] = interpolateValue(v, r)
	}
	return out
}

func interpolateValue(v any, r *strings.Replacer) any {
	switch val := v.(type) {
	case string:
		return r.Replace(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolateValue(item, r)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = interpolateValue(item, r)
		}
		return out
	case Condition:
		out := make(Condition, len(val))
		for k, item := range val {
			out[k] = interpolateValue(item, r)
		}
		return out
	default:
		// Non-string scalars (bool, numbers) carry no placeholders.
		return v
	}
}

// membershipList returns the list of an {"in": [...]} constraint, or nil
// when v is not a membership constraint.
func membershipList(v any) []any {
	m, ok := toMap(v)
	if !ok || len(m) != 1 {
		return nil
	}
	list, ok := m[inKey].([]any)
	if !ok {
		return nil
	}
	return list
}

// toMap normalizes the two map shapes a condition value can take.
func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Condition:
		return m, true
	default:
		return nil, false
	}
}
