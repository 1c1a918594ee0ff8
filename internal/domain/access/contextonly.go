package access

// Context-only condition fields. A resolved policy condition may only be
// used to deny when every one of its fields names the caller's own identity
// or tenant: the evaluator has no view of the resource instance, so it can
// veto based on who is asking but never on resource attributes.
const (
	fieldTenantID = "tenantId"
	fieldUserID   = "userId"
)

// ContextOnlyMatch reports whether a resolved condition is context-only and
// matches the caller: every field must be tenantId or userId, equal to (or,
// for a membership constraint, containing) the caller's value. A condition
// referencing any other field — a resource attribute the evaluator cannot
// see — is not eligible and never matches. An empty condition matches
// unconditionally.
func ContextOnlyMatch(cond Condition, user UserContext) bool {
	for field, want := range cond {
		var have string
		switch field {
		case fieldTenantID:
			have = user.TenantID
		case fieldUserID:
			have = user.UserID
		default:
			return false
		}
		if !valueMatchesContext(want, have) {
			return false
		}
	}
	return true
}

func valueMatchesContext(want any, have string) bool {
	if list := membershipList(want); list != nil {
		for _, candidate := range list {
			if s, ok := candidate.(string); ok && s == have {
				return true
			}
		}
		return false
	}
	s, ok := want.(string)
	return ok && s == have
}
