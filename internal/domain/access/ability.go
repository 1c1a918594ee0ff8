package access

import "reflect"

// RoleSuperAdmin is the only role exempt from the tenant requirement: a
// caller without a tenant and without this role receives a fail-closed
// ability.
const RoleSuperAdmin = "super_admin"

// resolvedRule is one (action-set, subject-set, condition) triple of a
// compiled ability. Its condition has already been interpolated.
type resolvedRule struct {
	actions   []Action
	subjects  []Subject
	condition Condition
	inverted  bool
}

// Ability is the materialized permission set for one (roles, user, tenant)
// context. Abilities are pure functions of those inputs, which is what makes
// caching them sound. An Ability is immutable after compilation and safe for
// concurrent use.
type Ability struct {
	rules []resolvedRule
}

// Compile expands the role catalog into an ability for the given caller.
// Rules of unknown roles contribute nothing. Overlapping triples are kept
// as-is: Can short-circuits on the first match, so merging would buy
// nothing. Wildcard expansion (manage/all) happens at query time.
//
// A caller with no tenant and without the super admin role gets an ability
// holding a single inverted read-all rule; combined with Can's default-deny
// for unmatched queries, the engine fails closed for context-less callers.
func Compile(catalog Catalog, user UserContext, publicTenant string) *Ability {
	if user.TenantID == "" && !hasRole(user.Roles, RoleSuperAdmin) {
		return &Ability{rules: []resolvedRule{{
			actions:  []Action{ActionRead},
			subjects: []Subject{SubjectAll},
			inverted: true,
		}}}
	}

	var rules []resolvedRule
	for _, role := range user.Roles {
		for _, r := range catalog.RulesFor(role) {
			rules = append(rules, resolvedRule{
				actions:   r.Actions,
				subjects:  r.Subjects,
				condition: Interpolate(r.Condition, user, publicTenant),
				inverted:  r.Inverted,
			})
		}
	}
	return &Ability{rules: rules}
}

// Can reports whether the ability grants action on subject. When instance is
// non-nil it must satisfy the granting rule's condition field by field;
// when nil, the check is type-level and conditioned rules still match.
// The first rule matching action and subject decides: a normal rule grants,
// an inverted rule denies. No rule matching means deny.
func (a *Ability) Can(action Action, subject Subject, instance Condition) bool {
	for _, r := range a.rules {
		if !matchAction(r.actions, action) || !matchSubject(r.subjects, subject) {
			continue
		}
		if r.condition == nil || instance == nil || satisfies(instance, r.condition) {
			return !r.inverted
		}
	}
	return false
}

// Rules returns the number of compiled triples. Used for introspection.
func (a *Ability) Rules() int {
	return len(a.rules)
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func matchAction(granted []Action, want Action) bool {
	for _, g := range granted {
		if g == want || g == ActionManage {
			return true
		}
	}
	return false
}

func matchSubject(granted []Subject, want Subject) bool {
	for _, g := range granted {
		if g == want || g == SubjectAll {
			return true
		}
	}
	return false
}

// satisfies reports whether the instance meets every field of the resolved
// condition. A field missing from the instance fails the check. Values
// compare by equality, except membership constraints ({"in": [...]}) where
// the instance value must appear in the list, and nested maps which recurse.
func satisfies(instance Condition, cond Condition) bool {
	for field, want := range cond {
		got, ok := instance[field]
		if !ok {
			return false
		}
		if !valueSatisfies(got, want) {
			return false
		}
	}
	return true
}

func valueSatisfies(got, want any) bool {
	if list := membershipList(want); list != nil {
		for _, candidate := range list {
			if leafEqual(got, candidate) {
				return true
			}
		}
		return false
	}
	if nested, ok := toMap(want); ok {
		gotMap, ok := toMap(got)
		if !ok {
			return false
		}
		return satisfies(Condition(gotMap), Condition(nested))
	}
	return leafEqual(got, want)
}

func leafEqual(a, b any) bool {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	return reflect.DeepEqual(a, b)
}
