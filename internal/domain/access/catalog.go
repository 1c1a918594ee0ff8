package access

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog maps a role name to its ordered list of rules. The catalog is
// loaded once at process start and is immutable at runtime.
type Catalog map[string][]Rule

// RulesFor returns the rules of a role. Unknown role names contribute no
// rules; they are not an error.
func (c Catalog) RulesFor(role string) []Rule {
	return c[role]
}

// Roles returns the number of roles in the catalog.
func (c Catalog) Roles() int {
	return len(c)
}

// tenantCond constrains a rule to the caller's own tenant.
func tenantCond() Condition {
	return Condition{"tenantId": PlaceholderTenantID}
}

// tenantOrPublicCond constrains a rule to the caller's tenant or the
// public library tenant.
func tenantOrPublicCond() Condition {
	return Condition{"tenantId": Condition{inKey: []any{PlaceholderTenantID, PlaceholderPublicTenant}}}
}

// ownCond constrains a rule to resources owned by the caller.
func ownCond() Condition {
	return Condition{"userId": PlaceholderUserID}
}

// publicCond constrains a rule to the public library tenant.
func publicCond() Condition {
	return Condition{"tenantId": PlaceholderPublicTenant}
}

// DefaultCatalog returns the builtin role-to-rule table of the platform.
//
// Tenant-scoped content subjects are readable from the caller's own tenant
// and from the public library; writes stay within the caller's tenant.
// Progress is always scoped to the owning learner.
func DefaultCatalog() Catalog {
	contentSubjects := []Subject{SubjectStory, SubjectLesson, SubjectVocabularyDeck, SubjectQuiz}

	return Catalog{
		RoleSuperAdmin: {
			{Actions: []Action{ActionManage}, Subjects: []Subject{SubjectAll}},
		},
		"tenant_admin": {
			{
				Actions: []Action{ActionManage},
				Subjects: []Subject{
					SubjectUser, SubjectStory, SubjectLesson, SubjectVocabularyDeck,
					SubjectQuiz, SubjectAssignment, SubjectProgress, SubjectMediaAsset,
					SubjectResourcePolicy,
				},
				Condition: tenantCond(),
			},
			{Actions: []Action{ActionRead, ActionUpdate}, Subjects: []Subject{SubjectTenant}, Condition: tenantCond()},
			{Actions: []Action{ActionRead, ActionExport}, Subjects: []Subject{SubjectAuditLog}, Condition: tenantCond()},
		},
		"teacher": {
			{
				Actions:   []Action{ActionCreate, ActionRead, ActionUpdate, ActionAssign},
				Subjects:  []Subject{SubjectLesson, SubjectQuiz, SubjectAssignment},
				Condition: tenantCond(),
			},
			{Actions: []Action{ActionGrade}, Subjects: []Subject{SubjectAssignment, SubjectProgress}, Condition: tenantCond()},
			{Actions: []Action{ActionRead}, Subjects: []Subject{SubjectUser, SubjectProgress}, Condition: tenantCond()},
			{Actions: []Action{ActionRead}, Subjects: contentSubjects, Condition: tenantOrPublicCond()},
		},
		"content_creator": {
			{
				Actions:   []Action{ActionCreate, ActionUpdate, ActionPublish, ActionExport},
				Subjects:  []Subject{SubjectStory, SubjectLesson, SubjectVocabularyDeck, SubjectMediaAsset},
				Condition: tenantCond(),
			},
			{Actions: []Action{ActionApprove}, Subjects: []Subject{SubjectStory}, Condition: tenantCond()},
			{Actions: []Action{ActionRead, ActionRemix}, Subjects: contentSubjects, Condition: tenantOrPublicCond()},
		},
		"student": {
			{Actions: []Action{ActionRead}, Subjects: contentSubjects, Condition: tenantOrPublicCond()},
			{Actions: []Action{ActionRead}, Subjects: []Subject{SubjectAssignment}, Condition: tenantCond()},
			{Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionExport}, Subjects: []Subject{SubjectProgress}, Condition: ownCond()},
			{Actions: []Action{ActionRemix}, Subjects: []Subject{SubjectStory}, Condition: publicCond()},
		},
		"guest": {
			{Actions: []Action{ActionRead}, Subjects: []Subject{SubjectStory, SubjectLesson, SubjectVocabularyDeck}, Condition: publicCond()},
		},
	}
}

// catalogFile is the YAML shape of a role catalog override file.
type catalogFile struct {
	Roles map[string][]Rule `yaml:"roles"`
}

// ParseCatalog parses a YAML role catalog and validates every action and
// subject against the closed enums.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse role catalog: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("role catalog defines no roles")
	}
	for role, rules := range f.Roles {
		for i, r := range rules {
			if len(r.Actions) == 0 || len(r.Subjects) == 0 {
				return nil, fmt.Errorf("role %q rule %d: actions and subjects are required", role, i)
			}
			for _, a := range r.Actions {
				if !ValidAction(a) {
					return nil, fmt.Errorf("role %q rule %d: unknown action %q", role, i, a)
				}
			}
			for _, s := range r.Subjects {
				if !ValidSubject(s) {
					return nil, fmt.Errorf("role %q rule %d: unknown subject %q", role, i, s)
				}
			}
		}
	}
	return Catalog(f.Roles), nil
}

// LoadCatalogFile reads and parses a role catalog override file.
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role catalog: %w", err)
	}
	return ParseCatalog(data)
}
