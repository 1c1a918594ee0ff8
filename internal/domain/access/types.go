// Package access contains the domain types for the RBAC+ABAC authorization
// engine: actions, subjects, rules, the role catalog, condition templates,
// and the compiled ability that answers can(action, subject) queries.
package access

// Action is a domain verb a caller may perform on a subject.
type Action string

const (
	// ActionManage is the wildcard action: it subsumes every other action
	// on the same subject.
	ActionManage  Action = "manage"
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionPublish Action = "publish"
	ActionApprove Action = "approve"
	ActionAssign  Action = "assign"
	ActionGrade   Action = "grade"
	ActionRemix   Action = "remix"
	ActionExport  Action = "export"
)

// Subject is a domain noun access rules apply to.
type Subject string

const (
	// SubjectAll is the wildcard subject: it subsumes every other subject.
	SubjectAll            Subject = "all"
	SubjectUser           Subject = "User"
	SubjectTenant         Subject = "Tenant"
	SubjectStory          Subject = "Story"
	SubjectLesson         Subject = "Lesson"
	SubjectVocabularyDeck Subject = "VocabularyDeck"
	SubjectQuiz           Subject = "Quiz"
	SubjectAssignment     Subject = "Assignment"
	SubjectProgress       Subject = "Progress"
	SubjectMediaAsset     Subject = "MediaAsset"
	SubjectResourcePolicy Subject = "ResourcePolicy"
	SubjectAuditLog       Subject = "AuditLog"
)

// knownActions is the closed action enum.
var knownActions = map[Action]struct{}{
	ActionManage: {}, ActionCreate: {}, ActionRead: {}, ActionUpdate: {},
	ActionDelete: {}, ActionPublish: {}, ActionApprove: {}, ActionAssign: {},
	ActionGrade: {}, ActionRemix: {}, ActionExport: {},
}

// knownSubjects is the closed subject enum.
var knownSubjects = map[Subject]struct{}{
	SubjectAll: {}, SubjectUser: {}, SubjectTenant: {}, SubjectStory: {},
	SubjectLesson: {}, SubjectVocabularyDeck: {}, SubjectQuiz: {},
	SubjectAssignment: {}, SubjectProgress: {}, SubjectMediaAsset: {},
	SubjectResourcePolicy: {}, SubjectAuditLog: {},
}

// ValidAction reports whether a is part of the closed action enum.
func ValidAction(a Action) bool {
	_, ok := knownActions[a]
	return ok
}

// ValidSubject reports whether s is part of the closed subject enum.
func ValidSubject(s Subject) bool {
	_, ok := knownSubjects[s]
	return ok
}

// Actions returns every action in the enum. Used by tests that assert
// wildcard subsumption across the full set.
func Actions() []Action {
	return []Action{
		ActionManage, ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionPublish, ActionApprove, ActionAssign, ActionGrade, ActionRemix,
		ActionExport,
	}
}

// Subjects returns every subject in the enum.
func Subjects() []Subject {
	return []Subject{
		SubjectAll, SubjectUser, SubjectTenant, SubjectStory, SubjectLesson,
		SubjectVocabularyDeck, SubjectQuiz, SubjectAssignment, SubjectProgress,
		SubjectMediaAsset, SubjectResourcePolicy, SubjectAuditLog,
	}
}

// Condition is a nested field map constraining the instances a rule applies
// to. Leaf values express equality (scalar) or membership (a map with a
// single "in" key holding a list). Values inside role catalog entries are
// templates: string leaves may carry the ${ctx.userId}, ${ctx.tenantId} and
// ${publicTenantId} placeholders resolved by Interpolate.
type Condition map[string]any

// Rule grants (or, when Inverted, revokes) a set of actions on a set of
// subjects, optionally constrained by a condition template.
type Rule struct {
	Actions   []Action  `yaml:"actions"`
	Subjects  []Subject `yaml:"subjects"`
	Condition Condition `yaml:"condition,omitempty"`
	Inverted  bool      `yaml:"inverted,omitempty"`
}

// RequiredRule is one authorization requirement submitted by a caller.
// Conditions, when present, describe the instance being acted on and are
// matched against the resolved condition of the granting rule.
type RequiredRule struct {
	Action     Action    `json:"action"`
	Subject    Subject   `json:"subject"`
	Conditions Condition `json:"conditions,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// UserContext identifies the caller. It is produced by the auth layer;
// the engine never constructs one. An empty TenantID means the caller has
// no tenant and is treated as maximally restricted unless they hold the
// super admin role.
type UserContext struct {
	UserID   string   `json:"userId"`
	TenantID string   `json:"tenantId,omitempty"`
	Roles    []string `json:"roles"`
}

// Decision is the output contract of the authorization facade.
type Decision struct {
	Allowed     bool           `json:"allowed"`
	FailedRules []RequiredRule `json:"failedRules,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Decision error strings. These are part of the engine's output contract;
// callers and tests match on them.
const (
	ErrMsgNoRules      = "No authorization rules provided"
	ErrMsgDeniedPolicy = "Access denied by policy"
	ErrMsgCheckFailed  = "Authorization check failed"
)
