package access

import "testing"

const testPublicTenant = "public"

func compileFor(t *testing.T, user UserContext) *Ability {
	t.Helper()
	return Compile(DefaultCatalog(), user, testPublicTenant)
}

func TestCompileFailsClosedWithoutTenant(t *testing.T) {
	ability := compileFor(t, UserContext{UserID: "u1", Roles: []string{"student"}})

	for _, subject := range Subjects() {
		if ability.Can(ActionRead, subject, nil) {
			t.Errorf("Can(read, %s) = true for tenant-less caller, want false", subject)
		}
	}
	if ability.Can(ActionCreate, SubjectProgress, nil) {
		t.Error("Can(create, Progress) = true for tenant-less caller, want false")
	}
}

func TestCompileSuperAdminWithoutTenant(t *testing.T) {
	ability := compileFor(t, UserContext{UserID: "root", Roles: []string{RoleSuperAdmin}})

	for _, action := range Actions() {
		for _, subject := range Subjects() {
			if !ability.Can(action, subject, nil) {
				t.Errorf("Can(%s, %s) = false for super admin, want true", action, subject)
			}
		}
	}
}

func TestManageWildcardSubsumesActions(t *testing.T) {
	// tenant_admin has manage on User within its tenant.
	ability := compileFor(t, UserContext{UserID: "a1", TenantID: "t1", Roles: []string{"tenant_admin"}})

	for _, action := range Actions() {
		if !ability.Can(action, SubjectUser, Condition{"tenantId": "t1"}) {
			t.Errorf("Can(%s, User) = false, manage should subsume it", action)
		}
	}
}

func TestAllWildcardSubsumesSubjects(t *testing.T) {
	catalog := Catalog{
		"auditor": {{Actions: []Action{ActionRead}, Subjects: []Subject{SubjectAll}}},
	}
	ability := Compile(catalog, UserContext{UserID: "u1", TenantID: "t1", Roles: []string{"auditor"}}, testPublicTenant)

	for _, subject := range Subjects() {
		if !ability.Can(ActionRead, subject, nil) {
			t.Errorf("Can(read, %s) = false, all should subsume it", subject)
		}
	}
}

func TestUnknownRoleContributesNoRules(t *testing.T) {
	ability := compileFor(t, UserContext{UserID: "u1", TenantID: "t1", Roles: []string{"astronaut"}})

	if ability.Rules() != 0 {
		t.Fatalf("Rules() = %d, want 0 for unknown role", ability.Rules())
	}
	if ability.Can(ActionRead, SubjectLesson, nil) {
		t.Error("Can(read, Lesson) = true for unknown role, want false")
	}
}

func TestCanConditionMatching(t *testing.T) {
	student := UserContext{UserID: "u1", TenantID: "t1", Roles: []string{"student"}}
	ability := compileFor(t, student)

	tests := []struct {
		name     string
		action   Action
		subject  Subject
		instance Condition
		want     bool
	}{
		{"read lesson type-level", ActionRead, SubjectLesson, nil, true},
		{"read lesson own tenant", ActionRead, SubjectLesson, Condition{"tenantId": "t1"}, true},
		{"read lesson public tenant", ActionRead, SubjectLesson, Condition{"tenantId": "public"}, true},
		{"read lesson other tenant", ActionRead, SubjectLesson, Condition{"tenantId": "t2"}, false},
		{"update own progress", ActionUpdate, SubjectProgress, Condition{"userId": "u1"}, true},
		{"update someone elses progress", ActionUpdate, SubjectProgress, Condition{"userId": "u2"}, false},
		{"remix public story", ActionRemix, SubjectStory, Condition{"tenantId": "public"}, true},
		{"remix tenant story", ActionRemix, SubjectStory, Condition{"tenantId": "t1"}, false},
		{"delete lesson not granted", ActionDelete, SubjectLesson, nil, false},
		{"read resource policy not granted", ActionRead, SubjectResourcePolicy, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ability.Can(tt.action, tt.subject, tt.instance); got != tt.want {
				t.Errorf("Can(%s, %s, %v) = %v, want %v", tt.action, tt.subject, tt.instance, got, tt.want)
			}
		})
	}
}

func TestCanInvertedRuleDenies(t *testing.T) {
	catalog := Catalog{
		"restricted": {
			{Actions: []Action{ActionRead}, Subjects: []Subject{SubjectStory}, Inverted: true},
			{Actions: []Action{ActionRead}, Subjects: []Subject{SubjectAll}},
		},
	}
	ability := Compile(catalog, UserContext{UserID: "u1", TenantID: "t1", Roles: []string{"restricted"}}, testPublicTenant)

	// First match wins: the inverted Story rule shadows the read-all grant.
	if ability.Can(ActionRead, SubjectStory, nil) {
		t.Error("Can(read, Story) = true, inverted rule should deny")
	}
	if !ability.Can(ActionRead, SubjectLesson, nil) {
		t.Error("Can(read, Lesson) = false, want true from read-all grant")
	}
}

func TestCanMissingInstanceField(t *testing.T) {
	ability := compileFor(t, UserContext{UserID: "u1", TenantID: "t1", Roles: []string{"student"}})

	// Instance present but lacking the conditioned field fails the rule.
	if ability.Can(ActionUpdate, SubjectProgress, Condition{"lessonId": "l1"}) {
		t.Error("Can(update, Progress) = true without userId field, want false")
	}
}

func TestContextOnlyMatch(t *testing.T) {
	user := UserContext{UserID: "u1", TenantID: "t1"}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"empty condition", Condition{}, true},
		{"tenant equal", Condition{"tenantId": "t1"}, true},
		{"tenant differs", Condition{"tenantId": "t2"}, false},
		{"user equal", Condition{"userId": "u1"}, true},
		{"user differs", Condition{"userId": "u2"}, false},
		{"tenant in list", Condition{"tenantId": Condition{"in": []any{"t0", "t1"}}}, true},
		{"tenant not in list", Condition{"tenantId": Condition{"in": []any{"t0", "t2"}}}, false},
		{"both fields match", Condition{"tenantId": "t1", "userId": "u1"}, true},
		{"one field differs", Condition{"tenantId": "t1", "userId": "u2"}, false},
		{"resource attribute not eligible", Condition{"status": "published"}, false},
		{"mixed with resource attribute not eligible", Condition{"tenantId": "t1", "status": "draft"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContextOnlyMatch(tt.cond, user); got != tt.want {
				t.Errorf("ContextOnlyMatch(%v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}
