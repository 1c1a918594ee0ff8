package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/storyglot/authz/internal/domain/policy"
)

func tenantPtr(id string) *string { return &id }

func seedPolicies(t *testing.T, store *PolicyStore, policies ...policy.ResourcePolicy) {
	t.Helper()
	for i := range policies {
		if err := store.Save(context.Background(), &policies[i]); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}
}

func TestFetchActiveFiltersAndOrders(t *testing.T) {
	store := NewPolicyStore()
	seedPolicies(t, store,
		policy.ResourcePolicy{ID: "low", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 10, TenantID: tenantPtr("t1"), Active: true},
		policy.ResourcePolicy{ID: "high", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 100, TenantID: tenantPtr("t1"), Active: true},
		policy.ResourcePolicy{ID: "global", Resource: "Lesson", Effect: policy.EffectAllow, Priority: 50, Active: true},
		policy.ResourcePolicy{ID: "other-tenant", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 90, TenantID: tenantPtr("t2"), Active: true},
		policy.ResourcePolicy{ID: "inactive", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 80, TenantID: tenantPtr("t1"), Active: false},
		policy.ResourcePolicy{ID: "other-resource", Resource: "Story", Effect: policy.EffectDeny, Priority: 70, TenantID: tenantPtr("t1"), Active: true},
	)

	got, err := store.FetchActive(context.Background(), "Lesson", "t1", 50)
	if err != nil {
		t.Fatalf("FetchActive() error: %v", err)
	}

	wantIDs := []string{"high", "global", "low"}
	if len(got) != len(wantIDs) {
		t.Fatalf("len = %d, want %d: %v", len(got), len(wantIDs), got)
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestFetchActiveLimit(t *testing.T) {
	store := NewPolicyStore()
	seedPolicies(t, store,
		policy.ResourcePolicy{ID: "a", Resource: "Lesson", Priority: 3, Active: true},
		policy.ResourcePolicy{ID: "b", Resource: "Lesson", Priority: 2, Active: true},
		policy.ResourcePolicy{ID: "c", Resource: "Lesson", Priority: 1, Active: true},
	)

	got, err := store.FetchActive(context.Background(), "Lesson", "t1", 2)
	if err != nil {
		t.Fatalf("FetchActive() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestDelete(t *testing.T) {
	store := NewPolicyStore()
	seedPolicies(t, store, policy.ResourcePolicy{ID: "p1", Resource: "Lesson", Active: true})

	if err := store.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := store.Delete(context.Background(), "p1"); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("second Delete() error = %v, want ErrPolicyNotFound", err)
	}
}

func TestSaveCopiesPolicy(t *testing.T) {
	store := NewPolicyStore()
	p := policy.ResourcePolicy{
		ID: "p1", Resource: "Lesson", Active: true,
		Conditions: map[string]any{"tenantId": "t1"},
	}
	seedPolicies(t, store, p)

	// Mutating the original must not leak into the store.
	p.Conditions["tenantId"] = "t2"

	got, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if got[0].Conditions["tenantId"] != "t1" {
		t.Errorf("stored condition mutated: %v", got[0].Conditions)
	}
}
