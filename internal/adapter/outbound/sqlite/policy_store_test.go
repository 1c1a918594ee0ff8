package sqlite

import (
	"context"
	"testing"

	"github.com/storyglot/authz/internal/domain/access"
	"github.com/storyglot/authz/internal/domain/policy"
)

func openTestStore(t *testing.T) *PolicyStore {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndFetchActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	tenant := "tenant-1"

	policies := []policy.ResourcePolicy{
		{ID: "pol-low", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 1, TenantID: &tenant, Active: true},
		{ID: "pol-high", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 10, TenantID: &tenant, Active: true,
			Conditions: access.Condition{"tenantId": "${ctx.tenantId}"}},
		{ID: "pol-global", Resource: "Lesson", Effect: policy.EffectAllow, Priority: 5, Active: true},
		{ID: "pol-inactive", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 20, TenantID: &tenant},
		{ID: "pol-other-tenant", Resource: "Lesson", Effect: policy.EffectDeny, Priority: 20, Active: true,
			TenantID: strPtr("tenant-2")},
		{ID: "pol-other-resource", Resource: "Story", Effect: policy.EffectDeny, Priority: 20, TenantID: &tenant, Active: true},
	}
	for i := range policies {
		if err := store.Save(ctx, &policies[i]); err != nil {
			t.Fatalf("save %s: %v", policies[i].ID, err)
		}
	}

	got, err := store.FetchActive(ctx, "Lesson", tenant, 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	wantOrder := []string{"pol-high", "pol-global", "pol-low"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d policies, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if got[0].Conditions == nil || got[0].Conditions["tenantId"] != "${ctx.tenantId}" {
		t.Errorf("conditions did not round-trip: %v", got[0].Conditions)
	}
	if got[1].TenantID != nil {
		t.Errorf("global policy should have nil tenant, got %v", *got[1].TenantID)
	}
}

func TestFetchActiveLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, p := range []policy.ResourcePolicy{
		{ID: "a", Resource: "Quiz", Effect: policy.EffectDeny, Priority: 3, Active: true},
		{ID: "b", Resource: "Quiz", Effect: policy.EffectDeny, Priority: 2, Active: true},
		{ID: "c", Resource: "Quiz", Effect: policy.EffectDeny, Priority: 1, Active: true},
	} {
		p := p
		if err := store.Save(ctx, &p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := store.FetchActive(ctx, "Quiz", "tenant-1", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestSaveUpdatesExisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := policy.ResourcePolicy{ID: "pol-1", Resource: "Story", Effect: policy.EffectDeny, Priority: 1, Active: true}
	if err := store.Save(ctx, &p); err != nil {
		t.Fatalf("save: %v", err)
	}
	p.Priority = 7
	p.Active = false
	if err := store.Save(ctx, &p); err != nil {
		t.Fatalf("resave: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 policy after update, got %d", len(all))
	}
	if all[0].Priority != 7 || all[0].Active {
		t.Errorf("update not applied: %+v", all[0])
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := policy.ResourcePolicy{ID: "pol-1", Resource: "Story", Effect: policy.EffectDeny, Active: true}
	if err := store.Save(ctx, &p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "pol-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "pol-1"); err == nil {
		t.Fatal("expected error deleting missing policy")
	}
}

func strPtr(s string) *string { return &s }
