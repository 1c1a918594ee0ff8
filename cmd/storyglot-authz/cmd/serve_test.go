package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/storyglot/authz/internal/adapter/outbound/memory"
	"github.com/storyglot/authz/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}
	for _, tc := range tests {
		if got := parseLogLevel(tc.in); got != tc.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSeedAuthFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.Identities = []config.IdentityConfig{
		{ID: "svc-1", Name: "Backend", TenantID: "tenant-1", Roles: []string{"tenant_admin"}},
	}
	cfg.Auth.APIKeys = []config.APIKeyConfig{
		{Name: "prod", KeyHash: "sha256:abc", IdentityID: "svc-1"},
	}

	store := memory.NewAuthStore()
	seedAuthFromConfig(cfg, store)

	identity, err := store.GetIdentity(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if identity.TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want tenant-1", identity.TenantID)
	}

	keys, err := store.ListAPIKeys(context.Background())
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 1 || keys[0].IdentityID != "svc-1" {
		t.Errorf("unexpected keys: %+v", keys)
	}
	if keys[0].ID == "" {
		t.Error("expected a generated key ID")
	}
}

func TestCreateCheckStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	store, err := createCheckStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("stdout store: %v", err)
	}
	if store == nil {
		t.Fatal("expected a store")
	}

	cfg.Audit.Output = "file://" + t.TempDir()
	store, err = createCheckStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	_ = store.Close()

	cfg.Audit.Output = "syslog"
	if _, err := createCheckStore(cfg, testLogger()); err == nil {
		t.Error("expected error for invalid output")
	}
}

func TestOpenPolicyStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	store, closeFn, err := openPolicyStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if store == nil || closeFn != nil {
		t.Error("memory store should need no cleanup")
	}

	cfg.PolicyStore.Driver = "sqlite"
	cfg.PolicyStore.Path = t.TempDir() + "/policies.db"
	store, closeFn, err = openPolicyStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	if store == nil || closeFn == nil {
		t.Fatal("sqlite store should provide cleanup")
	}
	closeFn()

	cfg.PolicyStore.Driver = "bolt"
	if _, _, err := openPolicyStore(cfg, testLogger()); err == nil {
		t.Error("expected error for unknown driver")
	}
}
