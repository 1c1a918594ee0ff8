package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	httpadapter "github.com/storyglot/authz/internal/adapter/inbound/http"
	auditstore "github.com/storyglot/authz/internal/adapter/outbound/audit"
	"github.com/storyglot/authz/internal/adapter/outbound/memory"
	"github.com/storyglot/authz/internal/adapter/outbound/sqlite"
	"github.com/storyglot/authz/internal/config"
	"github.com/storyglot/authz/internal/domain/access"
	"github.com/storyglot/authz/internal/domain/audit"
	"github.com/storyglot/authz/internal/domain/auth"
	"github.com/storyglot/authz/internal/domain/policy"
	"github.com/storyglot/authz/internal/service"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authorization server",
	Long: `Start the Storyglot authorization server.

The server loads the role catalog, opens the configured policy store, and
serves the authorization API over HTTP.

Examples:
  # Start with config file settings
  storyglot-authz serve

  # Start with a specific config file
  storyglot-authz --config /path/to/config.yaml serve

  # Start in dev mode (debug logging, seeded dev identity)
  storyglot-authz serve --dev`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, seeded dev identity)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load without validation so the --dev flag can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("storyglot-authz stopped")
	return nil
}

// run wires the engine together: role catalog, ability cache, policy store,
// audit pipeline, auth store, and the HTTP server.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
	}

	abilities := service.NewAbilityService(catalog, cfg.Engine.PublicTenantID, logger,
		service.WithAbilityTTL(cfg.Engine.AbilityTTLDuration()),
		service.WithSweepThreshold(cfg.Engine.SweepThreshold),
	)

	policyStore, closePolicyStore, err := openPolicyStore(cfg, logger)
	if err != nil {
		return err
	}
	if closePolicyStore != nil {
		defer closePolicyStore()
	}

	checkStore, err := createCheckStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit store: %w", err)
	}

	auditService := service.NewAuditService(checkStore, logger,
		service.WithChannelSize(cfg.Audit.ChannelSize),
		service.WithBatchSize(cfg.Audit.BatchSize),
		service.WithFlushInterval(cfg.Audit.FlushIntervalDuration()),
	)
	defer func() {
		if err := auditService.Close(); err != nil {
			logger.Error("audit service close failed", "error", err)
		}
	}()

	authStore := memory.NewAuthStore()
	seedAuthFromConfig(cfg, authStore)
	logger.Debug("seeded auth from config",
		"identities", len(cfg.Auth.Identities),
		"api_keys", len(cfg.Auth.APIKeys),
	)

	opts := []service.AuthorizationOption{
		service.WithRecorder(auditService),
		service.WithPolicyFetchLimit(cfg.Engine.PolicyFetchLimit),
	}
	if policyStore != nil {
		opts = append(opts, service.WithPolicyStore(policyStore))
	}
	authorizer := service.NewAuthorizationService(abilities, cfg.Engine.PublicTenantID, logger, opts...)

	keys := auth.NewAPIKeyService(authStore)
	health := httpadapter.NewHealthChecker(abilities, auditService, Version)

	server := httpadapter.NewServer(authorizer, keys,
		httpadapter.WithAddr(cfg.Server.HTTPAddr),
		httpadapter.WithLogger(logger),
		httpadapter.WithHealthChecker(health),
		httpadapter.WithEngineStats(abilities, auditService),
	)

	logger.Info("authorization engine ready",
		"roles", catalog.Roles(),
		"policy_store", cfg.PolicyStore.Driver,
		"public_tenant", cfg.Engine.PublicTenantID,
	)

	return server.Start(ctx)
}

// loadCatalog returns the role catalog: the YAML override when configured,
// otherwise the builtin one.
func loadCatalog(cfg *config.Config, logger *slog.Logger) (access.Catalog, error) {
	if cfg.Engine.RolesFile == "" {
		return access.DefaultCatalog(), nil
	}
	catalog, err := access.LoadCatalogFile(cfg.Engine.RolesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles file: %w", err)
	}
	logger.Info("loaded role catalog", "file", cfg.Engine.RolesFile, "roles", catalog.Roles())
	return catalog, nil
}

// openPolicyStore opens the configured policy store. The returned close
// function is nil for stores that need no cleanup.
func openPolicyStore(cfg *config.Config, logger *slog.Logger) (policy.Store, func(), error) {
	switch cfg.PolicyStore.Driver {
	case "memory":
		logger.Debug("policy store: memory")
		return memory.NewPolicyStore(), nil, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.PolicyStore.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open policy store: %w", err)
		}
		logger.Debug("policy store: sqlite", "path", cfg.PolicyStore.Path)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown policy store driver: %s", cfg.PolicyStore.Driver)
	}
}

// createCheckStore creates the audit sink based on configuration.
func createCheckStore(cfg *config.Config, logger *slog.Logger) (audit.Store, error) {
	switch {
	case cfg.Audit.Output == "stdout":
		logger.Debug("audit output: stdout")
		return auditstore.NewWriterStore(os.Stdout), nil

	case strings.HasPrefix(cfg.Audit.Output, "file://"):
		dir := strings.TrimPrefix(cfg.Audit.Output, "file://")
		store, err := auditstore.NewFileStore(auditstore.FileStoreConfig{
			Dir:           dir,
			RetentionDays: cfg.Audit.RetentionDays,
			MaxFileSizeMB: cfg.Audit.MaxFileSizeMB,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("audit output: file", "dir", dir)
		return store, nil

	default:
		return nil, fmt.Errorf("invalid audit output: %s", cfg.Audit.Output)
	}
}

// seedAuthFromConfig populates the auth store from config identities and
// API keys.
func seedAuthFromConfig(cfg *config.Config, store *memory.AuthStore) {
	identities := make([]auth.Identity, 0, len(cfg.Auth.Identities))
	for _, ic := range cfg.Auth.Identities {
		identities = append(identities, auth.Identity{
			ID:       ic.ID,
			Name:     ic.Name,
			TenantID: ic.TenantID,
			Roles:    ic.Roles,
		})
	}

	keys := make([]auth.APIKey, 0, len(cfg.Auth.APIKeys))
	for _, kc := range cfg.Auth.APIKeys {
		keys = append(keys, auth.APIKey{
			ID:         uuid.New().String(),
			Name:       kc.Name,
			Key:        kc.KeyHash,
			IdentityID: kc.IdentityID,
		})
	}

	store.Seed(identities, keys)
}

// parseLogLevel converts a config log level string to a slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
