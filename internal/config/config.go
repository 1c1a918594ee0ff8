// Package config provides the configuration schema for the authorization
// service, loaded from a YAML file and environment variables.
package config

import (
	"time"
)

// Config is the top-level configuration for storyglot-authz.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Engine configures the authorization engine.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// PolicyStore configures where tenant resource policies are read from.
	PolicyStore PolicyStoreConfig `yaml:"policy_store" mapstructure:"policy_store"`

	// Audit configures where authorization check records are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Auth configures file-based identities and API keys for callers of
	// the HTTP API.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// DevMode enables development defaults (verbose logging, a seeded
	// dev identity and API key).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// EngineConfig configures the authorization engine.
type EngineConfig struct {
	// PublicTenantID is the tenant sentinel for platform-shared content.
	// Defaults to "public".
	PublicTenantID string `yaml:"public_tenant_id" mapstructure:"public_tenant_id"`

	// AbilityTTL is how long a compiled ability stays cached (e.g., "5m").
	// Defaults to "5m".
	AbilityTTL string `yaml:"ability_ttl" mapstructure:"ability_ttl" validate:"omitempty"`

	// SweepThreshold is the cache size above which expired entries are
	// swept on write. Defaults to 100.
	SweepThreshold int `yaml:"sweep_threshold" mapstructure:"sweep_threshold" validate:"omitempty,min=1"`

	// PolicyFetchLimit caps the policies fetched per subject during the
	// policy overlay. Defaults to 50.
	PolicyFetchLimit int `yaml:"policy_fetch_limit" mapstructure:"policy_fetch_limit" validate:"omitempty,min=1"`

	// RolesFile optionally points to a YAML role catalog that replaces
	// the builtin one.
	RolesFile string `yaml:"roles_file" mapstructure:"roles_file"`
}

// PolicyStoreConfig configures the resource policy store.
type PolicyStoreConfig struct {
	// Driver selects the store implementation.
	// Valid values: "memory" (dev/testing) or "sqlite".
	// Defaults to "memory".
	Driver string `yaml:"driver" mapstructure:"driver" validate:"omitempty,oneof=memory sqlite"`

	// Path is the SQLite database path. Required when driver is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`
}

// AuditConfig configures audit output for authorization checks.
type AuditConfig struct {
	// Output specifies where check records are written.
	// Valid values: "stdout" or "file://<absolute-directory>".
	// Defaults to "stdout".
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// ChannelSize is the buffer size for the audit channel.
	// Defaults to 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of records to batch before writing.
	// Defaults to 100.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often to flush pending records (e.g., "1s").
	// Defaults to "1s".
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// RetentionDays is the number of days to keep check log files.
	// Only used with file output. Defaults to 30.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// MaxFileSizeMB is the maximum log file size before rotation.
	// Only used with file output. Defaults to 100.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`
}

// AuthConfig configures file-based authentication for API callers.
type AuthConfig struct {
	// Identities defines the known caller identities.
	Identities []IdentityConfig `yaml:"identities" mapstructure:"identities" validate:"omitempty,dive"`

	// APIKeys defines the API keys that map to identities.
	APIKeys []APIKeyConfig `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive"`
}

// IdentityConfig defines a file-based caller identity.
type IdentityConfig struct {
	// ID is the unique identifier for this identity.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`

	// Name is the human-readable name for this identity.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// TenantID scopes the identity to a tenant. Empty means no tenant:
	// the engine treats such callers as maximally restricted unless they
	// hold the super admin role.
	TenantID string `yaml:"tenant_id" mapstructure:"tenant_id"`

	// Roles are the catalog roles assigned to this identity.
	Roles []string `yaml:"roles" mapstructure:"roles" validate:"required,min=1"`
}

// APIKeyConfig defines an API key that authenticates as an identity.
type APIKeyConfig struct {
	// Name is a human-readable label for this key.
	Name string `yaml:"name" mapstructure:"name"`

	// KeyHash is the hash of the API key: either "sha256:<hex>"
	// (generate with the hash-key command) or a full argon2id hash.
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash" validate:"required,key_hash"`

	// IdentityID references the identity this key authenticates as.
	// Must match an ID in Auth.Identities.
	IdentityID string `yaml:"identity_id" mapstructure:"identity_id" validate:"required"`
}

// AbilityTTLDuration parses the ability TTL, falling back to 5 minutes.
func (c *EngineConfig) AbilityTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.AbilityTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// FlushIntervalDuration parses the flush interval, falling back to 1 second.
func (c *AuditConfig) FlushIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.FlushInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only; network exposure is an explicit choice.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Engine.PublicTenantID == "" {
		c.Engine.PublicTenantID = "public"
	}
	if c.Engine.AbilityTTL == "" {
		c.Engine.AbilityTTL = "5m"
	}
	if c.Engine.SweepThreshold == 0 {
		c.Engine.SweepThreshold = 100
	}
	if c.Engine.PolicyFetchLimit == 0 {
		c.Engine.PolicyFetchLimit = 50
	}

	if c.PolicyStore.Driver == "" {
		c.PolicyStore.Driver = "memory"
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 30
	}
	if c.Audit.MaxFileSizeMB == 0 {
		c.Audit.MaxFileSizeMB = 100
	}
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	if c.Server.LogLevel == "" || c.Server.LogLevel == "info" {
		c.Server.LogLevel = "debug"
	}

	// Provide a default dev identity if none configured.
	if len(c.Auth.Identities) == 0 {
		c.Auth.Identities = []IdentityConfig{
			{
				ID:       "dev-user",
				Name:     "Development User",
				TenantID: "dev-tenant",
				Roles:    []string{"tenant_admin"},
			},
		}
	}

	// Default dev API key if none configured. SHA-256 of "dev-api-key".
	if len(c.Auth.APIKeys) == 0 {
		c.Auth.APIKeys = []APIKeyConfig{
			{
				Name:       "dev",
				KeyHash:    "sha256:6e1e4e1b8f8b36d08901cdb51b97841dfe20f5efd2fd2fd00768971408c46274",
				IdentityID: "dev-user",
			},
		}
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
}
