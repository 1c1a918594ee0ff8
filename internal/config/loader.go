package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for storyglot-authz.yaml/.yml
// in standard locations. The search requires an explicit YAML extension so
// the binary itself (same base name, no extension) never matches.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file in any standard location. Set name/type without
		// search paths so ReadInConfig returns ConfigFileNotFoundError
		// (handled gracefully by callers).
		viper.SetConfigName("storyglot-authz")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: STORYGLOT_AUTHZ_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("STORYGLOT_AUTHZ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a storyglot-authz config
// file with an explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".storyglot-authz"),
		"/etc/storyglot-authz",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "storyglot-authz"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable
// support. Example: STORYGLOT_AUTHZ_SERVER_HTTP_ADDR overrides
// server.http_addr.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("engine.public_tenant_id")
	_ = viper.BindEnv("engine.ability_ttl")
	_ = viper.BindEnv("engine.sweep_threshold")
	_ = viper.BindEnv("engine.policy_fetch_limit")
	_ = viper.BindEnv("engine.roles_file")

	_ = viper.BindEnv("policy_store.driver")
	_ = viper.BindEnv("policy_store.path")

	_ = viper.BindEnv("audit.output")
	_ = viper.BindEnv("audit.channel_size")
	_ = viper.BindEnv("audit.batch_size")
	_ = viper.BindEnv("audit.flush_interval")
	_ = viper.BindEnv("audit.retention_days")
	_ = viper.BindEnv("audit.max_file_size_mb")

	// auth.identities and auth.api_keys are arrays; use the config file.

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates. Caller should apply CLI flag overrides
// (e.g. --dev) via LoadConfigRaw when flags may change DevMode.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT apply dev defaults or validate.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded config file, or empty when
// running from environment variables only.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
