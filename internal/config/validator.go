package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers service-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	if err := v.RegisterValidation("key_hash", validateKeyHash); err != nil {
		return fmt.Errorf("failed to register key_hash validator: %w", err)
	}
	return nil
}

// validateAuditOutput accepts "stdout" or "file://<absolute-directory>".
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "stdout" {
		return true
	}
	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}
	return false
}

// validateKeyHash accepts "sha256:<hex>" or a full argon2id hash string.
func validateKeyHash(fl validator.FieldLevel) bool {
	hash := fl.Field().String()

	if h, ok := strings.CutPrefix(hash, "sha256:"); ok {
		return len(h) == 64
	}
	return strings.HasPrefix(hash, "$argon2id$")
}

// Validate validates the Config using struct tags and cross-field rules,
// returning actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validatePolicyStore(); err != nil {
		return err
	}
	return c.validateIdentityReferences()
}

// validatePolicyStore ensures the sqlite driver has a database path.
func (c *Config) validatePolicyStore() error {
	if c.PolicyStore.Driver == "sqlite" && c.PolicyStore.Path == "" {
		return errors.New("policy_store: path is required when driver is sqlite")
	}
	return nil
}

// validateIdentityReferences ensures every API key references a configured
// identity.
func (c *Config) validateIdentityReferences() error {
	known := make(map[string]struct{}, len(c.Auth.Identities))
	for _, identity := range c.Auth.Identities {
		known[identity.ID] = struct{}{}
	}

	for i, apiKey := range c.Auth.APIKeys {
		if _, exists := known[apiKey.IdentityID]; !exists {
			return fmt.Errorf("api_keys[%d]: references unknown identity_id: %s", i, apiKey.IdentityID)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout' or 'file://<absolute-directory>'", field)
	case "key_hash":
		return fmt.Sprintf("%s must be 'sha256:<64-char-hex>' or an argon2id hash", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
