package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers rulectl-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("state_dir", validateStateDir); err != nil {
		return fmt.Errorf("failed to register state_dir validator: %w", err)
	}
	return nil
}

// validateStateDir validates the state directory field: it must be
// either absolute or home-relative ("~/...", "~"). An empty value is
// accepted here — SetDefaults fills it in before Validate normally
// runs.
func validateStateDir(fl validator.FieldLevel) bool {
	dir := fl.Field().String()
	if dir == "" {
		return true
	}
	if strings.HasPrefix(dir, "~/") || dir == "~" {
		return true
	}
	return filepath.IsAbs(dir)
}

// Validate validates the Config using struct tags and custom
// cross-field rules. Call after SetDefaults so required fields have
// their documented defaults in place.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := validateStateDirField(c.StateDir); err != nil {
		return err
	}

	if err := c.validateRetryBackoff(); err != nil {
		return err
	}

	return nil
}

func validateStateDirField(dir string) error {
	if dir == "" || strings.HasPrefix(dir, "~/") || dir == "~" || filepath.IsAbs(dir) {
		return nil
	}
	return fmt.Errorf("state_dir: must be absolute or start with \"~/\", got %q", dir)
}

// validateRetryBackoff ensures Retry.Backoff parses as a Go duration,
// since viper/mapstructure accepts it only as a bare string.
func (c *Config) validateRetryBackoff() error {
	if c.Retry.Backoff == "" {
		return nil
	}
	if _, err := time.ParseDuration(c.Retry.Backoff); err != nil {
		return fmt.Errorf("retry.backoff: invalid duration %q: %w", c.Retry.Backoff, err)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			msg := formatSingleValidationError(e)
			messages = append(messages, msg)
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "state_dir":
		return fmt.Sprintf("%s must be absolute or start with \"~/\"", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
