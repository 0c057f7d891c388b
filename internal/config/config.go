// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config represents the agent configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Assignment sources. At most one of these is used for a run.
	Assignments string `json:"assignments,omitempty" validate:"omitempty,file"` // Path to assignments CSV file
	DatabaseURL string `json:"database_url,omitempty"`                          // PostgreSQL connection URL

	// Scheduling
	LeadDays int    `json:"lead_days,omitempty" validate:"omitempty,gte=1,lte=365"` // Days ahead the site releases slots
	Weekday  string `json:"weekday,omitempty"`                                      // Restrict the run to one weekday

	// Behavior
	Headless       bool   `json:"headless,omitempty"`        // Run browsers without a display
	DryRun         bool   `json:"dry_run,omitempty"`         // Use stub browsers; book nothing
	Verbose        bool   `json:"verbose,omitempty"`         // Print detailed debug information
	ScreenshotDir  string `json:"screenshot_dir,omitempty"`  // Where step screenshots are written
	CredentialsKey string `json:"credentials_key,omitempty"` // Base64 key for encrypted credentials_ref values
}

var validate = validator.New()

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: required fields are handled by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Assignments != "" && c.DatabaseURL != "" {
		return fmt.Errorf("config error: 'assignments' and 'database_url' are mutually exclusive")
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config error: field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Assignments == "" {
		result.Assignments = defaults.Assignments
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Weekday == "" {
		result.Weekday = defaults.Weekday
	}
	if result.ScreenshotDir == "" {
		result.ScreenshotDir = defaults.ScreenshotDir
	}
	if result.CredentialsKey == "" {
		result.CredentialsKey = defaults.CredentialsKey
	}

	// Int fields: use default if zero
	if result.LeadDays == 0 {
		result.LeadDays = defaults.LeadDays
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
