package config

import (
	"fmt"
	"os"
	"strconv"
)

// RetentionConfig controls how long stored check results and their audit
// trails are kept.
type RetentionConfig struct {
	// RetentionDays is how long clear results are kept (in days)
	// Default: 90, Range: 1-3650
	RetentionDays int `yaml:"retention_days"`

	// FlaggedRetentionDays is how long duplicate and fail-safe results are
	// kept (in days). Flagged results back investigations and must outlive
	// clear ones. Must be >= RetentionDays
	// Default: 2555 (seven years), Range: 1-3650
	FlaggedRetentionDays int `yaml:"flagged_retention_days"`

	// CleanupBatchSize is the number of results to delete per transaction
	// Default: 1000, Range: 100-10000
	CleanupBatchSize int `yaml:"cleanup_batch_size"`

	// CleanupVacuum controls whether to run VACUUM after cleanup
	// VACUUM reclaims disk space but locks the database
	// Default: false
	CleanupVacuum bool `yaml:"cleanup_vacuum"`
}

// DefaultRetentionConfig returns the default retention configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetentionDays:        90,
		FlaggedRetentionDays: 2555,
		CleanupBatchSize:     1000,
		CleanupVacuum:        false,
	}
}

// Validate checks if the configuration has valid values
func (c RetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 3650 {
		return fmt.Errorf("retention_days must be between 1 and 3650 (got %d)", c.RetentionDays)
	}
	if c.FlaggedRetentionDays < 1 || c.FlaggedRetentionDays > 3650 {
		return fmt.Errorf("flagged_retention_days must be between 1 and 3650 (got %d)",
			c.FlaggedRetentionDays)
	}
	if c.FlaggedRetentionDays < c.RetentionDays {
		return fmt.Errorf("flagged_retention_days (%d) must be >= retention_days (%d)",
			c.FlaggedRetentionDays, c.RetentionDays)
	}
	if c.CleanupBatchSize < 100 {
		return fmt.Errorf("cleanup_batch_size must be at least 100 (got %d)",
			c.CleanupBatchSize)
	}
	if c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size too large (got %d, max 10000)",
			c.CleanupBatchSize)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c RetentionConfig) String() string {
	return fmt.Sprintf(
		"RetentionConfig{RetentionDays: %d, FlaggedRetentionDays: %d, BatchSize: %d, Vacuum: %t}",
		c.RetentionDays, c.FlaggedRetentionDays, c.CleanupBatchSize, c.CleanupVacuum,
	)
}

// WithEnv returns a copy of c with environment overrides applied.
//
// Environment variables:
//   - DUPCHECK_RETENTION_DAYS: Retention period for clear results in days
//   - DUPCHECK_FLAGGED_RETENTION_DAYS: Retention period for flagged results in days
//   - DUPCHECK_CLEANUP_BATCH_SIZE: Results to delete per transaction
//   - DUPCHECK_CLEANUP_VACUUM: Run VACUUM after cleanup
//
// Returns an error if any environment variable has an invalid value.
func (c RetentionConfig) WithEnv() (RetentionConfig, error) {
	cfg := c

	if err := parseEnvInt("DUPCHECK_RETENTION_DAYS", &cfg.RetentionDays); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DUPCHECK_FLAGGED_RETENTION_DAYS", &cfg.FlaggedRetentionDays); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DUPCHECK_CLEANUP_BATCH_SIZE", &cfg.CleanupBatchSize); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DUPCHECK_CLEANUP_VACUUM", &cfg.CleanupVacuum); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid retention configuration from environment: %w", err)
	}
	return cfg, nil
}

// RetentionConfigFromEnv creates a RetentionConfig from environment
// variables, falling back to defaults
func RetentionConfigFromEnv() (RetentionConfig, error) {
	return DefaultRetentionConfig().WithEnv()
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
