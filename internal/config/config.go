// Package config loads the dupcheck configuration file and layers it between
// the built-in defaults and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/dupcheck/internal/deduplication"
	"github.com/steveyegge/dupcheck/internal/normalize"
	"github.com/steveyegge/dupcheck/internal/prefilter"
	"github.com/steveyegge/dupcheck/internal/types"
)

// DefaultDatabasePath is used when neither the file nor the environment names one.
const DefaultDatabasePath = ".dupcheck/dupcheck.db"

// File is the YAML document. Every field is optional; absent fields keep
// their defaults. Retention is decoded over the current values, so a partial
// retention block only changes the keys it names.
type File struct {
	Database    string                     `yaml:"database"`
	Engine      EngineSection              `yaml:"engine"`
	Suppliers   SupplierSection            `yaml:"suppliers"`
	CustomRules []deduplication.CustomRule `yaml:"custom_rules"`
	Prefilter   PrefilterSection           `yaml:"prefilter"`
	Retention   RetentionConfig            `yaml:"retention"`
}

// EngineSection overrides deduplication.Config fields.
type EngineSection struct {
	ConfidenceThreshold     *float64 `yaml:"confidence_threshold"`
	DefinitiveThreshold     *float64 `yaml:"definitive_threshold"`
	ManualReviewThreshold   *float64 `yaml:"manual_review_threshold"`
	LowConfidenceThreshold  *float64 `yaml:"low_confidence_threshold"`
	JaroWinklerThreshold    *float64 `yaml:"jaro_winkler_threshold"`
	SupplierNameThreshold   *float64 `yaml:"supplier_name_threshold"`
	PhoneticConfidence      *float64 `yaml:"phonetic_confidence"`
	AmountAbsoluteTolerance *string  `yaml:"amount_absolute_tolerance"`
	AmountPercentTolerance  *float64 `yaml:"amount_percent_tolerance"`
	TemporalWindowDays      *int     `yaml:"temporal_window_days"`
	LineItemSimilarity      *float64 `yaml:"line_item_similarity"`
	LineItemPriceTolerance  *float64 `yaml:"line_item_price_tolerance"`
	FuzzyWeight             *float64 `yaml:"fuzzy_weight"`
	TemporalWeight          *float64 `yaml:"temporal_weight"`
	SupplierWeight          *float64 `yaml:"supplier_weight"`
	LineItemWeight          *float64 `yaml:"line_item_weight"`
	MaxContextualAdjustment *float64 `yaml:"max_contextual_adjustment"`
	MaxPotentialDuplicates  *int     `yaml:"max_potential_duplicates"`
	// RequiredFields replaces the default list when present, even if empty
	RequiredFields    *[]string `yaml:"required_fields"`
	ParallelAnalyzers *bool     `yaml:"parallel_analyzers"`
}

// SupplierSection carries per-supplier context.
type SupplierSection struct {
	// Trusted lists suppliers with a clean history
	Trusted []string `yaml:"trusted"`
	// Categories maps supplier name to category (e.g. HIGH_RISK)
	Categories map[string]string `yaml:"categories"`
	// UserRiskProfile applies to every check run with this file
	UserRiskProfile string `yaml:"user_risk_profile"`
}

// PrefilterSection configures the optional candidate pre-filter.
type PrefilterSection struct {
	Enabled            *bool    `yaml:"enabled"`
	FalsePositiveRate  *float64 `yaml:"false_positive_rate"`
	MaxSimHashDistance *int     `yaml:"max_simhash_distance"`
}

// Config is the resolved configuration.
type Config struct {
	Database  string
	Engine    deduplication.Config
	Retention RetentionConfig

	PrefilterEnabled bool
	Prefilter        prefilter.Options

	// TrustedSuppliers and SupplierCategories are keyed by normalized supplier name
	TrustedSuppliers   map[string]bool
	SupplierCategories map[string]string
	UserRiskProfile    string
	CustomRules        []deduplication.CustomRule
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:           DefaultDatabasePath,
		Engine:             deduplication.DefaultConfig(),
		Retention:          DefaultRetentionConfig(),
		Prefilter:          prefilter.DefaultOptions(),
		TrustedSuppliers:   make(map[string]bool),
		SupplierCategories: make(map[string]string),
	}
}

// Load resolves defaults, then the file at path (skipped when path is
// empty), then the environment. A named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.ApplyYAML(data); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyYAML layers a YAML document over c. Unknown keys are rejected.
func (c *Config) ApplyYAML(data []byte) error {
	f := File{Retention: c.Retention}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := c.applyFile(&f); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) applyFile(f *File) error {
	if f.Database != "" {
		c.Database = f.Database
	}
	if err := f.Engine.apply(&c.Engine); err != nil {
		return err
	}
	c.Retention = f.Retention

	if f.Prefilter.Enabled != nil {
		c.PrefilterEnabled = *f.Prefilter.Enabled
	}
	if f.Prefilter.FalsePositiveRate != nil {
		c.Prefilter.FalsePositiveRate = *f.Prefilter.FalsePositiveRate
	}
	if f.Prefilter.MaxSimHashDistance != nil {
		c.Prefilter.MaxSimHashDistance = *f.Prefilter.MaxSimHashDistance
	}

	for _, name := range f.Suppliers.Trusted {
		c.TrustedSuppliers[normalize.SupplierName(name)] = true
	}
	for name, category := range f.Suppliers.Categories {
		c.SupplierCategories[normalize.SupplierName(name)] = strings.ToUpper(strings.TrimSpace(category))
	}
	if f.Suppliers.UserRiskProfile != "" {
		c.UserRiskProfile = strings.ToUpper(strings.TrimSpace(f.Suppliers.UserRiskProfile))
	}
	c.CustomRules = append(c.CustomRules, f.CustomRules...)
	return nil
}

func (s EngineSection) apply(cfg *deduplication.Config) error {
	floats := []struct {
		src  *float64
		dest *float64
	}{
		{s.ConfidenceThreshold, &cfg.ConfidenceThreshold},
		{s.DefinitiveThreshold, &cfg.DefinitiveThreshold},
		{s.ManualReviewThreshold, &cfg.ManualReviewThreshold},
		{s.LowConfidenceThreshold, &cfg.LowConfidenceThreshold},
		{s.JaroWinklerThreshold, &cfg.JaroWinklerThreshold},
		{s.SupplierNameThreshold, &cfg.SupplierNameThreshold},
		{s.PhoneticConfidence, &cfg.PhoneticConfidence},
		{s.AmountPercentTolerance, &cfg.AmountPercentTolerance},
		{s.LineItemSimilarity, &cfg.LineItemSimilarityThreshold},
		{s.LineItemPriceTolerance, &cfg.LineItemPriceTolerance},
		{s.FuzzyWeight, &cfg.FuzzyWeight},
		{s.TemporalWeight, &cfg.TemporalWeight},
		{s.SupplierWeight, &cfg.SupplierWeight},
		{s.LineItemWeight, &cfg.LineItemWeight},
		{s.MaxContextualAdjustment, &cfg.MaxContextualAdjustment},
	}
	for _, f := range floats {
		if f.src != nil {
			*f.dest = *f.src
		}
	}

	if s.AmountAbsoluteTolerance != nil {
		tol, err := decimal.NewFromString(*s.AmountAbsoluteTolerance)
		if err != nil {
			return fmt.Errorf("engine.amount_absolute_tolerance: %w", err)
		}
		cfg.AmountAbsoluteTolerance = tol
	}
	if s.TemporalWindowDays != nil {
		cfg.TemporalWindow = time.Duration(*s.TemporalWindowDays) * 24 * time.Hour
	}
	if s.MaxPotentialDuplicates != nil {
		cfg.MaxPotentialDuplicates = *s.MaxPotentialDuplicates
	}
	if s.RequiredFields != nil {
		cfg.RequiredFields = append([]string{}, (*s.RequiredFields)...)
	}
	if s.ParallelAnalyzers != nil {
		cfg.ParallelAnalyzers = *s.ParallelAnalyzers
	}
	return nil
}

// ApplyEnv layers environment overrides over c: DUPCHECK_DB plus the
// engine and retention variables.
func (c *Config) ApplyEnv() error {
	if db := os.Getenv("DUPCHECK_DB"); db != "" {
		c.Database = db
	}
	engine, err := c.Engine.WithEnv()
	if err != nil {
		return err
	}
	c.Engine = engine
	retention, err := c.Retention.WithEnv()
	if err != nil {
		return err
	}
	c.Retention = retention
	return c.Validate()
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Retention.Validate(); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	if c.Prefilter.FalsePositiveRate <= 0 || c.Prefilter.FalsePositiveRate >= 1 {
		return fmt.Errorf("prefilter.false_positive_rate must be between 0 and 1 exclusive (got %.4f)",
			c.Prefilter.FalsePositiveRate)
	}
	if c.Prefilter.MaxSimHashDistance < 0 || c.Prefilter.MaxSimHashDistance > 64 {
		return fmt.Errorf("prefilter.max_simhash_distance must be between 0 and 64 (got %d)",
			c.Prefilter.MaxSimHashDistance)
	}
	for name, category := range c.SupplierCategories {
		if category == "" {
			return fmt.Errorf("supplier category for %q cannot be empty", name)
		}
	}
	for i, rule := range c.CustomRules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("custom_rules[%d]: %w", i, err)
		}
	}
	return nil
}

// ContextFor builds the per-call check context for candidate from the
// configured supplier data and rules. history is passed through unchanged.
func (c *Config) ContextFor(candidate *types.InvoiceCandidate, history []types.HistoricalInvoice) *deduplication.CheckContext {
	cctx := &deduplication.CheckContext{
		HistoricalInvoices: history,
		UserRiskProfile:    c.UserRiskProfile,
		CustomRules:        append([]deduplication.CustomRule(nil), c.CustomRules...),
	}
	if candidate != nil {
		key := normalize.SupplierName(candidate.SupplierName)
		cctx.TrustedSupplier = c.TrustedSuppliers[key]
		cctx.SupplierCategory = c.SupplierCategories[key]
	}
	return cctx
}
