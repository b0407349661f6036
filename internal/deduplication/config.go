package deduplication

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/types"
)

// Config holds configuration for the duplicate detection engine
type Config struct {
	// ConfidenceThreshold is the minimum overall confidence (0.0-1.0) at which a
	// candidate is reported as a duplicate. Must not be below ManualReviewThreshold.
	// Default: 0.70
	ConfidenceThreshold float64

	// DefinitiveThreshold is the overall confidence at which the classifier picks
	// a specific duplicate type and upgrades the risk level one tier.
	// Default: 0.95
	DefinitiveThreshold float64

	// ManualReviewThreshold is the lower edge of the manual-review band. Below it
	// the duplicate type is NONE.
	// Default: 0.50
	ManualReviewThreshold float64

	// LowConfidenceThreshold is the confidence at or above which a typed result
	// is never rated LOW risk.
	// Default: 0.70
	LowConfidenceThreshold float64

	// JaroWinklerThreshold is the minimum invoice-number similarity for a fuzzy match.
	// Default: 0.85
	JaroWinklerThreshold float64

	// SupplierNameThreshold is the minimum supplier-name confidence for a fuzzy match.
	// Default: 0.85
	SupplierNameThreshold float64

	// PhoneticConfidence is the supplier-name confidence awarded when both the
	// Soundex and Metaphone codes agree.
	// Default: 0.90
	PhoneticConfidence float64

	// AmountAbsoluteTolerance is the largest absolute amount difference that
	// still counts as an amount match.
	// Default: 0.50
	AmountAbsoluteTolerance decimal.Decimal

	// AmountPercentTolerance is the largest difference, in percent of the
	// candidate amount, that still counts as an amount match.
	// Default: 2.0
	AmountPercentTolerance float64

	// TemporalWindow is how far either side of the candidate date a same-supplier
	// invoice may fall and still join a temporal cluster.
	// Default: 30 days
	TemporalWindow time.Duration

	// LineItemSimilarityThreshold is the description token similarity a line
	// item pair must exceed to match.
	// Default: 0.80
	LineItemSimilarityThreshold float64

	// LineItemPriceTolerance is the unit-price difference, in percent, under
	// which a line item pair matches when quantities differ.
	// Default: 5.0
	LineItemPriceTolerance float64

	// Component weights of the overall confidence. They must sum to 1.
	// Defaults: fuzzy 0.40, temporal 0.20, supplier 0.20, line item 0.20
	FuzzyWeight    float64
	TemporalWeight float64
	SupplierWeight float64
	LineItemWeight float64

	// MaxContextualAdjustment bounds the contextual adjustment in both directions.
	// Default: 0.30
	MaxContextualAdjustment float64

	// MaxPotentialDuplicates caps the ranked list in each result.
	// Default: 10
	MaxPotentialDuplicates int

	// RequiredFields lists candidate fields (types.Field* names) that must be
	// present on top of the always-required ones. Used for jurisdiction rules
	// such as mandatory tax IDs.
	// Default: none
	RequiredFields []string

	// ParallelAnalyzers runs fuzzy matchers and cluster analyzers concurrently.
	// Default: true
	ParallelAnalyzers bool
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:         0.70,
		DefinitiveThreshold:         0.95,
		ManualReviewThreshold:       0.50,
		LowConfidenceThreshold:      0.70,
		JaroWinklerThreshold:        0.85,
		SupplierNameThreshold:       0.85,
		PhoneticConfidence:          0.90,
		AmountAbsoluteTolerance:     decimal.RequireFromString("0.50"),
		AmountPercentTolerance:      2.0,
		TemporalWindow:              30 * 24 * time.Hour,
		LineItemSimilarityThreshold: 0.80,
		LineItemPriceTolerance:      5.0,
		FuzzyWeight:                 0.40,
		TemporalWeight:              0.20,
		SupplierWeight:              0.20,
		LineItemWeight:              0.20,
		MaxContextualAdjustment:     0.30,
		MaxPotentialDuplicates:      10,
		ParallelAnalyzers:           true,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	unit := []struct {
		name  string
		value float64
	}{
		{"confidence_threshold", c.ConfidenceThreshold},
		{"definitive_threshold", c.DefinitiveThreshold},
		{"manual_review_threshold", c.ManualReviewThreshold},
		{"low_confidence_threshold", c.LowConfidenceThreshold},
		{"jaro_winkler_threshold", c.JaroWinklerThreshold},
		{"supplier_name_threshold", c.SupplierNameThreshold},
		{"phonetic_confidence", c.PhoneticConfidence},
		{"line_item_similarity_threshold", c.LineItemSimilarityThreshold},
		{"fuzzy_weight", c.FuzzyWeight},
		{"temporal_weight", c.TemporalWeight},
		{"supplier_weight", c.SupplierWeight},
		{"line_item_weight", c.LineItemWeight},
		{"max_contextual_adjustment", c.MaxContextualAdjustment},
	}
	for _, u := range unit {
		if math.IsNaN(u.value) || u.value < 0.0 || u.value > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0 (got %.2f)", u.name, u.value)
		}
	}

	if c.ManualReviewThreshold > c.DefinitiveThreshold {
		return fmt.Errorf("manual_review_threshold (%.2f) cannot exceed definitive_threshold (%.2f)",
			c.ManualReviewThreshold, c.DefinitiveThreshold)
	}
	if c.ConfidenceThreshold < c.ManualReviewThreshold {
		return fmt.Errorf("confidence_threshold (%.2f) cannot be below manual_review_threshold (%.2f)",
			c.ConfidenceThreshold, c.ManualReviewThreshold)
	}
	if sum := c.FuzzyWeight + c.TemporalWeight + c.SupplierWeight + c.LineItemWeight; math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("component weights must sum to 1.0 (got %.4f)", sum)
	}

	if c.AmountAbsoluteTolerance.IsNegative() {
		return fmt.Errorf("amount_absolute_tolerance cannot be negative (got %s)", c.AmountAbsoluteTolerance)
	}
	if c.AmountPercentTolerance <= 0 || c.AmountPercentTolerance > 100 {
		return fmt.Errorf("amount_percent_tolerance must be between 0 and 100 (got %.2f)", c.AmountPercentTolerance)
	}
	if c.LineItemPriceTolerance < 0 || c.LineItemPriceTolerance > 100 {
		return fmt.Errorf("line_item_price_tolerance must be between 0 and 100 (got %.2f)", c.LineItemPriceTolerance)
	}
	if c.TemporalWindow <= 0 {
		return fmt.Errorf("temporal_window must be positive (got %v)", c.TemporalWindow)
	}
	if c.TemporalWindow > 366*24*time.Hour {
		return fmt.Errorf("temporal_window too large (got %v, max 366 days)", c.TemporalWindow)
	}
	if c.MaxPotentialDuplicates <= 0 {
		return fmt.Errorf("max_potential_duplicates must be positive (got %d)", c.MaxPotentialDuplicates)
	}
	if c.MaxPotentialDuplicates > 100 {
		return fmt.Errorf("max_potential_duplicates too large (got %d, max 100)", c.MaxPotentialDuplicates)
	}
	for _, f := range c.RequiredFields {
		if !types.IsKnownField(f) {
			return fmt.Errorf("required_fields contains unknown field %q", f)
		}
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Threshold: %.2f, Definitive: %.2f, ManualReview: %.2f, LowConfidence: %.2f, "+
			"JaroWinkler: %.2f, SupplierName: %.2f, Phonetic: %.2f, AmountTol: %s/%.1f%%, "+
			"Window: %v, Weights: %.2f/%.2f/%.2f/%.2f, MaxAdjust: %.2f, MaxResults: %d, "+
			"Required: [%s], Parallel: %t}",
		c.ConfidenceThreshold, c.DefinitiveThreshold, c.ManualReviewThreshold, c.LowConfidenceThreshold,
		c.JaroWinklerThreshold, c.SupplierNameThreshold, c.PhoneticConfidence,
		c.AmountAbsoluteTolerance.StringFixed(2), c.AmountPercentTolerance,
		c.TemporalWindow, c.FuzzyWeight, c.TemporalWeight, c.SupplierWeight, c.LineItemWeight,
		c.MaxContextualAdjustment, c.MaxPotentialDuplicates,
		strings.Join(c.RequiredFields, ","), c.ParallelAnalyzers,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// See WithEnv for the recognised variables.
func ConfigFromEnv() (Config, error) {
	return DefaultConfig().WithEnv()
}

// WithEnv returns a copy of c with environment overrides applied. This lets a
// file-based configuration be layered under the environment.
//
// Environment variables:
//   - DUPCHECK_CONFIDENCE_THRESHOLD: Duplicate threshold (default: 0.70)
//   - DUPCHECK_DEFINITIVE_THRESHOLD: Definitive classification threshold (default: 0.95)
//   - DUPCHECK_MANUAL_REVIEW_THRESHOLD: Lower edge of the manual-review band (default: 0.50)
//   - DUPCHECK_LOW_CONFIDENCE_THRESHOLD: Confidence above which typed results are never LOW risk (default: 0.70)
//   - DUPCHECK_JARO_WINKLER_THRESHOLD: Invoice-number match threshold (default: 0.85)
//   - DUPCHECK_SUPPLIER_NAME_THRESHOLD: Supplier-name match threshold (default: 0.85)
//   - DUPCHECK_PHONETIC_CONFIDENCE: Confidence for agreeing phonetic codes (default: 0.90)
//   - DUPCHECK_AMOUNT_ABS_TOLERANCE: Absolute amount tolerance (default: 0.50)
//   - DUPCHECK_AMOUNT_PCT_TOLERANCE: Percentage amount tolerance (default: 2.0)
//   - DUPCHECK_TEMPORAL_WINDOW_DAYS: Temporal cluster window in days (default: 30)
//   - DUPCHECK_LINE_ITEM_SIMILARITY: Line item description threshold (default: 0.80)
//   - DUPCHECK_LINE_ITEM_PRICE_TOLERANCE: Line item unit price tolerance in percent (default: 5.0)
//   - DUPCHECK_FUZZY_WEIGHT, DUPCHECK_TEMPORAL_WEIGHT, DUPCHECK_SUPPLIER_WEIGHT,
//     DUPCHECK_LINE_ITEM_WEIGHT: Component weights (default: 0.40/0.20/0.20/0.20)
//   - DUPCHECK_MAX_CONTEXTUAL_ADJUSTMENT: Contextual adjustment bound (default: 0.30)
//   - DUPCHECK_MAX_POTENTIAL_DUPLICATES: Ranked list size (default: 10)
//   - DUPCHECK_REQUIRED_FIELDS: Comma-separated extra required fields (default: none)
//   - DUPCHECK_PARALLEL_ANALYZERS: Run analyzers concurrently (default: true)
//
// Returns an error if any environment variable has an invalid value.
func (c Config) WithEnv() (Config, error) {
	cfg := c
	cfg.RequiredFields = append([]string(nil), c.RequiredFields...)

	floats := []struct {
		key  string
		dest *float64
	}{
		{"DUPCHECK_CONFIDENCE_THRESHOLD", &cfg.ConfidenceThreshold},
		{"DUPCHECK_DEFINITIVE_THRESHOLD", &cfg.DefinitiveThreshold},
		{"DUPCHECK_MANUAL_REVIEW_THRESHOLD", &cfg.ManualReviewThreshold},
		{"DUPCHECK_LOW_CONFIDENCE_THRESHOLD", &cfg.LowConfidenceThreshold},
		{"DUPCHECK_JARO_WINKLER_THRESHOLD", &cfg.JaroWinklerThreshold},
		{"DUPCHECK_SUPPLIER_NAME_THRESHOLD", &cfg.SupplierNameThreshold},
		{"DUPCHECK_PHONETIC_CONFIDENCE", &cfg.PhoneticConfidence},
		{"DUPCHECK_AMOUNT_PCT_TOLERANCE", &cfg.AmountPercentTolerance},
		{"DUPCHECK_LINE_ITEM_SIMILARITY", &cfg.LineItemSimilarityThreshold},
		{"DUPCHECK_LINE_ITEM_PRICE_TOLERANCE", &cfg.LineItemPriceTolerance},
		{"DUPCHECK_FUZZY_WEIGHT", &cfg.FuzzyWeight},
		{"DUPCHECK_TEMPORAL_WEIGHT", &cfg.TemporalWeight},
		{"DUPCHECK_SUPPLIER_WEIGHT", &cfg.SupplierWeight},
		{"DUPCHECK_LINE_ITEM_WEIGHT", &cfg.LineItemWeight},
		{"DUPCHECK_MAX_CONTEXTUAL_ADJUSTMENT", &cfg.MaxContextualAdjustment},
	}
	for _, f := range floats {
		if err := parseEnvFloat(f.key, f.dest); err != nil {
			return cfg, err
		}
	}
	if err := parseEnvDecimal("DUPCHECK_AMOUNT_ABS_TOLERANCE", &cfg.AmountAbsoluteTolerance); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("DUPCHECK_TEMPORAL_WINDOW_DAYS", &cfg.TemporalWindow, 24*time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DUPCHECK_MAX_POTENTIAL_DUPLICATES", &cfg.MaxPotentialDuplicates); err != nil {
		return cfg, err
	}
	if err := parseEnvList("DUPCHECK_REQUIRED_FIELDS", &cfg.RequiredFields); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DUPCHECK_PARALLEL_ANALYZERS", &cfg.ParallelAnalyzers); err != nil {
		return cfg, err
	}

	// Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDecimal parses a decimal amount from an environment variable
func parseEnvDecimal(key string, dest *decimal.Decimal) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
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

// parseEnvList parses a comma-separated list from an environment variable.
// Blank entries are dropped.
func parseEnvList(key string, dest *[]string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil // Use default
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dest = out
	return nil
}

// parseEnvDuration parses a duration from an environment variable
// The multiplier is used to convert the numeric value to a duration
// (e.g., for days: multiplier = 24*time.Hour)
func parseEnvDuration(key string, dest *time.Duration, multiplier time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * multiplier
	return nil
}
