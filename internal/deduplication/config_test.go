package deduplication

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			wantErr: false,
			check: func(t *testing.T, cfg Config) {
				defaults := DefaultConfig()
				if cfg.ConfidenceThreshold != defaults.ConfidenceThreshold {
					t.Errorf("ConfidenceThreshold = %v, want %v", cfg.ConfidenceThreshold, defaults.ConfidenceThreshold)
				}
				if cfg.TemporalWindow != defaults.TemporalWindow {
					t.Errorf("TemporalWindow = %v, want %v", cfg.TemporalWindow, defaults.TemporalWindow)
				}
				if cfg.MaxPotentialDuplicates != defaults.MaxPotentialDuplicates {
					t.Errorf("MaxPotentialDuplicates = %v, want %v", cfg.MaxPotentialDuplicates, defaults.MaxPotentialDuplicates)
				}
				if !cfg.AmountAbsoluteTolerance.Equal(defaults.AmountAbsoluteTolerance) {
					t.Errorf("AmountAbsoluteTolerance = %v, want %v", cfg.AmountAbsoluteTolerance, defaults.AmountAbsoluteTolerance)
				}
			},
		},
		{
			name: "valid custom configuration",
			envVars: map[string]string{
				"DUPCHECK_CONFIDENCE_THRESHOLD":     "0.80",
				"DUPCHECK_TEMPORAL_WINDOW_DAYS":     "14",
				"DUPCHECK_MAX_POTENTIAL_DUPLICATES": "5",
				"DUPCHECK_AMOUNT_ABS_TOLERANCE":     "1.25",
				"DUPCHECK_AMOUNT_PCT_TOLERANCE":     "3.5",
				"DUPCHECK_FUZZY_WEIGHT":             "0.55",
				"DUPCHECK_TEMPORAL_WEIGHT":          "0.15",
				"DUPCHECK_SUPPLIER_WEIGHT":          "0.15",
				"DUPCHECK_LINE_ITEM_WEIGHT":         "0.15",
				"DUPCHECK_REQUIRED_FIELDS":          "supplier_tax_id, po_number",
				"DUPCHECK_PARALLEL_ANALYZERS":       "false",
			},
			wantErr: false,
			check: func(t *testing.T, cfg Config) {
				if cfg.ConfidenceThreshold != 0.80 {
					t.Errorf("ConfidenceThreshold = %v, want 0.80", cfg.ConfidenceThreshold)
				}
				if cfg.TemporalWindow != 14*24*time.Hour {
					t.Errorf("TemporalWindow = %v, want %v", cfg.TemporalWindow, 14*24*time.Hour)
				}
				if cfg.MaxPotentialDuplicates != 5 {
					t.Errorf("MaxPotentialDuplicates = %v, want 5", cfg.MaxPotentialDuplicates)
				}
				if !cfg.AmountAbsoluteTolerance.Equal(decimal.RequireFromString("1.25")) {
					t.Errorf("AmountAbsoluteTolerance = %v, want 1.25", cfg.AmountAbsoluteTolerance)
				}
				if cfg.AmountPercentTolerance != 3.5 {
					t.Errorf("AmountPercentTolerance = %v, want 3.5", cfg.AmountPercentTolerance)
				}
				if cfg.FuzzyWeight != 0.55 {
					t.Errorf("FuzzyWeight = %v, want 0.55", cfg.FuzzyWeight)
				}
				if len(cfg.RequiredFields) != 2 || cfg.RequiredFields[0] != "supplier_tax_id" || cfg.RequiredFields[1] != "po_number" {
					t.Errorf("RequiredFields = %v, want [supplier_tax_id po_number]", cfg.RequiredFields)
				}
				if cfg.ParallelAnalyzers != false {
					t.Errorf("ParallelAnalyzers = %v, want false", cfg.ParallelAnalyzers)
				}
			},
		},
		{
			name: "invalid float value",
			envVars: map[string]string{
				"DUPCHECK_CONFIDENCE_THRESHOLD": "not-a-number",
			},
			wantErr: true,
		},
		{
			name: "invalid decimal value",
			envVars: map[string]string{
				"DUPCHECK_AMOUNT_ABS_TOLERANCE": "fifty cents",
			},
			wantErr: true,
		},
		{
			name: "invalid int value",
			envVars: map[string]string{
				"DUPCHECK_MAX_POTENTIAL_DUPLICATES": "not-a-number",
			},
			wantErr: true,
		},
		{
			name: "invalid bool value",
			envVars: map[string]string{
				"DUPCHECK_PARALLEL_ANALYZERS": "maybe",
			},
			wantErr: true,
		},
		{
			name: "value out of range - confidence too high",
			envVars: map[string]string{
				"DUPCHECK_CONFIDENCE_THRESHOLD": "1.5",
			},
			wantErr: true,
		},
		{
			name: "value out of range - window too large",
			envVars: map[string]string{
				"DUPCHECK_TEMPORAL_WINDOW_DAYS": "400",
			},
			wantErr: true,
		},
		{
			name: "weights that do not sum to one",
			envVars: map[string]string{
				"DUPCHECK_FUZZY_WEIGHT": "0.90",
			},
			wantErr: true,
		},
		{
			name: "unknown required field",
			envVars: map[string]string{
				"DUPCHECK_REQUIRED_FIELDS": "vat_number",
			},
			wantErr: true,
		},
		{
			name: "empty required fields clears the list",
			envVars: map[string]string{
				"DUPCHECK_REQUIRED_FIELDS": "",
			},
			wantErr: false,
			check: func(t *testing.T, cfg Config) {
				if len(cfg.RequiredFields) != 0 {
					t.Errorf("RequiredFields = %v, want empty", cfg.RequiredFields)
				}
			},
		},
		{
			name: "partial configuration",
			envVars: map[string]string{
				"DUPCHECK_CONFIDENCE_THRESHOLD":     "0.75",
				"DUPCHECK_MAX_POTENTIAL_DUPLICATES": "20",
			},
			wantErr: false,
			check: func(t *testing.T, cfg Config) {
				// Custom values
				if cfg.ConfidenceThreshold != 0.75 {
					t.Errorf("ConfidenceThreshold = %v, want 0.75", cfg.ConfidenceThreshold)
				}
				if cfg.MaxPotentialDuplicates != 20 {
					t.Errorf("MaxPotentialDuplicates = %v, want 20", cfg.MaxPotentialDuplicates)
				}
				// Default values
				defaults := DefaultConfig()
				if cfg.TemporalWindow != defaults.TemporalWindow {
					t.Errorf("TemporalWindow = %v, want %v (default)", cfg.TemporalWindow, defaults.TemporalWindow)
				}
				if cfg.DefinitiveThreshold != defaults.DefinitiveThreshold {
					t.Errorf("DefinitiveThreshold = %v, want %v (default)", cfg.DefinitiveThreshold, defaults.DefinitiveThreshold)
				}
			},
		},
	}

	allKeys := []string{
		"DUPCHECK_CONFIDENCE_THRESHOLD",
		"DUPCHECK_DEFINITIVE_THRESHOLD",
		"DUPCHECK_MANUAL_REVIEW_THRESHOLD",
		"DUPCHECK_LOW_CONFIDENCE_THRESHOLD",
		"DUPCHECK_JARO_WINKLER_THRESHOLD",
		"DUPCHECK_SUPPLIER_NAME_THRESHOLD",
		"DUPCHECK_PHONETIC_CONFIDENCE",
		"DUPCHECK_AMOUNT_ABS_TOLERANCE",
		"DUPCHECK_AMOUNT_PCT_TOLERANCE",
		"DUPCHECK_TEMPORAL_WINDOW_DAYS",
		"DUPCHECK_LINE_ITEM_SIMILARITY",
		"DUPCHECK_LINE_ITEM_PRICE_TOLERANCE",
		"DUPCHECK_FUZZY_WEIGHT",
		"DUPCHECK_TEMPORAL_WEIGHT",
		"DUPCHECK_SUPPLIER_WEIGHT",
		"DUPCHECK_LINE_ITEM_WEIGHT",
		"DUPCHECK_MAX_CONTEXTUAL_ADJUSTMENT",
		"DUPCHECK_MAX_POTENTIAL_DUPLICATES",
		"DUPCHECK_REQUIRED_FIELDS",
		"DUPCHECK_PARALLEL_ANALYZERS",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv restores the previous value when the test ends
			for _, key := range allKeys {
				t.Setenv(key, "")
				_ = os.Unsetenv(key)
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := ConfigFromEnv()

			if (err != nil) != tt.wantErr {
				t.Errorf("ConfigFromEnv() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{
			name:    "threshold below manual review",
			mutate:  func(c *Config) { c.ConfidenceThreshold = 0.40 },
			wantErr: "cannot be below manual_review_threshold",
		},
		{
			name:    "manual review above definitive",
			mutate:  func(c *Config) { c.ManualReviewThreshold = 0.96; c.ConfidenceThreshold = 0.97 },
			wantErr: "cannot exceed definitive_threshold",
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.FuzzyWeight = -0.1 },
			wantErr: "fuzzy_weight must be between 0.0 and 1.0",
		},
		{
			name:    "negative absolute tolerance",
			mutate:  func(c *Config) { c.AmountAbsoluteTolerance = decimal.NewFromInt(-1) },
			wantErr: "amount_absolute_tolerance cannot be negative",
		},
		{
			name:    "zero percent tolerance",
			mutate:  func(c *Config) { c.AmountPercentTolerance = 0 },
			wantErr: "amount_percent_tolerance",
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.TemporalWindow = 0 },
			wantErr: "temporal_window must be positive",
		},
		{
			name:    "too many potential duplicates",
			mutate:  func(c *Config) { c.MaxPotentialDuplicates = 101 },
			wantErr: "max_potential_duplicates too large",
		},
		{
			name:    "known required field",
			mutate:  func(c *Config) { c.RequiredFields = []string{"supplier_tax_id"} },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	for _, want := range []string{"Threshold: 0.70", "AmountTol: 0.50/2.0%", "Window: 720h0m0s", "Parallel: true"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %s, missing %q", s, want)
		}
	}
}
