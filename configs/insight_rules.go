package config

import (
	"bytes"
	"fmt"
	"os"

	"sparksales-api/pkg/models"

	"gopkg.in/yaml.v3"
)

// LoadRuleTable reads an insight rule override from a YAML file.
// Keys absent from the file keep their default value; unknown keys fail.
// An empty path returns the defaults.
func LoadRuleTable(path string) (models.RuleTable, error) {
	rules := models.DefaultRuleTable()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("reading insight rules: %w", err)
	}
	return ParseRuleTable(data)
}

// ParseRuleTable decodes YAML over the default rule table and validates it.
func ParseRuleTable(data []byte) (models.RuleTable, error) {
	rules := models.DefaultRuleTable()
	if len(bytes.TrimSpace(data)) == 0 {
		return rules, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil {
		return models.DefaultRuleTable(), fmt.Errorf("decoding insight rules: %w", err)
	}
	if err := ValidateRuleTable(rules); err != nil {
		return models.DefaultRuleTable(), err
	}
	return rules, nil
}

// ValidateRuleTable checks that tiers are ordered and multipliers bracket 1.
func ValidateRuleTable(r models.RuleTable) error {
	switch {
	case r.VolatilityMedium <= 0:
		return fmt.Errorf("volatility_medium must be positive, got %v", r.VolatilityMedium)
	case r.VolatilityHigh <= r.VolatilityMedium:
		return fmt.Errorf("volatility_high (%v) must exceed volatility_medium (%v)", r.VolatilityHigh, r.VolatilityMedium)
	case r.IncreaseMultiplier < 1:
		return fmt.Errorf("increase_multiplier must be at least 1, got %v", r.IncreaseMultiplier)
	case r.ReduceMultiplier <= 0 || r.ReduceMultiplier > 1:
		return fmt.Errorf("reduce_multiplier must be in (0, 1], got %v", r.ReduceMultiplier)
	case r.TrendTolerance < 0:
		return fmt.Errorf("trend_tolerance must not be negative, got %v", r.TrendTolerance)
	case r.TrendWindow < 1 || r.RollingWindow < 1:
		return fmt.Errorf("trend_window and rolling_window must be at least 1")
	}
	return nil
}
