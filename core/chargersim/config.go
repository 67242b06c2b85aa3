package chargersim

import "fmt"

// Config drives charging sessions and failure injection.
type Config struct {
	// DefaultEfficiency applies when a user carries no efficiency figure.
	DefaultEfficiency float64 `json:"default_efficiency"`
	// ManualEfficiencyBoost multiplies efficiency when a manual user's
	// fast-charge preference matches the charger type.
	ManualEfficiencyBoost float64 `json:"manual_efficiency_boost"`
	MaxEfficiency         float64 `json:"max_efficiency"`
	// ManualPriceDiscount multiplies the effective price for manual users.
	ManualPriceDiscount float64 `json:"manual_price_discount"`

	// TargetSoCDefault caps the auto-assigned session target.
	TargetSoCDefault float64 `json:"target_soc_default"`
	// TargetSoCStep is added to the current SoC to derive the target.
	TargetSoCStep float64 `json:"target_soc_step"`

	// FailureRate is the per-tick probability an available charger fails.
	FailureRate float64 `json:"failure_rate"`
	// RepairTicks is how many ticks a failed charger stays down.
	RepairTicks int `json:"repair_ticks"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DefaultEfficiency == 0 {
		c.DefaultEfficiency = 0.92
	}
	if c.ManualEfficiencyBoost == 0 {
		c.ManualEfficiencyBoost = 1.03
	}
	if c.MaxEfficiency == 0 {
		c.MaxEfficiency = 0.95
	}
	if c.ManualPriceDiscount == 0 {
		c.ManualPriceDiscount = 0.98
	}
	if c.TargetSoCDefault == 0 {
		c.TargetSoCDefault = 95
	}
	if c.TargetSoCStep == 0 {
		c.TargetSoCStep = 60
	}
	if c.RepairTicks == 0 {
		c.RepairTicks = 8
	}
}

// Validate checks probability ranges.
func (c Config) Validate() error {
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("chargersim: failure_rate %f out of range", c.FailureRate)
	}
	if c.DefaultEfficiency <= 0 || c.DefaultEfficiency > 1 {
		return fmt.Errorf("chargersim: default_efficiency %f out of range", c.DefaultEfficiency)
	}
	return nil
}
