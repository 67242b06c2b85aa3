package rewards

import "fmt"

// Config tunes the multi-objective reward computation.
type Config struct {
	// Optimization weights blend the three objective scores.
	UserWeight   float64 `json:"user_satisfaction"`
	ProfitWeight float64 `json:"operator_profit"`
	GridWeight   float64 `json:"grid_friendliness"`

	// WaitPenaltyFactor scales how much queued users depress satisfaction.
	WaitPenaltyFactor float64 `json:"waiting_penalty_factor"`

	// TimeWindowSteps is the history depth for period revenue/energy.
	TimeWindowSteps int `json:"time_window_steps"`

	// TargetHourlyRevenuePerCharger normalizes the revenue score.
	TargetHourlyRevenuePerCharger float64 `json:"target_hourly_revenue_per_charger"`
	// ElectricityCostRate is the operator's wholesale share of retail.
	ElectricityCostRate float64 `json:"electricity_cost_rate"`
	// MaintenancePerChargerHourly and the fixed cost terms model opex.
	MaintenancePerChargerHourly float64 `json:"maintenance_per_charger_hourly"`
	FixedCostBaseHourly         float64 `json:"fixed_cost_base_hourly"`
	FixedCostPerChargerHourly   float64 `json:"fixed_cost_per_charger_hourly"`
	InvestmentPerCharger        float64 `json:"investment_per_charger"`
	ChargerLifespanYears        float64 `json:"charger_lifespan_years"`

	// BaselineEnabled toggles the uncoordinated comparison estimate.
	BaselineEnabled bool `json:"baseline_enabled"`
	// Baseline degradation factors.
	BaselineSatisfactionFactor float64 `json:"baseline_satisfaction_factor"`
	BaselineProfitFactor       float64 `json:"baseline_profit_factor"`
	BaselineGridFactor         float64 `json:"baseline_grid_factor"`
	BaselinePeakPenalty        float64 `json:"baseline_peak_penalty"`
	BaselineValleyBonus        float64 `json:"baseline_valley_bonus"`

	// UncoordinatedIntensityFactor scales the synthetic baseline carbon
	// intensity profile for the savings estimate.
	UncoordinatedIntensityFactor float64 `json:"uncoordinated_intensity_factor"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.UserWeight == 0 && c.ProfitWeight == 0 && c.GridWeight == 0 {
		c.UserWeight, c.ProfitWeight, c.GridWeight = 0.4, 0.3, 0.3
	}
	if c.WaitPenaltyFactor == 0 {
		c.WaitPenaltyFactor = 0.5
	}
	if c.TimeWindowSteps == 0 {
		c.TimeWindowSteps = 4
	}
	if c.TargetHourlyRevenuePerCharger == 0 {
		c.TargetHourlyRevenuePerCharger = 4.1667
	}
	if c.ElectricityCostRate == 0 {
		c.ElectricityCostRate = 0.85
	}
	if c.MaintenancePerChargerHourly == 0 {
		c.MaintenancePerChargerHourly = 0.2083
	}
	if c.FixedCostBaseHourly == 0 {
		c.FixedCostBaseHourly = 4.1667
	}
	if c.FixedCostPerChargerHourly == 0 {
		c.FixedCostPerChargerHourly = 0.0833
	}
	if c.InvestmentPerCharger == 0 {
		c.InvestmentPerCharger = 5000
	}
	if c.ChargerLifespanYears == 0 {
		c.ChargerLifespanYears = 10
	}
	if c.BaselineSatisfactionFactor == 0 {
		c.BaselineSatisfactionFactor = 0.7
	}
	if c.BaselineProfitFactor == 0 {
		c.BaselineProfitFactor = 0.95
	}
	if c.BaselineGridFactor == 0 {
		c.BaselineGridFactor = 0.6
	}
	if c.BaselinePeakPenalty == 0 {
		c.BaselinePeakPenalty = 0.5
	}
	if c.BaselineValleyBonus == 0 {
		c.BaselineValleyBonus = 1.1
	}
	if c.UncoordinatedIntensityFactor == 0 {
		c.UncoordinatedIntensityFactor = 1.2
	}
}

// Validate checks weight coherence.
func (c Config) Validate() error {
	if c.UserWeight < 0 || c.ProfitWeight < 0 || c.GridWeight < 0 {
		return fmt.Errorf("rewards: negative optimization weight")
	}
	if c.UserWeight+c.ProfitWeight+c.GridWeight == 0 {
		return fmt.Errorf("rewards: all optimization weights are zero")
	}
	return nil
}
