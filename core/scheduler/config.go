package scheduler

import (
	"fmt"

	"github.com/gridpulse/evsim/core/strategy"
)

// Algorithm names accepted by the scheduler.
const (
	AlgoUncoordinated  = "uncoordinated"
	AlgoRuleBased      = "rule_based"
	AlgoCoordinatedMAS = "coordinated_mas"
	AlgoMARL           = "marl"
)

// Config selects and tunes the active scheduling strategy.
type Config struct {
	Algorithm string `json:"scheduling_algorithm"`

	Uncoordinated strategy.UncoordinatedConfig `json:"uncoordinated"`
	RuleBased     strategy.RuleBasedConfig     `json:"rule_based"`
	MAS           strategy.MASConfig           `json:"coordinated_mas"`
	MARL          strategy.MARLConfig          `json:"marl"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgoRuleBased
	}
	c.Uncoordinated.SetDefaults()
	c.RuleBased.SetDefaults()
	c.MAS.SetDefaults()
	c.MARL.SetDefaults()
}

// Validate checks the algorithm name.
func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgoUncoordinated, AlgoRuleBased, AlgoCoordinatedMAS, AlgoMARL:
		return nil
	default:
		return fmt.Errorf("scheduler: unknown algorithm %q", c.Algorithm)
	}
}
