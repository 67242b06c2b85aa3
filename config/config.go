// Package config loads the simulation configuration from JSON or YAML
// files with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gridpulse/evsim/core/chargersim"
	"github.com/gridpulse/evsim/core/grid"
	"github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/rewards"
	"github.com/gridpulse/evsim/core/scheduler"
	"github.com/gridpulse/evsim/core/sim"
	"github.com/gridpulse/evsim/core/usersim"
	"github.com/gridpulse/evsim/infra/mqtt"
)

// Config aggregates every component configuration.
type Config struct {
	Grid        grid.Config       `json:"grid"`
	Users       usersim.Config    `json:"users"`
	Chargers    chargersim.Config `json:"chargers"`
	Scheduler   scheduler.Config  `json:"scheduler"`
	Rewards     rewards.Config    `json:"rewards"`
	Environment sim.Config        `json:"environment"`
	Metrics     metrics.Config    `json:"metrics"`
	MQTT        mqtt.Config       `json:"mqtt"`

	// QTablePath enables MARL state persistence when set.
	QTablePath string `json:"qtable_path"`

	// StrategyLabel is the initial operator strategy label.
	StrategyLabel string `json:"strategy_label"`

	// V2GPeakMW is the discharge request staged during peak hours when the
	// v2g_active label is applied.
	V2GPeakMW float64 `json:"v2g_peak_mw"`
}

// Load reads the file at path and applies EV_* environment overrides
// (EV_GRID__PEAK_PRICE=1.5 sets grid.peak_price).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("EV_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ev_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a runnable configuration without a file.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.finalize(); err != nil {
		// Defaults are internally consistent; a failure here is a bug.
		panic(err)
	}
	return cfg
}

func (c *Config) finalize() error {
	c.Grid.SetDefaults()
	c.Users.SetDefaults()
	c.Chargers.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Rewards.SetDefaults()
	c.Environment.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
	if c.V2GPeakMW == 0 {
		c.V2GPeakMW = 2
	}

	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if err := c.Users.Validate(); err != nil {
		return err
	}
	if err := c.Chargers.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Rewards.Validate(); err != nil {
		return err
	}
	return c.Environment.Validate()
}
