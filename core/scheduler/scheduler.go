// Package scheduler selects the active scheduling strategy, runs it each
// tick and overlays reservation and manual decisions on its output.
package scheduler

import (
	"math/rand"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/core/strategy"
)

// Operator strategy labels accepted by ApplyLabel.
const (
	LabelUncoordinated = "uncoordinated"
	LabelSmartV1G      = "smart_charging_v1g"
	LabelV2GActive     = "v2g_active"
)

// Scheduler wraps the configured strategy and guarantees a usable result
// every tick: internal failures degrade to the rule-based fallback, then
// to an empty decision map with error-tagged metadata.
type Scheduler struct {
	cfg Config
	log logger.Logger

	active   strategy.Strategy
	fallback strategy.Strategy
	marl     *strategy.MARL

	mode strategy.Mode
}

// New builds the scheduler and its strategy from configuration.
func New(cfg Config, log logger.Logger, rng *rand.Rand) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{cfg: cfg, log: log, mode: strategy.ModeV1G}
	s.fallback = strategy.NewRuleBased(cfg.RuleBased, log)
	switch cfg.Algorithm {
	case AlgoUncoordinated:
		s.active = strategy.NewUncoordinated(cfg.Uncoordinated, log, rng)
	case AlgoRuleBased:
		s.active = s.fallback
	case AlgoCoordinatedMAS:
		s.active = strategy.NewCoordinatedMAS(cfg.MAS, log)
	case AlgoMARL:
		s.marl = strategy.NewMARL(cfg.MARL, log, rng)
		s.active = s.marl
	}
	log.Infof("scheduler using %s", s.active.Name())
	return s, nil
}

// ApplyLabel switches the effective behaviour from a high-level operator
// label without rebuilding the scheduler.
func (s *Scheduler) ApplyLabel(label string) {
	switch label {
	case LabelUncoordinated:
		s.mode = strategy.ModeV1G
	case LabelV2GActive:
		s.mode = strategy.ModeV2G
	case LabelSmartV1G, "":
		s.mode = strategy.ModeV1G
	default:
		s.log.Warnf("unknown strategy label %q ignored", label)
	}
}

// Mode returns the operational mode derived from the last label.
func (s *Scheduler) Mode() strategy.Mode { return s.mode }

// Decide runs the active strategy and overlays validated manual decisions.
// It never fails: strategy errors produce an empty map with error-tagged
// metadata.
func (s *Scheduler) Decide(snap *model.Snapshot, manual model.Decisions, prefs strategy.Preferences) (model.Decisions, strategy.Metadata) {
	if prefs.Mode == "" {
		prefs.Mode = s.mode
	}
	if snap == nil {
		return model.Decisions{}, strategy.Metadata{Algorithm: s.active.Name(), Error: "nil snapshot"}
	}

	decisions, meta := s.run(snap, prefs)

	// Locked users stay pinned to their charger: the strategy's output for
	// them is discarded.
	for i := range snap.Users {
		u := &snap.Users[i]
		if u.ManualLocked {
			delete(decisions, u.ID)
		}
	}

	for userID, chargerID := range manual {
		if snap.UserByID(userID) == nil {
			s.log.Warnf("manual decision rejected: unknown user %s", userID)
			continue
		}
		c := snap.ChargerByID(chargerID)
		if c == nil {
			s.log.Warnf("manual decision rejected: unknown charger %s", chargerID)
			continue
		}
		if c.Status == model.ChargerFailure {
			s.log.Warnf("manual decision rejected: charger %s is failed", chargerID)
			continue
		}
		decisions[userID] = chargerID
	}
	meta.Assignments = len(decisions)
	return decisions, meta
}

func (s *Scheduler) run(snap *model.Snapshot, prefs strategy.Preferences) (model.Decisions, strategy.Metadata) {
	decisions, meta, err := s.active.Decide(snap, prefs)
	if err == nil {
		return decisions, meta
	}
	s.log.Errorf("strategy %s failed: %v, falling back to %s", s.active.Name(), err, s.fallback.Name())
	if s.active != s.fallback {
		if fbDecisions, fbMeta, fbErr := s.fallback.Decide(snap, prefs); fbErr == nil {
			fbMeta.Error = err.Error()
			return fbDecisions, fbMeta
		}
	}
	return model.Decisions{}, strategy.Metadata{Algorithm: s.active.Name(), Error: err.Error()}
}

// Learn forwards the transition to the MARL agents when active.
func (s *Scheduler) Learn(next *model.Snapshot) {
	if s.marl != nil {
		s.marl.Learn(next)
	}
}

// SaveTables persists MARL state if the strategy is active.
func (s *Scheduler) SaveTables(store strategy.QTableStore) error {
	if s.marl == nil {
		return nil
	}
	return s.marl.SaveTables(store)
}

// LoadTables restores MARL state if the strategy is active.
func (s *Scheduler) LoadTables(store strategy.QTableStore) error {
	if s.marl == nil {
		return nil
	}
	return s.marl.LoadTables(store)
}

// Algorithm returns the active strategy name.
func (s *Scheduler) Algorithm() string { return s.active.Name() }
