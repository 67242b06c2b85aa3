// Package strategy contains the interchangeable decision producers that
// map seeking users to chargers each tick: an uncoordinated baseline, a
// rule-based heuristic, a coordinated multi-agent system and a tabular
// multi-agent reinforcement learner.
package strategy

import (
	"errors"

	"github.com/gridpulse/evsim/core/model"
)

// Sentinel errors strategies report through metadata.
var (
	// ErrNoCandidates is returned when no user currently seeks a charge.
	ErrNoCandidates = errors.New("strategy: no candidate users")
)

// Priority is the externally supplied charging priority profile.
type Priority string

const (
	PriorityBalanced   Priority = "balanced"
	PriorityRenewables Priority = "renewables"
	PriorityCost       Priority = "cost"
	PriorityPeakShave  Priority = "peak_shaving"
)

// Mode selects unidirectional or bidirectional operation.
type Mode string

const (
	ModeV1G Mode = "v1g"
	ModeV2G Mode = "v2g"
)

// Preferences carries operator-level knobs into a decision round.
type Preferences struct {
	Priority Priority
	Mode     Mode
	// MaxFleetLoadMW caps the estimated power of new assignments;
	// zero means unlimited.
	MaxFleetLoadMW float64
	// V2GActiveKW is the fleet discharge currently in flight.
	V2GActiveKW float64
}

// Metadata describes how a decision round went.
type Metadata struct {
	Algorithm      string `json:"algorithm_used"`
	CandidateCount int    `json:"candidate_count"`
	Assignments    int    `json:"assignments"`
	Curtailed      int    `json:"curtailed,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Strategy produces a user-to-charger decision map from a state snapshot.
// Implementations must treat the snapshot as read only.
type Strategy interface {
	Name() string
	Decide(snap *model.Snapshot, prefs Preferences) (model.Decisions, Metadata, error)
}

// assignable reports whether a charger can take one more user given the
// assignments already made this round. The charger's own queue capacity is
// a hard bound; the per-round maxQueue only tightens it further.
func assignable(c *model.Charger, pending map[string]int, maxQueue int) bool {
	if c.Status == model.ChargerFailure {
		return false
	}
	if c.QueueCapacity > 0 && len(c.Queue)+pending[c.ID] >= c.QueueCapacity {
		return false
	}
	return c.EffectiveLoad()+pending[c.ID] < maxQueue
}
