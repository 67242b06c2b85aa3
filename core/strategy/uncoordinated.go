package strategy

import (
	"math/rand"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

// UncoordinatedConfig tunes the baseline strategy.
type UncoordinatedConfig struct {
	// MaxQueue is the waiting count above which a charger is skipped.
	MaxQueue int `json:"max_queue"`
	// DistanceWeight discounts distance for non-urgent users.
	DistanceWeight float64 `json:"distance_weight"`
	// WaitPenaltyKm converts one waiting user into distance-equivalent km.
	WaitPenaltyKm float64 `json:"wait_penalty_km"`
	// UrgentSoC switches a user to pure nearest-charger behaviour.
	UrgentSoC float64 `json:"urgent_soc"`
}

// SetDefaults applies sane defaults.
func (c *UncoordinatedConfig) SetDefaults() {
	if c.MaxQueue == 0 {
		c.MaxQueue = 4
	}
	if c.DistanceWeight == 0 {
		c.DistanceWeight = 0.7
	}
	if c.WaitPenaltyKm == 0 {
		c.WaitPenaltyKm = 5.0
	}
	if c.UrgentSoC == 0 {
		c.UrgentSoC = 20
	}
}

// Uncoordinated emulates independent, non-cooperative charging choices:
// each seeking user picks its own best charger with no knowledge of the
// others, in random order.
type Uncoordinated struct {
	cfg UncoordinatedConfig
	log logger.Logger
	rng *rand.Rand
}

// NewUncoordinated creates the baseline strategy.
func NewUncoordinated(cfg UncoordinatedConfig, log logger.Logger, rng *rand.Rand) *Uncoordinated {
	cfg.SetDefaults()
	return &Uncoordinated{cfg: cfg, log: log, rng: rng}
}

// Name identifies the strategy.
func (u *Uncoordinated) Name() string { return "uncoordinated" }

// Decide assigns each seeking user to its individually preferred charger.
func (u *Uncoordinated) Decide(snap *model.Snapshot, _ Preferences) (model.Decisions, Metadata, error) {
	meta := Metadata{Algorithm: u.Name()}
	var candidates []*model.User
	for i := range snap.Users {
		usr := &snap.Users[i]
		if usr.Active() {
			continue
		}
		if usr.NeedsCharge || usr.SoC < 50 {
			candidates = append(candidates, usr)
		}
	}
	meta.CandidateCount = len(candidates)
	if len(candidates) == 0 {
		return model.Decisions{}, meta, nil
	}
	u.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	decisions := model.Decisions{}
	pending := make(map[string]int)
	for _, usr := range candidates {
		bestID := ""
		bestScore := 0.0
		for i := range snap.Chargers {
			c := &snap.Chargers[i]
			if !assignable(c, pending, u.cfg.MaxQueue) {
				continue
			}
			dist := usr.Position.DistanceKm(c.Position)
			waiting := float64(c.EffectiveLoad() + pending[c.ID])
			var score float64
			if usr.SoC < u.cfg.UrgentSoC || usr.NeedsCharge {
				score = dist
			} else {
				score = dist*u.cfg.DistanceWeight + waiting*u.cfg.WaitPenaltyKm
			}
			if bestID == "" || score < bestScore {
				bestID, bestScore = c.ID, score
			}
		}
		if bestID != "" {
			decisions[usr.ID] = bestID
			pending[bestID]++
		}
	}
	meta.Assignments = len(decisions)
	return decisions, meta, nil
}
