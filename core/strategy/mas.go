package strategy

import (
	"sort"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

// MASConfig tunes the coordinated multi-agent strategy.
type MASConfig struct {
	// UserWeight/ProfitWeight/GridWeight are the base vote weights,
	// shifted by the charging priority.
	UserWeight   float64 `json:"user_weight"`
	ProfitWeight float64 `json:"profit_weight"`
	GridWeight   float64 `json:"grid_weight"`

	// MaxQueue bounds assignments per charger during conflict resolution.
	MaxQueue int `json:"max_queue"`
	// CriticalSoC allows one extra slot for near-empty users.
	CriticalSoC float64 `json:"critical_soc"`
}

// SetDefaults applies sane defaults.
func (c *MASConfig) SetDefaults() {
	if c.UserWeight == 0 && c.ProfitWeight == 0 && c.GridWeight == 0 {
		c.UserWeight, c.ProfitWeight, c.GridWeight = 0.4, 0.3, 0.3
	}
	if c.MaxQueue == 0 {
		c.MaxQueue = 4
	}
	if c.CriticalSoC == 0 {
		c.CriticalSoC = 20
	}
}

// CoordinatedMAS resolves the recommendations of three specialised agents
// (user satisfaction, operator profit, grid friendliness) through weighted
// voting, then curtails assignments against the fleet load cap.
type CoordinatedMAS struct {
	cfg MASConfig
	log logger.Logger

	user   satisfactionAgent
	profit profitAgent
	grid   gridAgent
}

// NewCoordinatedMAS creates the multi-agent strategy.
func NewCoordinatedMAS(cfg MASConfig, log logger.Logger) *CoordinatedMAS {
	cfg.SetDefaults()
	return &CoordinatedMAS{cfg: cfg, log: log}
}

// Name identifies the strategy.
func (m *CoordinatedMAS) Name() string { return "coordinated_mas" }

// Decide runs the three agents, merges their votes and applies the fleet
// load cap.
func (m *CoordinatedMAS) Decide(snap *model.Snapshot, prefs Preferences) (model.Decisions, Metadata, error) {
	meta := Metadata{Algorithm: m.Name()}

	userRec := m.user.recommend(snap, prefs)
	profitRec := m.profit.recommend(snap, prefs)
	gridRec := m.grid.recommend(snap, prefs)

	wUser, wProfit, wGrid := m.voteWeights(prefs.Priority)

	// Tally votes per user per charger.
	votes := make(map[string]map[string]float64)
	addVotes := func(rec model.Decisions, weight float64) {
		for userID, chargerID := range rec {
			if votes[userID] == nil {
				votes[userID] = make(map[string]float64)
			}
			votes[userID][chargerID] += weight
		}
	}
	addVotes(userRec, wUser)
	addVotes(profitRec, wProfit)
	addVotes(gridRec, wGrid)
	meta.CandidateCount = len(votes)
	if len(votes) == 0 {
		return model.Decisions{}, meta, nil
	}

	decisions := model.Decisions{}
	pending := make(map[string]int)
	for userID, chargerVotes := range votes {
		usr := snap.UserByID(userID)
		if usr == nil {
			continue
		}
		type vote struct {
			chargerID string
			weight    float64
		}
		ordered := make([]vote, 0, len(chargerVotes))
		for id, w := range chargerVotes {
			ordered = append(ordered, vote{id, w})
		}
		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].weight != ordered[j].weight {
				return ordered[i].weight > ordered[j].weight
			}
			return ordered[i].chargerID < ordered[j].chargerID
		})
		maxQueue := m.cfg.MaxQueue
		if usr.SoC < m.cfg.CriticalSoC {
			maxQueue++
		}
		for _, v := range ordered {
			c := snap.ChargerByID(v.chargerID)
			if c == nil || !assignable(c, pending, maxQueue) {
				continue
			}
			decisions[userID] = v.chargerID
			pending[v.chargerID]++
			break
		}
	}

	meta.Curtailed = m.curtail(snap, decisions, prefs.MaxFleetLoadMW)
	meta.Assignments = len(decisions)
	return decisions, meta, nil
}

// voteWeights returns the per-agent vote weights for the active priority.
func (m *CoordinatedMAS) voteWeights(p Priority) (user, profit, grid float64) {
	switch p {
	case PriorityRenewables:
		return 0.2, 0.2, 0.6
	case PriorityCost:
		return 0.3, 0.5, 0.2
	case PriorityPeakShave:
		return 0.15, 0.15, 0.7
	default:
		total := m.cfg.UserWeight + m.cfg.ProfitWeight + m.cfg.GridWeight
		return m.cfg.UserWeight / total, m.cfg.ProfitWeight / total, m.cfg.GridWeight / total
	}
}

// curtail drops the highest-power assignments until the estimated fleet
// load fits under the cap. Returns the number removed.
func (m *CoordinatedMAS) curtail(snap *model.Snapshot, decisions model.Decisions, capMW float64) int {
	if capMW <= 0 || len(decisions) == 0 {
		return 0
	}
	type assign struct {
		userID  string
		powerKW float64
	}
	assigns := make([]assign, 0, len(decisions))
	totalKW := 0.0
	for userID, chargerID := range decisions {
		power := 0.0
		if c := snap.ChargerByID(chargerID); c != nil {
			power = c.MaxPowerKW
		}
		assigns = append(assigns, assign{userID, power})
		totalKW += power
	}
	capKW := capMW * 1000
	if totalKW <= capKW {
		return 0
	}
	sort.Slice(assigns, func(i, j int) bool { return assigns[i].powerKW > assigns[j].powerKW })
	removed := 0
	for _, a := range assigns {
		if totalKW <= capKW {
			break
		}
		delete(decisions, a.userID)
		totalKW -= a.powerKW
		removed++
	}
	if removed > 0 {
		m.log.Infof("curtailed %d assignments to respect %.1f MW fleet cap", removed, capMW)
	}
	return removed
}
