package strategy

import (
	"math/rand"
	"sort"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

// MARLConfig tunes the per-charger Q-learning agents.
type MARLConfig struct {
	ActionSpaceSize int     `json:"action_space_size"`
	LearningRate    float64 `json:"learning_rate"`
	DiscountFactor  float64 `json:"discount_factor"`
	ExplorationRate float64 `json:"exploration_rate"`

	// CandidateMaxDistSq bounds, in squared degrees, how far an agent
	// looks for assignable users (~20 km radius by default).
	CandidateMaxDistSq float64 `json:"candidate_max_dist_sq"`
	// DemandRadiusSq bounds the nearby-demand state feature (~5 km).
	DemandRadiusSq float64 `json:"demand_radius_sq"`
	DemandSoC      float64 `json:"demand_soc"`

	// Candidate priority weights: low SoC, short distance, urgency.
	WeightSoC     float64 `json:"priority_w_soc"`
	WeightDist    float64 `json:"priority_w_dist"`
	WeightUrgency float64 `json:"priority_w_urgency"`

	// Reward shaping.
	AssignRewardPriceFactor float64 `json:"assign_reward_price_factor"`
	PeakOccupiedPenalty     float64 `json:"peak_occupied_penalty"`
	ValleyOccupiedBonus     float64 `json:"valley_occupied_bonus"`
	RenewableBonus          float64 `json:"renewable_bonus"`
	IdlePenalty             float64 `json:"idle_penalty"`
	FailurePenalty          float64 `json:"failure_penalty"`
}

// SetDefaults applies sane defaults.
func (c *MARLConfig) SetDefaults() {
	if c.ActionSpaceSize == 0 {
		c.ActionSpaceSize = 6
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.01
	}
	if c.DiscountFactor == 0 {
		c.DiscountFactor = 0.95
	}
	if c.ExplorationRate == 0 {
		c.ExplorationRate = 0.1
	}
	if c.CandidateMaxDistSq == 0 {
		c.CandidateMaxDistSq = 0.15 * 0.15
	}
	if c.DemandRadiusSq == 0 {
		c.DemandRadiusSq = 0.05 * 0.05
	}
	if c.DemandSoC == 0 {
		c.DemandSoC = 40
	}
	if c.WeightSoC == 0 && c.WeightDist == 0 && c.WeightUrgency == 0 {
		c.WeightSoC, c.WeightDist, c.WeightUrgency = 0.5, 0.4, 0.1
	}
	if c.AssignRewardPriceFactor == 0 {
		c.AssignRewardPriceFactor = 0.7
	}
	if c.PeakOccupiedPenalty == 0 {
		c.PeakOccupiedPenalty = 0.6
	}
	if c.ValleyOccupiedBonus == 0 {
		c.ValleyOccupiedBonus = 0.4
	}
	if c.RenewableBonus == 0 {
		c.RenewableBonus = 0.25
	}
	if c.IdlePenalty == 0 {
		c.IdlePenalty = 0.15
	}
	if c.FailurePenalty == 0 {
		c.FailurePenalty = 3.0
	}
}

// marlAgent is one charger's learner.
type marlAgent struct {
	chargerID string
	table     *qTable
}

// MARL runs one Q-learning agent per charger. Action 0 is always "idle";
// the remaining actions map to the top nearby seeking users, rebuilt every
// tick.
type MARL struct {
	cfg MARLConfig
	log logger.Logger
	rng *rand.Rand

	agents map[string]*marlAgent

	// Round state captured by Decide and consumed by Learn.
	lastSnap    *model.Snapshot
	lastActions map[string]int
	lastTargets map[string]string // chargerID -> chosen userID
}

// NewMARL creates the reinforcement-learning strategy.
func NewMARL(cfg MARLConfig, log logger.Logger, rng *rand.Rand) *MARL {
	cfg.SetDefaults()
	return &MARL{
		cfg:    cfg,
		log:    log,
		rng:    rng,
		agents: make(map[string]*marlAgent),
	}
}

// Name identifies the strategy.
func (m *MARL) Name() string { return "marl" }

func (m *MARL) agent(chargerID string) *marlAgent {
	a, ok := m.agents[chargerID]
	if !ok {
		a = &marlAgent{chargerID: chargerID, table: newQTable(m.cfg.ActionSpaceSize)}
		m.agents[chargerID] = a
	}
	return a
}

// Decide lets every working charger pick a user (or idle) epsilon-greedily
// and converts the joint action into a conflict-free decision map.
func (m *MARL) Decide(snap *model.Snapshot, _ Preferences) (model.Decisions, Metadata, error) {
	meta := Metadata{Algorithm: m.Name()}
	decisions := model.Decisions{}
	assigned := make(map[string]bool)
	m.lastActions = make(map[string]int)
	m.lastTargets = make(map[string]string)
	m.lastSnap = snap

	seeking := m.seekingUsers(snap)
	meta.CandidateCount = len(seeking)

	for i := range snap.Chargers {
		c := &snap.Chargers[i]
		if c.Status != model.ChargerAvailable || (c.QueueCapacity > 0 && c.QueueFull()) {
			// Occupied, failed and saturated chargers are forced to idle.
			m.lastActions[c.ID] = 0
			continue
		}
		actionMap := m.actionMap(c, seeking)
		key := m.stateKey(snap, c)
		action := m.choose(m.agent(c.ID), key, len(actionMap)+1)
		m.lastActions[c.ID] = action
		if action == 0 {
			continue
		}
		userID, ok := actionMap[action]
		if !ok || assigned[userID] {
			continue
		}
		decisions[userID] = c.ID
		assigned[userID] = true
		m.lastTargets[c.ID] = userID
	}
	meta.Assignments = len(decisions)
	return decisions, meta, nil
}

// choose is epsilon-greedy over the valid action subset with random tie
// breaking.
func (m *MARL) choose(a *marlAgent, key StateKey, validActions int) int {
	if validActions <= 1 {
		return 0
	}
	if m.rng.Float64() < m.cfg.ExplorationRate {
		return m.rng.Intn(validActions)
	}
	row := a.table.row(key)
	best := []int{0}
	bestQ := row.AtVec(0)
	for i := 1; i < validActions; i++ {
		q := row.AtVec(i)
		switch {
		case q > bestQ:
			best, bestQ = []int{i}, q
		case q == bestQ:
			best = append(best, i)
		}
	}
	return best[m.rng.Intn(len(best))]
}

// Learn applies one Q-update per agent using the transition from the last
// Decide snapshot to next.
func (m *MARL) Learn(next *model.Snapshot) {
	if m.lastSnap == nil || m.lastActions == nil {
		return
	}
	for chargerID, action := range m.lastActions {
		prev := m.lastSnap.ChargerByID(chargerID)
		curr := next.ChargerByID(chargerID)
		if prev == nil || curr == nil {
			continue
		}
		agent := m.agent(chargerID)
		prevKey := m.stateKey(m.lastSnap, prev)
		nextKey := m.stateKey(next, curr)
		reward := m.reward(prev, curr, chargerID, next)

		row := agent.table.row(prevKey)
		q := row.AtVec(action)
		target := reward + m.cfg.DiscountFactor*agent.table.maxValue(nextKey)
		row.SetVec(action, q+m.cfg.LearningRate*(target-q))
	}
	m.lastSnap = nil
	m.lastActions = nil
}

// reward shapes the per-charger learning signal from the observed
// transition.
func (m *MARL) reward(prev, curr *model.Charger, chargerID string, next *model.Snapshot) float64 {
	if curr.Status == model.ChargerFailure {
		if prev.Status != model.ChargerFailure {
			return -m.cfg.FailurePenalty
		}
		return 0
	}
	r := 0.0
	target := m.lastTargets[chargerID]
	if target != "" && prev.Status == model.ChargerAvailable &&
		(curr.CurrentUser == target || curr.InQueue(target)) {
		r += next.Grid.CurrentPrice * m.cfg.AssignRewardPriceFactor
	}
	if curr.Status == model.ChargerOccupied {
		switch next.Grid.Band() {
		case model.BandPeak:
			r -= m.cfg.PeakOccupiedPenalty
		case model.BandValley:
			r += m.cfg.ValleyOccupiedBonus
		}
		if next.Grid.RenewableRatio > 60 {
			r += m.cfg.RenewableBonus
		}
	} else if curr.Status == model.ChargerAvailable && next.Grid.LoadPercent < 70 {
		r -= m.cfg.IdlePenalty
	}
	return r
}

// stateKey discretizes the charger's observation.
func (m *MARL) stateKey(snap *model.Snapshot, c *model.Charger) StateKey {
	var status int8
	switch c.Status {
	case model.ChargerOccupied:
		status = 1
	case model.ChargerFailure:
		status = 2
	}
	queue := int8(len(c.Queue))
	if queue > 3 {
		queue = 3
	}
	var load int8
	switch {
	case snap.Grid.LoadPercent > 80:
		load = 2
	case snap.Grid.LoadPercent > 60:
		load = 1
	}
	var renew int8
	switch {
	case snap.Grid.RenewableRatio > 50:
		renew = 2
	case snap.Grid.RenewableRatio > 20:
		renew = 1
	}
	demand := 0
	for i := range snap.Users {
		u := &snap.Users[i]
		if u.SoC < m.cfg.DemandSoC && u.Position.DistanceSq(c.Position) < m.cfg.DemandRadiusSq {
			demand++
			if demand == 2 {
				break
			}
		}
	}
	return StateKey{
		Status:      status,
		Queue:       queue,
		HourBucket:  int8(snap.Time.Hour() / 4),
		LoadBucket:  load,
		RenewBucket: renew,
		Demand:      int8(demand),
	}
}

// seekingUsers lists users actively looking for a charge.
func (m *MARL) seekingUsers(snap *model.Snapshot) []*model.User {
	var out []*model.User
	for i := range snap.Users {
		u := &snap.Users[i]
		if u.Active() {
			continue
		}
		threshold := 40.0
		switch u.Profile {
		case model.ProfileAnxious:
			threshold = 50
		case model.ProfileEconomic:
			threshold = 30
		}
		switch {
		case u.NeedsCharge:
			out = append(out, u)
		case u.TargetCharger == "" && u.SoC < threshold:
			out = append(out, u)
		}
	}
	return out
}

// actionMap maps action indices to the top nearby candidates by priority
// score. Index 0 is reserved for idle.
func (m *MARL) actionMap(c *model.Charger, seeking []*model.User) map[int]string {
	type scored struct {
		id       string
		priority float64
	}
	var candidates []scored
	for _, u := range seeking {
		distSq := u.Position.DistanceSq(c.Position)
		if distSq >= m.cfg.CandidateMaxDistSq {
			continue
		}
		normDist := distSq / m.cfg.CandidateMaxDistSq
		urgency := clampF((40-u.SoC)/40, 0, 1)
		priority := m.cfg.WeightSoC*(1-u.SoC/100) +
			m.cfg.WeightDist*(1-normDist) +
			m.cfg.WeightUrgency*urgency
		candidates = append(candidates, scored{id: u.ID, priority: priority})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].priority > candidates[j].priority })

	out := map[int]string{}
	for i, cand := range candidates {
		if i+1 >= m.cfg.ActionSpaceSize {
			break
		}
		out[i+1] = cand.id
	}
	return out
}

// SaveTables persists all agent tables.
func (m *MARL) SaveTables(store QTableStore) error {
	tables := make(AgentTables, len(m.agents))
	for id, a := range m.agents {
		tables[id] = a.table.export()
	}
	return store.Save(tables)
}

// LoadTables restores agent tables. Malformed entries reset rather than
// fail.
func (m *MARL) LoadTables(store QTableStore) error {
	tables, err := store.Load()
	if err != nil {
		return err
	}
	for id, data := range tables {
		skipped := m.agent(id).table.load(data)
		if skipped > 0 {
			m.log.Warnf("q-table for %s: reset %d incompatible entries", id, skipped)
		}
	}
	return nil
}
