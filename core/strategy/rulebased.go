package strategy

import (
	"sort"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

// RuleBasedConfig tunes the heuristic strategy.
type RuleBasedConfig struct {
	// BaseThreshold is the SoC below which a user becomes a candidate,
	// before profile and time-of-day adjustments.
	BaseThreshold float64 `json:"base_threshold"`
	MinThreshold  float64 `json:"min_threshold"`
	MaxThreshold  float64 `json:"max_threshold"`
	// MinDeficit filters users whose SoC gap is too small to schedule.
	MinDeficit float64 `json:"min_deficit"`

	// CandidateChargers bounds the per-user scoring to the nearest N.
	CandidateChargers int `json:"candidate_chargers"`

	// MaxQueuePeak/Shoulder/Valley bound assignments per charger by band.
	MaxQueuePeak     int `json:"max_queue_peak"`
	MaxQueueShoulder int `json:"max_queue_shoulder"`
	MaxQueueValley   int `json:"max_queue_valley"`

	// Weights blend the three sub-scores with the dynamic hour shift.
	UserWeight   float64 `json:"user_weight"`
	ProfitWeight float64 `json:"profit_weight"`
	GridWeight   float64 `json:"grid_weight"`

	CriticalBonus float64 `json:"critical_bonus"`
	QueuePenalty  float64 `json:"queue_penalty"`
	CriticalSoC   float64 `json:"critical_soc"`
}

// SetDefaults applies sane defaults.
func (c *RuleBasedConfig) SetDefaults() {
	if c.BaseThreshold == 0 {
		c.BaseThreshold = 40
	}
	if c.MinThreshold == 0 {
		c.MinThreshold = 15
	}
	if c.MaxThreshold == 0 {
		c.MaxThreshold = 60
	}
	if c.MinDeficit == 0 {
		c.MinDeficit = 20
	}
	if c.CandidateChargers == 0 {
		c.CandidateChargers = 15
	}
	if c.MaxQueuePeak == 0 {
		c.MaxQueuePeak = 3
	}
	if c.MaxQueueShoulder == 0 {
		c.MaxQueueShoulder = 6
	}
	if c.MaxQueueValley == 0 {
		c.MaxQueueValley = 12
	}
	if c.UserWeight == 0 && c.ProfitWeight == 0 && c.GridWeight == 0 {
		c.UserWeight, c.ProfitWeight, c.GridWeight = 0.4, 0.3, 0.3
	}
	if c.CriticalBonus == 0 {
		c.CriticalBonus = 0.2
	}
	if c.QueuePenalty == 0 {
		c.QueuePenalty = 0.05
	}
	if c.CriticalSoC == 0 {
		c.CriticalSoC = 40
	}
}

// RuleBased scores the nearest chargers for each urgency-sorted candidate
// against satisfaction, profit and grid sub-scores, blended with weights
// that shift by time of day.
type RuleBased struct {
	cfg RuleBasedConfig
	log logger.Logger
}

// NewRuleBased creates the heuristic strategy.
func NewRuleBased(cfg RuleBasedConfig, log logger.Logger) *RuleBased {
	cfg.SetDefaults()
	return &RuleBased{cfg: cfg, log: log}
}

// Name identifies the strategy.
func (r *RuleBased) Name() string { return "rule_based" }

type rbCandidate struct {
	user    *model.User
	urgency float64
}

// Decide produces the heuristic assignment for this tick.
func (r *RuleBased) Decide(snap *model.Snapshot, _ Preferences) (model.Decisions, Metadata, error) {
	meta := Metadata{Algorithm: r.Name()}
	band := snap.Grid.Band()
	hour := snap.Time.Hour()

	candidates := r.collectCandidates(snap, hour)
	meta.CandidateCount = len(candidates)
	if len(candidates) == 0 {
		return model.Decisions{}, meta, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].user.NeedsCharge != candidates[j].user.NeedsCharge {
			return candidates[i].user.NeedsCharge
		}
		return candidates[i].urgency > candidates[j].urgency
	})

	wUser, wProfit, wGrid := r.dynamicWeights(band)
	maxQueue := r.maxQueueFor(band)

	decisions := model.Decisions{}
	pending := make(map[string]int)
	for _, cand := range candidates {
		usr := cand.user
		nearest := nearestChargers(snap, usr.Position, r.cfg.CandidateChargers)
		bestID := ""
		bestScore := 0.0
		for _, c := range nearest {
			if !assignable(c, pending, maxQueue) {
				continue
			}
			queued := float64(c.EffectiveLoad() + pending[c.ID])
			sat := r.satisfactionScore(usr, c, cand.urgency, queued)
			profit := r.profitScore(usr, c, queued)
			grid := r.gridScore(snap, c, band)
			score := wUser*sat + wProfit*profit + wGrid*grid - queued*r.cfg.QueuePenalty
			if usr.SoC < r.cfg.CriticalSoC || usr.NeedsCharge {
				score += r.cfg.CriticalBonus
			}
			if bestID == "" || score > bestScore {
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

func (r *RuleBased) collectCandidates(snap *model.Snapshot, hour int) []rbCandidate {
	var out []rbCandidate
	for i := range snap.Users {
		usr := &snap.Users[i]
		if usr.Active() || usr.TargetCharger != "" {
			continue
		}
		threshold := r.cfg.BaseThreshold
		switch usr.Profile {
		case model.ProfileAnxious:
			threshold += 10
		case model.ProfileUrgent:
			threshold += 5
		case model.ProfileEconomic:
			threshold -= 10
		}
		if hour >= 0 && hour <= 5 {
			threshold += 5 // cheap hours invite earlier charging
		}
		threshold = clampF(threshold, r.cfg.MinThreshold, r.cfg.MaxThreshold)

		eligible := usr.NeedsCharge || (usr.SoC <= threshold && usr.SoC < 80)
		if !eligible || usr.SoCDeficit() < r.cfg.MinDeficit {
			continue
		}
		urgency := 0.0
		if threshold > 0 {
			urgency = (threshold - usr.SoC) / threshold
		}
		if usr.NeedsCharge {
			urgency += 0.3
		}
		out = append(out, rbCandidate{user: usr, urgency: urgency})
	}
	return out
}

func (r *RuleBased) dynamicWeights(band model.TimeBand) (user, profit, grid float64) {
	user, profit, grid = r.cfg.UserWeight, r.cfg.ProfitWeight, r.cfg.GridWeight
	switch band {
	case model.BandPeak:
		grid += 0.15
		user -= 0.05
		profit -= 0.10
	case model.BandValley:
		profit += 0.15
		grid -= 0.10
		user -= 0.05
	}
	total := user + profit + grid
	if total <= 0 {
		return 0.4, 0.3, 0.3
	}
	return user / total, profit / total, grid / total
}

func (r *RuleBased) maxQueueFor(band model.TimeBand) int {
	switch band {
	case model.BandPeak:
		return r.cfg.MaxQueuePeak
	case model.BandValley:
		return r.cfg.MaxQueueValley
	default:
		return r.cfg.MaxQueueShoulder
	}
}

// satisfactionScore rates a charger from the user's point of view:
// distance, expected wait, power adequacy and price, each tiered into
// [-1,1].
func (r *RuleBased) satisfactionScore(u *model.User, c *model.Charger, urgency, queued float64) float64 {
	dist := u.Position.DistanceKm(c.Position)
	var distScore float64
	switch {
	case dist < 2:
		distScore = 0.5 - dist*0.1
	case dist < 5:
		distScore = 0.3 - (dist-2)*0.1
	case dist < 10:
		distScore = 0 - (dist-5)*0.05
	default:
		distScore = -0.15
	}

	var waitScore float64
	switch {
	case queued <= 0:
		waitScore = 0.5
	case queued <= 2:
		waitScore = 0.3
	case queued <= 5:
		waitScore = 0.1
	case queued <= 8:
		waitScore = -0.1
	default:
		waitScore = -0.3
	}

	expected := (20 + urgency*30)
	switch u.Profile {
	case model.ProfileUrgent:
		expected *= 1.3
	case model.ProfileAnxious:
		expected *= 1.1
	}
	ratio := 0.0
	if expected > 0 {
		ratio = c.MaxPowerKW / expected
	}
	var powerScore float64
	switch {
	case ratio >= 1.5:
		powerScore = 0.4
	case ratio >= 1.0:
		powerScore = 0.3
	case ratio >= 0.7:
		powerScore = 0.1
	case ratio >= 0.5:
		powerScore = -0.1
	default:
		powerScore = -0.2
	}

	priceScore := clampF((1-c.PriceMultiplier)*0.5, -0.3, 0.3)

	urgencyFactor := 1.0
	switch {
	case u.SoC < 15:
		urgencyFactor = 1.6
	case u.SoC < 25:
		urgencyFactor = 1.3
	case u.SoC < 40:
		urgencyFactor = 1.1
	}

	score := 0.4*distScore*urgencyFactor + 0.3*waitScore*urgencyFactor + 0.15*powerScore + 0.15*priceScore
	return clampF(score, -1, 1)
}

// profitScore rates a charger for the operator. This is the corrected
// price-dominant formula: type premium, queue discount, demand uplift,
// then normalisation into [-1,1].
func (r *RuleBased) profitScore(u *model.User, c *model.Charger, queued float64) float64 {
	effective := c.PriceMultiplier
	switch c.Type {
	case model.ChargerFast:
		effective *= 1.15
	case model.ChargerSuperfast:
		effective *= 1.30
	}
	effective -= queued * 0.15
	needFactor := u.SoCDeficit() / 100
	effective *= 1 + needFactor*0.05
	normalized := (effective - 0.5) / 1.5
	return clampF(2*normalized-1, -1, 1)
}

// gridScore rates a charger for the grid: regional load tier, renewable
// share, time band and connector power.
func (r *RuleBased) gridScore(snap *model.Snapshot, c *model.Charger, band model.TimeBand) float64 {
	loadPct := snap.Grid.LoadPercent
	renewable := snap.Grid.RenewableRatio / 100
	if st, ok := snap.Grid.Regions[c.Region]; ok && c.Region != "" {
		loadPct = st.LoadPercent
		renewable = st.RenewableRatio / 100
	}

	var loadScore float64
	switch {
	case loadPct < 30:
		loadScore = 0.8
	case loadPct < 50:
		loadScore = 0.5 - (loadPct-30)*0.015
	case loadPct < 70:
		loadScore = 0.2 - (loadPct-50)*0.01
	case loadPct < 85:
		loadScore = 0 - (loadPct-70)*0.015
	default:
		loadScore = maxF(-0.5, -0.225-(loadPct-85)*0.01)
	}

	var timeScore float64
	switch band {
	case model.BandPeak:
		timeScore = -0.3
	case model.BandValley:
		timeScore = 0.6
	default:
		timeScore = 0.2
	}

	powerPenalty := 0.0
	switch {
	case c.MaxPowerKW > 150:
		powerPenalty = 0.1
	case c.MaxPowerKW > 50:
		powerPenalty = 0.05
	}

	raw := clampF(loadScore+renewable*0.8+timeScore-powerPenalty, -0.9, 1.0)
	if raw < 0 {
		return raw * 0.8
	}
	return minF(1.0, raw*1.1)
}

// nearestChargers returns up to n working chargers ordered by distance.
func nearestChargers(snap *model.Snapshot, pos model.Position, n int) []*model.Charger {
	type entry struct {
		c    *model.Charger
		dist float64
	}
	entries := make([]entry, 0, len(snap.Chargers))
	for i := range snap.Chargers {
		c := &snap.Chargers[i]
		if c.Status == model.ChargerFailure {
			continue
		}
		entries = append(entries, entry{c: c, dist: pos.DistanceSq(c.Position)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].dist < entries[j].dist })
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	out := make([]*model.Charger, len(entries))
	for i, e := range entries {
		out[i] = e.c
	}
	return out
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
