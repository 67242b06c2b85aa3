package strategy

import (
	"sort"

	"github.com/gridpulse/evsim/core/model"
)

// satisfactionAgent recommends the charger minimising the user's weighted
// travel, wait and energy cost.
type satisfactionAgent struct{}

func (satisfactionAgent) recommend(snap *model.Snapshot, prefs Preferences) model.Decisions {
	hour := snap.Time.Hour()
	threshold := 60.0
	if hour >= 6 && hour <= 22 {
		threshold = 50
	}
	out := model.Decisions{}
	for i := range snap.Users {
		u := &snap.Users[i]
		if u.Active() || u.TargetCharger != "" || u.SoC >= 90 {
			continue
		}
		if !u.NeedsCharge && u.SoC > threshold {
			continue
		}
		bestID := ""
		bestCost := 0.0
		for j := range snap.Chargers {
			c := &snap.Chargers[j]
			if c.Status == model.ChargerFailure {
				continue
			}
			dist := u.Position.DistanceKm(c.Position)
			wait := float64(c.EffectiveLoad()) * avgSessionMinutes(c.Type)
			timeCost := (dist*2 + wait) * orDefault(u.TimeSensitivity, 0.5)

			chargeNeeded := u.SoCDeficit() / 100 * u.BatteryCapacityKWh
			priceCost := chargeNeeded * snap.Grid.CurrentPrice * c.PriceMultiplier / 50 * orDefault(u.PriceSensitivity, 0.5)
			if prefs.Priority == PriorityCost {
				priceCost *= 1.5
			}
			cost := timeCost + priceCost
			if bestID == "" || cost < bestCost {
				bestID, bestCost = c.ID, cost
			}
		}
		if bestID != "" {
			out[u.ID] = bestID
		}
	}
	return out
}

// profitAgent recommends the charger with the best net margin per user.
type profitAgent struct{}

func (profitAgent) recommend(snap *model.Snapshot, prefs Preferences) model.Decisions {
	band := snap.Grid.Band()
	out := model.Decisions{}
	for i := range snap.Users {
		u := &snap.Users[i]
		if u.Active() || u.TargetCharger != "" || u.SoC >= 95 {
			continue
		}
		if !u.NeedsCharge && u.SoC > 70 {
			continue
		}
		bestID := ""
		bestScore := 0.0
		for j := range snap.Chargers {
			c := &snap.Chargers[j]
			if c.Status == model.ChargerFailure {
				continue
			}
			typeFactor := 1.0
			switch c.Type {
			case model.ChargerFast:
				typeFactor = 1.1
			case model.ChargerSuperfast:
				typeFactor = 1.2
			}
			revenue := snap.Grid.CurrentPrice * c.PriceMultiplier * typeFactor
			costMult := 1.0
			if prefs.Priority == PriorityCost {
				switch band {
				case model.BandPeak:
					costMult = 1.25
				case model.BandValley:
					costMult = 0.75
				}
			}
			cost := snap.Grid.CurrentPrice * 0.6 * costMult
			needFactor := u.SoCDeficit() / 100
			score := (revenue - cost) / (1 + float64(c.EffectiveLoad())*0.3) * (1 + needFactor*0.05)
			if bestID == "" || score > bestScore {
				bestID, bestScore = c.ID, score
			}
		}
		if bestID != "" {
			out[u.ID] = bestID
		}
	}
	return out
}

// gridAgent recommends chargers in lightly loaded, renewable-rich regions
// for the most urgent users, respecting a mode-dependent queue bound.
type gridAgent struct{}

func (gridAgent) recommend(snap *model.Snapshot, prefs Preferences) model.Decisions {
	band := snap.Grid.Band()
	type cand struct {
		user    *model.User
		urgency float64
	}
	var cands []cand
	for i := range snap.Users {
		u := &snap.Users[i]
		if u.Active() || u.TargetCharger != "" {
			continue
		}
		if !u.NeedsCharge && u.SoC >= 60 {
			continue
		}
		if u.SoCDeficit() < 10 {
			continue
		}
		cands = append(cands, cand{user: u, urgency: 100 - u.SoC})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].urgency > cands[j].urgency })

	maxQueue := 3
	switch {
	case prefs.Priority == PriorityPeakShave && band == model.BandPeak:
		maxQueue = 1
	case prefs.V2GActiveKW > 0:
		maxQueue = 2
	case prefs.Mode == ModeV2G:
		maxQueue = 5
	}

	out := model.Decisions{}
	pending := make(map[string]int)
	for _, cd := range cands {
		bestID := ""
		bestScore := 0.0
		for j := range snap.Chargers {
			c := &snap.Chargers[j]
			if !assignable(c, pending, maxQueue) {
				continue
			}
			score := gridChargerScore(snap, c, band, prefs)
			if bestID == "" || score > bestScore {
				bestID, bestScore = c.ID, score
			}
		}
		if bestID != "" {
			out[cd.user.ID] = bestID
			pending[bestID]++
		}
	}
	return out
}

// gridChargerScore blends time band, regional load and renewable share
// with priority-specific weights.
func gridChargerScore(snap *model.Snapshot, c *model.Charger, band model.TimeBand, prefs Preferences) float64 {
	var timeScore float64
	switch band {
	case model.BandValley:
		timeScore = 0.8
	case model.BandShoulder:
		timeScore = 0.2
	default:
		timeScore = -1.0
	}

	loadPct := snap.Grid.LoadPercent
	renewable := snap.Grid.RenewableRatio / 100
	if st, ok := snap.Grid.Regions[c.Region]; ok && c.Region != "" {
		loadPct = st.LoadPercent
		renewable = st.RenewableRatio / 100
	}
	loadScore := 1 - loadPct/100

	var wTime, wLoad, wRenew float64
	switch prefs.Priority {
	case PriorityRenewables:
		wTime, wLoad, wRenew = 0.15, 0.15, 0.7
	case PriorityCost:
		wTime, wLoad, wRenew = 0.6, 0.2, 0.2
		switch band {
		case model.BandValley:
			timeScore = 1.0
		case model.BandShoulder:
			timeScore = 0.3
		default:
			timeScore = -0.5
		}
	case PriorityPeakShave:
		if band == model.BandPeak {
			return -200
		}
		wTime, wLoad, wRenew = 0.7, 0.15, 0.15
	default:
		wTime, wLoad, wRenew = 0.5, 0.3, 0.2
		if prefs.Mode == ModeV2G {
			wTime, wLoad, wRenew = 0.4, 0.25, 0.35
		}
	}

	score := wTime*timeScore + wLoad*loadScore + wRenew*renewable
	if prefs.V2GActiveKW > 0 {
		score -= 0.75 // discharging fleet, discourage simultaneous charge
	}
	return score
}

func avgSessionMinutes(t model.ChargerType) float64 {
	switch t {
	case model.ChargerSuperfast:
		return 30
	case model.ChargerFast:
		return 45
	default:
		return 60
	}
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
