// Package rewards computes the multi-objective reward for a state
// snapshot: user satisfaction, operator profit and grid friendliness in
// [-1,1], an optional uncoordinated baseline estimate, and comparison
// statistics over load profiles.
package rewards

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

// Rewards is the per-tick objective breakdown.
type Rewards struct {
	UserSatisfaction float64 `json:"user_satisfaction"`
	OperatorProfit   float64 `json:"operator_profit"`
	GridFriendliness float64 `json:"grid_friendliness"`
	Total            float64 `json:"total_reward"`

	// Baseline holds the uncoordinated estimate when enabled.
	Baseline *Baseline `json:"baseline,omitempty"`
}

// Baseline estimates what an uncoordinated fleet would have scored under
// the same grid conditions.
type Baseline struct {
	UserSatisfaction float64 `json:"user_satisfaction"`
	OperatorProfit   float64 `json:"operator_profit"`
	GridFriendliness float64 `json:"grid_friendliness"`
	Total            float64 `json:"total_reward"`
	ImprovementPct   float64 `json:"improvement_percentage"`
}

// Engine computes rewards. Compute is pure: the same snapshot and history
// always yield the same result.
type Engine struct {
	cfg Config
	log logger.Logger
}

// New creates an Engine.
func New(cfg Config, log logger.Logger) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, log: log}, nil
}

// Compute derives the objective scores for the snapshot. history is the
// bounded list of earlier snapshots, oldest first; it may be empty.
func (e *Engine) Compute(snap *model.Snapshot, history []*model.Snapshot) Rewards {
	sat := e.userSatisfaction(snap)
	profit := e.operatorProfit(snap, history)
	grid := e.gridFriendliness(snap, history)

	wTotal := e.cfg.UserWeight + e.cfg.ProfitWeight + e.cfg.GridWeight
	total := (sat*e.cfg.UserWeight + profit*e.cfg.ProfitWeight + grid*e.cfg.GridWeight) / wTotal

	r := Rewards{
		UserSatisfaction: sat,
		OperatorProfit:   profit,
		GridFriendliness: grid,
		Total:            total,
	}
	if e.cfg.BaselineEnabled {
		r.Baseline = e.estimateBaseline(snap, r)
	}
	return r
}

// userSatisfaction maps average SoC discounted by the waiting ratio into
// [-1,1].
func (e *Engine) userSatisfaction(snap *model.Snapshot) float64 {
	if len(snap.Users) == 0 {
		return 0
	}
	var socSum float64
	waiting := 0
	for i := range snap.Users {
		socSum += snap.Users[i].SoC
		if snap.Users[i].Status == model.UserWaiting {
			waiting++
		}
	}
	avgSoC := socSum / float64(len(snap.Users))
	waitRatio := float64(waiting) / float64(len(snap.Users))
	raw := avgSoC / 100 * (1 - e.cfg.WaitPenaltyFactor*waitRatio)
	return clamp(raw*2-1, -1, 1)
}

// operatorProfit blends utilization, log-scaled revenue and ROI scores
// with an hour factor into [-1,1].
func (e *Engine) operatorProfit(snap *model.Snapshot, history []*model.Snapshot) float64 {
	total := len(snap.Chargers)
	if total == 0 {
		return 0
	}
	periodRevenue, periodEnergy := e.periodTotals(snap, history)

	occupied, queueing := 0, 0
	for i := range snap.Chargers {
		c := &snap.Chargers[i]
		if c.Status == model.ChargerOccupied {
			occupied++
		}
		if len(c.Queue) > 0 {
			queueing++
		}
	}
	utilization := float64(occupied)/float64(total)*0.7 + float64(queueing)/float64(total)*0.3

	utilScore := utilization * 0.8
	switch {
	case utilization > 0.8:
		utilScore += (utilization - 0.8) * 0.5
	case utilization < 0.2:
		utilScore *= 0.8
	}

	targetRevenue := e.cfg.TargetHourlyRevenuePerCharger * float64(total)
	revenueRatio := 0.0
	if targetRevenue > 0 {
		revenueRatio = periodRevenue / targetRevenue
	}
	revenueScore := math.Min(0.6, 0.3*math.Log(1+revenueRatio*3)/math.Log(4))

	electricity := periodEnergy * snap.Grid.CurrentPrice * e.cfg.ElectricityCostRate
	maintenance := e.cfg.MaintenancePerChargerHourly * float64(total)
	fixed := e.cfg.FixedCostBaseHourly +
		e.cfg.FixedCostPerChargerHourly*float64(total)*(0.7+0.3*math.Exp(-float64(total)/50))
	netProfit := periodRevenue - electricity - maintenance - fixed

	hourlyInvestment := e.cfg.InvestmentPerCharger * float64(total) / (e.cfg.ChargerLifespanYears * 365 * 24)
	roiScore := 0.0
	if hourlyInvestment > 0 && netProfit > 0 {
		roi := netProfit / hourlyInvestment
		roiScore = math.Min(0.4, 0.2*math.Log(1+roi*5)/math.Log(6))
	}

	timeFactor := 0.0
	switch snap.Grid.Band() {
	case model.BandPeak:
		timeFactor = -0.1
	case model.BandValley:
		timeFactor = 0.2
	}

	raw := clamp(utilScore+revenueScore+roiScore+timeFactor, 0, 1)
	return clamp(raw*2-1, -1, 1)
}

// periodTotals computes revenue/energy accrued over the history window,
// falling back to an hourly estimate from the daily counters.
func (e *Engine) periodTotals(snap *model.Snapshot, history []*model.Snapshot) (revenue, energy float64) {
	if len(history) >= e.cfg.TimeWindowSteps {
		prev := history[len(history)-e.cfg.TimeWindowSteps]
		prevRevenue := make(map[string]float64, len(prev.Chargers))
		prevEnergy := make(map[string]float64, len(prev.Chargers))
		for i := range prev.Chargers {
			c := &prev.Chargers[i]
			prevRevenue[c.ID] = c.DailyRevenue
			prevEnergy[c.ID] = c.DailyEnergyKWh
		}
		for i := range snap.Chargers {
			c := &snap.Chargers[i]
			if pr, ok := prevRevenue[c.ID]; ok {
				revenue += math.Max(0, c.DailyRevenue-pr)
			}
			if pe, ok := prevEnergy[c.ID]; ok {
				energy += math.Max(0, c.DailyEnergyKWh-pe)
			}
		}
		return revenue, energy
	}
	for i := range snap.Chargers {
		revenue += snap.Chargers[i].DailyRevenue / 24
		energy += snap.Chargers[i].DailyEnergyKWh / 24
	}
	return revenue, energy
}

// gridFriendliness sums load, renewable, time, concentration, imbalance,
// carbon, volatility and transfer factors into [-1,1].
func (e *Engine) gridFriendliness(snap *model.Snapshot, history []*model.Snapshot) float64 {
	loadPct := snap.Grid.LoadPercent
	renewable := snap.Grid.RenewableRatio / 100

	var loadFactor float64
	switch {
	case loadPct < 30:
		loadFactor = 0.8
	case loadPct < 50:
		loadFactor = 0.5 - (loadPct-30)*0.015
	case loadPct < 70:
		loadFactor = 0.2 - (loadPct-50)*0.01
	case loadPct < 85:
		loadFactor = 0 - (loadPct-70)*0.015
	default:
		loadFactor = math.Max(-0.5, -0.225-(loadPct-85)*0.01)
	}

	renewableFactor := 0.8 * renewable

	var timeFactor float64
	switch snap.Grid.Band() {
	case model.BandPeak:
		timeFactor = -0.3
	case model.BandValley:
		timeFactor = 0.6
	default:
		timeFactor = 0.2
	}

	concentrationFactor := 0.0
	if snap.Grid.TotalLoadKW > 1e-6 {
		evRatio := snap.Grid.EVLoadKW / snap.Grid.TotalLoadKW
		if evRatio > 0.3 {
			concentrationFactor = -0.15 * (evRatio - 0.3) / 0.7
		}
	}

	imbalanceFactor := 0.0
	if len(snap.Grid.Regions) > 1 {
		loads := make([]float64, 0, len(snap.Grid.Regions))
		for _, st := range snap.Grid.Regions {
			loads = append(loads, st.LoadPercent)
		}
		if sd := stat.StdDev(loads, nil); sd > 10 {
			imbalanceFactor = -0.2 * math.Min(1, (sd-10)/30)
		}
	}

	carbonFactor := 0.0
	if len(snap.Grid.Regions) > 0 {
		var sum float64
		for _, st := range snap.Grid.Regions {
			sum += st.CarbonIntensity
		}
		switch avg := sum / float64(len(snap.Grid.Regions)); {
		case avg < 400:
			carbonFactor = 0.2
		case avg < 600:
			carbonFactor = 0.1
		case avg < 800:
			carbonFactor = 0
		default:
			carbonFactor = -0.1
		}
	}

	changeFactor := 0.0
	if len(history) >= e.cfg.TimeWindowSteps {
		prev := history[len(history)-e.cfg.TimeWindowSteps]
		if prev.Grid.TotalLoadKW > 1e-6 {
			rate := math.Abs(snap.Grid.TotalLoadKW-prev.Grid.TotalLoadKW) / prev.Grid.TotalLoadKW
			if rate > 0.2 {
				changeFactor = -0.15 * math.Min(1, (rate-0.2)/0.3)
			}
		}
	}

	transferFactor := 0.0
	if len(snap.Grid.Connections) > 0 {
		var transfer, capacity float64
		for _, conn := range snap.Grid.Connections {
			transfer += math.Abs(conn.CurrentTransferKW)
			capacity += conn.TransferCapacityKW
		}
		if capacity > 1e-6 {
			if ratio := transfer / capacity; ratio > 0.7 {
				transferFactor = -0.1 * math.Min(1, (ratio-0.7)/0.3)
			}
		}
	}

	raw := clamp(loadFactor+renewableFactor+timeFactor+concentrationFactor+
		imbalanceFactor+carbonFactor+changeFactor+transferFactor, -0.9, 1.0)
	if raw < 0 {
		return raw * 0.8
	}
	return math.Min(1.0, raw*1.1)
}

// estimateBaseline approximates the scores an uncoordinated fleet would
// reach under the same conditions.
func (e *Engine) estimateBaseline(snap *model.Snapshot, r Rewards) *Baseline {
	b := &Baseline{
		UserSatisfaction: r.UserSatisfaction * e.cfg.BaselineSatisfactionFactor,
		OperatorProfit:   r.OperatorProfit * e.cfg.BaselineProfitFactor,
	}
	gridFactor := e.cfg.BaselineGridFactor
	switch snap.Grid.Band() {
	case model.BandPeak:
		gridFactor *= e.cfg.BaselinePeakPenalty
	case model.BandValley:
		gridFactor *= e.cfg.BaselineValleyBonus
	}
	b.GridFriendliness = snap.Grid.RenewableRatio / 100 * gridFactor

	wTotal := e.cfg.UserWeight + e.cfg.ProfitWeight + e.cfg.GridWeight
	b.Total = (b.UserSatisfaction*e.cfg.UserWeight +
		b.OperatorProfit*e.cfg.ProfitWeight +
		b.GridFriendliness*e.cfg.GridWeight) / wTotal
	if math.Abs(b.Total) > 1e-9 {
		b.ImprovementPct = (r.Total - b.Total) / math.Abs(b.Total) * 100
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
