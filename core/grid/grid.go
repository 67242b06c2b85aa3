// Package grid models a regional electricity grid: hour-indexed base load
// and renewable generation per region, time-of-use pricing, carbon
// accounting and two-phase V2G discharge netting.
package grid

import (
	"fmt"
	"math"
	"time"

	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/model"
)

// Model is the regional grid. It is not safe for concurrent use; the
// simulation loop is single threaded by design.
type Model struct {
	cfg Config
	log logger.Logger

	regions     map[string]*model.Region
	regionOrder []string
	connections map[string]*model.Connection

	staging *v2gStaging
	history *ringBuffer

	currentPrice   float64
	lastDispatchKW float64
	totalCapacity  float64
	lastTime       time.Time
}

// New builds a Model from the configuration. It fails only when the
// configuration cannot yield a single region.
func New(cfg Config, log logger.Logger) (*Model, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{cfg: cfg, log: log}
	m.Reset()
	return m, nil
}

// Reset derives the region set from configuration (or generates defaults),
// seeds profiles and clears history and staging.
func (m *Model) Reset() {
	m.regions = make(map[string]*model.Region)
	m.regionOrder = m.regionOrder[:0]

	regionCfgs := m.cfg.Regions
	if len(regionCfgs) == 0 {
		for i := 0; i < m.cfg.RegionCount; i++ {
			regionCfgs = append(regionCfgs, RegionConfig{ID: fmt.Sprintf("region_%d", i)})
		}
	}
	for _, rc := range regionCfgs {
		r := &model.Region{ID: rc.ID, CapacityKW: rc.CapacityKW}
		if r.CapacityKW <= 0 {
			r.CapacityKW = 10000
		}
		r.BaseLoadProfile = m.profileOrDefault(rc.ID, "base_load", rc.BaseLoadProfile, defaultBaseProfile)
		r.SolarProfile = m.profileOrDefault(rc.ID, "solar", rc.SolarProfile, defaultSolarProfile)
		r.WindProfile = m.profileOrDefault(rc.ID, "wind", rc.WindProfile, defaultWindProfile)
		m.regions[r.ID] = r
		m.regionOrder = append(m.regionOrder, r.ID)
	}

	// Ring adjacency between consecutive regions.
	m.connections = make(map[string]*model.Connection)
	n := len(m.regionOrder)
	if n > 1 {
		for i, id := range m.regionOrder {
			next := m.regionOrder[(i+1)%n]
			if id == next {
				continue
			}
			m.regions[id].Adjacent = append(m.regions[id].Adjacent, next)
			key := id + "-" + next
			m.connections[key] = &model.Connection{
				From:               id,
				To:                 next,
				TransferCapacityKW: m.cfg.TransferCapacityKW,
			}
		}
	}

	m.totalCapacity = 0
	for _, r := range m.regions {
		m.totalCapacity += r.CapacityKW
	}
	m.staging = newV2GStaging()
	m.history = newRingBuffer(m.cfg.HistorySize)
	m.currentPrice = m.cfg.NormalPrice
	m.lastDispatchKW = 0
}

func (m *Model) profileOrDefault(regionID, name string, values []float64, fallback func(int) float64) [24]float64 {
	var out [24]float64
	if len(values) == 24 {
		valid := true
		for i, v := range values {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				valid = false
				break
			}
			out[i] = v
		}
		if valid {
			return out
		}
	}
	if len(values) != 0 {
		m.log.Warnf("region %s: malformed %s profile (%d values), using default", regionID, name, len(values))
	}
	for h := 0; h < 24; h++ {
		out[h] = fallback(h)
	}
	return out
}

// StageDischarge stages a V2G discharge in kW to be netted against the
// charging load by the next UpdateStep.
func (m *Model) StageDischarge(amountKW float64) error {
	return m.staging.Stage(amountKW)
}

// PendingDischarge returns the staged, not yet applied V2G amount.
func (m *Model) PendingDischarge() float64 { return m.staging.Pending() }

// UpdateStep advances the grid one tick: consumes any staged V2G discharge,
// nets it against the EV charging load, distributes the result across
// regions by capacity share and records the derived state.
func (m *Model) UpdateStep(now time.Time, chargingLoadKW float64) {
	dispatched := m.staging.Consume()
	netEV := chargingLoadKW - dispatched
	m.lastDispatchKW = dispatched
	m.lastTime = now
	hour := now.Hour()

	var totalKW, evKW, renewKW float64
	states := make(map[string]model.RegionState, len(m.regions))
	for _, id := range m.regionOrder {
		r := m.regions[id]
		share := 0.0
		if m.totalCapacity > 0 {
			share = r.CapacityKW / m.totalCapacity
		}
		st := model.RegionState{
			BaseLoadKW: r.BaseLoadProfile[hour],
			SolarKW:    r.SolarProfile[hour],
			WindKW:     r.WindProfile[hour],
			EVLoadKW:   netEV * share,
		}
		st.TotalLoadKW = st.BaseLoadKW + st.EVLoadKW
		if st.TotalLoadKW < 0 {
			st.TotalLoadKW = 0
		}
		if r.CapacityKW > 0 {
			st.LoadPercent = st.TotalLoadKW / r.CapacityKW * 100
		}
		renewable := st.SolarKW + st.WindKW
		if st.TotalLoadKW > 0 {
			st.RenewableRatio = clamp(renewable/st.TotalLoadKW*100, 0, 100)
		}
		st.CarbonIntensity = m.carbonIntensity(hour, st.RenewableRatio)

		r.Current = st
		states[id] = st
		totalKW += st.TotalLoadKW
		evKW += st.EVLoadKW
		renewKW += renewable
	}

	m.updateTransfers()
	m.currentPrice = m.priceAt(hour)
	m.history.push(tickSample{Time: now, Regions: states, TotalKW: totalKW, EVKW: evKW, RenewKW: renewKW})
}

// updateTransfers books inter-region exchange proportional to the load
// imbalance between neighbours, capped by line capacity.
func (m *Model) updateTransfers() {
	for _, conn := range m.connections {
		from, okF := m.regions[conn.From]
		to, okT := m.regions[conn.To]
		if !okF || !okT {
			continue
		}
		imbalance := from.Current.LoadPercent - to.Current.LoadPercent
		transfer := imbalance / 100 * conn.TransferCapacityKW
		conn.CurrentTransferKW = clamp(transfer, -conn.TransferCapacityKW, conn.TransferCapacityKW)
	}
}

func (m *Model) carbonIntensity(hour int, renewableRatio float64) float64 {
	intensity := m.cfg.CarbonBase * (100 - renewableRatio) / 100
	if hour >= 22 || hour <= 6 {
		intensity *= m.cfg.NightCarbonScale
	}
	return intensity
}

func (m *Model) priceAt(hour int) float64 {
	switch model.BandOf(hour, m.cfg.PeakHours, m.cfg.ValleyHours) {
	case model.BandPeak:
		return m.cfg.PeakPrice
	case model.BandValley:
		return m.cfg.ValleyPrice
	default:
		return m.cfg.NormalPrice
	}
}

// Snapshot returns the aggregated grid view. Renewable ratio and carbon
// intensity are capacity-weighted across regions.
func (m *Model) Snapshot() model.GridSnapshot {
	snap := model.GridSnapshot{
		Time:            m.lastTime,
		PeakHours:       append([]int(nil), m.cfg.PeakHours...),
		ValleyHours:     append([]int(nil), m.cfg.ValleyHours...),
		CurrentPrice:    m.currentPrice,
		V2GDispatchedKW: m.lastDispatchKW,
		TotalCapacityKW: m.totalCapacity,
		Regions:         make(map[string]model.RegionState, len(m.regions)),
		Connections:     make(map[string]model.Connection, len(m.connections)),
	}
	var weightedRenew, weightedCarbon float64
	for id, r := range m.regions {
		snap.Regions[id] = r.Current
		snap.TotalLoadKW += r.Current.TotalLoadKW
		snap.EVLoadKW += r.Current.EVLoadKW
		if m.totalCapacity > 0 {
			w := r.CapacityKW / m.totalCapacity
			weightedRenew += r.Current.RenewableRatio * w
			weightedCarbon += r.Current.CarbonIntensity * w
		}
	}
	for key, conn := range m.connections {
		snap.Connections[key] = *conn
	}
	snap.RenewableRatio = weightedRenew
	snap.CarbonIntensity = weightedCarbon
	if m.totalCapacity > 0 {
		snap.LoadPercent = snap.TotalLoadKW / m.totalCapacity * 100
	}
	return snap
}

// History returns up to n recorded samples as ordered series, oldest first.
// n <= 0 returns the full buffer.
func (m *Model) History(n int) TimeSeries { return m.history.view(n) }

// CurrentPrice returns the active time-of-use price.
func (m *Model) CurrentPrice() float64 { return m.currentPrice }

// RegionIDs returns the region ids in declaration order.
func (m *Model) RegionIDs() []string { return append([]string(nil), m.regionOrder...) }

// RegionalComparison pairs each region with its deviation from the
// capacity-weighted average load percentage.
func (m *Model) RegionalComparison() map[string]float64 {
	snap := m.Snapshot()
	out := make(map[string]float64, len(snap.Regions))
	for id, st := range snap.Regions {
		out[id] = st.LoadPercent - snap.LoadPercent
	}
	return out
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

// Default hourly profiles used when a region has no configured data. Base
// load follows a double-humped daily curve, solar a daylight bell, wind a
// mild nocturnal bias.
func defaultBaseProfile(hour int) float64 {
	base := 1000.0
	morning := 600 * math.Exp(-math.Pow(float64(hour)-8.5, 2)/8)
	evening := 800 * math.Exp(-math.Pow(float64(hour)-19.5, 2)/8)
	night := -300 * math.Exp(-math.Pow(float64(hour)-3.0, 2)/10)
	return base + morning + evening + night
}

func defaultSolarProfile(hour int) float64 {
	if hour < 6 || hour > 19 {
		return 0
	}
	return 400 * math.Sin(math.Pi*float64(hour-6)/13)
}

func defaultWindProfile(hour int) float64 {
	return 100 + 60*math.Cos(math.Pi*float64(hour)/12)
}
