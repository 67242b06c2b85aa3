package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gridpulse/evsim/core/model"
)

// vehicleSpec pairs battery size with rated range and charging power.
type vehicleSpec struct {
	batteryKWh  float64
	rangeKm     float64
	maxChargeKW float64
}

var vehicleCatalog = map[model.VehicleType]vehicleSpec{
	model.VehicleSedan:   {batteryKWh: 60, rangeKm: 400, maxChargeKW: 120},
	model.VehicleSUV:     {batteryKWh: 85, rangeKm: 480, maxChargeKW: 150},
	model.VehicleCompact: {batteryKWh: 40, rangeKm: 350, maxChargeKW: 60},
	model.VehicleLuxury:  {batteryKWh: 100, rangeKm: 550, maxChargeKW: 250},
	model.VehicleTruck:   {batteryKWh: 120, rangeKm: 500, maxChargeKW: 250},
}

var vehicleOrder = []model.VehicleType{
	model.VehicleSedan, model.VehicleSUV, model.VehicleCompact,
	model.VehicleLuxury, model.VehicleTruck,
}

var kindOrder = []model.UserKind{
	model.KindPrivate, model.KindTaxi, model.KindRideHailing, model.KindLogistics,
}

// socBuckets is the initial state-of-charge distribution: most users start
// mid-band, tails at both ends.
var socBuckets = []struct {
	prob     float64
	min, max float64
}{
	{0.15, 10, 30},
	{0.35, 30, 60},
	{0.35, 60, 80},
	{0.15, 80, 95},
}

func (e *Environment) buildUsers() {
	anchors := e.anchorPoints()
	for i := 0; i < e.cfg.UserCount; i++ {
		id := fmt.Sprintf("user_%d", i+1)
		u := e.newUser(id, anchors)
		e.users[id] = u
		e.userOrder = append(e.userOrder, id)
	}
}

func (e *Environment) newUser(id string, anchors []model.Position) *model.User {
	vt := vehicleOrder[e.rng.Intn(len(vehicleOrder))]
	spec := vehicleCatalog[vt]
	kind := kindOrder[e.rng.Intn(len(kindOrder))]
	soc := e.sampleSoC()
	profile := e.sampleProfile(kind, soc)

	u := &model.User{
		ID:                 id,
		Kind:               kind,
		Profile:            profile,
		VehicleType:        vt,
		Style:              e.sampleStyle(),
		BatteryCapacityKWh: spec.batteryKWh,
		MaxChargingPowerKW: spec.maxChargeKW,
		MaxRangeKm:         spec.rangeKm,
		ChargingEfficiency: 0.85 + e.rng.Float64()*0.1,
		SoC:                soc,
		Status:             model.UserIdle,
		Position:           e.samplePosition(anchors),
		TravelSpeedKmh:     e.sampleSpeed(kind, vt),
	}
	u.ClampSoC()
	e.applySensitivities(u)

	// Low-charge users start already on the road, mirroring a running city.
	travelProb := 0.2
	switch {
	case soc < 30:
		travelProb = 0.7
	case soc < 60:
		travelProb = 0.4
	}
	if e.rng.Float64() < travelProb {
		e.userSim.StartTrip(u, e.randomPoint())
	}
	return u
}

func (e *Environment) sampleSoC() float64 {
	roll := e.rng.Float64()
	acc := 0.0
	for _, b := range socBuckets {
		acc += b.prob
		if roll <= acc {
			return b.min + e.rng.Float64()*(b.max-b.min)
		}
	}
	last := socBuckets[len(socBuckets)-1]
	return last.min + e.rng.Float64()*(last.max-last.min)
}

// sampleProfile weights temperament by fleet kind; low charge shifts mass
// towards urgent.
func (e *Environment) sampleProfile(kind model.UserKind, soc float64) model.UserProfile {
	var weights [4]float64 // urgent, economic, flexible, anxious
	switch kind {
	case model.KindTaxi:
		weights = [4]float64{0.5, 0.1, 0.3, 0.1}
	case model.KindRideHailing:
		weights = [4]float64{0.4, 0.2, 0.3, 0.1}
	case model.KindLogistics, model.KindDelivery:
		weights = [4]float64{0.3, 0.4, 0.2, 0.1}
	default:
		weights = [4]float64{0.2, 0.3, 0.3, 0.2}
	}
	if soc < 30 {
		weights[0] += 0.2
	}
	profiles := [4]model.UserProfile{
		model.ProfileUrgent, model.ProfileEconomic,
		model.ProfileFlexible, model.ProfileAnxious,
	}
	total := weights[0] + weights[1] + weights[2] + weights[3]
	pick := e.rng.Float64() * total
	for i, w := range weights {
		pick -= w
		if pick <= 0 {
			return profiles[i]
		}
	}
	return profiles[len(profiles)-1]
}

func (e *Environment) sampleStyle() model.DrivingStyle {
	switch roll := e.rng.Float64(); {
	case roll < 0.6:
		return model.StyleNormal
	case roll < 0.85:
		return model.StyleAggressive
	default:
		return model.StyleEco
	}
}

func (e *Environment) sampleSpeed(kind model.UserKind, vt model.VehicleType) float64 {
	lo, hi := 30.0, 60.0
	switch {
	case kind == model.KindTaxi:
		lo, hi = 35, 70
	case kind == model.KindRideHailing:
		lo, hi = 35, 65
	case kind == model.KindLogistics:
		lo, hi = 30, 55
	case vt == model.VehicleLuxury:
		lo, hi = 40, 75
	case vt == model.VehicleCompact:
		lo, hi = 35, 65
	}
	return lo + e.rng.Float64()*(hi-lo)
}

func (e *Environment) applySensitivities(u *model.User) {
	uniform := func(lo, hi float64) float64 { return lo + e.rng.Float64()*(hi-lo) }
	switch u.Profile {
	case model.ProfileUrgent:
		u.TimeSensitivity = uniform(0.7, 0.9)
		u.PriceSensitivity = uniform(0.1, 0.3)
		u.FastChargePref = uniform(0.7, 0.95)
	case model.ProfileEconomic:
		u.TimeSensitivity = uniform(0.2, 0.4)
		u.PriceSensitivity = uniform(0.7, 0.9)
		u.FastChargePref = uniform(0.1, 0.4)
	case model.ProfileAnxious:
		u.TimeSensitivity = uniform(0.5, 0.7)
		u.PriceSensitivity = uniform(0.3, 0.5)
		u.RangeAnxiety = uniform(0.6, 0.9)
		u.FastChargePref = uniform(0.4, 0.7)
	default:
		u.TimeSensitivity = uniform(0.4, 0.6)
		u.PriceSensitivity = uniform(0.4, 0.6)
		u.FastChargePref = uniform(0.3, 0.6)
	}
	if u.RangeAnxiety == 0 {
		u.RangeAnxiety = uniform(0.1, 0.5)
	}
	u.PrefersFastCharger = u.FastChargePref > 0.6
}

// anchorPoints generates clustering centers: one central business district
// plus randomized secondary districts.
func (e *Environment) anchorPoints() []model.Position {
	b := e.cfg.MapBounds
	anchors := []model.Position{{
		Lat: (b.LatMin + b.LatMax) / 2,
		Lng: (b.LngMin + b.LngMax) / 2,
	}}
	n := 4 + e.rng.Intn(3)
	for i := 0; i < n; i++ {
		anchors = append(anchors, e.randomPoint())
	}
	return anchors
}

// samplePosition clusters 70% of users around anchors with gaussian spread,
// the rest uniformly over the map.
func (e *Environment) samplePosition(anchors []model.Position) model.Position {
	if e.rng.Float64() >= 0.7 {
		return e.randomPoint()
	}
	anchor := anchors[e.rng.Intn(len(anchors))]
	radius := e.rng.NormFloat64() * 0.03
	angle := e.rng.Float64() * 2 * math.Pi
	p := model.Position{
		Lat: anchor.Lat + radius*math.Cos(angle) + (e.rng.Float64()-0.5)*0.01,
		Lng: anchor.Lng + radius*math.Sin(angle) + (e.rng.Float64()-0.5)*0.01,
	}
	return e.clampToBounds(p)
}

func (e *Environment) randomPoint() model.Position {
	b := e.cfg.MapBounds
	return model.Position{
		Lat: b.LatMin + e.rng.Float64()*(b.LatMax-b.LatMin),
		Lng: b.LngMin + e.rng.Float64()*(b.LngMax-b.LngMin),
	}
}

func (e *Environment) clampToBounds(p model.Position) model.Position {
	b := e.cfg.MapBounds
	p.Lat = math.Min(math.Max(p.Lat, b.LatMin), b.LatMax)
	p.Lng = math.Min(math.Max(p.Lng, b.LngMin), b.LngMax)
	return p
}

func (e *Environment) buildChargers(regionIDs []string) {
	current := 1
	for s := 0; s < e.cfg.StationCount; s++ {
		stationID := fmt.Sprintf("station_%d", s+1)
		center := e.randomPoint()
		for i := 0; i < e.cfg.ChargersPerStation; i++ {
			id := fmt.Sprintf("charger_%d", current)
			c := e.newCharger(id, stationID, center)
			if len(regionIDs) > 0 {
				c.Region = regionIDs[(current-1)%len(regionIDs)]
			}
			e.chargers[id] = c
			e.chargerOrder = append(e.chargerOrder, id)
			current++
		}
	}
}

func (e *Environment) newCharger(id, stationID string, center model.Position) *model.Charger {
	c := &model.Charger{
		ID:        id,
		StationID: stationID,
		Status:    model.ChargerAvailable,
		Position: e.clampToBounds(model.Position{
			Lat: center.Lat + (e.rng.Float64()-0.5)*0.01,
			Lng: center.Lng + (e.rng.Float64()-0.5)*0.01,
		}),
		QueueCapacity: e.cfg.QueueCapacity,
	}
	switch roll := e.rng.Float64(); {
	case roll < e.cfg.SuperfastRatio:
		c.Type = model.ChargerSuperfast
		c.MaxPowerKW = 250 + e.rng.Float64()*150
		c.PriceMultiplier = 1.5
	case roll < e.cfg.SuperfastRatio+e.cfg.FastRatio:
		c.Type = model.ChargerFast
		c.MaxPowerKW = 60 + e.rng.Float64()*60
		c.PriceMultiplier = 1.2
	default:
		c.Type = model.ChargerNormal
		c.MaxPowerKW = 7 + e.rng.Float64()*13
		c.PriceMultiplier = 1.0
	}
	return c
}

// randSource exposes the package's derivation of a child generator so the
// environment and sub-simulators stay reproducible from a single seed.
func randSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
