package rewards

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Comparison summarises coordinated vs uncoordinated load profiles for
// algorithm evaluation.
type Comparison struct {
	PeakReductionPct      float64 `json:"peak_reduction_pct"`
	LoadStdDevCoordinated float64 `json:"load_std_coordinated"`
	LoadStdDevBaseline    float64 `json:"load_std_uncoordinated"`
	RenewableSharePct     float64 `json:"renewable_share_pct"`
	BaselineRenewablePct  float64 `json:"baseline_renewable_share_pct"`
	CarbonSavingsKg       float64 `json:"carbon_savings_kg"`
}

// Compare derives the display statistics from a coordinated load profile
// and a synthesized uncoordinated one. Profiles shorter than each other
// are truncated to the common prefix.
func (e *Engine) Compare(coordinated, uncoordinated, renewableGen, carbonIntensity []float64, stepHours float64) Comparison {
	n := len(coordinated)
	if len(uncoordinated) < n {
		n = len(uncoordinated)
	}
	coordinated = coordinated[:n]
	uncoordinated = uncoordinated[:n]
	var c Comparison
	if n == 0 {
		return c
	}

	c.PeakReductionPct = PeakReduction(coordinated, uncoordinated)
	c.LoadStdDevCoordinated = stat.StdDev(coordinated, nil)
	c.LoadStdDevBaseline = stat.StdDev(uncoordinated, nil)
	c.RenewableSharePct = RenewableShare(coordinated, renewableGen)
	c.BaselineRenewablePct = RenewableShare(uncoordinated, renewableGen)

	if len(carbonIntensity) >= n && stepHours > 0 {
		baselineIntensity := make([]float64, n)
		loadKWh := make([]float64, n)
		for i := 0; i < n; i++ {
			baselineIntensity[i] = carbonIntensity[i] * e.cfg.UncoordinatedIntensityFactor
			loadKWh[i] = coordinated[i] * stepHours
		}
		c.CarbonSavingsKg = CarbonSavingsKg(carbonIntensity[:n], baselineIntensity, loadKWh)
	}
	return c
}

// PeakReduction returns the percentage reduction of the coordinated peak
// against the uncoordinated one.
func PeakReduction(coordinated, uncoordinated []float64) float64 {
	if len(coordinated) == 0 || len(uncoordinated) == 0 {
		return 0
	}
	maxCoord := maxOf(coordinated)
	maxUncoord := maxOf(uncoordinated)
	if maxUncoord == 0 {
		if maxCoord == 0 {
			return 100
		}
		return math.Inf(-1)
	}
	return (maxUncoord - maxCoord) / maxUncoord * 100
}

// RenewableShare returns the percentage of consumed energy covered by
// renewable generation, counting at each step only what the load can
// absorb.
func RenewableShare(load, generation []float64) float64 {
	n := len(load)
	if len(generation) < n {
		n = len(generation)
	}
	if n == 0 {
		return 0
	}
	var consumed, used float64
	for i := 0; i < n; i++ {
		consumed += load[i]
		used += math.Min(load[i], generation[i])
	}
	if consumed == 0 {
		return 0
	}
	return used / consumed * 100
}

// CarbonSavingsKg integrates the intensity delta over the load profile.
// All three slices must have equal length.
func CarbonSavingsKg(currentIntensity, baselineIntensity, loadKWh []float64) float64 {
	if len(currentIntensity) != len(baselineIntensity) || len(currentIntensity) != len(loadKWh) {
		return 0
	}
	var grams float64
	for i := range loadKWh {
		grams += (baselineIntensity[i] - currentIntensity[i]) * loadKWh[i]
	}
	return grams / 1000
}

func maxOf(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}
