package grid

import (
	"time"

	"github.com/gridpulse/evsim/core/model"
)

// tickSample is one recorded grid state.
type tickSample struct {
	Time    time.Time
	Regions map[string]model.RegionState
	TotalKW float64
	EVKW    float64
	RenewKW float64
}

// ringBuffer keeps the last capacity samples in insertion order.
type ringBuffer struct {
	samples []tickSample
	head    int
	size    int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{samples: make([]tickSample, capacity)}
}

func (r *ringBuffer) push(s tickSample) {
	r.samples[r.head] = s
	r.head = (r.head + 1) % len(r.samples)
	if r.size < len(r.samples) {
		r.size++
	}
}

// last returns up to n samples, oldest first. n <= 0 returns everything.
func (r *ringBuffer) last(n int) []tickSample {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]tickSample, 0, n)
	start := r.head - n
	if start < 0 {
		start += len(r.samples)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.samples[(start+i)%len(r.samples)])
	}
	return out
}

// TimeSeries is an ordered view over the recorded history.
type TimeSeries struct {
	Timestamps []time.Time
	TotalLoad  []float64
	EVLoad     []float64
	Renewable  []float64
	// Regional holds per-region derived series keyed by region id.
	Regional map[string]RegionSeries
}

// RegionSeries is the per-region slice view.
type RegionSeries struct {
	TotalLoad       []float64
	LoadPercent     []float64
	RenewableRatio  []float64
	CarbonIntensity []float64
}

func (r *ringBuffer) view(n int) TimeSeries {
	samples := r.last(n)
	ts := TimeSeries{Regional: make(map[string]RegionSeries)}
	for _, s := range samples {
		ts.Timestamps = append(ts.Timestamps, s.Time)
		ts.TotalLoad = append(ts.TotalLoad, s.TotalKW)
		ts.EVLoad = append(ts.EVLoad, s.EVKW)
		ts.Renewable = append(ts.Renewable, s.RenewKW)
		for id, st := range s.Regions {
			rs := ts.Regional[id]
			rs.TotalLoad = append(rs.TotalLoad, st.TotalLoadKW)
			rs.LoadPercent = append(rs.LoadPercent, st.LoadPercent)
			rs.RenewableRatio = append(rs.RenewableRatio, st.RenewableRatio)
			rs.CarbonIntensity = append(rs.CarbonIntensity, st.CarbonIntensity)
			ts.Regional[id] = rs
		}
	}
	return ts
}
