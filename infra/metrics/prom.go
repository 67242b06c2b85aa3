package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/model"
)

// PromSink exposes per-tick simulation results as Prometheus metrics.
type PromSink struct {
	totalReward      prometheus.Gauge
	userSatisfaction prometheus.Gauge
	operatorProfit   prometheus.Gauge
	gridFriendliness prometheus.Gauge

	gridLoad       prometheus.Gauge
	renewableRatio prometheus.Gauge
	evLoad         prometheus.Gauge
	v2gDispatched  prometheus.Gauge
	carbon         prometheus.Gauge

	sessions    *prometheus.CounterVec
	assignments prometheus.Counter
}

// NewPromSink registers the simulation metrics on the default Prometheus
// registerer. The HTTP server is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		totalReward:      newGauge("sim_total_reward", "Combined reward of the last tick"),
		userSatisfaction: newGauge("sim_user_satisfaction", "User satisfaction component of the last tick"),
		operatorProfit:   newGauge("sim_operator_profit", "Operator profit component of the last tick"),
		gridFriendliness: newGauge("sim_grid_friendliness", "Grid friendliness component of the last tick"),
		gridLoad:         newGauge("grid_load_percent", "Aggregated grid load percentage"),
		renewableRatio:   newGauge("grid_renewable_ratio", "Capacity weighted renewable ratio in percent"),
		evLoad:           newGauge("grid_ev_load_kw", "EV charging load on the grid in kW"),
		v2gDispatched:    newGauge("grid_v2g_dispatched_kw", "V2G discharge applied this tick in kW"),
		carbon:           newGauge("grid_carbon_intensity", "Capacity weighted carbon intensity in g/kWh"),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_sessions_total",
			Help: "Completed charging sessions by termination reason",
		}, []string{"reason", "manual"}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_assignments_total",
			Help: "Scheduling assignments issued",
		}),
	}

	gauges := []*prometheus.Gauge{
		&s.totalReward, &s.userSatisfaction, &s.operatorProfit, &s.gridFriendliness,
		&s.gridLoad, &s.renewableRatio, &s.evLoad, &s.v2gDispatched, &s.carbon,
	}
	for _, g := range gauges {
		if err := reg.Register(*g); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			*g = are.ExistingCollector.(prometheus.Gauge)
		}
	}
	if err := reg.Register(s.sessions); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		s.sessions = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(s.assignments); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		s.assignments = are.ExistingCollector.(prometheus.Counter)
	}
	return s, nil
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

// RecordTick updates the gauges from the tick result.
func (s *PromSink) RecordTick(t coremetrics.TickResult) error {
	s.totalReward.Set(t.Rewards.Total)
	s.userSatisfaction.Set(t.Rewards.UserSatisfaction)
	s.operatorProfit.Set(t.Rewards.OperatorProfit)
	s.gridFriendliness.Set(t.Rewards.GridFriendliness)
	s.gridLoad.Set(t.Grid.LoadPercent)
	s.renewableRatio.Set(t.Grid.RenewableRatio)
	s.evLoad.Set(t.Grid.EVLoadKW)
	s.v2gDispatched.Set(t.Grid.V2GDispatchedKW)
	s.carbon.Set(t.Grid.CarbonIntensity)
	s.assignments.Add(float64(t.Assignments))
	return nil
}

// RecordSession counts the completed session.
func (s *PromSink) RecordSession(sess model.ChargingSession) error {
	manual := "false"
	if sess.Manual {
		manual = "true"
	}
	s.sessions.WithLabelValues(sess.Reason.String(), manual).Inc()
	return nil
}
