// Package app assembles the simulation from configuration and runs the
// tick loop.
package app

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/gridpulse/evsim/config"
	"github.com/gridpulse/evsim/core/chargersim"
	"github.com/gridpulse/evsim/core/grid"
	coremetrics "github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/core/rewards"
	"github.com/gridpulse/evsim/core/scheduler"
	"github.com/gridpulse/evsim/core/sim"
	"github.com/gridpulse/evsim/core/strategy"
	"github.com/gridpulse/evsim/core/usersim"
	"github.com/gridpulse/evsim/infra/logger"
	"github.com/gridpulse/evsim/infra/metrics"
	"github.com/gridpulse/evsim/infra/mqtt"
	"github.com/gridpulse/evsim/infra/store"
	"github.com/gridpulse/evsim/internal/eventbus"
)

// Service orchestrates the environment, scheduler and sinks.
type Service struct {
	cfg *config.Config
	log logger.Logger

	env   *sim.Environment
	sched *scheduler.Scheduler
	bus   *eventbus.Bus

	qtables   *store.FileQTableStore
	publisher *mqtt.SessionPublisher

	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	rng := rand.New(rand.NewSource(cfg.Environment.Seed))

	gridModel, err := grid.New(cfg.Grid, logger.New("grid"))
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	userSim := usersim.New(cfg.Users, logger.New("users"), rng)
	chargerSim := chargersim.New(cfg.Chargers, logger.New("chargers"), rng)
	rewardEng, err := rewards.New(cfg.Rewards, logger.New("rewards"))
	if err != nil {
		return nil, fmt.Errorf("rewards: %w", err)
	}
	env, err := sim.New(cfg.Environment, gridModel, userSim, chargerSim, rewardEng, logger.New("environment"))
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	sched, err := scheduler.New(cfg.Scheduler, logger.New("scheduler"), rng)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	sched.ApplyLabel(cfg.StrategyLabel)

	svc := &Service{
		cfg:         cfg,
		log:         logg,
		env:         env,
		sched:       sched,
		bus:         eventbus.New(),
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
	env.UseBus(svc.bus)

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	if len(sinks) == 1 {
		env.UseSink(sinks[0])
	} else if len(sinks) > 1 {
		env.UseSink(metrics.NewMultiSink(sinks...))
	}

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewSessionPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
		go svc.forwardSessions()
	}

	if cfg.QTablePath != "" {
		svc.qtables = store.NewFileQTableStore(cfg.QTablePath)
		if err := sched.LoadTables(svc.qtables); err != nil {
			logg.Warnf("qtable load: %v", err)
		}
	}
	return svc, nil
}

// forwardSessions relays session events from the bus to the MQTT broker.
func (s *Service) forwardSessions() {
	for ev := range s.bus.Subscribe() {
		if se, ok := ev.(sim.SessionEvent); ok {
			if err := s.publisher.RecordSession(se.Session); err != nil {
				s.log.Debugf("session forward: %v", err)
			}
		}
	}
}

// Tick runs one simulation step: decide, apply, advance, learn.
func (s *Service) Tick() (sim.Outcome, error) {
	snap := s.env.Snapshot()

	prefs := strategy.Preferences{Mode: s.sched.Mode()}
	var v2gRequestMW float64
	if prefs.Mode == strategy.ModeV2G && snap.Grid.Band() == model.BandPeak {
		v2gRequestMW = s.cfg.V2GPeakMW
		prefs.V2GActiveKW = v2gRequestMW * 1000
	}

	decisions, meta := s.sched.Decide(snap, nil, prefs)
	out, err := s.env.Step(decisions, nil, v2gRequestMW, meta)
	if err != nil {
		return out, err
	}
	s.sched.Learn(out.Snapshot)
	return out, nil
}

// Run steps the simulation until it completes or the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	day := 0
	for {
		select {
		case <-ctx.Done():
			return s.saveTables()
		default:
		}
		out, err := s.Tick()
		if err != nil {
			return err
		}
		if d := s.env.Now().YearDay(); d != day {
			day = d
			s.log.Infof("simulated day %s: total reward %.3f (%s)",
				s.env.Now().Format("2006-01-02"), out.Rewards.Total, s.sched.Algorithm())
		}
		if out.Done {
			s.log.Infof("simulation finished at %s", s.env.Now())
			return s.saveTables()
		}
	}
}

func (s *Service) saveTables() error {
	if s.qtables == nil {
		return nil
	}
	if err := s.sched.SaveTables(s.qtables); err != nil {
		return fmt.Errorf("qtable save: %w", err)
	}
	return nil
}

// Environment exposes the running environment for inspection commands.
func (s *Service) Environment() *sim.Environment { return s.env }

// Close releases broker connections and the event bus.
func (s *Service) Close() error {
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Close()
	}
	return nil
}
