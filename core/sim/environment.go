// Package sim hosts the tick loop: it owns the user and charger fleets,
// routes scheduling decisions into them, advances the grid and scores every
// tick through the reward engine.
package sim

import (
	"math/rand"
	"time"

	"github.com/gridpulse/evsim/core/chargersim"
	"github.com/gridpulse/evsim/core/grid"
	"github.com/gridpulse/evsim/core/logger"
	"github.com/gridpulse/evsim/core/metrics"
	"github.com/gridpulse/evsim/core/model"
	"github.com/gridpulse/evsim/core/rewards"
	"github.com/gridpulse/evsim/core/strategy"
	"github.com/gridpulse/evsim/core/usersim"
	"github.com/gridpulse/evsim/internal/eventbus"
)

// ReservationProvider supplies externally booked charging slots. Due
// assignments override everything else and lock the user to the charger.
type ReservationProvider interface {
	Due(now time.Time) model.Decisions
}

// SessionEvent is published on the event bus when a charging session ends.
type SessionEvent struct {
	Session model.ChargingSession
}

// TickEvent is published on the event bus after every simulation step.
type TickEvent struct {
	Result metrics.TickResult
}

// Outcome is what one simulation step yields.
type Outcome struct {
	Rewards  rewards.Rewards
	Snapshot *model.Snapshot
	Sessions []model.ChargingSession
	Done     bool
}

// Environment drives the world one tick at a time. It is single threaded:
// callers alternate Snapshot/Decide/Step from one goroutine.
type Environment struct {
	cfg Config
	log logger.Logger
	rng *rand.Rand

	users        map[string]*model.User
	userOrder    []string
	chargers     map[string]*model.Charger
	chargerOrder []string

	grid       *grid.Model
	userSim    *usersim.Simulator
	chargerSim *chargersim.Simulator
	rewardEng  *rewards.Engine

	reservations ReservationProvider
	sink         metrics.Sink
	bus          eventbus.EventBus

	start   time.Time
	now     time.Time
	history []*model.Snapshot
}

// New assembles the environment and populates the world. The grid model is
// injected so its configuration stays independent.
func New(cfg Config, g *grid.Model, userSim *usersim.Simulator, chargerSim *chargersim.Simulator, eng *rewards.Engine, log logger.Logger) (*Environment, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Environment{
		cfg:        cfg,
		log:        log,
		rng:        randSource(cfg.Seed),
		grid:       g,
		userSim:    userSim,
		chargerSim: chargerSim,
		rewardEng:  eng,
		sink:       metrics.NopSink{},
	}
	e.Reset()
	return e, nil
}

// UseReservations attaches a reservation source.
func (e *Environment) UseReservations(p ReservationProvider) { e.reservations = p }

// UseSink attaches a metrics sink; nil restores the no-op sink.
func (e *Environment) UseSink(s metrics.Sink) {
	if s == nil {
		s = metrics.NopSink{}
	}
	e.sink = s
}

// UseBus attaches an event bus for session and tick events.
func (e *Environment) UseBus(b eventbus.EventBus) { e.bus = b }

// Reset rebuilds the world from the configured seed.
func (e *Environment) Reset() {
	e.rng = randSource(e.cfg.Seed)
	e.users = make(map[string]*model.User, e.cfg.UserCount)
	e.userOrder = e.userOrder[:0]
	e.chargers = make(map[string]*model.Charger, e.cfg.StationCount*e.cfg.ChargersPerStation)
	e.chargerOrder = e.chargerOrder[:0]
	e.grid.Reset()

	e.buildUsers()
	e.buildChargers(e.grid.RegionIDs())

	e.start = e.cfg.startTime()
	e.now = e.start
	e.history = nil
	e.grid.UpdateStep(e.now, 0)
	e.log.Infof("environment ready: %d users, %d chargers across %d stations",
		len(e.users), len(e.chargers), e.cfg.StationCount)
}

// Now returns the current simulation time.
func (e *Environment) Now() time.Time { return e.now }

// Snapshot captures the whole world as immutable value copies.
func (e *Environment) Snapshot() *model.Snapshot {
	snap := &model.Snapshot{
		Time:     e.now,
		Users:    make([]model.User, 0, len(e.userOrder)),
		Chargers: make([]model.Charger, 0, len(e.chargerOrder)),
		Grid:     e.grid.Snapshot(),
	}
	for _, id := range e.userOrder {
		u := *e.users[id]
		u.Route = append([]model.Position(nil), u.Route...)
		snap.Users = append(snap.Users, u)
	}
	for _, id := range e.chargerOrder {
		c := *e.chargers[id]
		c.Queue = append([]string(nil), c.Queue...)
		snap.Chargers = append(snap.Chargers, c)
	}
	return snap
}

// History returns the bounded snapshot history, oldest first. The returned
// slice must not be mutated.
func (e *Environment) History() []*model.Snapshot { return e.history }

// Step advances the world one tick. Algorithmic decisions route idle users;
// manual decisions may interrupt active ones and lock the target. A positive
// v2gRequestMW stages a discharge that nets against this tick's EV load.
func (e *Environment) Step(decisions, manual model.Decisions, v2gRequestMW float64, meta strategy.Metadata) (Outcome, error) {
	if e.reservations != nil {
		for userID, chargerID := range e.reservations.Due(e.now) {
			if manual == nil {
				manual = model.Decisions{}
			}
			manual[userID] = chargerID
		}
	}
	e.applyDecisions(decisions, manual)

	dt := float64(e.cfg.TimeStepMinutes)
	next := e.now.Add(time.Duration(e.cfg.TimeStepMinutes) * time.Minute)

	for _, id := range e.userOrder {
		e.userSim.Step(e.users[id], next, dt)
	}
	e.enqueueArrivals()

	if v2gRequestMW > 0 {
		if err := e.grid.StageDischarge(v2gRequestMW * 1000); err != nil {
			return Outcome{}, err
		}
	}

	step := e.chargerSim.Step(e.chargers, e.users, next, dt, e.grid.CurrentPrice())
	for i := range step.Completed {
		s := &step.Completed[i]
		if u, ok := e.users[s.UserID]; ok {
			u.PostChargeTicks = e.userSim.PostChargeHold(u)
		}
		if err := e.sink.RecordSession(*s); err != nil {
			e.log.Warnf("session sink: %v", err)
		}
		if e.bus != nil {
			e.bus.Publish(SessionEvent{Session: *s})
		}
	}

	e.grid.UpdateStep(next, step.EVLoadKW)
	e.now = next

	snap := e.Snapshot()
	rw := e.rewardEng.Compute(snap, e.history)
	e.pushHistory(snap)

	out := Outcome{
		Rewards:  rw,
		Snapshot: snap,
		Sessions: step.Completed,
		Done:     !e.now.Before(e.start.AddDate(0, 0, e.cfg.SimulationDays)),
	}

	tick := metrics.TickResult{
		Time:              e.now,
		Algorithm:         meta.Algorithm,
		Assignments:       meta.Assignments,
		SessionsCompleted: len(step.Completed),
		Rewards:           rw,
		Grid:              snap.Grid,
	}
	if err := e.sink.RecordTick(tick); err != nil {
		e.log.Warnf("tick sink: %v", err)
	}
	if e.bus != nil {
		e.bus.Publish(TickEvent{Result: tick})
	}
	return out, nil
}

// applyDecisions routes users to chargers. Manual entries win, may interrupt
// an active session and pin the user; algorithmic entries only move users
// that are free.
func (e *Environment) applyDecisions(decisions, manual model.Decisions) {
	for userID, chargerID := range manual {
		u, okU := e.users[userID]
		c, okC := e.chargers[chargerID]
		if !okU || !okC {
			e.log.Warnf("manual decision dropped: %s -> %s not found", userID, chargerID)
			continue
		}
		if c.Status == model.ChargerFailure {
			e.log.Warnf("manual decision dropped: charger %s is failed", chargerID)
			continue
		}
		if u.TargetCharger == chargerID && (u.Active() || u.Status == model.UserTraveling) {
			u.Manual = true
			u.ManualLocked = true
			u.ManualTarget = e.cfg.ManualTargetSoC
			continue
		}
		e.release(u)
		u.Manual = true
		u.ManualLocked = true
		u.ManualTarget = e.cfg.ManualTargetSoC
		e.userSim.RouteToCharger(u, c)
	}

	for userID, chargerID := range decisions {
		if _, overridden := manual[userID]; overridden {
			continue
		}
		u, okU := e.users[userID]
		c, okC := e.chargers[chargerID]
		if !okU || !okC || c.Status == model.ChargerFailure {
			continue
		}
		if u.ManualLocked || u.Active() || u.Status == model.UserPostCharge {
			continue
		}
		if u.TargetCharger == chargerID && u.Status == model.UserTraveling {
			continue
		}
		e.userSim.RouteToCharger(u, c)
	}
}

// release detaches a user from its current charger binding, freeing the
// point or the queue slot.
func (e *Environment) release(u *model.User) {
	if c, ok := e.chargers[u.TargetCharger]; ok {
		switch u.Status {
		case model.UserCharging:
			if c.CurrentUser == u.ID {
				c.Status = model.ChargerAvailable
				c.CurrentUser = ""
			}
		case model.UserWaiting:
			c.RemoveFromQueue(u.ID)
		}
	}
	u.TargetCharger = ""
}

// enqueueArrivals moves freshly arrived users into their charger's queue.
// Locked users force-insert at the front and may exceed capacity by one;
// everyone else is rejected from a full or failed charger.
func (e *Environment) enqueueArrivals() {
	for _, id := range e.userOrder {
		u := e.users[id]
		if u.Status != model.UserWaiting || u.TargetCharger == "" {
			continue
		}
		c, ok := e.chargers[u.TargetCharger]
		if !ok {
			u.Status = model.UserIdle
			u.TargetCharger = ""
			continue
		}
		if c.InQueue(u.ID) || c.CurrentUser == u.ID {
			continue
		}
		switch {
		case u.ManualLocked:
			c.Queue = append([]string{u.ID}, c.Queue...)
		case c.Status == model.ChargerFailure || c.QueueFull():
			e.log.Debugf("user %s turned away from %s (full or failed)", u.ID, c.ID)
			u.Status = model.UserIdle
			u.TargetCharger = ""
			u.NeedsCharge = true
			u.Manual = false
		default:
			c.Queue = append(c.Queue, u.ID)
		}
	}
}

// pushHistory appends the snapshot, evicting the oldest beyond the window.
func (e *Environment) pushHistory(snap *model.Snapshot) {
	e.history = append(e.history, snap)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
}
