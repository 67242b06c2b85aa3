package usersim

import (
	"math"
	"time"

	"github.com/gridpulse/evsim/core/model"
)

// StartTrip plans a route to dest and puts the user on the road. Routes are
// two to four intermediate waypoints with perpendicular jitter so travel is
// not a straight line.
func (s *Simulator) StartTrip(u *model.User, dest model.Position) {
	u.Destination = &dest
	u.Route = s.planRoute(u.Position, dest)
	u.Status = model.UserTraveling
	if u.TravelSpeedKmh <= 0 {
		u.TravelSpeedKmh = 30 + s.rng.Float64()*30
	}
	distKm := routeLengthKm(u.Position, u.Route)
	speed := u.TravelSpeedKmh
	if u.Manual {
		speed *= 2
	}
	u.TimeToDestMinutes = distKm / speed * 60
	if u.Manual {
		u.TimeToDestMinutes *= 0.3
	}
}

// RouteToCharger points the user at a charger and plans the trip.
func (s *Simulator) RouteToCharger(u *model.User, c *model.Charger) {
	u.TargetCharger = c.ID
	u.NeedsCharge = false
	s.StartTrip(u, c.Position)
}

func (s *Simulator) planRoute(from, to model.Position) []model.Position {
	n := 2 + s.rng.Intn(3)
	route := make([]model.Position, 0, n+1)
	dLat := to.Lat - from.Lat
	dLng := to.Lng - from.Lng
	length := math.Sqrt(dLat*dLat + dLng*dLng)
	for i := 1; i <= n; i++ {
		frac := float64(i) / float64(n+1)
		wp := model.Position{Lat: from.Lat + dLat*frac, Lng: from.Lng + dLng*frac}
		if length > 0 {
			// Offset perpendicular to the direct line.
			offset := (s.rng.Float64() - 0.5) * 0.2 * length
			wp.Lat += -dLng / length * offset
			wp.Lng += dLat / length * offset
		}
		route = append(route, wp)
	}
	return append(route, to)
}

func routeLengthKm(start model.Position, route []model.Position) float64 {
	total := 0.0
	prev := start
	for _, wp := range route {
		total += prev.DistanceKm(wp)
		prev = wp
	}
	return total
}

// pickDestination samples a hotspot weighted by area attractiveness for the
// user's kind at this hour, with positional jitter.
func (s *Simulator) pickDestination(u *model.User, now time.Time) model.Position {
	hour := now.Hour()
	weights := make([]float64, len(s.cfg.Hotspots))
	total := 0.0
	for i, h := range s.cfg.Hotspots {
		w := h.Weight
		switch h.Name {
		case "business":
			if hour >= 8 && hour <= 18 {
				w *= 1.6
			}
			if u.Kind == model.KindBusiness {
				w *= 1.5
			}
		case "residential":
			if hour >= 19 || hour <= 7 {
				w *= 1.8
			}
		case "industrial":
			if u.Kind == model.KindLogistics || u.Kind == model.KindDelivery {
				w *= 2.0
			}
		case "entertainment":
			if hour >= 18 && hour <= 23 {
				w *= 1.7
			}
			if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
				w *= 1.4
			}
		}
		weights[i] = w
		total += w
	}
	idx := 0
	if total > 0 {
		pick := s.rng.Float64() * total
		for i, w := range weights {
			pick -= w
			if pick <= 0 {
				idx = i
				break
			}
		}
	}
	pos := s.cfg.Hotspots[idx].Position
	pos.Lat += (s.rng.Float64() - 0.5) * 0.05
	pos.Lng += (s.rng.Float64() - 0.5) * 0.05
	return pos
}
