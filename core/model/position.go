package model

import "math"

// DegreeToKm converts a coordinate delta in degrees to an approximate
// distance in kilometers at mid latitudes.
const DegreeToKm = 111.0

// Position is a geographic coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceKm returns the approximate flat-earth distance to other in km.
func (p Position) DistanceKm(other Position) float64 {
	dLat := p.Lat - other.Lat
	dLng := p.Lng - other.Lng
	return math.Sqrt(dLat*dLat+dLng*dLng) * DegreeToKm
}

// DistanceSq returns the squared coordinate distance in degrees. Cheaper
// than DistanceKm when only ordering matters.
func (p Position) DistanceSq(other Position) float64 {
	dLat := p.Lat - other.Lat
	dLng := p.Lng - other.Lng
	return dLat*dLat + dLng*dLng
}
