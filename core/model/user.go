package model

// UserStatus describes a user's position in the charge/travel lifecycle.
type UserStatus int

const (
	UserIdle UserStatus = iota
	UserTraveling
	UserWaiting
	UserCharging
	UserPostCharge
)

// String returns the lifecycle state name.
func (s UserStatus) String() string {
	switch s {
	case UserIdle:
		return "idle"
	case UserTraveling:
		return "traveling"
	case UserWaiting:
		return "waiting"
	case UserCharging:
		return "charging"
	case UserPostCharge:
		return "post_charge"
	default:
		return "unknown"
	}
}

// VehicleType identifies the vehicle class driving battery and consumption
// characteristics.
type VehicleType string

const (
	VehicleSedan   VehicleType = "sedan"
	VehicleSUV     VehicleType = "suv"
	VehicleCompact VehicleType = "compact"
	VehicleLuxury  VehicleType = "luxury"
	VehicleTruck   VehicleType = "truck"
)

// UserProfile captures charging temperament.
type UserProfile string

const (
	ProfileUrgent   UserProfile = "urgent"
	ProfileEconomic UserProfile = "economic"
	ProfileFlexible UserProfile = "flexible"
	ProfileAnxious  UserProfile = "anxious"
)

// UserKind distinguishes commercial fleets from private drivers.
type UserKind string

const (
	KindPrivate     UserKind = "private"
	KindTaxi        UserKind = "taxi"
	KindRideHailing UserKind = "ride_hailing"
	KindLogistics   UserKind = "logistics"
	KindDelivery    UserKind = "delivery"
	KindBusiness    UserKind = "business"
)

// DrivingStyle modulates travel energy consumption.
type DrivingStyle string

const (
	StyleNormal     DrivingStyle = "normal"
	StyleAggressive DrivingStyle = "aggressive"
	StyleEco        DrivingStyle = "eco"
)

// User is a simulated EV driver. Users are created at simulation start and
// recycled across charge cycles, never destroyed.
type User struct {
	ID          string       `json:"user_id"`
	Kind        UserKind     `json:"user_type"`
	Profile     UserProfile  `json:"user_profile"`
	VehicleType VehicleType  `json:"vehicle_type"`
	Style       DrivingStyle `json:"driving_style"`

	BatteryCapacityKWh float64 `json:"battery_capacity"`
	MaxChargingPowerKW float64 `json:"max_charging_power"`
	MaxRangeKm         float64 `json:"max_range"`
	ChargingEfficiency float64 `json:"charging_efficiency"`

	// SoC is the state of charge in percent, clamped to [0,100].
	SoC            float64 `json:"soc"`
	CurrentRangeKm float64 `json:"current_range"`

	Status   UserStatus `json:"status"`
	Position Position   `json:"current_position"`

	// Route is consumed front to back while traveling.
	Route             []Position `json:"-"`
	Destination       *Position  `json:"destination,omitempty"`
	TravelSpeedKmh    float64    `json:"travel_speed"`
	TimeToDestMinutes float64    `json:"time_to_destination"`

	TargetCharger string `json:"target_charger,omitempty"`
	NeedsCharge   bool   `json:"needs_charge_decision"`

	// Sensitivities in [0,1].
	TimeSensitivity    float64 `json:"time_sensitivity"`
	PriceSensitivity   float64 `json:"price_sensitivity"`
	RangeAnxiety       float64 `json:"range_anxiety"`
	FastChargePref     float64 `json:"fast_charging_preference"`
	PrefersFastCharger bool    `json:"prefers_fast_charging"`

	// Manual/reservation overrides. A locked user stays pinned to its
	// target charger regardless of later scheduling output.
	Manual       bool    `json:"manual_decision"`
	ManualLocked bool    `json:"manual_decision_locked"`
	ManualTarget float64 `json:"manual_target_soc,omitempty"`

	// Active charging session bookkeeping, valid only while charging.
	TargetSoC  float64 `json:"target_soc,omitempty"`
	InitialSoC float64 `json:"initial_soc,omitempty"`

	PostChargeTicks int `json:"-"`
}

// ClampSoC keeps the state of charge within [0,100] and refreshes range.
func (u *User) ClampSoC() {
	if u.SoC < 0 {
		u.SoC = 0
	}
	if u.SoC > 100 {
		u.SoC = 100
	}
	u.CurrentRangeKm = u.MaxRangeKm * u.SoC / 100
}

// SoCDeficit is the gap between full and current charge.
func (u *User) SoCDeficit() float64 { return 100 - u.SoC }

// Active reports whether the user is currently bound to a charger, either
// charging or queued.
func (u *User) Active() bool {
	return u.Status == UserCharging || u.Status == UserWaiting
}
