package altitude

import "fmt"

// FusionMode says which source currently defines the fused altitude.
type FusionMode int

const (
	// FusionBaro: offset-corrected baro altitude.
	FusionBaro FusionMode = iota
	// FusionRange: range sensor in range and pointing down.
	FusionRange
	// FusionTransition: range just lost, blending from the range value toward baro.
	FusionTransition
)

func (m FusionMode) String() string {
	switch m {
	case FusionBaro:
		return "BARO"
	case FusionRange:
		return "RANGE"
	case FusionTransition:
		return "TRANSITION"
	default:
		return fmt.Sprintf("FusionMode(%d)", int(m))
	}
}

// Authority says whether the vehicle can currently produce vertical thrust.
type Authority int

const (
	AuthorityActive Authority = iota
	// AuthorityLost: tilt beyond the authority threshold, output forced to 0.
	AuthorityLost
)

func (a Authority) String() string {
	switch a {
	case AuthorityActive:
		return "ACTIVE"
	case AuthorityLost:
		return "LOST"
	default:
		return fmt.Sprintf("Authority(%d)", int(a))
	}
}

// Health reports local degradations. None of them is fatal.
type Health int

const (
	HealthOK Health = iota
	// HealthSensorUnavailable: no barometer, or no reading from it yet.
	// Altitude reads 0 and the position loop is disabled.
	HealthSensorUnavailable
	// HealthStaleCycle: elapsed time exceeded the stale limit; the cycle's
	// integration was skipped and previous estimates held.
	HealthStaleCycle
)

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "OK"
	case HealthSensorUnavailable:
		return "SENSOR_UNAVAILABLE"
	case HealthStaleCycle:
		return "STALE_CYCLE"
	default:
		return fmt.Sprintf("Health(%d)", int(h))
	}
}

// ControlMode selects the outer loop behavior.
type ControlMode int

const (
	// ModePosition: hold TargetAltitude through the position loop.
	ModePosition ControlMode = iota
	// ModeVelocity: TargetVelocity feeds the velocity loop directly.
	ModeVelocity
)

func (m ControlMode) String() string {
	switch m {
	case ModePosition:
		return "POSITION"
	case ModeVelocity:
		return "VELOCITY"
	default:
		return fmt.Sprintf("ControlMode(%d)", int(m))
	}
}

// ParseControlMode accepts the String() forms, case-sensitive.
func ParseControlMode(s string) (ControlMode, error) {
	switch s {
	case "POSITION", "":
		return ModePosition, nil
	case "VELOCITY":
		return ModeVelocity, nil
	default:
		return 0, fmt.Errorf("altitude: unknown control mode %q", s)
	}
}

// State is the estimator's persistent state. It is created zeroed
// (disarmed, no baseline) and only ever mutated by Estimator.Update.
type State struct {
	Initialized            bool
	PreviousCycleTimestamp uint32 // µs

	FusedAltitude         float64 // cm
	PreviousFusedAltitude float64 // cm

	BaroAltitude float64 // cm, relative to BaroBaseline while armed
	BaroBaseline float64 // cm, raw baro altitude captured on arming

	AccelDerivedAltitude float64 // cm
	AccelDerivedVelocity float64 // cm/s

	RangeToBaroOffset float64 // cm
	RangeFusionBlend  float64 // 0..1
	// Range-side value of the transition blend: the last trusted range
	// altitude, or a live fading reading.
	RangeReference float64 // cm
	FusionMode     FusionMode

	WasArmedPreviousCycle bool

	// Mean earth-frame vertical acceleration of the last processed window,
	// accelerometer counts with gravity removed.
	VerticalAcceleration         float64
	PreviousVerticalAcceleration float64

	// Velocity before the vario deadband, clamped; this is what the
	// controller tracks.
	Velocity int32 // cm/s
	// Velocity after the vario deadband.
	Vario int32 // cm/s
}
