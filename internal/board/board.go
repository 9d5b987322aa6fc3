// Package board defines the hardware collaborator the altitude loop runs
// against and stages one cycle's altitude.Input from it.
package board

import (
	"althold/internal/altitude"
)

// Board is the synchronous, non-blocking sensor/actuator surface. Every
// method must return promptly; drivers sample in the background and return
// their latest values.
type Board interface {
	// Micros is a free-running microsecond clock.
	Micros() uint32

	BaroPresent() bool
	// BaroAltitude returns the latest averaged raw baro altitude (cm).
	BaroAltitude() (cm float64, ok bool)

	RangePresent() bool
	// RangeDistance returns the latest range reading (cm); ok is false when
	// out of range.
	RangeDistance() (cm int32, ok bool)

	// Attitude returns roll and pitch in centi-degrees.
	Attitude() (roll, pitch int32)

	Armed() bool

	// TakeAccel moves the board's pending vertical acceleration samples
	// into acc.
	TakeAccel(acc *altitude.AccelAccumulator)

	// ApplyThrust hands the thrust correction to motor mixing.
	ApplyThrust(correction int32)

	// ShowStatus drives the status indicators.
	ShowStatus(armed, holding bool)

	Close() error
}

// Command is the pilot/autopilot request for the vertical channel.
type Command struct {
	Mode           altitude.ControlMode
	TargetAltitude int32 // cm
	TargetVelocity int32 // cm/s
}

// Sensors reports which altitude sensors the board initialized.
func Sensors(b Board) altitude.Sensors {
	return altitude.Sensors{Baro: b.BaroPresent(), Range: b.RangePresent()}
}

// Stager builds each cycle's input from a board. It owns the accelerometer
// accumulation window and carries the last good baro reading across
// transient baro failures.
type Stager struct {
	b        Board
	acc      altitude.AccelAccumulator
	lastBaro float64
	haveBaro bool
}

func NewStager(b Board) *Stager {
	return &Stager{b: b}
}

// Accumulator is the window the estimator consumes.
func (s *Stager) Accumulator() *altitude.AccelAccumulator { return &s.acc }

// BaroReady reports whether at least one baro reading has been seen.
func (s *Stager) BaroReady() bool { return s.haveBaro }

// Stage reads the board once and builds the cycle's input. Pending
// accelerometer samples are moved into the accumulator.
func (s *Stager) Stage(cmd Command) altitude.Input {
	b := s.b
	in := altitude.Input{
		Timestamp:      b.Micros(),
		Armed:          b.Armed(),
		RangeDistance:  altitude.RangeOutOfRange,
		Mode:           cmd.Mode,
		TargetAltitude: cmd.TargetAltitude,
		TargetVelocity: cmd.TargetVelocity,
	}
	if alt, ok := b.BaroAltitude(); ok {
		s.lastBaro = alt
		s.haveBaro = true
	}
	in.BaroAltitude = s.lastBaro
	in.BaroPending = b.BaroPresent() && !s.haveBaro
	if d, ok := b.RangeDistance(); ok {
		in.RangeDistance = d
	}
	in.RollCdeg, in.PitchCdeg = b.Attitude()
	b.TakeAccel(&s.acc)
	return in
}
