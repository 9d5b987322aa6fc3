package altitude

import (
	"fmt"
	"time"
)

// RangeOutOfRange is the distance reported when the range sensor has no reading.
const RangeOutOfRange int32 = -1

// Sensors declares which altitude sensors initialized at boot.
type Sensors struct {
	Baro  bool
	Range bool
}

// Input is everything one cycle consumes, pre-staged by the caller.
type Input struct {
	Timestamp uint32 // µs, free-running, wraps
	Armed     bool

	BaroAltitude  float64 // cm, raw (standard atmosphere), unused when the baro is absent
	// BaroPending is set while a present baro has not produced its first
	// reading; BaroAltitude is then meaningless.
	BaroPending   bool
	RangeDistance int32   // cm or RangeOutOfRange

	RollCdeg  int32
	PitchCdeg int32

	Mode           ControlMode
	TargetAltitude int32 // cm, ModePosition
	TargetVelocity int32 // cm/s, ModeVelocity
}

// Tilt is the larger of |roll| and |pitch|, in centi-degrees.
func (in Input) Tilt() int32 {
	r, p := in.RollCdeg, in.PitchCdeg
	if r < 0 {
		r = -r
	}
	if p < 0 {
		p = -p
	}
	if r > p {
		return r
	}
	return p
}

type cycleKind int

const (
	cycleInitial cycleKind = iota
	cycleRateLimited
	cycleStale
	cycleProcessed
)

// Estimate is the estimator's per-cycle product.
type Estimate struct {
	Altitude         float64 // fused, cm
	InertialAltitude float64 // cm
	Velocity         int32   // cm/s, clamped
	Vario            int32   // cm/s, clamped and deadbanded

	VerticalAcceleration         float64
	PreviousVerticalAcceleration float64

	Elapsed time.Duration
}

// Estimator fuses baro, range and accelerometer into altitude and vertical
// velocity. Not safe for concurrent use.
type Estimator struct {
	cfg     Config
	sensors Sensors
	st      State
}

func NewEstimator(cfg Config, sensors Sensors) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, sensors: sensors}, nil
}

// State returns a copy of the persistent state.
func (e *Estimator) State() State { return e.st }

// Update runs one cycle. acc is consumed and cleared unless the cycle is
// rate-limited.
func (e *Estimator) Update(in Input, acc *AccelAccumulator) Estimate {
	est, _ := e.step(in, acc)
	return est
}

func (e *Estimator) step(in Input, acc *AccelAccumulator) (Estimate, cycleKind) {
	if acc == nil {
		acc = &AccelAccumulator{}
	}
	st := &e.st

	if !st.Initialized {
		st.Initialized = true
		st.PreviousCycleTimestamp = in.Timestamp
		acc.Reset()
		return e.estimate(0), cycleInitial
	}

	dTime := in.Timestamp - st.PreviousCycleTimestamp
	elapsed := time.Duration(dTime) * time.Microsecond
	if elapsed < e.cfg.UpdatePeriod {
		return e.estimate(elapsed), cycleRateLimited
	}
	st.PreviousCycleTimestamp = in.Timestamp

	baroOK := e.sensors.Baro && !in.BaroPending
	switch {
	case baroOK:
		e.updateBaseline(in.Armed, in.BaroAltitude)
	case e.sensors.Baro:
		// No reading yet: leave the arm edge for the first real one.
		st.BaroAltitude = 0
		st.WasArmedPreviousCycle = false
	default:
		e.updateBaseline(in.Armed, 0)
	}

	if elapsed > e.cfg.StaleLimit {
		// Too long since the last cycle: drop the window rather than
		// integrate one huge step.
		acc.Reset()
		return e.estimate(elapsed), cycleStale
	}

	if baroOK {
		e.fuse(in.Armed, in.RangeDistance, in.Tilt(), elapsed)
	} else {
		st.FusedAltitude = 0
		st.FusionMode = FusionBaro
	}
	e.integrate(acc.take(), dTime, baroOK)
	st.PreviousFusedAltitude = st.FusedAltitude

	return e.estimate(elapsed), cycleProcessed
}

func (e *Estimator) estimate(elapsed time.Duration) Estimate {
	st := &e.st
	return Estimate{
		Altitude:                     st.FusedAltitude,
		InertialAltitude:             st.AccelDerivedAltitude,
		Velocity:                     st.Velocity,
		Vario:                        st.Vario,
		VerticalAcceleration:         st.VerticalAcceleration,
		PreviousVerticalAcceleration: st.PreviousVerticalAcceleration,
		Elapsed:                      elapsed,
	}
}

func (e *Estimator) String() string {
	st := &e.st
	return fmt.Sprintf("alt=%.1fcm vel=%dcm/s mode=%s baseline=%.1fcm", st.FusedAltitude, st.Vario, st.FusionMode, st.BaroBaseline)
}
