// Package altitude estimates altitude and vertical velocity from baro, range
// sensor and accelerometer, and computes the thrust correction that holds a
// commanded altitude.
//
// Everything here runs synchronously inside the control loop: no goroutines,
// no allocation per cycle, no I/O. Inputs are staged by the caller.
package altitude

// Output is the per-cycle product handed to motor mixing and telemetry.
type Output struct {
	// Updated is false when the call was rate-limited (or the first call)
	// and the previous values are repeated.
	Updated bool

	ThrustCorrection int32

	Altitude         float64 // fused, cm
	InertialAltitude float64 // cm
	Velocity         int32   // vario, cm/s
	VelocitySetpoint int32   // cm/s

	Health     Health
	FusionMode FusionMode
	Authority  Authority
}

// Hold is the complete vertical channel: estimator plus controller.
type Hold struct {
	sensors Sensors
	est     *Estimator
	ctl     *Controller
	last    Output
}

func New(cfg Config, sensors Sensors) (*Hold, error) {
	est, err := NewEstimator(cfg, sensors)
	if err != nil {
		return nil, err
	}
	ctl, err := NewController(cfg)
	if err != nil {
		return nil, err
	}
	h := &Hold{sensors: sensors, est: est, ctl: ctl}
	h.last.Health = h.baseHealth(Input{BaroPending: true})
	return h, nil
}

// State returns a copy of the estimator state.
func (h *Hold) State() State { return h.est.State() }

// Integrator returns the velocity integrator accumulator.
func (h *Hold) Integrator() int32 { return h.ctl.Integrator() }

// Last returns the most recent Output.
func (h *Hold) Last() Output { return h.last }

func (h *Hold) baroOK(in Input) bool {
	return h.sensors.Baro && !in.BaroPending
}

func (h *Hold) baseHealth(in Input) Health {
	if !h.baroOK(in) {
		return HealthSensorUnavailable
	}
	return HealthOK
}

// Update runs one control cycle.
func (h *Hold) Update(in Input, acc *AccelAccumulator) Output {
	est, kind := h.est.step(in, acc)

	switch kind {
	case cycleInitial, cycleRateLimited:
		out := h.last
		out.Updated = false
		return out
	case cycleStale:
		out := h.last
		out.Updated = true
		out.Health = HealthStaleCycle
		h.last = out
		return out
	}

	st := h.est.State()
	thrust := h.ctl.Update(ControlInput{
		Altitude:                     est.Altitude,
		Velocity:                     est.Velocity,
		VerticalAcceleration:         est.VerticalAcceleration,
		PreviousVerticalAcceleration: est.PreviousVerticalAcceleration,
		Tilt:                         in.Tilt(),
		Mode:                         in.Mode,
		TargetAltitude:               in.TargetAltitude,
		TargetVelocity:               in.TargetVelocity,
		PositionLoop:                 h.baroOK(in),
		VelocityLoop:                 h.baroOK(in) || h.ctl.cfg.AccelOnlyVelocityHold,
		Elapsed:                      est.Elapsed,
	})

	h.last = Output{
		Updated:          true,
		ThrustCorrection: thrust,
		Altitude:         est.Altitude,
		InertialAltitude: est.InertialAltitude,
		Velocity:         est.Vario,
		VelocitySetpoint: h.ctl.VelocitySetpoint(),
		Health:           h.baseHealth(in),
		FusionMode:       st.FusionMode,
		Authority:        h.ctl.Authority(),
	}
	return h.last
}
