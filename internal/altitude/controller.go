package altitude

import (
	"math"
	"time"

	"go.einride.tech/pid"

	"althold/internal/numeric"
)

// ControlInput is one controller cycle's view of the estimate and command.
type ControlInput struct {
	Altitude                     float64 // cm
	Velocity                     int32   // cm/s
	VerticalAcceleration         float64
	PreviousVerticalAcceleration float64

	Tilt           int32 // cdeg
	Mode           ControlMode
	TargetAltitude int32 // cm
	TargetVelocity int32 // cm/s

	// PositionLoop is false when there is no altitude reference at all.
	PositionLoop bool
	// VelocityLoop is false when the velocity loop must not run either.
	VelocityLoop bool

	Elapsed time.Duration
}

// Controller is the cascaded altitude-hold controller: a position P loop
// producing a velocity setpoint, then a velocity PID producing the thrust
// correction. Not safe for concurrent use.
type Controller struct {
	cfg Config

	// Outer loop: P only.
	position pid.Controller

	integrator int32
	authority  Authority
	setpoint   int32
}

func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg: cfg,
		position: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: float64(cfg.AltP) / altPScale,
			},
		},
	}, nil
}

// Integrator returns the raw velocity integrator accumulator.
func (c *Controller) Integrator() int32 { return c.integrator }

// Authority returns the authority state of the last cycle.
func (c *Controller) Authority() Authority { return c.authority }

// VelocitySetpoint returns the velocity setpoint of the last active cycle.
func (c *Controller) VelocitySetpoint() int32 { return c.setpoint }

// Update returns the signed thrust correction for this cycle.
func (c *Controller) Update(in ControlInput) int32 {
	cfg := &c.cfg

	if in.Tilt > cfg.AuthorityTiltLimit {
		c.authority = AuthorityLost
		return 0
	}
	c.authority = AuthorityActive
	if !in.VelocityLoop {
		return 0
	}

	setVel := in.TargetVelocity
	if in.Mode == ModePosition {
		setVel = 0
		if in.PositionLoop {
			setVel = c.positionLoop(in)
		}
	}
	setVel = numeric.ClampAbs(setVel, cfg.VelocityLimit)
	c.setpoint = setVel

	err := setVel - in.Velocity

	out := numeric.ClampAbs(cfg.VelP*err/velPScale, cfg.PLimit)

	c.integrator = numeric.ClampAbs(c.integrator+cfg.VelI*err, cfg.integratorBound())
	out += c.integrator / velIScale

	// Damp on acceleration rather than a velocity derivative.
	d := float64(cfg.VelD) * (in.VerticalAcceleration + in.PreviousVerticalAcceleration) / velDScale
	out -= int32(numeric.ClampAbs(d, float64(cfg.DLimit)))

	return out
}

func (c *Controller) positionLoop(in ControlInput) int32 {
	cfg := &c.cfg
	alt := int32(math.Round(in.Altitude))
	posErr := numeric.ClampAbs(in.TargetAltitude-alt, cfg.PositionErrorLimit)
	posErr = numeric.Deadband(posErr, cfg.PositionDeadband)

	dt := in.Elapsed
	if dt <= 0 {
		dt = cfg.UpdatePeriod
	}
	c.position.Update(pid.ControllerInput{
		ReferenceSignal:  float64(posErr),
		ActualSignal:     0,
		SamplingInterval: dt,
	})
	return numeric.ClampAbs(int32(c.position.State.ControlSignal), cfg.VelocityLimit)
}
