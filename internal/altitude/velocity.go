package altitude

import (
	"math"

	"althold/internal/numeric"
)

// integrate consumes one accelerometer window and updates the inertial
// altitude and velocity, pulling both toward the fused altitude when there is
// a baro reference.
func (e *Estimator) integrate(w AccelAccumulator, dTime uint32, baroOK bool) {
	st := &e.st
	cfg := &e.cfg

	dt := float64(w.TimeSum) * 1e-6
	accZ := w.Mean()
	velAcc := accZ * cfg.accVelScale() * float64(w.TimeSum)

	// x = v*t + a/2*t^2
	st.AccelDerivedAltitude += velAcc*0.5*dt + st.AccelDerivedVelocity*dt
	st.AccelDerivedVelocity += velAcc

	limit := float64(cfg.FusedVelocityLimit)
	if baroOK && dTime > 0 {
		st.AccelDerivedAltitude = numeric.ComplementaryFilter(st.AccelDerivedAltitude, st.FusedAltitude, cfg.AltitudeCFWeight)

		rawVel := (st.FusedAltitude - st.PreviousFusedAltitude) * 1e6 / float64(dTime)
		fusedVel := numeric.Deadband(int32(numeric.ClampAbs(rawVel, limit)), cfg.FusedVelocityDeadband)

		st.AccelDerivedVelocity = numeric.ComplementaryFilter(st.AccelDerivedVelocity, float64(fusedVel), cfg.VelocityCFWeight)
	}
	st.AccelDerivedVelocity = numeric.ClampAbs(st.AccelDerivedVelocity, limit)

	st.Velocity = numeric.ClampAbs(int32(math.Round(st.AccelDerivedVelocity)), cfg.FusedVelocityLimit)
	st.Vario = numeric.Deadband(st.Velocity, cfg.VarioDeadband)

	st.PreviousVerticalAcceleration = st.VerticalAcceleration
	st.VerticalAcceleration = accZ
}
