package altitude

import (
	"fmt"
	"math"
	"time"
)

// Config holds every tuning constant of the estimator and controller.
//
// Units: altitudes cm, velocities cm/s, angles centi-degrees, times µs unless
// the field is a time.Duration.
type Config struct {
	// Cycles closer together than UpdatePeriod are ignored.
	UpdatePeriod time.Duration
	// Cycles further apart than StaleLimit skip integration.
	StaleLimit time.Duration

	// Accelerometer counts per 1 G.
	Acc1G float64

	// Range fusion.
	RangeTiltLimit        int32 // cdeg; above this the range sensor is not pointing down
	RangeMaxTrusted       int32 // cm
	RangeMaxReported      int32 // cm; readings above RangeMaxTrusted up to this value only seed the blend
	RangeTransitionWindow time.Duration

	// Complementary filter weights (weight of the slow, baro/range side).
	VelocityCFWeight float64
	AltitudeCFWeight float64

	// Velocity estimate bounds.
	FusedVelocityLimit    int32 // cm/s
	FusedVelocityDeadband int32 // cm/s
	VarioDeadband         int32 // cm/s

	// Controller authority.
	AuthorityTiltLimit int32 // cdeg

	// Outer loop.
	AltP               int32
	PositionErrorLimit int32 // cm
	PositionDeadband   int32 // cm
	VelocityLimit      int32 // cm/s

	// Inner loop.
	VelP            int32
	VelI            int32
	VelD            int32
	PLimit          int32
	IntegratorLimit int32 // bound of the I term after scaling
	DLimit          int32

	// When the baro is absent, keep holding zero vertical velocity on the
	// accelerometer alone instead of zeroing the output.
	AccelOnlyVelocityHold bool
}

// Fixed-point scale factors of the controller terms.
const (
	altPScale = 128
	velPScale = 32
	velIScale = 8196
	velDScale = 512
)

// DefaultConfig returns values tuned for a small quadcopter with an MPU-class
// accelerometer at 512 counts/G and a sonar with 3 m range.
func DefaultConfig() Config {
	return Config{
		UpdatePeriod: 25 * time.Millisecond,
		StaleLimit:   500 * time.Millisecond,

		Acc1G: 512,

		RangeTiltLimit:        250,
		RangeMaxTrusted:       200,
		RangeMaxReported:      300,
		RangeTransitionWindow: 500 * time.Millisecond,

		VelocityCFWeight: 0.015,
		AltitudeCFWeight: 0.035,

		FusedVelocityLimit:    1500,
		FusedVelocityDeadband: 10,
		VarioDeadband:         5,

		AuthorityTiltLimit: 800,

		AltP:               50,
		PositionErrorLimit: 500,
		PositionDeadband:   10,
		VelocityLimit:      300,

		VelP:            120,
		VelI:            45,
		VelD:            1,
		PLimit:          300,
		IntegratorLimit: 200,
		DLimit:          150,
	}
}

func (c Config) Validate() error {
	if c.UpdatePeriod <= 0 {
		return fmt.Errorf("altitude: update period must be > 0")
	}
	if c.StaleLimit <= c.UpdatePeriod {
		return fmt.Errorf("altitude: stale limit %s must exceed update period %s", c.StaleLimit, c.UpdatePeriod)
	}
	if c.Acc1G <= 0 {
		return fmt.Errorf("altitude: acc_1g must be > 0")
	}
	if c.RangeMaxTrusted <= 0 || c.RangeMaxReported < c.RangeMaxTrusted {
		return fmt.Errorf("altitude: range limits invalid (trusted=%d reported=%d)", c.RangeMaxTrusted, c.RangeMaxReported)
	}
	if c.RangeTiltLimit < 0 || c.RangeTiltLimit >= 900 {
		return fmt.Errorf("altitude: range tilt limit %d out of [0,900)", c.RangeTiltLimit)
	}
	if c.RangeTransitionWindow <= 0 {
		return fmt.Errorf("altitude: range transition window must be > 0")
	}
	for name, w := range map[string]float64{"velocity": c.VelocityCFWeight, "altitude": c.AltitudeCFWeight} {
		if w <= 0 || w >= 1 {
			return fmt.Errorf("altitude: %s filter weight %v must be in (0,1)", name, w)
		}
	}
	bounds := []struct {
		name string
		v    int32
	}{
		{"fused velocity limit", c.FusedVelocityLimit},
		{"authority tilt limit", c.AuthorityTiltLimit},
		{"position error limit", c.PositionErrorLimit},
		{"velocity limit", c.VelocityLimit},
		{"p limit", c.PLimit},
		{"integrator limit", c.IntegratorLimit},
		{"d limit", c.DLimit},
	}
	for _, b := range bounds {
		if b.v <= 0 {
			return fmt.Errorf("altitude: %s must be > 0", b.name)
		}
	}
	if c.IntegratorLimit > math.MaxInt32/velIScale {
		return fmt.Errorf("altitude: integrator limit %d overflows the accumulator", c.IntegratorLimit)
	}
	if c.FusedVelocityDeadband < 0 || c.VarioDeadband < 0 || c.PositionDeadband < 0 {
		return fmt.Errorf("altitude: deadbands must be >= 0")
	}
	if c.AltP < 0 || c.VelP < 0 || c.VelI < 0 || c.VelD < 0 {
		return fmt.Errorf("altitude: gains must be >= 0")
	}
	// Largest velocity error the inner loop can see.
	maxErr := int64(c.VelocityLimit) + int64(c.FusedVelocityLimit)
	if int64(c.VelP)*maxErr > math.MaxInt32 {
		return fmt.Errorf("altitude: vel_p %d overflows the p term", c.VelP)
	}
	if int64(c.VelI)*maxErr+int64(c.integratorBound()) > math.MaxInt32 {
		return fmt.Errorf("altitude: vel_i %d overflows the accumulator", c.VelI)
	}
	return nil
}

// accVelScale converts accelerometer counts * µs into cm/s.
func (c Config) accVelScale() float64 {
	return 9.80665 / c.Acc1G / 10000
}

func (c Config) integratorBound() int32 {
	return c.IntegratorLimit * velIScale
}
