// Package ahrs estimates roll and pitch from IMU samples and derives the
// earth-frame vertical acceleration the altitude estimator integrates.
package ahrs

import (
	"math"
	"time"
)

// DefaultTau is the complementary filter time constant.
const DefaultTau = 500 * time.Millisecond

// maxGap is the longest sample gap the gyro is integrated across.
const maxGap = 500 * time.Millisecond

// Sample is one body-frame IMU reading.
type Sample struct {
	Time time.Time
	// Accel in G.
	Ax, Ay, Az float64
	// Gyro in deg/s.
	Gx, Gy, Gz float64
}

// Attitude is the filtered attitude.
type Attitude struct {
	RollDeg  float64
	PitchDeg float64
}

// RollCdeg returns roll in centi-degrees.
func (a Attitude) RollCdeg() int32 { return int32(math.Round(a.RollDeg * 100)) }

// PitchCdeg returns pitch in centi-degrees.
func (a Attitude) PitchCdeg() int32 { return int32(math.Round(a.PitchDeg * 100)) }

// Filter blends integrated gyro rates with the accelerometer gravity vector.
// It is not safe for concurrent use.
type Filter struct {
	tau    time.Duration
	orient Orientation

	biasX, biasY float64 // deg/s

	haveEst   bool
	last      time.Time
	rollRad   float64
	pitchRad  float64
	lastAccel [3]float64
}

// NewFilter returns a filter with time constant tau (DefaultTau if <= 0)
// applying orient to every sample.
func NewFilter(tau time.Duration, orient Orientation) *Filter {
	if tau <= 0 {
		tau = DefaultTau
	}
	return &Filter{tau: tau, orient: orient}
}

// SetGyroBias sets the roll/pitch gyro bias (deg/s) subtracted from samples.
func (f *Filter) SetGyroBias(x, y float64) {
	f.biasX, f.biasY = x, y
}

// Update folds in one sample and returns the new attitude.
func (f *Filter) Update(s Sample) Attitude {
	acc := f.orient.Apply([3]float64{s.Ax, s.Ay, s.Az})
	gyro := f.orient.Apply([3]float64{s.Gx, s.Gy, s.Gz})
	f.lastAccel = acc

	dt := 0.0
	if !f.last.IsZero() {
		dt = s.Time.Sub(f.last).Seconds()
	}
	f.last = s.Time
	if dt <= 0 || dt > maxGap.Seconds() {
		dt = 0
	}

	accRoll := math.Atan2(acc[1], acc[2])
	accPitch := math.Atan2(-acc[0], math.Sqrt(acc[1]*acc[1]+acc[2]*acc[2]))

	if !f.haveEst || dt == 0 {
		// Unknown dt: trust the accelerometer alone.
		f.rollRad, f.pitchRad = accRoll, accPitch
		f.haveEst = true
		return f.Attitude()
	}

	f.rollRad += (gyro[0] - f.biasX) * math.Pi / 180 * dt
	f.pitchRad += (gyro[1] - f.biasY) * math.Pi / 180 * dt

	tau := f.tau.Seconds()
	alpha := tau / (tau + dt)
	f.rollRad = alpha*f.rollRad + (1-alpha)*accRoll
	f.pitchRad = alpha*f.pitchRad + (1-alpha)*accPitch
	return f.Attitude()
}

// Attitude returns the current estimate.
func (f *Filter) Attitude() Attitude {
	return Attitude{RollDeg: f.rollRad * 180 / math.Pi, PitchDeg: f.pitchRad * 180 / math.Pi}
}

// VerticalAccel returns the earth-frame vertical acceleration of the last
// sample with gravity removed, in G. Positive is up.
func (f *Filter) VerticalAccel() float64 {
	return EarthVertical(f.lastAccel, f.rollRad, f.pitchRad) - 1
}

// EarthVertical rotates a body-frame accelerometer vector into the earth Z
// axis using roll and pitch (radians).
func EarthVertical(acc [3]float64, rollRad, pitchRad float64) float64 {
	sr, cr := math.Sincos(rollRad)
	sp, cp := math.Sincos(pitchRad)
	return -sp*acc[0] + sr*cp*acc[1] + cr*cp*acc[2]
}
