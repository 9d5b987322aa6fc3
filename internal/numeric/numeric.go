// Package numeric holds the small saturating helpers shared by the altitude
// estimator and controller. They work on both the integer (fixed-point) and
// floating-point values used in the control loop.
package numeric

import "golang.org/x/exp/constraints"

// Number is any value the control loop does arithmetic on.
type Number interface {
	constraints.Integer | constraints.Float
}

// Clamp saturates v to [lo, hi].
func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampAbs saturates v to [-bound, bound].
func ClampAbs[T constraints.Signed | constraints.Float](v, bound T) T {
	return Clamp(v, -bound, bound)
}

// Deadband returns 0 when |v| <= band, otherwise v moved toward zero by band.
// The result is continuous at |v| == band.
func Deadband[T constraints.Signed | constraints.Float](v, band T) T {
	switch {
	case v > band:
		return v - band
	case v < -band:
		return v + band
	default:
		return 0
	}
}

// ComplementaryFilter blends a fast estimate toward a slow one:
// fast*(1-weight) + slow*weight. For weight in [0,1] the result lies between
// the two inputs.
func ComplementaryFilter[T constraints.Float](fast, slow, weight T) T {
	return fast*(1-weight) + slow*weight
}
