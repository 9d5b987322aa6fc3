package ahrs

import (
	"fmt"
	"math"
)

// Orientation maps sensor-frame vectors into the body frame. It is built
// from the mounting's forward axis and the gravity vector measured with the
// airframe level.
type Orientation struct {
	x, y, z [3]float64 // body axes in sensor coordinates
}

// Identity is the orientation of a sensor mounted aligned with the body.
func Identity() Orientation {
	return Orientation{x: [3]float64{1, 0, 0}, y: [3]float64{0, 1, 0}, z: [3]float64{0, 0, 1}}
}

// NewOrientation builds an orthonormal body basis. forwardAxis is ±1..±3
// naming the sensor axis facing the nose; gravity is the accelerometer
// reading at rest while level.
func NewOrientation(forwardAxis int, gravity [3]float64) (Orientation, error) {
	z, err := unit3(gravity)
	if err != nil {
		return Orientation{}, fmt.Errorf("ahrs: invalid gravity vector: %w", err)
	}

	idx, sign := forwardAxis, 1.0
	if idx < 0 {
		idx, sign = -idx, -1.0
	}
	if idx < 1 || idx > 3 {
		return Orientation{}, fmt.Errorf("ahrs: invalid forward axis %d", forwardAxis)
	}
	var x [3]float64
	x[idx-1] = sign

	// Keep only the horizontal part of forward.
	d := dot3(x, z)
	h := [3]float64{x[0] - d*z[0], x[1] - d*z[1], x[2] - d*z[2]}
	if norm3(h) < 0.1 {
		return Orientation{}, fmt.Errorf("ahrs: forward axis nearly vertical")
	}
	xu, _ := unit3(h)
	yu, err := unit3(cross3(z, xu))
	if err != nil {
		return Orientation{}, fmt.Errorf("ahrs: invalid basis")
	}
	return Orientation{x: xu, y: yu, z: z}, nil
}

// Apply maps a sensor-frame vector into the body frame. The zero
// Orientation behaves as Identity.
func (o Orientation) Apply(v [3]float64) [3]float64 {
	if o == (Orientation{}) {
		return v
	}
	return [3]float64{dot3(v, o.x), dot3(v, o.y), dot3(v, o.z)}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(dot3(v, v))
}

func unit3(v [3]float64) ([3]float64, error) {
	n := norm3(v)
	if n <= 0 {
		return [3]float64{}, fmt.Errorf("zero vector")
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}, nil
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
