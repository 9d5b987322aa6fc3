// Package hwboard runs the altitude loop against real sensors: a BMP280
// barometer and an ICM-20948 IMU on I2C, with GPIO arm switch and status
// LEDs.
package hwboard

import (
	"fmt"
	"time"
)

// Config selects buses, addresses, lines and sampling rates. Zero values
// select defaults; negative GPIO lines disable the line.
type Config struct {
	I2CBus   int
	BaroAddr uint16
	IMUAddr  uint16

	IMUPeriod  time.Duration
	BaroPeriod time.Duration

	// ForwardAxis (±1..±3) and Gravity describe the IMU mounting; zero
	// ForwardAxis means the IMU is aligned with the airframe.
	ForwardAxis int
	Gravity     [3]float64

	GyroCalSamples int

	ArmLine        int
	ArmActiveLow   bool
	LEDArmedLine   int
	LEDHoldingLine int
}

func (c Config) withDefaults() Config {
	if c.I2CBus == 0 {
		c.I2CBus = 1
	}
	if c.IMUPeriod <= 0 {
		c.IMUPeriod = 2 * time.Millisecond
	}
	if c.BaroPeriod <= 0 {
		c.BaroPeriod = 25 * time.Millisecond
	}
	if c.GyroCalSamples <= 0 {
		c.GyroCalSamples = 200
	}
	return c
}

// Validate checks the fields that have no usable default.
func (c Config) Validate() error {
	if c.ForwardAxis < -3 || c.ForwardAxis > 3 {
		return fmt.Errorf("hwboard: forward axis %d out of range", c.ForwardAxis)
	}
	if c.IMUPeriod > c.BaroPeriod && c.BaroPeriod > 0 {
		return fmt.Errorf("hwboard: imu period %s longer than baro period %s", c.IMUPeriod, c.BaroPeriod)
	}
	return nil
}
