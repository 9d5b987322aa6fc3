package sim

import (
	"math"
	"time"
)

// VehicleConfig describes the simulated airframe and its sensors.
type VehicleConfig struct {
	// FieldElevationCm is the baro altitude of terrain level zero.
	FieldElevationCm float64 `yaml:"field_elevation_cm"`
	// ThrustGain converts one unit of thrust correction into cm/s^2.
	ThrustGain float64 `yaml:"thrust_gain"`
	// DisturbanceCms2 is a constant vertical acceleration (e.g. battery sag).
	DisturbanceCms2 float64 `yaml:"disturbance_cms2"`

	RangePresent bool    `yaml:"range_present"`
	RangeMaxCm   float64 `yaml:"range_max_cm"`

	BaroNoiseCm    float64 `yaml:"baro_noise_cm"`
	RangeNoiseCm   float64 `yaml:"range_noise_cm"`
	AccelNoiseCms2 float64 `yaml:"accel_noise_cms2"`
	Seed           int64   `yaml:"seed"`

	Acc1G       int32         `yaml:"acc_1g"`
	IMUPeriod   time.Duration `yaml:"imu_period"`
	BaroPeriod  time.Duration `yaml:"baro_period"`
	StartMicros uint32        `yaml:"start_micros"`
}

const gravityCms2 = 980.665

func (c VehicleConfig) withDefaults() VehicleConfig {
	if c.ThrustGain == 0 {
		c.ThrustGain = 1
	}
	if c.RangeMaxCm == 0 {
		c.RangeMaxCm = 300
	}
	if c.Acc1G == 0 {
		c.Acc1G = 512
	}
	if c.IMUPeriod <= 0 {
		c.IMUPeriod = 2 * time.Millisecond
	}
	if c.BaroPeriod <= 0 {
		c.BaroPeriod = 5 * time.Millisecond
	}
	return c
}

// vehicle is a point mass moving on the vertical axis above terrain.
type vehicle struct {
	cfg VehicleConfig

	altCm     float64 // above terrain level zero
	velCms    float64
	accelCms2 float64
}

// step integrates one physics tick. A disarmed vehicle sits on the terrain;
// an armed one cannot sink below it.
func (v *vehicle) step(dt time.Duration, armed bool, thrust int32, tiltCdeg int32, terrainCm float64) {
	if !armed {
		v.altCm, v.velCms, v.accelCms2 = terrainCm, 0, 0
		return
	}
	sec := dt.Seconds()
	tilt := float64(tiltCdeg) / 100 * math.Pi / 180
	v.accelCms2 = float64(thrust)*v.cfg.ThrustGain*math.Cos(tilt) + v.cfg.DisturbanceCms2
	v.altCm += v.velCms*sec + 0.5*v.accelCms2*sec*sec
	v.velCms += v.accelCms2 * sec
	if v.altCm <= terrainCm {
		v.altCm = terrainCm
		if v.velCms < 0 {
			v.velCms = 0
		}
		if v.accelCms2 < 0 {
			v.accelCms2 = 0
		}
	}
}

// accelCounts is the earth-frame vertical acceleration minus 1G in
// accelerometer counts.
func (v *vehicle) accelCounts(noiseCms2 float64) float64 {
	return (v.accelCms2 + noiseCms2) / gravityCms2 * float64(v.cfg.Acc1G)
}

// altitudeToPressure inverts the standard-atmosphere formula used by the
// baro package.
func altitudeToPressure(altCm float64) float64 {
	return 101325 * math.Pow(1-altCm/4433000, 1/0.190295)
}
