package replay

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"althold/internal/altitude"
)

const cycleVersion = 1

// Cycle is everything needed to re-run one Hold.Update call: the sensor set,
// the staged input, the accelerometer window as it was before the call, and
// the output it produced.
type Cycle struct {
	Sensors altitude.Sensors
	Input   altitude.Input
	Accel   altitude.AccelAccumulator
	Output  altitude.Output
}

const (
	flagArmed = 1 << iota
	flagBaro
	flagRange
	flagUpdated
	flagBaroPending
)

// wireCycle is the little-endian on-disk layout.
type wireCycle struct {
	Version uint8
	Flags   uint8

	Timestamp      uint32
	BaroAltitude   float64
	RangeDistance  int32
	RollCdeg       int32
	PitchCdeg      int32
	Mode           uint8
	TargetAltitude int32
	TargetVelocity int32

	AccelSum     float64
	AccelCount   uint32
	AccelTimeSum uint32

	Thrust           int32
	Altitude         float64
	InertialAltitude float64
	Velocity         int32
	VelocitySetpoint int32
	Health           uint8
	FusionMode       uint8
	Authority        uint8
}

// CycleSize is the encoded length of one cycle.
var CycleSize = binary.Size(wireCycle{})

// EncodeCycle returns the fixed-size binary form of c.
func EncodeCycle(c Cycle) []byte {
	var flags uint8
	if c.Input.Armed {
		flags |= flagArmed
	}
	if c.Sensors.Baro {
		flags |= flagBaro
	}
	if c.Sensors.Range {
		flags |= flagRange
	}
	if c.Output.Updated {
		flags |= flagUpdated
	}
	if c.Input.BaroPending {
		flags |= flagBaroPending
	}
	w := wireCycle{
		Version:          cycleVersion,
		Flags:            flags,
		Timestamp:        c.Input.Timestamp,
		BaroAltitude:     c.Input.BaroAltitude,
		RangeDistance:    c.Input.RangeDistance,
		RollCdeg:         c.Input.RollCdeg,
		PitchCdeg:        c.Input.PitchCdeg,
		Mode:             uint8(c.Input.Mode),
		TargetAltitude:   c.Input.TargetAltitude,
		TargetVelocity:   c.Input.TargetVelocity,
		AccelSum:         c.Accel.Sum,
		AccelCount:       c.Accel.Count,
		AccelTimeSum:     c.Accel.TimeSum,
		Thrust:           c.Output.ThrustCorrection,
		Altitude:         c.Output.Altitude,
		InertialAltitude: c.Output.InertialAltitude,
		Velocity:         c.Output.Velocity,
		VelocitySetpoint: c.Output.VelocitySetpoint,
		Health:           uint8(c.Output.Health),
		FusionMode:       uint8(c.Output.FusionMode),
		Authority:        uint8(c.Output.Authority),
	}
	var buf bytes.Buffer
	buf.Grow(CycleSize)
	// Writes to a bytes.Buffer of a fixed-size struct cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, &w)
	return buf.Bytes()
}

// DecodeCycle parses one encoded cycle.
func DecodeCycle(b []byte) (Cycle, error) {
	if len(b) != CycleSize {
		return Cycle{}, fmt.Errorf("replay: cycle is %d bytes, want %d", len(b), CycleSize)
	}
	var w wireCycle
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &w); err != nil {
		return Cycle{}, fmt.Errorf("replay: decode cycle: %w", err)
	}
	if w.Version != cycleVersion {
		return Cycle{}, fmt.Errorf("replay: unsupported cycle version %d", w.Version)
	}
	return Cycle{
		Sensors: altitude.Sensors{Baro: w.Flags&flagBaro != 0, Range: w.Flags&flagRange != 0},
		Input: altitude.Input{
			Timestamp:      w.Timestamp,
			Armed:          w.Flags&flagArmed != 0,
			BaroAltitude:   w.BaroAltitude,
			BaroPending:    w.Flags&flagBaroPending != 0,
			RangeDistance:  w.RangeDistance,
			RollCdeg:       w.RollCdeg,
			PitchCdeg:      w.PitchCdeg,
			Mode:           altitude.ControlMode(w.Mode),
			TargetAltitude: w.TargetAltitude,
			TargetVelocity: w.TargetVelocity,
		},
		Accel: altitude.AccelAccumulator{Sum: w.AccelSum, Count: w.AccelCount, TimeSum: w.AccelTimeSum},
		Output: altitude.Output{
			Updated:          w.Flags&flagUpdated != 0,
			ThrustCorrection: w.Thrust,
			Altitude:         w.Altitude,
			InertialAltitude: w.InertialAltitude,
			Velocity:         w.Velocity,
			VelocitySetpoint: w.VelocitySetpoint,
			Health:           altitude.Health(w.Health),
			FusionMode:       altitude.FusionMode(w.FusionMode),
			Authority:        altitude.Authority(w.Authority),
		},
	}, nil
}

// Recorder appends cycles to a log.
type Recorder struct {
	w   *Writer
	now func() time.Time
}

func NewRecorder(w *Writer) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

// Record writes one cycle stamped with the current time.
func (r *Recorder) Record(c Cycle) error {
	return r.w.WritePayload(r.now(), EncodeCycle(c))
}

func (r *Recorder) Close() error { return r.w.Close() }

// Mismatch describes the first replayed cycle whose output differs from the
// recorded one.
type Mismatch struct {
	Index int
	Want  altitude.Output
	Got   altitude.Output
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("replay: cycle %d diverged: want %+v got %+v", m.Index, m.Want, m.Got)
}

// Verify re-runs the recorded cycles through a fresh Hold built from cfg and
// the sensor set of the first cycle. It returns the number of cycles checked
// and a *Mismatch error at the first divergence.
func Verify(records []Record, cfg altitude.Config) (int, error) {
	var hold *altitude.Hold
	n := 0
	for _, r := range records {
		if r.Payload == nil {
			continue
		}
		c, err := DecodeCycle(r.Payload)
		if err != nil {
			return n, err
		}
		if hold == nil {
			if hold, err = altitude.New(cfg, c.Sensors); err != nil {
				return n, err
			}
		}
		acc := c.Accel
		got := hold.Update(c.Input, &acc)
		if got != c.Output {
			return n, &Mismatch{Index: n, Want: c.Output, Got: got}
		}
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("replay: no cycles")
	}
	return n, nil
}
