package sim

import (
	"math"
	"math/rand"
	"time"

	"althold/internal/altitude"
	"althold/internal/baro"
	"althold/internal/board"
)

// Board is a simulated flight controller board playing a Scenario. Its clock
// only moves when Advance is called, so runs are deterministic for a given
// seed.
type Board struct {
	sc   *Scenario
	cfg  VehicleConfig
	veh  vehicle
	rng  *rand.Rand
	baro *baro.Averager

	elapsed   time.Duration
	residual  time.Duration
	sinceBaro time.Duration
	micros    uint32

	state   ScenarioState
	pending altitude.AccelAccumulator
	thrust  int32

	ledArmed   bool
	ledHolding bool
}

var (
	_ board.Board     = (*Board)(nil)
	_ board.Clocked   = (*Board)(nil)
	_ board.Commander = (*Board)(nil)
	_ board.Scaled    = (*Board)(nil)
)

// NewBoard builds a simulated board at scenario time zero. The baro table is
// pre-filled so a reading is available on the first cycle.
func NewBoard(sc *Scenario) (*Board, error) {
	avg, err := baro.NewAverager(baro.DefaultTableSize)
	if err != nil {
		return nil, err
	}
	cfg := sc.Vehicle()
	b := &Board{
		sc:     sc,
		cfg:    cfg,
		veh:    vehicle{cfg: cfg},
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		baro:   avg,
		micros: cfg.StartMicros,
	}
	b.state = sc.StateAt(0)
	b.veh.altCm = b.state.TerrainCm
	for i := 0; i < baro.DefaultTableSize; i++ {
		if err := b.sampleBaro(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Advance runs the physics in IMU-period steps. Time not covering a full
// step is carried to the next call.
func (b *Board) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	step := b.cfg.IMUPeriod
	b.residual += d
	for b.residual >= step {
		b.residual -= step
		b.elapsed += step
		b.micros += uint32(step / time.Microsecond)
		b.state = b.sc.StateAt(b.elapsed)

		b.veh.step(step, b.state.Armed, b.thrust, b.tilt(), b.state.TerrainCm)
		b.pending.Add(b.veh.accelCounts(b.noise(b.cfg.AccelNoiseCms2)), uint32(step/time.Microsecond))

		b.sinceBaro += step
		if b.sinceBaro >= b.cfg.BaroPeriod {
			b.sinceBaro -= b.cfg.BaroPeriod
			// Pressure samples are always positive and finite here.
			_ = b.sampleBaro()
		}
	}
}

// Done reports that the scenario duration has been played.
func (b *Board) Done() bool { return b.elapsed >= b.sc.Duration() }

// Elapsed returns simulated time since the start of the scenario.
func (b *Board) Elapsed() time.Duration { return b.elapsed }

// TrueAltitude returns the vehicle altitude above terrain level zero (cm).
func (b *Board) TrueAltitude() float64 { return b.veh.altCm }

// TrueVelocity returns the vehicle vertical velocity (cm/s).
func (b *Board) TrueVelocity() float64 { return b.veh.velCms }

// Thrust returns the last applied thrust correction.
func (b *Board) Thrust() int32 { return b.thrust }

// Status returns the last indicator state.
func (b *Board) Status() (armed, holding bool) { return b.ledArmed, b.ledHolding }

func (b *Board) Command() board.Command { return b.state.Command }

func (b *Board) Acc1G() int32 { return b.cfg.Acc1G }

func (b *Board) Micros() uint32 { return b.micros }

func (b *Board) BaroPresent() bool { return true }

func (b *Board) BaroAltitude() (float64, bool) { return b.baro.AltitudeCm() }

func (b *Board) RangePresent() bool { return b.cfg.RangePresent }

func (b *Board) RangeDistance() (int32, bool) {
	if !b.cfg.RangePresent {
		return 0, false
	}
	agl := b.veh.altCm - b.state.TerrainCm
	tilt := float64(b.tilt()) / 100 * math.Pi / 180
	c := math.Cos(tilt)
	if c <= 0 {
		return 0, false
	}
	d := agl/c + b.noise(b.cfg.RangeNoiseCm)
	if d < 0 {
		d = 0
	}
	if d > b.cfg.RangeMaxCm {
		return 0, false
	}
	return int32(d), true
}

func (b *Board) Attitude() (roll, pitch int32) {
	return b.state.RollCdeg, b.state.PitchCdeg
}

func (b *Board) Armed() bool { return b.state.Armed }

func (b *Board) TakeAccel(acc *altitude.AccelAccumulator) {
	acc.Sum += b.pending.Sum
	acc.Count += b.pending.Count
	acc.TimeSum += b.pending.TimeSum
	b.pending.Reset()
}

func (b *Board) ApplyThrust(correction int32) { b.thrust = correction }

func (b *Board) ShowStatus(armed, holding bool) {
	b.ledArmed = armed
	b.ledHolding = holding
}

func (b *Board) Close() error { return nil }

func (b *Board) sampleBaro() error {
	alt := b.cfg.FieldElevationCm + b.veh.altCm + b.noise(b.cfg.BaroNoiseCm)
	return b.baro.Add(altitudeToPressure(alt))
}

func (b *Board) tilt() int32 {
	r, p := b.state.RollCdeg, b.state.PitchCdeg
	if r < 0 {
		r = -r
	}
	if p < 0 {
		p = -p
	}
	if r > p {
		return r
	}
	return p
}

func (b *Board) noise(sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	return b.rng.NormFloat64() * sigma
}
