package hwboard

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"althold/internal/ahrs"
	"althold/internal/altitude"
	"althold/internal/baro"
	"althold/internal/board"
	"althold/internal/i2c"
	"althold/internal/sensors/bmp280"
	"althold/internal/sensors/icm20948"
)

type digitalIn interface {
	Value() (bool, error)
	Close() error
}

type digitalOut interface {
	Set(on bool) error
	Close() error
}

type pressureSensor interface {
	Pressure() (float64, error)
}

type motionSensor interface {
	Read() (icm20948.Sample, error)
	Acc1G() int32
}

// Board samples the sensors in the background and serves the latest values
// to the altitude loop.
type Board struct {
	cfg   Config
	now   func() time.Time
	start time.Time

	bus    *i2c.Bus
	press  pressureSensor // nil when no baro
	imu    motionSensor
	filter *ahrs.Filter
	acc1G  int32

	arm        digitalIn
	ledArmed   digitalOut
	ledHolding digitalOut

	mu      sync.Mutex
	avg     *baro.Averager
	att     ahrs.Attitude
	pending altitude.AccelAccumulator
	lastIMU time.Time
	armed   bool
	thrust  int32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ board.Board  = (*Board)(nil)
	_ board.Scaled = (*Board)(nil)
)

// Open initializes the sensors and GPIO lines and starts sampling. The IMU
// is required; a missing baro is reported through BaroPresent.
func Open(ctx context.Context, cfg Config) (*Board, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bus, err := i2c.Open(i2c.BusPath(cfg.I2CBus))
	if err != nil {
		return nil, err
	}

	imuAddr := cfg.IMUAddr
	if imuAddr == 0 {
		imuAddr = icm20948.DefaultAddress()
	}
	imu, err := icm20948.New(bus.Dev(imuAddr), icm20948.Options{})
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("hwboard: imu init: %w", err)
	}
	if c, err := imu.Temperature(); err == nil {
		log.Printf("hwboard: imu at 0x%02X, %.1fC, acc_1g=%d", imuAddr, c, imu.Acc1G())
	}

	var press pressureSensor
	baroAddr := cfg.BaroAddr
	if baroAddr == 0 {
		baroAddr = bmp280.DefaultAddress()
	}
	if dev, err := bmp280.New(bus.Dev(baroAddr), bmp280.Options{}); err != nil {
		log.Printf("hwboard: baro unavailable: %v", err)
	} else {
		press = dev
	}

	orient := ahrs.Identity()
	if cfg.ForwardAxis != 0 {
		orient, err = ahrs.NewOrientation(cfg.ForwardAxis, cfg.Gravity)
		if err != nil {
			_ = bus.Close()
			return nil, err
		}
	}

	b, err := newBoard(cfg, press, imu, orient, time.Now)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	b.bus = bus

	if cfg.ArmLine >= 0 {
		if b.arm, err = openInput(cfg.ArmLine, cfg.ArmActiveLow); err != nil {
			_ = b.Close()
			return nil, err
		}
	} else {
		log.Printf("hwboard: no arm line configured, board stays disarmed")
	}
	if cfg.LEDArmedLine >= 0 {
		if b.ledArmed, err = openOutput(cfg.LEDArmedLine); err != nil {
			log.Printf("hwboard: armed led: %v", err)
		}
	}
	if cfg.LEDHoldingLine >= 0 {
		if b.ledHolding, err = openOutput(cfg.LEDHoldingLine); err != nil {
			log.Printf("hwboard: holding led: %v", err)
		}
	}

	if err := b.calibrateGyro(); err != nil {
		_ = b.Close()
		return nil, err
	}
	b.startSampling(ctx)
	return b, nil
}

func newBoard(cfg Config, press pressureSensor, imu motionSensor, orient ahrs.Orientation, now func() time.Time) (*Board, error) {
	avg, err := baro.NewAverager(baro.DefaultTableSize)
	if err != nil {
		return nil, err
	}
	return &Board{
		cfg:    cfg.withDefaults(),
		now:    now,
		start:  now(),
		press:  press,
		imu:    imu,
		filter: ahrs.NewFilter(ahrs.DefaultTau, orient),
		acc1G:  imu.Acc1G(),
		avg:    avg,
	}, nil
}

// calibrateGyro averages gyro rates with the airframe at rest.
func (b *Board) calibrateGyro() error {
	var sx, sy float64
	n := 0
	for i := 0; i < b.cfg.GyroCalSamples; i++ {
		s, err := b.imu.Read()
		if err != nil {
			continue
		}
		sx += s.Gx
		sy += s.Gy
		n++
		if i+1 < b.cfg.GyroCalSamples {
			time.Sleep(b.cfg.IMUPeriod)
		}
	}
	if n == 0 {
		return fmt.Errorf("hwboard: gyro calibration failed (no samples)")
	}
	b.filter.SetGyroBias(sx/float64(n), sy/float64(n))
	return nil
}

func (b *Board) startSampling(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.sampleLoop(ctx, "imu", b.cfg.IMUPeriod, b.sampleIMU)
	if b.press != nil {
		b.wg.Add(1)
		go b.sampleLoop(ctx, "baro", b.cfg.BaroPeriod, b.sampleBaro)
	}
}

func (b *Board) sampleLoop(ctx context.Context, name string, period time.Duration, sample func() error) {
	defer b.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := sample()
		if err != nil && !failing {
			log.Printf("hwboard: %s read failed: %v", name, err)
		}
		if err == nil && failing {
			log.Printf("hwboard: %s recovered", name)
		}
		failing = err != nil
	}
}

func (b *Board) sampleIMU() error {
	s, err := b.imu.Read()
	if err != nil {
		return err
	}
	att := b.filter.Update(ahrs.Sample(s))
	vert := b.filter.VerticalAccel() * float64(b.acc1G)

	b.mu.Lock()
	defer b.mu.Unlock()
	dt := s.Time.Sub(b.lastIMU)
	if b.lastIMU.IsZero() || dt <= 0 || dt > b.cfg.BaroPeriod {
		dt = b.cfg.IMUPeriod
	}
	b.lastIMU = s.Time
	b.att = att
	b.pending.Add(vert, uint32(dt/time.Microsecond))
	return nil
}

func (b *Board) sampleBaro() error {
	p, err := b.press.Pressure()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avg.Add(p)
}

// Acc1G returns the accelerometer count for one g.
func (b *Board) Acc1G() int32 { return b.acc1G }

// Thrust returns the last thrust correction handed to the board.
func (b *Board) Thrust() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.thrust
}

func (b *Board) Micros() uint32 {
	return uint32(b.now().Sub(b.start) / time.Microsecond)
}

func (b *Board) BaroPresent() bool { return b.press != nil }

func (b *Board) BaroAltitude() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avg.AltitudeCm()
}

// RangePresent is false: no rangefinder driver is wired on this board.
func (b *Board) RangePresent() bool { return false }

func (b *Board) RangeDistance() (int32, bool) { return 0, false }

func (b *Board) Attitude() (roll, pitch int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.att.RollCdeg(), b.att.PitchCdeg()
}

// Armed reads the arm line. A failed read keeps the previous state.
func (b *Board) Armed() bool {
	if b.arm == nil {
		return false
	}
	v, err := b.arm.Value()
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.armed = v
	}
	return b.armed
}

func (b *Board) TakeAccel(acc *altitude.AccelAccumulator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc.Sum += b.pending.Sum
	acc.Count += b.pending.Count
	acc.TimeSum += b.pending.TimeSum
	b.pending.Reset()
}

// ApplyThrust records the correction; motor mixing happens downstream.
func (b *Board) ApplyThrust(correction int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.thrust = correction
}

func (b *Board) ShowStatus(armed, holding bool) {
	if b.ledArmed != nil {
		_ = b.ledArmed.Set(armed)
	}
	if b.ledHolding != nil {
		_ = b.ledHolding.Set(holding)
	}
}

func (b *Board) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	for _, out := range []digitalOut{b.ledArmed, b.ledHolding} {
		if out != nil {
			_ = out.Set(false)
			_ = out.Close()
		}
	}
	b.ledArmed, b.ledHolding = nil, nil
	if b.arm != nil {
		_ = b.arm.Close()
		b.arm = nil
	}
	if b.bus != nil {
		err := b.bus.Close()
		b.bus = nil
		return err
	}
	return nil
}
