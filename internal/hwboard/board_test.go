package hwboard

import (
	"errors"
	"math"
	"testing"
	"time"

	"althold/internal/ahrs"
	"althold/internal/altitude"
	"althold/internal/sensors/icm20948"
)

type fakeIMU struct {
	t   time.Time
	s   icm20948.Sample
	err error
}

func (f *fakeIMU) Read() (icm20948.Sample, error) {
	if f.err != nil {
		return icm20948.Sample{}, f.err
	}
	f.t = f.t.Add(2 * time.Millisecond)
	s := f.s
	s.Time = f.t
	return s, nil
}

func (f *fakeIMU) Acc1G() int32 { return 4096 }

type fakeBaro struct {
	p   float64
	err error
}

func (f *fakeBaro) Pressure() (float64, error) { return f.p, f.err }

type fakeLine struct {
	v      bool
	err    error
	closed bool
}

func (f *fakeLine) Value() (bool, error) { return f.v, f.err }
func (f *fakeLine) Set(on bool) error    { f.v = on; return nil }
func (f *fakeLine) Close() error         { f.closed = true; return nil }

func newTestBoard(t *testing.T, press pressureSensor, imu motionSensor, now func() time.Time) *Board {
	t.Helper()
	if now == nil {
		now = func() time.Time { return time.Unix(1000, 0) }
	}
	b, err := newBoard(Config{GyroCalSamples: 1}, press, imu, ahrs.Identity(), now)
	if err != nil {
		t.Fatalf("newBoard: %v", err)
	}
	return b
}

func TestSampleIMU_AccumulatesVerticalCounts(t *testing.T) {
	imu := &fakeIMU{t: time.Unix(1000, 0), s: icm20948.Sample{Az: 1.5}}
	b := newTestBoard(t, nil, imu, nil)

	for i := 0; i < 5; i++ {
		if err := b.sampleIMU(); err != nil {
			t.Fatalf("sampleIMU: %v", err)
		}
	}
	var acc altitude.AccelAccumulator
	b.TakeAccel(&acc)
	if acc.Count != 5 || acc.TimeSum != 10000 {
		t.Fatalf("window count=%d time=%d", acc.Count, acc.TimeSum)
	}
	if math.Abs(acc.Mean()-2048) > 1e-6 {
		t.Fatalf("mean=%v want 2048", acc.Mean())
	}

	acc.Reset()
	b.TakeAccel(&acc)
	if acc.Count != 0 {
		t.Fatalf("pending not cleared")
	}
}

func TestSampleIMU_ErrorLeavesWindow(t *testing.T) {
	imu := &fakeIMU{t: time.Unix(1000, 0), err: errors.New("nack")}
	b := newTestBoard(t, nil, imu, nil)
	if err := b.sampleIMU(); err == nil {
		t.Fatalf("expected error")
	}
	var acc altitude.AccelAccumulator
	b.TakeAccel(&acc)
	if acc.Count != 0 {
		t.Fatalf("count=%d want 0", acc.Count)
	}
}

func TestAttitude_FromTiltedIMU(t *testing.T) {
	r := 10 * math.Pi / 180
	imu := &fakeIMU{t: time.Unix(1000, 0), s: icm20948.Sample{Ay: math.Sin(r), Az: math.Cos(r)}}
	b := newTestBoard(t, nil, imu, nil)
	if err := b.sampleIMU(); err != nil {
		t.Fatalf("sampleIMU: %v", err)
	}
	roll, pitch := b.Attitude()
	if roll != 1000 || pitch != 0 {
		t.Fatalf("attitude roll=%d pitch=%d want 1000,0", roll, pitch)
	}
}

func TestCalibrateGyro_RemovesBias(t *testing.T) {
	imu := &fakeIMU{t: time.Unix(1000, 0), s: icm20948.Sample{Az: 1, Gx: 2, Gy: -1}}
	b := newTestBoard(t, nil, imu, nil)
	if err := b.calibrateGyro(); err != nil {
		t.Fatalf("calibrateGyro: %v", err)
	}
	for i := 0; i < 10; i++ {
		_ = b.sampleIMU()
	}
	roll, pitch := b.Attitude()
	if roll != 0 || pitch != 0 {
		t.Fatalf("attitude drifted roll=%d pitch=%d", roll, pitch)
	}

	imu.err = errors.New("nack")
	if err := b.calibrateGyro(); err == nil {
		t.Fatalf("expected calibration error")
	}
}

func TestBaro_AveragesPressure(t *testing.T) {
	press := &fakeBaro{p: 101325}
	b := newTestBoard(t, press, &fakeIMU{}, nil)
	if !b.BaroPresent() {
		t.Fatalf("baro should be present")
	}
	if _, ok := b.BaroAltitude(); ok {
		t.Fatalf("no reading expected before sampling")
	}
	if err := b.sampleBaro(); err != nil {
		t.Fatalf("sampleBaro: %v", err)
	}
	alt, ok := b.BaroAltitude()
	if !ok || math.Abs(alt) > 1e-6 {
		t.Fatalf("alt=%v ok=%v want 0", alt, ok)
	}

	press.err = errors.New("implausible")
	if err := b.sampleBaro(); err == nil {
		t.Fatalf("expected error")
	}

	if nb := newTestBoard(t, nil, &fakeIMU{}, nil); nb.BaroPresent() {
		t.Fatalf("baro should be absent")
	}
}

func TestArmed_KeepsStateOnReadError(t *testing.T) {
	b := newTestBoard(t, nil, &fakeIMU{}, nil)
	if b.Armed() {
		t.Fatalf("no arm line: should be disarmed")
	}
	line := &fakeLine{v: true}
	b.arm = line
	if !b.Armed() {
		t.Fatalf("expected armed")
	}
	line.v, line.err = false, errors.New("busy")
	if !b.Armed() {
		t.Fatalf("read error should keep armed")
	}
	line.err = nil
	if b.Armed() {
		t.Fatalf("expected disarmed")
	}
}

func TestShowStatusAndClose(t *testing.T) {
	b := newTestBoard(t, nil, &fakeIMU{}, nil)
	armed, holding, arm := &fakeLine{}, &fakeLine{}, &fakeLine{}
	b.ledArmed, b.ledHolding, b.arm = armed, holding, arm

	b.ShowStatus(true, false)
	if !armed.v || holding.v {
		t.Fatalf("leds armed=%v holding=%v", armed.v, holding.v)
	}
	b.ApplyThrust(-42)
	if b.Thrust() != -42 {
		t.Fatalf("thrust=%d", b.Thrust())
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if armed.v || !armed.closed || !holding.closed || !arm.closed {
		t.Fatalf("close: armed=%+v holding=%+v arm=%+v", armed, holding, arm)
	}
}

func TestMicros_Wraps(t *testing.T) {
	start := time.Unix(1000, 0)
	now := start
	b := newTestBoard(t, nil, &fakeIMU{}, func() time.Time { return now })

	now = start.Add(1500 * time.Microsecond)
	if b.Micros() != 1500 {
		t.Fatalf("micros=%d want 1500", b.Micros())
	}
	now = start.Add((1<<32 + 10) * time.Microsecond)
	if b.Micros() != 10 {
		t.Fatalf("micros=%d want 10 after wrap", b.Micros())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{ForwardAxis: 4}).Validate(); err == nil {
		t.Fatalf("expected forward axis error")
	}
	if err := (Config{IMUPeriod: time.Second, BaroPeriod: time.Millisecond}).Validate(); err == nil {
		t.Fatalf("expected period error")
	}
	if err := (Config{}.withDefaults()).Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}
