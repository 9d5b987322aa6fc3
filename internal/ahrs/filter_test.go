package ahrs

import (
	"math"
	"testing"
	"time"
)

func tiltedSample(t0 time.Time, rollDeg, pitchDeg float64) Sample {
	r := rollDeg * math.Pi / 180
	p := pitchDeg * math.Pi / 180
	return Sample{
		Time: t0,
		Ax:   -math.Sin(p),
		Ay:   math.Sin(r) * math.Cos(p),
		Az:   math.Cos(r) * math.Cos(p),
	}
}

func TestFilter_FirstSampleUsesAccel(t *testing.T) {
	f := NewFilter(0, Identity())
	a := f.Update(tiltedSample(time.Unix(100, 0), 10, -5))
	if math.Abs(a.RollDeg-10) > 1e-9 || math.Abs(a.PitchDeg+5) > 1e-9 {
		t.Fatalf("attitude=%+v want roll=10 pitch=-5", a)
	}
	if a.RollCdeg() != 1000 || a.PitchCdeg() != -500 {
		t.Fatalf("cdeg roll=%d pitch=%d", a.RollCdeg(), a.PitchCdeg())
	}
}

func TestFilter_GyroIntegratesThenAccelPullsBack(t *testing.T) {
	f := NewFilter(DefaultTau, Identity())
	t0 := time.Unix(100, 0)
	f.Update(tiltedSample(t0, 0, 0))

	// Level accel with a 100 deg/s roll rate for one 10 ms step.
	s := tiltedSample(t0.Add(10*time.Millisecond), 0, 0)
	s.Gx = 100
	a := f.Update(s)
	alpha := 0.5 / (0.5 + 0.01)
	want := alpha * 1.0
	if math.Abs(a.RollDeg-want) > 1e-9 {
		t.Fatalf("roll=%v want %v", a.RollDeg, want)
	}

	// Without rate the estimate decays back toward level.
	for i := 2; i < 500; i++ {
		a = f.Update(tiltedSample(t0.Add(time.Duration(i)*10*time.Millisecond), 0, 0))
	}
	if math.Abs(a.RollDeg) > 0.01 {
		t.Fatalf("roll=%v want ~0", a.RollDeg)
	}
}

func TestFilter_GapResetsToAccel(t *testing.T) {
	f := NewFilter(DefaultTau, Identity())
	t0 := time.Unix(100, 0)
	f.Update(tiltedSample(t0, 0, 0))

	s := tiltedSample(t0.Add(2*time.Second), 20, 0)
	s.Gx = 1000
	a := f.Update(s)
	if math.Abs(a.RollDeg-20) > 1e-9 {
		t.Fatalf("roll=%v want 20 after gap", a.RollDeg)
	}
}

func TestFilter_GyroBias(t *testing.T) {
	f := NewFilter(DefaultTau, Identity())
	f.SetGyroBias(3, -2)
	t0 := time.Unix(100, 0)
	f.Update(tiltedSample(t0, 0, 0))
	s := tiltedSample(t0.Add(10*time.Millisecond), 0, 0)
	s.Gx, s.Gy = 3, -2
	a := f.Update(s)
	if a.RollDeg != 0 || a.PitchDeg != 0 {
		t.Fatalf("bias not removed: %+v", a)
	}
}

func TestFilter_VerticalAccelRemovesGravityWhenTilted(t *testing.T) {
	f := NewFilter(DefaultTau, Identity())
	f.Update(tiltedSample(time.Unix(100, 0), 30, 15))
	if v := f.VerticalAccel(); math.Abs(v) > 1e-9 {
		t.Fatalf("static vertical accel=%v want 0", v)
	}

	// 0.5 g upward thrust on a level airframe.
	f = NewFilter(DefaultTau, Identity())
	f.Update(Sample{Time: time.Unix(100, 0), Az: 1.5})
	if v := f.VerticalAccel(); math.Abs(v-0.5) > 1e-9 {
		t.Fatalf("vertical accel=%v want 0.5", v)
	}
}
