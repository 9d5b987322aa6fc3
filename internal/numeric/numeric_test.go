package numeric

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Fatalf("got=%d want=3", got)
	}
	if got := Clamp(-5, 0, 3); got != 0 {
		t.Fatalf("got=%d want=0", got)
	}
	if got := Clamp(2.5, 0.0, 3.0); got != 2.5 {
		t.Fatalf("got=%v want=2.5", got)
	}
	if got := ClampAbs(int32(-900), 500); got != -500 {
		t.Fatalf("got=%d want=-500", got)
	}
}

func TestDeadband_ZeroInsideBand(t *testing.T) {
	for _, v := range []int32{-10, -3, 0, 7, 10} {
		if got := Deadband(v, 10); got != 0 {
			t.Fatalf("Deadband(%d,10)=%d want 0", v, got)
		}
	}
}

func TestDeadband_ShrinksTowardZero(t *testing.T) {
	if got := Deadband(int32(25), 10); got != 15 {
		t.Fatalf("got=%d want=15", got)
	}
	if got := Deadband(int32(-25), 10); got != -15 {
		t.Fatalf("got=%d want=-15", got)
	}
}

func TestDeadband_ContinuousAtEdge(t *testing.T) {
	const band = 5.0
	for _, edge := range []float64{band, -band} {
		inside := Deadband(edge, band)
		justOutside := Deadband(edge+math.Copysign(1e-9, edge), band)
		if inside != 0 {
			t.Fatalf("edge %v: got=%v want 0", edge, inside)
		}
		if math.Abs(justOutside) > 1e-8 {
			t.Fatalf("edge %v: jump to %v", edge, justOutside)
		}
	}
}

func TestComplementaryFilter_ConvexCombination(t *testing.T) {
	pairs := [][2]float64{{0, 10}, {10, 0}, {-40, 25}, {3, 3}}
	for _, p := range pairs {
		lo, hi := math.Min(p[0], p[1]), math.Max(p[0], p[1])
		for w := 0.0; w <= 1.0; w += 0.125 {
			got := ComplementaryFilter(p[0], p[1], w)
			if got < lo-1e-12 || got > hi+1e-12 {
				t.Fatalf("cf(%v,%v,%v)=%v outside [%v,%v]", p[0], p[1], w, got, lo, hi)
			}
		}
	}
	if got := ComplementaryFilter(float32(0), 10, 0.25); got != 2.5 {
		t.Fatalf("got=%v want=2.5", got)
	}
}
