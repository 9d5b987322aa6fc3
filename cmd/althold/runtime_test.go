package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"althold/internal/altitude"
	"althold/internal/config"
	"althold/internal/telemetry"
	"althold/internal/web"
)

const climbScenario = `
vehicle:
  field_elevation_cm: 10000
  range_present: true
  seed: 7
keyframes:
  - t: 0s
  - t: 1s
    armed: true
    target_alt_cm: 100
  - t: 4s
    armed: true
    target_alt_cm: 100
`

type fakeSender struct {
	frames [][]byte
}

func (s *fakeSender) Send(payload []byte) error {
	s.frames = append(s.frames, append([]byte(nil), payload...))
	return nil
}

type fakeSleeper struct {
	total time.Duration
}

func (s *fakeSleeper) Sleep(d time.Duration) { s.total += d }

func simConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "climb.yaml")
	if err := os.WriteFile(path, []byte(climbScenario), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	cfg := config.Default()
	cfg.Sim.Scenario = path
	if err := config.DefaultAndValidate(&cfg); err != nil {
		t.Fatalf("DefaultAndValidate() error: %v", err)
	}
	return cfg
}

// recordSimRun runs the climb scenario to completion and returns the log path.
func recordSimRun(t *testing.T, cfg config.Config, status *web.Status, s *fakeSender) string {
	t.Helper()
	b, err := openBoard(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openBoard() error: %v", err)
	}
	r, err := newRuntime(cfg, b, status)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	if r.pace {
		t.Fatalf("sim runtime should not be paced by default")
	}
	if s != nil {
		r.pub = telemetry.NewPublisher(s, 4)
	}
	logPath := filepath.Join(t.TempDir(), "cycles.log")
	if err := r.startRecording(logPath); err != nil {
		t.Fatalf("startRecording() error: %v", err)
	}
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	return logPath
}

func TestRuntime_SimScenarioRunsToCompletion(t *testing.T) {
	cfg := simConfig(t)
	status := web.NewStatus()
	var s fakeSender
	recordSimRun(t, cfg, status, &s)

	snap := status.Snapshot(time.Time{})
	if snap.Cycles != 800 {
		t.Fatalf("cycles=%d want 800", snap.Cycles)
	}
	if snap.UpdatedCycles < 100 || snap.UpdatedCycles > 160 {
		t.Fatalf("updated cycles=%d", snap.UpdatedCycles)
	}
	if !snap.Hold.Armed || snap.Hold.TargetAltitude != 100 {
		t.Fatalf("hold=%+v", snap.Hold)
	}
	if snap.Hold.Health != "OK" {
		t.Fatalf("health=%q", snap.Hold.Health)
	}

	if len(s.frames) == 0 {
		t.Fatalf("expected telemetry frames")
	}
	if want := int(snap.UpdatedCycles) / 4; len(s.frames) != want {
		t.Fatalf("frames=%d want %d", len(s.frames), want)
	}
	var f telemetry.Frame
	if err := json.Unmarshal(s.frames[len(s.frames)-1], &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if !f.Armed || f.TargetAltitude != 100 {
		t.Fatalf("frame=%+v", f)
	}
}

func TestRuntime_RecordingReplaysExactly(t *testing.T) {
	cfg := simConfig(t)
	logPath := recordSimRun(t, cfg, web.NewStatus(), nil)

	n, err := runReplay(cfg, logPath, nil, nil)
	if err != nil {
		t.Fatalf("runReplay() error: %v", err)
	}
	if n != 800 {
		t.Fatalf("verified=%d want 800", n)
	}

	// A config with a different accelerometer scale is overridden by the
	// value recorded in the log.
	cfg.Altitude.Acc1G = 4096
	if _, err := runReplay(cfg, logPath, nil, nil); err != nil {
		t.Fatalf("runReplay() with recorded acc_1g: %v", err)
	}
}

func TestRunReplay_RepublishesFrames(t *testing.T) {
	cfg := simConfig(t)
	status := web.NewStatus()
	logPath := recordSimRun(t, cfg, status, nil)

	cfg.Telemetry.Every = 2
	cfg.Replay.Speed = 4
	var s fakeSender
	var sl fakeSleeper
	if _, err := runReplay(cfg, logPath, &s, &sl); err != nil {
		t.Fatalf("runReplay() error: %v", err)
	}
	if want := int(status.Snapshot(time.Time{}).UpdatedCycles) / 2; len(s.frames) != want {
		t.Fatalf("frames=%d want %d", len(s.frames), want)
	}
	if sl.total <= 0 {
		t.Fatalf("expected paced playback")
	}
}

func TestRunReplay_MissingFile(t *testing.T) {
	if _, err := runReplay(config.Default(), filepath.Join(t.TempDir(), "nope.log"), nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLogSummary_SimRun(t *testing.T) {
	cfg := simConfig(t)
	status := web.NewStatus()
	logPath := recordSimRun(t, cfg, status, nil)

	var buf bytes.Buffer
	if err := printLogSummary(&buf, logPath); err != nil {
		t.Fatalf("printLogSummary() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"segments: 1\n", "cycles: 800\n", "invalid_cycles: 0\n", "health:\n  OK: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if err := printLogSummary(&buf, " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRecordedAcc1G(t *testing.T) {
	cases := []struct {
		comments []string
		want     float64
		ok       bool
	}{
		{nil, 0, false},
		{[]string{"note", "acc_1g=4096"}, 4096, true},
		{[]string{"acc_1g=abc"}, 0, false},
		{[]string{"acc_1g=-1"}, 0, false},
	}
	for _, tc := range cases {
		got, ok := recordedAcc1G(tc.comments)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("recordedAcc1G(%q)=%v,%v want %v,%v", tc.comments, got, ok, tc.want, tc.ok)
		}
	}
}

type fakeBoard struct {
	micros  uint32
	applied int
	armed   bool
	holding bool
	closed  bool
}

func (b *fakeBoard) Micros() uint32 {
	b.micros += 5000
	return b.micros
}
func (b *fakeBoard) BaroPresent() bool                      { return true }
func (b *fakeBoard) BaroAltitude() (float64, bool)          { return 1000, true }
func (b *fakeBoard) RangePresent() bool                     { return false }
func (b *fakeBoard) RangeDistance() (int32, bool)           { return 0, false }
func (b *fakeBoard) Attitude() (int32, int32)               { return 0, 0 }
func (b *fakeBoard) Armed() bool                            { return true }
func (b *fakeBoard) TakeAccel(a *altitude.AccelAccumulator) { a.Add(0, 5000) }
func (b *fakeBoard) ApplyThrust(int32)                      { b.applied++ }
func (b *fakeBoard) ShowStatus(armed, holding bool)         { b.armed, b.holding = armed, holding }
func (b *fakeBoard) Close() error                           { b.closed = true; return nil }

func TestRuntime_StaticCommandForPlainBoards(t *testing.T) {
	cfg := config.Default()
	cfg.Command.TargetAltCm = 300
	b := &fakeBoard{}
	status := web.NewStatus()
	r, err := newRuntime(cfg, b, status)
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	if !r.pace || r.clock != nil {
		t.Fatalf("plain board must be paced by the wall clock")
	}
	for i := 0; i < 20; i++ {
		r.step(time.Now())
	}
	snap := status.Snapshot(time.Time{})
	if snap.Hold.TargetAltitude != 300 || snap.Hold.Mode != "POSITION" {
		t.Fatalf("hold=%+v", snap.Hold)
	}
	if b.applied == 0 || int(snap.UpdatedCycles) != b.applied {
		t.Fatalf("applied=%d updated=%d", b.applied, snap.UpdatedCycles)
	}
	if !b.armed || !b.holding {
		t.Fatalf("status leds armed=%v holding=%v", b.armed, b.holding)
	}
	if err := r.Close(); err != nil || !b.closed {
		t.Fatalf("Close() err=%v closed=%v", err, b.closed)
	}
}

func TestNewRuntime_RejectsNil(t *testing.T) {
	if _, err := newRuntime(config.Default(), nil, web.NewStatus()); err == nil {
		t.Fatalf("expected error for nil board")
	}
	if _, err := newRuntime(config.Default(), &fakeBoard{}, nil); err == nil {
		t.Fatalf("expected error for nil status")
	}
}
