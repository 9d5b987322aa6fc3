package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"althold/internal/altitude"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresScenarioForSim(t *testing.T) {
	path := writeTempConfig(t, "board:\n  kind: sim\n")
	_, err := Load(path)
	requireErrEq(t, err, "sim.scenario is required when board.kind is sim")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "sim:\n  scenario: ./climb.yaml\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Board.Kind != BoardSim {
		t.Fatalf("kind=%q", cfg.Board.Kind)
	}
	if cfg.Loop.Period != 5*time.Millisecond {
		t.Fatalf("period=%s", cfg.Loop.Period)
	}
	if cfg.Telemetry.Every != 1 || cfg.Replay.Speed != 1 {
		t.Fatalf("telemetry.every=%d replay.speed=%v", cfg.Telemetry.Every, cfg.Replay.Speed)
	}
	if cfg.Board.ArmLine != -1 || cfg.Board.LEDArmedLine != -1 || cfg.Board.LEDHoldingLine != -1 {
		t.Fatalf("gpio lines should default to disabled: %+v", cfg.Board)
	}
	if got, want := cfg.AltitudeConfig(), altitude.DefaultConfig(); got != want {
		t.Fatalf("altitude config=%+v want %+v", got, want)
	}
	if cmd := cfg.StaticCommand(); cmd.Mode != altitude.ModePosition || cmd.TargetAltitude != 0 {
		t.Fatalf("command=%+v", cmd)
	}
}

func TestLoad_OverridesKeepOtherDefaults(t *testing.T) {
	path := writeTempConfig(t, strings.Join([]string{
		"board:",
		"  kind: Hardware",
		"  baro_addr: 0x77",
		"  forward_axis: -1",
		"  gravity: [0, 0, 1]",
		"  led_armed_line: 17",
		"command:",
		"  mode: velocity",
		"  target_vel_cms: 50",
		"altitude:",
		"  vel_p: 90",
		"  update_period: 20ms",
		"  accel_only_velocity_hold: true",
		"",
	}, "\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Board.Kind != BoardHardware {
		t.Fatalf("kind=%q", cfg.Board.Kind)
	}
	hc := cfg.HardwareBoard()
	if hc.BaroAddr != 0x77 || hc.ForwardAxis != -1 || hc.Gravity != [3]float64{0, 0, 1} {
		t.Fatalf("hardware=%+v", hc)
	}
	if hc.LEDArmedLine != 17 || hc.LEDHoldingLine != -1 || hc.ArmLine != -1 {
		t.Fatalf("lines=%+v", hc)
	}
	a := cfg.AltitudeConfig()
	if a.VelP != 90 || a.UpdatePeriod != 20*time.Millisecond || !a.AccelOnlyVelocityHold {
		t.Fatalf("altitude=%+v", a)
	}
	if a.VelI != altitude.DefaultConfig().VelI {
		t.Fatalf("vel_i=%d should keep its default", a.VelI)
	}
	cmd := cfg.StaticCommand()
	if cmd.Mode != altitude.ModeVelocity || cmd.TargetVelocity != 50 {
		t.Fatalf("command=%+v", cmd)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown board",
			yaml: "board:\n  kind: fpga\n",
			want: `board.kind "fpga" must be "sim" or "hardware"`,
		},
		{
			name: "loop slower than update",
			yaml: "sim:\n  scenario: s.yaml\nloop:\n  period: 50ms\n",
			want: "loop.period 50ms must not exceed altitude.update_period 25ms",
		},
		{
			name: "zero loop",
			yaml: "sim:\n  scenario: s.yaml\nloop:\n  period: 0s\n",
			want: "loop.period must be > 0",
		},
		{
			name: "bad mode",
			yaml: "sim:\n  scenario: s.yaml\ncommand:\n  mode: hover\n",
			want: `command.mode: altitude: unknown control mode "HOVER"`,
		},
		{
			name: "bad weight",
			yaml: "sim:\n  scenario: s.yaml\naltitude:\n  velocity_cf_weight: 1.5\n",
			want: "altitude: velocity filter weight 1.5 must be in (0,1)",
		},
		{
			name: "gravity length",
			yaml: "board:\n  kind: hardware\n  gravity: [0, 1]\n",
			want: "board.gravity must have 3 elements",
		},
		{
			name: "forward axis",
			yaml: "board:\n  kind: hardware\n  forward_axis: 4\n",
			want: "hwboard: forward axis 4 out of range",
		},
		{
			name: "negative speed",
			yaml: "sim:\n  scenario: s.yaml\nreplay:\n  speed: -2\n",
			want: "replay.speed must be >= 0",
		},
		{
			name: "record and replay",
			yaml: "sim:\n  scenario: s.yaml\nrecord:\n  path: a.log\nreplay:\n  path: b.log\n",
			want: "record.path and replay.path cannot both be set",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
