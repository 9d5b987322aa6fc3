// Package config loads the althold YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"althold/internal/altitude"
	"althold/internal/board"
	"althold/internal/hwboard"
)

const (
	BoardSim      = "sim"
	BoardHardware = "hardware"
)

type Config struct {
	Loop      LoopConfig      `yaml:"loop"`
	Board     BoardConfig     `yaml:"board"`
	Command   CommandConfig   `yaml:"command"`
	Altitude  AltitudeConfig  `yaml:"altitude"`
	Sim       SimConfig       `yaml:"sim"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Web       WebConfig       `yaml:"web"`
	Record    RecordConfig    `yaml:"record"`
	Replay    ReplayConfig    `yaml:"replay"`
}

type LoopConfig struct {
	Period time.Duration `yaml:"period"`
}

type BoardConfig struct {
	Kind       string        `yaml:"kind"`
	I2CBus     int           `yaml:"i2c_bus"`
	BaroAddr   uint16        `yaml:"baro_addr"`
	IMUAddr    uint16        `yaml:"imu_addr"`
	IMUPeriod  time.Duration `yaml:"imu_period"`
	BaroPeriod time.Duration `yaml:"baro_period"`

	ForwardAxis int       `yaml:"forward_axis"`
	Gravity     []float64 `yaml:"gravity"`

	GyroCalSamples int `yaml:"gyro_cal_samples"`

	ArmLine        int  `yaml:"arm_line"`
	ArmActiveLow   bool `yaml:"arm_active_low"`
	LEDArmedLine   int  `yaml:"led_armed_line"`
	LEDHoldingLine int  `yaml:"led_holding_line"`
}

// CommandConfig is the fixed vertical command used by boards that have no
// command source of their own.
type CommandConfig struct {
	Mode         string `yaml:"mode"`
	TargetAltCm  int32  `yaml:"target_alt_cm"`
	TargetVelCms int32  `yaml:"target_vel_cms"`
}

// AltitudeConfig mirrors altitude.Config.
type AltitudeConfig struct {
	UpdatePeriod time.Duration `yaml:"update_period"`
	StaleLimit   time.Duration `yaml:"stale_limit"`
	Acc1G        float64       `yaml:"acc_1g"`

	RangeTiltLimit        int32         `yaml:"range_tilt_limit_cdeg"`
	RangeMaxTrusted       int32         `yaml:"range_max_trusted_cm"`
	RangeMaxReported      int32         `yaml:"range_max_reported_cm"`
	RangeTransitionWindow time.Duration `yaml:"range_transition_window"`

	VelocityCFWeight float64 `yaml:"velocity_cf_weight"`
	AltitudeCFWeight float64 `yaml:"altitude_cf_weight"`

	FusedVelocityLimit    int32 `yaml:"fused_velocity_limit_cms"`
	FusedVelocityDeadband int32 `yaml:"fused_velocity_deadband_cms"`
	VarioDeadband         int32 `yaml:"vario_deadband_cms"`

	AuthorityTiltLimit int32 `yaml:"authority_tilt_limit_cdeg"`

	AltP               int32 `yaml:"alt_p"`
	PositionErrorLimit int32 `yaml:"position_error_limit_cm"`
	PositionDeadband   int32 `yaml:"position_deadband_cm"`
	VelocityLimit      int32 `yaml:"velocity_limit_cms"`

	VelP            int32 `yaml:"vel_p"`
	VelI            int32 `yaml:"vel_i"`
	VelD            int32 `yaml:"vel_d"`
	PLimit          int32 `yaml:"p_limit"`
	IntegratorLimit int32 `yaml:"integrator_limit"`
	DLimit          int32 `yaml:"d_limit"`

	AccelOnlyVelocityHold bool `yaml:"accel_only_velocity_hold"`
}

type SimConfig struct {
	Scenario string `yaml:"scenario"`
	// Realtime paces the simulation with the wall clock; otherwise it runs
	// as fast as the loop allows.
	Realtime bool `yaml:"realtime"`
}

type TelemetryConfig struct {
	Dest  string `yaml:"dest"`
	Every int    `yaml:"every"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type RecordConfig struct {
	Path string `yaml:"path"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
}

// Default returns a configuration with every optional field set.
func Default() Config {
	a := altitude.DefaultConfig()
	return Config{
		Loop:  LoopConfig{Period: 5 * time.Millisecond},
		Board: BoardConfig{Kind: BoardSim, I2CBus: 1, ArmLine: -1, LEDArmedLine: -1, LEDHoldingLine: -1},
		Altitude: AltitudeConfig{
			UpdatePeriod:          a.UpdatePeriod,
			StaleLimit:            a.StaleLimit,
			Acc1G:                 a.Acc1G,
			RangeTiltLimit:        a.RangeTiltLimit,
			RangeMaxTrusted:       a.RangeMaxTrusted,
			RangeMaxReported:      a.RangeMaxReported,
			RangeTransitionWindow: a.RangeTransitionWindow,
			VelocityCFWeight:      a.VelocityCFWeight,
			AltitudeCFWeight:      a.AltitudeCFWeight,
			FusedVelocityLimit:    a.FusedVelocityLimit,
			FusedVelocityDeadband: a.FusedVelocityDeadband,
			VarioDeadband:         a.VarioDeadband,
			AuthorityTiltLimit:    a.AuthorityTiltLimit,
			AltP:                  a.AltP,
			PositionErrorLimit:    a.PositionErrorLimit,
			PositionDeadband:      a.PositionDeadband,
			VelocityLimit:         a.VelocityLimit,
			VelP:                  a.VelP,
			VelI:                  a.VelI,
			VelD:                  a.VelD,
			PLimit:                a.PLimit,
			IntegratorLimit:       a.IntegratorLimit,
			DLimit:                a.DLimit,
			AccelOnlyVelocityHold: a.AccelOnlyVelocityHold,
		},
		Telemetry: TelemetryConfig{Every: 1},
		Replay:    ReplayConfig{Speed: 1},
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML over Default and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills fields that YAML may have zeroed explicitly and
// checks cross-field rules.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	cfg.Board.Kind = strings.ToLower(strings.TrimSpace(cfg.Board.Kind))
	if cfg.Board.Kind == "" {
		cfg.Board.Kind = BoardSim
	}
	if cfg.Telemetry.Every <= 0 {
		cfg.Telemetry.Every = 1
	}
	if cfg.Replay.Speed == 0 {
		cfg.Replay.Speed = 1
	}

	if cfg.Loop.Period <= 0 {
		return fmt.Errorf("loop.period must be > 0")
	}
	if cfg.Loop.Period > cfg.Altitude.UpdatePeriod {
		return fmt.Errorf("loop.period %s must not exceed altitude.update_period %s", cfg.Loop.Period, cfg.Altitude.UpdatePeriod)
	}

	switch cfg.Board.Kind {
	case BoardSim:
		if strings.TrimSpace(cfg.Sim.Scenario) == "" {
			return fmt.Errorf("sim.scenario is required when board.kind is sim")
		}
	case BoardHardware:
		if len(cfg.Board.Gravity) != 0 && len(cfg.Board.Gravity) != 3 {
			return fmt.Errorf("board.gravity must have 3 elements")
		}
		if err := cfg.HardwareBoard().Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("board.kind %q must be %q or %q", cfg.Board.Kind, BoardSim, BoardHardware)
	}

	if _, err := altitude.ParseControlMode(strings.ToUpper(strings.TrimSpace(cfg.Command.Mode))); err != nil {
		return fmt.Errorf("command.mode: %w", err)
	}
	if err := cfg.AltitudeConfig().Validate(); err != nil {
		return err
	}

	if cfg.Replay.Speed < 0 {
		return fmt.Errorf("replay.speed must be >= 0")
	}
	if cfg.Record.Path != "" && cfg.Replay.Path != "" {
		return fmt.Errorf("record.path and replay.path cannot both be set")
	}
	return nil
}

func (c Config) AltitudeConfig() altitude.Config {
	a := c.Altitude
	return altitude.Config{
		UpdatePeriod:          a.UpdatePeriod,
		StaleLimit:            a.StaleLimit,
		Acc1G:                 a.Acc1G,
		RangeTiltLimit:        a.RangeTiltLimit,
		RangeMaxTrusted:       a.RangeMaxTrusted,
		RangeMaxReported:      a.RangeMaxReported,
		RangeTransitionWindow: a.RangeTransitionWindow,
		VelocityCFWeight:      a.VelocityCFWeight,
		AltitudeCFWeight:      a.AltitudeCFWeight,
		FusedVelocityLimit:    a.FusedVelocityLimit,
		FusedVelocityDeadband: a.FusedVelocityDeadband,
		VarioDeadband:         a.VarioDeadband,
		AuthorityTiltLimit:    a.AuthorityTiltLimit,
		AltP:                  a.AltP,
		PositionErrorLimit:    a.PositionErrorLimit,
		PositionDeadband:      a.PositionDeadband,
		VelocityLimit:         a.VelocityLimit,
		VelP:                  a.VelP,
		VelI:                  a.VelI,
		VelD:                  a.VelD,
		PLimit:                a.PLimit,
		IntegratorLimit:       a.IntegratorLimit,
		DLimit:                a.DLimit,
		AccelOnlyVelocityHold: a.AccelOnlyVelocityHold,
	}
}

func (c Config) HardwareBoard() hwboard.Config {
	b := c.Board
	hc := hwboard.Config{
		I2CBus:         b.I2CBus,
		BaroAddr:       b.BaroAddr,
		IMUAddr:        b.IMUAddr,
		IMUPeriod:      b.IMUPeriod,
		BaroPeriod:     b.BaroPeriod,
		ForwardAxis:    b.ForwardAxis,
		GyroCalSamples: b.GyroCalSamples,
		ArmLine:        b.ArmLine,
		ArmActiveLow:   b.ArmActiveLow,
		LEDArmedLine:   b.LEDArmedLine,
		LEDHoldingLine: b.LEDHoldingLine,
	}
	if len(b.Gravity) == 3 {
		hc.Gravity = [3]float64{b.Gravity[0], b.Gravity[1], b.Gravity[2]}
	}
	return hc
}

// StaticCommand is the configured command. Call after validation.
func (c Config) StaticCommand() board.StaticCommand {
	mode, _ := altitude.ParseControlMode(strings.ToUpper(strings.TrimSpace(c.Command.Mode)))
	return board.StaticCommand{
		Mode:           mode,
		TargetAltitude: c.Command.TargetAltCm,
		TargetVelocity: c.Command.TargetVelCms,
	}
}
