package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"althold/internal/altitude"
	"althold/internal/board"
)

// ScenarioScript is a deterministic, script-driven flight description.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 30s
//	vehicle:
//	  field_elevation_cm: 25000
//	  thrust_gain: 1.0
//	  range_max_cm: 300
//	keyframes:
//	  - t: 0s
//	    armed: false
//	  - t: 1s
//	    armed: true
//	    mode: POSITION
//	    target_alt_cm: 150
//	    terrain_cm: 0
//
// Numeric fields (targets, attitude, terrain) are interpolated between
// keyframes; armed and mode switch at the keyframe time.
// Keyframes must be sorted by non-decreasing t.
type ScenarioScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Vehicle   VehicleConfig `yaml:"vehicle"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is a time-stamped command and environment state.
type Keyframe struct {
	T            time.Duration `yaml:"t"`
	Armed        bool          `yaml:"armed"`
	Mode         string        `yaml:"mode"`
	TargetAltCm  float64       `yaml:"target_alt_cm"`
	TargetVelCms float64       `yaml:"target_vel_cms"`
	RollCdeg     float64       `yaml:"roll_cdeg"`
	PitchCdeg    float64       `yaml:"pitch_cdeg"`
	TerrainCm    float64       `yaml:"terrain_cm"`
}

// Scenario is the validated, runtime representation.
type Scenario struct {
	script   ScenarioScript
	modes    []altitude.ControlMode
	duration time.Duration
}

// ScenarioState is the computed scenario state at a time.
type ScenarioState struct {
	Armed     bool
	Command   board.Command
	RollCdeg  int32
	PitchCdeg int32
	TerrainCm float64
}

// LoadScenarioScript reads and unmarshals a YAML scenario script from path.
func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, err
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	modes := make([]altitude.ControlMode, len(script.Keyframes))
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		m, err := altitude.ParseControlMode(kf.Mode)
		if err != nil {
			return nil, fmt.Errorf("keyframes[%d]: %w", i, err)
		}
		modes[i] = m
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	script.Vehicle = script.Vehicle.withDefaults()
	return &Scenario{script: script, modes: modes, duration: dur}, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// Vehicle returns the vehicle parameters with defaults applied.
func (s *Scenario) Vehicle() VehicleConfig { return s.script.Vehicle }

// StateAt computes scenario state at elapsed, clamped to [0, Duration()].
func (s *Scenario) StateAt(elapsed time.Duration) ScenarioState {
	if s == nil {
		return ScenarioState{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > s.duration {
		elapsed = s.duration
	}

	kfs := s.script.Keyframes
	i0, i1, alpha := selectSegment(kfs, elapsed)
	k0, k1 := kfs[i0], kfs[i1]
	return ScenarioState{
		Armed: k0.Armed,
		Command: board.Command{
			Mode:           s.modes[i0],
			TargetAltitude: int32(lerp(k0.TargetAltCm, k1.TargetAltCm, alpha)),
			TargetVelocity: int32(lerp(k0.TargetVelCms, k1.TargetVelCms, alpha)),
		},
		RollCdeg:  int32(lerp(k0.RollCdeg, k1.RollCdeg, alpha)),
		PitchCdeg: int32(lerp(k0.PitchCdeg, k1.PitchCdeg, alpha)),
		TerrainCm: lerp(k0.TerrainCm, k1.TerrainCm, alpha),
	}
}

// selectSegment returns the keyframe indices around t and the blend between
// them. The first index is the latest keyframe at or before t.
func selectSegment(kfs []Keyframe, t time.Duration) (int, int, float64) {
	if len(kfs) == 1 {
		return 0, 0, 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return 0, 0, 0
	}
	if idx >= len(kfs) {
		last := len(kfs) - 1
		return last, last, 0
	}
	dt := kfs[idx].T - kfs[idx-1].T
	if dt <= 0 {
		return idx, idx, 0
	}
	alpha := float64(t-kfs[idx-1].T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return idx - 1, idx, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
