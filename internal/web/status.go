package web

import (
	"sync"
	"sync/atomic"
	"time"

	"althold/internal/altitude"
)

const serviceName = "althold"

// Static is configuration-time information shown on the status page.
type Static struct {
	Board         string `json:"board"`
	Period        string `json:"period"`
	TelemetryDest string `json:"telemetry_dest,omitempty"`
	RecordPath    string `json:"record_path,omitempty"`
	BaroPresent   bool   `json:"baro_present"`
	RangePresent  bool   `json:"range_present"`
}

// HoldSnapshot is the last cycle as served by /api/status.
type HoldSnapshot struct {
	Armed            bool    `json:"armed"`
	Mode             string  `json:"mode"`
	TargetAltitude   int32   `json:"target_alt_cm"`
	Altitude         float64 `json:"alt_cm"`
	InertialAltitude float64 `json:"inertial_alt_cm"`
	Velocity         int32   `json:"vel_cms"`
	VelocitySetpoint int32   `json:"vel_sp_cms"`
	Thrust           int32   `json:"thrust"`
	Tilt             int32   `json:"tilt_cdeg"`
	Health           string  `json:"health"`
	FusionMode       string  `json:"fusion"`
	Authority        string  `json:"authority"`
	Integrator       int32   `json:"integrator"`
	LastCycleUTC     string  `json:"last_cycle_utc,omitempty"`
}

// Status is written by the control loop and read by HTTP handlers.
type Status struct {
	start    time.Time
	tempPath string
	cycles  atomic.Uint64
	updated atomic.Uint64

	mu     sync.RWMutex
	static Static
	hold   HoldSnapshot
}

func NewStatus() *Status {
	return &Status{start: time.Now().UTC(), tempPath: cpuTempPath}
}

func (s *Status) SetStatic(st Static) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.static = st
}

// Observe records one control cycle.
func (s *Status) Observe(now time.Time, in altitude.Input, out altitude.Output, integrator int32) {
	s.cycles.Add(1)
	if !out.Updated {
		return
	}
	s.updated.Add(1)
	snap := HoldSnapshot{
		Armed:            in.Armed,
		Mode:             in.Mode.String(),
		TargetAltitude:   in.TargetAltitude,
		Altitude:         out.Altitude,
		InertialAltitude: out.InertialAltitude,
		Velocity:         out.Velocity,
		VelocitySetpoint: out.VelocitySetpoint,
		Thrust:           out.ThrustCorrection,
		Tilt:             in.Tilt(),
		Health:           out.Health.String(),
		FusionMode:       out.FusionMode.String(),
		Authority:        out.Authority.String(),
		Integrator:       integrator,
		LastCycleUTC:     now.UTC().Format(time.RFC3339Nano),
	}
	s.mu.Lock()
	s.hold = snap
	s.mu.Unlock()
}

type StatusSnapshot struct {
	Service       string       `json:"service"`
	NowUTC        string       `json:"now_utc"`
	UptimeSec     int64        `json:"uptime_sec"`
	Cycles        uint64       `json:"cycles"`
	UpdatedCycles uint64       `json:"updated_cycles"`
	CPUTempC      *float64     `json:"cpu_temp_c,omitempty"`
	Static        Static       `json:"static"`
	Hold          HoldSnapshot `json:"hold"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	var temp *float64
	if c, ok := readCPUTempC(s.tempPath); ok {
		temp = &c
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusSnapshot{
		Service:       serviceName,
		NowUTC:        nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:     int64(nowUTC.Sub(s.start).Seconds()),
		Cycles:        s.cycles.Load(),
		UpdatedCycles: s.updated.Load(),
		CPUTempC:      temp,
		Static:        s.static,
		Hold:          s.hold,
	}
}
