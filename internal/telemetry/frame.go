package telemetry

import (
	"encoding/json"

	"althold/internal/altitude"
)

// Frame is one telemetry datagram.
type Frame struct {
	Seq       uint64 `json:"seq"`
	Timestamp uint32 `json:"t_us"`
	Armed     bool   `json:"armed"`

	TargetAltitude   int32   `json:"target_alt_cm"`
	Altitude         float64 `json:"alt_cm"`
	InertialAltitude float64 `json:"inertial_alt_cm"`
	Velocity         int32   `json:"vel_cms"`
	VelocitySetpoint int32   `json:"vel_sp_cms"`
	Thrust           int32   `json:"thrust"`

	Health     string `json:"health"`
	FusionMode string `json:"fusion"`
	Authority  string `json:"authority"`
}

// NewFrame builds a frame from one cycle.
func NewFrame(seq uint64, in altitude.Input, out altitude.Output) Frame {
	return Frame{
		Seq:              seq,
		Timestamp:        in.Timestamp,
		Armed:            in.Armed,
		TargetAltitude:   in.TargetAltitude,
		Altitude:         out.Altitude,
		InertialAltitude: out.InertialAltitude,
		Velocity:         out.Velocity,
		VelocitySetpoint: out.VelocitySetpoint,
		Thrust:           out.ThrustCorrection,
		Health:           out.Health.String(),
		FusionMode:       out.FusionMode.String(),
		Authority:        out.Authority.String(),
	}
}

type sender interface {
	Send(payload []byte) error
}

// Publisher sends every Nth updated cycle.
type Publisher struct {
	s     sender
	every uint64
	n     uint64
	seq   uint64
}

// NewPublisher decimates to one frame per every updated cycles (1 if < 1).
func NewPublisher(s sender, every int) *Publisher {
	if every < 1 {
		every = 1
	}
	return &Publisher{s: s, every: uint64(every)}
}

// Publish sends the cycle if it is due. Rate-limited cycles are skipped.
func (p *Publisher) Publish(in altitude.Input, out altitude.Output) error {
	if !out.Updated {
		return nil
	}
	p.n++
	if p.n%p.every != 0 {
		return nil
	}
	p.seq++
	b, err := json.Marshal(NewFrame(p.seq, in, out))
	if err != nil {
		return err
	}
	return p.s.Send(b)
}
