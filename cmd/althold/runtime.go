package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"althold/internal/altitude"
	"althold/internal/board"
	"althold/internal/config"
	"althold/internal/hwboard"
	"althold/internal/replay"
	"althold/internal/sim"
	"althold/internal/telemetry"
	"althold/internal/web"
)

type runtime struct {
	b       board.Board
	clock   board.Clocked
	cmd     board.Commander
	sensors altitude.Sensors
	acc1G   float64
	hold    *altitude.Hold
	stager  *board.Stager
	period  time.Duration
	pace    bool

	status *web.Status
	pub    *telemetry.Publisher
	rec    *replay.Recorder

	started bool
	prev    altitude.Output
	armed   bool
	pubErr  bool
}

// openBoard builds the board selected by cfg.Board.Kind.
func openBoard(ctx context.Context, cfg config.Config) (board.Board, error) {
	switch cfg.Board.Kind {
	case config.BoardSim:
		script, err := sim.LoadScenarioScript(cfg.Sim.Scenario)
		if err != nil {
			return nil, err
		}
		sc, err := sim.NewScenario(script)
		if err != nil {
			return nil, err
		}
		b, err := sim.NewBoard(sc)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BoardHardware:
		b, err := hwboard.Open(ctx, cfg.HardwareBoard())
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown board kind %q", cfg.Board.Kind)
	}
}

// altitudeConfig applies the board's accelerometer scale, if it reports one.
func altitudeConfig(cfg config.Config, b board.Board) altitude.Config {
	ac := cfg.AltitudeConfig()
	if s, ok := b.(board.Scaled); ok && s.Acc1G() > 0 {
		ac.Acc1G = float64(s.Acc1G())
	}
	return ac
}

func newRuntime(cfg config.Config, b board.Board, status *web.Status) (*runtime, error) {
	if b == nil {
		return nil, fmt.Errorf("board is nil")
	}
	if status == nil {
		return nil, fmt.Errorf("status is nil")
	}
	sensors := board.Sensors(b)
	ac := altitudeConfig(cfg, b)
	hold, err := altitude.New(ac, sensors)
	if err != nil {
		return nil, err
	}

	r := &runtime{
		b:       b,
		sensors: sensors,
		acc1G:   ac.Acc1G,
		hold:    hold,
		stager:  board.NewStager(b),
		period:  cfg.Loop.Period,
		pace:    true,
		status:  status,
	}
	if c, ok := b.(board.Clocked); ok {
		r.clock = c
		r.pace = cfg.Sim.Realtime
	}
	if c, ok := b.(board.Commander); ok {
		r.cmd = c
	} else {
		r.cmd = cfg.StaticCommand()
	}
	return r, nil
}

// startRecording opens a cycle log at path. The accelerometer scale is
// written as a comment so the log can be replayed without the board.
func (r *runtime) startRecording(path string) error {
	w, err := replay.CreateWriter(path)
	if err != nil {
		return err
	}
	if err := w.Comment(fmt.Sprintf("%s%g", acc1GComment, r.acc1G)); err != nil {
		_ = w.Close()
		return err
	}
	r.rec = replay.NewRecorder(w)
	return nil
}

// step runs one control cycle.
func (r *runtime) step(now time.Time) altitude.Output {
	if r.clock != nil {
		r.clock.Advance(r.period)
	}
	in := r.stager.Stage(r.cmd.Command())
	acc := *r.stager.Accumulator()
	out := r.hold.Update(in, r.stager.Accumulator())
	if out.Updated {
		r.b.ApplyThrust(out.ThrustCorrection)
	}
	r.b.ShowStatus(in.Armed, in.Armed && out.Authority == altitude.AuthorityActive && out.Health != altitude.HealthSensorUnavailable)

	r.logTransitions(in, out)
	r.status.Observe(now, in, out, r.hold.Integrator())

	if r.pub != nil {
		if err := r.pub.Publish(in, out); err != nil {
			if !r.pubErr {
				log.Printf("telemetry send failed: %v", err)
				r.pubErr = true
			}
		} else if out.Updated && r.pubErr {
			log.Printf("telemetry send recovered")
			r.pubErr = false
		}
	}
	if r.rec != nil {
		if err := r.rec.Record(replay.Cycle{Sensors: r.sensors, Input: in, Accel: acc, Output: out}); err != nil {
			log.Printf("record failed, recording stopped: %v", err)
			_ = r.rec.Close()
			r.rec = nil
		}
	}
	return out
}

func (r *runtime) logTransitions(in altitude.Input, out altitude.Output) {
	if in.Armed != r.armed {
		if in.Armed {
			log.Printf("armed: mode=%s target=%dcm", in.Mode, in.TargetAltitude)
		} else {
			log.Printf("disarmed")
		}
		r.armed = in.Armed
	}
	if !out.Updated {
		return
	}
	if !r.started {
		r.started = true
		log.Printf("hold running: health=%s fusion=%s authority=%s", out.Health, out.FusionMode, out.Authority)
		r.prev = out
		return
	}
	if out.Health != r.prev.Health {
		log.Printf("health %s -> %s", r.prev.Health, out.Health)
	}
	if out.FusionMode != r.prev.FusionMode {
		log.Printf("fusion %s -> %s at %.0fcm", r.prev.FusionMode, out.FusionMode, out.Altitude)
	}
	if out.Authority != r.prev.Authority {
		log.Printf("authority %s -> %s (tilt %dcdeg)", r.prev.Authority, out.Authority, in.Tilt())
	}
	r.prev = out
}

// run steps until ctx is done or a simulated board runs out of scenario.
func (r *runtime) run(ctx context.Context) error {
	var tick <-chan time.Time
	if r.pace {
		t := time.NewTicker(r.period)
		defer t.Stop()
		tick = t.C
	}
	for {
		if r.clock != nil && r.clock.Done() {
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-tick:
				r.step(now)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.step(time.Now())
	}
}

// Close flushes the recorder and releases the board.
func (r *runtime) Close() error {
	if r.rec != nil {
		if err := r.rec.Close(); err != nil {
			log.Printf("record close: %v", err)
		}
		r.rec = nil
	}
	return r.b.Close()
}
