package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"althold/internal/config"
	"althold/internal/telemetry"
	"althold/internal/web"
)

func main() {
	var configPath, replayPath, summaryPath string
	flag.StringVar(&configPath, "config", "./althold.yaml", "Path to YAML config")
	flag.StringVar(&replayPath, "replay", "", "Verify a recorded cycle log instead of running the loop")
	flag.StringVar(&summaryPath, "log-summary", "", "Print a summary of a recorded cycle log and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printLogSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("log summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if replayPath == "" {
		replayPath = cfg.Replay.Path
	}
	if replayPath != "" {
		var s frameSender
		if cfg.Telemetry.Dest != "" {
			bc, err := telemetry.NewBroadcaster(cfg.Telemetry.Dest)
			if err != nil {
				log.Fatalf("telemetry init failed: %v", err)
			}
			defer bc.Close()
			s = bc
		}
		if _, err := runReplay(cfg, replayPath, s, nil); err != nil {
			log.Fatalf("replay failed: %v", err)
		}
		return
	}

	if err := runLive(ctx, cfg, logs); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("althold stopped: %v", err)
	}
	log.Printf("althold stopping")
}

func runLive(ctx context.Context, cfg config.Config, logs *web.LogBuffer) error {
	b, err := openBoard(ctx, cfg)
	if err != nil {
		return err
	}
	status := web.NewStatus()
	r, err := newRuntime(cfg, b, status)
	if err != nil {
		_ = b.Close()
		return err
	}
	defer r.Close()

	static := web.Static{
		Board:        cfg.Board.Kind,
		Period:       cfg.Loop.Period.String(),
		BaroPresent:  r.sensors.Baro,
		RangePresent: r.sensors.Range,
	}
	if cfg.Telemetry.Dest != "" {
		bc, err := telemetry.NewBroadcaster(cfg.Telemetry.Dest)
		if err != nil {
			return err
		}
		defer bc.Close()
		r.pub = telemetry.NewPublisher(bc, cfg.Telemetry.Every)
		static.TelemetryDest = bc.Dest()
	}
	if cfg.Record.Path != "" {
		if err := r.startRecording(cfg.Record.Path); err != nil {
			return err
		}
		static.RecordPath = cfg.Record.Path
	}
	status.SetStatic(static)

	if cfg.Web.Listen != "" {
		go func() {
			if err := web.Serve(ctx, cfg.Web.Listen, web.Handler(status, logs)); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	log.Printf("althold starting: board=%s period=%s baro=%v range=%v acc_1g=%g",
		cfg.Board.Kind, cfg.Loop.Period, r.sensors.Baro, r.sensors.Range, r.acc1G)
	if err := r.run(ctx); err != nil {
		return err
	}
	log.Printf("scenario complete after %d cycles", status.Snapshot(time.Time{}).Cycles)
	return nil
}
