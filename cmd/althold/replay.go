package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"althold/internal/config"
	"althold/internal/replay"
	"althold/internal/telemetry"
)

const acc1GComment = "acc_1g="

type frameSender interface {
	Send(payload []byte) error
}

// recordedAcc1G finds the accelerometer scale written by startRecording.
func recordedAcc1G(comments []string) (float64, bool) {
	for _, c := range comments {
		v, ok := strings.CutPrefix(c, acc1GComment)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f <= 0 {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// runReplay re-runs the cycle log at path and fails on the first output that
// differs from the recorded one. With a sender, the recorded frames are then
// re-published with their original timing scaled by cfg.Replay.Speed.
func runReplay(cfg config.Config, path string, s frameSender, sleeper replay.Sleeper) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	rr := replay.NewReader(f)
	recs, err := rr.ReadAll()
	if err != nil {
		return 0, err
	}

	ac := cfg.AltitudeConfig()
	if v, ok := recordedAcc1G(rr.Comments()); ok {
		ac.Acc1G = v
	}
	n, err := replay.Verify(recs, ac)
	if err != nil {
		return n, err
	}
	log.Printf("replay: %d cycles match %s", n, path)

	if s == nil {
		return n, nil
	}
	pub := telemetry.NewPublisher(s, cfg.Telemetry.Every)
	err = replay.Play(recs, cfg.Replay.Speed, sleeper, func(payload []byte) error {
		c, err := replay.DecodeCycle(payload)
		if err != nil {
			return err
		}
		return pub.Publish(c.Input, c.Output)
	})
	if err != nil {
		return n, fmt.Errorf("replay: publish: %w", err)
	}
	return n, nil
}
