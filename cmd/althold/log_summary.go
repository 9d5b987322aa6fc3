package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"althold/internal/replay"
)

type logSummary struct {
	Segments    int
	Cycles      int
	Updated     int
	Invalid     int
	MaxDuration time.Duration
	MinAltitude float64
	MaxAltitude float64
	MaxThrust   int32
	Health      map[string]int
	Fusion      map[string]int
	Authority   map[string]int
}

func summarizeCycleLog(records []replay.Record) logSummary {
	s := logSummary{
		MinAltitude: math.Inf(1),
		MaxAltitude: math.Inf(-1),
		Health:      map[string]int{},
		Fusion:      map[string]int{},
		Authority:   map[string]int{},
	}

	origin := time.Duration(0)
	hasCycles := false
	for _, r := range records {
		if r.Payload == nil {
			s.Segments++
			origin = r.At
			continue
		}
		hasCycles = true
		s.Cycles++
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}

		c, err := replay.DecodeCycle(r.Payload)
		if err != nil {
			s.Invalid++
			continue
		}
		out := c.Output
		if !out.Updated {
			continue
		}
		s.Updated++
		s.MinAltitude = math.Min(s.MinAltitude, out.Altitude)
		s.MaxAltitude = math.Max(s.MaxAltitude, out.Altitude)
		if t := abs32(out.ThrustCorrection); t > s.MaxThrust {
			s.MaxThrust = t
		}
		s.Health[out.Health.String()]++
		s.Fusion[out.FusionMode.String()]++
		s.Authority[out.Authority.String()]++
	}
	if s.Segments == 0 && hasCycles {
		s.Segments = 1
	}
	if s.Updated == 0 {
		s.MinAltitude, s.MaxAltitude = 0, 0
	}
	return s
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := summarizeCycleLog(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "cycles: %d\n", s.Cycles)
	fmt.Fprintf(w, "updated_cycles: %d\n", s.Updated)
	fmt.Fprintf(w, "invalid_cycles: %d\n", s.Invalid)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "altitude_cm: %.1f..%.1f\n", s.MinAltitude, s.MaxAltitude)
	fmt.Fprintf(w, "max_abs_thrust: %d\n", s.MaxThrust)
	printCounts(w, "health", s.Health)
	printCounts(w, "fusion", s.Fusion)
	printCounts(w, "authority", s.Authority)
	return nil
}

func printCounts(w io.Writer, name string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", name)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}
