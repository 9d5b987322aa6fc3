// Package baro converts barometric pressure into altitude and smooths raw
// pressure samples before they reach the estimator.
package baro

import (
	"fmt"
	"math"
)

// SeaLevelPa is the standard-atmosphere reference pressure.
const SeaLevelPa = 101325.0

// DefaultTableSize is the number of samples averaged by an Averager.
const DefaultTableSize = 21

// PressureToAltitudeCm converts pressure (Pa) to standard-atmosphere
// altitude (cm): h = (1 - (p/p0)^0.190295) * 44330 m.
func PressureToAltitudeCm(pressurePa float64) float64 {
	return (1.0 - math.Pow(pressurePa/SeaLevelPa, 0.190295)) * 4433000.0
}

// Averager is a fixed-size ring of recent pressures. Not safe for concurrent use.
type Averager struct {
	table []float64
	next  int
	n     int
	sum   float64
}

func NewAverager(size int) (*Averager, error) {
	if size <= 0 {
		return nil, fmt.Errorf("baro: table size %d must be > 0", size)
	}
	return &Averager{table: make([]float64, size)}, nil
}

// Add replaces the oldest sample. Non-positive pressures are rejected.
func (a *Averager) Add(pressurePa float64) error {
	if pressurePa <= 0 || math.IsNaN(pressurePa) || math.IsInf(pressurePa, 0) {
		return fmt.Errorf("baro: pressure %v invalid", pressurePa)
	}
	if a.n == len(a.table) {
		a.sum -= a.table[a.next]
	} else {
		a.n++
	}
	a.table[a.next] = pressurePa
	a.sum += pressurePa
	a.next = (a.next + 1) % len(a.table)
	return nil
}

// Mean returns the average of the samples held, false when empty.
func (a *Averager) Mean() (float64, bool) {
	if a.n == 0 {
		return 0, false
	}
	return a.sum / float64(a.n), true
}

// AltitudeCm returns the altitude of the mean pressure.
func (a *Averager) AltitudeCm() (float64, bool) {
	p, ok := a.Mean()
	if !ok {
		return 0, false
	}
	return PressureToAltitudeCm(p), true
}

// Len reports how many samples are held.
func (a *Averager) Len() int { return a.n }
