package altitude

// AccelAccumulator collects earth-frame vertical accelerometer samples
// (counts, gravity removed) between estimator cycles.
//
// It is owned by the caller: the sampling side calls Add at the IMU rate and
// the estimator consumes and clears it once per processed cycle. A cycle that
// is rate-limited leaves it untouched so samples keep accumulating.
type AccelAccumulator struct {
	Sum     float64
	Count   uint32
	TimeSum uint32 // µs covered by the samples
}

// Add records one sample covering dtUs microseconds.
func (a *AccelAccumulator) Add(verticalAccel float64, dtUs uint32) {
	a.Sum += verticalAccel
	a.Count++
	a.TimeSum += dtUs
}

// Mean returns the average sample, or 0 for an empty window.
func (a *AccelAccumulator) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// Reset empties the window.
func (a *AccelAccumulator) Reset() {
	*a = AccelAccumulator{}
}

// take returns the window and clears it.
func (a *AccelAccumulator) take() AccelAccumulator {
	w := *a
	a.Reset()
	return w
}
