package altitude

// updateBaseline captures the baro zero on the rising edge of armed and
// derives the baseline-relative baro altitude. Disarmed, the baro altitude
// is held at 0.
func (e *Estimator) updateBaseline(armed bool, rawBaro float64) {
	st := &e.st
	if armed {
		if !st.WasArmedPreviousCycle {
			st.BaroBaseline = rawBaro
			// The offset belongs to the previous flight's zero.
			st.RangeToBaroOffset = 0
			// Pre-arm integration drift is meaningless once the zero moves.
			st.AccelDerivedVelocity = 0
			st.AccelDerivedAltitude = 0
		}
		st.BaroAltitude = rawBaro - st.BaroBaseline
	} else {
		st.BaroAltitude = 0
	}
	st.WasArmedPreviousCycle = armed
}
