package altitude

import (
	"time"

	"althold/internal/numeric"
)

// rangeAltitude converts a range distance into a tilt-compensated altitude.
// trusted is set when the reading may define the fused altitude; fading when
// it is usable only as the range side of a transition blend.
func (e *Estimator) rangeAltitude(distance, tilt int32) (alt float64, trusted, fading bool) {
	if !e.sensors.Range || distance <= 0 || distance > e.cfg.RangeMaxReported {
		return 0, false, false
	}
	if tilt > e.cfg.RangeTiltLimit {
		return 0, false, false
	}
	// Linear cosine approximation, 900 cdeg = 90°.
	alt = float64(distance) * float64(900-tilt) / 900
	if distance <= e.cfg.RangeMaxTrusted {
		return alt, true, false
	}
	return alt, false, true
}

// fuse merges baro and range altitude into FusedAltitude.
func (e *Estimator) fuse(armed bool, distance, tilt int32, elapsed time.Duration) {
	st := &e.st
	rangeAlt, trusted, fading := e.rangeAltitude(distance, tilt)

	if trusted {
		st.RangeToBaroOffset = st.BaroAltitude - rangeAlt
		st.FusedAltitude = rangeAlt
		st.RangeReference = rangeAlt
		st.RangeFusionBlend = 0
		st.FusionMode = FusionRange
		return
	}

	if armed {
		st.BaroAltitude -= st.RangeToBaroOffset
	}
	if fading {
		st.RangeReference = rangeAlt
	}

	switch st.FusionMode {
	case FusionRange:
		st.FusionMode = FusionTransition
		st.RangeFusionBlend = 0
		fallthrough
	case FusionTransition:
		st.RangeFusionBlend += elapsed.Seconds() / e.cfg.RangeTransitionWindow.Seconds()
		if st.RangeFusionBlend >= 1 {
			st.RangeFusionBlend = 1
			st.FusionMode = FusionBaro
			st.FusedAltitude = st.BaroAltitude
			return
		}
		st.FusedAltitude = numeric.ComplementaryFilter(st.RangeReference, st.BaroAltitude, st.RangeFusionBlend)
	default:
		st.FusedAltitude = st.BaroAltitude
	}
}
