// Package kalman implements the per-axis, scalar Kalman filter used to
// denoise GPS fixes before map matching. Each axis (latitude, longitude,
// altitude) runs its own independent 1-D filter — there is no joint
// position/velocity state (see spec Non-goals: no 3-D filter with
// velocity state). The state-transition/update split mirrors the
// predict/update split the tracker uses for its 4-state model, just
// collapsed to a single scalar per axis.
package kalman

import "math"

// Default noise parameters (spec §4.2).
const (
	DefaultPosProcessNoise         = 1e-3
	DefaultPosMeasurementNoise     = 1e-2
	DefaultAltitudeProcessNoise    = 1e-2
	DefaultAltitudeMeasureNoise    = 2.0
	MinConfidence                  = 0.1
	MaxConfidence                  = 1.0
	AccuracyToPosNoiseDivisor      = 10.0
	AccuracyToAltitudeNoiseDivisor = 5.0
)

// Filter is a scalar (1-D) Kalman filter: state x with variance P, fixed
// process noise Q and a (possibly per-call) measurement noise R.
type Filter struct {
	X           float64
	P           float64
	Q           float64
	R           float64
	Initialized bool
}

// NewFilter returns a filter with the given process and default
// measurement noise. The filter is not seeded until the first Seed or
// Update call.
func NewFilter(q, r float64) *Filter {
	return &Filter{Q: q, R: r}
}

// Seed initializes the filter state directly from a measurement with no
// update step, per spec §4.2 ("the first fix initializes the state
// directly with no update step").
func (f *Filter) Seed(x float64, initialVariance float64) {
	f.X = x
	f.P = initialVariance
	f.Initialized = true
}

// Update runs one predict+update step against measurement z, using
// measurement noise r for this call (callers compute r from reported GPS
// accuracy/confidence before calling). If the filter has not been seeded,
// Update seeds it directly instead of filtering, matching Seed's contract.
func (f *Filter) Update(z float64, r float64) float64 {
	if !f.Initialized {
		f.Seed(z, r)
		return f.X
	}

	// Predict: position doesn't change between measurements on its own,
	// only uncertainty grows by the process noise.
	predictedX := f.X
	predictedP := f.P + f.Q

	// Update: blend the prediction with the new measurement via the
	// Kalman gain.
	gain := predictedP / (predictedP + r)
	f.X = predictedX + gain*(z-predictedX)
	f.P = (1 - gain) * predictedP

	return f.X
}

// EffectiveMeasurementNoise scales a base measurement noise R by reported
// GPS accuracy (metres) and an optional confidence in [MinConfidence,
// MaxConfidence], per spec §4.2:
//
//	R_pos ← max(accuracy/10, R_pos)   (posDivisor = 10)
//	R_alt ← max(accuracy/5,  R_alt)   (altDivisor = 5)
//	R_eff = R / confidence
func EffectiveMeasurementNoise(baseR float64, accuracy *float64, divisor float64, confidence *float64) float64 {
	r := baseR
	if accuracy != nil {
		scaled := *accuracy / divisor
		if scaled > r {
			r = scaled
		}
	}
	if confidence != nil {
		c := *confidence
		if c < MinConfidence {
			c = MinConfidence
		}
		if c > MaxConfidence {
			c = MaxConfidence
		}
		r = r / c
	}
	return r
}

// AxisState is a convenience bundle of the three independent filters a
// participant's correction pipeline maintains.
type AxisState struct {
	Lat Filter
	Lon Filter
	Alt Filter
}

// NewAxisState builds the three per-axis filters from default noise
// parameters.
func NewAxisState() *AxisState {
	return &AxisState{
		Lat: Filter{Q: DefaultPosProcessNoise, R: DefaultPosMeasurementNoise},
		Lon: Filter{Q: DefaultPosProcessNoise, R: DefaultPosMeasurementNoise},
		Alt: Filter{Q: DefaultAltitudeProcessNoise, R: DefaultAltitudeMeasureNoise},
	}
}

// SeedFrom seeds all three axes from a prior (lat, lon, altitude) triple.
// Altitude may be absent (nil), in which case only lat/lon are seeded.
func (s *AxisState) SeedFrom(lat, lon float64, alt *float64) {
	s.Lat.Seed(lat, DefaultPosMeasurementNoise)
	s.Lon.Seed(lon, DefaultPosMeasurementNoise)
	if alt != nil {
		s.Alt.Seed(*alt, DefaultAltitudeMeasureNoise)
	}
}

// Filtered holds the fused output of a correction step.
type Filtered struct {
	Lat      float64
	Lon      float64
	Altitude *float64
}

// Apply runs the Kalman update for a single GPS fix across all supplied
// axes. Altitude is only updated when the fix reports one. accuracy and
// confidence, when non-nil, scale the effective measurement noise per
// spec §4.2.
func (s *AxisState) Apply(lat, lon float64, altitude *float64, accuracy, confidence *float64) Filtered {
	rPos := EffectiveMeasurementNoise(DefaultPosMeasurementNoise, accuracy, AccuracyToPosNoiseDivisor, confidence)

	out := Filtered{
		Lat: s.Lat.Update(lat, rPos),
		Lon: s.Lon.Update(lon, rPos),
	}
	if altitude != nil {
		rAlt := EffectiveMeasurementNoise(DefaultAltitudeMeasureNoise, accuracy, AccuracyToAltitudeNoiseDivisor, confidence)
		filteredAlt := s.Alt.Update(*altitude, rAlt)
		out.Altitude = &filteredAlt
	}
	return out
}

// CovarianceDecreased reports whether P strictly decreased as a result of
// the most recent update relative to the predicted (pre-update)
// covariance predictedP. Exposed for tests asserting the invariant in
// spec §8 ("after the first step, P strictly decreases compared to the
// predict step").
func CovarianceDecreased(updatedP, predictedP float64) bool {
	return updatedP < predictedP && !math.IsNaN(updatedP)
}
