package simulator

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/racetrack/gpscore/internal/geo"
	"github.com/racetrack/gpscore/internal/units"
)

// PaceReport summarizes a generated field's per-kilometer pace spread, so
// a simulation run can be sanity-checked ("does the slow tail look
// realistic?") without hand-inspecting every fix sequence.
type PaceReport struct {
	MedianPaceSecPerKm float64
	P10PaceSecPerKm    float64
	P90PaceSecPerKm    float64
}

// Summarize computes pace-percentile diagnostics across a generated
// field from the per-user fix sequences Generate produced.
func Summarize(fixesByUser map[string][]Fix) PaceReport {
	var paces []float64
	for _, fixes := range fixesByUser {
		if len(fixes) < 2 {
			continue
		}
		first, last := fixes[0], fixes[len(fixes)-1]
		elapsed := last.Timestamp.Sub(first.Timestamp)
		if elapsed <= 0 {
			continue
		}
		distance := pathDistance(fixes)
		if distance <= 0 {
			continue
		}
		speedMps := distance / elapsed.Seconds()
		paces = append(paces, 1000.0/speedMps)
	}
	if len(paces) == 0 {
		return PaceReport{}
	}
	sort.Float64s(paces)

	return PaceReport{
		MedianPaceSecPerKm: stat.Quantile(0.5, stat.Empirical, paces, nil),
		P10PaceSecPerKm:    stat.Quantile(0.1, stat.Empirical, paces, nil),
		P90PaceSecPerKm:    stat.Quantile(0.9, stat.Empirical, paces, nil),
	}
}

// pathDistance sums consecutive-fix Haversine hops. It approximates
// on-course distance closely enough for pace diagnostics since simulated
// fixes already lie on (or very near) the polyline.
func pathDistance(fixes []Fix) float64 {
	total := 0.0
	for i := 1; i < len(fixes); i++ {
		total += geo.Distance(fixes[i-1].Lat, fixes[i-1].Lon, fixes[i].Lat, fixes[i].Lon)
	}
	return total
}

// FormatPace renders a report's median pace using the same MM:SS/km
// convention as the rest of the presentation layer.
func (r PaceReport) FormatPace() string {
	if r.MedianPaceSecPerKm <= 0 {
		return units.PacePerKm(0)
	}
	return units.PacePerKm(1000.0 / r.MedianPaceSecPerKm)
}
