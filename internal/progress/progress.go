// Package progress turns a matcher result into monotonic along-route
// progress and one-shot checkpoint crossings, mirroring the tracker's
// hits/confirm state-machine discipline (once crossed, always crossed)
// applied to route checkpoints instead of detections.
package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/racetrack/gpscore/internal/course"
	"github.com/racetrack/gpscore/internal/geo"
	"github.com/racetrack/gpscore/internal/matcher"
)

// Crossing is one checkpoint reach produced by a single fix.
type Crossing struct {
	Id               string // synthetic id for the provisional crossing record
	CpId             string
	CpIndex          int32
	PassTime         time.Time
	SegmentDuration  float64
	CumulativeTime   float64
}

// PriorState is the subset of a participant's previous location record
// the detector needs; nil prior fields mean "no previous fix".
type PriorState struct {
	DistanceCovered float64
	FarthestCpIndex *int32
	RaceStartTime   time.Time
	// CumulativeTimeAtCp maps a crossed cpIndex to its recorded
	// cumulativeTime_s, used to compute segment durations for the next
	// crossing.
	CumulativeTimeAtCp map[int32]float64
}

// Result is the detector's output for one fix: the updated monotonic
// distance and any newly crossed checkpoints, in encounter order.
type Result struct {
	DistanceCovered float64
	Crossings       []Crossing
}

// Detect computes new distanceCovered and any checkpoints crossed on
// this fix, given the matcher's output, the course, prior state, and the
// fix's timestamp. captureRadiusMeters is the checkpoint capture radius
// (spec default 50 m); raceStart anchors cumulativeTime_s for a
// participant's very first accepted fix.
func Detect(m matcher.Result, points []course.RoutePoint, prior *PriorState, fixLat, fixLon float64, now time.Time, captureRadiusMeters float64, raceStart time.Time) Result {
	distanceCovered := m.ProgressDistance
	if prior != nil && prior.DistanceCovered > distanceCovered {
		distanceCovered = prior.DistanceCovered
	}

	var farthestIdx int32 = -1
	if prior != nil && prior.FarthestCpIndex != nil {
		farthestIdx = *prior.FarthestCpIndex
	}

	cumulativeAtCp := map[int32]float64{}
	if prior != nil && prior.CumulativeTimeAtCp != nil {
		cumulativeAtCp = prior.CumulativeTimeAtCp
	}

	var crossings []Crossing
	nowElapsed := now.Sub(raceStart).Seconds()

	for _, p := range points {
		if p.CpIndex == nil {
			continue
		}
		k := *p.CpIndex
		if k <= farthestIdx {
			continue
		}

		withinCaptureRadius := geo.Distance(fixLat, fixLon, p.Lat, p.Lon) <= captureRadiusMeters
		advancedPast := distanceCovered >= p.DistanceFromStart

		if !withinCaptureRadius && !advancedPast {
			continue
		}

		prevCumulative := 0.0
		if k > 0 {
			if v, ok := cumulativeAtCp[k-1]; ok {
				prevCumulative = v
			}
		}

		crossing := Crossing{
			Id:              uuid.NewString(),
			CpId:            *p.CpId,
			CpIndex:         k,
			PassTime:        now,
			CumulativeTime:  nowElapsed,
			SegmentDuration: nowElapsed - prevCumulative,
		}
		crossings = append(crossings, crossing)
		cumulativeAtCp[k] = nowElapsed
		farthestIdx = k
	}

	return Result{DistanceCovered: distanceCovered, Crossings: crossings}
}
