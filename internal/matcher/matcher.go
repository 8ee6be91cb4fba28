// Package matcher projects a filtered GPS fix onto a course's
// interpolated polyline and picks the best segment by a weighted
// distance/bearing score, following the same gating/scoring shape the
// tracker uses to associate detections with tracks — just applied to a
// fixed polyline instead of a moving cluster set.
package matcher

import (
	"github.com/racetrack/gpscore/internal/course"
	"github.com/racetrack/gpscore/internal/geo"
)

// Weights controls how distance and bearing contribute to a candidate's
// score. They should sum to 1.0 (config.Validate enforces this).
type Weights struct {
	Distance float64
	Bearing  float64
}

// Result is the best-matching segment for one fix.
type Result struct {
	ProjectedLat     float64
	ProjectedLon     float64
	SegmentIndex     int
	DistToSegment    float64
	BearingDiff      float64
	ProgressDistance float64
	Matched          bool
}

// Match projects (lat, lon, heading) onto every segment of the course
// polyline and returns the lowest-scoring (best) candidate. heading may
// be unreliable for stationary fixes — callers still pass it through;
// the bearing term just contributes less when it disagrees.
func Match(points []course.RoutePoint, lat, lon, heading float64, thresholdMeters, weightDistance, weightBearing float64) Result {
	var best Result
	bestScore := -1.0
	haveCandidate := false

	for i := 0; i < len(points)-1; i++ {
		p0, p1 := points[i], points[i+1]

		t := projectionParameter(p0.Lat, p0.Lon, p1.Lat, p1.Lon, lat, lon)
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		projLat := p0.Lat + t*(p1.Lat-p0.Lat)
		projLon := p0.Lon + t*(p1.Lon-p0.Lon)

		distToSegment := geo.Distance(lat, lon, projLat, projLon)
		segmentBearing := geo.Bearing(p0.Lat, p0.Lon, p1.Lat, p1.Lon)
		bearingDiff := geo.HeadingDelta(heading, segmentBearing)

		score := weightDistance*(distToSegment/100.0) + weightBearing*(bearingDiff/180.0)

		if !haveCandidate || score < bestScore {
			haveCandidate = true
			bestScore = score
			progressDistance := p0.DistanceFromStart + geo.Distance(p0.Lat, p0.Lon, projLat, projLon)
			best = Result{
				ProjectedLat:     projLat,
				ProjectedLon:     projLon,
				SegmentIndex:     i,
				DistToSegment:    distToSegment,
				BearingDiff:      bearingDiff,
				ProgressDistance: progressDistance,
				Matched:          distToSegment <= thresholdMeters,
			}
		}
	}

	if !haveCandidate {
		// No segments (degenerate single-point course): fall back to the
		// raw fix with no progress.
		return Result{ProjectedLat: lat, ProjectedLon: lon, Matched: false}
	}

	if !best.Matched {
		best.ProjectedLat = lat
		best.ProjectedLon = lon
	}

	return best
}

// projectionParameter returns the parameter t (unclamped) of the
// orthogonal projection of (lat, lon) onto the line through (lat1,lon1)
// and (lat2,lon2), treating lat/lon as a flat 2-D plane. This is
// accurate enough at the sub-segment scales (≤ a few hundred metres)
// this matcher operates at.
func projectionParameter(lat1, lon1, lat2, lon2, lat, lon float64) float64 {
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	lenSq := dLat*dLat + dLon*dLon
	if lenSq == 0 {
		return 0
	}
	return ((lat-lat1)*dLat + (lon-lon1)*dLon) / lenSq
}
