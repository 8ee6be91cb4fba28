// Package course builds the interpolated, checkpoint-tagged route a
// correction is matched against: parse GPX track points, fill the gaps
// between waypoints at a fixed spacing, and assign sequence/checkpoint
// metadata structurally so downstream packages never need to inspect
// names or positions to find a checkpoint.
package course

import (
	"fmt"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/racetrack/gpscore/internal/geo"
)

// PointType classifies a route point's role in the course.
type PointType string

const (
	PointStart        PointType = "start"
	PointInterpolated PointType = "interpolated"
	PointCheckpoint   PointType = "checkpoint"
	PointFinish       PointType = "finish"
)

// elevationUnknownSentinel marks a GPX elevation of -1 as "not recorded"
// rather than a literal below-sea-level reading.
const elevationUnknownSentinel = -1.0

// RoutePoint is one point of the interpolated course polyline.
type RoutePoint struct {
	Sequence          uint32
	Lat               float64
	Lon               float64
	Elevation         *float64
	DistanceFromStart float64
	Type              PointType
	CpId              *string
	CpIndex           *int32

	// originalWaypoint marks a point that came directly from the GPX
	// document rather than being synthesized by interpolation; only
	// these are eligible to become checkpoints.
	originalWaypoint bool
}

// Course is the fully materialized, interpolated route for one
// (eventId, eventDetailId) pair.
type Course struct {
	EventId       string
	EventDetailId string
	Points        []RoutePoint
	TotalDistance float64
	CreatedAt     time.Time
}

// Options configures parsing and interpolation. Zero values fall back to
// spec defaults; callers normally derive these from config.CorrectionConfig.
type Options struct {
	IntervalMeters             float64
	CheckpointDistanceInterval float64 // 0 disables distance-based checkpoint filtering
}

// rawTrackPoint is an intermediate form before interpolation: one point
// exactly as it appeared in the GPX document, in document order.
type rawTrackPoint struct {
	lat, lon  float64
	elevation *float64
}

// Parse reads a GPX document and builds the interpolated, checkpoint
// tagged Course for it. It fails with ErrInvalidGPX if the document has
// fewer than two track points.
func Parse(eventId, eventDetailId string, gpxBytes []byte, opts Options) (*Course, error) {
	if opts.IntervalMeters <= 0 {
		opts.IntervalMeters = 100
	}

	doc, err := gpx.ParseBytes(gpxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGPX, err)
	}

	raw := extractTrackPoints(doc)
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: fewer than two track points", ErrInvalidGPX)
	}

	points := interpolate(raw, opts.IntervalMeters)
	tagCheckpoints(points, opts.CheckpointDistanceInterval)

	total := 0.0
	if len(points) > 0 {
		total = points[len(points)-1].DistanceFromStart
	}

	return &Course{
		EventId:       eventId,
		EventDetailId: eventDetailId,
		Points:        points,
		TotalDistance: total,
	}, nil
}

func extractTrackPoints(doc *gpx.GPX) []rawTrackPoint {
	var out []rawTrackPoint
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				out = append(out, rawTrackPoint{
					lat:       p.Latitude,
					lon:       p.Longitude,
					elevation: normalizeElevation(p.Elevation),
				})
			}
		}
	}
	return out
}

func normalizeElevation(ele gpx.NullableFloat64) *float64 {
	if ele.Null() {
		return nil
	}
	v := ele.Value()
	if v == elevationUnknownSentinel {
		return nil
	}
	return &v
}

// interpolate walks consecutive raw track points, inserting synthetic
// points at interval spacing wherever a gap exceeds that interval, and
// stamps every emitted point's cumulative distance from the course
// start. The original waypoints themselves are always emitted, even
// when a gap between them is under the interval.
func interpolate(raw []rawTrackPoint, interval float64) []RoutePoint {
	out := make([]RoutePoint, 0, len(raw))
	cumulative := 0.0
	var seq uint32

	emit := func(lat, lon float64, ele *float64, original bool) {
		out = append(out, RoutePoint{
			Sequence:          seq,
			Lat:               lat,
			Lon:               lon,
			Elevation:         ele,
			DistanceFromStart: cumulative,
			originalWaypoint:  original,
		})
		seq++
	}

	emit(raw[0].lat, raw[0].lon, raw[0].elevation, true)

	for i := 0; i < len(raw)-1; i++ {
		p0, p1 := raw[i], raw[i+1]
		segDist := geo.Distance(p0.lat, p0.lon, p1.lat, p1.lon)

		if segDist > interval {
			steps := int(segDist / interval)
			for k := 1; k <= steps; k++ {
				t := float64(k) * interval / segDist
				lat := p0.lat + t*(p1.lat-p0.lat)
				lon := p0.lon + t*(p1.lon-p0.lon)
				ele := interpolateElevation(p0.elevation, p1.elevation, t)
				cumulative += interval
				emit(lat, lon, ele, false)
			}
			cumulative += segDist - float64(steps)*interval
		} else {
			cumulative += segDist
		}

		emit(p1.lat, p1.lon, p1.elevation, true)
	}

	return out
}

func interpolateElevation(a, b *float64, t float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	default:
		v := *a + t*(*b-*a)
		return &v
	}
}

// LocationAtDistance returns the interpolated position and forward
// heading at cumulative distance d along the course polyline, clamped to
// [0, TotalDistance]. It is the simulator's (C11) sole way of turning a
// point in the race into a lat/lon/heading triple, so it never needs its
// own copy of the interpolation logic.
func (c *Course) LocationAtDistance(d float64) (lat, lon, headingDeg float64) {
	if len(c.Points) == 0 {
		return 0, 0, 0
	}
	if d <= c.Points[0].DistanceFromStart {
		p0, p1 := c.Points[0], c.Points[0]
		if len(c.Points) > 1 {
			p1 = c.Points[1]
		}
		return p0.Lat, p0.Lon, geo.Bearing(p0.Lat, p0.Lon, p1.Lat, p1.Lon)
	}
	last := c.Points[len(c.Points)-1]
	if d >= last.DistanceFromStart {
		prev := last
		if len(c.Points) > 1 {
			prev = c.Points[len(c.Points)-2]
		}
		return last.Lat, last.Lon, geo.Bearing(prev.Lat, prev.Lon, last.Lat, last.Lon)
	}

	for i := 1; i < len(c.Points); i++ {
		p0, p1 := c.Points[i-1], c.Points[i]
		if d > p1.DistanceFromStart {
			continue
		}
		span := p1.DistanceFromStart - p0.DistanceFromStart
		heading := geo.Bearing(p0.Lat, p0.Lon, p1.Lat, p1.Lon)
		if span <= 0 {
			return p0.Lat, p0.Lon, heading
		}
		t := (d - p0.DistanceFromStart) / span
		lat = p0.Lat + t*(p1.Lat-p0.Lat)
		lon = p0.Lon + t*(p1.Lon-p0.Lon)
		return lat, lon, heading
	}
	return last.Lat, last.Lon, 0
}

// tagCheckpoints implements the structural tagging rule from the spec:
// first point START (cpIndex 0), last point FINISH, and any intermediate
// original waypoint becomes CP{n} in encounter order, subject to an
// optional minimum distance-from-start filter. Points that don't become a
// checkpoint and aren't the endpoints are left as plain interpolated
// points (or original waypoints that didn't clear the distance filter).
func tagCheckpoints(points []RoutePoint, distanceInterval float64) {
	n := len(points)
	if n == 0 {
		return
	}
	for i := range points {
		if points[i].Type == "" {
			points[i].Type = PointInterpolated
		}
	}

	startId := "START"
	zero := int32(0)
	points[0].Type = PointStart
	points[0].CpId = &startId
	points[0].CpIndex = &zero

	cpIndex := int32(1)
	nextThreshold := distanceInterval

	for i := 1; i < n-1; i++ {
		if !points[i].originalWaypoint {
			continue
		}
		if distanceInterval > 0 && points[i].DistanceFromStart < nextThreshold {
			continue
		}
		id := fmt.Sprintf("CP%d", cpIndex)
		idx := cpIndex
		points[i].Type = PointCheckpoint
		points[i].CpId = &id
		points[i].CpIndex = &idx
		cpIndex++
		if distanceInterval > 0 {
			nextThreshold += distanceInterval
		}
	}

	finishId := "FINISH"
	finishIdx := cpIndex
	points[n-1].Type = PointFinish
	points[n-1].CpId = &finishId
	points[n-1].CpIndex = &finishIdx
}
