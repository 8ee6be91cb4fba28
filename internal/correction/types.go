package correction

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fix is one inbound GPS reading. Timestamp accepts either an RFC-3339
// string or a Unix epoch in seconds or milliseconds (spec §3).
type Fix struct {
	Lat        float64
	Lon        float64
	Altitude   *float64
	AccuracyM  *float64
	SpeedMps   *float64
	HeadingDeg *float64
	Timestamp  string
}

// ParseTimestamp normalizes a Fix's timestamp field to a time.Time,
// accepting RFC-3339 text or a bare Unix epoch in seconds or
// milliseconds.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is neither RFC-3339 nor a Unix epoch integer", raw)
	}
	// Epoch milliseconds are distinguishable from seconds by magnitude:
	// seconds-since-epoch for any date past 2001 exceeds 1e9 but stays
	// under 1e10 until the year 2286, while the millisecond encoding of
	// that same range is three orders of magnitude larger.
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}

// CheckpointReach is one checkpoint crossing produced by a single fix,
// as reported in a CorrectionResult.
type CheckpointReach struct {
	CpId            string
	CpIndex         int32
	PassTime        time.Time
	SegmentDuration float64
	CumulativeTime  float64
}

// CorrectionResult is the per-fix output of correctLocation (spec §4.9
// step 4).
type CorrectionResult struct {
	UserId           string
	EventId          string
	EventDetailId    string
	Latitude         float64
	Longitude        float64
	Altitude         *float64
	Speed            *float64
	Timestamp        time.Time
	CheckpointReaches []CheckpointReach
	Matched          bool
	DistanceToRoute  float64
	ProgressDistance float64
}

// CourseSummary is returned by uploadCourseFromBytes (spec §6).
type CourseSummary struct {
	TotalDistance   float64
	PointCount      int
	CheckpointCount int
}
