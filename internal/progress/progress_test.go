package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racetrack/gpscore/internal/course"
	"github.com/racetrack/gpscore/internal/matcher"
)

func ptrStr(s string) *string { return &s }
func ptrI32(i int32) *int32   { return &i }

func samplePoints() []course.RoutePoint {
	startId, cp1Id, finishId := "START", "CP1", "FINISH"
	return []course.RoutePoint{
		{Sequence: 0, Lat: 0, Lon: 0, DistanceFromStart: 0, Type: course.PointStart, CpId: &startId, CpIndex: ptrI32(0)},
		{Sequence: 1, Lat: 0.0009, Lon: 0, DistanceFromStart: 100},
		{Sequence: 2, Lat: 0.0018, Lon: 0, DistanceFromStart: 200, Type: course.PointCheckpoint, CpId: &cp1Id, CpIndex: ptrI32(1)},
		{Sequence: 3, Lat: 0.0027, Lon: 0, DistanceFromStart: 300, Type: course.PointFinish, CpId: &finishId, CpIndex: ptrI32(2)},
	}
}

func TestSingleCheckpointCrossingProducesSplit(t *testing.T) {
	raceStart := time.Unix(1_700_000_000, 0).UTC()
	fixTime := raceStart.Add(10 * time.Second)

	m := matcher.Result{ProgressDistance: 200, Matched: true}
	prior := &PriorState{DistanceCovered: 180, FarthestCpIndex: ptrI32(0), CumulativeTimeAtCp: map[int32]float64{0: 0}}

	result := Detect(m, samplePoints(), prior, 0.0018, 0.0, fixTime, 20, raceStart)

	require.Len(t, result.Crossings, 1)
	c := result.Crossings[0]
	assert.Equal(t, int32(1), c.CpIndex)
	assert.Equal(t, "CP1", c.CpId)
	assert.InDelta(t, 10.0, c.SegmentDuration, 1e-9)
	assert.InDelta(t, 10.0, c.CumulativeTime, 1e-9)
}

func TestMonotonicityUnderBackwardsJitter(t *testing.T) {
	raceStart := time.Unix(1_700_000_000, 0).UTC()

	m1 := matcher.Result{ProgressDistance: 200, Matched: true}
	r1 := Detect(m1, samplePoints(), nil, 0.0018, 0, raceStart.Add(5*time.Second), 20, raceStart)
	assert.Equal(t, 200.0, r1.DistanceCovered)

	prior := &PriorState{DistanceCovered: r1.DistanceCovered, FarthestCpIndex: ptrI32(1), CumulativeTimeAtCp: map[int32]float64{0: 0, 1: 5}}
	m2 := matcher.Result{ProgressDistance: 195, Matched: true}
	r2 := Detect(m2, samplePoints(), prior, 0.0018, 0, raceStart.Add(6*time.Second), 20, raceStart)

	assert.Equal(t, 200.0, r2.DistanceCovered, "distanceCovered must not regress on backwards jitter")
}

func TestNoDuplicateCrossingOnReplayedFix(t *testing.T) {
	raceStart := time.Unix(1_700_000_000, 0).UTC()
	fixTime := raceStart.Add(10 * time.Second)

	m := matcher.Result{ProgressDistance: 200, Matched: true}
	prior := &PriorState{DistanceCovered: 200, FarthestCpIndex: ptrI32(1), CumulativeTimeAtCp: map[int32]float64{0: 0, 1: 10}}

	result := Detect(m, samplePoints(), prior, 0.0018, 0, fixTime, 20, raceStart)
	assert.Empty(t, result.Crossings)
	assert.Equal(t, 200.0, result.DistanceCovered)
}

func TestCheckpointCrossedByCaptureRadiusEvenIfDistanceBehind(t *testing.T) {
	raceStart := time.Unix(1_700_000_000, 0).UTC()
	fixTime := raceStart.Add(20 * time.Second)

	// progress distance hasn't reached CP1's 200m mark, but the raw fix is
	// within the capture radius of CP1's coordinates.
	m := matcher.Result{ProgressDistance: 150, Matched: true}
	prior := &PriorState{DistanceCovered: 150, FarthestCpIndex: ptrI32(0), CumulativeTimeAtCp: map[int32]float64{0: 0}}

	result := Detect(m, samplePoints(), prior, 0.0018, 0, fixTime, 30, raceStart)
	require.Len(t, result.Crossings, 1)
	assert.Equal(t, int32(1), result.Crossings[0].CpIndex)
}

func TestFirstFixWithNoPriorStateSeedsFarthestFromScratch(t *testing.T) {
	raceStart := time.Unix(1_700_000_000, 0).UTC()
	m := matcher.Result{ProgressDistance: 0, Matched: true}

	result := Detect(m, samplePoints(), nil, 0, 0, raceStart, 20, raceStart)
	require.Len(t, result.Crossings, 1) // START is cpIndex 0, crossed immediately
	assert.Equal(t, int32(0), result.Crossings[0].CpIndex)
	assert.Equal(t, 0.0, result.Crossings[0].CumulativeTime)
}
