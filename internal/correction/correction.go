// Package correction orchestrates one GPS fix (or a batch of them) through
// the Kalman filter, map matcher, and progress detector, then commits the
// result to the live state store and leaderboard — the handler/pipeline
// shape the teacher's api/server.go request handlers follow, applied to a
// correction instead of an HTTP request.
package correction

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/racetrack/gpscore/internal/config"
	"github.com/racetrack/gpscore/internal/course"
	"github.com/racetrack/gpscore/internal/coursecache"
	"github.com/racetrack/gpscore/internal/geo"
	"github.com/racetrack/gpscore/internal/kalman"
	"github.com/racetrack/gpscore/internal/leaderboard"
	"github.com/racetrack/gpscore/internal/matcher"
	"github.com/racetrack/gpscore/internal/monitoring"
	"github.com/racetrack/gpscore/internal/progress"
	"github.com/racetrack/gpscore/internal/store"
	"github.com/racetrack/gpscore/internal/timeutil"
)

// Service wires the correction pipeline's collaborators together. It
// holds no per-participant state between calls: the Kalman filter is
// re-seeded from the store on every correctLocation call, per spec §4.2
// ("long-term persistence of the filter state across requests is not
// required").
type Service struct {
	cache       *coursecache.Cache
	store       *store.Store
	leaderboard *leaderboard.Leaderboard
	cfg         *config.CorrectionConfig
	clock       timeutil.Clock
}

// New builds a correction Service from its collaborators. clock may be
// nil, in which case timeutil.RealClock{} is used.
func New(cache *coursecache.Cache, st *store.Store, lb *leaderboard.Leaderboard, cfg *config.CorrectionConfig, clock timeutil.Clock) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Service{cache: cache, store: st, leaderboard: lb, cfg: cfg, clock: clock}
}

// CorrectLocation runs the fixes (in timestamp order) through the
// pipeline for one participant and returns one CorrectionResult per fix,
// per spec §4.9.
func (s *Service) CorrectLocation(ctx context.Context, userId, eventId, eventDetailId string, fixes []Fix) ([]CorrectionResult, error) {
	if userId == "" || eventId == "" || eventDetailId == "" {
		return nil, newError(KindInvalidInput, "userId, eventId, and eventDetailId are required")
	}
	if len(fixes) == 0 {
		return nil, newError(KindInvalidInput, "fixes must not be empty")
	}

	type timedFix struct {
		fix Fix
		at  time.Time
	}
	timed := make([]timedFix, len(fixes))
	for i, f := range fixes {
		if f.Lat < -90 || f.Lat > 90 || f.Lon < -180 || f.Lon > 180 {
			return nil, newError(KindInvalidInput, "fix %d lat/lon out of range: (%f, %f)", i, f.Lat, f.Lon)
		}
		at, err := ParseTimestamp(f.Timestamp)
		if err != nil {
			return nil, newError(KindInvalidInput, "fix %d: %v", i, err)
		}
		timed[i] = timedFix{fix: f, at: at}
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].at.Before(timed[j].at) })

	deadline := s.clock.Now().Add(time.Duration(s.cfg.GetCorrectionDeadlineMillis()) * time.Millisecond)

	crs, err := s.cache.Get(eventId, eventDetailId)
	if err != nil {
		return nil, newError(KindResourceNotFound, "resolving course: %v", err)
	}

	results := make([]CorrectionResult, 0, len(fixes))
	for _, tf := range timed {
		if s.clock.Now().After(deadline) {
			return results, newError(KindDeadline, "correction deadline exceeded after %d fixes", len(results))
		}
		res, err := s.applyOneFix(userId, eventId, eventDetailId, tf.fix, tf.at, crs)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

func (s *Service) applyOneFix(userId, eventId, eventDetailId string, fix Fix, at time.Time, crs *course.Course) (*CorrectionResult, error) {
	prior, err := s.loadPrior(userId, eventDetailId)
	if err != nil {
		return nil, err
	}

	axes := kalman.NewAxisState()
	raceStart := at
	if prior != nil {
		axes.SeedFrom(prior.CorrectedLat, prior.CorrectedLon, prior.CorrectedAltitude)
		raceStart = prior.RaceStartTime
	} else {
		axes.SeedFrom(fix.Lat, fix.Lon, fix.Altitude)
	}
	filtered := axes.Apply(fix.Lat, fix.Lon, fix.Altitude, fix.AccuracyM, nil)

	heading := 0.0
	if fix.HeadingDeg != nil {
		heading = *fix.HeadingDeg
	} else if prior != nil {
		heading = bearingBetween(prior.CorrectedLat, prior.CorrectedLon, filtered.Lat, filtered.Lon)
	}

	matchResult := matcher.Match(crs.Points, filtered.Lat, filtered.Lon, heading,
		s.cfg.GetMatchDistanceThresholdMeters(), s.cfg.GetWeightDistance(), s.cfg.GetWeightBearing())

	progressPrior := &progress.PriorState{CumulativeTimeAtCp: map[int32]float64{}}
	if prior != nil {
		progressPrior.DistanceCovered = prior.DistanceCovered
		progressPrior.FarthestCpIndex = prior.FarthestCpIndex
		if prior.FarthestCpIndex != nil && prior.CumulativeTimeAtFarthestCp != nil {
			progressPrior.CumulativeTimeAtCp[*prior.FarthestCpIndex] = *prior.CumulativeTimeAtFarthestCp
		}
	}

	progressResult := progress.Detect(matchResult, crs.Points, progressPrior, filtered.Lat, filtered.Lon, at,
		s.cfg.GetCheckpointCaptureRadiusMeters(), raceStart)

	loc := buildLocation(userId, eventId, eventDetailId, fix, at, filtered, heading, progressResult, raceStart, prior)

	if err := s.commitLocation(loc, prior); err != nil {
		return nil, err
	}

	for _, c := range progressResult.Crossings {
		rec := store.SegmentRecord{CpId: c.CpId, CpIndex: c.CpIndex, SegmentDurationS: c.SegmentDuration, CumulativeTimeS: c.CumulativeTime, CrossedAt: c.PassTime}
		if err := s.store.AppendSegmentRecord(userId, eventId, eventDetailId, rec); err != nil {
			// Bookkeeping failures after a successful location write are
			// logged, not fatal: the next fix reconstructs them (spec §7).
			monitoring.Logf("correction: appending segment record for user=%s cp=%s failed: %v", userId, c.CpId, err)
			continue
		}
		if err := s.leaderboard.Upsert(eventDetailId, userId, c.CpIndex, c.CumulativeTime); err != nil {
			monitoring.Logf("correction: updating leaderboard for user=%s cp=%s failed: %v", userId, c.CpId, err)
		}
	}

	result := &CorrectionResult{
		UserId: userId, EventId: eventId, EventDetailId: eventDetailId,
		Latitude: loc.CorrectedLat, Longitude: loc.CorrectedLon, Altitude: loc.CorrectedAltitude,
		Speed: fix.SpeedMps, Timestamp: at, Matched: matchResult.Matched,
		DistanceToRoute: matchResult.DistToSegment, ProgressDistance: matchResult.ProgressDistance,
	}
	for _, c := range progressResult.Crossings {
		result.CheckpointReaches = append(result.CheckpointReaches, CheckpointReach{
			CpId: c.CpId, CpIndex: c.CpIndex, PassTime: c.PassTime,
			SegmentDuration: c.SegmentDuration, CumulativeTime: c.CumulativeTime,
		})
	}
	return result, nil
}

func (s *Service) loadPrior(userId, eventDetailId string) (*store.ParticipantLocation, error) {
	loc, err := s.store.GetLocation(userId, eventDetailId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindStoreUnavailable, "loading prior location: %v", err)
	}
	return loc, nil
}

// commitLocation writes loc with the CAS-and-retry policy from spec §7
// (Conflict: retry the read-modify-write up to CasConflictRetries).
func (s *Service) commitLocation(loc *store.ParticipantLocation, prior *store.ParticipantLocation) error {
	expectedVersion := int64(0)
	if prior != nil {
		expectedVersion = prior.Version
	}

	attempts := s.cfg.GetCasConflictRetries()
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		err := s.store.PutLocation(loc, expectedVersion)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			fresh, reloadErr := s.store.GetLocation(loc.UserId, loc.EventDetailId)
			if reloadErr != nil && !errors.Is(reloadErr, store.ErrNotFound) {
				return newError(KindStoreUnavailable, "reloading after conflict: %v", reloadErr)
			}
			if fresh != nil {
				expectedVersion = fresh.Version
			}
			continue
		}
		return newError(KindStoreUnavailable, "writing location: %v", err)
	}
	return newError(KindConflict, "exhausted %d retries: %v", attempts, lastErr)
}

func buildLocation(userId, eventId, eventDetailId string, fix Fix, at time.Time, filtered kalman.Filtered, heading float64,
	pr progress.Result, raceStart time.Time, prior *store.ParticipantLocation) *store.ParticipantLocation {

	loc := &store.ParticipantLocation{
		UserId: userId, EventId: eventId, EventDetailId: eventDetailId,
		RawLat: fix.Lat, RawLon: fix.Lon, RawAltitude: fix.Altitude, RawAccuracy: fix.AccuracyM, RawSpeed: fix.SpeedMps,
		RawTime: at, CorrectedLat: filtered.Lat, CorrectedLon: filtered.Lon, CorrectedAltitude: filtered.Altitude,
		Heading: heading, DistanceCovered: pr.DistanceCovered, LastUpdated: at, RaceStartTime: raceStart,
	}

	farthestIdx := int32(-1)
	cumulativeAtFarthest := 0.0
	var farthestCpId string
	if prior != nil && prior.FarthestCpIndex != nil {
		farthestIdx = *prior.FarthestCpIndex
		if prior.CumulativeTimeAtFarthestCp != nil {
			cumulativeAtFarthest = *prior.CumulativeTimeAtFarthestCp
		}
		if prior.FarthestCpId != nil {
			farthestCpId = *prior.FarthestCpId
		}
	}
	loc.CumulativeTime = cumulativeAtFarthest

	for _, c := range pr.Crossings {
		if c.CpIndex > farthestIdx {
			farthestIdx = c.CpIndex
			cumulativeAtFarthest = c.CumulativeTime
			farthestCpId = c.CpId
		}
		loc.CumulativeTime = c.CumulativeTime
	}

	if farthestIdx >= 0 {
		idx := farthestIdx
		loc.FarthestCpIndex = &idx
		loc.FarthestCpId = &farthestCpId
		cum := cumulativeAtFarthest
		loc.CumulativeTimeAtFarthestCp = &cum
	}

	return loc
}

func bearingBetween(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	return geo.Bearing(lat1, lon1, lat2, lon2)
}

// UploadCourseFromBytes parses a GPX document and seeds the course cache
// directly with the result, per spec §6's uploadCourseFromBytes.
func (s *Service) UploadCourseFromBytes(eventId, eventDetailId string, gpxBytes []byte, opts course.Options) (*CourseSummary, error) {
	crs, err := course.Parse(eventId, eventDetailId, gpxBytes, opts)
	if err != nil {
		return nil, newError(KindInvalidGPX, "%v", err)
	}
	crs.CreatedAt = s.clock.Now()
	s.cache.Put(eventId, eventDetailId, crs)

	checkpoints := 0
	for _, p := range crs.Points {
		if p.CpIndex != nil {
			checkpoints++
		}
	}
	return &CourseSummary{TotalDistance: crs.TotalDistance, PointCount: len(crs.Points), CheckpointCount: checkpoints}, nil
}

// GetCourse returns the materialized course for (eventId, eventDetailId),
// per spec §6's getCourse.
func (s *Service) GetCourse(eventId, eventDetailId string) (*course.Course, error) {
	crs, err := s.cache.Get(eventId, eventDetailId)
	if err != nil {
		return nil, newError(KindResourceNotFound, "%v", err)
	}
	return crs, nil
}

// ResetStore truncates the live state store, per spec §6's resetStore.
func (s *Service) ResetStore() (int64, error) {
	n, err := s.store.Reset()
	if err != nil {
		return 0, newError(KindStoreUnavailable, "%v", err)
	}
	return n, nil
}
