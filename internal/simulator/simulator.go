// Package simulator generates deterministic synthetic GPS fixes for a
// field of virtual runners along a course, for load-testing and golden
// replay of internal/correction without needing real race data.
package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/racetrack/gpscore/internal/course"
)

// metersPerDegreeLat approximates how many meters a degree of latitude
// spans; used to scale a bounded-meters position error into degrees for
// the additive-noise step.
const metersPerDegreeLat = 111_320.0

// VirtualUser is one simulated runner: a speed factor applied to the
// simulation's base pace. f_i > 1 runs faster than base pace, f_i < 1
// slower.
type VirtualUser struct {
	UserId      string
	SpeedFactor float64
}

// Config tunes the generated fix stream.
type Config struct {
	// BaseSpeedMps is the baseline pace before a runner's SpeedFactor is
	// applied.
	BaseSpeedMps float64
	// DeltaT is the simulated time between successive fixes.
	DeltaT time.Duration
	// MaxErrorMeters bounds the additive per-axis position noise; the
	// effective bound is min(MaxErrorMeters, 10) per spec §4.11.
	MaxErrorMeters float64
	// Seed makes the generated sequence reproducible.
	Seed int64
}

// Fix is one generated sample for one virtual user.
type Fix struct {
	UserId     string
	Lat        float64
	Lon        float64
	HeadingDeg float64
	Timestamp  time.Time
}

// Simulator generates fix sequences for a fixed course and config.
type Simulator struct {
	course *course.Course
	cfg    Config
}

// New builds a Simulator over crs with the given config. BaseSpeedMps and
// DeltaT must be positive; Seed may be zero (still deterministic, just a
// fixed starting state).
func New(crs *course.Course, cfg Config) (*Simulator, error) {
	if crs == nil || crs.TotalDistance <= 0 {
		return nil, fmt.Errorf("simulator: course has no distance to traverse")
	}
	if cfg.BaseSpeedMps <= 0 {
		return nil, fmt.Errorf("simulator: BaseSpeedMps must be positive")
	}
	if cfg.DeltaT <= 0 {
		return nil, fmt.Errorf("simulator: DeltaT must be positive")
	}
	return &Simulator{course: crs, cfg: cfg}, nil
}

// Generate produces one fix sequence per user, each running from start
// to the end of the course. Fixes for different users are generated from
// independent, deterministically-seeded RNG streams (seed + an index
// derived from the user's position in the slice), so a user's noise
// depends on where it sits in users; re-running with the same seed and
// the same users in the same order reproduces byte-identical output.
func (s *Simulator) Generate(users []VirtualUser, start time.Time) map[string][]Fix {
	out := make(map[string][]Fix, len(users))
	errBound := math.Min(s.cfg.MaxErrorMeters, 10.0)
	if errBound < 0 {
		errBound = 0
	}

	for i, u := range users {
		rng := rand.New(rand.NewSource(s.cfg.Seed + int64(i)*1_000_003))
		speed := s.cfg.BaseSpeedMps * u.SpeedFactor
		if speed <= 0 {
			out[u.UserId] = nil
			continue
		}

		stepDistance := speed * s.cfg.DeltaT.Seconds()
		var fixes []Fix
		t := start
		for d := 0.0; ; d += stepDistance {
			if d > s.course.TotalDistance {
				d = s.course.TotalDistance
			}
			lat, lon, heading := s.course.LocationAtDistance(d)
			lat, lon = addNoise(rng, lat, lon, errBound)
			fixes = append(fixes, Fix{UserId: u.UserId, Lat: lat, Lon: lon, HeadingDeg: heading, Timestamp: t})
			if d >= s.course.TotalDistance {
				break
			}
			t = t.Add(s.cfg.DeltaT)
		}
		out[u.UserId] = fixes
	}
	return out
}

// addNoise perturbs (lat, lon) by an independent uniform error on each
// axis, bounded in meters by errBound.
func addNoise(rng *rand.Rand, lat, lon, errBound float64) (float64, float64) {
	if errBound == 0 {
		return lat, lon
	}
	latErrM := (rng.Float64()*2 - 1) * errBound
	lonErrM := (rng.Float64()*2 - 1) * errBound

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat == 0 {
		cosLat = 1e-9
	}
	metersPerDegreeLon := metersPerDegreeLat * cosLat

	return lat + latErrM/metersPerDegreeLat, lon + lonErrM/metersPerDegreeLon
}
