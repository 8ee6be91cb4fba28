// Package config holds the tunables for the GPS correction core, loaded
// from a JSON file of optional (possibly partial) fields. Any field left
// out of the JSON keeps its hardcoded default via the Get* accessors, so
// a config file only needs to override what it actually changes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/defaults.json"

// CorrectionConfig is the root configuration for the correction core. It
// mirrors the tunables named in the public operation contract so the
// same JSON can seed a long-running core or a one-off simulation run.
type CorrectionConfig struct {
	// Course interpolation & checkpoint tagging (C3)
	InterpolationIntervalMeters     *float64 `json:"interpolation_interval_meters,omitempty"`
	CheckpointDistanceIntervalMeters *float64 `json:"checkpoint_distance_interval_meters,omitempty"`

	// Course cache (C4)
	CourseCacheTtlSeconds *int64 `json:"course_cache_ttl_seconds,omitempty"`

	// Map matcher (C5)
	MatchDistanceThresholdMeters *float64 `json:"match_distance_threshold_meters,omitempty"`
	WeightDistance               *float64 `json:"weight_distance,omitempty"`
	WeightBearing                *float64 `json:"weight_bearing,omitempty"`

	// Progress & checkpoint detector (C6)
	CheckpointCaptureRadiusMeters *float64 `json:"checkpoint_capture_radius_meters,omitempty"`

	// Leaderboard (C8)
	LeaderboardScoreWeight *float64 `json:"leaderboard_score_weight,omitempty"`

	// Correction service (C9)
	CorrectionDeadlineMillis *int64 `json:"correction_deadline_millis,omitempty"`
	StoreRetryAttempts       *int   `json:"store_retry_attempts,omitempty"`
	StoreRetryBaseMillis     *int64 `json:"store_retry_base_millis,omitempty"`
	StoreRetryBackoffFactor  *float64 `json:"store_retry_backoff_factor,omitempty"`
	CasConflictRetries       *int   `json:"cas_conflict_retries,omitempty"`

	// Kalman filter (C2)
	KalmanPosProcessNoise      *float64 `json:"kalman_pos_process_noise,omitempty"`
	KalmanPosMeasurementNoise  *float64 `json:"kalman_pos_measurement_noise,omitempty"`
	KalmanAltProcessNoise      *float64 `json:"kalman_alt_process_noise,omitempty"`
	KalmanAltMeasurementNoise  *float64 `json:"kalman_alt_measurement_noise,omitempty"`
	KalmanAccuracyToPosDivisor *float64 `json:"kalman_accuracy_to_pos_divisor,omitempty"`
	KalmanAccuracyToAltDivisor *float64 `json:"kalman_accuracy_to_alt_divisor,omitempty"`

	// Test simulator (C11)
	SimulatorFixIntervalSeconds    *float64 `json:"simulator_fix_interval_seconds,omitempty"`
	SimulatorMaxPositionErrorMeters *float64 `json:"simulator_max_position_error_meters,omitempty"`
	SimulatorBaseSpeedMps          *float64 `json:"simulator_base_speed_mps,omitempty"`
}

// EmptyConfig returns a CorrectionConfig with all fields nil. Use
// LoadConfig to load actual values from a JSON file.
func EmptyConfig() *CorrectionConfig {
	return &CorrectionConfig{}
}

// LoadConfig loads a CorrectionConfig from a JSON file. The file must
// have a .json extension and be under the max file size; fields omitted
// from the file retain their hardcoded defaults, so partial configs are
// safe.
func LoadConfig(path string) (*CorrectionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from
// DefaultConfigPath, searching from the current directory up through
// common parent directories. Panics if the file cannot be found,
// intended for test setup.
func MustLoadDefaultConfig() *CorrectionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any set configuration values are sane.
func (c *CorrectionConfig) Validate() error {
	if c.InterpolationIntervalMeters != nil && *c.InterpolationIntervalMeters <= 0 {
		return fmt.Errorf("interpolation_interval_meters must be positive, got %f", *c.InterpolationIntervalMeters)
	}
	if c.MatchDistanceThresholdMeters != nil && *c.MatchDistanceThresholdMeters <= 0 {
		return fmt.Errorf("match_distance_threshold_meters must be positive, got %f", *c.MatchDistanceThresholdMeters)
	}
	if c.CheckpointCaptureRadiusMeters != nil && *c.CheckpointCaptureRadiusMeters <= 0 {
		return fmt.Errorf("checkpoint_capture_radius_meters must be positive, got %f", *c.CheckpointCaptureRadiusMeters)
	}
	if c.WeightDistance != nil && c.WeightBearing != nil {
		sum := *c.WeightDistance + *c.WeightBearing
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("weight_distance + weight_bearing must sum to 1.0, got %f", sum)
		}
	}
	if c.CourseCacheTtlSeconds != nil && *c.CourseCacheTtlSeconds <= 0 {
		return fmt.Errorf("course_cache_ttl_seconds must be positive, got %d", *c.CourseCacheTtlSeconds)
	}
	if c.CorrectionDeadlineMillis != nil && *c.CorrectionDeadlineMillis <= 0 {
		return fmt.Errorf("correction_deadline_millis must be positive, got %d", *c.CorrectionDeadlineMillis)
	}
	return nil
}

func (c *CorrectionConfig) GetInterpolationIntervalMeters() float64 {
	if c.InterpolationIntervalMeters == nil {
		return 100.0
	}
	return *c.InterpolationIntervalMeters
}

func (c *CorrectionConfig) GetCheckpointDistanceIntervalMeters() float64 {
	if c.CheckpointDistanceIntervalMeters == nil {
		return 0.0 // disabled: every track point is a checkpoint
	}
	return *c.CheckpointDistanceIntervalMeters
}

func (c *CorrectionConfig) GetCourseCacheTtlSeconds() int64 {
	if c.CourseCacheTtlSeconds == nil {
		return 86_400
	}
	return *c.CourseCacheTtlSeconds
}

func (c *CorrectionConfig) GetMatchDistanceThresholdMeters() float64 {
	if c.MatchDistanceThresholdMeters == nil {
		return 100.0
	}
	return *c.MatchDistanceThresholdMeters
}

func (c *CorrectionConfig) GetWeightDistance() float64 {
	if c.WeightDistance == nil {
		return 0.6
	}
	return *c.WeightDistance
}

func (c *CorrectionConfig) GetWeightBearing() float64 {
	if c.WeightBearing == nil {
		return 0.4
	}
	return *c.WeightBearing
}

func (c *CorrectionConfig) GetCheckpointCaptureRadiusMeters() float64 {
	if c.CheckpointCaptureRadiusMeters == nil {
		return 50.0
	}
	return *c.CheckpointCaptureRadiusMeters
}

func (c *CorrectionConfig) GetLeaderboardScoreWeight() float64 {
	if c.LeaderboardScoreWeight == nil {
		return 1_000_000.0
	}
	return *c.LeaderboardScoreWeight
}

func (c *CorrectionConfig) GetCorrectionDeadlineMillis() int64 {
	if c.CorrectionDeadlineMillis == nil {
		return 2000
	}
	return *c.CorrectionDeadlineMillis
}

func (c *CorrectionConfig) GetStoreRetryAttempts() int {
	if c.StoreRetryAttempts == nil {
		return 3
	}
	return *c.StoreRetryAttempts
}

func (c *CorrectionConfig) GetStoreRetryBaseMillis() int64 {
	if c.StoreRetryBaseMillis == nil {
		return 100
	}
	return *c.StoreRetryBaseMillis
}

func (c *CorrectionConfig) GetStoreRetryBackoffFactor() float64 {
	if c.StoreRetryBackoffFactor == nil {
		return 2.0
	}
	return *c.StoreRetryBackoffFactor
}

func (c *CorrectionConfig) GetCasConflictRetries() int {
	if c.CasConflictRetries == nil {
		return 3
	}
	return *c.CasConflictRetries
}

func (c *CorrectionConfig) GetKalmanPosProcessNoise() float64 {
	if c.KalmanPosProcessNoise == nil {
		return 1e-3
	}
	return *c.KalmanPosProcessNoise
}

func (c *CorrectionConfig) GetKalmanPosMeasurementNoise() float64 {
	if c.KalmanPosMeasurementNoise == nil {
		return 1e-2
	}
	return *c.KalmanPosMeasurementNoise
}

func (c *CorrectionConfig) GetKalmanAltProcessNoise() float64 {
	if c.KalmanAltProcessNoise == nil {
		return 1e-2
	}
	return *c.KalmanAltProcessNoise
}

func (c *CorrectionConfig) GetKalmanAltMeasurementNoise() float64 {
	if c.KalmanAltMeasurementNoise == nil {
		return 2.0
	}
	return *c.KalmanAltMeasurementNoise
}

func (c *CorrectionConfig) GetKalmanAccuracyToPosDivisor() float64 {
	if c.KalmanAccuracyToPosDivisor == nil {
		return 10.0
	}
	return *c.KalmanAccuracyToPosDivisor
}

func (c *CorrectionConfig) GetKalmanAccuracyToAltDivisor() float64 {
	if c.KalmanAccuracyToAltDivisor == nil {
		return 5.0
	}
	return *c.KalmanAccuracyToAltDivisor
}

func (c *CorrectionConfig) GetSimulatorFixIntervalSeconds() float64 {
	if c.SimulatorFixIntervalSeconds == nil {
		return 5.0
	}
	return *c.SimulatorFixIntervalSeconds
}

func (c *CorrectionConfig) GetSimulatorMaxPositionErrorMeters() float64 {
	if c.SimulatorMaxPositionErrorMeters == nil {
		return 10.0
	}
	return *c.SimulatorMaxPositionErrorMeters
}

func (c *CorrectionConfig) GetSimulatorBaseSpeedMps() float64 {
	if c.SimulatorBaseSpeedMps == nil {
		return 2.8 // roughly a 6:00/km marathon pace
	}
	return *c.SimulatorBaseSpeedMps
}
