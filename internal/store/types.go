package store

import "time"

// ParticipantLocation is the latest corrected state for one participant
// on one event-detail, keyed by location:{userId}:{eventDetailId}.
// DistanceCovered and FarthestCpIndex are monotonically non-decreasing
// for the life of the record.
type ParticipantLocation struct {
	UserId        string
	EventId       string
	EventDetailId string

	RawLat      float64
	RawLon      float64
	RawAltitude *float64
	RawAccuracy *float64
	RawSpeed    *float64
	RawTime     time.Time

	CorrectedLat      float64
	CorrectedLon      float64
	CorrectedAltitude *float64
	Heading           float64

	DistanceCovered float64
	CumulativeTime  float64
	LastUpdated     time.Time

	FarthestCpId                  *string
	FarthestCpIndex               *int32
	CumulativeTimeAtFarthestCp    *float64

	// RaceStartTime anchors cumulative-time computation: the timestamp of
	// the first accepted fix for this participant (spec §4.6).
	RaceStartTime time.Time

	// Version is the optimistic-concurrency token for CAS writes.
	// A new record starts at version 0; PutLocation increments it.
	Version int64
}

// SegmentRecord is one checkpoint's split for a participant, keyed by
// participantSegmentRecords:{userId}:{eventId}:{eventDetailId} -> cpId.
type SegmentRecord struct {
	CpId              string
	CpIndex           int32
	SegmentDurationS  float64
	CumulativeTimeS   float64
	CrossedAt         time.Time
}
