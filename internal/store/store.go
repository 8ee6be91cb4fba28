package store

import (
	"database/sql"
	"fmt"
)

// Store is the live state store: per-participant location and segment
// records. It is backed by a *DB but exposed as its own type so callers
// depend on behavior (read-modify-write contracts), not the raw schema.
type Store struct {
	db *DB
}

// New wraps an opened DB as a Store.
func New(db *DB) *Store {
	return &Store{db: db}
}

// Conn exposes the underlying *sql.DB so collaborators sharing this
// database (the leaderboard engine) can issue their own queries against
// the same connection pool instead of opening a second one.
func (s *Store) Conn() *sql.DB {
	return s.db.DB.DB
}

// GetLocation returns the latest location record for (userId,
// eventDetailId), or ErrNotFound if none exists yet.
func (s *Store) GetLocation(userId, eventDetailId string) (*ParticipantLocation, error) {
	row := s.db.QueryRow(`
		SELECT user_id, event_id, event_detail_id,
		       raw_lat, raw_lon, raw_altitude, raw_accuracy, raw_speed, raw_time_unix,
		       corrected_lat, corrected_lon, corrected_altitude, heading_deg,
		       distance_covered_m, cumulative_time_s, last_updated_unix,
		       farthest_cp_id, farthest_cp_index, cumulative_time_at_farthest_cp_s,
		       race_start_unix, version
		FROM participant_location
		WHERE user_id = ? AND event_detail_id = ?`, userId, eventDetailId)

	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return loc, nil
}

// PutLocation performs a compare-and-swap write: if expectedVersion
// matches the row currently stored (or the row doesn't exist yet and
// expectedVersion is 0), the write succeeds and loc.Version is bumped.
// Otherwise ErrConflict is returned and the caller's normal policy is to
// retry the read-modify-write.
func (s *Store) PutLocation(loc *ParticipantLocation, expectedVersion int64) error {
	newVersion := expectedVersion + 1

	if expectedVersion == 0 {
		res, err := s.db.Exec(`
			INSERT INTO participant_location (
				user_id, event_id, event_detail_id,
				raw_lat, raw_lon, raw_altitude, raw_accuracy, raw_speed, raw_time_unix,
				corrected_lat, corrected_lon, corrected_altitude, heading_deg,
				distance_covered_m, cumulative_time_s, last_updated_unix,
				farthest_cp_id, farthest_cp_index, cumulative_time_at_farthest_cp_s,
				race_start_unix, version
			) SELECT ?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?
			  WHERE NOT EXISTS (
			      SELECT 1 FROM participant_location WHERE user_id = ? AND event_detail_id = ?
			  )`,
			locationInsertArgs(loc, newVersion, loc.UserId, loc.EventDetailId)...)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n == 0 {
			return ErrConflict
		}
		loc.Version = newVersion
		return nil
	}

	res, err := s.db.Exec(`
		UPDATE participant_location SET
			raw_lat = ?, raw_lon = ?, raw_altitude = ?, raw_accuracy = ?, raw_speed = ?, raw_time_unix = ?,
			corrected_lat = ?, corrected_lon = ?, corrected_altitude = ?, heading_deg = ?,
			distance_covered_m = ?, cumulative_time_s = ?, last_updated_unix = ?,
			farthest_cp_id = ?, farthest_cp_index = ?, cumulative_time_at_farthest_cp_s = ?,
			race_start_unix = ?, version = ?
		WHERE user_id = ? AND event_detail_id = ? AND version = ?`,
		loc.RawLat, loc.RawLon, nullableFloat(loc.RawAltitude), nullableFloat(loc.RawAccuracy), nullableFloat(loc.RawSpeed), loc.RawTime.Unix(),
		loc.CorrectedLat, loc.CorrectedLon, nullableFloat(loc.CorrectedAltitude), loc.Heading,
		loc.DistanceCovered, loc.CumulativeTime, loc.LastUpdated.Unix(),
		nullableString(loc.FarthestCpId), nullableInt32(loc.FarthestCpIndex), nullableFloat(loc.CumulativeTimeAtFarthestCp),
		loc.RaceStartTime.Unix(), newVersion,
		loc.UserId, loc.EventDetailId, expectedVersion)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrConflict
	}
	loc.Version = newVersion
	return nil
}

// AppendSegmentRecord records a checkpoint crossing's split. Crossing the
// same (userId, eventId, eventDetailId, cpId) twice is a no-op: segment
// records are append-only and checkpoints are one-shot (spec §4.6).
func (s *Store) AppendSegmentRecord(userId, eventId, eventDetailId string, rec SegmentRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO participant_segment_record (
			user_id, event_id, event_detail_id, cp_id, cp_index,
			segment_duration_s, cumulative_time_s, crossed_at_unix
		) VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (user_id, event_id, event_detail_id, cp_id) DO NOTHING`,
		userId, eventId, eventDetailId, rec.CpId, rec.CpIndex,
		rec.SegmentDurationS, rec.CumulativeTimeS, rec.CrossedAt.Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GetSegmentRecords returns every recorded checkpoint crossing for a
// participant on an event-detail, ordered by cpIndex.
func (s *Store) GetSegmentRecords(userId, eventId, eventDetailId string) ([]SegmentRecord, error) {
	rows, err := s.db.Query(`
		SELECT cp_id, cp_index, segment_duration_s, cumulative_time_s, crossed_at_unix
		FROM participant_segment_record
		WHERE user_id = ? AND event_id = ? AND event_detail_id = ?
		ORDER BY cp_index ASC`, userId, eventId, eventDetailId)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []SegmentRecord
	for rows.Next() {
		var rec SegmentRecord
		var crossedAtUnix int64
		if err := rows.Scan(&rec.CpId, &rec.CpIndex, &rec.SegmentDurationS, &rec.CumulativeTimeS, &crossedAtUnix); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		rec.CrossedAt = unixToTime(crossedAtUnix)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Reset truncates every table (locations, segment records, leaderboard
// entries) and returns the total row count removed. Exposed as the
// resetStore admin operation.
func (s *Store) Reset() (int64, error) {
	var total int64
	for _, table := range []string{"participant_location", "participant_segment_record", "leaderboard_entry"} {
		res, err := s.db.Exec("DELETE FROM " + table)
		if err != nil {
			return total, fmt.Errorf("%w: clearing %s: %v", ErrUnavailable, table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		total += n
	}
	return total, nil
}
