package store

import (
	"database/sql"
	"time"
)

func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullableInt32(v *int32) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// scannable abstracts *sql.Row so scanLocation works wherever a single
// row is being decoded.
type scannable interface {
	Scan(dest ...interface{}) error
}

// scanLocation decodes a row selected with the exact column order used
// by Store.GetLocation's query.
func scanLocation(row scannable) (*ParticipantLocation, error) {
	var loc ParticipantLocation
	var (
		rawAltitude                sql.NullFloat64
		rawAccuracy                sql.NullFloat64
		rawSpeed                   sql.NullFloat64
		correctedAltitude          sql.NullFloat64
		farthestCpId               sql.NullString
		farthestCpIndex            sql.NullInt64
		cumulativeTimeAtFarthestCp sql.NullFloat64
		rawTimeUnix                int64
		lastUpdatedUnix            int64
		raceStartUnix              int64
	)

	err := row.Scan(
		&loc.UserId, &loc.EventId, &loc.EventDetailId,
		&loc.RawLat, &loc.RawLon, &rawAltitude, &rawAccuracy, &rawSpeed, &rawTimeUnix,
		&loc.CorrectedLat, &loc.CorrectedLon, &correctedAltitude, &loc.Heading,
		&loc.DistanceCovered, &loc.CumulativeTime, &lastUpdatedUnix,
		&farthestCpId, &farthestCpIndex, &cumulativeTimeAtFarthestCp,
		&raceStartUnix, &loc.Version,
	)
	if err != nil {
		return nil, err
	}

	loc.RawAltitude = floatPtrFromNull(rawAltitude)
	loc.RawAccuracy = floatPtrFromNull(rawAccuracy)
	loc.RawSpeed = floatPtrFromNull(rawSpeed)
	loc.CorrectedAltitude = floatPtrFromNull(correctedAltitude)
	loc.CumulativeTimeAtFarthestCp = floatPtrFromNull(cumulativeTimeAtFarthestCp)
	loc.FarthestCpId = stringPtrFromNull(farthestCpId)
	loc.FarthestCpIndex = int32PtrFromNull(farthestCpIndex)
	loc.RawTime = unixToTime(rawTimeUnix)
	loc.LastUpdated = unixToTime(lastUpdatedUnix)
	loc.RaceStartTime = unixToTime(raceStartUnix)

	return &loc, nil
}

func floatPtrFromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int32PtrFromNull(v sql.NullInt64) *int32 {
	if !v.Valid {
		return nil
	}
	i := int32(v.Int64)
	return &i
}

// locationInsertArgs builds the positional args for the INSERT ...
// SELECT used by PutLocation's create path. The trailing two args
// (userId, eventDetailId again) feed the NOT EXISTS guard.
func locationInsertArgs(loc *ParticipantLocation, version int64, userId, eventDetailId string) []interface{} {
	return []interface{}{
		loc.UserId, loc.EventId, loc.EventDetailId,
		loc.RawLat, loc.RawLon, nullableFloat(loc.RawAltitude), nullableFloat(loc.RawAccuracy), nullableFloat(loc.RawSpeed), loc.RawTime.Unix(),
		loc.CorrectedLat, loc.CorrectedLon, nullableFloat(loc.CorrectedAltitude), loc.Heading,
		loc.DistanceCovered, loc.CumulativeTime, loc.LastUpdated.Unix(),
		nullableString(loc.FarthestCpId), nullableInt32(loc.FarthestCpIndex), nullableFloat(loc.CumulativeTimeAtFarthestCp),
		loc.RaceStartTime.Unix(), version,
		userId, eventDetailId,
	}
}
