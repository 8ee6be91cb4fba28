// Package leaderboard implements the ordered ranking keyed by
// (cpIndex, cumulativeTime) on top of the live state store's shared
// sqlite connection — a sorted set substitute backed by an indexed
// table rather than an external KV engine, the same DB, different
// table, in the teacher's single-DB-many-concerns style.
package leaderboard

import (
	"database/sql"
	"fmt"
	"math"
)

// DefaultScoreWeight matches spec §4.8's W; it must be at least the
// maximum feasible race duration in seconds so cpIndex dominates.
const DefaultScoreWeight = 1_000_000.0

// Entry is one ranked participant.
type Entry struct {
	UserId         string
	Score          float64
	CpIndex        int32
	CumulativeTime float64
	Rank           int // 1-based, only populated by queries that compute it
}

// Leaderboard ranks participants within one event-detail.
type Leaderboard struct {
	conn   *sql.DB
	weight float64
}

// New builds a Leaderboard sharing conn (normally store.Store.Conn())
// with the given score weight.
func New(conn *sql.DB, weight float64) *Leaderboard {
	if weight <= 0 {
		weight = DefaultScoreWeight
	}
	return &Leaderboard{conn: conn, weight: weight}
}

// Score computes S = cpIndex*W - cumulativeTime_s.
func (l *Leaderboard) Score(cpIndex int32, cumulativeTime float64) float64 {
	return float64(cpIndex)*l.weight - cumulativeTime
}

// Upsert records or updates a participant's standing after a checkpoint
// crossing.
func (l *Leaderboard) Upsert(eventDetailId, userId string, cpIndex int32, cumulativeTime float64) error {
	score := l.Score(cpIndex, cumulativeTime)
	_, err := l.conn.Exec(`
		INSERT INTO leaderboard_entry (event_detail_id, user_id, score, cp_index, cumulative_time_s)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_detail_id, user_id) DO UPDATE SET
			score = excluded.score,
			cp_index = excluded.cp_index,
			cumulative_time_s = excluded.cumulative_time_s
		WHERE excluded.score > leaderboard_entry.score`,
		eventDetailId, userId, score, cpIndex, cumulativeTime)
	if err != nil {
		return fmt.Errorf("upserting leaderboard entry: %w", err)
	}
	return nil
}

// Top returns the top N entries for an event-detail, highest score
// (best rank) first.
func (l *Leaderboard) Top(eventDetailId string, n int) ([]Entry, error) {
	rows, err := l.conn.Query(`
		SELECT user_id, score, cp_index, cumulative_time_s
		FROM leaderboard_entry
		WHERE event_detail_id = ?
		ORDER BY score DESC
		LIMIT ?`, eventDetailId, n)
	if err != nil {
		return nil, fmt.Errorf("querying top entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	rank := 1
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserId, &e.Score, &e.CpIndex, &e.CumulativeTime); err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		e.Rank = rank
		rank++
		out = append(out, e)
	}
	return out, rows.Err()
}

// Rank returns a participant's 1-based rank within an event-detail, or
// 0 if they have no leaderboard entry yet.
func (l *Leaderboard) Rank(eventDetailId, userId string) (int, error) {
	var score float64
	err := l.conn.QueryRow(`
		SELECT score FROM leaderboard_entry WHERE event_detail_id = ? AND user_id = ?`,
		eventDetailId, userId).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up entry: %w", err)
	}

	var higher int
	if err := l.conn.QueryRow(`
		SELECT COUNT(*) FROM leaderboard_entry WHERE event_detail_id = ? AND score > ?`,
		eventDetailId, score).Scan(&higher); err != nil {
		return 0, fmt.Errorf("counting higher-ranked entries: %w", err)
	}
	return higher + 1, nil
}

// RangeAround returns up to `before` entries ranked better than userId
// and up to `after` entries ranked worse, plus userId's own entry,
// ordered by score descending.
func (l *Leaderboard) RangeAround(eventDetailId, userId string, before, after int) ([]Entry, error) {
	var score float64
	err := l.conn.QueryRow(`
		SELECT score FROM leaderboard_entry WHERE event_detail_id = ? AND user_id = ?`,
		eventDetailId, userId).Scan(&score)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up entry: %w", err)
	}

	aboveRows, err := l.conn.Query(`
		SELECT user_id, score, cp_index, cumulative_time_s
		FROM leaderboard_entry
		WHERE event_detail_id = ? AND score > ?
		ORDER BY score ASC
		LIMIT ?`, eventDetailId, score, before)
	if err != nil {
		return nil, fmt.Errorf("querying entries above: %w", err)
	}
	above, err := scanEntries(aboveRows)
	if err != nil {
		return nil, err
	}
	reverse(above)

	selfRows, err := l.conn.Query(`
		SELECT user_id, score, cp_index, cumulative_time_s
		FROM leaderboard_entry WHERE event_detail_id = ? AND user_id = ?`, eventDetailId, userId)
	if err != nil {
		return nil, fmt.Errorf("querying self entry: %w", err)
	}
	self, err := scanEntries(selfRows)
	if err != nil {
		return nil, err
	}

	belowRows, err := l.conn.Query(`
		SELECT user_id, score, cp_index, cumulative_time_s
		FROM leaderboard_entry
		WHERE event_detail_id = ? AND score < ?
		ORDER BY score DESC
		LIMIT ?`, eventDetailId, score, after)
	if err != nil {
		return nil, fmt.Errorf("querying entries below: %w", err)
	}
	below, err := scanEntries(belowRows)
	if err != nil {
		return nil, err
	}

	out := append(above, self...)
	out = append(out, below...)
	return out, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserId, &e.Score, &e.CpIndex, &e.CumulativeTime); err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func reverse(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// DecodeScore recovers cpIndex and cumulativeTime_s from a composite
// score, for presentation code that only has the raw score to hand.
func DecodeScore(score, weight float64) (cpIndex int32, cumulativeTime float64) {
	if weight <= 0 {
		weight = DefaultScoreWeight
	}
	cp := int32(math.Round(score / weight))
	return cp, float64(cp)*weight - score
}
