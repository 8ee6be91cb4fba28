package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racetrack/gpscore/internal/store"
)

func newTestLeaderboard(t *testing.T) *Leaderboard {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(store.New(db).Conn(), DefaultScoreWeight)
}

func TestScoreFormula(t *testing.T) {
	l := New(nil, DefaultScoreWeight)
	assert.Equal(t, 1_000_000.0-10.0, l.Score(1, 10))
}

func TestUpsertAndTop(t *testing.T) {
	l := newTestLeaderboard(t)
	require.NoError(t, l.Upsert("detail1", "A", 3, 900))
	require.NoError(t, l.Upsert("detail1", "B", 2, 800))
	require.NoError(t, l.Upsert("detail1", "C", 2, 850))

	top, err := l.Top("detail1", 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "A", top[0].UserId)
	assert.Equal(t, "B", top[1].UserId) // same cpIndex as C, lower cumulativeTime wins
	assert.Equal(t, "C", top[2].UserId)
}

func TestHigherCpIndexAlwaysOutranksLowerRegardlessOfTime(t *testing.T) {
	l := newTestLeaderboard(t)
	require.NoError(t, l.Upsert("detail1", "slow-but-further", 5, 100_000))
	require.NoError(t, l.Upsert("detail1", "fast-but-behind", 4, 1))

	top, err := l.Top("detail1", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "slow-but-further", top[0].UserId)
}

func TestRankReflectsPosition(t *testing.T) {
	l := newTestLeaderboard(t)
	require.NoError(t, l.Upsert("detail1", "A", 3, 900))
	require.NoError(t, l.Upsert("detail1", "B", 2, 800))

	rank, err := l.Rank("detail1", "B")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
}

func TestRankUnknownUserReturnsZero(t *testing.T) {
	l := newTestLeaderboard(t)
	rank, err := l.Rank("detail1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, rank)
}

func TestUpsertIgnoresRegression(t *testing.T) {
	l := newTestLeaderboard(t)
	require.NoError(t, l.Upsert("detail1", "A", 3, 900))
	// A stale, lower-scoring write (e.g. reordered retry) must not regress
	// the entry.
	require.NoError(t, l.Upsert("detail1", "A", 2, 800))

	top, err := l.Top("detail1", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int32(3), top[0].CpIndex)
}

func TestDecodeScoreRoundTrips(t *testing.T) {
	l := newTestLeaderboard(t)
	score := l.Score(4, 555)
	cpIndex, cumulativeTime := DecodeScore(score, DefaultScoreWeight)
	assert.Equal(t, int32(4), cpIndex)
	assert.InDelta(t, 555.0, cumulativeTime, 1e-6)
}

func TestRangeAroundIncludesNeighborsInOrder(t *testing.T) {
	l := newTestLeaderboard(t)
	require.NoError(t, l.Upsert("detail1", "A", 5, 100))
	require.NoError(t, l.Upsert("detail1", "B", 4, 100))
	require.NoError(t, l.Upsert("detail1", "C", 3, 100))
	require.NoError(t, l.Upsert("detail1", "D", 2, 100))

	around, err := l.RangeAround("detail1", "C", 1, 1)
	require.NoError(t, err)
	require.Len(t, around, 3)
	assert.Equal(t, "B", around[0].UserId)
	assert.Equal(t, "C", around[1].UserId)
	assert.Equal(t, "D", around[2].UserId)
}
