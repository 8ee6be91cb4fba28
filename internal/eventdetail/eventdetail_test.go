package eventdetail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racetrack/gpscore/internal/leaderboard"
	"github.com/racetrack/gpscore/internal/store"
)

type fakeReadModel struct {
	meta       EventMetadata
	categories []CourseCategory
	profiles   map[string]ParticipantProfile
	trackers   map[string][]string
}

func (f *fakeReadModel) GetEventMetadata(eventId string) (EventMetadata, error) {
	return f.meta, nil
}

func (f *fakeReadModel) ListCourseCategories(eventId string) ([]CourseCategory, error) {
	return f.categories, nil
}

func (f *fakeReadModel) GetParticipantProfile(userId string) (ParticipantProfile, error) {
	if p, ok := f.profiles[userId]; ok {
		return p, nil
	}
	return ParticipantProfile{UserId: userId}, nil
}

func (f *fakeReadModel) GetTrackerIds(currentUserId string) ([]string, error) {
	return f.trackers[currentUserId], nil
}

type fakeLocations struct {
	locs map[string]*store.ParticipantLocation
}

func (f *fakeLocations) GetLocation(userId, eventDetailId string) (*store.ParticipantLocation, error) {
	if loc, ok := f.locs[userId]; ok {
		return loc, nil
	}
	return nil, store.ErrNotFound
}

type fakeLeaderboard struct {
	entries []leaderboard.Entry
}

func (f *fakeLeaderboard) Top(eventDetailId string, n int) ([]leaderboard.Entry, error) {
	if n < len(f.entries) {
		return f.entries[:n], nil
	}
	return f.entries, nil
}

func newFixture() (*Service, *fakeLocations) {
	rm := &fakeReadModel{
		meta:       EventMetadata{EventId: "evt", Name: "Spring Marathon", StartTime: time.Unix(1_700_000_000, 0).UTC()},
		categories: []CourseCategory{{EventDetailId: "detail", Name: "Full Marathon"}},
		profiles: map[string]ParticipantProfile{
			"leader": {UserId: "leader", DisplayName: "Leader", BibNumber: "101"},
			"me":     {UserId: "me", DisplayName: "Me", BibNumber: "202"},
			"friend": {UserId: "friend", DisplayName: "Friend", BibNumber: "303"},
		},
		trackers: map[string][]string{"me": {"friend"}},
	}
	locs := &fakeLocations{locs: map[string]*store.ParticipantLocation{
		"leader": {CorrectedLat: 1, CorrectedLon: 2, LastUpdated: time.Unix(1_700_000_100, 0).UTC()},
		"me":     {CorrectedLat: 3, CorrectedLon: 4, LastUpdated: time.Unix(1_700_000_050, 0).UTC()},
		"friend": {CorrectedLat: 5, CorrectedLon: 6, LastUpdated: time.Unix(1_700_000_070, 0).UTC()},
	}}
	lb := &fakeLeaderboard{entries: []leaderboard.Entry{
		{UserId: "leader", Rank: 1, CpIndex: 3, CumulativeTime: 1200},
	}}
	return New(rm, locs, lb, 3), locs
}

func TestGetEventDetailComposesStaticAndLiveData(t *testing.T) {
	svc, _ := newFixture()
	me := "me"
	view, err := svc.GetEventDetail("evt", "detail", &me)
	require.NoError(t, err)

	assert.Equal(t, "Spring Marathon", view.Event.Name)
	require.Len(t, view.Categories, 1)
	require.Len(t, view.TopRankers, 1)
	assert.Equal(t, "leader", view.TopRankers[0].UserId)

	userIds := make(map[string]bool)
	for _, p := range view.ParticipantsLocations {
		userIds[p.UserId] = true
	}
	assert.True(t, userIds["leader"], "top ranker must appear in the panel")
	assert.True(t, userIds["me"], "current user must appear in the panel")
	assert.True(t, userIds["friend"], "tracked user must appear in the panel")
}

func TestGetEventDetailDedupesWhenCurrentUserIsAlsoTopRanked(t *testing.T) {
	svc, _ := newFixture()
	leader := "leader"
	view, err := svc.GetEventDetail("evt", "detail", &leader)
	require.NoError(t, err)

	count := 0
	for _, p := range view.ParticipantsLocations {
		if p.UserId == "leader" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestGetEventDetailSkipsPanelEntriesWithoutALocationYet(t *testing.T) {
	svc, _ := newFixture()
	missing := "ghost"
	view, err := svc.GetEventDetail("evt", "detail", &missing)
	require.NoError(t, err)

	for _, p := range view.ParticipantsLocations {
		assert.NotEqual(t, "ghost", p.UserId)
	}
}

func TestGetEventDetailPanelSeedStaysTopThreeRegardlessOfConfiguredTopN(t *testing.T) {
	rm := &fakeReadModel{
		meta: EventMetadata{EventId: "evt", Name: "Big Marathon"},
		profiles: map[string]ParticipantProfile{
			"p1": {UserId: "p1", DisplayName: "P1"},
			"p2": {UserId: "p2", DisplayName: "P2"},
			"p3": {UserId: "p3", DisplayName: "P3"},
			"p4": {UserId: "p4", DisplayName: "P4"},
			"p5": {UserId: "p5", DisplayName: "P5"},
		},
	}
	locs := &fakeLocations{locs: map[string]*store.ParticipantLocation{
		"p1": {CorrectedLat: 1}, "p2": {CorrectedLat: 2}, "p3": {CorrectedLat: 3},
		"p4": {CorrectedLat: 4}, "p5": {CorrectedLat: 5},
	}}
	lb := &fakeLeaderboard{entries: []leaderboard.Entry{
		{UserId: "p1", Rank: 1, CpIndex: 5, CumulativeTime: 100},
		{UserId: "p2", Rank: 2, CpIndex: 5, CumulativeTime: 200},
		{UserId: "p3", Rank: 3, CpIndex: 5, CumulativeTime: 300},
		{UserId: "p4", Rank: 4, CpIndex: 5, CumulativeTime: 400},
		{UserId: "p5", Rank: 5, CpIndex: 5, CumulativeTime: 500},
	}}
	// Panel seeding must stay fixed at the top 3 leaders even though
	// topRankers is configured to 5.
	svc := New(rm, locs, lb, 5)

	view, err := svc.GetEventDetail("evt", "detail", nil)
	require.NoError(t, err)

	require.Len(t, view.TopRankers, 5)
	require.Len(t, view.ParticipantsLocations, 3)

	panelUserIds := make(map[string]bool, 3)
	for _, p := range view.ParticipantsLocations {
		panelUserIds[p.UserId] = true
	}
	assert.True(t, panelUserIds["p1"])
	assert.True(t, panelUserIds["p2"])
	assert.True(t, panelUserIds["p3"])
	assert.False(t, panelUserIds["p4"], "panel must not include the 4th-ranked leader")
	assert.False(t, panelUserIds["p5"], "panel must not include the 5th-ranked leader")
}

func TestGetEventDetailRejectsEmptyIds(t *testing.T) {
	svc, _ := newFixture()
	_, err := svc.GetEventDetail("", "detail", nil)
	require.Error(t, err)
}

func TestGetEventDetailWithNoCurrentUserOmitsTrackerLookup(t *testing.T) {
	svc, _ := newFixture()
	view, err := svc.GetEventDetail("evt", "detail", nil)
	require.NoError(t, err)

	for _, p := range view.ParticipantsLocations {
		assert.NotEqual(t, "me", p.UserId)
		assert.NotEqual(t, "friend", p.UserId)
	}
}
