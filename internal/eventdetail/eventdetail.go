// Package eventdetail composes the event-detail read view: static event
// metadata, course categories, the live participant-locations panel, and
// the leaderboard's top rankers. It never writes; every method is a pure
// read over its collaborators.
package eventdetail

import (
	"errors"
	"fmt"
	"time"

	"github.com/racetrack/gpscore/internal/leaderboard"
	"github.com/racetrack/gpscore/internal/store"
)

// ErrNotFound is returned when the requested event or event-detail does
// not exist in the relational read-model.
var ErrNotFound = errors.New("event detail not found")

// EventMetadata is the static, rarely-changing description of an event.
type EventMetadata struct {
	EventId   string
	Name      string
	StartTime time.Time
	Location  string
}

// CourseCategory is one selectable course/distance under an event
// (e.g. "Full Marathon", "10K").
type CourseCategory struct {
	EventDetailId string
	Name          string
}

// ParticipantProfile is the subset of participant profile fields the
// read-model exposes for display.
type ParticipantProfile struct {
	UserId          string
	DisplayName     string
	BibNumber       string
	ProfileImageUrl string
}

// ReadModel is the relational collaborator: everything this package
// needs that isn't live race state. The core only reads from it.
type ReadModel interface {
	GetEventMetadata(eventId string) (EventMetadata, error)
	ListCourseCategories(eventId string) ([]CourseCategory, error)
	GetParticipantProfile(userId string) (ParticipantProfile, error)
	// GetTrackerIds returns the userIds that currentUserId follows, so
	// their live locations are always included in the panel regardless
	// of leaderboard rank.
	GetTrackerIds(currentUserId string) ([]string, error)
}

// LocationLookup is the live-state-store collaborator.
type LocationLookup interface {
	GetLocation(userId, eventDetailId string) (*store.ParticipantLocation, error)
}

// LeaderboardLookup is the leaderboard collaborator.
type LeaderboardLookup interface {
	Top(eventDetailId string, n int) ([]leaderboard.Entry, error)
}

// ParticipantLocationView is one entry in the participantsLocations panel.
type ParticipantLocationView struct {
	UserId          string
	Profile         ParticipantProfile
	Latitude        float64
	Longitude       float64
	Altitude        *float64
	LastUpdated     time.Time
	FarthestCpId    *string
	FarthestCpIndex *int32
}

// RankedParticipant is one entry in the topRankers list.
type RankedParticipant struct {
	Rank            int
	UserId          string
	Profile         ParticipantProfile
	CpIndex         int32
	CumulativeTime  float64
}

// View is the full composed response of getEventDetail.
type View struct {
	Event                 EventMetadata
	Categories            []CourseCategory
	ParticipantsLocations []ParticipantLocationView
	TopRankers            []RankedParticipant
}

// panelSeedSize is the fixed number of leaderboard leaders (spec §4.10:
// "top-3 leaderboard users") that seed the participantsLocations panel,
// independent of the separately configurable topRankers size.
const panelSeedSize = 3

// Service composes the event-detail view from its collaborators.
type Service struct {
	readModel ReadModel
	locations LocationLookup
	lb        LeaderboardLookup
	topN      int
}

// New builds a Service. topN is the size of the topRankers list (spec
// §4.10 calls it "first N entries"); callers pass the configured value.
func New(readModel ReadModel, locations LocationLookup, lb LeaderboardLookup, topN int) *Service {
	if topN <= 0 {
		topN = 3
	}
	return &Service{readModel: readModel, locations: locations, lb: lb, topN: topN}
}

// GetEventDetail composes the read view for one event-detail. currentUserId
// is optional; when present, that user's own location is included in the
// panel even if they aren't among the top-3 leaders that seed it (a user
// with no location record yet is left out, like any other panel entry).
func (s *Service) GetEventDetail(eventId, eventDetailId string, currentUserId *string) (*View, error) {
	if eventId == "" || eventDetailId == "" {
		return nil, fmt.Errorf("%w: eventId and eventDetailId are required", ErrNotFound)
	}

	meta, err := s.readModel.GetEventMetadata(eventId)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	categories, err := s.readModel.ListCourseCategories(eventId)
	if err != nil {
		return nil, fmt.Errorf("loading course categories: %w", err)
	}

	panelLeaders, err := s.lb.Top(eventDetailId, panelSeedSize)
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}

	rankedTop, err := s.lb.Top(eventDetailId, s.topN)
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}

	panelUserIds := make([]string, 0, len(panelLeaders)+2)
	seen := make(map[string]bool, len(panelLeaders)+2)
	addUser := func(userId string) {
		if userId == "" || seen[userId] {
			return
		}
		seen[userId] = true
		panelUserIds = append(panelUserIds, userId)
	}
	for _, e := range panelLeaders {
		addUser(e.UserId)
	}
	if currentUserId != nil {
		addUser(*currentUserId)
		trackerIds, err := s.readModel.GetTrackerIds(*currentUserId)
		if err != nil {
			return nil, fmt.Errorf("loading tracker ids: %w", err)
		}
		for _, id := range trackerIds {
			addUser(id)
		}
	}

	panel := make([]ParticipantLocationView, 0, len(panelUserIds))
	for _, userId := range panelUserIds {
		view, err := s.buildLocationView(userId, eventDetailId)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// A leaderboard entry or tracker relationship can exist
				// before the first correction commits a location row;
				// skip rather than fail the whole view.
				continue
			}
			return nil, fmt.Errorf("loading participant location: %w", err)
		}
		panel = append(panel, *view)
	}

	rankers := make([]RankedParticipant, 0, len(rankedTop))
	for _, e := range rankedTop {
		profile, err := s.readModel.GetParticipantProfile(e.UserId)
		if err != nil {
			return nil, fmt.Errorf("loading participant profile: %w", err)
		}
		rankers = append(rankers, RankedParticipant{
			Rank:           e.Rank,
			UserId:         e.UserId,
			Profile:        profile,
			CpIndex:        e.CpIndex,
			CumulativeTime: e.CumulativeTime,
		})
	}

	return &View{
		Event:                 meta,
		Categories:            categories,
		ParticipantsLocations: panel,
		TopRankers:            rankers,
	}, nil
}

func (s *Service) buildLocationView(userId, eventDetailId string) (*ParticipantLocationView, error) {
	loc, err := s.locations.GetLocation(userId, eventDetailId)
	if err != nil {
		return nil, err
	}
	profile, err := s.readModel.GetParticipantProfile(userId)
	if err != nil {
		return nil, fmt.Errorf("loading participant profile: %w", err)
	}
	return &ParticipantLocationView{
		UserId:          userId,
		Profile:         profile,
		Latitude:        loc.CorrectedLat,
		Longitude:       loc.CorrectedLon,
		Altitude:        loc.CorrectedAltitude,
		LastUpdated:     loc.LastUpdated,
		FarthestCpId:    loc.FarthestCpId,
		FarthestCpIndex: loc.FarthestCpIndex,
	}, nil
}
