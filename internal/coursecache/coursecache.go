// Package coursecache materializes a course on demand from its GPX
// source, keeping a hot in-memory copy with a TTL. Concurrent misses on
// the same key are coalesced via singleflight so the GPX parse runs at
// most once per key per epoch, mirroring the spec's single-flight
// requirement for C4.
package coursecache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/racetrack/gpscore/internal/course"
)

// ErrCourseUnavailable is returned when a course cannot be resolved,
// downloaded, or parsed.
var ErrCourseUnavailable = errors.New("course unavailable")

// GpxResolver looks up the GPX file URL for an event-detail from the
// relational read-model.
type GpxResolver interface {
	ResolveGpxUrl(eventId, eventDetailId string) (string, error)
}

// ObjectFetcher downloads raw bytes from a URL (the object-store
// collaborator).
type ObjectFetcher interface {
	FetchBytes(url string) ([]byte, error)
}

type cacheEntry struct {
	course    *course.Course
	expiresAt time.Time
}

// Cache is a TTL course cache backed by GpxResolver + ObjectFetcher + the
// course parser, coalescing concurrent misses with singleflight.
type Cache struct {
	resolver GpxResolver
	fetcher  ObjectFetcher
	opts     course.Options
	ttl      time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group
}

// New builds a Cache with the given collaborators, interpolation
// options, and TTL.
func New(resolver GpxResolver, fetcher ObjectFetcher, opts course.Options, ttl time.Duration) *Cache {
	return &Cache{
		resolver: resolver,
		fetcher:  fetcher,
		opts:     opts,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry),
	}
}

func cacheKey(eventId, eventDetailId string) string {
	return eventId + ":" + eventDetailId
}

// Get returns the course for (eventId, eventDetailId), materializing it
// on miss. It always returns a Course or ErrCourseUnavailable.
func (c *Cache) Get(eventId, eventDetailId string) (*course.Course, error) {
	key := cacheKey(eventId, eventDetailId)

	if crs, ok := c.lookup(key); ok {
		return crs, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check: another goroutine may have populated the cache while we
		// waited to enter the singleflight group.
		if crs, ok := c.lookup(key); ok {
			return crs, nil
		}
		return c.materialize(eventId, eventDetailId)
	})
	if err != nil {
		return nil, err
	}
	return result.(*course.Course), nil
}

// Invalidate evicts a cached course ahead of its TTL, forcing the next
// Get to re-materialize it.
func (c *Cache) Invalidate(eventId, eventDetailId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(eventId, eventDetailId))
}

// Put seeds the cache directly with an already-parsed course, bypassing
// the resolver/fetcher round trip. Used by the direct GPX-upload
// operation, which has the bytes in hand and has no need to resolve a
// URL first.
func (c *Cache) Put(eventId, eventDetailId string, crs *course.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(eventId, eventDetailId)] = cacheEntry{course: crs, expiresAt: time.Now().Add(c.ttl)}
}

func (c *Cache) lookup(key string) (*course.Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.course, true
}

func (c *Cache) materialize(eventId, eventDetailId string) (*course.Course, error) {
	url, err := c.resolver.ResolveGpxUrl(eventId, eventDetailId)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving gpx url: %v", ErrCourseUnavailable, err)
	}

	gpxBytes, err := c.fetcher.FetchBytes(url)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading gpx: %v", ErrCourseUnavailable, err)
	}

	crs, err := course.Parse(eventId, eventDetailId, gpxBytes, c.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing gpx: %v", ErrCourseUnavailable, err)
	}
	crs.CreatedAt = time.Now()

	c.mu.Lock()
	c.entries[cacheKey(eventId, eventDetailId)] = cacheEntry{course: crs, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return crs, nil
}
