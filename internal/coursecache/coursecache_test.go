package coursecache

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racetrack/gpscore/internal/course"
)

type fakeResolver struct {
	url string
	err error
}

func (f *fakeResolver) ResolveGpxUrl(eventId, eventDetailId string) (string, error) {
	return f.url, f.err
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int32
	body  []byte
	err   error
}

func (f *countingFetcher) FetchBytes(url string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func sampleGpx() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><gpx version="1.1"><trk><trkseg>`)
	b.WriteString(`<trkpt lat="0.0" lon="0.0"></trkpt>`)
	b.WriteString(`<trkpt lat="0.01" lon="0.0"></trkpt>`)
	b.WriteString(`</trkseg></trk></gpx>`)
	return []byte(b.String())
}

func TestGetMaterializesOnMiss(t *testing.T) {
	fetcher := &countingFetcher{body: sampleGpx()}
	c := New(&fakeResolver{url: "https://x/course.gpx"}, fetcher, course.Options{IntervalMeters: 1000}, time.Minute)

	crs, err := c.Get("evt", "detail")
	require.NoError(t, err)
	assert.True(t, crs.TotalDistance > 0)
	assert.Equal(t, int32(1), fetcher.calls)
}

func TestGetServesFromCacheWithinTtl(t *testing.T) {
	fetcher := &countingFetcher{body: sampleGpx()}
	c := New(&fakeResolver{url: "https://x/course.gpx"}, fetcher, course.Options{IntervalMeters: 1000}, time.Minute)

	_, err := c.Get("evt", "detail")
	require.NoError(t, err)
	_, err = c.Get("evt", "detail")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetcher.calls, "second Get within TTL should not refetch")
}

func TestGetRefetchesAfterTtlExpiry(t *testing.T) {
	fetcher := &countingFetcher{body: sampleGpx()}
	c := New(&fakeResolver{url: "https://x/course.gpx"}, fetcher, course.Options{IntervalMeters: 1000}, time.Millisecond)

	_, err := c.Get("evt", "detail")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = c.Get("evt", "detail")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls)
}

func TestGetWrapsResolverFailureAsCourseUnavailable(t *testing.T) {
	fetcher := &countingFetcher{body: sampleGpx()}
	c := New(&fakeResolver{err: errors.New("not found")}, fetcher, course.Options{IntervalMeters: 1000}, time.Minute)

	_, err := c.Get("evt", "detail")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCourseUnavailable)
}

func TestGetWrapsFetchFailureAsCourseUnavailable(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("timeout")}
	c := New(&fakeResolver{url: "https://x/course.gpx"}, fetcher, course.Options{IntervalMeters: 1000}, time.Minute)

	_, err := c.Get("evt", "detail")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCourseUnavailable)
}

func TestConcurrentMissesCoalesceIntoOneFetch(t *testing.T) {
	fetcher := &countingFetcher{body: sampleGpx()}
	c := New(&fakeResolver{url: "https://x/course.gpx"}, fetcher, course.Options{IntervalMeters: 1000}, time.Minute)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get("evt", "detail")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, fmt.Sprintf("goroutine %d", i))
	}
	assert.Equal(t, int32(1), fetcher.calls, "concurrent misses on the same key must coalesce")
}

func TestInvalidateForcesRematerialization(t *testing.T) {
	fetcher := &countingFetcher{body: sampleGpx()}
	c := New(&fakeResolver{url: "https://x/course.gpx"}, fetcher, course.Options{IntervalMeters: 1000}, time.Minute)

	_, err := c.Get("evt", "detail")
	require.NoError(t, err)
	c.Invalidate("evt", "detail")
	_, err = c.Get("evt", "detail")
	require.NoError(t, err)

	assert.Equal(t, int32(2), fetcher.calls)
}
