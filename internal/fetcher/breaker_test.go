package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreakerFetcher(threshold int) (*HTTPFetcher, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	f := NewHTTPFetcher(HTTPOptions{
		MaxRetries:  1,
		RatePerSec:  1000,
		BackoffBase: time.Millisecond,
		Breaker:     BreakerOptions{FailureThreshold: threshold, ResetTimeout: time.Minute},
	})
	f.now = clock.now
	return f, clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var hits atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f, clock := newBreakerFetcher(2)
	ctx := context.Background()

	for range 2 {
		_, err := f.Download(ctx, srv.URL)
		require.Error(t, err)
		assert.False(t, eris.Is(err, ErrHostUnavailable))
	}
	assert.Equal(t, int32(2), hits.Load())

	_, err := f.Download(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrHostUnavailable))
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not send requests")

	host := mustHost(t, srv.URL)
	assert.Equal(t, "open", f.HostStates()[host])

	// Probe after the reset timeout closes the breaker on success.
	healthy.Store(true)
	clock.advance(time.Minute)
	body, err := f.Download(ctx, srv.URL)
	require.NoError(t, err)
	body.Close() //nolint:errcheck
	assert.Equal(t, "closed", f.HostStates()[host])
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f, clock := newBreakerFetcher(1)
	ctx := context.Background()

	_, err := f.Download(ctx, srv.URL)
	require.Error(t, err)

	clock.advance(time.Minute)
	_, err = f.Download(ctx, srv.URL)
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrHostUnavailable), "probe is sent")

	_, err = f.Download(ctx, srv.URL)
	assert.True(t, eris.Is(err, ErrHostUnavailable))
}

func TestBreaker_ClientErrorsKeepHostHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, _ := newBreakerFetcher(1)
	for range 3 {
		_, err := f.Download(context.Background(), srv.URL)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusNotFound, se.Code)
	}
	assert.Equal(t, "closed", f.HostStates()[mustHost(t, srv.URL)])
}

func TestBreaker_Disabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, _ := newBreakerFetcher(-1)
	for range 3 {
		_, err := f.Download(context.Background(), srv.URL)
		require.Error(t, err)
		assert.False(t, eris.Is(err, ErrHostUnavailable))
	}
	assert.Empty(t, f.HostStates())
}

func TestBreaker_AbortedProbeIsRetried(t *testing.T) {
	b := &hostBreaker{host: "h", opts: BreakerOptions{FailureThreshold: 1, ResetTimeout: time.Minute}, now: time.Now}
	b.record(false)
	assert.False(t, b.allow())

	b.openedAt = time.Now().Add(-time.Hour)
	assert.True(t, b.allow())
	assert.False(t, b.allow(), "one probe at a time")

	b.abort()
	assert.True(t, b.allow())
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}
