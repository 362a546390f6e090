package fetcher

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrHostUnavailable is returned without sending a request while a host's
// breaker is open.
var ErrHostUnavailable = eris.New("fetcher: host unavailable")

// BreakerOptions configures the per-host circuit breaker. A host opens after
// FailureThreshold consecutive downloads exhaust their retries, and one probe
// is let through once ResetTimeout has passed. A negative threshold disables it.
type BreakerOptions struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type hostBreaker struct {
	host string
	opts BreakerOptions
	now  func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

// allow reports whether a request may be sent. An open breaker past its reset
// timeout moves to half-open and admits a single probe.
func (b *hostBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.opts.ResetTimeout {
			return false
		}
		b.transition(breakerHalfOpen)
		return true
	case breakerHalfOpen:
		return false
	default:
		return true
	}
}

// record stores the outcome of a download. Client errors such as 404 count as
// a healthy host.
func (b *hostBreaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.failures = 0
		if b.state != breakerClosed {
			b.transition(breakerClosed)
		}
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.opts.FailureThreshold {
		b.openedAt = b.now()
		if b.state != breakerOpen {
			b.transition(breakerOpen)
		}
	}
}

// abort returns an unfinished half-open probe so the next call probes again.
func (b *hostBreaker) abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = b.now().Add(-b.opts.ResetTimeout)
	}
}

func (b *hostBreaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *hostBreaker) transition(to breakerState) {
	zap.L().Warn("fetcher: host breaker state change",
		zap.String("host", b.host),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
		zap.Int("consecutive_failures", b.failures),
	)
	b.state = to
}

// breakerFor returns the breaker for host, or nil when breakers are disabled.
func (f *HTTPFetcher) breakerFor(host string) *hostBreaker {
	if f.opts.Breaker.FailureThreshold < 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.breakers[host]
	if !ok {
		b = &hostBreaker{host: host, opts: f.opts.Breaker, now: f.now}
		f.breakers[host] = b
	}
	return b
}

// HostStates returns the breaker state of every host contacted so far.
func (f *HTTPFetcher) HostStates() map[string]string {
	f.mu.Lock()
	hosts := make([]*hostBreaker, 0, len(f.breakers))
	for _, b := range f.breakers {
		hosts = append(hosts, b)
	}
	f.mu.Unlock()

	out := make(map[string]string, len(hosts))
	for _, b := range hosts {
		out[b.host] = b.current().String()
	}
	return out
}
