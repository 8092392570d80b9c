// Package throttle enforces a minimum inter-request interval per host,
// one rate.Limiter per host.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle gates requests to a minimum interval per host.
type Throttle struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	defaultWait time.Duration
}

// New creates a Throttle with defaultDelay as the crawl-wide minimum
// interval used when a caller does not override it.
func New(defaultDelay time.Duration) *Throttle {
	return &Throttle{
		limiters:    make(map[string]*rate.Limiter),
		defaultWait: defaultDelay,
	}
}

func (t *Throttle) limiterFor(host string, delay time.Duration) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(limitFor(delay), 1)
		t.limiters[host] = l
	} else if limit := limitFor(delay); l.Limit() != limit {
		// A host's delay can change mid-crawl (a robots.txt crawl-delay
		// arriving after the first request); follow it.
		l.SetLimit(limit)
	}
	return l
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// Acquire blocks the caller for the remaining interval before a request to
// host may begin. delay of zero uses the crawl-wide default.
func (t *Throttle) Acquire(ctx context.Context, host string, delay time.Duration) error {
	if delay <= 0 {
		delay = t.defaultWait
	}
	l := t.limiterFor(host, delay)
	return l.Wait(ctx)
}

// WaitDuration reports how long a caller would presently have to wait for
// host without reserving the slot. Useful for tests and diagnostics.
func (t *Throttle) WaitDuration(host string, delay time.Duration) time.Duration {
	l := t.limiterFor(host, delay)
	r := l.ReserveN(time.Now(), 1)
	defer r.Cancel()
	return r.Delay()
}
