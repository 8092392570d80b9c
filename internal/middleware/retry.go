// Retry middleware: classifies a Response for retry eligibility and
// schedules request-level, budget-aware retries with exponential backoff.
package middleware

import (
	"context"
	"math"
	"time"

	"github.com/feedsearch/feedsearch/internal/types"
)

const (
	// DefaultMaxRetries is the default retry budget per request.
	DefaultMaxRetries = 3
	backoffBase       = 500 * time.Millisecond
	backoffFactor     = 2.0
	backoffCap        = 8 * time.Second
)

var retriableStatus = map[int]bool{
	502: true,
	503: true,
	504: true,
	429: true,
}

// Requeue is called by the retry middleware to feed a request back to the
// scheduler for another attempt.
type Requeue func(req *types.Request)

// Retry is the retry-classification middleware.
type Retry struct {
	maxRetries int
	deadline   func() time.Time
	requeue    Requeue
}

// NewRetry creates a Retry middleware. deadline reports the remaining
// global crawl deadline; requeue re-enqueues a request for another
// attempt.
func NewRetry(maxRetries int, deadline func() time.Time, requeue Requeue) *Retry {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Retry{maxRetries: maxRetries, deadline: deadline, requeue: requeue}
}

// Backoff computes the exponential backoff delay for the given retry
// count (0-indexed: the delay before the first retry).
func Backoff(retryCount int) time.Duration {
	delay := time.Duration(float64(backoffBase) * math.Pow(backoffFactor, float64(retryCount)))
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}

// Retriable reports whether resp is eligible for retry: transport timeouts,
// connection failures, and the transient HTTP statuses.
func Retriable(resp *types.Response) bool {
	if resp.ErrorType == types.ErrTimeout || resp.ErrorType == types.ErrConnection {
		return true
	}
	return retriableStatus[resp.StatusCode]
}

// AfterResponse implements middleware.AfterResponder. On a retriable
// response within budget, it schedules a requeue (mutating the request's
// retry count and delay) and returns resp unchanged — the scheduler
// decides whether to surface it to the callback or suppress it, based on
// whether a requeue was scheduled.
func (r *Retry) AfterResponse(ctx context.Context, req *types.Request, resp *types.Response) *types.Response {
	if !Retriable(resp) {
		return resp
	}
	if req.RetryCount >= r.maxRetries {
		return resp
	}
	delay := Backoff(req.RetryCount)
	if r.deadline != nil && time.Now().Add(delay).After(r.deadline()) {
		// A retry would exceed the remaining global budget; skip it.
		return resp
	}
	next := *req
	next.RetryCount++
	next.Delay = delay
	if r.requeue != nil {
		r.requeue(&next)
	}
	resp.Retried = true
	return resp
}
