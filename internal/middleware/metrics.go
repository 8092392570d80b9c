// Metrics middleware: increments CrawlStats counters and, when enabled,
// mirrors them into Prometheus collectors.
package middleware

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/feedsearch/feedsearch/internal/types"
)

// Metrics counts requests/responses/bytes and, optionally, exports them as
// prometheus collectors.
type Metrics struct {
	mu    sync.Mutex
	stats *types.CrawlStats

	requestsTotal  prometheus.Counter
	responsesTotal prometheus.Counter
	bytesTotal     prometheus.Counter
	errorsByType   *prometheus.CounterVec
}

// NewMetrics creates a Metrics middleware writing into stats. If registry
// is non-nil, per-crawl prometheus collectors are also registered there,
// reusing the already-registered collector (rather than panicking) when a
// caller shares one long-lived registry across repeated crawls.
func NewMetrics(stats *types.CrawlStats, registry prometheus.Registerer) *Metrics {
	m := &Metrics{stats: stats}
	if stats.ErrorCounts == nil {
		stats.ErrorCounts = make(map[types.ErrorType]int64)
	}
	if registry == nil {
		return m
	}
	m.requestsTotal = getOrCreateCounter(registry, prometheus.CounterOpts{
		Name: "feedsearch_requests_total", Help: "Total requests issued.",
	})
	m.responsesTotal = getOrCreateCounter(registry, prometheus.CounterOpts{
		Name: "feedsearch_responses_total", Help: "Total responses received.",
	})
	m.bytesTotal = getOrCreateCounter(registry, prometheus.CounterOpts{
		Name: "feedsearch_bytes_downloaded_total", Help: "Total response bytes downloaded.",
	})
	m.errorsByType = getOrCreateCounterVec(registry, prometheus.CounterOpts{
		Name: "feedsearch_errors_total", Help: "Errors by classified error_type.",
	}, []string{"error_type"})
	return m
}

func getOrCreateCounter(registry prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := registry.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
	}
	return c
}

func getOrCreateCounterVec(registry prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := registry.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return c
}

// BeforeRequest implements middleware.BeforeRequester.
func (m *Metrics) BeforeRequest(ctx context.Context, req *types.Request) BeforeResult {
	atomic.AddInt64(&m.stats.RequestsIssued, 1)
	if m.requestsTotal != nil {
		m.requestsTotal.Inc()
	}
	return continueWith(req)
}

// AfterResponse implements middleware.AfterResponder.
func (m *Metrics) AfterResponse(ctx context.Context, req *types.Request, resp *types.Response) *types.Response {
	atomic.AddInt64(&m.stats.ResponsesReceived, 1)
	atomic.AddInt64(&m.stats.BytesDownloaded, int64(len(resp.Text)))
	if m.responsesTotal != nil {
		m.responsesTotal.Inc()
		m.bytesTotal.Add(float64(len(resp.Text)))
	}
	if resp.ErrorType != types.ErrNone {
		m.mu.Lock()
		m.stats.ErrorCounts[resp.ErrorType]++
		m.mu.Unlock()
		if m.errorsByType != nil {
			m.errorsByType.WithLabelValues(string(resp.ErrorType)).Inc()
		}
	}
	return resp
}
