// Robots middleware: per-host robots.txt cache and disallow enforcement.
// Sitemap directives are extracted by the caller from the parsed RobotsData
// via Sitemaps().
package middleware

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/feedsearch/feedsearch/internal/types"
)

// robotsReadinessTimeout caps how long a non-robots request waits for the
// host's robots.txt result before proceeding anyway.
const robotsReadinessTimeout = 5 * time.Second

// Robots is the robots.txt middleware.
type Robots struct {
	mu            sync.Mutex
	ready         map[string]chan struct{}
	data          map[string]*robotstxt.RobotsData
	userAgent     string
	respectRobots bool
}

// NewRobots creates a Robots middleware.
func NewRobots(userAgent string, respectRobots bool) *Robots {
	return &Robots{
		ready:         make(map[string]chan struct{}),
		data:          make(map[string]*robotstxt.RobotsData),
		userAgent:     userAgent,
		respectRobots: respectRobots,
	}
}

// RegisterHost marks host as having a robots.txt fetch in flight, creating
// its readiness gate. Call this when the robots.txt Request for host is
// enqueued so other requests to host know to wait.
func (r *Robots) RegisterHost(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ready[host]; !ok {
		r.ready[host] = make(chan struct{})
	}
}

// ResolveRobots records the parsed robots.txt (nil on fetch failure or
// invalid content) for host and releases any requests waiting on it. It is
// called by the scheduler's ParseRobots callback.
func (r *Robots) ResolveRobots(host string, data *robotstxt.RobotsData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[host] = data
	ch, ok := r.ready[host]
	if !ok {
		ch = make(chan struct{})
		r.ready[host] = ch
	}
	select {
	case <-ch:
		// already closed
	default:
		close(ch)
	}
}

// BeforeRequest implements middleware.BeforeRequester.
func (r *Robots) BeforeRequest(ctx context.Context, req *types.Request) BeforeResult {
	if req.Callback == types.ParseRobots || req.Priority == types.PrioritySitemap {
		return continueWith(req)
	}
	if !r.respectRobots {
		return continueWith(req)
	}

	host := hostOf(req.URL)
	r.mu.Lock()
	ch, ok := r.ready[host]
	r.mu.Unlock()
	if ok {
		select {
		case <-ch:
		case <-time.After(robotsReadinessTimeout):
		case <-ctx.Done():
			return BeforeResult{Request: req, Decision: Drop}
		}
	}

	if !r.allowed(host, req.URL) {
		return BeforeResult{Request: req, Decision: Drop}
	}
	return continueWith(req)
}

func (r *Robots) allowed(host, rawURL string) bool {
	r.mu.Lock()
	data := r.data[host]
	r.mu.Unlock()
	if data == nil {
		return true
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.RequestURI()
	return group.Test(path)
}

// CrawlDelay reports the robots.txt crawl-delay directive for host, or zero
// if none is known.
func (r *Robots) CrawlDelay(host string) time.Duration {
	r.mu.Lock()
	data := r.data[host]
	r.mu.Unlock()
	if data == nil {
		return 0
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// Sitemaps returns the Sitemap: directives declared in host's robots.txt.
func (r *Robots) Sitemaps(host string) []string {
	r.mu.Lock()
	data := r.data[host]
	r.mu.Unlock()
	if data == nil {
		return nil
	}
	return data.Sitemaps
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
