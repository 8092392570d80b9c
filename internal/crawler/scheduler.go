// Package crawler is the scheduler and worker pool: it drains the priority
// queue, runs the before/after middleware pipeline around the downloader,
// dispatches per-callback parsing, and feeds new requests and FeedInfo
// discoveries back into the system.
package crawler

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/feedsearch/feedsearch/internal/dedup"
	"github.com/feedsearch/feedsearch/internal/events"
	"github.com/feedsearch/feedsearch/internal/fetcher"
	"github.com/feedsearch/feedsearch/internal/linkfilter"
	"github.com/feedsearch/feedsearch/internal/middleware"
	"github.com/feedsearch/feedsearch/internal/normalize"
	"github.com/feedsearch/feedsearch/internal/queue"
	"github.com/feedsearch/feedsearch/internal/resultset"
	"github.com/feedsearch/feedsearch/internal/throttle"
	"github.com/feedsearch/feedsearch/internal/types"
)

// maxHTMLParseBytes caps how much of a body the HTML parser sees.
const maxHTMLParseBytes = 512 * 1024

// quiescenceGrace is an extra grace period after the work-tracking
// WaitGroup drains, giving in-flight callback-produced pushes a moment to
// land before the controller declares completion.
const quiescenceGrace = 10 * time.Millisecond

// Options configures a Scheduler, mirroring the public Options surface of
// the root package.
type Options struct {
	Concurrency      int
	TotalTimeout     time.Duration
	RequestTimeout   time.Duration
	UserAgent        string
	MaxContentLength int64
	MaxDepth         int
	Headers          map[string][]string
	FaviconDataURI   bool
	Delay            time.Duration
	RespectRobots    bool
	CrawlHosts       bool
	TryURLs          []string
	IncludeStats     bool
	Logger           *zerolog.Logger

	// Events, if set, receives every validated FeedInfo as soon as it is
	// discovered, letting a caller observe results before Run returns.
	Events events.Producer

	// Registry, if set, receives the crawl's metrics as Prometheus
	// collectors in addition to Stats.
	Registry prometheus.Registerer
}

// Result is the outcome of a single Run.
type Result struct {
	Feeds     []*types.FeedInfo
	RootError *types.RootError
	Stats     *types.CrawlStats
}

// Scheduler owns the queue, throttle, dedup filter, downloader, middleware
// chain and result set for a single crawl.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	runID  uuid.UUID

	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool

	dedup      *dedup.Filter
	throttle   *throttle.Throttle
	downloader *fetcher.Downloader
	robots     *middleware.Robots
	retry      *middleware.Retry
	metrics    *middleware.Metrics
	chain      *middleware.Chain

	results *resultset.Set
	stats   *types.CrawlStats

	wg sync.WaitGroup

	seedMu  sync.Mutex
	seedSet map[string]*seedOutcome // seed canonical URL -> observed outcome (nil until known)
	seeds   []string                // preserves first-seed ordering for root_error

	originMu      sync.Mutex
	seedOrigins   map[string]bool
	knownOrigins  map[string]bool
	robotsHosts   map[string]bool // hosts with a robots.txt fetch scheduled
	faviconDone   map[string]bool
	faviconOrigin map[string]string // canonical favicon URL -> owning origin

	start    time.Time
	deadline time.Time
}

// New builds a Scheduler from Options and a list of seed hosts (host[:port])
// used for the host-match scoring bonus.
func New(opts Options, seedHosts []string) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.TotalTimeout <= 0 {
		opts.TotalTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 3 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Feedsearch Bot"
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = fetcher.DefaultMaxContentLength
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 10
	}

	runID := uuid.New()
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("run_id", runID.String()).Logger()
	} else {
		logger = zerolog.Nop()
	}

	stats := &types.CrawlStats{ErrorCounts: make(map[types.ErrorType]int64)}

	s := &Scheduler{
		opts:          opts,
		logger:        logger,
		runID:         runID,
		q:             queue.New(),
		dedup:         dedup.New(),
		throttle:      throttle.New(opts.Delay),
		results:       resultset.New(seedHosts),
		stats:         stats,
		seedSet:       make(map[string]*seedOutcome),
		seedOrigins:   make(map[string]bool),
		knownOrigins:  make(map[string]bool),
		robotsHosts:   make(map[string]bool),
		faviconDone:   make(map[string]bool),
		faviconOrigin: make(map[string]string),
	}
	s.cond = sync.NewCond(&s.mu)

	headers := make(map[string][]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}
	s.downloader = fetcher.New(opts.UserAgent, opts.RequestTimeout,
		fetcher.WithMaxContentLength(opts.MaxContentLength),
		fetcher.WithHeaders(headers),
		fetcher.WithLogger(logger),
	)

	s.robots = middleware.NewRobots(opts.UserAgent, opts.RespectRobots)
	s.retry = middleware.NewRetry(middleware.DefaultMaxRetries, func() time.Time { return s.deadline }, s.requeue)
	s.metrics = middleware.NewMetrics(stats, opts.Registry)
	contentType := middleware.NewContentType(
		"text/html", "application/xhtml+xml", "text/xml", "application/xml",
		"application/rss+xml", "application/atom+xml", "application/json",
		"application/feed+json", "text/plain",
		"image/x-icon", "image/vnd.microsoft.icon", "image/png", "image/svg+xml", "image/gif", "image/jpeg",
	)
	// Registration order: robots, retry, content-type, metrics.
	// Post-response hooks run in the reverse of this order.
	s.chain = middleware.NewChain(s.robots, s.retry, contentType, s.metrics)

	return s
}

// Run seeds the queue with seeds (plus synthesized robots.txt, sitemap.xml
// and try_urls per origin), runs the worker pool to quiescence or
// deadline, and returns the accumulated result.
func (s *Scheduler) Run(ctx context.Context, seeds []string) *Result {
	s.start = time.Now()
	s.deadline = s.start.Add(s.opts.TotalTimeout)
	ctx, cancel := context.WithDeadline(ctx, s.deadline)
	defer cancel()

	s.seedAll(ctx, seeds)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	var workers sync.WaitGroup
	for i := 0; i < s.opts.Concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			s.workerLoop(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		time.Sleep(quiescenceGrace)
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Int("feeds", s.results.Len()).Msg("crawl reached quiescence")
	case <-ctx.Done():
		s.logger.Info().Int("feeds", s.results.Len()).Msg("crawl hit deadline")
	}

	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	workers.Wait()

	s.stats.Duration = time.Since(s.start)

	return &Result{
		Feeds:     s.results.Results(),
		RootError: s.classifyRootError(),
		Stats:     s.stats,
	}
}

// seedAll normalizes and enqueues seed URLs plus their synthesized
// sitemap.xml / try_url requests (push schedules each host's robots.txt),
// fanning the per-origin setup out across goroutines
// (golang.org/x/sync/errgroup), since each seed's origin parsing and
// initial enqueue is independent of the others.
func (s *Scheduler) seedAll(ctx context.Context, seeds []string) {
	g, _ := errgroup.WithContext(ctx)

	for _, raw := range seeds {
		raw := raw
		g.Go(func() error {
			canonical, err := normalize.URL(raw, nil, normalize.Options{})
			if err != nil {
				s.recordSeedResult(raw, types.ErrInvalidURL, 0)
				return nil
			}

			s.seedMu.Lock()
			s.seeds = append(s.seeds, canonical)
			s.seedMu.Unlock()

			origin, err := normalize.Origin(canonical)
			if err != nil {
				s.recordSeedResult(canonical, types.ErrInvalidURL, 0)
				return nil
			}
			s.markSeedOrigin(origin)

			s.push(&types.Request{URL: canonical, Method: "GET", Callback: types.ParseHTML, Priority: types.PriorityGeneric, Depth: 0})

			s.push(&types.Request{URL: origin + "/sitemap.xml", Method: "GET", Callback: types.ParseSitemap, Priority: types.PrioritySitemap, Depth: 0})

			if s.opts.CrawlHosts {
				s.push(&types.Request{URL: origin + "/", Method: "GET", Callback: types.ParseSiteMeta, Priority: types.PriorityGeneric, Depth: 0})
			}

			for _, c := range linkfilter.TryURLCandidates(origin, s.opts.TryURLs) {
				s.push(&types.Request{URL: c.URL, Method: "GET", Callback: c.Callback, Priority: c.Priority, Depth: c.Depth})
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (s *Scheduler) markSeedOrigin(origin string) {
	s.originMu.Lock()
	s.seedOrigins[origin] = true
	s.originMu.Unlock()
}

func (s *Scheduler) markKnownOrigin(origin string) {
	s.originMu.Lock()
	s.knownOrigins[origin] = true
	s.originMu.Unlock()
}

func (s *Scheduler) seedOriginsSnapshot() map[string]bool {
	s.originMu.Lock()
	defer s.originMu.Unlock()
	out := make(map[string]bool, len(s.seedOrigins))
	for k, v := range s.seedOrigins {
		out[k] = v
	}
	return out
}

func (s *Scheduler) knownOriginsSnapshot() map[string]bool {
	s.originMu.Lock()
	defer s.originMu.Unlock()
	out := make(map[string]bool, len(s.knownOrigins))
	for k, v := range s.knownOrigins {
		out[k] = v
	}
	return out
}

// registerFaviconOrigin records which origin owns a favicon URL so
// handleFavicon can attribute the downloaded bytes once the response
// arrives, and reports whether a favicon fetch for origin was already
// scheduled (at most one per origin).
func (s *Scheduler) registerFaviconOrigin(canonicalFaviconURL, origin string) bool {
	s.originMu.Lock()
	defer s.originMu.Unlock()
	if s.faviconDone[origin] {
		return false
	}
	s.faviconDone[origin] = true
	s.faviconOrigin[canonicalFaviconURL] = origin
	return true
}

func (s *Scheduler) faviconOriginFor(canonicalFaviconURL string) string {
	s.originMu.Lock()
	defer s.originMu.Unlock()
	return s.faviconOrigin[canonicalFaviconURL]
}

// push normalizes, depth-checks, and dedup-filters req before handing it to
// the queue. A duplicate or depth-overflowing request is dropped here, not
// at pop time.
func (s *Scheduler) push(req *types.Request) {
	canonical, err := normalize.URL(req.URL, nil, normalize.Options{})
	if err != nil {
		return
	}
	if s.opts.MaxDepth > 0 && req.Depth > s.opts.MaxDepth {
		return
	}
	fingerprint, err := normalize.URL(canonical, nil, normalize.Options{StripQuery: true})
	if err != nil {
		fingerprint = canonical
	}
	if req.RetryCount == 0 && !s.dedup.CheckAndAddEnqueue(fingerprint) {
		return
	}
	req.URL = canonical

	if req.Callback != types.ParseRobots {
		s.ensureRobots(canonical)
	}

	s.wg.Add(1)
	s.mu.Lock()
	s.q.Push(req)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// ensureRobots schedules a robots.txt fetch and registers the readiness
// gate the first time a host appears, so hosts discovered mid-crawl (a
// cross-origin Sitemap: directive, a known-origin link) are gated the same
// way seed hosts are.
func (s *Scheduler) ensureRobots(rawURL string) {
	origin, err := normalize.Origin(rawURL)
	if err != nil {
		return
	}
	host := hostOf(origin)
	if host == "" {
		return
	}

	s.originMu.Lock()
	seen := s.robotsHosts[host]
	s.robotsHosts[host] = true
	s.originMu.Unlock()
	if seen {
		return
	}

	s.robots.RegisterHost(host)
	s.push(&types.Request{URL: origin + "/robots.txt", Method: "GET", Callback: types.ParseRobots, Priority: types.PriorityRobots, Depth: 0})
}

// requeue feeds a retry-produced request back to the queue, bypassing the
// dedup check since it reuses an already-seen Request identity.
func (s *Scheduler) requeue(req *types.Request) {
	s.logger.Debug().
		Str("host", hostOf(req.URL)).
		Str("url", req.URL).
		Int("depth", req.Depth).
		Int("priority", req.Priority).
		Int("retry_count", req.RetryCount).
		Dur("delay", req.Delay).
		Msg("request scheduled for retry")
	s.wg.Add(1)
	go func() {
		if req.Delay > 0 {
			time.Sleep(req.Delay)
		}
		s.mu.Lock()
		s.q.Push(req)
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
}

func (s *Scheduler) popBlocking(ctx context.Context) *types.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.q.Len() == 0 && !s.closed {
		if ctx.Err() != nil {
			return nil
		}
		s.cond.Wait()
	}
	if s.q.Len() == 0 {
		return nil
	}
	item := s.q.Pop()
	return item.(*types.Request)
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		req := s.popBlocking(ctx)
		if req == nil {
			return
		}
		s.process(ctx, req)
		s.wg.Done()
	}
}

func (s *Scheduler) process(ctx context.Context, req *types.Request) {
	host := hostOf(req.URL)

	delay := s.opts.Delay
	if robotsDelay := s.robots.CrawlDelay(host); robotsDelay > delay {
		delay = robotsDelay
	}
	if err := s.throttle.Acquire(ctx, host, delay); err != nil {
		return
	}

	before := s.chain.RunBefore(ctx, req)
	switch before.Decision {
	case middleware.Drop:
		s.logger.Debug().
			Str("host", host).
			Str("url", req.URL).
			Int("depth", req.Depth).
			Int("priority", req.Priority).
			Msg("request dropped before fetch")
		return
	case middleware.ShortCircuit:
		s.handleResponse(ctx, before.Request, before.Response)
		return
	}
	req = before.Request

	resp := s.downloader.Fetch(ctx, req)
	resp = s.chain.RunAfter(ctx, req, resp)
	s.handleResponse(ctx, req, resp)
}

func (s *Scheduler) handleResponse(ctx context.Context, req *types.Request, resp *types.Response) {
	s.recordSeedResultIfRoot(req, resp)
	if resp.Retried {
		return
	}
	s.dispatch(ctx, req, resp)
}

func (s *Scheduler) recordSeedResultIfRoot(req *types.Request, resp *types.Response) {
	if req.Depth != 0 || req.Callback != types.ParseHTML {
		return
	}
	s.seedMu.Lock()
	isSeed := false
	for _, seed := range s.seeds {
		if seed == req.URL {
			isSeed = true
			break
		}
	}
	s.seedMu.Unlock()
	if !isSeed {
		return
	}
	errType := resp.ErrorType
	if resp.Success() {
		errType = types.ErrNone
	}
	status := 0
	if errType == types.ErrHTTP {
		status = resp.StatusCode
	}
	s.recordSeedResult(req.URL, errType, status)
}

// seedOutcome is the observed result of fetching one seed URL.
type seedOutcome struct {
	errType    types.ErrorType
	statusCode int
}

func (s *Scheduler) recordSeedResult(url string, errType types.ErrorType, statusCode int) {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	if _, ok := s.seedSet[url]; !ok {
		found := false
		for _, seed := range s.seeds {
			if seed == url {
				found = true
				break
			}
		}
		if !found {
			s.seeds = append(s.seeds, url)
		}
	}
	s.seedSet[url] = &seedOutcome{errType: errType, statusCode: statusCode}
}

// classifyRootError returns the classified failure for the first seed iff
// every seed failed at the transport layer (DNS, TLS, connection, timeout,
// or an unparseable URL). A seed that got an HTTP response back, even an
// error status, reached its server, so the crawl as a whole is not treated
// as a root failure.
func (s *Scheduler) classifyRootError() *types.RootError {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	if len(s.seeds) == 0 {
		return nil
	}
	for _, seed := range s.seeds {
		result := s.seedSet[seed]
		if result == nil || !isTransportFailure(result.errType) {
			return nil
		}
	}
	first := s.seeds[0]
	outcome := s.seedSet[first]
	return &types.RootError{URL: first, ErrorType: outcome.errType, StatusCode: outcome.statusCode}
}

func isTransportFailure(e types.ErrorType) bool {
	switch e {
	case types.ErrDNSFailure, types.ErrSSL, types.ErrConnection, types.ErrTimeout, types.ErrInvalidURL:
		return true
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// isOriginRoot reports whether rawURL points at the bare root of its
// origin (no path beyond "/", no query).
func isOriginRoot(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

func (s *Scheduler) recordFeed(info *types.FeedInfo) {
	if info == nil {
		return
	}
	if added := s.results.Add(info); added && s.opts.Events != nil {
		// Produce on an unbuffered ChannelBus blocks until a consumer
		// receives; run it off the worker goroutine so a slow or absent
		// consumer never stalls the crawl itself.
		go func() { _ = s.opts.Events.Produce(info) }()
	}
}

func parseHTMLDoc(body string) *goquery.Document {
	limited := body
	if len(limited) > maxHTMLParseBytes {
		limited = limited[:maxHTMLParseBytes]
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(limited))
	if err != nil {
		return nil
	}
	return doc
}
