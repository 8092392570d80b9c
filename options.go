package feedsearch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/feedsearch/feedsearch/internal/env"
)

// Defaults for Options.
const (
	defaultConcurrency      = 10
	defaultTotalTimeout     = 10 * time.Second
	defaultRequestTimeout   = 3 * time.Second
	defaultUserAgent        = "Feedsearch Bot"
	defaultMaxContentLength = 10 * 1024 * 1024
	defaultMaxDepth         = 10
)

// Options configures a Search/SearchWithInfo call. The zero value is not
// directly usable; build one with NewOptions, which fills in every default.
type Options struct {
	// CrawlHosts also fetches the origin of each seed for site metadata and
	// host-rooted link discovery (default true).
	CrawlHosts bool
	// TryURLs seeds common feed paths per origin, e.g. "/feed", "/rss.xml".
	TryURLs []string
	// Concurrency is the worker pool size (default 10).
	Concurrency int
	// TotalTimeout is the global crawl deadline (default 10s).
	TotalTimeout time.Duration
	// RequestTimeout is the per-request deadline (default 3s).
	RequestTimeout time.Duration
	// UserAgent is the default User-Agent header (default "Feedsearch Bot").
	UserAgent string
	// MaxContentLength caps a single response body (default 10 MiB).
	MaxContentLength int64
	// MaxDepth caps link-following depth (default 10).
	MaxDepth int
	// Headers are extra request headers merged into every fetch.
	Headers map[string][]string
	// FaviconDataURI inlines discovered favicons as data: URIs (default
	// true).
	FaviconDataURI bool
	// Delay is the minimum per-host interval between requests (default 0).
	Delay time.Duration
	// RespectRobots honors robots.txt disallow directives (default true).
	RespectRobots bool
	// IncludeStats populates Stats in the Info returned by SearchWithInfo.
	IncludeStats bool
	// Events, if set, receives every discovered FeedInfo as soon as the
	// crawl validates it.
	Events Producer
	// Logger receives structured crawl events; nil disables logging.
	Logger *Logger
	// Registry, if set, receives the crawl's request/response/error
	// counters as Prometheus collectors in addition to Stats.
	Registry prometheus.Registerer
}

// NewOptions returns an Options populated with every default.
func NewOptions() Options {
	return Options{
		CrawlHosts:       true,
		Concurrency:      defaultConcurrency,
		TotalTimeout:     defaultTotalTimeout,
		RequestTimeout:   defaultRequestTimeout,
		UserAgent:        defaultUserAgent,
		MaxContentLength: defaultMaxContentLength,
		MaxDepth:         defaultMaxDepth,
		FaviconDataURI:   true,
		RespectRobots:    true,
	}
}

// NewOptionsFromEnv builds Options from defaults overridden by environment
// variables, useful for the CLI and for container deployments that configure
// by env rather than flags.
func NewOptionsFromEnv() Options {
	opts := NewOptions()
	opts.CrawlHosts = env.GetEnvAsBool("FEEDSEARCH_CRAWL_HOSTS", opts.CrawlHosts)
	opts.Concurrency = env.GetEnvAsInt("FEEDSEARCH_CONCURRENCY", opts.Concurrency)
	opts.TotalTimeout = env.GetEnvAsDuration("FEEDSEARCH_TOTAL_TIMEOUT", opts.TotalTimeout)
	opts.RequestTimeout = env.GetEnvAsDuration("FEEDSEARCH_REQUEST_TIMEOUT", opts.RequestTimeout)
	opts.UserAgent = env.GetEnv("FEEDSEARCH_USER_AGENT", opts.UserAgent)
	opts.MaxDepth = env.GetEnvAsInt("FEEDSEARCH_MAX_DEPTH", opts.MaxDepth)
	opts.FaviconDataURI = env.GetEnvAsBool("FEEDSEARCH_FAVICON_DATA_URI", opts.FaviconDataURI)
	opts.Delay = env.GetEnvAsDuration("FEEDSEARCH_DELAY", opts.Delay)
	opts.RespectRobots = env.GetEnvAsBool("FEEDSEARCH_RESPECT_ROBOTS", opts.RespectRobots)
	opts.IncludeStats = env.GetEnvAsBool("FEEDSEARCH_INCLUDE_STATS", opts.IncludeStats)
	return opts
}

// DefaultTryURLs is a reasonable starting point for Options.TryURLs: common
// feed paths worth probing per origin when a site's HTML offers no
// discoverable <link rel="alternate"> tags.
var DefaultTryURLs = []string{
	"/feed", "/feed.xml", "/rss", "/rss.xml", "/atom.xml", "/index.xml", "/feeds/posts/default",
}
