package types

import (
	"net/http"
	"time"
)

// Callback identifies which parser a worker should run on a Response.
type Callback int

const (
	// ParseHTML extracts candidate feed/page links from an HTML document.
	ParseHTML Callback = iota
	// ParseFeed validates a response body as an RSS/Atom/JSON feed.
	ParseFeed
	// ParseRobots parses a robots.txt document.
	ParseRobots
	// ParseSitemap parses a sitemap or sitemap-index document.
	ParseSitemap
	// ParseSiteMeta extracts title/site name/favicon from an origin page.
	ParseSiteMeta
	// ParseFavicon treats the response body as raw favicon image bytes.
	ParseFavicon
)

// ErrorType classifies a Response or root-crawl failure.
type ErrorType string

const (
	ErrNone       ErrorType = "none"
	ErrDNSFailure ErrorType = "dns_failure"
	ErrSSL        ErrorType = "ssl_error"
	ErrConnection ErrorType = "connection_error"
	ErrHTTP       ErrorType = "http_error"
	ErrTimeout    ErrorType = "timeout"
	ErrInvalidURL ErrorType = "invalid_url"
	ErrOther      ErrorType = "other"
)

// Priority constants, lower sorts earlier.
const (
	PriorityRobots     = 1
	PrioritySitemap    = 5
	PrioritySitemapURL = 10
	PriorityTryURL     = 20
	PriorityFavicon    = 50
	PriorityGeneric    = 100
)

// Request is a single unit of crawl work.
type Request struct {
	URL          string
	Method       string
	Callback     Callback
	Priority     int
	Depth        int
	RetryCount   int
	Delay        time.Duration
	Headers      http.Header
	MaxBodyBytes int64

	// seq is assigned by the queue to break priority ties FIFO; callers
	// never set it.
	seq uint64
}

// Response is produced by the downloader for a single Request.
type Response struct {
	Request    *Request
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Text       string
	JSON       map[string]any
	History    []string
	ErrorType  ErrorType
	Elapsed    time.Duration

	// Retried is set by the retry middleware when it has scheduled a
	// requeue for this response's request; the scheduler uses it to
	// suppress dispatching the callback on a response that will be
	// retried.
	Retried bool
}

// QueuePriority implements internal/queue.Item.
func (r *Request) QueuePriority() int { return r.Priority }

// QueueSeq implements internal/queue.Item.
func (r *Request) QueueSeq() uint64 { return r.seq }

// SetQueueSeq implements internal/queue.Item.
func (r *Request) SetQueueSeq(seq uint64) { r.seq = seq }

// Success reports whether the response represents a usable HTTP result.
func (r *Response) Success() bool {
	return r.ErrorType == ErrNone && r.StatusCode >= 200 && r.StatusCode < 400
}

// FeedInfo is a discovered, validated feed.
type FeedInfo struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Version        string    `json:"version"`
	Format         string    `json:"format"` // rss | atom | json
	Hubs           []string  `json:"hubs,omitempty"`
	SelfURL        string    `json:"self_url,omitempty"`
	SiteURL        string    `json:"site_url,omitempty"`
	SiteName       string    `json:"site_name,omitempty"`
	FaviconURL     string    `json:"favicon_url,omitempty"`
	FaviconDataURI string    `json:"favicon_data_uri,omitempty"`
	ContentType    string    `json:"content_type,omitempty"`
	ContentLength  int64     `json:"content_length,omitempty"`
	LastUpdated    time.Time `json:"last_updated,omitempty"`
	ItemCount      int       `json:"item_count"`
	Velocity       float64   `json:"velocity"`
	Podcast        bool      `json:"podcast"`
	Bozo           bool      `json:"bozo"`
	Score          int       `json:"score"`
}

// Equal reports FeedInfo identity: equality is by canonical URL.
func (f *FeedInfo) Equal(other *FeedInfo) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.URL == other.URL
}

// SiteMeta is per-origin metadata cached once per crawl.
type SiteMeta struct {
	Origin     string
	SiteName   string
	Title      string
	FaviconURL string
}

// CrawlStats holds crawl-wide counters.
type CrawlStats struct {
	RequestsIssued    int64
	ResponsesReceived int64
	BytesDownloaded   int64
	Duration          time.Duration
	ErrorCounts       map[ErrorType]int64
}

// RootError describes a classified root-seed failure.
type RootError struct {
	URL        string    `json:"url"`
	ErrorType  ErrorType `json:"error_type"`
	StatusCode int       `json:"status_code,omitempty"`
}
