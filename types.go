package feedsearch

import (
	"github.com/rs/zerolog"

	"github.com/feedsearch/feedsearch/internal/events"
	"github.com/feedsearch/feedsearch/internal/types"
)

// The public data model re-exports internal/types so that every internal
// package (fetcher, middleware, crawler, linkfilter, feedvalidate, ...)
// shares one vocabulary without creating an import cycle back through the
// root package.

type (
	Request    = types.Request
	Response   = types.Response
	FeedInfo   = types.FeedInfo
	SiteMeta   = types.SiteMeta
	CrawlStats = types.CrawlStats
	RootError  = types.RootError
	ErrorType  = types.ErrorType
	Callback   = types.Callback
	// Producer is the discovery-event sink accepted by Options.Events.
	Producer = events.Producer
	// Logger is the structured logger accepted by Options.Logger.
	Logger = zerolog.Logger
)

// NewChannelEventBus returns a Bus suitable for Options.Events, letting a
// caller observe FeedInfo discoveries as a crawl progresses rather than only
// once Search/SearchWithInfo returns.
func NewChannelEventBus() *events.ChannelBus { return events.NewChannelBus() }

const (
	ErrNone       = types.ErrNone
	ErrDNSFailure = types.ErrDNSFailure
	ErrSSL        = types.ErrSSL
	ErrConnection = types.ErrConnection
	ErrHTTP       = types.ErrHTTP
	ErrTimeout    = types.ErrTimeout
	ErrInvalidURL = types.ErrInvalidURL
	ErrOther      = types.ErrOther
)

const (
	ParseHTML     = types.ParseHTML
	ParseFeed     = types.ParseFeed
	ParseRobots   = types.ParseRobots
	ParseSitemap  = types.ParseSitemap
	ParseSiteMeta = types.ParseSiteMeta
	ParseFavicon  = types.ParseFavicon
)

const (
	PriorityRobots     = types.PriorityRobots
	PrioritySitemap    = types.PrioritySitemap
	PrioritySitemapURL = types.PrioritySitemapURL
	PriorityTryURL     = types.PriorityTryURL
	PriorityFavicon    = types.PriorityFavicon
	PriorityGeneric    = types.PriorityGeneric
)
