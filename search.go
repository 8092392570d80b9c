// Package feedsearch discovers RSS, Atom and JSON feeds by crawling one or
// more seed URLs: it follows links, sitemaps and robots.txt, validates feed
// candidates, and scores the results. Search and SearchWithInfo are the
// library's two public entry points: each is a pure function of
// (urls, options) rather than a long-lived crawler object.
package feedsearch

import (
	"context"

	"github.com/feedsearch/feedsearch/internal/crawler"
	"github.com/feedsearch/feedsearch/internal/normalize"
)

// Info is the result of SearchWithInfo: the discovered feeds, a classified
// root failure (nil unless every seed failed at the transport layer), and
// optional crawl-wide stats.
type Info struct {
	Feeds     []*FeedInfo
	RootError *RootError
	Stats     *CrawlStats
}

// Search crawls urls and returns every discovered feed, sorted by score
// descending. On root failure (every seed unreachable) it returns an empty
// slice; use SearchWithInfo to learn why.
func Search(ctx context.Context, urls []string, opts Options) []*FeedInfo {
	info := SearchWithInfo(ctx, urls, opts)
	if info.RootError != nil {
		return []*FeedInfo{}
	}
	return info.Feeds
}

// SearchWithInfo crawls urls and returns the full result: feeds, a
// classified root_error when every seed failed, and stats when
// opts.IncludeStats is set.
func SearchWithInfo(ctx context.Context, urls []string, opts Options) Info {
	seedHosts := make([]string, 0, len(urls))
	for _, u := range urls {
		canonical, err := normalize.URL(u, nil, normalize.Options{})
		if err != nil {
			continue
		}
		if origin, err := normalize.Origin(canonical); err == nil {
			seedHosts = append(seedHosts, hostOfOrigin(origin))
		}
	}

	sched := crawler.New(crawler.Options{
		Concurrency:      opts.Concurrency,
		TotalTimeout:     opts.TotalTimeout,
		RequestTimeout:   opts.RequestTimeout,
		UserAgent:        opts.UserAgent,
		MaxContentLength: opts.MaxContentLength,
		MaxDepth:         opts.MaxDepth,
		Headers:          opts.Headers,
		FaviconDataURI:   opts.FaviconDataURI,
		Delay:            opts.Delay,
		RespectRobots:    opts.RespectRobots,
		CrawlHosts:       opts.CrawlHosts,
		TryURLs:          opts.TryURLs,
		IncludeStats:     opts.IncludeStats,
		Logger:           opts.Logger,
		Events:           opts.Events,
		Registry:         opts.Registry,
	}, seedHosts)

	result := sched.Run(ctx, urls)

	info := Info{Feeds: result.Feeds, RootError: result.RootError}
	if opts.IncludeStats {
		info.Stats = result.Stats
	}
	return info
}

func hostOfOrigin(origin string) string {
	// origin is always a scheme://host[:port] string produced by
	// normalize.Origin; strip the scheme to get the bare host used for the
	// scoring bonus in internal/resultset.
	for i := 0; i+2 < len(origin); i++ {
		if origin[i] == ':' && origin[i+1] == '/' && origin[i+2] == '/' {
			return origin[i+3:]
		}
	}
	return origin
}
