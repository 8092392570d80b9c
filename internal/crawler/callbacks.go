package crawler

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"

	"github.com/feedsearch/feedsearch/internal/feedvalidate"
	"github.com/feedsearch/feedsearch/internal/linkfilter"
	"github.com/feedsearch/feedsearch/internal/normalize"
	"github.com/feedsearch/feedsearch/internal/sitemeta"
	"github.com/feedsearch/feedsearch/internal/types"
)

// dispatch routes a response to its parser: each Request carries a Callback
// discriminant naming which one to run.
func (s *Scheduler) dispatch(ctx context.Context, req *types.Request, resp *types.Response) {
	s.logger.Debug().
		Str("host", hostOf(req.URL)).
		Str("url", req.URL).
		Int("depth", req.Depth).
		Int("priority", req.Priority).
		Int("callback", int(req.Callback)).
		Msg("dispatching response")
	switch req.Callback {
	case types.ParseRobots:
		s.handleRobots(req, resp)
	case types.ParseSitemap:
		s.handleSitemap(req, resp)
	case types.ParseSiteMeta:
		s.handleSiteMeta(req, resp)
	case types.ParseFavicon:
		s.handleFavicon(req, resp)
	case types.ParseFeed:
		s.handleFeed(req, resp)
	case types.ParseHTML:
		fallthrough
	default:
		s.handleHTML(req, resp)
	}
}

// handleRobots parses robots.txt, releases the per-host readiness gate
// (middleware.Robots), and enqueues any Sitemap: directives.
func (s *Scheduler) handleRobots(req *types.Request, resp *types.Response) {
	host := hostOf(req.URL)
	if !resp.Success() {
		s.robots.ResolveRobots(host, nil)
		return
	}
	data, err := robotstxt.FromBytes([]byte(resp.Text))
	if err != nil {
		s.robots.ResolveRobots(host, nil)
		return
	}
	s.robots.ResolveRobots(host, data)
	for _, sm := range data.Sitemaps {
		s.push(&types.Request{URL: sm, Method: "GET", Callback: types.ParseSitemap, Priority: types.PrioritySitemap, Depth: req.Depth + 1})
	}
}

// handleSitemap classifies the body as a sitemap index or URL set and
// re-enqueues children at the appropriate priority.
func (s *Scheduler) handleSitemap(req *types.Request, resp *types.Response) {
	if !resp.Success() {
		return
	}
	locs, isIndex := parseSitemap([]byte(resp.Text))
	if origin, err := normalize.Origin(req.URL); err == nil {
		s.markKnownOrigin(origin)
	}

	priority := types.PrioritySitemapURL
	callback := types.ParseHTML
	if isIndex {
		priority = types.PrioritySitemap
		callback = types.ParseSitemap
	}
	for _, loc := range locs {
		s.push(&types.Request{URL: loc, Method: "GET", Callback: callback, Priority: priority, Depth: req.Depth + 1})
	}
}

// handleHTML is used for ordinary pages (seeds, host-crawl roots, and
// sitemap-discovered pages). A response may itself already be a feed (a
// seed URL pointing straight at an RSS file); try validation first before
// falling back to link extraction. When the page is an origin root it
// doubles as the site-meta page: a seed of https://example.com/ and the
// synthesized ParseSiteMeta request for origin+"/" share one enqueue
// fingerprint, so only this request survives dedup and it must cover both
// jobs.
func (s *Scheduler) handleHTML(req *types.Request, resp *types.Response) {
	if !resp.Success() {
		return
	}
	if info, ok := feedvalidate.Validate(resp); ok {
		s.recordFeed(info)
		return
	}
	// Two requests can redirect to the same document; key parsing on the
	// final URL so it is link-extracted once.
	if !s.dedup.CheckAndAddParse(resp.FinalURL) {
		return
	}
	doc := parseHTMLDoc(resp.Text)
	if doc == nil {
		return
	}
	s.extractLinks(req, doc)
	if s.opts.CrawlHosts && isOriginRoot(resp.FinalURL) {
		if origin, err := normalize.Origin(resp.FinalURL); err == nil {
			s.applySiteMeta(doc, origin, req.Depth)
		}
	}
}

// handleFeed is used for candidates the link filter already flagged as
// feed-like (rel=alternate, path keywords, try_urls). Unlike handleHTML, a
// failed validation here is a dead end: no link extraction follows.
func (s *Scheduler) handleFeed(req *types.Request, resp *types.Response) {
	if !resp.Success() {
		return
	}
	if info, ok := feedvalidate.Validate(resp); ok {
		s.recordFeed(info)
	}
}

func (s *Scheduler) extractLinks(req *types.Request, doc *goquery.Document) {
	opts := linkfilter.Options{
		CrawlHosts:   s.opts.CrawlHosts,
		TryURLs:      s.opts.TryURLs,
		SeedOrigins:  s.seedOriginsSnapshot(),
		KnownOrigins: s.knownOriginsSnapshot(),
		MaxDepth:     s.opts.MaxDepth,
	}
	candidates := linkfilter.Extract(doc, req.URL, req.Depth, opts)
	for _, c := range candidates {
		s.push(&types.Request{URL: c.URL, Method: "GET", Callback: c.Callback, Priority: c.Priority, Depth: c.Depth})
	}
}

// handleSiteMeta extracts the origin page's title/site name/favicon,
// attaches it to every matching FeedInfo, and schedules one favicon fetch
// per origin.
func (s *Scheduler) handleSiteMeta(req *types.Request, resp *types.Response) {
	if !resp.Success() {
		return
	}
	origin, err := normalize.Origin(req.URL)
	if err != nil {
		return
	}
	s.applySiteMeta(parseHTMLDoc(resp.Text), origin, req.Depth)
}

// applySiteMeta records the extracted site meta against origin and
// schedules its single favicon fetch. Shared by handleSiteMeta and the
// origin-root branch of handleHTML.
func (s *Scheduler) applySiteMeta(doc *goquery.Document, origin string, depth int) {
	meta := sitemeta.Extract(doc, origin)
	s.results.ApplySiteMeta(meta)

	if !s.opts.FaviconDataURI || meta.FaviconURL == "" {
		return
	}
	canonicalFavicon, err := normalize.URL(meta.FaviconURL, nil, normalize.Options{})
	if err != nil {
		return
	}
	if !s.registerFaviconOrigin(canonicalFavicon, origin) {
		return
	}
	s.push(&types.Request{URL: canonicalFavicon, Method: "GET", Callback: types.ParseFavicon, Priority: types.PriorityFavicon, Depth: depth + 1})
}

// handleFavicon synthesizes a data: URI from the downloaded favicon bytes
// and attaches it to every FeedInfo sharing the owning origin.
func (s *Scheduler) handleFavicon(req *types.Request, resp *types.Response) {
	if !resp.Success() {
		return
	}
	origin := s.faviconOriginFor(req.URL)
	if origin == "" {
		return
	}
	uri, ok := sitemeta.DataURI([]byte(resp.Text))
	if !ok {
		return
	}
	s.results.ApplyFaviconDataURI(origin, uri)
}
