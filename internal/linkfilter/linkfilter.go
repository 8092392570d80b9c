// Package linkfilter decides which hrefs in an HTML document look like
// feeds or feed-bearing pages, and assigns them priorities. Rules apply in
// a fixed order: deny list, same-origin gate, rel=alternate type sniffing,
// path keywords, host crawl.
package linkfilter

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/feedsearch/feedsearch/internal/normalize"
	"github.com/feedsearch/feedsearch/internal/types"
)

// Candidate is a URL proposed by the link filter.
type Candidate struct {
	URL      string
	Priority int
	Callback types.Callback
	Depth    int
}

// Options parameterizes the filter per crawl configuration.
type Options struct {
	CrawlHosts   bool
	TryURLs      []string
	SeedOrigins  map[string]bool
	KnownOrigins map[string]bool // sitemap/hub origins seen so far
	MaxDepth     int
}

var feedTypeAttrs = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/feed+json": true,
}

var pathKeywords = []string{
	"rss", "atom", "feed", "xml", "json",
	"rss.xml", "atom.xml", "feeds/", "-feed", "_feed", "rss.", "feed.", "atom.",
}

var denyPathPrefixes = []string{"/wp-admin", "/wp-login"}
var denySchemes = []string{"mailto:", "javascript:"}
var denyExtensions = map[string]bool{
	".jpg": true, ".png": true, ".gif": true, ".mp4": true,
	".mp3": true, ".pdf": true, ".zip": true,
}
var denyHosts = map[string]bool{
	"twitter.com": true, "x.com": true, "facebook.com": true,
	"instagram.com": true, "linkedin.com": true, "tiktok.com": true,
}

// Extract returns candidate URLs found in doc, fetched from pageURL at the
// given depth.
func Extract(doc *goquery.Document, pageURL string, depth int, opts Options) []Candidate {
	if doc == nil {
		return nil
	}
	pageOrigin, err := normalize.Origin(pageURL)
	if err != nil {
		return nil
	}

	var candidates []Candidate
	childDepth := depth + 1
	if opts.MaxDepth > 0 && childDepth > opts.MaxDepth {
		return nil
	}

	doc.Find("a,link").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if denied(href) {
			return
		}
		abs, err := normalize.URL(href, mustParseBase(pageURL), normalize.Options{})
		if err != nil {
			return
		}
		if deniedAbs(abs) {
			return
		}

		origin, err := normalize.Origin(abs)
		if err != nil {
			return
		}

		linkType, _ := sel.Attr("type")
		rel, _ := sel.Attr("rel")

		// Rule 1: same-origin default. Cross-origin candidates are dropped
		// unless the href host equals a sitemap/hub origin previously seen,
		// before any of the rules below (including rel=alternate) apply.
		sameOrigin := origin == pageOrigin
		known := opts.KnownOrigins != nil && opts.KnownOrigins[origin]
		if !sameOrigin && !known {
			return
		}

		// Rule 2: rel=alternate type attribute.
		if rel == "alternate" && feedTypeAttrs[strings.ToLower(linkType)] {
			candidates = append(candidates, Candidate{
				URL: abs, Priority: types.PrioritySitemapURL, Callback: types.ParseFeed, Depth: childDepth,
			})
			return
		}

		// Rule 3: path keyword heuristics.
		if looksLikeFeed(abs) {
			candidates = append(candidates, Candidate{
				URL: abs, Priority: types.PriorityTryURL, Callback: types.ParseFeed, Depth: childDepth,
			})
			return
		}

		// Rule 5: host crawl of the origin root of a seed.
		if opts.CrawlHosts && opts.SeedOrigins != nil && opts.SeedOrigins[origin] && isOriginRoot(abs, origin) {
			candidates = append(candidates, Candidate{
				URL: abs, Priority: types.PriorityGeneric, Callback: types.ParseSiteMeta, Depth: childDepth,
			})
		}
	})

	return dedupeCandidates(candidates)
}

// TryURLCandidates synthesizes origin+path candidates for each configured
// try_url. Called once per seed origin by the crawl controller, not
// per-document.
func TryURLCandidates(origin string, tryURLs []string) []Candidate {
	out := make([]Candidate, 0, len(tryURLs))
	for _, path := range tryURLs {
		out = append(out, Candidate{
			URL: origin + normalizePath(path), Priority: types.PriorityTryURL, Callback: types.ParseFeed, Depth: 1,
		})
	}
	return out
}

func mustParseBase(pageURL string) *url.URL {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	return u
}

func looksLikeFeed(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, kw := range pathKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func denied(href string) bool {
	h := strings.TrimSpace(href)
	if h == "" || h == "#" || strings.HasPrefix(h, "#") {
		return true
	}
	for _, scheme := range denySchemes {
		if strings.HasPrefix(strings.ToLower(h), scheme) {
			return true
		}
	}
	return false
}

func deniedAbs(abs string) bool {
	lower := strings.ToLower(abs)
	for _, p := range denyPathPrefixes {
		if strings.Contains(lower, p) {
			return true
		}
	}
	if ext := strings.ToLower(filepath.Ext(stripQueryFragment(abs))); denyExtensions[ext] {
		return true
	}
	origin, err := normalize.Origin(abs)
	if err == nil {
		host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		if denyHosts[host] {
			return true
		}
	}
	return false
}

func stripQueryFragment(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

func isOriginRoot(abs, origin string) bool {
	trimmed := strings.TrimSuffix(abs, "/")
	return trimmed == origin || abs == origin+"/"
}

func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func dedupeCandidates(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}
