package feedsearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// textHandler serves body with the given declared content type.
func textHandler(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}
}

// rssFeed builds a minimal, valid RSS 2.0 document with itemCount items
// dated on consecutive recent days, for scoring and velocity bonuses.
func rssFeed(title string, itemCount int) string {
	var items strings.Builder
	for i := 0; i < itemCount; i++ {
		pub := time.Now().Add(-time.Duration(i+1) * 24 * time.Hour).Format(time.RFC1123Z)
		fmt.Fprintf(&items, `<item><title>Item %d</title><link>https://example.com/posts/%d</link><pubDate>%s</pubDate></item>`, i, i, pub)
	}
	return fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title><description>An example feed</description><link>https://example.com/</link>%s</channel></rss>`, title, items.String())
}

// searchTestOptions returns Options tuned for fast, deterministic httptest
// fixtures: short timeouts and no extra host-crawl/favicon requests beyond
// what each scenario sets up handlers for.
func searchTestOptions() Options {
	opts := NewOptions()
	opts.TotalTimeout = 3 * time.Second
	opts.RequestTimeout = 1 * time.Second
	opts.CrawlHosts = false
	opts.FaviconDataURI = false
	return opts
}

// 1. Direct feed: seed is itself a valid feed.
func TestSearchDirectFeed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", textHandler("application/rss+xml", rssFeed("Example Blog", 5)))
	server := httptest.NewServer(mux)
	defer server.Close()

	info := SearchWithInfo(context.Background(), []string{server.URL + "/feed.xml"}, searchTestOptions())

	require.Nil(t, info.RootError)
	require.Len(t, info.Feeds, 1)
	feed := info.Feeds[0]
	require.Equal(t, server.URL+"/feed.xml", feed.URL)
	require.Equal(t, "rss20", feed.Version)
	require.Equal(t, 5, feed.ItemCount)
	require.Equal(t, "https://example.com/", feed.SiteURL)
	require.GreaterOrEqual(t, feed.Score, 15)
}

// 2. HTML page carrying a rel=alternate link to an Atom feed.
func TestSearchHTMLWithAlternateLink(t *testing.T) {
	mux := http.NewServeMux()
	html := `<html><head><link rel="alternate" type="application/atom+xml" href="/feed.atom"></head><body></body></html>`
	mux.HandleFunc("/", textHandler("text/html", html))

	now := time.Now().Format(time.RFC3339)
	atom := `<?xml version="1.0" encoding="utf-8"?><feed xmlns="http://www.w3.org/2005/Atom">` +
		`<title>Example Atom</title><link href="https://example.com/"/><id>urn:uuid:1</id>` +
		`<updated>` + now + `</updated>` +
		`<entry><title>Entry</title><id>urn:uuid:2</id><updated>` + now + `</updated></entry>` +
		`</feed>`
	mux.HandleFunc("/feed.atom", textHandler("application/atom+xml", atom))
	server := httptest.NewServer(mux)
	defer server.Close()

	info := SearchWithInfo(context.Background(), []string{server.URL + "/"}, searchTestOptions())

	require.Nil(t, info.RootError)
	require.Len(t, info.Feeds, 1)
	feed := info.Feeds[0]
	require.Equal(t, server.URL+"/feed.atom", feed.URL)
	require.True(t, strings.HasPrefix(feed.Version, "atom"), "version %q should start with atom", feed.Version)
}

// 3. Two feed candidates, one of which isn't actually a feed.
func TestSearchTwoCandidatesOneInvalid(t *testing.T) {
	mux := http.NewServeMux()
	html := `<html><body><a href="/rss">rss</a><a href="/notafeed.xml">not a feed</a></body></html>`
	mux.HandleFunc("/", textHandler("text/html", html))
	mux.HandleFunc("/rss", textHandler("application/rss+xml", rssFeed("Valid Feed", 1)))
	mux.HandleFunc("/notafeed.xml", textHandler("text/html", "<html><body>not a feed</body></html>"))
	server := httptest.NewServer(mux)
	defer server.Close()

	info := SearchWithInfo(context.Background(), []string{server.URL + "/"}, searchTestOptions())

	require.Nil(t, info.RootError)
	require.Len(t, info.Feeds, 1)
	require.Equal(t, server.URL+"/rss", info.Feeds[0].URL)
}

// 4. try_urls seeds common feed paths per origin even with no discoverable
// links on the seed page itself.
func TestSearchTryURLs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", textHandler("application/rss+xml", rssFeed("Feed One", 2)))
	mux.HandleFunc("/rss", textHandler("application/rss+xml", rssFeed("Feed Two", 2)))
	server := httptest.NewServer(mux)
	defer server.Close()

	opts := searchTestOptions()
	opts.TryURLs = []string{"/feed", "/rss"}
	info := SearchWithInfo(context.Background(), []string{server.URL + "/"}, opts)

	require.Nil(t, info.RootError)
	require.Len(t, info.Feeds, 2)
	urls := []string{info.Feeds[0].URL, info.Feeds[1].URL}
	require.ElementsMatch(t, []string{server.URL + "/feed", server.URL + "/rss"}, urls)
	for _, f := range info.Feeds {
		// /feed and /rss both match feedPathPatterns, so each carries the
		// +5 path bonus.
		require.GreaterOrEqual(t, f.Score, 5)
	}
}

// A homepage seed doubles as the site-meta page: the discovered feed
// carries the site name, favicon URL and inlined favicon even though the
// synthesized origin-root request dedups against the seed itself.
func TestSearchHomepageSeedGetsSiteMeta(t *testing.T) {
	mux := http.NewServeMux()
	html := `<html><head>
		<title>Example Site</title>
		<link rel="icon" href="/favicon.ico">
		<link rel="alternate" type="application/rss+xml" href="/feed.xml">
	</head><body></body></html>`
	mux.HandleFunc("/", textHandler("text/html", html))
	// No channel <link>, so the feed's origin falls back to its own URL and
	// matches the fixture server.
	feed := `<?xml version="1.0"?><rss version="2.0"><channel><title>Example Feed</title><description>d</description></channel></rss>`
	mux.HandleFunc("/feed.xml", textHandler("application/rss+xml", feed))
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	opts := searchTestOptions()
	opts.CrawlHosts = true
	opts.FaviconDataURI = true
	info := SearchWithInfo(context.Background(), []string{server.URL + "/"}, opts)

	require.Nil(t, info.RootError)
	require.Len(t, info.Feeds, 1)
	feedInfo := info.Feeds[0]
	require.Equal(t, server.URL+"/feed.xml", feedInfo.URL)
	require.Equal(t, "Example Site", feedInfo.SiteName)
	require.Equal(t, server.URL+"/favicon.ico", feedInfo.FaviconURL)
	require.True(t, strings.HasPrefix(feedInfo.FaviconDataURI, "data:image/png;base64,"),
		"favicon data URI %q should inline the fetched PNG", feedInfo.FaviconDataURI)
}

// 5. robots.txt disallow blocks a link; respect_robots=false still fetches it.
func TestSearchRobotsDisallow(t *testing.T) {
	newServer := func() *httptest.Server {
		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", textHandler("text/plain", "User-agent: *\nDisallow: /private/\n"))
		mux.HandleFunc("/", textHandler("text/html", `<html><body><a href="/private/feed.xml">feed</a></body></html>`))
		mux.HandleFunc("/private/feed.xml", textHandler("application/rss+xml", rssFeed("Private Feed", 1)))
		return httptest.NewServer(mux)
	}

	disallowed := newServer()
	defer disallowed.Close()
	opts := searchTestOptions()
	opts.RespectRobots = true
	info := SearchWithInfo(context.Background(), []string{disallowed.URL + "/"}, opts)
	require.Nil(t, info.RootError)
	require.Empty(t, info.Feeds)

	allowed := newServer()
	defer allowed.Close()
	opts.RespectRobots = false
	info = SearchWithInfo(context.Background(), []string{allowed.URL + "/"}, opts)
	require.Nil(t, info.RootError)
	require.Len(t, info.Feeds, 1)
	require.Equal(t, allowed.URL+"/private/feed.xml", info.Feeds[0].URL)
}

// A host discovered mid-crawl (here via a cross-origin Sitemap: directive)
// gets its own robots.txt fetched and honored, the same as a seed host.
func TestSearchCrossOriginSitemapHostHonorsItsRobots(t *testing.T) {
	feedMux := http.NewServeMux()
	feedMux.HandleFunc("/robots.txt", textHandler("text/plain", "User-agent: *\nDisallow: /private/\n"))
	feedMux.HandleFunc("/feed.xml", textHandler("application/rss+xml", rssFeed("Public Feed", 1)))
	feedMux.HandleFunc("/private/feed.xml", textHandler("application/rss+xml", rssFeed("Private Feed", 1)))
	feedHost := httptest.NewServer(feedMux)
	defer feedHost.Close()

	sitemap := `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` +
		`<url><loc>` + feedHost.URL + `/feed.xml</loc></url>` +
		`<url><loc>` + feedHost.URL + `/private/feed.xml</loc></url>` +
		`</urlset>`
	feedMux.HandleFunc("/sitemap.xml", textHandler("application/xml", sitemap))

	seedMux := http.NewServeMux()
	seedMux.HandleFunc("/robots.txt", textHandler("text/plain", "User-agent: *\nSitemap: "+feedHost.URL+"/sitemap.xml\n"))
	seedMux.HandleFunc("/", textHandler("text/html", "<html><body>nothing here</body></html>"))
	seed := httptest.NewServer(seedMux)
	defer seed.Close()

	opts := searchTestOptions()
	opts.RespectRobots = true
	info := SearchWithInfo(context.Background(), []string{seed.URL + "/"}, opts)

	require.Nil(t, info.RootError)
	require.Len(t, info.Feeds, 1)
	require.Equal(t, feedHost.URL+"/feed.xml", info.Feeds[0].URL)
}

// 6. A seed with an unresolvable host classifies as a DNS failure.
func TestSearchRootDNSFailure(t *testing.T) {
	opts := searchTestOptions()
	opts.TotalTimeout = 2 * time.Second
	opts.RequestTimeout = 1 * time.Second

	info := SearchWithInfo(context.Background(), []string{"https://nxdomain.invalid/"}, opts)

	require.Empty(t, info.Feeds)
	require.NotNil(t, info.RootError)
	require.Equal(t, "https://nxdomain.invalid/", info.RootError.URL)
	// A sandboxed resolver may surface this as a DNS failure, a refused
	// connection, or a timeout depending on network availability; all three
	// are valid transport-layer classifications for an unresolvable host.
	require.Contains(t, []ErrorType{ErrDNSFailure, ErrConnection, ErrTimeout}, info.RootError.ErrorType)
}

// Search's legacy contract: on root failure it returns an empty slice
// rather than exposing RootError.
func TestSearchWrapperHidesRootErrorBehindEmptySlice(t *testing.T) {
	opts := searchTestOptions()
	opts.TotalTimeout = 2 * time.Second
	opts.RequestTimeout = 1 * time.Second

	feeds := Search(context.Background(), []string{"https://nxdomain.invalid/"}, opts)
	require.Empty(t, feeds)
}
