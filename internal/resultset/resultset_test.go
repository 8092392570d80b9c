package resultset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feedsearch/feedsearch/internal/types"
)

func TestAddScoresHostMatch(t *testing.T) {
	s := New([]string{"example.com"})
	s.Add(&types.FeedInfo{URL: "https://example.com/feed.xml", Title: "Blog"})
	results := s.Results()
	require.Len(t, results, 1)
	// +10 host match, +5 path pattern, +3 title = 18
	require.Equal(t, 18, results[0].Score)
}

func TestAddScoresFreshnessAndHubs(t *testing.T) {
	s := New(nil)
	s.Add(&types.FeedInfo{
		URL:         "https://example.com/rss",
		ItemCount:   3,
		LastUpdated: time.Now().Add(-2 * 24 * time.Hour),
		Hubs:        []string{"a", "b", "c"},
	})
	results := s.Results()
	// +5 path, +2 item_count, +2 within 30d, +2 within 7d, +2 hub cap = 13
	require.Equal(t, 13, results[0].Score)
}

func TestAddPenalizesBozo(t *testing.T) {
	s := New(nil)
	s.Add(&types.FeedInfo{URL: "https://example.com/x", Bozo: true})
	results := s.Results()
	require.Equal(t, -5, results[0].Score)
}

func TestResultsSortedByScoreThenPathThenURL(t *testing.T) {
	s := New(nil)
	s.Add(&types.FeedInfo{URL: "https://a.com/feed/long/path.xml", Title: "A"})
	s.Add(&types.FeedInfo{URL: "https://b.com/feed.xml", Title: "B"})
	s.Add(&types.FeedInfo{URL: "https://c.com/nothing"})

	results := s.Results()
	require.Len(t, results, 3)
	// b.com and a.com both score +5(path)+3(title)=8, tie broken by shorter path: b.com wins.
	require.Equal(t, "https://b.com/feed.xml", results[0].URL)
	require.Equal(t, "https://a.com/feed/long/path.xml", results[1].URL)
	require.Equal(t, "https://c.com/nothing", results[2].URL)
}

func TestApplySiteMetaMatchesByOrigin(t *testing.T) {
	s := New(nil)
	s.Add(&types.FeedInfo{URL: "https://example.com/feed.xml", SiteURL: "https://example.com/"})
	s.ApplySiteMeta(&types.SiteMeta{Origin: "https://example.com", SiteName: "Example", FaviconURL: "https://example.com/f.ico"})

	results := s.Results()
	require.Equal(t, "Example", results[0].SiteName)
	require.Equal(t, "https://example.com/f.ico", results[0].FaviconURL)
}

func TestApplySiteMetaIgnoresOtherOrigins(t *testing.T) {
	s := New(nil)
	s.Add(&types.FeedInfo{URL: "https://example.com/feed.xml", SiteURL: "https://example.com/"})
	s.ApplySiteMeta(&types.SiteMeta{Origin: "https://other.com", SiteName: "Other"})

	results := s.Results()
	require.Empty(t, results[0].SiteName)
}

func TestApplySiteMetaEnrichesFeedsAddedLater(t *testing.T) {
	s := New(nil)
	s.ApplySiteMeta(&types.SiteMeta{Origin: "https://example.com", SiteName: "Example", FaviconURL: "https://example.com/f.ico"})
	s.ApplyFaviconDataURI("https://example.com", "data:image/png;base64,BBB")
	s.Add(&types.FeedInfo{URL: "https://example.com/feed.xml", SiteURL: "https://example.com/"})

	results := s.Results()
	require.Equal(t, "Example", results[0].SiteName)
	require.Equal(t, "https://example.com/f.ico", results[0].FaviconURL)
	require.Equal(t, "data:image/png;base64,BBB", results[0].FaviconDataURI)
}

func TestApplyFaviconDataURIMatchesByOrigin(t *testing.T) {
	s := New(nil)
	s.Add(&types.FeedInfo{URL: "https://example.com/feed.xml", SiteURL: "https://example.com/"})
	s.ApplyFaviconDataURI("https://example.com", "data:image/png;base64,AAA")

	results := s.Results()
	require.Equal(t, "data:image/png;base64,AAA", results[0].FaviconDataURI)
}

func TestAddNilIsNoop(t *testing.T) {
	s := New(nil)
	require.False(t, s.Add(nil))
	require.Zero(t, s.Len())
}
