package feedsearch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFeedInfoJSONRoundTrip(t *testing.T) {
	original := &FeedInfo{
		URL:            "https://example.com/feed.xml",
		Title:          "Example Feed",
		Description:    "A feed about examples",
		Version:        "rss20",
		Format:         "rss",
		Hubs:           []string{"https://pubsubhubbub.appspot.com/"},
		SelfURL:        "https://example.com/feed.xml",
		SiteURL:        "https://example.com/",
		SiteName:       "Example",
		FaviconURL:     "https://example.com/favicon.ico",
		FaviconDataURI: "data:image/x-icon;base64,AAAA",
		ContentType:    "application/rss+xml",
		LastUpdated:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		ItemCount:      5,
		Velocity:       0.5,
		Podcast:        true,
		Score:          21,
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded FeedInfo
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, *original, decoded)
}
