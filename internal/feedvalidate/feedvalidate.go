// Package feedvalidate classifies a Response body as RSS/Atom/JSON-Feed or
// not, and extracts FeedInfo metadata. The XML path parses with
// github.com/mmcdole/gofeed; date handling falls back to
// github.com/araddon/dateparse when the fixed layouts fail.
package feedvalidate

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/feedsearch/feedsearch/internal/types"
)

// xmlRootPattern requires a feed-like root element somewhere in the head of
// the document. A bare <?xml prologue is not enough: XHTML documents begin
// the same way, and misreading one as a feed would swallow its
// rel=alternate links.
var xmlRootPattern = regexp.MustCompile(`(?is)<(?:rss|feed|rdf:RDF)[\s>]`)
var hubLinkPattern = regexp.MustCompile(`(?is)<link[^>]+rel=["']hub["'][^>]*href=["']([^"']+)["']|<link[^>]+href=["']([^"']+)["'][^>]*rel=["']hub["']`)
var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// Validate classifies resp and, if it is a feed, returns its FeedInfo.
func Validate(resp *types.Response) (*types.FeedInfo, bool) {
	if resp == nil {
		return nil, false
	}

	if info, ok := validateJSONFeed(resp); ok {
		return info, true
	}

	head := resp.Text
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !xmlRootPattern.MatchString(head) {
		return nil, false
	}

	return validateXMLFeed(resp)
}

func validateJSONFeed(resp *types.Response) (*types.FeedInfo, bool) {
	if resp.JSON == nil {
		return nil, false
	}
	version, _ := resp.JSON["version"].(string)
	if !strings.Contains(version, "jsonfeed.org") {
		return nil, false
	}
	itemsRaw, ok := resp.JSON["items"].([]any)
	if !ok {
		return nil, false
	}

	info := &types.FeedInfo{
		URL:           resp.FinalURL,
		Format:        "json",
		Version:       version,
		ContentType:   "application/feed+json",
		ContentLength: int64(len(resp.Text)),
	}
	info.Title, _ = resp.JSON["title"].(string)
	info.Description, _ = resp.JSON["description"].(string)
	info.SiteURL, _ = resp.JSON["home_page_url"].(string)
	info.SelfURL, _ = resp.JSON["feed_url"].(string)

	if hubsRaw, ok := resp.JSON["hubs"].([]any); ok {
		for _, h := range hubsRaw {
			hm, ok := h.(map[string]any)
			if !ok {
				continue
			}
			if url, ok := hm["url"].(string); ok {
				info.Hubs = append(info.Hubs, url)
			}
		}
	}

	var dates []time.Time
	podcast := false
	now := time.Now()
	for _, it := range itemsRaw {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"date_published", "date_modified"} {
			if raw, ok := item[key].(string); ok {
				if t, ok := ParseDate(raw); ok && !t.After(now) {
					dates = append(dates, t)
				}
			}
		}
		if atts, ok := item["attachments"].([]any); ok {
			for _, a := range atts {
				am, ok := a.(map[string]any)
				if !ok {
					continue
				}
				if mime, ok := am["mime_type"].(string); ok && strings.HasPrefix(mime, "audio") {
					podcast = true
				}
			}
		}
	}

	info.ItemCount = len(itemsRaw)
	info.Podcast = podcast
	applyVelocity(info, dates)
	return info, true
}

func validateXMLFeed(resp *types.Response) (*types.FeedInfo, bool) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(resp.Text)
	if err != nil {
		return bozoRecover(resp)
	}

	info := &types.FeedInfo{
		URL:           resp.FinalURL,
		Title:         strings.TrimSpace(feed.Title),
		Description:   strings.TrimSpace(feed.Description),
		SiteURL:       feed.Link,
		SelfURL:       feed.FeedLink,
		ContentType:   resp.Headers.Get("Content-Type"),
		ContentLength: int64(len(resp.Text)),
		ItemCount:     len(feed.Items),
	}
	switch strings.ToLower(feed.FeedType) {
	case "atom":
		info.Format = "atom"
	case "json":
		info.Format = "json"
	default:
		info.Format = "rss"
	}
	info.Version = versionTag(info.Format, feed.FeedVersion)

	info.Hubs = extractHubs(resp.Text)
	info.Podcast = feed.ITunesExt != nil || hasAudioEnclosure(feed)

	var dates []time.Time
	now := time.Now()
	for _, item := range feed.Items {
		t := itemDate(item)
		if t != nil && !t.After(now) {
			dates = append(dates, *t)
		}
	}
	applyVelocity(info, dates)

	return info, true
}

// bozoRecover salvages a malformed XML feed: if a title is recoverable the
// document still yields a FeedInfo, flagged Bozo.
func bozoRecover(resp *types.Response) (*types.FeedInfo, bool) {
	m := titlePattern.FindStringSubmatch(resp.Text)
	if m == nil {
		return nil, false
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return nil, false
	}
	return &types.FeedInfo{
		URL:   resp.FinalURL,
		Title: title,
		Bozo:  true,
	}, true
}

func extractHubs(body string) []string {
	matches := hubLinkPattern.FindAllStringSubmatch(body, -1)
	var hubs []string
	seen := map[string]bool{}
	for _, m := range matches {
		url := m[1]
		if url == "" {
			url = m[2]
		}
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		hubs = append(hubs, url)
	}
	return hubs
}

// versionTag renders a compact version label ("rss20", "atom10") from the
// feed format and its dotted version number.
func versionTag(format, version string) string {
	v := strings.ReplaceAll(strings.TrimSpace(version), ".", "")
	if v == "" {
		return format
	}
	return format + v
}

func hasAudioEnclosure(feed *gofeed.Feed) bool {
	for _, item := range feed.Items {
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(strings.ToLower(enc.Type), "audio") {
				return true
			}
		}
	}
	return false
}

func itemDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, ok := ParseDate(raw); ok {
			return &t
		}
	}
	return nil
}

// ParseDate parses a feed timestamp tolerantly: an RFC 3339 fast path, the
// RFC 1123/822 email-date layouts, then dateparse.ParseAny as the flexible
// fallback. Never errors; ok is false on total failure.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseAny(raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// applyVelocity sets LastUpdated and Velocity (items per day over the
// observed entry date range). Future-dated entries are already filtered by
// the caller.
func applyVelocity(info *types.FeedInfo, dates []time.Time) {
	if len(dates) == 0 {
		return
	}
	earliest, latest := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
		if d.After(latest) {
			latest = d
		}
	}
	info.LastUpdated = latest.UTC()
	days := latest.Sub(earliest).Hours() / 24
	if days < 1 {
		days = 1
	}
	info.Velocity = float64(info.ItemCount) / days
}
