package feedsearch

import (
	"encoding/xml"
	"testing"
)

func TestWriteOPMLPureFunction(t *testing.T) {
	feeds := []*FeedInfo{
		{URL: "https://example.com/feed.xml", Title: "Example Feed", SiteURL: "https://example.com"},
		{URL: "https://other.com/rss", Title: "Other Feed", SiteURL: "https://other.com"},
	}

	first, err := WriteOPML(feeds, "My Subscriptions")
	if err != nil {
		t.Fatalf("WriteOPML: %v", err)
	}
	second, err := WriteOPML(feeds, "My Subscriptions")
	if err != nil {
		t.Fatalf("WriteOPML: %v", err)
	}
	if string(first) != string(second) {
		t.Error("WriteOPML is not a pure function of its input")
	}

	var doc opmlDocument
	if err := xml.Unmarshal(first, &doc); err != nil {
		t.Fatalf("output did not parse as XML: %v", err)
	}
	if doc.Version != "2.0" {
		t.Errorf("Version = %q, want 2.0", doc.Version)
	}
	if doc.Head.Title != "My Subscriptions" {
		t.Errorf("Head.Title = %q, want %q", doc.Head.Title, "My Subscriptions")
	}
	if len(doc.Body.Outlines) != 2 {
		t.Fatalf("got %d outlines, want 2", len(doc.Body.Outlines))
	}
	if doc.Body.Outlines[0].XMLURL != feeds[0].URL || doc.Body.Outlines[0].Type != "rss" {
		t.Errorf("unexpected first outline: %+v", doc.Body.Outlines[0])
	}
}

func TestWriteOPMLEmptyFeeds(t *testing.T) {
	out, err := WriteOPML(nil, "Empty")
	if err != nil {
		t.Fatalf("WriteOPML: %v", err)
	}
	var doc opmlDocument
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output did not parse as XML: %v", err)
	}
	if len(doc.Body.Outlines) != 0 {
		t.Errorf("got %d outlines for an empty feed list, want 0", len(doc.Body.Outlines))
	}
}

func TestWriteOPMLSkipsNilFeed(t *testing.T) {
	feeds := []*FeedInfo{nil, {URL: "https://example.com/feed.xml", Title: "Example"}}
	out, err := WriteOPML(feeds, "Mixed")
	if err != nil {
		t.Fatalf("WriteOPML: %v", err)
	}
	var doc opmlDocument
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output did not parse as XML: %v", err)
	}
	if len(doc.Body.Outlines) != 1 {
		t.Fatalf("got %d outlines, want 1", len(doc.Body.Outlines))
	}
}
