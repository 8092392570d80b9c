// Package sitemeta extracts per-origin site metadata (title, site name,
// favicon) from an origin page's HTML. The page's meta description is not
// extracted.
package sitemeta

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/feedsearch/feedsearch/internal/normalize"
	"github.com/feedsearch/feedsearch/internal/types"
)

// Extract builds a SiteMeta for origin from its parsed origin page.
func Extract(doc *goquery.Document, origin string) *types.SiteMeta {
	if doc == nil {
		return &types.SiteMeta{Origin: origin}
	}

	meta := &types.SiteMeta{Origin: origin}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	meta.SiteName = meta.Title
	if og, ok := doc.Find(`meta[property="og:site_name"]`).First().Attr("content"); ok && strings.TrimSpace(og) != "" {
		meta.SiteName = strings.TrimSpace(og)
	} else if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(og) != "" {
		meta.SiteName = strings.TrimSpace(og)
	}

	if href, ok := faviconHref(doc); ok {
		if base, err := url.Parse(origin); err == nil {
			if abs, err := normalize.URL(href, base, normalize.Options{}); err == nil {
				meta.FaviconURL = abs
			}
		}
	}

	return meta
}

func faviconHref(doc *goquery.Document) (string, bool) {
	for _, rel := range []string{"icon", "shortcut icon", "apple-touch-icon"} {
		sel := doc.Find(`link[rel="` + rel + `"]`).First()
		if href, ok := sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return href, true
		}
	}
	return "", false
}

// maxFaviconBytes caps favicon payloads inlined as data URIs.
const maxFaviconBytes = 100 * 1024

// DataURI synthesizes a data: URI from favicon bytes. It returns ok=false
// if body exceeds the 100 KiB cap, in which case the caller should drop the
// favicon silently rather than error.
func DataURI(body []byte) (string, bool) {
	if len(body) == 0 || len(body) > maxFaviconBytes {
		return "", false
	}
	contentType := http.DetectContentType(body)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/x-icon"
	}
	encoded := base64.StdEncoding.EncodeToString(body)
	return "data:" + contentType + ";base64," + encoded, true
}
