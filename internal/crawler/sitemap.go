package crawler

import "encoding/xml"

// sitemapIndex and sitemapURLSet mirror the two sitemaps.org document
// shapes, so the scheduler can tell which shape it received and re-enqueue
// accordingly (priority 5 for a nested sitemap, priority 10 for a page
// URL).
type sitemapIndex struct {
	XMLName  xml.Name            `xml:"sitemapindex"`
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// maxSitemapEntries bounds how many locations a single sitemap document
// contributes, guarding against pathological sitemaps.
const maxSitemapEntries = 500

// parseSitemap classifies body as a sitemap index or a URL set and returns
// the child locations plus whether they are nested sitemaps (priority 5)
// or leaf pages (priority 10).
func parseSitemap(body []byte) (locs []string, isIndex bool) {
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		for i, entry := range index.Sitemaps {
			if i >= maxSitemapEntries {
				break
			}
			if entry.Loc != "" {
				locs = append(locs, entry.Loc)
			}
		}
		return locs, true
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, false
	}
	for i, u := range set.URLs {
		if i >= maxSitemapEntries {
			break
		}
		if u.Loc != "" {
			locs = append(locs, u.Loc)
		}
	}
	return locs, false
}
