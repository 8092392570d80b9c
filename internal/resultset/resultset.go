// Package resultset accumulates discovered feeds, scores them, and returns
// them sorted.
package resultset

import (
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/feedsearch/feedsearch/internal/types"
)

// Set is a concurrency-safe map of canonical URL to FeedInfo. Site meta
// and favicon data URIs are retained per origin so enrichment works in
// both directions: meta arriving after a feed updates it in place, and a
// feed added after its origin's meta is already known picks it up at
// insert time.
type Set struct {
	mu        sync.RWMutex
	feeds     map[string]*types.FeedInfo
	seedHosts map[string]bool
	meta      map[string]*types.SiteMeta
	favicons  map[string]string
}

// New creates a Set aware of the given seed hosts, used for the host-match
// scoring bonus.
func New(seedHosts []string) *Set {
	hosts := make(map[string]bool, len(seedHosts))
	for _, h := range seedHosts {
		hosts[strings.ToLower(h)] = true
	}
	return &Set{
		feeds:     make(map[string]*types.FeedInfo),
		seedHosts: hosts,
		meta:      make(map[string]*types.SiteMeta),
		favicons:  make(map[string]string),
	}
}

// Add inserts or replaces info, scoring it first and attaching any site
// meta already known for its origin. Returns false if info is nil.
func (s *Set) Add(info *types.FeedInfo) bool {
	if info == nil {
		return false
	}
	info.Score = score(info, s.seedHosts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrichLocked(info)
	s.feeds[info.URL] = info
	return true
}

// enrichLocked copies stored per-origin meta onto f. Caller holds mu.
func (s *Set) enrichLocked(f *types.FeedInfo) {
	origin := feedOrigin(f)
	if origin == "" {
		return
	}
	if m, ok := s.meta[origin]; ok {
		f.SiteName = m.SiteName
		if f.FaviconURL == "" {
			f.FaviconURL = m.FaviconURL
		}
	}
	if uri, ok := s.favicons[origin]; ok {
		f.FaviconDataURI = uri
	}
}

// ApplySiteMeta records meta for its origin and attaches its fields to
// every feed already held whose origin matches.
func (s *Set) ApplySiteMeta(meta *types.SiteMeta) {
	if meta == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[meta.Origin] = meta
	for _, f := range s.feeds {
		if feedOrigin(f) != meta.Origin {
			continue
		}
		f.SiteName = meta.SiteName
		if f.FaviconURL == "" {
			f.FaviconURL = meta.FaviconURL
		}
	}
}

// ApplyFaviconDataURI records a synthesized favicon data URI for origin
// and attaches it to every feed already held whose origin matches.
func (s *Set) ApplyFaviconDataURI(origin, dataURI string) {
	if dataURI == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favicons[origin] = dataURI
	for _, f := range s.feeds {
		if feedOrigin(f) == origin {
			f.FaviconDataURI = dataURI
		}
	}
}

// feedOrigin resolves the origin a feed is attributed to: its site URL
// when one is known, its own URL otherwise.
func feedOrigin(f *types.FeedInfo) string {
	origin, err := originOf(f.SiteURL)
	if err != nil || origin == "" {
		origin, err = originOf(f.URL)
		if err != nil {
			return ""
		}
	}
	return origin
}

// Len returns the number of distinct feeds held.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feeds)
}

// Results returns feeds sorted by score desc, ties broken by shorter URL
// path then lexicographic URL.
func (s *Set) Results() []*types.FeedInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.FeedInfo, 0, len(s.feeds))
	for _, f := range s.feeds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		li, lj := pathLen(out[i].URL), pathLen(out[j].URL)
		if li != lj {
			return li < lj
		}
		return out[i].URL < out[j].URL
	})
	return out
}

var feedPathPatterns = []string{"/feed", "/rss", ".xml"}

func score(info *types.FeedInfo, seedHosts map[string]bool) int {
	total := 0

	if host, err := hostOf(info.URL); err == nil && seedHosts[host] {
		total += 10
	}

	lowerURL := strings.ToLower(info.URL)
	for _, p := range feedPathPatterns {
		if strings.Contains(lowerURL, p) {
			total += 5
			break
		}
	}

	if strings.TrimSpace(info.Title) != "" {
		total += 3
	}
	if strings.TrimSpace(info.Description) != "" {
		total += 2
	}

	if info.ItemCount > 0 {
		total += 2
	}
	if !info.LastUpdated.IsZero() {
		age := time.Since(info.LastUpdated)
		if age <= 30*24*time.Hour {
			total += 2
		}
		if age <= 7*24*time.Hour {
			total += 2
		}
	}

	if info.Bozo {
		total -= 5
	}

	hubBonus := len(info.Hubs)
	if hubBonus > 2 {
		hubBonus = 2
	}
	total += hubBonus

	return total
}

func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Host), nil
}

func originOf(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

func pathLen(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return len(raw)
	}
	return len(path.Clean(u.Path))
}
