// Package normalize canonicalizes URLs the way the crawler requires: an
// absolute, lowercase-scheme-and-host, fragment-free http(s) URL.
package normalize

import (
	"errors"
	"strings"

	"net/url"
)

// ErrInvalidURL is returned for inputs that cannot be coerced into a
// canonical http(s) URL.
var ErrInvalidURL = errors.New("invalid_url")

// Options controls canonicalization behavior.
type Options struct {
	// StripQuery removes the query string from the result. Used by the
	// duplicate filter's enqueue fingerprint; the result set keeps the
	// full canonical URL including query.
	StripQuery bool
}

// URL canonicalizes raw, resolving it against base when raw is relative.
// base may be nil when raw is expected to be absolute (a seed URL).
func URL(raw string, base *url.URL, opts Options) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	if !u.IsAbs() {
		if base == nil {
			// Bare host or scheme-less input: coerce to https.
			u, err = url.Parse("https://" + raw)
			if err != nil {
				return "", ErrInvalidURL
			}
		} else {
			u = base.ResolveReference(u)
		}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(host, ".") && host != "localhost" {
		return "", ErrInvalidURL
	}

	port := u.Port()
	u.Host = host
	if port != "" {
		u.Host = host + ":" + port
	}
	u.Fragment = ""
	u.RawFragment = ""

	if opts.StripQuery {
		u.RawQuery = ""
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// Origin returns the scheme://host[:port] portion of an absolute URL.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", ErrInvalidURL
	}
	return u.Scheme + "://" + u.Host, nil
}
