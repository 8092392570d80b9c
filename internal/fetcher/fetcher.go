// Package fetcher is the downloader: a single Fetch(Request) -> Response
// call with timeout, size cap, content-type gating, charset decoding and
// transport-error classification. The *http.Client rides on a
// PuerkitoBio/rehttp transport configured with zero retries: each Fetch is
// a single attempt, and retries are scheduled by middleware.Retry.
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/rehttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/feedsearch/feedsearch/internal/types"
)

// DefaultMaxContentLength is the default body cap.
const DefaultMaxContentLength int64 = 10 * 1024 * 1024

// DefaultRedirectCap bounds redirect chains.
const DefaultRedirectCap = 10

// acceptedContentTypes gates responses before the body read; it is the
// primary defense against downloading binaries.
var acceptedContentTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
	"text/xml":              true,
	"application/xml":       true,
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/json":      true,
	"application/feed+json": true,
	"text/plain":            true,
	// Favicon fetches (internal/sitemeta) need the image types through the
	// same gate; anything else still gets a 415.
	"image/x-icon":             true,
	"image/vnd.microsoft.icon": true,
	"image/png":                true,
	"image/svg+xml":            true,
	"image/gif":                true,
	"image/jpeg":               true,
}

var errTooManyRedirects = errors.New("stopped after too many redirects")

// Downloader executes HTTP requests on behalf of the scheduler.
type Downloader struct {
	transport        http.RoundTripper
	userAgent        string
	defaultTimeout   time.Duration
	maxContentLength int64
	extraHeaders     http.Header
	logger           zerolog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithMaxContentLength overrides DefaultMaxContentLength.
func WithMaxContentLength(n int64) Option {
	return func(d *Downloader) { d.maxContentLength = n }
}

// WithHeaders sets headers applied to every request unless overridden.
func WithHeaders(h http.Header) Option {
	return func(d *Downloader) { d.extraHeaders = h }
}

// WithLogger sets the logger used for redirect warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// New creates a Downloader. timeout is the default per-request timeout.
func New(userAgent string, timeout time.Duration, opts ...Option) *Downloader {
	transport := rehttp.NewTransport(
		&http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: false},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
		},
		rehttp.RetryAll(rehttp.RetryMaxRetries(0), rehttp.RetryTemporaryErr()),
		rehttp.ExpJitterDelay(time.Millisecond, time.Second),
	)
	d := &Downloader{
		transport:        transport,
		userAgent:        userAgent,
		defaultTimeout:   timeout,
		maxContentLength: DefaultMaxContentLength,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch executes req and returns a classified Response. It never returns a
// Go error; all failures are encoded in Response.ErrorType.
func (d *Downloader) Fetch(ctx context.Context, req *types.Request) *types.Response {
	start := time.Now()
	resp := &types.Response{Request: req, FinalURL: req.URL, ErrorType: types.ErrNone}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		resp.ErrorType = types.ErrInvalidURL
		resp.Elapsed = time.Since(start)
		return resp
	}

	httpReq.Header.Set("User-Agent", d.userAgent)
	for k, vs := range d.extraHeaders {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}

	var history []string
	client := &http.Client{
		Timeout:   d.defaultTimeout,
		Transport: d.transport,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= DefaultRedirectCap {
				return errTooManyRedirects
			}
			if prev := via[len(via)-1]; prev.URL.Scheme == "https" && r.URL.Scheme == "http" {
				d.logger.Warn().
					Str("from", prev.URL.String()).
					Str("to", r.URL.String()).
					Msg("redirect downgrades https to http")
			}
			history = append(history, r.URL.String())
			return nil
		},
	}

	httpResp, err := client.Do(httpReq)
	resp.Elapsed = time.Since(start)
	if err != nil {
		resp.StatusCode = -1
		resp.ErrorType = classifyTransportError(err)
		return resp
	}
	defer httpResp.Body.Close()

	resp.StatusCode = httpResp.StatusCode
	resp.Headers = httpResp.Header
	resp.FinalURL = httpResp.Request.URL.String()
	resp.History = history

	if httpResp.StatusCode >= 400 {
		resp.ErrorType = types.ErrHTTP
	}

	contentType := httpResp.Header.Get("Content-Type")
	mimeType := stripParams(contentType)
	if mimeType != "" && !acceptedContentTypes[mimeType] {
		resp.StatusCode = http.StatusUnsupportedMediaType
		resp.ErrorType = types.ErrHTTP
		return resp
	}

	maxLen := d.maxContentLength
	if req.MaxBodyBytes > 0 {
		maxLen = req.MaxBodyBytes
	}
	limited := io.LimitReader(httpResp.Body, maxLen+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		resp.ErrorType = classifyTransportError(err)
		return resp
	}
	if int64(len(raw)) > maxLen {
		resp.StatusCode = http.StatusRequestEntityTooLarge
		raw = raw[:maxLen]
	}

	switch {
	case strings.Contains(mimeType, "json"):
		var payload map[string]any
		if jsonErr := json.Unmarshal(raw, &payload); jsonErr == nil {
			resp.JSON = payload
		}
		resp.Text = string(raw)
	case strings.HasPrefix(mimeType, "image/"):
		// Binary body (favicon fetch): preserve bytes exactly, no charset
		// decoding.
		resp.Text = string(raw)
	default:
		resp.Text = decodeText(raw, contentType)
	}

	return resp
}

// decodeText decodes raw bytes using the declared charset; if absent,
// attempt UTF-8 then fall back to latin-1.
func decodeText(raw []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err == nil {
		if decoded, derr := io.ReadAll(reader); derr == nil {
			return string(decoded)
		}
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	return latin1ToUTF8(raw)
}

// latin1ToUTF8 reinterprets each input byte as a Latin-1 code point, the
// last-resort decode when neither a declared charset nor UTF-8 applies.
func latin1ToUTF8(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// classifyTransportError maps a transport error into the ErrorType
// taxonomy.
func classifyTransportError(err error) types.ErrorType {
	if err == nil {
		return types.ErrNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.ErrDNSFailure
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "tls:") || strings.Contains(msg, "x509") || strings.Contains(msg, "certificate"):
		return types.ErrSSL
	case strings.Contains(msg, "too many redirects"):
		return types.ErrHTTP
	default:
		return types.ErrConnection
	}
}

func stripParams(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}
