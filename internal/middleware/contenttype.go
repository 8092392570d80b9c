// Content-type middleware: re-affirms the downloader's content-type gate
// on the final response, since some servers misreport the type until the
// body has arrived.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/feedsearch/feedsearch/internal/types"
)

// ContentType re-checks the response's declared content type.
type ContentType struct {
	accepted map[string]bool
}

// NewContentType creates a ContentType middleware accepting the given MIME
// types (case-insensitive, no parameters).
func NewContentType(accepted ...string) *ContentType {
	m := make(map[string]bool, len(accepted))
	for _, a := range accepted {
		m[strings.ToLower(a)] = true
	}
	return &ContentType{accepted: m}
}

// AfterResponse implements middleware.AfterResponder.
func (c *ContentType) AfterResponse(ctx context.Context, req *types.Request, resp *types.Response) *types.Response {
	if resp.ErrorType != types.ErrNone || resp.Headers == nil {
		return resp
	}
	ct := resp.Headers.Get("Content-Type")
	if ct == "" {
		return resp
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if !c.accepted[ct] {
		resp.StatusCode = http.StatusUnsupportedMediaType
		resp.ErrorType = types.ErrHTTP
	}
	return resp
}
