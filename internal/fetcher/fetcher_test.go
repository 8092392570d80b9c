package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/feedsearch/feedsearch/internal/types"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	d := New("test-agent", 2*time.Second)
	resp := d.Fetch(context.Background(), &types.Request{URL: srv.URL, Method: http.MethodGet})
	if resp.ErrorType != types.ErrNone {
		t.Fatalf("expected no error, got %v", resp.ErrorType)
	}
	if resp.StatusCode != 200 {
		t.Errorf("got status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Text, "hi") {
		t.Errorf("unexpected body: %q", resp.Text)
	}
}

func TestFetchRejectsDisallowedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x00, 0x01, 0x02, 0x03})
	}))
	defer srv.Close()

	d := New("test-agent", 2*time.Second)
	resp := d.Fetch(context.Background(), &types.Request{URL: srv.URL, Method: http.MethodGet})
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("got status %d want 415", resp.StatusCode)
	}
	if resp.ErrorType != types.ErrHTTP {
		t.Errorf("got error type %v", resp.ErrorType)
	}
}

func TestFetchEnforcesMaxContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer srv.Close()

	d := New("test-agent", 2*time.Second, WithMaxContentLength(10))
	resp := d.Fetch(context.Background(), &types.Request{URL: srv.URL, Method: http.MethodGet})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("got status %d want 413", resp.StatusCode)
	}
	if len(resp.Text) != 10 {
		t.Errorf("expected truncated body of 10 bytes, got %d", len(resp.Text))
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := New("test-agent", 2*time.Second)
	resp := d.Fetch(context.Background(), &types.Request{URL: srv.URL, Method: http.MethodGet})
	if resp.ErrorType != types.ErrHTTP {
		t.Errorf("got %v want http_error", resp.ErrorType)
	}
	if resp.StatusCode != 404 {
		t.Errorf("got %d", resp.StatusCode)
	}
}

func TestFetchDNSFailure(t *testing.T) {
	d := New("test-agent", 500*time.Millisecond)
	resp := d.Fetch(context.Background(), &types.Request{URL: "https://nxdomain.invalid.test/", Method: http.MethodGet})
	if resp.ErrorType != types.ErrDNSFailure && resp.ErrorType != types.ErrConnection {
		t.Errorf("got %v", resp.ErrorType)
	}
	if resp.StatusCode != -1 {
		t.Errorf("got status %d want -1", resp.StatusCode)
	}
}

func TestFetchJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"https://jsonfeed.org/version/1.1","items":[]}`))
	}))
	defer srv.Close()

	d := New("test-agent", 2*time.Second)
	resp := d.Fetch(context.Background(), &types.Request{URL: srv.URL, Method: http.MethodGet})
	if resp.JSON == nil {
		t.Fatal("expected JSON body to be populated")
	}
	if resp.JSON["version"] != "https://jsonfeed.org/version/1.1" {
		t.Errorf("unexpected json: %v", resp.JSON)
	}
}
