// Package middleware implements the before/after request hook chain: an
// ordered list of middlewares, each optionally implementing BeforeRequest
// and/or AfterResponse, invoked in registration order pre-request and
// reverse order post-response.
package middleware

import (
	"context"

	"github.com/feedsearch/feedsearch/internal/types"
)

// Decision is the outcome of a BeforeRequest hook.
type Decision int

const (
	// Continue lets the pipeline proceed to the downloader.
	Continue Decision = iota
	// Drop discards the request silently.
	Drop
	// ShortCircuit returns Response without ever hitting the network.
	ShortCircuit
)

// BeforeResult is returned by a BeforeRequest hook.
type BeforeResult struct {
	Request  *types.Request
	Decision Decision
	Response *types.Response
}

// continueWith is a convenience constructor for the common case.
func continueWith(req *types.Request) BeforeResult {
	return BeforeResult{Request: req, Decision: Continue}
}

// BeforeRequester is the optional pre-request capability.
type BeforeRequester interface {
	BeforeRequest(ctx context.Context, req *types.Request) BeforeResult
}

// AfterResponder is the optional post-response capability.
type AfterResponder interface {
	AfterResponse(ctx context.Context, req *types.Request, resp *types.Response) *types.Response
}

// Chain holds an ordered list of middlewares and drives the two hook
// directions over them.
type Chain struct {
	middlewares []any
}

// NewChain builds a Chain from middlewares, in registration order.
func NewChain(middlewares ...any) *Chain {
	return &Chain{middlewares: middlewares}
}

// RunBefore applies BeforeRequest hooks in registration order, stopping at
// the first Drop or ShortCircuit.
func (c *Chain) RunBefore(ctx context.Context, req *types.Request) BeforeResult {
	result := continueWith(req)
	for _, m := range c.middlewares {
		hook, ok := m.(BeforeRequester)
		if !ok {
			continue
		}
		result = hook.BeforeRequest(ctx, result.Request)
		if result.Decision != Continue {
			return result
		}
	}
	return result
}

// RunAfter applies AfterResponse hooks in reverse registration order.
func (c *Chain) RunAfter(ctx context.Context, req *types.Request, resp *types.Response) *types.Response {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		hook, ok := c.middlewares[i].(AfterResponder)
		if !ok {
			continue
		}
		resp = hook.AfterResponse(ctx, req, resp)
	}
	return resp
}
