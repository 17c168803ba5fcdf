// Package model defines the per-request values passed between the proxy layers.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest is an inbound request as seen by the forwarder.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// Path is the escaped request path as received.
	Path string
	// RawQuery is the query string without the leading '?'. It is never parsed.
	RawQuery string
	Header   http.Header
	// Origin is the value of the Origin header, empty when absent.
	Origin string
	Body   io.ReadCloser
}

// ProxyResponse is the response relayed back to the caller.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
