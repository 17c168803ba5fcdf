// Package cors computes the cross-origin response headers added by the proxy.
package cors

import (
	"errors"
	"net/http"
	"slices"
)

// DefaultOrigin is the canonical origin used when no allow-list is configured.
const DefaultOrigin = "https://api.alviglobal.com"

const (
	allowMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	allowHeaders = "Content-Type, Authorization, Ollama-*"
	maxAge       = "86400"
)

// ErrEmptyAllowList is returned by NewPolicy when no origins are given.
var ErrEmptyAllowList = errors.New("cors: allow-list must contain at least one origin")

// Policy is a static origin allow-list. The first entry is the canonical
// origin returned to callers whose Origin is absent or not allowed.
type Policy struct {
	origins []string
}

// NewPolicy builds a Policy from an ordered, non-empty list of origins.
func NewPolicy(origins []string) (*Policy, error) {
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o != "" && !slices.Contains(cleaned, o) {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrEmptyAllowList
	}
	return &Policy{origins: cleaned}, nil
}

// Origins returns a copy of the allow-list.
func (p *Policy) Origins() []string {
	return slices.Clone(p.origins)
}

// Canonical returns the fallback origin.
func (p *Policy) Canonical() string {
	return p.origins[0]
}

// Allows reports whether origin exactly matches an allowed entry.
func (p *Policy) Allows(origin string) bool {
	return origin != "" && slices.Contains(p.origins, origin)
}

// AllowOrigin returns origin when it is allowed, otherwise the canonical
// origin. It never returns a wildcard.
func (p *Policy) AllowOrigin(origin string) string {
	if p.Allows(origin) {
		return origin
	}
	return p.Canonical()
}

// Headers returns the CORS headers for a request carrying the given Origin.
func (p *Policy) Headers(origin string) http.Header {
	h := make(http.Header, 4)
	p.Overlay(h, origin)
	return h
}

// Overlay sets the CORS headers on dst, replacing any existing values.
func (p *Policy) Overlay(dst http.Header, origin string) {
	dst.Set("Access-Control-Allow-Origin", p.AllowOrigin(origin))
	dst.Set("Access-Control-Allow-Methods", allowMethods)
	dst.Set("Access-Control-Allow-Headers", allowHeaders)
	dst.Set("Access-Control-Max-Age", maxAge)
}
