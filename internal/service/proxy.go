// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"ollama-edge-proxy/internal/config"
	"ollama-edge-proxy/internal/cors"
	"ollama-edge-proxy/internal/metrics"
	"ollama-edge-proxy/internal/model"
	"ollama-edge-proxy/internal/pathmap"
)

// ErrMissingUpstream is returned for every request when no upstream base URL is configured.
var ErrMissingUpstream = errors.New("upstream base URL is not configured")

// Upstream performs the outbound HTTP exchange.
type Upstream interface {
	DoStream(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.ProxyResponse, error)
}

// ProxyService translates inbound requests into upstream requests and
// upstream responses into outbound responses with CORS headers applied.
type ProxyService struct {
	client  Upstream
	policy  *cors.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL string
}

// NewProxyService creates a ProxyService. An empty upstream base URL is
// accepted; Forward then fails with ErrMissingUpstream.
// The metrics parameter is optional.
func NewProxyService(c Upstream, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	policy, err := cors.NewPolicy(cfg.CORS.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("build cors policy: %w", err)
	}

	return &ProxyService{
		client:  c,
		policy:  policy,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		baseURL: strings.TrimRight(cfg.Upstream.BaseURL, "/"),
	}, nil
}

// Policy returns the CORS policy applied to responses.
func (s *ProxyService) Policy() *cors.Policy {
	return s.policy
}

// Configured reports whether an upstream base URL is set.
func (s *ProxyService) Configured() bool {
	return s.baseURL != ""
}

// Forward sends a ProxyRequest to the upstream and returns the response.
// The caller is responsible for closing the response body.
//
// OPTIONS requests are answered locally with 204 and the CORS headers.
// GET and HEAD never carry a body upstream. Redirects are returned, not followed.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if s.baseURL == "" {
		return nil, ErrMissingUpstream
	}

	upstreamURL := s.buildUpstreamURL(pr.Path, pr.RawQuery)

	if pr.Method == http.MethodOptions {
		return s.preflight(pr.Origin), nil
	}

	header := ForwardHeaders(pr.Header)

	var body io.Reader
	if carriesBody(pr.Method) && pr.Body != nil {
		body = pr.Body
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"upstream_path", pathmap.Rewrite(pr.Path),
	)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, upstreamURL, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = s.relayHeaders(resp.Header, pr.Origin)
	return resp, nil
}

func (s *ProxyService) preflight(origin string) *model.ProxyResponse {
	if s.metrics != nil {
		s.metrics.PreflightsTotal.WithLabelValues(strconv.FormatBool(s.policy.Allows(origin))).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: http.StatusNoContent,
		Header:     s.policy.Headers(origin),
		Body:       http.NoBody,
	}
}

// buildUpstreamURL joins the base URL, the rewritten path and the raw query.
// The query is appended byte for byte.
func (s *ProxyService) buildUpstreamURL(path, rawQuery string) string {
	u := s.baseURL + pathmap.Rewrite(path)
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

func (s *ProxyService) relayHeaders(src http.Header, origin string) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	s.policy.Overlay(dst, origin)
	return dst
}

// ForwardHeaders returns a copy of src without the Host header. src is not modified.
func ForwardHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if http.CanonicalHeaderKey(key) == "Host" {
			continue
		}
		dst[key] = slices.Clone(vals)
	}
	return dst
}

// carriesBody reports whether requests with this method forward their body.
func carriesBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}
