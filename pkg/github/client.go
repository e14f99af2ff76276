// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package github is a small REST client for the GitHub API covering the
// endpoints the digest collectors read. It handles authentication,
// pagination, primary and secondary rate limits, and transient transport
// failures so callers only see typed results or typed errors.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"

	"github.com/kraklabs/techdigest/pkg/text"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 60 * time.Second

	// Rate-limit retry schedule: Retry-After wins, otherwise exponential
	// backoff starting at 2s and capped at 30s, at most 4 retries.
	maxRateRetries = 4
	baseRateDelay  = 2 * time.Second
	maxRateDelay   = 30 * time.Second

	// Transient transport failures get their own short retry loop.
	maxTransportTries  = 3
	baseTransportDelay = 2 * time.Second

	pageSize = 100
)

// Config configures a Client. The zero value is usable for anonymous access
// against the public API.
type Config struct {
	// Token is the bearer token. Empty means anonymous access, which the
	// collectors compensate for with reduced fetch depth.
	Token string

	// BaseURL overrides the API root, mainly for tests.
	BaseURL string

	// UserAgent is sent on every request.
	UserAgent string

	// HTTPClient overrides the pooled default.
	HTTPClient *http.Client

	// Pace throttles outgoing requests when set.
	Pace *rate.Limiter

	// MaxRetries bounds rate-limit retries. Zero means the default of 4.
	MaxRetries int

	Logger *slog.Logger
}

// Client talks to the GitHub REST API.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	pace       *rate.Limiter
	maxRetries int
	logger     *slog.Logger

	// sleep is replaced in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	lastRate RateInfo

	// authSkip records paths that failed with 401/403 so a run does not
	// hammer endpoints the token cannot read.
	authSkip sync.Map
}

// NewClient builds a Client from cfg, filling in pooled transport, timeout
// and logger defaults.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = defaultTimeout
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "techdigest"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = maxRateRetries
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		userAgent:  userAgent,
		httpClient: httpClient,
		pace:       cfg.Pace,
		maxRetries: maxRetries,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// HasToken reports whether the client authenticates its requests.
func (c *Client) HasToken() bool { return c.token != "" }

// LastRate returns the rate-limit telemetry from the most recent response.
func (c *Client) LastRate() RateInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRate
}

// GetJSON fetches path with query and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{Path: path, Snippet: bodySnippet(body), Err: err}
	}
	return nil
}

// GetPaginated fetches every page of a list endpoint at 100 items per page,
// stopping once a page comes back short.
func GetPaginated[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q := cloneQuery(query)
		q.Set("per_page", strconv.Itoa(pageSize))
		q.Set("page", strconv.Itoa(page))

		var items []T
		if err := c.GetJSON(ctx, path, q, &items); err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
	}
}

// GetFirstPage fetches a single page of at most perPage items. Collectors
// use it to cap fetch depth when running without a token.
func GetFirstPage[T any](ctx context.Context, c *Client, path string, query url.Values, perPage int) ([]T, error) {
	q := cloneQuery(query)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")

	var items []T
	if err := c.GetJSON(ctx, path, q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// get runs the full request state machine for one logical fetch: auth skip
// check, transport retries, rate-limit retries, status classification.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if _, skipped := c.authSkip.Load(path); skipped {
		return nil, &AuthError{Path: path, Status: http.StatusForbidden}
	}

	attempts := 0
	for retry := 0; ; retry++ {
		attempts++
		body, status, headers, err := c.send(ctx, path, query)
		if err != nil {
			return nil, err
		}

		info := parseRateHeaders(headers)
		c.recordRate(info)
		requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

		switch {
		case status >= 200 && status < 300:
			return body, nil

		case status == http.StatusNotFound:
			return nil, &NotFoundError{Path: path}

		case isRateLimitStatus(status, body):
			if retry >= c.maxRetries {
				return nil, &RateLimitedError{Path: path, Attempts: attempts, Rate: info}
			}
			wait := rateWait(info, retry+1)
			rateLimitWaits.Inc()
			c.logger.Warn("github.rate.limited",
				"path", path,
				"status", status,
				"wait", wait.String(),
				"attempt", attempts,
				"remaining", info.Remaining)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			c.authSkip.Store(path, struct{}{})
			c.logger.Warn("github.auth.failed", "path", path, "status", status)
			return nil, &AuthError{Path: path, Status: status}

		default:
			return nil, &StatusError{Path: path, Status: status}
		}
	}
}

// send performs one HTTP round trip with transient retries. It returns the
// raw body, status and headers; any error it returns is final.
func (c *Client) send(ctx context.Context, path string, query url.Values) ([]byte, int, http.Header, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastErr error
	for try := 1; try <= maxTransportTries; try++ {
		if c.pace != nil {
			if err := c.pace.Wait(ctx); err != nil {
				return nil, 0, nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, 0, nil, &TransportError{Path: path, Err: err}
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		req.Header.Set("User-Agent", c.userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil {
				return body, resp.StatusCode, resp.Header, nil
			}
			err = readErr
		}

		if ctx.Err() != nil {
			return nil, 0, nil, ctx.Err()
		}
		if !isTransient(err) {
			return nil, 0, nil, &TransportError{Path: path, Err: err}
		}
		lastErr = err
		if try == maxTransportTries {
			break
		}
		wait := baseTransportDelay << (try - 1)
		c.logger.Warn("github.transport.retry",
			"path", path,
			"try", try,
			"wait", wait.String(),
			"error", err.Error())
		if serr := c.sleep(ctx, wait); serr != nil {
			return nil, 0, nil, serr
		}
	}
	return nil, 0, nil, &TransportError{Path: path, Err: lastErr}
}

func (c *Client) recordRate(info RateInfo) {
	c.mu.Lock()
	c.lastRate = info
	c.mu.Unlock()
	if info.Limit > 0 && info.Remaining <= 5 {
		c.logger.Warn("github.rate.low",
			"remaining", info.Remaining,
			"limit", info.Limit,
			"reset", info.ResetAt.Format(time.RFC3339))
	}
}

// isRateLimitStatus classifies primary (429) and secondary (403 with a
// telltale body) rate limiting.
func isRateLimitStatus(status int, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status != http.StatusForbidden {
		return false
	}
	msg := strings.ToLower(string(body))
	return strings.Contains(msg, "secondary rate") ||
		strings.Contains(msg, "rate limit exceeded") ||
		strings.Contains(msg, "abuse detection")
}

// rateWait picks the pause before rate-limit retry k (1-based). A positive
// Retry-After header overrides the exponential schedule.
func rateWait(info RateInfo, k int) time.Duration {
	if info.RetryAfter > 0 {
		return info.RetryAfter
	}
	d := baseRateDelay << (k - 1)
	if d > maxRateDelay {
		d = maxRateDelay
	}
	return d
}

// isTransient reports whether a transport error is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "renegotiation")
}

func parseRateHeaders(h http.Header) RateInfo {
	var info RateInfo
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		info.Limit, _ = strconv.Atoi(v)
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		info.Remaining, _ = strconv.Atoi(v)
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil && sec > 0 {
			info.ResetAt = time.Unix(sec, 0).UTC()
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			info.RetryAfter = time.Duration(sec) * time.Second
		}
	}
	return info
}

func bodySnippet(body []byte) string {
	return text.Truncate(text.CollapseWhitespace(string(body)), 200)
}

func cloneQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, vs := range q {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
