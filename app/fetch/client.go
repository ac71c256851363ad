package fetch

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Status classifies one fetch outcome.
type Status int

const (
	StatusOK Status = iota
	StatusNotModified
	StatusHTTPError // non-2xx, non-304 response
	StatusException // transport failure, including timeout
)

// Request identifies a feed URL plus its cached conditional-request values.
type Request struct {
	URL          string
	ETag         string
	LastModified string
}

// Result is one fetch outcome. Body/ETag/LastModified are set for StatusOK,
// Code for StatusHTTPError, Err for StatusException.
type Result struct {
	Status       Status
	Code         int
	Body         []byte
	ETag         string
	LastModified string
	Err          error
}

// Client is the fetch capability: a shared HTTP client bounded by a global
// in-flight limit and a per-host limit, with a fixed per-request timeout.
type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	global     chan struct{}
	hosts      *hostLimiter
}

func NewClient(maxConcurrency, perHostLimit int, timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{},
		userAgent:  userAgent,
		timeout:    timeout,
		global:     make(chan struct{}, maxConcurrency),
		hosts:      newHostLimiter(perHostLimit),
	}
}

// Fetch performs one bounded, conditional GET. It never returns an error:
// every failure mode is folded into the Result so the caller's accounting
// stays uniform.
func (c *Client) Fetch(ctx context.Context, req Request) Result {
	// Host slot first: a request queued behind a slow host waits without
	// holding global budget, so other hosts are not starved. Both slots are
	// acquired in the same order everywhere, so this cannot deadlock.
	host := hostOf(req.URL)
	if err := c.hosts.acquire(ctx, host); err != nil {
		return Result{Status: StatusException, Err: err}
	}
	defer c.hosts.release(host)

	select {
	case c.global <- struct{}{}:
	case <-ctx.Done():
		return Result{Status: StatusException, Err: ctx.Err()}
	}
	defer func() { <-c.global }()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{Status: StatusException, Err: err}
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "*/*")
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.LastModified)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{Status: StatusException, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return Result{Status: StatusNotModified}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Status: StatusHTTPError, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: StatusException, Err: err}
	}

	return Result{
		Status:       StatusOK,
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
}
