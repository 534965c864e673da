// Package site fetches listing and detail pages over HTTP and extracts
// records from them with CSS selectors.
package site

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// ClientOptions configures a Client.
type ClientOptions struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// RateLimit is the request rate per second; zero means unlimited.
	RateLimit float64
}

// Client fetches HTML documents.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Missing reports whether the page does not exist.
func (e *StatusError) Missing() bool {
	return e.Status == http.StatusNotFound || e.Status == http.StatusGone
}

// NewClient creates a Client.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	http := resty.New().SetTimeout(timeout)
	if opts.UserAgent != "" {
		http.SetHeader("User-Agent", opts.UserAgent)
	}
	if len(opts.Headers) > 0 {
		http.SetHeaders(opts.Headers)
	}

	c := &Client{http: http}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// Get fetches target and parses it as HTML. The returned URL is the final
// request URL, for resolving relative links.
func (c *Client) Get(ctx context.Context, target string) (*goquery.Document, *url.URL, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	res, err := c.http.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		return nil, nil, err
	}
	if res.IsError() {
		return nil, nil, &StatusError{URL: target, Status: res.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", target, err)
	}

	base, _ := url.Parse(target)
	if raw := res.RawResponse; raw != nil && raw.Request != nil {
		base = raw.Request.URL
	}
	return doc, base, nil
}
