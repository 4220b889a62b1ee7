// Package yelp is a client for the Yelp Fusion business search API.
package yelp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/placesync/internal/resilience"
)

const (
	defaultBaseURL = "https://api.yelp.com/v3"

	// MaxLimit is the largest page size the search endpoint accepts.
	MaxLimit = 50
)

// Client performs Yelp Fusion API operations. Businesses are returned as
// the provider-native JSON objects.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	Business(ctx context.Context, id string) (json.RawMessage, error)
}

// SearchRequest is one page of a business search.
type SearchRequest struct {
	Location   string
	Categories string
	Limit      int
	Offset     int
}

// SearchResponse is one page of business search results.
type SearchResponse struct {
	Businesses []json.RawMessage `json:"businesses"`
	Total      int               `json:"total"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a Yelp Fusion API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(5, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("yelp", "fusion")
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	params := url.Values{
		"location": {req.Location},
		"limit":    {strconv.Itoa(limit)},
		"offset":   {strconv.Itoa(req.Offset)},
		"sort_by":  {"best_match"},
	}
	if req.Categories != "" {
		params.Set("categories", req.Categories)
	}

	var resp SearchResponse
	if err := c.get(ctx, "/businesses/search?"+params.Encode(), &resp); err != nil {
		return nil, eris.Wrap(err, "yelp: search")
	}
	return &resp, nil
}

func (c *httpClient) Business(ctx context.Context, id string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.get(ctx, "/businesses/"+url.PathEscape(id), &resp); err != nil {
		return nil, eris.Wrapf(err, "yelp: business %s", id)
	}
	return resp, nil
}

// get performs a rate-limited, authenticated GET and decodes the body into
// dst. Transient HTTP statuses are retried.
func (c *httpClient) get(ctx context.Context, pathAndQuery string, dst any) error {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response")
		}
		if err := resilience.CheckStatus("yelp", resp.StatusCode, data); err != nil {
			return err
		}
		return eris.Wrap(json.Unmarshal(data, dst), "unmarshal response")
	})
}
