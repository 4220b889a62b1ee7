// Package google is a client for the Google Places web service (text search
// and place details).
package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/placesync/internal/resilience"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// DetailsFields is the field mask requested from place details.
const DetailsFields = "name,place_id,formatted_address,formatted_phone_number,international_phone_number," +
	"website,rating,user_ratings_total,price_level,opening_hours,geometry,photos,address_components," +
	"business_status,types,url,utc_offset,vicinity,wheelchair_accessible_entrance"

// Client performs Google Places API operations. Results are returned as the
// provider-native JSON objects.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
	Details(ctx context.Context, placeID string) (json.RawMessage, error)
}

// TextSearchRequest is one page of a text search. PageToken continues a
// previous search and supersedes the other fields.
type TextSearchRequest struct {
	Query     string
	Type      string
	PageToken string
}

// TextSearchResponse is one page of text search results.
type TextSearchResponse struct {
	Results       []json.RawMessage `json:"results"`
	NextPageToken string            `json:"next_page_token"`
	Status        string            `json:"status"`
	ErrorMessage  string            `json:"error_message"`
}

type detailsResponse struct {
	Result       json.RawMessage `json:"result"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
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

// NewClient creates a Google Places API client.
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
		c.retry.OnRetry = resilience.RetryLogger("google", "places")
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error) {
	params := url.Values{"key": {c.apiKey}}
	if req.PageToken != "" {
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("query", req.Query)
		if req.Type != "" {
			params.Set("type", req.Type)
		}
	}

	var resp TextSearchResponse
	err := c.get(ctx, "/textsearch/json", params, &resp, func() error {
		return checkAPIStatus(resp.Status, resp.ErrorMessage, req.PageToken != "")
	})
	if err != nil {
		return nil, eris.Wrap(err, "google: text search")
	}
	return &resp, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (json.RawMessage, error) {
	params := url.Values{
		"place_id": {placeID},
		"fields":   {DetailsFields},
		"key":      {c.apiKey},
	}

	var resp detailsResponse
	err := c.get(ctx, "/details/json", params, &resp, func() error {
		return checkAPIStatus(resp.Status, resp.ErrorMessage, false)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "google: details %s", placeID)
	}
	return resp.Result, nil
}

// get performs a rate-limited GET, decodes the body into dst and runs check
// on it. Transient HTTP and API statuses are retried.
func (c *httpClient) get(ctx context.Context, path string, params url.Values, dst any, check func() error) error {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response")
		}
		if err := resilience.CheckStatus("google", resp.StatusCode, data); err != nil {
			return err
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
		return check()
	})
}

// checkAPIStatus maps the status field of a 200 response. A fresh page
// token reports INVALID_REQUEST until it becomes valid, so that case is
// transient when paging.
func checkAPIStatus(status, message string, paging bool) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return resilience.NewTransientError(eris.Errorf("status %s: %s", status, message), http.StatusTooManyRequests)
	case "INVALID_REQUEST":
		if paging {
			return resilience.NewTransientError(eris.Errorf("status %s: page token not ready", status), 0)
		}
	}
	return eris.Errorf("status %s: %s", status, message)
}
