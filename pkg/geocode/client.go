// Package geocode resolves city names to coordinates and region metadata
// via the Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/placesync/internal/resilience"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "placesync/1.0"
)

// Client looks up cities.
type Client interface {
	// LookupCity returns the best match for name in country, or nil when
	// Nominatim has no match.
	LookupCity(ctx context.Context, name, country string) (*CityResult, error)
}

// CityResult holds the geocoded city.
type CityResult struct {
	Name        string
	DisplayName string
	State       string
	StateCode   string
	Country     string
	CountryCode string
	Latitude    float64
	Longitude   float64
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		ISO3166Lvl4 string `json:"ISO3166-2-lvl4"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the Nominatim base URL.
func WithBaseURL(url string) Option {
	return func(g *geocoder) {
		g.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header Nominatim requires.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		limiter:    rate.NewLimiter(1, 1), // Nominatim usage policy: 1 req/s
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.retry.OnRetry = resilience.RetryLogger("geocode", "nominatim")
	return g
}

func (g *geocoder) LookupCity(ctx context.Context, name, country string) (*CityResult, error) {
	params := url.Values{
		"city":           {name},
		"format":         {"json"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}
	if country != "" {
		params.Set("country", country)
	}

	results, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) ([]searchResult, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", g.userAgent)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response")
		}
		if err := resilience.CheckStatus("nominatim", resp.StatusCode, body); err != nil {
			return nil, err
		}
		var out []searchResult
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "unmarshal response")
		}
		return out, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: lookup %q", name)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return toCityResult(name, results[0])
}

func toCityResult(query string, r searchResult) (*CityResult, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lat %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse lon %q", r.Lon)
	}

	name := r.Address.City
	for _, alt := range []string{r.Address.Town, r.Address.Village, query} {
		if name != "" {
			break
		}
		name = alt
	}

	return &CityResult{
		Name:        name,
		DisplayName: r.DisplayName,
		State:       r.Address.State,
		StateCode:   stateCode(r.Address.ISO3166Lvl4),
		Country:     r.Address.Country,
		CountryCode: strings.ToUpper(r.Address.CountryCode),
		Latitude:    lat,
		Longitude:   lng,
	}, nil
}

// stateCode extracts the subdivision from an ISO 3166-2 code ("US-WA" -> "WA").
func stateCode(iso string) string {
	if i := strings.IndexByte(iso, '-'); i >= 0 {
		return iso[i+1:]
	}
	return ""
}
