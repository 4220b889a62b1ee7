package collect

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/pkg/google"
)

const (
	// DefaultGoogleMax is the most results text search will page through.
	DefaultGoogleMax = 60

	// DefaultGooglePageDelay is the wait before a next_page_token is usable.
	DefaultGooglePageDelay = 2 * time.Second
)

// GoogleFetcher collects places from Google text search.
type GoogleFetcher struct {
	Client    google.Client
	Max       int
	PageDelay time.Duration
}

// NewGoogleFetcher creates a fetcher with the default limits.
func NewGoogleFetcher(c google.Client) *GoogleFetcher {
	return &GoogleFetcher{Client: c, Max: DefaultGoogleMax, PageDelay: DefaultGooglePageDelay}
}

// Provider returns model.ProviderGoogle.
func (f *GoogleFetcher) Provider() model.Provider { return model.ProviderGoogle }

// Fetch searches "<category> in <city>" restricted to the category type,
// follows page tokens up to max results and enriches each with details.
func (f *GoogleFetcher) Fetch(ctx context.Context, city *model.City, category string, maxResults int) ([]json.RawMessage, error) {
	if maxResults <= 0 {
		maxResults = f.Max
	}
	if maxResults <= 0 {
		maxResults = DefaultGoogleMax
	}
	log := zap.L().With(zap.String("component", "collect.google"))
	log.Info("searching", append(cityFields(city), zap.String("category", category), zap.Int("max", maxResults))...)

	req := google.TextSearchRequest{
		Query: category + " in " + city.SearchLocation(),
		Type:  category,
	}
	var results []json.RawMessage
	for len(results) < maxResults {
		resp, err := f.Client.TextSearch(ctx, req)
		if err != nil {
			return nil, eris.Wrapf(err, "collect: google search %s", category)
		}
		results = append(results, resp.Results...)
		log.Debug("page fetched", zap.Int("page_results", len(resp.Results)), zap.Int("total", len(results)))

		if resp.NextPageToken == "" {
			break
		}
		if err := sleep(ctx, f.PageDelay); err != nil {
			return nil, eris.Wrap(err, "collect: google page delay")
		}
		req = google.TextSearchRequest{PageToken: resp.NextPageToken}
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	enriched, err := enrich(ctx, log, results,
		func(rec json.RawMessage) string { return stringField(rec, "place_id") },
		f.Client.Details,
	)
	if err != nil {
		return nil, eris.Wrap(err, "collect: google details")
	}
	log.Info("collected", zap.Int("records", len(enriched)))
	return enriched, nil
}
