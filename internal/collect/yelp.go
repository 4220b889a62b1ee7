package collect

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/pkg/yelp"
)

// DefaultYelpMax is the most businesses a search pages through.
const DefaultYelpMax = 100

// YelpFetcher collects businesses from Yelp search.
type YelpFetcher struct {
	Client yelp.Client
	Max    int
}

// NewYelpFetcher creates a fetcher with the default limit.
func NewYelpFetcher(c yelp.Client) *YelpFetcher {
	return &YelpFetcher{Client: c, Max: DefaultYelpMax}
}

// Provider returns model.ProviderYelp.
func (f *YelpFetcher) Provider() model.Provider { return model.ProviderYelp }

// Fetch pages the business search by offset until max results or a short
// page, then enriches each business with its details.
func (f *YelpFetcher) Fetch(ctx context.Context, city *model.City, category string, maxResults int) ([]json.RawMessage, error) {
	if maxResults <= 0 {
		maxResults = f.Max
	}
	if maxResults <= 0 {
		maxResults = DefaultYelpMax
	}
	log := zap.L().With(zap.String("component", "collect.yelp"))
	log.Info("searching", append(cityFields(city), zap.String("category", category), zap.Int("max", maxResults))...)

	var results []json.RawMessage
	for len(results) < maxResults {
		limit := min(yelp.MaxLimit, maxResults-len(results))
		resp, err := f.Client.Search(ctx, yelp.SearchRequest{
			Location:   city.SearchLocation(),
			Categories: category,
			Limit:      limit,
			Offset:     len(results),
		})
		if err != nil {
			return nil, eris.Wrapf(err, "collect: yelp search %s", category)
		}
		results = append(results, resp.Businesses...)
		log.Debug("page fetched", zap.Int("page_results", len(resp.Businesses)), zap.Int("total", len(results)))

		if len(resp.Businesses) < limit || (resp.Total > 0 && len(results) >= resp.Total) {
			break
		}
	}

	enriched, err := enrich(ctx, log, results,
		func(rec json.RawMessage) string { return stringField(rec, "id") },
		f.Client.Business,
	)
	if err != nil {
		return nil, eris.Wrap(err, "collect: yelp details")
	}
	log.Info("collected", zap.Int("records", len(enriched)))
	return enriched, nil
}
