package main

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/placesync/internal/collect"
	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/normalize"
	"github.com/sells-group/placesync/internal/pipeline"
	"github.com/sells-group/placesync/internal/store"
	"github.com/sells-group/placesync/pkg/google"
	"github.com/sells-group/placesync/pkg/yelp"
)

// initFetchers builds a fetcher for every provider with an API key.
func initFetchers() []pipeline.Fetcher {
	var fetchers []pipeline.Fetcher
	if cfg.Google.Key != "" {
		f := collect.NewGoogleFetcher(google.NewClient(cfg.Google.Key,
			google.WithBaseURL(cfg.Google.BaseURL),
			google.WithRateLimit(cfg.Google.RatePerSec),
		))
		if cfg.Google.MaxResults > 0 {
			f.Max = cfg.Google.MaxResults
		}
		f.PageDelay = time.Duration(cfg.Google.PageDelayMS) * time.Millisecond
		fetchers = append(fetchers, f)
	}
	if cfg.Yelp.Key != "" {
		f := collect.NewYelpFetcher(yelp.NewClient(cfg.Yelp.Key,
			yelp.WithBaseURL(cfg.Yelp.BaseURL),
			yelp.WithRateLimit(cfg.Yelp.RatePerSec),
		))
		if cfg.Yelp.MaxResults > 0 {
			f.Max = cfg.Yelp.MaxResults
		}
		fetchers = append(fetchers, f)
	}
	return fetchers
}

func parseProviderOrder(names []string) ([]model.Provider, error) {
	out := make([]model.Provider, 0, len(names))
	for _, n := range names {
		p, err := model.ParseProvider(n)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline.provider_order")
		}
		out = append(out, p)
	}
	return out, nil
}

// initPipeline wires the pipeline to st using the loaded config.
func initPipeline(st store.Store, fetchers []pipeline.Fetcher, metrics *pipeline.Metrics) (*pipeline.Pipeline, error) {
	order, err := parseProviderOrder(cfg.Pipeline.ProviderOrder)
	if err != nil {
		return nil, err
	}
	return pipeline.New(st, normalize.DefaultRegistry(), fetchers, metrics, pipeline.Options{
		NormalizeWorkers: cfg.Pipeline.NormalizeWorkers,
		UpsertRetries:    cfg.Pipeline.UpsertRetries,
		ProviderOrder:    order,
	}), nil
}
