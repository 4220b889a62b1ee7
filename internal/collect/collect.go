// Package collect pages through provider search APIs and returns the
// provider-native records, enriched with details, for one city and
// category.
package collect

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/placesync/internal/model"
)

// detailsConcurrency bounds in-flight detail lookups; the clients still
// enforce their own rate limits.
const detailsConcurrency = 4

// overlay returns base with every top-level key of details written over it.
// A non-object on either side leaves base untouched.
func overlay(base, details json.RawMessage) (json.RawMessage, error) {
	if len(details) == 0 {
		return base, nil
	}
	var b, d map[string]json.RawMessage
	if err := json.Unmarshal(base, &b); err != nil || b == nil {
		return base, nil //nolint:nilerr
	}
	if err := json.Unmarshal(details, &d); err != nil {
		return base, nil //nolint:nilerr
	}
	for k, v := range d {
		b[k] = v
	}
	out, err := json.Marshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "collect: marshal enriched record")
	}
	return out, nil
}

// enrich fetches details for every record concurrently and overlays them.
// A failed lookup keeps the search record as is.
func enrich(ctx context.Context, log *zap.Logger, records []json.RawMessage,
	idOf func(json.RawMessage) string,
	details func(ctx context.Context, id string) (json.RawMessage, error),
) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailsConcurrency)

	for i, rec := range records {
		out[i] = rec
		id := idOf(rec)
		if id == "" {
			continue
		}
		g.Go(func() error {
			d, err := details(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("details lookup failed, keeping search result", zap.String("id", id), zap.Error(err))
				return nil
			}
			merged, err := overlay(rec, d)
			if err != nil {
				return err
			}
			out[i] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// stringField extracts a top-level string field from a JSON object.
func stringField(rec json.RawMessage, key string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(rec, &m); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(m[key], &s); err != nil {
		return ""
	}
	return s
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cityFields(city *model.City) []zap.Field {
	return []zap.Field{zap.String("city_slug", city.Slug), zap.String("location", city.SearchLocation())}
}
