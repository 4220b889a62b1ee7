package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/normalize"
	"github.com/sells-group/placesync/internal/store"
)

// IngestOpts selects the batch of one raw ingestion run.
type IngestOpts struct {
	Provider model.Provider
	CitySlug string
	Category string

	// Max caps fetched results; zero uses the fetcher default.
	Max int
}

func (o IngestOpts) validate() error {
	if _, err := model.ParseProvider(o.Provider.String()); err != nil {
		return eris.Wrap(err, "pipeline: ingest")
	}
	if o.CitySlug == "" {
		return eris.New("pipeline: ingest: city slug is required")
	}
	if o.Category == "" {
		return eris.New("pipeline: ingest: category is required")
	}
	return nil
}

func newIngestRun(opts IngestOpts) *model.Run {
	return &model.Run{
		Kind:     model.RunKindIngest,
		Provider: opts.Provider.String(),
		CitySlug: opts.CitySlug,
		Category: opts.Category,
		State:    model.RunStateFetching,
	}
}

// Ingest fetches one provider/city/category batch through the provider's
// fetcher and stores the records in the raw collection.
func (p *Pipeline) Ingest(ctx context.Context, opts IngestOpts) (*model.Run, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	fetcher, ok := p.fetchers[opts.Provider]
	if !ok {
		return nil, eris.Errorf("pipeline: no fetcher configured for provider %q", opts.Provider)
	}

	log := zap.L().With(zap.String("component", "pipeline.ingest"))
	run := newIngestRun(opts)
	return p.execute(ctx, log, run, func() error {
		city, err := p.city(ctx, opts.CitySlug)
		if err != nil {
			return err
		}
		payloads, err := fetcher.Fetch(ctx, city, opts.Category, opts.Max)
		if err != nil {
			return eris.Wrap(err, "pipeline: fetch")
		}
		return p.ingest(ctx, log, run, city, payloads)
	})
}

// IngestRecords stores an already fetched batch of provider-native
// payloads in the raw collection.
func (p *Pipeline) IngestRecords(ctx context.Context, opts IngestOpts, payloads []json.RawMessage) (*model.Run, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "pipeline.ingest"))
	run := newIngestRun(opts)
	return p.execute(ctx, log, run, func() error {
		city, err := p.city(ctx, opts.CitySlug)
		if err != nil {
			return err
		}
		return p.ingest(ctx, log, run, city, payloads)
	})
}

// ingest attaches ingestion metadata to each payload and upserts it by
// (source, native id). Records without a native id are skipped.
func (p *Pipeline) ingest(ctx context.Context, log *zap.Logger, run *model.Run, city *model.City, payloads []json.RawMessage) error {
	n, err := p.registry.Get(model.Provider(run.Provider))
	if err != nil {
		return eris.Wrap(err, "pipeline: ingest")
	}

	p.transition(ctx, log, run, model.RunStateNormalizing)
	now := p.opts.Now()
	raws := make([]model.RawPlace, 0, len(payloads))
	for i, payload := range payloads {
		nativeID, err := n.NativeID(payload)
		if err != nil {
			if errors.Is(err, normalize.ErrMalformedRecord) {
				run.Skipped++
				log.Warn("pipeline: skipping record", zap.Int("index", i), zap.Error(err))
				continue
			}
			return eris.Wrap(err, "pipeline: native id")
		}
		raws = append(raws, model.RawPlace{
			Source:     n.Provider(),
			NativeID:   nativeID,
			CitySlug:   city.Slug,
			CityID:     city.ID,
			CityName:   city.Name,
			State:      city.State,
			StateCode:  city.StateCode,
			Categories: []string{run.Category},
			Payload:    payload,
			UpdatedAt:  now,
		})
	}

	// The raw natural key is (source, native id), which every record
	// carries once it is past normalization.
	p.transition(ctx, log, run, model.RunStateResolving)

	p.transition(ctx, log, run, model.RunStateUpserting)
	for _, raw := range raws {
		outcome, err := upsert(ctx, p.opts, func(ctx context.Context) (store.Outcome, error) {
			return p.store.UpsertRaw(ctx, raw)
		})
		if err != nil {
			return eris.Wrapf(err, "pipeline: upsert raw %s:%s", raw.Source, raw.NativeID)
		}
		count(run, outcome)
	}
	return nil
}

func count(run *model.Run, o store.Outcome) {
	switch o {
	case store.OutcomeInserted:
		run.Inserted++
	case store.OutcomeUpdated:
		run.Updated++
	}
}
