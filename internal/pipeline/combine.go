package pipeline

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/placesync/internal/merge"
	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/normalize"
	"github.com/sells-group/placesync/internal/store"
)

// CombineOpts selects the raw records folded by one combine run. Empty
// fields mean "all".
type CombineOpts struct {
	CitySlug string
	Category string

	// Replace drops and rebuilds the processed collection before writing.
	Replace bool
}

// Combine normalizes the selected raw records from every provider, folds
// those sharing an identity key and upserts the survivors into the
// processed collection.
func (p *Pipeline) Combine(ctx context.Context, opts CombineOpts) (*model.Run, error) {
	log := zap.L().With(zap.String("component", "pipeline.combine"))
	run := &model.Run{
		Kind:     model.RunKindCombine,
		CitySlug: opts.CitySlug,
		Category: opts.Category,
		Replace:  opts.Replace,
		State:    model.RunStateFetching,
	}
	return p.execute(ctx, log, run, func() error {
		if opts.CitySlug != "" {
			if _, err := p.city(ctx, opts.CitySlug); err != nil {
				return err
			}
		}

		raws, err := p.store.QueryRaw(ctx, store.Filter{CitySlug: opts.CitySlug, Category: opts.Category})
		if err != nil {
			return eris.Wrap(err, "pipeline: load raw records")
		}
		p.sortRaw(raws)
		log.Info("pipeline: raw records loaded", zap.Int("records", len(raws)))

		p.transition(ctx, log, run, model.RunStateNormalizing)
		places, skipped, err := p.normalizeAll(ctx, log, raws)
		if err != nil {
			return err
		}
		run.Skipped = skipped

		p.transition(ctx, log, run, model.RunStateResolving)
		survivors, merged := merge.Fold(places)
		run.Merged = merged

		p.transition(ctx, log, run, model.RunStateUpserting)
		if opts.Replace {
			if err := p.store.ReplaceAll(ctx); err != nil {
				return eris.Wrap(err, "pipeline: replace processed places")
			}
		}
		for _, place := range survivors {
			outcome, err := upsert(ctx, p.opts, func(ctx context.Context) (store.Outcome, error) {
				return p.store.UpsertPlace(ctx, place)
			})
			if err != nil {
				return eris.Wrapf(err, "pipeline: upsert place %q", place.Name)
			}
			count(run, outcome)
		}
		return nil
	})
}

// sortRaw orders raw records by configured provider rank, then city slug,
// then native id. The combine merge is order dependent, so this order
// decides which provider's scalar fields win.
func (p *Pipeline) sortRaw(raws []model.RawPlace) {
	rank := make(map[model.Provider]int, len(p.opts.ProviderOrder))
	for i, pr := range p.opts.ProviderOrder {
		if _, ok := rank[pr]; !ok {
			rank[pr] = i
		}
	}
	rankOf := func(pr model.Provider) int {
		if r, ok := rank[pr]; ok {
			return r
		}
		return len(rank)
	}
	slices.SortStableFunc(raws, func(a, b model.RawPlace) int {
		return cmp.Or(
			cmp.Compare(rankOf(a.Source), rankOf(b.Source)),
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.CitySlug, b.CitySlug),
			cmp.Compare(a.NativeID, b.NativeID),
		)
	})
}

// normalizeAll normalizes raws in parallel, preserving their order.
// Malformed records are skipped and counted.
func (p *Pipeline) normalizeAll(ctx context.Context, log *zap.Logger, raws []model.RawPlace) ([]*model.Place, int, error) {
	now := p.opts.Now()
	out := make([]*model.Place, len(raws))
	malformed := make([]error, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.NormalizeWorkers)
	for i := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			place, err := p.registry.Normalize(raws[i], now)
			if err != nil {
				if errors.Is(err, normalize.ErrMalformedRecord) {
					malformed[i] = err
					return nil
				}
				return eris.Wrapf(err, "pipeline: normalize %s:%s", raws[i].Source, raws[i].NativeID)
			}
			out[i] = place
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	places := make([]*model.Place, 0, len(out))
	skipped := 0
	for i, place := range out {
		if malformed[i] != nil {
			skipped++
			log.Warn("pipeline: skipping malformed record",
				zap.String("source", raws[i].Source.String()),
				zap.String("native_id", raws[i].NativeID),
				zap.Error(malformed[i]),
			)
			continue
		}
		places = append(places, place)
	}
	return places, skipped, nil
}
