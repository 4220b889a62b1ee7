// Package pipeline drives raw ingestion and cross-source combine runs:
// fetch, normalize, resolve identity, merge and upsert.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/normalize"
	"github.com/sells-group/placesync/internal/resilience"
	"github.com/sells-group/placesync/internal/store"
)

// ErrCityNotFound is returned when a run names a city slug with no city
// record. The run aborts before touching any place.
var ErrCityNotFound = errors.New("city not found")

// Fetcher collects provider-native records for one city and category.
type Fetcher interface {
	Provider() model.Provider
	Fetch(ctx context.Context, city *model.City, category string, maxResults int) ([]json.RawMessage, error)
}

// Options tunes a Pipeline. Zero values select the defaults, except
// UpsertRetries where zero disables retries.
type Options struct {
	// NormalizeWorkers bounds parallel normalization in combine runs.
	NormalizeWorkers int

	// UpsertRetries is the number of extra attempts for an upsert that
	// fails with store.ErrStoreUnavailable.
	UpsertRetries int

	// RetryBackoff is the initial delay between upsert attempts.
	RetryBackoff time.Duration

	// ProviderOrder fixes the combine processing order. Providers not
	// listed sort after the listed ones, by name.
	ProviderOrder []model.Provider

	// Now stamps normalized records. Defaults to time.Now in UTC.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.NormalizeWorkers <= 0 {
		o.NormalizeWorkers = 4
	}
	if o.UpsertRetries < 0 {
		o.UpsertRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 250 * time.Millisecond
	}
	if len(o.ProviderOrder) == 0 {
		o.ProviderOrder = model.Providers
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Pipeline orchestrates runs against an injected store.
type Pipeline struct {
	store    store.Store
	registry *normalize.Registry
	fetchers map[model.Provider]Fetcher
	metrics  *Metrics
	opts     Options
}

// New creates a Pipeline. metrics may be nil.
func New(st store.Store, registry *normalize.Registry, fetchers []Fetcher, metrics *Metrics, opts Options) *Pipeline {
	fm := make(map[model.Provider]Fetcher, len(fetchers))
	for _, f := range fetchers {
		fm[f.Provider()] = f
	}
	return &Pipeline{
		store:    st,
		registry: registry,
		fetchers: fm,
		metrics:  metrics,
		opts:     opts.withDefaults(),
	}
}

// execute records run in the run log, calls fn and records the terminal
// state. fn reports progress through the counters on run.
func (p *Pipeline) execute(ctx context.Context, log *zap.Logger, run *model.Run, fn func() error) (*model.Run, error) {
	start := time.Now()
	if err := p.store.StartRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: run started",
		zap.String("provider", run.Provider),
		zap.String("city_slug", run.CitySlug),
		zap.String("category", run.Category),
		zap.Bool("replace", run.Replace),
	)

	runErr := fn()
	if runErr != nil {
		run.State = model.RunStateError
		run.Error = runErr.Error()
	} else {
		run.State = model.RunStateDone
	}

	elapsed := time.Since(start)
	p.metrics.finishRun(string(run.Kind), string(run.State), elapsed.Seconds())
	p.metrics.addRecords(string(run.Kind), OutcomeInserted, run.Inserted)
	p.metrics.addRecords(string(run.Kind), OutcomeUpdated, run.Updated)
	p.metrics.addRecords(string(run.Kind), OutcomeSkipped, run.Skipped)
	p.metrics.addRecords(string(run.Kind), OutcomeMerged, run.Merged)

	// The run context may be cancelled; the run log is still written.
	if err := p.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("pipeline: failed to record run outcome", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("state", string(run.State)),
		zap.Int("inserted", run.Inserted),
		zap.Int("updated", run.Updated),
		zap.Int("skipped", run.Skipped),
		zap.Int("merged", run.Merged),
		zap.Duration("elapsed", elapsed),
	}
	if runErr != nil {
		log.Error("pipeline: run failed", append(fields, zap.Error(runErr))...)
		return run, runErr
	}
	log.Info("pipeline: run complete", fields...)
	return run, nil
}

// transition moves run to state. A failed run log write is not fatal.
func (p *Pipeline) transition(ctx context.Context, log *zap.Logger, run *model.Run, state model.RunState) {
	run.State = state
	log.Debug("pipeline: state", zap.String("state", string(state)))
	if err := p.store.UpdateRunState(ctx, run.ID, state); err != nil {
		log.Warn("pipeline: failed to update run state", zap.String("state", string(state)), zap.Error(err))
	}
}

// city loads the city for slug or fails with ErrCityNotFound.
func (p *Pipeline) city(ctx context.Context, slug string) (*model.City, error) {
	c, err := p.store.GetCity(ctx, slug)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: get city %s", slug)
	}
	if c == nil {
		return nil, eris.Wrapf(ErrCityNotFound, "pipeline: city %q", slug)
	}
	return c, nil
}

// upsert runs fn, retrying while the store is unavailable.
func upsert[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    opts.UpsertRetries + 1,
		InitialBackoff: opts.RetryBackoff,
		MaxBackoff:     10 * opts.RetryBackoff,
		Multiplier:     2,
		JitterFraction: 0.1,
		ShouldRetry: func(err error) bool {
			return errors.Is(err, store.ErrStoreUnavailable)
		},
		OnRetry: resilience.RetryLogger("pipeline", "upsert"),
	}, fn)
}
