package store

import (
	"context"
	"sort"
	"time"

	"github.com/sells-group/placesync/internal/identity"
	"github.com/sells-group/placesync/internal/model"
)

// Outcome reports what an upsert did.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Filter selects raw or processed places. Empty fields match everything.
// Category matches membership in the category set, never the joined string.
type Filter struct {
	CitySlug string `json:"city_slug,omitempty"`
	Category string `json:"category,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind         model.RunKind  `json:"kind,omitempty"`
	State        model.RunState `json:"state,omitempty"`
	StartedAfter time.Time      `json:"started_after,omitempty"`
	Limit        int            `json:"limit,omitempty"`
}

// NaturalKey locates an existing processed place for upsert. SourceKeys
// holds "provider:native_id" pairs and takes precedence, then IdentityKey.
// CitySlug and Name are only consulted when there are no source keys.
type NaturalKey struct {
	SourceID    string
	SourceKeys  []string
	IdentityKey string
	CitySlug    string
	Name        string
}

// BySource reports whether the key matches on provider identifiers.
func (k NaturalKey) BySource() bool { return len(k.SourceKeys) > 0 }

type placeLookup int

const (
	lookupSource placeLookup = iota + 1
	lookupIdentity
	lookupCityName
)

// lookups returns the match steps for k in the order they are tried. The
// first step that finds a row wins.
func (k NaturalKey) lookups() []placeLookup {
	var steps []placeLookup
	if k.BySource() {
		steps = append(steps, lookupSource)
	}
	if k.IdentityKey != "" {
		steps = append(steps, lookupIdentity)
	}
	if !k.BySource() && k.CitySlug != "" && k.Name != "" {
		steps = append(steps, lookupCityName)
	}
	return steps
}

// NaturalKeyFor derives the processed natural key of p. It returns false
// when no key can be constructed, in which case p is always inserted.
func NaturalKeyFor(p *model.Place) (NaturalKey, bool) {
	k := NaturalKey{SourceID: p.SourceID, CitySlug: p.CitySlug, Name: p.Name}
	if p.CitySlug != "" && p.Name != "" {
		k.IdentityKey = identity.Key(p)
	}
	if p.SourceID != "" {
		k.SourceKeys = append(k.SourceKeys, p.SourceID)
	}
	providers := make([]string, 0, len(p.SourceIDs))
	for provider := range p.SourceIDs {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	for _, provider := range providers {
		id := p.SourceIDs[provider]
		if id == "" {
			continue
		}
		if key := provider + ":" + id; key != p.SourceID {
			k.SourceKeys = append(k.SourceKeys, key)
		}
	}
	return k, len(k.lookups()) > 0
}

// Store is the reconciliation store: cities, the raw per-provider
// collection, the processed collection and the run log.
type Store interface {
	// Cities
	GetCity(ctx context.Context, slug string) (*model.City, error)
	UpsertCity(ctx context.Context, city *model.City) error
	ListCities(ctx context.Context) ([]model.City, error)

	// Raw places, keyed by (source, native id)
	FindRaw(ctx context.Context, source model.Provider, nativeID string) (*model.RawPlace, error)
	UpsertRaw(ctx context.Context, raw model.RawPlace) (Outcome, error)
	QueryRaw(ctx context.Context, filter Filter) ([]model.RawPlace, error)

	// Processed places
	FindPlace(ctx context.Context, key NaturalKey) (*model.Place, error)
	UpsertPlace(ctx context.Context, place *model.Place) (Outcome, error)
	QueryPlaces(ctx context.Context, filter Filter) ([]model.Place, error)
	NearPlaces(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]model.Place, error)
	ReplaceAll(ctx context.Context) error

	// Runs
	StartRun(ctx context.Context, run *model.Run) error
	UpdateRunState(ctx context.Context, runID string, state model.RunState) error
	FinishRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// categoryTags is the indexed category set of a place.
func categoryTags(p *model.Place) []string {
	tags := make([]string, 0, 4)
	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			tags = append(tags, s)
		}
	}
	add(p.Category)
	for _, c := range p.CategoryList() {
		add(c)
	}
	for _, c := range p.SearchCategories {
		add(c)
	}
	return tags
}

func defaultLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
