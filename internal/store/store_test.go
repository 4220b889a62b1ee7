package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placesync/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func rawRecord(p model.Provider, id, category string) model.RawPlace {
	return model.RawPlace{
		Source:     p,
		NativeID:   id,
		CitySlug:   "seattle",
		CityID:     "city-1",
		CityName:   "Seattle",
		State:      "Washington",
		StateCode:  "WA",
		Categories: []string{category},
		Payload:    json.RawMessage(fmt.Sprintf(`{"id":%q,"name":"Place %s"}`, id, id)),
		UpdatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func processed(provider, nativeID, name string) *model.Place {
	p := &model.Place{
		Name:      name,
		CitySlug:  "seattle",
		CityName:  "Seattle",
		Hours:     []string{},
		Sources:   []string{provider},
		SourceIDs: map[string]string{},
		Location:  model.NewLocation(47.6062, -122.3321),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if nativeID != "" {
		p.SourceIDs[provider] = nativeID
		p.SourceID = provider + ":" + nativeID
	}
	return p
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("RawIdempotence", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		batch := []model.RawPlace{
			rawRecord(model.ProviderGoogle, "a", "gym"),
			rawRecord(model.ProviderGoogle, "b", "gym"),
			rawRecord(model.ProviderYelp, "a", "gym"),
		}

		for _, want := range []Outcome{OutcomeInserted, OutcomeUpdated} {
			for _, r := range batch {
				got, err := s.UpsertRaw(ctx, r)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		}

		all, err := s.QueryRaw(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("RawCategoryAccumulation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertRaw(ctx, rawRecord(model.ProviderYelp, "joe", "gym"))
		require.NoError(t, err)
		_, err = s.UpsertRaw(ctx, rawRecord(model.ProviderYelp, "joe", "spa"))
		require.NoError(t, err)

		got, err := s.FindRaw(ctx, model.ProviderYelp, "joe")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.ElementsMatch(t, []string{"gym", "spa"}, got.Categories)

		all, err := s.QueryRaw(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("RawWholesaleOverwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := rawRecord(model.ProviderGoogle, "g", "gym")
		first.Payload = json.RawMessage(`{"place_id":"g","name":"Old","website":"http://old"}`)
		_, err := s.UpsertRaw(ctx, first)
		require.NoError(t, err)

		second := rawRecord(model.ProviderGoogle, "g", "gym")
		second.Payload = json.RawMessage(`{"place_id":"g","name":"New"}`)
		second.UpdatedAt = first.UpdatedAt.Add(time.Hour)
		_, err = s.UpsertRaw(ctx, second)
		require.NoError(t, err)

		got, err := s.FindRaw(ctx, model.ProviderGoogle, "g")
		require.NoError(t, err)
		assert.JSONEq(t, `{"place_id":"g","name":"New"}`, string(got.Payload))
		assert.True(t, second.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("RawFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		other := rawRecord(model.ProviderGoogle, "p", "park")
		other.CitySlug = "austin"
		for _, r := range []model.RawPlace{
			rawRecord(model.ProviderYelp, "y", "gym"),
			rawRecord(model.ProviderGoogle, "g", "gym"),
			other,
		} {
			_, err := s.UpsertRaw(ctx, r)
			require.NoError(t, err)
		}

		gyms, err := s.QueryRaw(ctx, Filter{Category: "gym"})
		require.NoError(t, err)
		require.Len(t, gyms, 2)
		assert.Equal(t, model.ProviderGoogle, gyms[0].Source, "ordered by source")

		austin, err := s.QueryRaw(ctx, Filter{CitySlug: "austin", Category: "park"})
		require.NoError(t, err)
		assert.Len(t, austin, 1)

		none, err := s.QueryRaw(ctx, Filter{CitySlug: "austin", Category: "gym"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("FindRawMissing", func(t *testing.T) {
		s := newStore(t)
		got, err := s.FindRaw(context.Background(), model.ProviderGoogle, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("PlaceUpsertBySourceID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := processed("yelp", "y1", "Joe's Gym")
		first.Rating = 4.5
		out, err := s.UpsertPlace(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, OutcomeInserted, out)
		assert.Empty(t, first.ID, "caller's record is not modified")

		second := processed("yelp", "y1", "Joe's Gym")
		second.Website = "http://joes.gym"
		second.Rating = 3.0
		out, err = s.UpsertPlace(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, out)

		all, err := s.QueryPlaces(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.NotEmpty(t, all[0].ID)
		assert.Equal(t, 4.5, all[0].Rating)
		assert.Equal(t, "http://joes.gym", all[0].Website)
		assert.Equal(t, -122.3321, all[0].Location.Lng)
		assert.Equal(t, 47.6062, all[0].Location.Lat)
	})

	t.Run("PlaceUpsertBySecondarySourceID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		combined := processed("yelp", "y1", "Joe's Gym")
		combined.SourceIDs["google"] = "g1"
		combined.Sources = []string{"yelp", "google"}
		_, err := s.UpsertPlace(ctx, combined)
		require.NoError(t, err)

		out, err := s.UpsertPlace(ctx, processed("google", "g1", "Joe's Gym Seattle"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, out)

		got, err := s.FindPlace(ctx, NaturalKey{SourceKeys: []string{"google:g1"}})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Joe's Gym", got.Name)
		assert.Equal(t, "yelp:y1", got.SourceID)
	})

	t.Run("PlaceUpsertByCityAndName", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := processed("google", "", "Corner Park")
		out, err := s.UpsertPlace(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, OutcomeInserted, out)

		b := processed("yelp", "", "Corner Park")
		b.Phone = "555"
		out, err = s.UpsertPlace(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, out)

		got, err := s.FindPlace(ctx, NaturalKey{CitySlug: "seattle", Name: "Corner Park"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "555", got.Phone)
		assert.ElementsMatch(t, []string{"google", "yelp"}, got.Sources)
	})

	t.Run("PlaceUpsertByIdentityKey", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		out, err := s.UpsertPlace(ctx, processed("google", "g1", "Joe's Gym"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeInserted, out)

		yelp := processed("yelp", "y1", "JOE'S GYM")
		yelp.Location = model.NewLocation(47.6061, -122.3320)
		yelp.Website = "http://joes.gym"
		out, err = s.UpsertPlace(ctx, yelp)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, out)

		all, err := s.QueryPlaces(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Joe's Gym", all[0].Name)
		assert.Equal(t, "google:g1", all[0].SourceID)
		assert.Equal(t, map[string]string{"google": "g1", "yelp": "y1"}, all[0].SourceIDs)
		assert.Equal(t, "http://joes.gym", all[0].Website)

		got, err := s.FindPlace(ctx, NaturalKey{SourceKeys: []string{"yelp:y1"}})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, all[0].ID, got.ID)
	})

	t.Run("PlaceDifferentCoordinatesNotMerged", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertPlace(ctx, processed("google", "g1", "Starbucks"))
		require.NoError(t, err)
		other := processed("yelp", "y1", "Starbucks")
		other.Location = model.NewLocation(47.6205, -122.3493)
		out, err := s.UpsertPlace(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, OutcomeInserted, out)

		all, err := s.QueryPlaces(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("PlaceWithoutKeyAlwaysInserts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := processed("google", "", "Nameless")
		p.CitySlug = ""
		for i := 0; i < 2; i++ {
			out, err := s.UpsertPlace(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, OutcomeInserted, out)
		}
		all, err := s.QueryPlaces(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("PlaceCategoryFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		gym := processed("google", "g1", "Gym")
		gym.Category = "gym"
		gym.Categories = "gym, health"
		spa := processed("google", "g2", "Spa")
		spa.SearchCategories = []string{"spa"}
		for _, p := range []*model.Place{gym, spa} {
			_, err := s.UpsertPlace(ctx, p)
			require.NoError(t, err)
		}

		health, err := s.QueryPlaces(ctx, Filter{Category: "health"})
		require.NoError(t, err)
		require.Len(t, health, 1)
		assert.Equal(t, "Gym", health[0].Name)

		joined, err := s.QueryPlaces(ctx, Filter{Category: "gym, health"})
		require.NoError(t, err)
		assert.Empty(t, joined)

		spas, err := s.QueryPlaces(ctx, Filter{CitySlug: "seattle", Category: "spa"})
		require.NoError(t, err)
		assert.Len(t, spas, 1)
	})

	t.Run("ReplaceAll", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertPlace(ctx, processed("google", "g1", "Gym"))
		require.NoError(t, err)
		_, err = s.UpsertRaw(ctx, rawRecord(model.ProviderGoogle, "g1", "gym"))
		require.NoError(t, err)

		require.NoError(t, s.ReplaceAll(ctx))

		all, err := s.QueryPlaces(ctx, Filter{})
		require.NoError(t, err)
		assert.Empty(t, all)

		raws, err := s.QueryRaw(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, raws, 1, "raw collection is untouched")

		out, err := s.UpsertPlace(ctx, processed("google", "g1", "Gym"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeInserted, out)
	})

	t.Run("NearPlaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		near := processed("google", "near", "Near")
		near.Location = model.NewLocation(47.6070, -122.3330)
		nearest := processed("google", "nearest", "Nearest")
		nearest.Location = model.NewLocation(47.6062, -122.3321)
		far := processed("google", "far", "Far")
		far.Location = model.NewLocation(45.5152, -122.6784)
		for _, p := range []*model.Place{near, nearest, far} {
			_, err := s.UpsertPlace(ctx, p)
			require.NoError(t, err)
		}

		got, err := s.NearPlaces(ctx, 47.6062, -122.3321, 1000, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Nearest", got[0].Name)
		assert.Equal(t, "Near", got[1].Name)

		limited, err := s.NearPlaces(ctx, 47.6062, -122.3321, 1000, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("Cities", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		missing, err := s.GetCity(ctx, "seattle")
		require.NoError(t, err)
		assert.Nil(t, missing)

		city := &model.City{Name: "Seattle", State: "Washington", StateCode: "WA", Country: "US",
			Location: model.NewLocation(47.6062, -122.3321)}
		require.NoError(t, s.UpsertCity(ctx, city))
		assert.Equal(t, "seattle", city.Slug)
		firstID := city.ID

		again := &model.City{Name: "Seattle", Slug: "seattle", State: "Washington", StateCode: "WA", Country: "USA"}
		require.NoError(t, s.UpsertCity(ctx, again))
		assert.Equal(t, firstID, again.ID)

		got, err := s.GetCity(ctx, "seattle")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "USA", got.Country)
		assert.Equal(t, "WA", got.StateCode)

		require.NoError(t, s.UpsertCity(ctx, &model.City{Name: "Austin", StateCode: "TX"}))
		cities, err := s.ListCities(ctx)
		require.NoError(t, err)
		require.Len(t, cities, 2)
		assert.Equal(t, "austin", cities[0].Slug)
	})

	t.Run("Runs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := &model.Run{Kind: model.RunKindIngest, Provider: "google", CitySlug: "seattle", Category: "gym"}
		require.NoError(t, s.StartRun(ctx, run))
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStateFetching, run.State)

		require.NoError(t, s.UpdateRunState(ctx, run.ID, model.RunStateUpserting))

		run.State = model.RunStateDone
		run.Inserted = 3
		run.Skipped = 1
		require.NoError(t, s.FinishRun(ctx, run))
		require.NotNil(t, run.CompletedAt)

		combine := &model.Run{Kind: model.RunKindCombine, Replace: true, StartedAt: run.StartedAt.Add(time.Second)}
		require.NoError(t, s.StartRun(ctx, combine))

		runs, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, combine.ID, runs[0].ID, "newest first")
		assert.True(t, runs[0].Replace)
		assert.Nil(t, runs[0].CompletedAt)

		ingests, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindIngest})
		require.NoError(t, err)
		require.Len(t, ingests, 1)
		assert.Equal(t, model.RunStateDone, ingests[0].State)
		assert.Equal(t, 3, ingests[0].Inserted)
		assert.Equal(t, 1, ingests[0].Skipped)
		assert.NotNil(t, ingests[0].CompletedAt)

		recent, err := s.ListRuns(ctx, RunFilter{StartedAfter: combine.StartedAt})
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, combine.ID, recent[0].ID)

		err = s.UpdateRunState(ctx, "missing", model.RunStateDone)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestSQLite_ProcessedIndexes(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t).(*SQLiteStore)

	indexes := func() []string {
		rows, err := s.db.QueryContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'processed_places' AND name LIKE 'idx_%'`)
		require.NoError(t, err)
		defer rows.Close() //nolint:errcheck
		var names []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			names = append(names, name)
		}
		require.NoError(t, rows.Err())
		return names
	}

	want := []string{
		"idx_processed_places_source_id",
		"idx_processed_places_city_slug",
		"idx_processed_places_city_name",
		"idx_processed_places_identity_key",
		"idx_processed_places_categories",
		"idx_processed_places_location",
	}
	assert.ElementsMatch(t, want, indexes())

	require.NoError(t, s.ReplaceAll(ctx))
	assert.ElementsMatch(t, want, indexes(), "replace recreates every index")
}

func TestNaturalKeyFor(t *testing.T) {
	t.Run("source id first", func(t *testing.T) {
		p := processed("yelp", "y1", "Gym")
		p.SourceIDs["google"] = "g1"
		p.SourceIDs["bing"] = ""
		k, ok := NaturalKeyFor(p)
		require.True(t, ok)
		assert.True(t, k.BySource())
		assert.Equal(t, []string{"yelp:y1", "google:g1"}, k.SourceKeys)
		assert.Equal(t, "gym_seattle_47.606_-122.332", k.IdentityKey)
		assert.Equal(t, []placeLookup{lookupSource, lookupIdentity}, k.lookups())
	})

	t.Run("city and name fallback", func(t *testing.T) {
		k, ok := NaturalKeyFor(processed("yelp", "", "Gym"))
		require.True(t, ok)
		assert.False(t, k.BySource())
		assert.Equal(t, "seattle", k.CitySlug)
		assert.Equal(t, "Gym", k.Name)
		assert.Equal(t, []placeLookup{lookupIdentity, lookupCityName}, k.lookups())
	})

	t.Run("no key", func(t *testing.T) {
		p := processed("yelp", "", "Gym")
		p.CitySlug = ""
		k, ok := NaturalKeyFor(p)
		assert.False(t, ok)
		assert.Empty(t, k.IdentityKey)
	})
}

func TestCategoryTags(t *testing.T) {
	p := &model.Place{Category: "gym", Categories: "gym, health", SearchCategories: []string{"fitness", "gym"}}
	assert.Equal(t, []string{"gym", "health", "fitness"}, categoryTags(p))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "inserted", OutcomeInserted.String())
	assert.Equal(t, "updated", OutcomeUpdated.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"nil", nil, false},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"net error", timeoutErr{}, true},
		{"wrapped net error", fmt.Errorf("query: %w", timeoutErr{}), true},
		{"plain error", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, ErrStoreUnavailable))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestHaversineMeters(t *testing.T) {
	assert.InDelta(t, 0, haversineMeters(47.6, -122.3, 47.6, -122.3), 1e-9)
	// Seattle to Portland is roughly 234 km.
	assert.InDelta(t, 234000, haversineMeters(47.6062, -122.3321, 45.5152, -122.6784), 3000)
}
