package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placesync/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

const joesKey = "joe's gym_seattle_47.606_-122.332"

var rawColumnNames = []string{"source", "native_id", "city_slug", "city_id", "city_name", "state", "state_code", "categories", "payload", "updated_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS processed_places`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_Unavailable(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION`).WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCity_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM cities WHERE slug = \$1`).
		WithArgs("nowhere").
		WillReturnError(pgx.ErrNoRows)

	city, err := s.GetCity(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, city)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCity(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	loc, err := model.NewLocation(47.6062, -122.3321).EWKB()
	require.NoError(t, err)

	mock.ExpectQuery(`ST_AsEWKB\(location\)`).
		WithArgs("seattle").
		WillReturnRows(pgxmock.NewRows([]string{"id", "slug", "name", "state", "state_code", "country", "location", "created_at", "updated_at"}).
			AddRow("c1", "seattle", "Seattle", "Washington", "WA", "US", loc, now, now))

	city, err := s.GetCity(context.Background(), "seattle")
	require.NoError(t, err)
	require.NotNil(t, city)
	assert.Equal(t, "Seattle", city.Name)
	assert.Equal(t, model.NewLocation(47.6062, -122.3321), city.Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRaw_Insert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	raw := rawRecord(model.ProviderYelp, "joe", "gym")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM raw_places WHERE source = \$1 AND native_id = \$2 FOR UPDATE`).
		WithArgs("yelp", "joe").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`(?s)INSERT INTO raw_places .* ON CONFLICT \(source, native_id\) DO UPDATE`).
		WithArgs("yelp", "joe", "seattle", "city-1", "Seattle", "Washington", "WA",
			[]string{"gym"}, pgxmock.AnyArg(), raw.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	out, err := s.UpsertRaw(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRaw_UnionsCategories(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	existing := rawRecord(model.ProviderYelp, "joe", "gym")
	incoming := rawRecord(model.ProviderYelp, "joe", "spa")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM raw_places WHERE source = \$1 AND native_id = \$2 FOR UPDATE`).
		WithArgs("yelp", "joe").
		WillReturnRows(pgxmock.NewRows(rawColumnNames).AddRow(
			"yelp", "joe", "seattle", "city-1", "Seattle", "Washington", "WA",
			[]string{"gym"}, []byte(existing.Payload), existing.UpdatedAt))
	mock.ExpectExec(`INSERT INTO raw_places`).
		WithArgs("yelp", "joe", "seattle", "city-1", "Seattle", "Washington", "WA",
			[]string{"gym", "spa"}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	out, err := s.UpsertRaw(context.Background(), incoming)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRaw_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := s.UpsertRaw(context.Background(), rawRecord(model.ProviderGoogle, "g", "gym"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert raw")
	assert.False(t, errors.Is(err, ErrStoreUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPlace_Insert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	p := processed("google", "g1", "Joe's Gym")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, doc FROM processed_places WHERE source_id = ANY\(\$1\)`).
		WithArgs([]string{"google:g1"}).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`(?s)WHERE identity_key = \$1 .* FOR UPDATE`).
		WithArgs(joesKey).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO processed_places`).
		WithArgs(pgxmock.AnyArg(), "google:g1", pgxmock.AnyArg(), "seattle", "Joe's Gym",
			[]string{}, pgxmock.AnyArg(), pgxmock.AnyArg(), p.CreatedAt, pgxmock.AnyArg(), joesKey).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	out, err := s.UpsertPlace(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPlace_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stored := processed("yelp", "y1", "Joe's Gym")
	stored.ID = "place-1"
	stored.Rating = 4.5
	doc, err := json.Marshal(stored)
	require.NoError(t, err)

	incoming := processed("yelp", "y1", "Joe's Gym")
	incoming.Website = "http://joes.gym"

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM processed_places WHERE source_id = ANY\(\$1\).* FOR UPDATE`).
		WithArgs([]string{"yelp:y1"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doc"}).AddRow("place-1", doc))
	mock.ExpectExec(`UPDATE processed_places SET`).
		WithArgs("place-1", "yelp:y1", pgxmock.AnyArg(), "seattle", "Joe's Gym",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), joesKey).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	out, err := s.UpsertPlace(context.Background(), incoming)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPlace_IdentityKeyMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stored := processed("google", "g1", "Joe's Gym")
	stored.ID = "place-1"
	doc, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)WHERE source_id = ANY\(\$1\).* FOR UPDATE`).
		WithArgs([]string{"yelp:y1"}).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`(?s)WHERE identity_key = \$1 .* FOR UPDATE`).
		WithArgs(joesKey).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doc"}).AddRow("place-1", doc))
	mock.ExpectExec(`UPDATE processed_places SET`).
		WithArgs("place-1", "google:g1", pgxmock.AnyArg(), "seattle", "Joe's Gym",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), joesKey).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	out, err := s.UpsertPlace(context.Background(), processed("yelp", "y1", "Joe's Gym"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPlace_CityNameFallback(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE identity_key = \$1`).
		WithArgs("corner park_seattle_47.606_-122.332").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`WHERE city_slug = \$1 AND name = \$2`).
		WithArgs("seattle", "Corner Park").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO processed_places`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	out, err := s.UpsertPlace(context.Background(), processed("google", "", "Corner Park"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindPlace_NoKey(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	p, err := s.FindPlace(context.Background(), NaturalKey{})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryPlaces_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE city_slug = \$1 AND \$2 = ANY\(category_tags\)`).
		WithArgs("seattle", "gym").
		WillReturnRows(pgxmock.NewRows([]string{"id", "doc"}))

	places, err := s.QueryPlaces(context.Background(), Filter{CitySlug: "seattle", Category: "gym"})
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_NearPlaces(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	doc, err := json.Marshal(processed("google", "g1", "Joe's Gym"))
	require.NoError(t, err)

	mock.ExpectQuery(`ST_DWithin`).
		WithArgs(-122.3321, 47.6062, 500.0, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doc"}).AddRow("place-1", doc))

	places, err := s.NearPlaces(context.Background(), 47.6062, -122.3321, 500, 0)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "place-1", places[0].ID)
	assert.Equal(t, -122.3321, places[0].Location.Lng)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS "processed_places"`).WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS processed_places`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()

	require.NoError(t, s.ReplaceAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET state = \$1, inserted = \$2`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), &model.Run{ID: "missing", State: model.RunStateDone})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Now().UTC()
	completed := started.Add(time.Minute)

	mock.ExpectQuery(`FROM runs WHERE true AND kind = \$1 ORDER BY started_at DESC, id LIMIT \$2`).
		WithArgs("ingest", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "provider", "city_slug", "category", "replace", "state",
			"inserted", "updated", "skipped", "merged", "error", "started_at", "completed_at"}).
			AddRow("r1", "ingest", "google", "seattle", "gym", false, "done", 3, 0, 1, 0, "", started, &completed))

	runs, err := s.ListRuns(context.Background(), RunFilter{Kind: model.RunKindIngest})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStateDone, runs[0].State)
	assert.Equal(t, 3, runs[0].Inserted)
	require.NotNil(t, runs[0].CompletedAt)
	assert.True(t, completed.Equal(*runs[0].CompletedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StartedAfter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE true AND state = \$1 AND started_at >= \$2 ORDER BY started_at DESC, id LIMIT \$3`).
		WithArgs("error", cutoff, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "provider", "city_slug", "category", "replace", "state",
			"inserted", "updated", "skipped", "merged", "error", "started_at", "completed_at"}))

	runs, err := s.ListRuns(context.Background(), RunFilter{State: model.RunStateError, StartedAfter: cutoff, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
