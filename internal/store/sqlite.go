package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/placesync/internal/identity"
	"github.com/sells-group/placesync/internal/merge"
	"github.com/sells-group/placesync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the local
// single-file backend; writes are serialized through one connection.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(classify("sqlite: open", err), "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT '',
	state_code TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT '',
	latitude   REAL NOT NULL DEFAULT 0,
	longitude  REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_places (
	source     TEXT NOT NULL,
	native_id  TEXT NOT NULL,
	city_slug  TEXT NOT NULL,
	city_id    TEXT NOT NULL DEFAULT '',
	city_name  TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	state_code TEXT NOT NULL DEFAULT '',
	categories TEXT NOT NULL DEFAULT '[]',
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (source, native_id)
);

CREATE INDEX IF NOT EXISTS idx_raw_places_city_slug ON raw_places(city_slug);
CREATE INDEX IF NOT EXISTS idx_raw_places_categories ON raw_places(categories);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	provider     TEXT NOT NULL DEFAULT '',
	city_slug    TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	replace      INTEGER NOT NULL DEFAULT 0,
	state        TEXT NOT NULL,
	inserted     INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	merged       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_kind_started ON runs(kind, started_at);
`

const sqliteProcessedMigration = `
CREATE TABLE IF NOT EXISTS processed_places (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL DEFAULT '',
	source_ids    TEXT NOT NULL DEFAULT '{}',
	city_slug     TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	identity_key  TEXT NOT NULL DEFAULT '',
	category_tags TEXT NOT NULL DEFAULT '[]',
	latitude      REAL NOT NULL DEFAULT 0,
	longitude     REAL NOT NULL DEFAULT 0,
	doc           TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_places_source_id ON processed_places(source_id) WHERE source_id <> '';
CREATE INDEX IF NOT EXISTS idx_processed_places_city_slug ON processed_places(city_slug);
CREATE INDEX IF NOT EXISTS idx_processed_places_city_name ON processed_places(city_slug, name);
CREATE INDEX IF NOT EXISTS idx_processed_places_identity_key ON processed_places(identity_key) WHERE identity_key <> '';
CREATE INDEX IF NOT EXISTS idx_processed_places_categories ON processed_places(category_tags);
CREATE INDEX IF NOT EXISTS idx_processed_places_location ON processed_places(latitude, longitude);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(classify("sqlite: migrate", err), "sqlite: migrate")
	}
	_, err := s.db.ExecContext(ctx, sqliteProcessedMigration)
	return eris.Wrap(classify("sqlite: migrate", err), "sqlite: migrate processed")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(classify("sqlite: ping", s.db.PingContext(ctx)), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "commit tx")
}

// --- Cities ---

const sqliteCityColumns = `id, slug, name, state, state_code, country, latitude, longitude, created_at, updated_at`

func (s *SQLiteStore) GetCity(ctx context.Context, slug string) (*model.City, error) {
	c, err := scanSQLiteCity(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCityColumns+` FROM cities WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(classify("sqlite: get city", err), "sqlite: get city %s", slug)
	}
	return c, nil
}

func (s *SQLiteStore) UpsertCity(ctx context.Context, city *model.City) error {
	if city.Slug == "" {
		city.Slug = model.Slugify(city.Name)
	}
	if city.ID == "" {
		city.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if city.CreatedAt.IsZero() {
		city.CreatedAt = now
	}
	city.UpdatedAt = now

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO cities (`+sqliteCityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET name = excluded.name, state = excluded.state,
		 state_code = excluded.state_code, country = excluded.country, latitude = excluded.latitude,
		 longitude = excluded.longitude, updated_at = excluded.updated_at
		 RETURNING id, created_at`,
		city.ID, city.Slug, city.Name, city.State, city.StateCode, city.Country,
		city.Location.Lat, city.Location.Lng, city.CreatedAt, city.UpdatedAt,
	).Scan(&city.ID, &city.CreatedAt)
	return eris.Wrapf(classify("sqlite: upsert city", err), "sqlite: upsert city %s", city.Slug)
}

func (s *SQLiteStore) ListCities(ctx context.Context) ([]model.City, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteCityColumns+` FROM cities ORDER BY slug`)
	if err != nil {
		return nil, eris.Wrap(classify("sqlite: list cities", err), "sqlite: list cities")
	}
	defer rows.Close() //nolint:errcheck

	var cities []model.City
	for rows.Next() {
		c, err := scanSQLiteCity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city")
		}
		cities = append(cities, *c)
	}
	return cities, eris.Wrap(rows.Err(), "sqlite: list cities iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteCity(row scannable) (*model.City, error) {
	var c model.City
	var lat, lng float64
	if err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.State, &c.StateCode, &c.Country, &lat, &lng, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Location = model.NewLocation(lat, lng)
	return &c, nil
}

// --- Raw places ---

func (s *SQLiteStore) FindRaw(ctx context.Context, source model.Provider, nativeID string) (*model.RawPlace, error) {
	r, err := scanSQLiteRaw(s.db.QueryRowContext(ctx,
		`SELECT `+rawColumns+` FROM raw_places WHERE source = ? AND native_id = ?`,
		string(source), nativeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(classify("sqlite: find raw", err), "sqlite: find raw %s:%s", source, nativeID)
	}
	return r, nil
}

// UpsertRaw inserts raw or merges it over the stored record with the same
// (source, native id): categories are unioned and everything else replaced.
func (s *SQLiteStore) UpsertRaw(ctx context.Context, raw model.RawPlace) (Outcome, error) {
	var outcome Outcome
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanSQLiteRaw(tx.QueryRowContext(ctx,
			`SELECT `+rawColumns+` FROM raw_places WHERE source = ? AND native_id = ?`,
			string(raw.Source), raw.NativeID))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			outcome = OutcomeInserted
		case err != nil:
			return err
		default:
			raw = merge.Raw(*existing, raw)
			outcome = OutcomeUpdated
		}
		if raw.Categories == nil {
			raw.Categories = []string{}
		}
		categories, err := json.Marshal(raw.Categories)
		if err != nil {
			return eris.Wrap(err, "marshal categories")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO raw_places (`+rawColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (source, native_id) DO UPDATE SET
			 city_slug = excluded.city_slug, city_id = excluded.city_id, city_name = excluded.city_name,
			 state = excluded.state, state_code = excluded.state_code, categories = excluded.categories,
			 payload = excluded.payload, updated_at = excluded.updated_at`,
			string(raw.Source), raw.NativeID, raw.CitySlug, raw.CityID, raw.CityName,
			raw.State, raw.StateCode, string(categories), string(raw.Payload), raw.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return 0, eris.Wrapf(classify("sqlite: upsert raw", err), "sqlite: upsert raw %s:%s", raw.Source, raw.NativeID)
	}
	return outcome, nil
}

func (s *SQLiteStore) QueryRaw(ctx context.Context, filter Filter) ([]model.RawPlace, error) {
	where, args := sqliteFilter(filter, "raw_places.categories")
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rawColumns+` FROM raw_places`+where+` ORDER BY source, native_id`, args...)
	if err != nil {
		return nil, eris.Wrap(classify("sqlite: query raw", err), "sqlite: query raw")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RawPlace
	for rows.Next() {
		r, err := scanSQLiteRaw(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query raw iterate")
}

func scanSQLiteRaw(row scannable) (*model.RawPlace, error) {
	var r model.RawPlace
	var source, categories, payload string
	if err := row.Scan(&source, &r.NativeID, &r.CitySlug, &r.CityID, &r.CityName,
		&r.State, &r.StateCode, &categories, &payload, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(categories), &r.Categories); err != nil {
		return nil, eris.Wrap(err, "unmarshal categories")
	}
	r.Source = model.Provider(source)
	r.Payload = json.RawMessage(payload)
	return &r, nil
}

// sqliteFilter builds the WHERE clause shared by raw and processed queries.
// tagColumn is a JSON array column.
func sqliteFilter(filter Filter, tagColumn string) (string, []any) {
	var where string
	var args []any
	if filter.CitySlug != "" {
		where += " AND city_slug = ?"
		args = append(args, filter.CitySlug)
	}
	if filter.Category != "" {
		where += " AND EXISTS (SELECT 1 FROM json_each(" + tagColumn + ") WHERE value = ?)"
		args = append(args, filter.Category)
	}
	if where == "" {
		return "", nil
	}
	return " WHERE" + where[len(" AND"):], args
}

// --- Processed places ---

func (s *SQLiteStore) FindPlace(ctx context.Context, key NaturalKey) (*model.Place, error) {
	p, err := findSQLitePlace(ctx, s.db, key)
	if err != nil {
		return nil, eris.Wrap(classify("sqlite: find place", err), "sqlite: find place")
	}
	return p, nil
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findSQLitePlace(ctx context.Context, q sqliteQuerier, key NaturalKey) (*model.Place, error) {
	for _, step := range key.lookups() {
		var where string
		var args []any
		switch step {
		case lookupSource:
			keys, err := json.Marshal(key.SourceKeys)
			if err != nil {
				return nil, eris.Wrap(err, "marshal source keys")
			}
			where = ` WHERE source_id IN (SELECT value FROM json_each(?))
			OR EXISTS (SELECT 1 FROM json_each(processed_places.source_ids) e
				WHERE e.key || ':' || e.value IN (SELECT value FROM json_each(?)))`
			args = []any{string(keys), string(keys)}
		case lookupIdentity:
			where = ` WHERE identity_key = ?`
			args = []any{key.IdentityKey}
		case lookupCityName:
			where = ` WHERE city_slug = ? AND name = ?`
			args = []any{key.CitySlug, key.Name}
		}

		p, err := scanSQLitePlace(q.QueryRowContext(ctx, placeSelect+where+` ORDER BY created_at, id LIMIT 1`, args...))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		return p, err
	}
	return nil, nil
}

// UpsertPlace inserts place when nothing matches its natural key, otherwise
// combines it into the stored record inside one transaction.
func (s *SQLiteStore) UpsertPlace(ctx context.Context, place *model.Place) (Outcome, error) {
	var outcome Outcome
	now := time.Now().UTC()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var existing *model.Place
		if key, ok := NaturalKeyFor(place); ok {
			var err error
			existing, err = findSQLitePlace(ctx, tx, key)
			if err != nil {
				return err
			}
		}

		if existing == nil {
			outcome = OutcomeInserted
			return writeSQLitePlace(ctx, tx, newPlaceRow(place, now), true)
		}
		merge.Combine(existing, place)
		existing.UpdatedAt = now
		outcome = OutcomeUpdated
		return writeSQLitePlace(ctx, tx, existing, false)
	})
	if err != nil {
		return 0, eris.Wrapf(classify("sqlite: upsert place", err), "sqlite: upsert place %q", place.Name)
	}
	return outcome, nil
}

func writeSQLitePlace(ctx context.Context, tx *sql.Tx, p *model.Place, insert bool) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "marshal place")
	}
	sourceIDs, err := json.Marshal(p.SourceIDs)
	if err != nil {
		return eris.Wrap(err, "marshal source ids")
	}
	tags, err := json.Marshal(categoryTags(p))
	if err != nil {
		return eris.Wrap(err, "marshal category tags")
	}

	if insert {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO processed_places (id, source_id, source_ids, city_slug, name, identity_key, category_tags, latitude, longitude, doc, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.SourceID, string(sourceIDs), p.CitySlug, p.Name, identity.Key(p), string(tags),
			p.Location.Lat, p.Location.Lng, string(doc), p.CreatedAt, p.UpdatedAt,
		)
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE processed_places SET source_id = ?, source_ids = ?, city_slug = ?, name = ?, identity_key = ?,
		 category_tags = ?, latitude = ?, longitude = ?, doc = ?, updated_at = ? WHERE id = ?`,
		p.SourceID, string(sourceIDs), p.CitySlug, p.Name, identity.Key(p), string(tags),
		p.Location.Lat, p.Location.Lng, string(doc), p.UpdatedAt, p.ID,
	)
	return err
}

func (s *SQLiteStore) QueryPlaces(ctx context.Context, filter Filter) ([]model.Place, error) {
	where, args := sqliteFilter(filter, "processed_places.category_tags")
	rows, err := s.db.QueryContext(ctx, placeSelect+where+` ORDER BY city_slug, name, id`, args...)
	if err != nil {
		return nil, eris.Wrap(classify("sqlite: query places", err), "sqlite: query places")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Place
	for rows.Next() {
		p, err := scanSQLitePlace(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query places iterate")
}

// NearPlaces narrows candidates with a bounding box on the indexed
// coordinates and ranks them by great-circle distance.
func (s *SQLiteStore) NearPlaces(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]model.Place, error) {
	dLat := radiusMeters / metersPerDegree
	dLng := dLat / math.Max(math.Cos(lat*math.Pi/180), 1e-6)
	rows, err := s.db.QueryContext(ctx,
		placeSelect+` WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`,
		lat-dLat, lat+dLat, lng-dLng, lng+dLng,
	)
	if err != nil {
		return nil, eris.Wrap(classify("sqlite: near places", err), "sqlite: near places")
	}
	defer rows.Close() //nolint:errcheck

	type hit struct {
		place    model.Place
		distance float64
	}
	var hits []hit
	for rows.Next() {
		p, err := scanSQLitePlace(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place")
		}
		d := haversineMeters(lat, lng, p.Location.Lat, p.Location.Lng)
		if d <= radiusMeters {
			hits = append(hits, hit{place: *p, distance: d})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: near places iterate")
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].place.ID < hits[j].place.ID
	})
	limit = defaultLimit(limit, 50)
	out := make([]model.Place, 0, min(limit, len(hits)))
	for i := 0; i < len(hits) && i < limit; i++ {
		out = append(out, hits[i].place)
	}
	return out, nil
}

func scanSQLitePlace(row scannable) (*model.Place, error) {
	var id, doc string
	if err := row.Scan(&id, &doc); err != nil {
		return nil, err
	}
	var p model.Place
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, eris.Wrapf(err, "unmarshal place %s", id)
	}
	p.ID = id
	return &p, nil
}

// ReplaceAll drops the processed collection and recreates it with its
// indexes in one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+processedTable); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, sqliteProcessedMigration)
		return err
	})
	return eris.Wrap(classify("sqlite: replace all", err), "sqlite: replace processed places")
}

// --- Runs ---

func (s *SQLiteStore) StartRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.State == "" {
		run.State = model.RunStateFetching
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, provider, city_slug, category, replace, state, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Provider, run.CitySlug, run.Category, run.Replace, string(run.State), run.StartedAt,
	)
	return eris.Wrap(classify("sqlite: start run", err), "sqlite: insert run")
}

func (s *SQLiteStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET state = ? WHERE id = ?`, string(state), runID)
	if err != nil {
		return eris.Wrapf(classify("sqlite: update run", err), "sqlite: update run state %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, inserted = ?, updated = ?, skipped = ?, merged = ?, error = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.State), run.Inserted, run.Updated, run.Skipped, run.Merged, run.Error, *run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(classify("sqlite: finish run", err), "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, defaultLimit(filter.Limit, 100))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(classify("sqlite: list runs", err), "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, state string
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &kind, &r.Provider, &r.CitySlug, &r.Category, &r.Replace, &state,
			&r.Inserted, &r.Updated, &r.Skipped, &r.Merged, &r.Error, &r.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if !filter.StartedAfter.IsZero() && r.StartedAt.Before(filter.StartedAfter) {
			continue
		}
		r.Kind = model.RunKind(kind)
		r.State = model.RunState(state)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}
