package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/placesync/internal/db"
	"github.com/sells-group/placesync/internal/identity"
	"github.com/sells-group/placesync/internal/merge"
	"github.com/sells-group/placesync/internal/model"
)

// PostgresStore implements Store on PostgreSQL with PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(classify("postgres: ping", err), "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS cities (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT '',
	state_code TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT '',
	location   geometry(Point, 4326),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_places (
	source     TEXT NOT NULL,
	native_id  TEXT NOT NULL,
	city_slug  TEXT NOT NULL,
	city_id    TEXT NOT NULL DEFAULT '',
	city_name  TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	state_code TEXT NOT NULL DEFAULT '',
	categories TEXT[] NOT NULL DEFAULT '{}',
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, native_id)
);

CREATE INDEX IF NOT EXISTS idx_raw_places_city_slug ON raw_places(city_slug);
CREATE INDEX IF NOT EXISTS idx_raw_places_categories ON raw_places USING GIN (categories);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	provider     TEXT NOT NULL DEFAULT '',
	city_slug    TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	replace      BOOLEAN NOT NULL DEFAULT false,
	state        TEXT NOT NULL,
	inserted     INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	merged       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_kind_started ON runs(kind, started_at DESC);
`

// processedMigration is applied by Migrate and again by ReplaceAll after the
// table is dropped.
const processedMigration = `
CREATE TABLE IF NOT EXISTS processed_places (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL DEFAULT '',
	source_ids    JSONB NOT NULL DEFAULT '{}',
	city_slug     TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	identity_key  TEXT NOT NULL DEFAULT '',
	category_tags TEXT[] NOT NULL DEFAULT '{}',
	location      geometry(Point, 4326) NOT NULL,
	doc           JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_processed_places_source_id ON processed_places(source_id) WHERE source_id <> '';
CREATE INDEX IF NOT EXISTS idx_processed_places_source_ids ON processed_places USING GIN (source_ids);
CREATE INDEX IF NOT EXISTS idx_processed_places_city_slug ON processed_places(city_slug);
CREATE INDEX IF NOT EXISTS idx_processed_places_city_name ON processed_places(city_slug, name);
CREATE INDEX IF NOT EXISTS idx_processed_places_identity_key ON processed_places(identity_key) WHERE identity_key <> '';
CREATE INDEX IF NOT EXISTS idx_processed_places_categories ON processed_places USING GIN (category_tags);
CREATE INDEX IF NOT EXISTS idx_processed_places_location ON processed_places USING GIST (location);
`

const processedTable = "processed_places"

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(classify("postgres: ping", s.pool.Ping(ctx)), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(classify("postgres: migrate", err), "postgres: migrate")
	}
	_, err := s.pool.Exec(ctx, processedMigration)
	return eris.Wrap(classify("postgres: migrate", err), "postgres: migrate processed")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Cities ---

const cityColumns = `id, slug, name, state, state_code, country, ST_AsEWKB(location), created_at, updated_at`

func (s *PostgresStore) GetCity(ctx context.Context, slug string) (*model.City, error) {
	c, err := scanPostgresCity(s.pool.QueryRow(ctx,
		`SELECT `+cityColumns+` FROM cities WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(classify("postgres: get city", err), "postgres: get city %s", slug)
	}
	return c, nil
}

func (s *PostgresStore) UpsertCity(ctx context.Context, city *model.City) error {
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

	loc, err := city.Location.EWKB()
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO cities (id, slug, name, state, state_code, country, location, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromEWKB($7), $8, $9)
		 ON CONFLICT (slug) DO UPDATE SET name = $3, state = $4, state_code = $5, country = $6,
		 location = ST_GeomFromEWKB($7), updated_at = $9
		 RETURNING id, created_at`,
		city.ID, city.Slug, city.Name, city.State, city.StateCode, city.Country, loc, city.CreatedAt, city.UpdatedAt,
	).Scan(&city.ID, &city.CreatedAt)
	return eris.Wrapf(classify("postgres: upsert city", err), "postgres: upsert city %s", city.Slug)
}

func (s *PostgresStore) ListCities(ctx context.Context) ([]model.City, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+cityColumns+` FROM cities ORDER BY slug`)
	if err != nil {
		return nil, eris.Wrap(classify("postgres: list cities", err), "postgres: list cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		c, err := scanPostgresCity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan city")
		}
		cities = append(cities, *c)
	}
	return cities, eris.Wrap(rows.Err(), "postgres: list cities iterate")
}

func scanPostgresCity(row pgx.Row) (*model.City, error) {
	var c model.City
	var loc []byte
	if err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.State, &c.StateCode, &c.Country, &loc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	l, err := model.LocationFromEWKB(loc)
	if err != nil {
		return nil, err
	}
	c.Location = l
	return &c, nil
}

// --- Raw places ---

const rawColumns = `source, native_id, city_slug, city_id, city_name, state, state_code, categories, payload, updated_at`

func (s *PostgresStore) FindRaw(ctx context.Context, source model.Provider, nativeID string) (*model.RawPlace, error) {
	r, err := scanPostgresRaw(s.pool.QueryRow(ctx,
		`SELECT `+rawColumns+` FROM raw_places WHERE source = $1 AND native_id = $2`,
		string(source), nativeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(classify("postgres: find raw", err), "postgres: find raw %s:%s", source, nativeID)
	}
	return r, nil
}

// UpsertRaw inserts raw or merges it over the stored record with the same
// (source, native id): categories are unioned and everything else replaced.
func (s *PostgresStore) UpsertRaw(ctx context.Context, raw model.RawPlace) (Outcome, error) {
	var outcome Outcome
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		existing, err := scanPostgresRaw(tx.QueryRow(ctx,
			`SELECT `+rawColumns+` FROM raw_places WHERE source = $1 AND native_id = $2 FOR UPDATE`,
			string(raw.Source), raw.NativeID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
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

		_, err = tx.Exec(ctx,
			`INSERT INTO raw_places (`+rawColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (source, native_id) DO UPDATE SET
			 city_slug = $3, city_id = $4, city_name = $5, state = $6, state_code = $7,
			 categories = $8, payload = $9, updated_at = $10`,
			string(raw.Source), raw.NativeID, raw.CitySlug, raw.CityID, raw.CityName,
			raw.State, raw.StateCode, raw.Categories, []byte(raw.Payload), raw.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return 0, eris.Wrapf(classify("postgres: upsert raw", err), "postgres: upsert raw %s:%s", raw.Source, raw.NativeID)
	}
	return outcome, nil
}

func (s *PostgresStore) QueryRaw(ctx context.Context, filter Filter) ([]model.RawPlace, error) {
	where, args := postgresFilter(filter, "categories")
	rows, err := s.pool.Query(ctx,
		`SELECT `+rawColumns+` FROM raw_places`+where+` ORDER BY source, native_id`, args...)
	if err != nil {
		return nil, eris.Wrap(classify("postgres: query raw", err), "postgres: query raw")
	}
	defer rows.Close()

	var out []model.RawPlace
	for rows.Next() {
		r, err := scanPostgresRaw(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query raw iterate")
}

func scanPostgresRaw(row pgx.Row) (*model.RawPlace, error) {
	var r model.RawPlace
	var source string
	var payload []byte
	if err := row.Scan(&source, &r.NativeID, &r.CitySlug, &r.CityID, &r.CityName,
		&r.State, &r.StateCode, &r.Categories, &payload, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Source = model.Provider(source)
	r.Payload = json.RawMessage(payload)
	return &r, nil
}

// postgresFilter builds the WHERE clause shared by raw and processed queries.
func postgresFilter(filter Filter, tagColumn string) (string, []any) {
	var where string
	var args []any
	if filter.CitySlug != "" {
		args = append(args, filter.CitySlug)
		where += fmt.Sprintf(" AND city_slug = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND $%d = ANY(%s)", len(args), tagColumn)
	}
	if where == "" {
		return "", nil
	}
	return " WHERE" + where[len(" AND"):], args
}

// --- Processed places ---

const placeSelect = `SELECT id, doc FROM processed_places`

func (s *PostgresStore) FindPlace(ctx context.Context, key NaturalKey) (*model.Place, error) {
	p, err := findPostgresPlace(ctx, s.pool, key, false)
	if err != nil {
		return nil, eris.Wrap(classify("postgres: find place", err), "postgres: find place")
	}
	return p, nil
}

func findPostgresPlace(ctx context.Context, q db.Querier, key NaturalKey, lock bool) (*model.Place, error) {
	for _, step := range key.lookups() {
		var where string
		var args []any
		switch step {
		case lookupSource:
			where = ` WHERE source_id = ANY($1) OR EXISTS (
			SELECT 1 FROM jsonb_each_text(source_ids) e WHERE e.key || ':' || e.value = ANY($1))`
			args = []any{key.SourceKeys}
		case lookupIdentity:
			where = ` WHERE identity_key = $1`
			args = []any{key.IdentityKey}
		case lookupCityName:
			where = ` WHERE city_slug = $1 AND name = $2`
			args = []any{key.CitySlug, key.Name}
		}
		query := placeSelect + where + ` ORDER BY created_at, id LIMIT 1`
		if lock {
			query += ` FOR UPDATE`
		}

		p, err := scanPostgresPlace(q.QueryRow(ctx, query, args...))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		return p, err
	}
	return nil, nil
}

// UpsertPlace inserts place when nothing matches its natural key, otherwise
// combines it into the stored record. The lookup and write share one
// transaction with the matched row locked.
func (s *PostgresStore) UpsertPlace(ctx context.Context, place *model.Place) (Outcome, error) {
	var outcome Outcome
	now := time.Now().UTC()
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var existing *model.Place
		if key, ok := NaturalKeyFor(place); ok {
			var err error
			existing, err = findPostgresPlace(ctx, tx, key, true)
			if err != nil {
				return err
			}
		}

		if existing == nil {
			p := newPlaceRow(place, now)
			outcome = OutcomeInserted
			return writePostgresPlace(ctx, tx, p, true)
		}
		merge.Combine(existing, place)
		existing.UpdatedAt = now
		outcome = OutcomeUpdated
		return writePostgresPlace(ctx, tx, existing, false)
	})
	if err != nil {
		return 0, eris.Wrapf(classify("postgres: upsert place", err), "postgres: upsert place %q", place.Name)
	}
	return outcome, nil
}

// newPlaceRow prepares a copy of p for insertion.
func newPlaceRow(p *model.Place, now time.Time) *model.Place {
	c := p.Clone()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.SourceIDs == nil {
		c.SourceIDs = map[string]string{}
	}
	if c.Hours == nil {
		c.Hours = []string{}
	}
	return c
}

func writePostgresPlace(ctx context.Context, tx pgx.Tx, p *model.Place, insert bool) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "marshal place")
	}
	sourceIDs, err := json.Marshal(p.SourceIDs)
	if err != nil {
		return eris.Wrap(err, "marshal source ids")
	}
	loc, err := p.Location.EWKB()
	if err != nil {
		return err
	}

	if insert {
		_, err = tx.Exec(ctx,
			`INSERT INTO processed_places (id, source_id, source_ids, city_slug, name, category_tags, location, doc, created_at, updated_at, identity_key)
			 VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromEWKB($7), $8, $9, $10, $11)`,
			p.ID, p.SourceID, sourceIDs, p.CitySlug, p.Name, categoryTags(p), loc, doc, p.CreatedAt, p.UpdatedAt, identity.Key(p),
		)
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE processed_places SET source_id = $2, source_ids = $3, city_slug = $4, name = $5,
		 category_tags = $6, location = ST_GeomFromEWKB($7), doc = $8, updated_at = $9, identity_key = $10 WHERE id = $1`,
		p.ID, p.SourceID, sourceIDs, p.CitySlug, p.Name, categoryTags(p), loc, doc, p.UpdatedAt, identity.Key(p),
	)
	return err
}

func (s *PostgresStore) QueryPlaces(ctx context.Context, filter Filter) ([]model.Place, error) {
	where, args := postgresFilter(filter, "category_tags")
	rows, err := s.pool.Query(ctx, placeSelect+where+` ORDER BY city_slug, name, id`, args...)
	if err != nil {
		return nil, eris.Wrap(classify("postgres: query places", err), "postgres: query places")
	}
	return collectPostgresPlaces(rows)
}

// NearPlaces returns places within radiusMeters of (lat, lng), nearest first.
func (s *PostgresStore) NearPlaces(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx,
		placeSelect+` WHERE ST_DWithin(location::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		 ORDER BY location::geography <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, id
		 LIMIT $4`,
		lng, lat, radiusMeters, defaultLimit(limit, 50),
	)
	if err != nil {
		return nil, eris.Wrap(classify("postgres: near places", err), "postgres: near places")
	}
	return collectPostgresPlaces(rows)
}

func collectPostgresPlaces(rows pgx.Rows) ([]model.Place, error) {
	defer rows.Close()
	var out []model.Place
	for rows.Next() {
		p, err := scanPostgresPlace(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan place")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: places iterate")
}

func scanPostgresPlace(row pgx.Row) (*model.Place, error) {
	var id string
	var doc []byte
	if err := row.Scan(&id, &doc); err != nil {
		return nil, err
	}
	var p model.Place
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, eris.Wrapf(err, "unmarshal place %s", id)
	}
	p.ID = id
	return &p, nil
}

// ReplaceAll drops the processed collection and recreates it with its
// indexes in one transaction.
func (s *PostgresStore) ReplaceAll(ctx context.Context) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS `+db.Ident(processedTable)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, processedMigration)
		return err
	})
	return eris.Wrap(classify("postgres: replace all", err), "postgres: replace processed places")
}

// --- Runs ---

const runColumns = `id, kind, provider, city_slug, category, replace, state, inserted, updated, skipped, merged, error, started_at, completed_at`

func (s *PostgresStore) StartRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.State == "" {
		run.State = model.RunStateFetching
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, provider, city_slug, category, replace, state, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Kind), run.Provider, run.CitySlug, run.Category, run.Replace, string(run.State), run.StartedAt,
	)
	return eris.Wrap(classify("postgres: start run", err), "postgres: insert run")
}

func (s *PostgresStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	tag, err := s.pool.Exec(ctx, `UPDATE runs SET state = $1 WHERE id = $2`, string(state), runID)
	if err != nil {
		return eris.Wrapf(classify("postgres: update run", err), "postgres: update run state %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET state = $1, inserted = $2, updated = $3, skipped = $4, merged = $5,
		 error = $6, completed_at = $7 WHERE id = $8`,
		string(run.State), run.Inserted, run.Updated, run.Skipped, run.Merged, run.Error, *run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(classify("postgres: finish run", err), "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		query += fmt.Sprintf(` AND state = $%d`, len(args))
	}
	if !filter.StartedAfter.IsZero() {
		args = append(args, filter.StartedAfter)
		query += fmt.Sprintf(` AND started_at >= $%d`, len(args))
	}
	args = append(args, defaultLimit(filter.Limit, 100))
	query += fmt.Sprintf(` ORDER BY started_at DESC, id LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(classify("postgres: list runs", err), "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, state string
		if err := rows.Scan(&r.ID, &kind, &r.Provider, &r.CitySlug, &r.Category, &r.Replace, &state,
			&r.Inserted, &r.Updated, &r.Skipped, &r.Merged, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.State = model.RunState(state)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
