package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"

	"github.com/sells-group/gazetteer/internal/db"
	"github.com/sells-group/gazetteer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// geom_is_valid backs the locality geom CHECK.
func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("geom_is_valid", 1, sqliteGeomIsValid); err != nil {
		panic(err)
	}
}

func sqliteGeomIsValid(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	b, ok := args[0].([]byte)
	if ok && validGeometry(b) {
		return int64(1), nil
	}
	return int64(0), nil
}

var (
	liteInsertLocality = mustSQL(db.UpsertSQL(db.UpsertConfig{
		Table:   "locality",
		Columns: model.LocalityColumns,
	}, db.Question))

	liteUpsertRegion = mustSQL(db.UpsertSQL(db.UpsertConfig{
		Table:        "region",
		Columns:      model.RegionColumns,
		ConflictKeys: []string{"wof_id"},
	}, db.Question))

	liteMarkDuplicate = mustSQL(db.UpsertSQL(db.UpsertConfig{
		Table:        "locality_dup",
		Columns:      []string{"wof_id"},
		ConflictKeys: []string{"wof_id"},
		DoNothing:    true,
	}, db.Question))

	liteLocalitySelect = db.SelectList(model.LocalityColumns, nil)
)

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode and foreign key enforcement.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// PRAGMAs are per-connection; a single connection keeps them in force.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS region (
	wof_id         INTEGER PRIMARY KEY,
	wof_country_id INTEGER,
	fips_code      TEXT,
	geonames_id    INTEGER,
	geoplanet_id   INTEGER,
	iso_id         TEXT,
	wikidata_id    TEXT,
	name           TEXT,
	name_abbr      TEXT,
	country_iso    TEXT,
	name_a0        TEXT,
	latitude       REAL,
	longitude      REAL,
	population     INTEGER,
	area_m2        REAL
);

CREATE TABLE IF NOT EXISTS locality (
	wof_id                 INTEGER PRIMARY KEY,
	wof_region_id          INTEGER REFERENCES region (wof_id),
	dbpedia_id             TEXT,
	freebase_id            TEXT,
	factual_id             TEXT,
	fips_code              TEXT,
	geonames_id            INTEGER,
	geoplanet_id           INTEGER,
	library_of_congress_id TEXT,
	new_york_times_id      TEXT,
	quattroshapes_id       INTEGER,
	wikidata_id            TEXT,
	wikipedia_page         TEXT,
	name                   TEXT,
	country_iso            TEXT,
	name_a0                TEXT,
	name_a1                TEXT,
	latitude               REAL CHECK (latitude IS NULL OR latitude BETWEEN -90 AND 90),
	longitude              REAL CHECK (longitude IS NULL OR longitude BETWEEN -180 AND 180),
	population             INTEGER,
	wikipedia_wordcount    INTEGER,
	elevation              INTEGER,
	area_m2                REAL,
	geom                   BLOB CHECK (geom IS NULL OR geom_is_valid(geom))
);

CREATE INDEX IF NOT EXISTS idx_locality_wof_region_id ON locality (wof_region_id);
CREATE INDEX IF NOT EXISTS idx_locality_dbpedia_id ON locality (dbpedia_id);
CREATE INDEX IF NOT EXISTS idx_locality_freebase_id ON locality (freebase_id);
CREATE INDEX IF NOT EXISTS idx_locality_factual_id ON locality (factual_id);
CREATE INDEX IF NOT EXISTS idx_locality_fips_code ON locality (fips_code);
CREATE INDEX IF NOT EXISTS idx_locality_geonames_id ON locality (geonames_id);
CREATE INDEX IF NOT EXISTS idx_locality_geoplanet_id ON locality (geoplanet_id);
CREATE INDEX IF NOT EXISTS idx_locality_library_of_congress_id ON locality (library_of_congress_id);
CREATE INDEX IF NOT EXISTS idx_locality_new_york_times_id ON locality (new_york_times_id);
CREATE INDEX IF NOT EXISTS idx_locality_quattroshapes_id ON locality (quattroshapes_id);
CREATE INDEX IF NOT EXISTS idx_locality_wikidata_id ON locality (wikidata_id);
CREATE INDEX IF NOT EXISTS idx_locality_country_iso ON locality (country_iso);

CREATE TABLE IF NOT EXISTS locality_dup (
	wof_id    INTEGER PRIMARY KEY,
	marked_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ingest_run (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	processed    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_ingest_run_started_at ON ingest_run (started_at);
`

// Migrate implements Store.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// TruncateLocalities implements Store. Duplicate markers are kept.
func (s *SQLiteStore) TruncateLocalities(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locality`)
	return eris.Wrap(err, "sqlite: truncate locality")
}

// InsertLocality implements Store.
func (s *SQLiteStore) InsertLocality(ctx context.Context, loc *model.Locality) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, liteInsertLocality, loc.Values()...)
		return err
	})
	return eris.Wrapf(err, "sqlite: insert locality %d", loc.WOFID)
}

// GetLocality implements Store.
func (s *SQLiteStore) GetLocality(ctx context.Context, wofID int64) (*model.Locality, error) {
	var loc model.Locality
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM locality WHERE wof_id = ?`, liteLocalitySelect),
		wofID,
	).Scan(loc.ScanTargets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get locality %d", wofID)
	}
	return &loc, nil
}

// RegionIDs implements Store.
func (s *SQLiteStore) RegionIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT wof_id FROM region`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list region ids")
	}
	defer rows.Close() //nolint:errcheck

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region id")
		}
		ids[id] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list region ids")
}

// UpsertRegion implements Store.
func (s *SQLiteStore) UpsertRegion(ctx context.Context, r *model.Region) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, liteUpsertRegion, r.Values()...)
		return err
	})
	return eris.Wrapf(err, "sqlite: upsert region %d", r.WOFID)
}

// SharedIdentifierLocalities implements Store.
func (s *SQLiteStore) SharedIdentifierLocalities(ctx context.Context, col string) ([]model.Locality, error) {
	if err := checkIdentifierColumn(col); err != nil {
		return nil, err
	}
	c := db.Ident(col)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM locality
		WHERE %s IN (
			SELECT %s FROM locality
			WHERE %s IS NOT NULL
			GROUP BY %s
			HAVING count(*) > 1
		)
		ORDER BY %s, wof_id`,
		liteLocalitySelect, c, c, c, c, c,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: shared %s", col)
	}
	defer rows.Close() //nolint:errcheck

	var locs []model.Locality
	for rows.Next() {
		var loc model.Locality
		if err := rows.Scan(loc.ScanTargets()...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan shared %s", col)
		}
		locs = append(locs, loc)
	}
	return locs, eris.Wrapf(rows.Err(), "sqlite: shared %s", col)
}

// MarkDuplicate implements Store.
func (s *SQLiteStore) MarkDuplicate(ctx context.Context, wofID int64) (bool, error) {
	var inserted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, liteMarkDuplicate, wofID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "rows affected")
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark duplicate %d", wofID)
	}
	return inserted, nil
}

// IsDuplicate implements Store.
func (s *SQLiteStore) IsDuplicate(ctx context.Context, wofID int64) (bool, error) {
	var dup bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM locality_dup WHERE wof_id = ?)`, wofID,
	).Scan(&dup)
	return dup, eris.Wrapf(err, "sqlite: is duplicate %d", wofID)
}

// DuplicateIDs implements Store.
func (s *SQLiteStore) DuplicateIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT wof_id FROM locality_dup ORDER BY wof_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list duplicates")
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan duplicate")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list duplicates")
}

// Stats implements Store. SQLite has no percentile aggregate, so the
// median is picked with LIMIT/OFFSET over the sorted populations.
func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM locality),
			(SELECT count(*) FROM region),
			(SELECT count(*) FROM locality_dup),
			(SELECT COALESCE(AVG(population), 0) FROM (
				SELECT population FROM locality WHERE population > 0
				ORDER BY population
				LIMIT 2 - (SELECT count(*) FROM locality WHERE population > 0) % 2
				OFFSET (SELECT (count(*) - 1) / 2 FROM locality WHERE population > 0)
			))`,
	).Scan(&st.Localities, &st.Regions, &st.Duplicates, &st.MedianPopulation)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &st, nil
}

// StartRun implements Store.
func (s *SQLiteStore) StartRun(ctx context.Context, kind model.RunKind) (*model.IngestRun, error) {
	run := &model.IngestRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_run (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start %s run", kind)
	}
	return run, nil
}

// CompleteRun implements Store.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, counts, nil)
}

// FailRun implements Store.
func (s *SQLiteStore) FailRun(ctx context.Context, runID string, counts model.RunCounts, msg string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, counts, &msg)
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, msg *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_run SET status = ?, completed_at = ?, processed = ?, failed = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), counts.Processed, counts.Failed, msg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// ListRuns implements Store.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, started_at, completed_at, processed, failed, error
		 FROM ingest_run ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
