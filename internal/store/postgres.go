package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gazetteer/internal/db"
	"github.com/sells-group/gazetteer/internal/model"
	"github.com/sells-group/gazetteer/internal/resilience"
)

// PostgresStore implements Store using pgxpool and PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var _ Store = (*PostgresStore)(nil)

var (
	pgInsertLocality = mustSQL(db.UpsertSQL(db.UpsertConfig{
		Table:      "locality",
		Columns:    model.LocalityColumns,
		ValueExprs: map[string]string{"geom": "ST_GeomFromEWKB(%s)"},
	}, db.Dollar))

	pgUpsertRegion = mustSQL(db.UpsertSQL(db.UpsertConfig{
		Table:        "region",
		Columns:      model.RegionColumns,
		ConflictKeys: []string{"wof_id"},
	}, db.Dollar))

	pgMarkDuplicate = mustSQL(db.UpsertSQL(db.UpsertConfig{
		Table:        "locality_dup",
		Columns:      []string{"wof_id"},
		ConflictKeys: []string{"wof_id"},
		DoNothing:    true,
	}, db.Dollar))

	pgLocalitySelect = db.SelectList(model.LocalityColumns, map[string]string{"geom": "ST_AsEWKB(%s)"})
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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
	if err := resilience.Do(ctx, resilience.ConnectRetryConfig("postgres"), pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Migrate implements Store.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// TruncateLocalities implements Store. Duplicate markers are kept.
func (s *PostgresStore) TruncateLocalities(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE locality`)
	return eris.Wrap(err, "postgres: truncate locality")
}

// InsertLocality implements Store. The row is committed in its own
// transaction.
func (s *PostgresStore) InsertLocality(ctx context.Context, loc *model.Locality) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, pgInsertLocality, loc.Values()...)
		return err
	})
	return eris.Wrapf(err, "postgres: insert locality %d", loc.WOFID)
}

// GetLocality implements Store.
func (s *PostgresStore) GetLocality(ctx context.Context, wofID int64) (*model.Locality, error) {
	var loc model.Locality
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM locality WHERE wof_id = $1`, pgLocalitySelect),
		wofID,
	).Scan(loc.ScanTargets()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get locality %d", wofID)
	}
	return &loc, nil
}

// RegionIDs implements Store.
func (s *PostgresStore) RegionIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT wof_id FROM region`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list region ids")
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region id")
		}
		ids[id] = struct{}{}
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list region ids")
}

// UpsertRegion implements Store.
func (s *PostgresStore) UpsertRegion(ctx context.Context, r *model.Region) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, pgUpsertRegion, r.Values()...)
		return err
	})
	return eris.Wrapf(err, "postgres: upsert region %d", r.WOFID)
}

// SharedIdentifierLocalities implements Store.
func (s *PostgresStore) SharedIdentifierLocalities(ctx context.Context, col string) ([]model.Locality, error) {
	if err := checkIdentifierColumn(col); err != nil {
		return nil, err
	}
	c := db.Ident(col)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM locality
		WHERE %s IN (
			SELECT %s FROM locality
			WHERE %s IS NOT NULL
			GROUP BY %s
			HAVING count(*) > 1
		)
		ORDER BY %s, wof_id`,
		pgLocalitySelect, c, c, c, c, c,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: shared %s", col)
	}
	defer rows.Close()

	var locs []model.Locality
	for rows.Next() {
		var loc model.Locality
		if err := rows.Scan(loc.ScanTargets()...); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan shared %s", col)
		}
		locs = append(locs, loc)
	}
	return locs, eris.Wrapf(rows.Err(), "postgres: shared %s", col)
}

// MarkDuplicate implements Store.
func (s *PostgresStore) MarkDuplicate(ctx context.Context, wofID int64) (bool, error) {
	var inserted bool
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, pgMarkDuplicate, wofID)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark duplicate %d", wofID)
	}
	return inserted, nil
}

// IsDuplicate implements Store.
func (s *PostgresStore) IsDuplicate(ctx context.Context, wofID int64) (bool, error) {
	var dup bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM locality_dup WHERE wof_id = $1)`, wofID,
	).Scan(&dup)
	return dup, eris.Wrapf(err, "postgres: is duplicate %d", wofID)
}

// DuplicateIDs implements Store.
func (s *PostgresStore) DuplicateIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT wof_id FROM locality_dup ORDER BY wof_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list duplicates")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list duplicates")
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM locality),
			(SELECT count(*) FROM region),
			(SELECT count(*) FROM locality_dup),
			(SELECT COALESCE(percentile_cont(0.5) WITHIN GROUP (ORDER BY population), 0)
			   FROM locality WHERE population > 0)`,
	).Scan(&st.Localities, &st.Regions, &st.Duplicates, &st.MedianPopulation)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &st, nil
}

// StartRun implements Store.
func (s *PostgresStore) StartRun(ctx context.Context, kind model.RunKind) (*model.IngestRun, error) {
	run := &model.IngestRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_run (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Kind), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start %s run", kind)
	}
	return run, nil
}

// CompleteRun implements Store.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, counts, nil)
}

// FailRun implements Store.
func (s *PostgresStore) FailRun(ctx context.Context, runID string, counts model.RunCounts, msg string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, counts, &msg)
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts, msg *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_run
		 SET status = $1, completed_at = now(), processed = $2, failed = $3, error = $4
		 WHERE id = $5`,
		string(status), counts.Processed, counts.Failed, msg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

// ListRuns implements Store.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, status, started_at, completed_at, processed, failed, error
		 FROM ingest_run ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.IngestRun, error) {
	var r model.IngestRun
	var kind, status string
	var errStr *string
	if err := row.Scan(&r.ID, &kind, &status, &r.StartedAt, &r.CompletedAt, &r.Processed, &r.Failed, &errStr); err != nil {
		return nil, err
	}
	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	if errStr != nil {
		r.Error = *errStr
	}
	return &r, nil
}

func mustSQL(sql string, err error) string {
	if err != nil {
		panic(err)
	}
	return sql
}
