package store

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gazetteer/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64  { return &i }

// anyArgs matches n positional arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresSQL_Prebuilt(t *testing.T) {
	assert.Contains(t, pgInsertLocality, `INSERT INTO "locality"`)
	assert.Contains(t, pgInsertLocality, "ST_GeomFromEWKB($24)")
	assert.NotContains(t, pgInsertLocality, "ON CONFLICT")

	assert.Contains(t, pgUpsertRegion, `ON CONFLICT ("wof_id") DO UPDATE SET`)
	assert.Equal(t, `INSERT INTO "locality_dup" ("wof_id") VALUES ($1) ON CONFLICT ("wof_id") DO NOTHING`, pgMarkDuplicate)
	assert.Contains(t, pgLocalitySelect, `ST_AsEWKB("geom")`)
}

func TestPostgres_TruncateLocalities(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("TRUNCATE locality").WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))

	require.NoError(t, s.TruncateLocalities(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertLocality(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "locality" `).
		WithArgs(anyArgs(len(model.LocalityColumns))...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	loc := &model.Locality{WOFID: 101748417, Name: strPtr("Peoria")}
	require.NoError(t, s.InsertLocality(context.Background(), loc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertLocality_ConstraintRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "locality" `).
		WithArgs(anyArgs(len(model.LocalityColumns))...).
		WillReturnError(errors.New(`new row violates check constraint "locality_geom_check"`))
	mock.ExpectRollback()

	err := s.InsertLocality(context.Background(), &model.Locality{WOFID: 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert locality 42")
	assert.Contains(t, err.Error(), "locality_geom_check")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetLocality_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM locality WHERE wof_id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLocality(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RegionIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT wof_id FROM region").
		WillReturnRows(pgxmock.NewRows([]string{"wof_id"}).AddRow(int64(85688697)).AddRow(int64(85688637)))

	ids, err := s.RegionIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, int64(85688697))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertRegion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "region" .* ON CONFLICT`).
		WithArgs(anyArgs(len(model.RegionColumns))...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpsertRegion(context.Background(), &model.Region{WOFID: 85688697, Name: strPtr("Illinois")}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SharedIdentifierLocalities_RejectsColumn(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.SharedIdentifierLocalities(context.Background(), "name; DROP TABLE locality")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an identifier column")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SharedIdentifierLocalities_QueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`HAVING count\(\*\) > 1`).WillReturnError(errors.New("connection reset"))

	_, err := s.SharedIdentifierLocalities(context.Background(), "wikidata_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared wikidata_id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MarkDuplicate(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "inserted", affected: 1, want: true},
		{name: "already marked", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO "locality_dup"`).
				WithArgs(int64(5)).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.affected))
			mock.ExpectCommit()

			got, err := s.MarkDuplicate(context.Background(), 5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgres_MarkDuplicate_Error(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "locality_dup"`).WithArgs(int64(5)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	ok, err := s.MarkDuplicate(context.Background(), 5)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "mark duplicate 5")
}

func TestPostgres_IsDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	dup, err := s.IsDuplicate(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DuplicateIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT wof_id FROM locality_dup").
		WillReturnRows(pgxmock.NewRows([]string{"wof_id"}).AddRow(int64(1)).AddRow(int64(3)))

	ids, err := s.DuplicateIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Stats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("percentile_cont").
		WillReturnRows(pgxmock.NewRows([]string{"localities", "regions", "duplicates", "median"}).
			AddRow(int64(10), int64(2), int64(3), float64(5000)))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &model.Stats{Localities: 10, Regions: 2, Duplicates: 3, MedianPopulation: 5000}, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StartRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO ingest_run").
		WithArgs(pgxmock.AnyArg(), "localities", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.StartRun(context.Background(), model.RunKindLocalities)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE ingest_run").
		WithArgs("complete", int64(1), int64(0), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", model.RunCounts{Processed: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FailRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE ingest_run").
		WithArgs("failed", int64(3), int64(1), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", model.RunCounts{Processed: 3, Failed: 1}, "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock := newMockStore(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	done := started.Add(time.Minute)
	msg := "source directory missing"
	mock.ExpectQuery("FROM ingest_run ORDER BY started_at DESC").
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "status", "started_at", "completed_at", "processed", "failed", "error"}).
			AddRow("run-1", "dedup", "failed", started, &done, int64(4), int64(1), &msg))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunKindDedup, runs[0].Kind)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Equal(t, msg, runs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func migrationFileNames(t *testing.T) []string {
	t.Helper()
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func expectMigrationPreamble(mock pgxmock.PgxPoolIface, applied *pgxmock.Rows) {
	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(applied)
}

func expectMigrationApplied(mock pgxmock.PgxPoolIface, name string) {
	mock.ExpectBegin()
	mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("EXEC", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(name).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func expectMigrationUnlock(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func TestMigrate_FreshDB(t *testing.T) {
	s, mock := newMockStore(t)

	expectMigrationPreamble(mock, pgxmock.NewRows([]string{"filename"}))
	for _, name := range migrationFileNames(t) {
		expectMigrationApplied(mock, name)
	}
	expectMigrationUnlock(mock)

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AllApplied(t *testing.T) {
	s, mock := newMockStore(t)

	applied := pgxmock.NewRows([]string{"filename"})
	for _, name := range migrationFileNames(t) {
		applied.AddRow(name)
	}
	expectMigrationPreamble(mock, applied)
	expectMigrationUnlock(mock)

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesOnlyPending(t *testing.T) {
	s, mock := newMockStore(t)

	names := migrationFileNames(t)
	require.GreaterOrEqual(t, len(names), 2)

	expectMigrationPreamble(mock, pgxmock.NewRows([]string{"filename"}).AddRow(names[0]))
	for _, name := range names[1:] {
		expectMigrationApplied(mock, name)
	}
	expectMigrationUnlock(mock)

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_ApplyErrorRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	expectMigrationPreamble(mock, pgxmock.NewRows([]string{"filename"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE EXTENSION").WillReturnError(errors.New(`extension "postgis" is not available`))
	mock.ExpectRollback()
	expectMigrationUnlock(mock)

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_gazetteer.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_RecordErrorRollsBackFile(t *testing.T) {
	s, mock := newMockStore(t)

	expectMigrationPreamble(mock, pgxmock.NewRows([]string{"filename"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE EXTENSION").WillReturnResult(pgxmock.NewResult("EXEC", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("001_gazetteer.sql").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()
	expectMigrationUnlock(mock)

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record migration 001_gazetteer.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
