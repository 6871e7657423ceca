// Package store persists localities, regions, duplicate markers and
// ingest runs in Postgres (PostGIS) or SQLite.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gazetteer/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the gazetteer.
type Store interface {
	// Localities
	TruncateLocalities(ctx context.Context) error
	InsertLocality(ctx context.Context, loc *model.Locality) error
	GetLocality(ctx context.Context, wofID int64) (*model.Locality, error)

	// Regions
	RegionIDs(ctx context.Context) (map[int64]struct{}, error)
	UpsertRegion(ctx context.Context, r *model.Region) error

	// Deduplication

	// SharedIdentifierLocalities returns every locality whose value in the
	// identifier column col is shared with at least one other locality,
	// ordered by that value, then wof_id.
	SharedIdentifierLocalities(ctx context.Context, col string) ([]model.Locality, error)
	// MarkDuplicate records wofID as a duplicate. It reports false when the
	// marker already existed.
	MarkDuplicate(ctx context.Context, wofID int64) (bool, error)
	IsDuplicate(ctx context.Context, wofID int64) (bool, error)
	DuplicateIDs(ctx context.Context) ([]int64, error)

	Stats(ctx context.Context) (*model.Stats, error)

	// Ingest runs
	StartRun(ctx context.Context, kind model.RunKind) (*model.IngestRun, error)
	CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error
	FailRun(ctx context.Context, runID string, counts model.RunCounts, msg string) error
	ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// checkIdentifierColumn guards column names interpolated into SQL.
func checkIdentifierColumn(col string) error {
	if !model.IsIdentifierColumn(col) {
		return eris.Errorf("store: %q is not an identifier column", col)
	}
	return nil
}
