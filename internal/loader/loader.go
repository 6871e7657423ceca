// Package loader populates the gazetteer tables from a tree of Who's On
// First GeoJSON documents.
package loader

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gazetteer/internal/model"
	"github.com/sells-group/gazetteer/internal/wof"
)

// Store is the subset of store.Store the loader writes through.
type Store interface {
	TruncateLocalities(ctx context.Context) error
	InsertLocality(ctx context.Context, loc *model.Locality) error
	RegionIDs(ctx context.Context) (map[int64]struct{}, error)
	UpsertRegion(ctx context.Context, r *model.Region) error
}

// Source yields parsed documents to a single consumer. *wof.Repo
// implements it.
type Source interface {
	Each(ctx context.Context, fn func(wof.Parsed) error) error
}

// Stats summarizes a load.
type Stats struct {
	Processed int64 `json:"processed"`
	Inserted  int64 `json:"inserted"`
	Failed    int64 `json:"failed"`
}

// Counts converts the stats into run counters.
func (s *Stats) Counts() model.RunCounts {
	return model.RunCounts{Processed: s.Processed, Failed: s.Failed}
}

// Loader writes WOF documents into a Store.
type Loader struct {
	store Store
}

// New creates a Loader.
func New(s Store) *Loader {
	return &Loader{store: s}
}

// LoadLocalities clears the locality table and inserts one row per
// document from src. Unparseable documents and rows the store rejects are
// logged, counted as failed and skipped. The returned error is non-nil
// only for failures that stop the whole load; stats are returned either
// way.
func (l *Loader) LoadLocalities(ctx context.Context, src Source) (*Stats, error) {
	log := zap.L().With(zap.String("component", "loader.localities"))
	start := time.Now()
	stats := &Stats{}

	if err := l.store.TruncateLocalities(ctx); err != nil {
		return stats, eris.Wrap(err, "loader: clear localities")
	}

	regions, err := l.store.RegionIDs(ctx)
	if err != nil {
		return stats, eris.Wrap(err, "loader: load region ids")
	}

	err = src.Each(ctx, func(p wof.Parsed) error {
		stats.Processed++
		if p.Err != nil {
			stats.Failed++
			log.Warn("skipping unparseable document", zap.String("path", p.Path), zap.Error(p.Err))
			return nil
		}

		loc := wof.ExtractLocality(p.Doc)
		if loc.WOFRegionID != nil {
			if _, ok := regions[*loc.WOFRegionID]; !ok {
				log.Debug("dropping unknown region reference",
					zap.Int64("wof_id", loc.WOFID),
					zap.Int64("wof_region_id", *loc.WOFRegionID),
				)
				loc.WOFRegionID = nil
			}
		}

		if err := l.store.InsertLocality(ctx, &loc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Failed++
			log.Error("failed to insert locality",
				zap.Int64("wof_id", loc.WOFID),
				zap.String("country_iso", model.Deref(loc.CountryISO)),
				zap.String("name", model.Deref(loc.Name)),
				zap.Error(err),
			)
			return nil
		}
		stats.Inserted++
		return nil
	})

	log.Info("locality load finished",
		zap.Int64("processed", stats.Processed),
		zap.Int64("inserted", stats.Inserted),
		zap.Int64("failed", stats.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		return stats, eris.Wrap(err, "loader: read localities")
	}
	return stats, nil
}

// LoadRegions inserts or updates one region row per document from src.
// Region rows are never cleared, so existing locality references stay
// valid.
func (l *Loader) LoadRegions(ctx context.Context, src Source) (*Stats, error) {
	log := zap.L().With(zap.String("component", "loader.regions"))
	start := time.Now()
	stats := &Stats{}

	err := src.Each(ctx, func(p wof.Parsed) error {
		stats.Processed++
		if p.Err != nil {
			stats.Failed++
			log.Warn("skipping unparseable document", zap.String("path", p.Path), zap.Error(p.Err))
			return nil
		}

		r := wof.ExtractRegion(p.Doc)
		if err := l.store.UpsertRegion(ctx, &r); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Failed++
			log.Error("failed to upsert region",
				zap.Int64("wof_id", r.WOFID),
				zap.String("placetype", p.Doc.Placetype()),
				zap.String("name", model.Deref(r.Name)),
				zap.Error(err),
			)
			return nil
		}
		stats.Inserted++
		return nil
	})

	log.Info("region load finished",
		zap.Int64("processed", stats.Processed),
		zap.Int64("upserted", stats.Inserted),
		zap.Int64("failed", stats.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		return stats, eris.Wrap(err, "loader: read regions")
	}
	return stats, nil
}
