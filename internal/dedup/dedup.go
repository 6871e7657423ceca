// Package dedup marks duplicate localities: rows that share an external
// identifier with a more complete row.
package dedup

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gazetteer/internal/model"
)

// Store is the subset of store.Store the deduplicator needs.
type Store interface {
	SharedIdentifierLocalities(ctx context.Context, col string) ([]model.Locality, error)
	MarkDuplicate(ctx context.Context, wofID int64) (bool, error)
}

// ColumnResult counts what one identifier column contributed.
type ColumnResult struct {
	Column        string `json:"column"`
	Groups        int    `json:"groups"`
	Candidates    int    `json:"candidates"`
	Marked        int    `json:"marked"`
	AlreadyMarked int    `json:"already_marked"`
	Failed        int    `json:"failed"`
}

// Result aggregates a full pass.
type Result struct {
	Columns []ColumnResult `json:"columns"`
	Total   ColumnResult   `json:"total"`
}

// Counts converts the result into run counters.
func (r *Result) Counts() model.RunCounts {
	return model.RunCounts{Processed: int64(r.Total.Candidates), Failed: int64(r.Total.Failed)}
}

func (r *Result) add(c ColumnResult) {
	r.Columns = append(r.Columns, c)
	r.Total.Groups += c.Groups
	r.Total.Candidates += c.Candidates
	r.Total.Marked += c.Marked
	r.Total.AlreadyMarked += c.AlreadyMarked
	r.Total.Failed += c.Failed
}

// Deduplicator runs the marking pass over a fixed list of columns.
type Deduplicator struct {
	store   Store
	columns []string
}

// New creates a Deduplicator. An empty column list selects
// model.DefaultDedupColumns. Unknown columns are rejected.
func New(s Store, columns []string) (*Deduplicator, error) {
	if len(columns) == 0 {
		columns = model.DefaultDedupColumns
	}
	for _, c := range columns {
		if !model.IsIdentifierColumn(c) {
			return nil, eris.Errorf("dedup: %q is not an identifier column", c)
		}
	}
	return &Deduplicator{store: s, columns: append([]string(nil), columns...)}, nil
}

// Columns returns the configured columns in pass order.
func (d *Deduplicator) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Run processes every configured column in order. A column whose groups
// cannot be read aborts the pass; the partial result is still returned.
func (d *Deduplicator) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "dedup"))
	start := time.Now()
	res := &Result{}

	for _, col := range d.columns {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		cr, err := d.Column(ctx, col)
		res.add(cr)
		if err != nil {
			return res, err
		}
	}

	log.Info("dedup pass finished",
		zap.Int("groups", res.Total.Groups),
		zap.Int("marked", res.Total.Marked),
		zap.Int("already_marked", res.Total.AlreadyMarked),
		zap.Int("failed", res.Total.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// Column marks the duplicates within one identifier column.
func (d *Deduplicator) Column(ctx context.Context, col string) (ColumnResult, error) {
	log := zap.L().With(zap.String("component", "dedup"), zap.String("column", col))
	cr := ColumnResult{Column: col}

	locs, err := d.store.SharedIdentifierLocalities(ctx, col)
	if err != nil {
		return cr, eris.Wrapf(err, "dedup: read %s groups", col)
	}

	for _, g := range Group(locs, col) {
		cr.Groups++
		for _, loser := range g.Duplicates() {
			cr.Candidates++
			inserted, err := d.store.MarkDuplicate(ctx, loser.WOFID)
			if err != nil {
				if ctx.Err() != nil {
					return cr, ctx.Err()
				}
				cr.Failed++
				log.Error("failed to mark duplicate",
					zap.String("value", g.Value),
					zap.Int64("wof_id", loser.WOFID),
					zap.Int64("kept_wof_id", g.Keep().WOFID),
					zap.Error(err),
				)
				continue
			}
			if inserted {
				cr.Marked++
			} else {
				cr.AlreadyMarked++
			}
		}
	}

	log.Info("column processed",
		zap.Int("groups", cr.Groups),
		zap.Int("marked", cr.Marked),
		zap.Int("already_marked", cr.AlreadyMarked),
		zap.Int("failed", cr.Failed),
	)
	return cr, nil
}

// DuplicateGroup is a set of localities sharing one identifier value,
// ranked best first.
type DuplicateGroup struct {
	Column  string
	Value   string
	Members []model.Locality
}

// Keep returns the row that survives.
func (g DuplicateGroup) Keep() model.Locality { return g.Members[0] }

// Duplicates returns every member except the survivor.
func (g DuplicateGroup) Duplicates() []model.Locality { return g.Members[1:] }

// Group buckets locs by their value in col and ranks each bucket. Rows
// with a null value and buckets with a single member are dropped. Groups
// are returned ordered by value.
func Group(locs []model.Locality, col string) []DuplicateGroup {
	byValue := make(map[string][]model.Locality)
	for _, l := range locs {
		v, ok := l.Identifier(col)
		if !ok {
			continue
		}
		byValue[v] = append(byValue[v], l)
	}

	groups := make([]DuplicateGroup, 0, len(byValue))
	for v, members := range byValue {
		if len(members) < 2 {
			continue
		}
		Rank(members)
		groups = append(groups, DuplicateGroup{Column: col, Value: v, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	return groups
}

// Rank orders locs in place: completeness descending, then wof_id
// ascending.
func Rank(locs []model.Locality) {
	scores := make(map[int64]int, len(locs))
	for i := range locs {
		scores[locs[i].WOFID] = locs[i].Completeness()
	}
	sort.SliceStable(locs, func(i, j int) bool {
		si, sj := scores[locs[i].WOFID], scores[locs[j].WOFID]
		if si != sj {
			return si > sj
		}
		return locs[i].WOFID < locs[j].WOFID
	})
}
