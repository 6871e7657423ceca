package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Placeholder renders the bind parameter for the n-th (1-based) argument.
type Placeholder func(n int) string

// Dollar renders Postgres-style placeholders ($1, $2, ...).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question renders SQLite-style placeholders (?).
func Question(int) string { return "?" }

// UpsertConfig defines the parameters for a single-row insert statement.
type UpsertConfig struct {
	Table        string            // target table (e.g., "locality")
	Columns      []string          // all columns being inserted
	ConflictKeys []string          // columns forming the unique constraint; nil = plain INSERT
	UpdateCols   []string          // columns to update on conflict; nil = all non-conflict columns
	DoNothing    bool              // ON CONFLICT DO NOTHING instead of DO UPDATE
	ValueExprs   map[string]string // per-column value wrapper, e.g. "ST_GeomFromEWKB(%s)"
}

// UpsertSQL builds INSERT ... VALUES (...) [ON CONFLICT (...) DO UPDATE SET ... | DO NOTHING].
func UpsertSQL(cfg UpsertConfig, ph Placeholder) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if cfg.DoNothing && len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	values := make([]string, len(cfg.Columns))
	for i, col := range cfg.Columns {
		v := ph(i + 1)
		if expr, ok := cfg.ValueExprs[col]; ok {
			v = fmt.Sprintf(expr, v)
		}
		values[i] = v
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		sanitizeTable(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(values, ", "),
	)

	if len(cfg.ConflictKeys) == 0 {
		return sql, nil
	}

	conflictList := quoteAndJoin(cfg.ConflictKeys)
	if cfg.DoNothing {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", sql, conflictList), nil
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflictSet := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflictSet[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflictSet[c] {
				updateCols = append(updateCols, c)
			}
		}
	}
	if len(updateCols) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", sql, conflictList), nil
	}

	setClauses := make([]string, len(updateCols))
	for i, col := range updateCols {
		setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", pgx.Identifier{col}.Sanitize(), pgx.Identifier{col}.Sanitize())
	}

	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", sql, conflictList, strings.Join(setClauses, ", ")), nil
}

// SelectList quotes and joins columns, wrapping those present in exprs
// (e.g. "ST_AsEWKB(%s)").
func SelectList(cols []string, exprs map[string]string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		q := pgx.Identifier{c}.Sanitize()
		if expr, ok := exprs[c]; ok {
			q = fmt.Sprintf(expr, q)
		}
		out[i] = q
	}
	return strings.Join(out, ", ")
}

// Ident quotes a single identifier.
func Ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// sanitizeTable handles schema-qualified table names like "public.locality".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
