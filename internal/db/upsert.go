package db

import (
	"context"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a keyed bulk write into one sa table.
type UpsertConfig struct {
	Table        string   // schema-qualified, e.g. "sa.school"
	Columns      []string // columns of every row, in order
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // nil updates every non-key column
	// ExtraSet entries are appended verbatim to DO UPDATE SET, e.g.
	// "updated_at = now()".
	ExtraSet []string
}

func (c UpsertConfig) validate() error {
	switch {
	case len(c.Columns) == 0:
		return eris.Errorf("db: upsert %s: no columns specified", c.Table)
	case len(c.ConflictKeys) == 0:
		return eris.Errorf("db: upsert %s: no conflict keys specified", c.Table)
	}
	return nil
}

// TempTableName is the staging table COPY writes into before the merge.
func (c UpsertConfig) TempTableName() string {
	return "_tmp_upsert_" + strings.ReplaceAll(c.Table, ".", "_")
}

func (c UpsertConfig) updateColumns() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	var cols []string
	for _, col := range c.Columns {
		if !slices.Contains(c.ConflictKeys, col) {
			cols = append(cols, col)
		}
	}
	return cols
}

func (c UpsertConfig) createTempSQL() string {
	return "CREATE TEMP TABLE " + pgx.Identifier{c.TempTableName()}.Sanitize() +
		" (LIKE " + tableIdent(c.Table).Sanitize() + " INCLUDING DEFAULTS) ON COMMIT DROP"
}

func (c UpsertConfig) insertSQL() string {
	set := make([]string, 0, len(c.Columns)+len(c.ExtraSet))
	for _, col := range c.updateColumns() {
		q := pgx.Identifier{col}.Sanitize()
		set = append(set, q+" = EXCLUDED."+q)
	}
	set = append(set, c.ExtraSet...)

	cols := quoteAndJoin(c.Columns)
	var b strings.Builder
	b.WriteString("INSERT INTO " + tableIdent(c.Table).Sanitize())
	b.WriteString(" (" + cols + ") SELECT " + cols)
	b.WriteString(" FROM " + pgx.Identifier{c.TempTableName()}.Sanitize())
	b.WriteString(" ON CONFLICT (" + quoteAndJoin(c.ConflictKeys) + ")")
	if len(set) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET " + strings.Join(set, ", "))
	}
	return b.String()
}

// BulkUpsert stages rows in a temp table with COPY, then merges them into
// cfg.Table with INSERT ... ON CONFLICT in the same transaction. It returns
// the number of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: begin", cfg.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, cfg.createTempSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: create temp table", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{cfg.TempTableName()}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: copy into temp table", cfg.Table)
	}
	tag, err := tx.Exec(ctx, cfg.insertSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: merge", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: commit", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// tableIdent splits "schema.table" into a qualified identifier.
func tableIdent(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
