// Package db provides the Postgres helpers used by the exporters: table
// replacement and batched COPY.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize is the COPY batch size when none is given.
const DefaultBatchSize = 5000

// Pool is the subset of pgxpool.Pool used here. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopyFrom bulk-inserts rows into schema.table using the COPY protocol, in
// batches of batchSize rows (0 means DefaultBatchSize).
func CopyFrom(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "db.copy"),
		zap.String("table", schema+"."+table),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s.%s (batch %d-%d)", schema, table, i, end)
		}
		total += n
		log.Debug("batch loaded", zap.Int("batch_start", i), zap.Int("batch_end", end), zap.Int64("batch_rows", n))
	}
	return total, nil
}

// Column is a column definition for CreateTable.
type Column struct {
	Name string
	Type string
}

// CreateTable creates schema.table with the given columns.
func CreateTable(ctx context.Context, pool Pool, schema, table string, columns []Column) error {
	if len(columns) == 0 {
		return eris.Errorf("db: create %s.%s: no columns specified", schema, table)
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.Type
	}
	sql := fmt.Sprintf("CREATE TABLE %s (%s)", pgx.Identifier{schema, table}.Sanitize(), strings.Join(defs, ", "))
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "db: create %s.%s", schema, table)
	}
	return nil
}

// DropTable drops schema.table if it exists.
func DropTable(ctx context.Context, pool Pool, schema, table string) error {
	sql := "DROP TABLE IF EXISTS " + pgx.Identifier{schema, table}.Sanitize()
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "db: drop %s.%s", schema, table)
	}
	return nil
}

// RenameTable renames schema.from to to within the same schema.
func RenameTable(ctx context.Context, pool Pool, schema, from, to string) error {
	sql := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", pgx.Identifier{schema, from}.Sanitize(), pgx.Identifier{to}.Sanitize())
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "db: rename %s.%s", schema, from)
	}
	return nil
}
