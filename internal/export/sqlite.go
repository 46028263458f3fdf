package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/iwmi/leaf-dss/internal/unit"
)

var sqliteTypes = map[ColumnType]string{
	TypeText:    "TEXT",
	TypeInteger: "INTEGER",
	TypeReal:    "REAL",
}

// WriteSQLite replaces table in the SQLite database at path with the rows
// of coll. Geometry is stored as an EWKB blob in the geom column.
func WriteSQLite(ctx context.Context, path, table string, coll unit.Collection) (int, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, eris.Wrap(err, "export: sqlite open")
	}
	defer db.Close()

	types := InferTypes(coll)
	data, err := rows(coll, types, true)
	if err != nil {
		return 0, err
	}

	defs := make([]string, 0, len(coll.Columns)+1)
	for i, col := range coll.Columns {
		defs = append(defs, quoteSQLite(col)+" "+sqliteTypes[types[i]])
	}
	defs = append(defs, quoteSQLite(GeomColumn)+" BLOB")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "export: sqlite begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteSQLite(table)); err != nil {
		return 0, eris.Wrapf(err, "export: sqlite drop %s", table)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteSQLite(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "export: sqlite create %s", table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(defs)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteSQLite(table), placeholders))
	if err != nil {
		return 0, eris.Wrapf(err, "export: sqlite prepare insert %s", table)
	}
	defer stmt.Close()

	for i, row := range data {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "export: sqlite insert row %d", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "export: sqlite commit")
	}

	zap.L().Info("export: sqlite table written",
		zap.String("component", "export"),
		zap.String("path", path),
		zap.String("table", table),
		zap.Int("rows", len(data)),
	)
	return len(data), nil
}

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
