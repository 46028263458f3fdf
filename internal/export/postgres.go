package export

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/db"
	"github.com/iwmi/leaf-dss/internal/unit"
)

var postgresTypes = map[ColumnType]string{
	TypeText:    "text",
	TypeInteger: "bigint",
	TypeReal:    "double precision",
}

// PostgresGeomType is the column type of the exported geometry.
var PostgresGeomType = fmt.Sprintf("geometry(MultiPolygon, %d)", SRID)

// CopyToPostgres replaces schema.table with the rows of coll. Rows are
// COPied into a uniquely named staging table that is renamed over the
// target once loaded, so a failed load leaves the previous table intact.
func CopyToPostgres(ctx context.Context, pool db.Pool, schema, table string, coll unit.Collection, batchSize int) (int64, error) {
	types := InferTypes(coll)
	data, err := rows(coll, types, true)
	if err != nil {
		return 0, err
	}

	columns := append(slices.Clone(coll.Columns), GeomColumn)
	defs := make([]db.Column, 0, len(columns))
	for i, col := range coll.Columns {
		defs = append(defs, db.Column{Name: col, Type: postgresTypes[types[i]]})
	}
	defs = append(defs, db.Column{Name: GeomColumn, Type: PostgresGeomType})

	stage := StagingName(table)
	if err := db.CreateTable(ctx, pool, schema, stage, defs); err != nil {
		return 0, eris.Wrap(err, "export: postgres staging table")
	}
	n, err := db.CopyFrom(ctx, pool, schema, stage, columns, data, batchSize)
	if err != nil {
		if dropErr := db.DropTable(ctx, pool, schema, stage); dropErr != nil {
			zap.L().Warn("export: drop staging table", zap.String("table", stage), zap.Error(dropErr))
		}
		return 0, eris.Wrap(err, "export: postgres copy")
	}
	if err := db.DropTable(ctx, pool, schema, table); err != nil {
		return 0, eris.Wrap(err, "export: postgres replace")
	}
	if err := db.RenameTable(ctx, pool, schema, stage, table); err != nil {
		return 0, eris.Wrap(err, "export: postgres replace")
	}

	zap.L().Info("export: postgres table written",
		zap.String("component", "export"),
		zap.String("table", schema+"."+table),
		zap.Int64("rows", n),
	)
	return n, nil
}

var stageSuffix = func() string { return uuid.NewString()[:8] }

// StagingName returns a unique staging table name for table.
func StagingName(table string) string {
	return table + "_stage_" + stageSuffix()
}
