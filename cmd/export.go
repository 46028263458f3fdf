package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/db"
	"github.com/iwmi/leaf-dss/internal/export"
	"github.com/iwmi/leaf-dss/internal/feasibility"
	"github.com/iwmi/leaf-dss/internal/unit"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export units as CSV, GeoJSON, SQLite or PostGIS",
	Long: `Export the block or GP collection, optionally scored.

Formats:
  csv       attribute table without geometry
  geojson   FeatureCollection with every attribute
  sqlite    table with an EWKB geometry blob (requires --output)
  postgres  COPY into a staging table swapped in for export.table

Examples:
  export --format geojson --output blocks.geojson
  export --level gp --intervention Fishery --format sqlite --output leaf.db
  export --format postgres --table leaf_blocks`,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.String("format", "csv", "output format: csv, geojson, sqlite or postgres")
	f.String("level", "block", "unit level: block or gp")
	f.String("output", "", "output file path (default: stdout; required for sqlite)")
	f.String("table", "", "target table (default from config)")
	f.String("schema", "", "postgres schema (default from config)")
	f.Int("batch-size", db.DefaultBatchSize, "rows per COPY batch")
	f.StringSlice("criteria", nil, "score with column:min:max[:weight] before export")
	f.String("intervention", "", "score with the variables of this intervention before export")
	f.String("logic", "AND", "criteria combination: AND or OR")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")
	level, _ := cmd.Flags().GetString("level")
	outputPath, _ := cmd.Flags().GetString("output")
	table, _ := cmd.Flags().GetString("table")
	schemaName, _ := cmd.Flags().GetString("schema")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	rawCriteria, _ := cmd.Flags().GetStringSlice("criteria")
	intervention, _ := cmd.Flags().GetString("intervention")
	logic, _ := cmd.Flags().GetString("logic")

	mode := "engine"
	switch format {
	case "csv", "geojson":
	case "sqlite":
		if outputPath == "" {
			return eris.New("export: --output is required for sqlite")
		}
	case "postgres":
		mode = "postgres"
	default:
		return eris.Errorf("export: --format must be csv, geojson, sqlite or postgres (got %q)", format)
	}
	if table != "" {
		cfg.Export.Table = table
	}
	if schemaName != "" {
		cfg.Export.Schema = schemaName
	}
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	kind, err := unit.ParseKind(level)
	if err != nil {
		return err
	}
	criteria, err := parseCriteria(rawCriteria)
	if err != nil {
		return err
	}

	cache := newCache()
	coll, err := cache.Collection(ctx, kind)
	if err != nil {
		return eris.Wrapf(err, "export: load %s units", kind)
	}
	if len(criteria) == 0 && intervention != "" {
		iv, err := cache.Intervention(ctx, intervention, kind)
		if err != nil {
			return eris.Wrapf(err, "export: intervention %q", intervention)
		}
		criteria = feasibility.CriteriaFromConfig(iv.Variables)
	}
	if len(criteria) > 0 {
		coll = feasibility.Apply(coll, criteria, feasibility.ParseLogic(logic))
	}

	log := zap.L().With(zap.String("command", "export"), zap.String("format", format))

	switch format {
	case "sqlite":
		n, err := export.WriteSQLite(ctx, outputPath, sqliteTable(kind, table), coll)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d rows to %s\n", n, outputPath)
	case "postgres":
		pool, err := exportPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := export.CopyToPostgres(ctx, pool, cfg.Export.Schema, cfg.Export.Table, coll, batchSize)
		if err != nil {
			return err
		}
		fmt.Printf("Copied %d rows to %s.%s\n", n, cfg.Export.Schema, cfg.Export.Table)
	default:
		if err := writeFile(outputPath, func(w io.Writer) error {
			if format == "geojson" {
				return export.WriteGeoJSON(w, coll)
			}
			return export.WriteCSV(w, coll)
		}); err != nil {
			return eris.Wrapf(err, "export: write %s", format)
		}
	}

	log.Info("export complete", zap.String("level", string(kind)), zap.Int("units", coll.Len()))
	return nil
}

// sqliteTable names the SQLite table: an explicit --table wins, otherwise
// one table per level.
func sqliteTable(kind unit.Kind, table string) string {
	if table != "" {
		return table
	}
	return "leaf_" + string(kind)
}

// writeFile runs write against path, or stdout when path is empty.
func writeFile(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// exportPool connects to export.database_url, retrying while the database
// is unreachable.
func exportPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg.Export.DatabaseURL, db.DefaultRetryPolicy())
	if err != nil {
		return nil, eris.Wrap(err, "export: connect")
	}

	fmt.Println("Connected to database")
	return pool, nil
}
