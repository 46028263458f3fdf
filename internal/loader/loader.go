// Package loader reads the block, district and gram-panchayat datasets from
// the configured data directory.
package loader

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/config"
	"github.com/iwmi/leaf-dss/internal/join"
	"github.com/iwmi/leaf-dss/internal/schema"
	"github.com/iwmi/leaf-dss/internal/shape"
	"github.com/iwmi/leaf-dss/internal/table"
	"github.com/iwmi/leaf-dss/internal/unit"
)

var (
	// ErrDataSourceMissing is returned when a required input file is absent.
	ErrDataSourceMissing = eris.New("loader: required data source missing")
	// ErrUnavailable is returned when an optional dataset is absent.
	ErrUnavailable = eris.New("loader: optional dataset unavailable")
)

// Column names of the source datasets.
const (
	ColBlockID      = "BLOCK_ID"
	ColBlockName    = "Block_name"
	ColDistrictID   = "DISTRICT_I"
	ColDistName     = "Dist_Name"
	ColDistNameSrc  = "Dist_name"
	ColGPCode       = "GP_CODE"
	ColGPName       = "GP_NAME"
	ColGPBlockName  = "Block_Name"
	ColVillageCount = "VIL_COUNT"
	ColVillageBW    = "BW"

	colMapGP    = "GP NAME"
	colMapBlock = "BLOCK NAME"
)

// BlockKeys names the identity columns of the block collection.
var BlockKeys = unit.Keys{
	Code:     ColBlockID,
	Name:     ColBlockName,
	Region:   ColDistName,
	RegionID: ColDistrictID,
}

// GPKeys names the identity columns of the GP collection.
var GPKeys = unit.Keys{
	Code:   ColGPCode,
	Name:   ColGPName,
	Region: ColDistName,
	Parent: ColGPBlockName,
}

// Loader reads datasets from disk. It holds no state besides configuration.
type Loader struct {
	cfg       config.DataConfig
	tolerance float64
}

// New creates a Loader. tolerance is the geometry simplification tolerance
// in degrees; 0 disables simplification.
func New(cfg config.DataConfig, tolerance float64) *Loader {
	return &Loader{cfg: cfg, tolerance: tolerance}
}

// Config returns the data configuration.
func (l *Loader) Config() config.DataConfig { return l.cfg }

func (l *Loader) log(dataset string) *zap.Logger {
	return zap.L().With(zap.String("component", "loader"), zap.String("dataset", dataset))
}

// Blocks reads the block shapefile. The file is required.
func (l *Loader) Blocks(ctx context.Context) (unit.Collection, error) {
	if err := ctx.Err(); err != nil {
		return unit.Collection{}, eris.Wrap(err, "loader: blocks")
	}
	path := l.cfg.Path(l.cfg.BlockShapefile)
	if !exists(path) {
		return unit.Collection{}, eris.Wrapf(ErrDataSourceMissing, "block shapefile %s", path)
	}

	start := time.Now()
	coll, err := shape.Read(path, shape.Options{Tolerance: l.tolerance})
	if err != nil {
		return unit.Collection{}, eris.Wrap(err, "loader: read block shapefile")
	}
	coll.Kind = unit.KindBlock
	coll.Keys = BlockKeys

	l.log("blocks").Info("loaded block geometry",
		zap.Int("units", coll.Len()),
		zap.Int("columns", len(coll.Columns)),
		zap.Duration("elapsed", time.Since(start)))
	return coll, nil
}

// DistrictMapping reads DISTRICT_I to district name from the district
// shapefile. A missing file yields an empty mapping.
func (l *Loader) DistrictMapping(ctx context.Context) (map[int64]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "loader: district mapping")
	}
	path := l.cfg.Path(l.cfg.DistrictShapefile)
	if !exists(path) {
		l.log("districts").Info("district shapefile not found, no district names", zap.String("path", path))
		return map[int64]string{}, nil
	}

	coll, err := shape.Read(path, shape.Options{})
	if err != nil {
		return nil, eris.Wrap(err, "loader: read district shapefile")
	}

	mapping := make(map[int64]string, coll.Len())
	for _, u := range coll.Units {
		id, ok := join.NormalizeCode(u.Get(ColDistrictID))
		if !ok {
			continue
		}
		name := strings.TrimSpace(unit.Text(u.Get(ColDistNameSrc)))
		if _, seen := mapping[id]; seen || name == "" {
			continue
		}
		mapping[id] = name
	}

	l.log("districts").Info("loaded district mapping", zap.Int("districts", len(mapping)))
	return mapping, nil
}

// GPGeometry reads the GP shapefile. A missing file is ErrUnavailable.
func (l *Loader) GPGeometry(ctx context.Context) (unit.Collection, error) {
	if err := ctx.Err(); err != nil {
		return unit.Collection{}, eris.Wrap(err, "loader: gp geometry")
	}
	path := l.cfg.Path(l.cfg.GPShapefile)
	if !exists(path) {
		return unit.Collection{}, eris.Wrapf(ErrUnavailable, "gp shapefile %s", path)
	}

	start := time.Now()
	coll, err := shape.Read(path, shape.Options{Tolerance: l.tolerance})
	if err != nil {
		return unit.Collection{}, eris.Wrap(err, "loader: read gp shapefile")
	}
	coll.Kind = unit.KindGP
	coll.Keys = GPKeys

	l.log("gp_geometry").Info("loaded gp geometry",
		zap.Int("units", coll.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return coll, nil
}

// GPBlockMapping reads the GP to block assignment keyed by folded GP name.
// A missing file or missing columns yield an empty mapping.
func (l *Loader) GPBlockMapping(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "loader: gp block mapping")
	}
	path := l.cfg.Path(l.cfg.GPBlockMapping)
	if !exists(path) {
		return map[string]string{}, nil
	}

	t, err := table.ReadXLSX(path, table.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "loader: read gp block mapping")
	}
	if !t.Has(colMapGP) || !t.Has(colMapBlock) {
		l.log("gp_blocks").Warn("gp block mapping lacks expected columns",
			zap.Strings("header", t.Header))
		return map[string]string{}, nil
	}

	mapping := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		gp, ok := join.KeyFold(t.Value(row, colMapGP))
		block := t.Value(row, colMapBlock)
		if !ok || block == "" {
			continue
		}
		mapping[gp] = block
	}

	l.log("gp_blocks").Info("loaded gp block mapping", zap.Int("gps", len(mapping)))
	return mapping, nil
}

// Definitions reads and parses the variable-definition CSV. The file is
// required.
func (l *Loader) Definitions(ctx context.Context) (*schema.Definitions, []schema.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "loader: definitions")
	}
	path := l.cfg.Path(l.cfg.Definitions)
	if !exists(path) {
		return nil, nil, eris.Wrapf(ErrDataSourceMissing, "definitions %s", path)
	}

	t, err := table.ReadCSV(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "loader: read definitions")
	}
	defs, diags, err := schema.Parse(t)
	if err != nil {
		return nil, nil, eris.Wrap(err, "loader: parse definitions")
	}

	l.log("definitions").Info("loaded variable definitions",
		zap.Int("variables", len(defs.Codes())),
		zap.Int("interventions", len(defs.Interventions())),
		zap.Int("diagnostics", len(diags)))
	return defs, diags, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
