// Package fixture writes a small but complete LEAF data directory for tests:
// block, district and GP shapefiles, the GP workbooks, the village join CSV
// and the variable-definition CSV.
package fixture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/iwmi/leaf-dss/internal/config"
)

// Record is one shapefile feature. Nil values are left blank in the DBF.
type Record struct {
	Rings  [][]shp.Point
	Values []any
}

// Square returns a closed clockwise ring with its lower-left corner at x,y.
func Square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// WriteShapefile writes a polygon shapefile with the given fields.
func WriteShapefile(t testing.TB, path string, fields []shp.Field, records []Record) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields(fields))
	for _, r := range records {
		poly := shp.Polygon(*shp.NewPolyLine(r.Rings))
		n := w.Write(&poly)
		for i, v := range r.Values {
			if v == nil {
				continue
			}
			require.NoError(t, w.WriteAttribute(int(n), i, v))
		}
	}
	w.Close()

	// go-shp v0.1.1 names the table "<base>dbf"; readers expect "<base>.dbf".
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
}

// WriteXLSX writes a single-sheet workbook of string cells.
func WriteXLSX(t testing.TB, path string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	require.NoError(t, f.Save(path))
}

// WriteFile writes a text file.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// Definitions is the variable-definition CSV of the fixture. Fishery uses
// AD with an explicit [20,60] range and BF with data-derived bounds.
const Definitions = "\ufeffvariable,label,Description,group,subgroup,Weight,Cluster,I_variable,I_label,I_description,I_weight,range_min,range_max,Preference\n" +
	"AD,Agricultural dependence,Share of households in agriculture,land_agri,,1,Fishery,AD,Agri dependence,Households in agriculture,2,20,60,higher\n" +
	"BF,Bovine count,,livestock,,1,Fishery,BF,,,,,,Lower\n" +
	",,,,,,New interventions should be possible,,,,,,,\n" +
	"Poultry_farms,Poultry farms,,livestock,,,Piggery,Poultry_farms,,,,,,\n"

// Names of the fixture's units.
var (
	BlockNames = []string{"Margherita", "Sadiya", "Dibrugarh East"}
	GPNames    = []string{"Bordubi", "Hapjan", "Kakopathar"}
)

// Options trims the fixture.
type Options struct {
	WithoutGP       bool
	WithoutDistrict bool
}

// Write creates the fixture under a fresh temp dir and returns the data
// configuration pointing at it.
//
// Blocks: 1 Margherita (district 10, AD 40, BF 5), 2 Sadiya (district 10,
// AD 80, BF 15), 3 Dibrugarh East (district 20, AD blank, BF 25).
// GPs: 101 Bordubi (AD 30) and 102 Hapjan (AD 70) join to indicators;
// 103 has no indicator row.
func Write(t testing.TB, opts Options) config.DataConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DataConfig{
		Dir:               dir,
		BlockShapefile:    "blocks.shp",
		DistrictShapefile: "districts.shp",
		GPShapefile:       "gp.shp",
		GPIndicators:      "gp_data.xlsx",
		GPBlockMapping:    "gp_blocks.xlsx",
		VillageGPJoin:     "vill_gp.csv",
		Definitions:       "defs.csv",
		GPDistrict:        "Tinsukia",
	}

	WriteShapefile(t, filepath.Join(dir, "blocks.shp"),
		[]shp.Field{
			shp.NumberField("BLOCK_ID", 10),
			shp.StringField("Block_name", 40),
			shp.NumberField("DISTRICT_I", 10),
			shp.FloatField("AD", 12, 2),
			shp.FloatField("BF", 12, 2),
			shp.NumberField("id", 10),
		},
		[]Record{
			{Rings: [][]shp.Point{Square(95.0, 27.0, 0.2)}, Values: []any{1, BlockNames[0], 10, 40.0, 5.0, 1}},
			{Rings: [][]shp.Point{Square(95.3, 27.0, 0.2)}, Values: []any{2, BlockNames[1], 10, 80.0, 15.0, 2}},
			{Rings: [][]shp.Point{Square(94.8, 27.3, 0.2)}, Values: []any{3, BlockNames[2], 20, nil, 25.0, 3}},
		})

	if !opts.WithoutDistrict {
		WriteShapefile(t, filepath.Join(dir, "districts.shp"),
			[]shp.Field{shp.NumberField("DISTRICT_I", 10), shp.StringField("Dist_name", 40)},
			[]Record{
				{Rings: [][]shp.Point{Square(95.0, 27.0, 0.5)}, Values: []any{10, "Tinsukia"}},
				{Rings: [][]shp.Point{Square(94.8, 27.3, 0.2)}, Values: []any{20, "Dibrugarh"}},
			})
	}

	WriteFile(t, filepath.Join(dir, "defs.csv"), Definitions)

	if opts.WithoutGP {
		return cfg
	}

	WriteShapefile(t, filepath.Join(dir, "gp.shp"),
		[]shp.Field{shp.NumberField("GP_CODE", 10), shp.NumberField("VIL_COUNT", 5)},
		[]Record{
			{Rings: [][]shp.Point{Square(95.0, 27.0, 0.05)}, Values: []any{101, 99}},
			{Rings: [][]shp.Point{Square(95.3, 27.0, 0.05)}, Values: []any{102, 99}},
			{Rings: [][]shp.Point{Square(95.1, 27.1, 0.05)}, Values: []any{103, 99}},
		})

	WriteXLSX(t, filepath.Join(dir, "gp_data.xlsx"), [][]string{
		{"", "AD", "BW", "AD.1", "nan", "Poultry_farms"},
		{"GP name", "Agri dependence", "Number of villages", "dup", "x", "Poultry farms"},
		{GPNames[0], "30", "4", "1", "1", "2"},
		{" " + strings.ToUpper(GPNames[1]) + " ", "70", "6", "1", "1", "n/a"},
		{GPNames[2], "50", "3", "1", "1", "1"},
	})

	WriteXLSX(t, filepath.Join(dir, "gp_blocks.xlsx"), [][]string{
		{"SL NO", "BLOCK NAME", "GP NAME"},
		{"1", "MARGHERITA", "Bordubi"},
		{"2", "SADIYA", "Hapjan"},
	})

	WriteFile(t, filepath.Join(dir, "vill_gp.csv"),
		"VILLAGE,GP_NAME,GP_CODE\n"+
			"v1,BORDUBI,101\n"+
			"v2,Bordubi,101\n"+
			"v3,Hapjan ,102.0\n")

	return cfg
}
