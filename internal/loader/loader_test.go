package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/iwmi/leaf-dss/internal/fixture"
	"github.com/iwmi/leaf-dss/internal/unit"
)

func TestBlocks(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})
	l := New(cfg, 0)

	blocks, err := l.Blocks(context.Background())
	require.NoError(t, err)

	assert.Equal(t, unit.KindBlock, blocks.Kind)
	assert.Equal(t, BlockKeys, blocks.Keys)
	require.Equal(t, 3, blocks.Len())
	assert.Equal(t, "Margherita", blocks.Units[0].Get(ColBlockName))
	assert.Equal(t, int64(1), blocks.Units[0].Get(ColBlockID))
	assert.InDelta(t, 40.0, blocks.Units[0].Get("AD").(float64), 1e-9)
	assert.Nil(t, blocks.Units[2].Get("AD"))
}

func TestBlocks_Missing(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})
	require.NoError(t, os.Remove(filepath.Join(cfg.Dir, cfg.BlockShapefile)))

	_, err := New(cfg, 0).Blocks(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataSourceMissing))
}

func TestBlocks_CanceledContext(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, 0).Blocks(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDistrictMapping(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})

	m, err := New(cfg, 0).DistrictMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{10: "Tinsukia", 20: "Dibrugarh"}, m)
}

func TestDistrictMapping_MissingIsEmpty(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{WithoutDistrict: true})

	m, err := New(cfg, 0).DistrictMapping(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestGPGeometry(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})

	gps, err := New(cfg, 0).GPGeometry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, unit.KindGP, gps.Kind)
	assert.Equal(t, 3, gps.Len())
	assert.Equal(t, int64(103), gps.Units[2].Get(ColGPCode))
}

func TestGPGeometry_Unavailable(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{WithoutGP: true})

	_, err := New(cfg, 0).GPGeometry(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, errors.Is(err, ErrDataSourceMissing))
}

func TestGPIndicators(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})

	ind, err := New(cfg, 0).GPIndicators(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"GP_NAME", "AD", "BW", "Poultry_farms", "VIL_COUNT", "GP_CODE"}, ind.Columns)
	// Label row dropped.
	require.Equal(t, 3, ind.Len())

	bordubi := ind.Units[0]
	assert.Equal(t, "Bordubi", bordubi.Get("GP_NAME"))
	assert.Equal(t, 30.0, bordubi.Get("AD"))
	assert.Equal(t, 4.0, bordubi.Get("VIL_COUNT"))
	assert.Equal(t, int64(101), bordubi.Get("GP_CODE"))

	hapjan := ind.Units[1]
	assert.Equal(t, "HAPJAN", hapjan.Get("GP_NAME"))
	assert.Equal(t, int64(102), hapjan.Get("GP_CODE"))
	assert.Nil(t, hapjan.Get("Poultry_farms"))

	assert.Nil(t, ind.Units[2].Get("GP_CODE"))
}

func TestGPIndicators_FormattedNumbersKeepStoredValues(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, row := range [][]string{{"", "AD", "share"}, {"GP name", "Agri dependence", "Share"}} {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}
	r := sheet.AddRow()
	r.AddCell().SetString("Bordubi")
	r.AddCell().SetFloatWithFormat(12.345, "0.0")
	r.AddCell().SetFloatWithFormat(0.45, "0%")
	require.NoError(t, f.Save(filepath.Join(cfg.Dir, cfg.GPIndicators)))

	ind, err := New(cfg, 0).GPIndicators(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, ind.Len())
	assert.Equal(t, 12.345, ind.Units[0].Get("AD"))
	assert.Equal(t, 0.45, ind.Units[0].Get("share"))
	assert.Equal(t, int64(101), ind.Units[0].Get("GP_CODE"))
}

func TestGPIndicators_WithoutVillageJoin(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})
	require.NoError(t, os.Remove(filepath.Join(cfg.Dir, cfg.VillageGPJoin)))

	ind, err := New(cfg, 0).GPIndicators(context.Background())
	require.NoError(t, err)
	assert.False(t, ind.HasColumn("GP_CODE"))
}

func TestGPIndicators_Unavailable(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{WithoutGP: true})

	_, err := New(cfg, 0).GPIndicators(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestGPBlockMapping(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})

	m, err := New(cfg, 0).GPBlockMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"BORDUBI": "MARGHERITA", "HAPJAN": "SADIYA"}, m)
}

func TestGPBlockMapping_MissingColumns(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})
	fixture.WriteXLSX(t, filepath.Join(cfg.Dir, cfg.GPBlockMapping), [][]string{{"a", "b"}, {"1", "2"}})

	m, err := New(cfg, 0).GPBlockMapping(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestDefinitions(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})

	defs, diags, err := New(cfg, 0).Definitions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"AD", "BF", "Poultry_farms"}, defs.Codes())
	assert.Len(t, defs.Interventions(), 2)
}

func TestDefinitions_Missing(t *testing.T) {
	cfg := fixture.Write(t, fixture.Options{})
	cfg.Definitions = "absent.csv"

	_, _, err := New(cfg, 0).Definitions(context.Background())
	assert.True(t, errors.Is(err, ErrDataSourceMissing))
}
