package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestParseCSV_StripsBOMAndHeaderSpace(t *testing.T) {
	in := "\ufeffvariable , label,group\nAD,Area,land_agri\nBF,Bovine,livestock\n"
	tbl, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"variable", "label", "group"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "AD", tbl.Value(tbl.Rows[0], "variable"))
	assert.Equal(t, "livestock", tbl.Value(tbl.Rows[1], "group"))
}

func TestParseCSV_RaggedRows(t *testing.T) {
	in := "a,b,c\n1,2\n4,5,6\n"
	tbl, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "", tbl.Value(tbl.Rows[0], "c"))
	assert.Equal(t, "6", tbl.Value(tbl.Rows[1], "c"))
	assert.Equal(t, []string{"", "6"}, tbl.Column("c"))
	assert.Nil(t, tbl.Column("z"))
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table: open csv")
}

func TestReadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.csv")
	require.NoError(t, os.WriteFile(path, []byte("GP_NAME,GP_CODE\nBorhapjan,101\n"), 0o644))

	tbl, err := ReadCSV(path)
	require.NoError(t, err)
	assert.True(t, tbl.Has("GP_CODE"))
	assert.Equal(t, -1, tbl.Index("VILLAGE"))
	assert.Equal(t, "101", tbl.Value(tbl.Rows[0], "GP_CODE"))
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{" GP NAME ", "BLOCK NAME"},
			{"Borhapjan", "DOOMDOOMA"},
			{"Hapjan", "HAPJAN"},
		},
	})

	tbl, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"GP NAME", "BLOCK NAME"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "HAPJAN", tbl.Value(tbl.Rows[1], "BLOCK NAME"))
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First":  {{"a"}, {"1"}},
		"Second": {{"x", "y"}, {"1", "2"}},
	})

	tbl, err := ReadXLSX(path, XLSXOptions{SheetName: "Second"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, tbl.Header)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Third"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Only": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_NumericCellsUseStoredValue(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)

	header := sheet.AddRow()
	header.AddCell().SetString("GP")
	header.AddCell().SetString("AD")

	rounded := sheet.AddRow()
	rounded.AddCell().SetString("Bordubi")
	rounded.AddCell().SetFloatWithFormat(12.345, "0.0")

	percent := sheet.AddRow()
	percent.AddCell().SetString("Hapjan")
	percent.AddCell().SetFloatWithFormat(0.45, "0%")

	plain := sheet.AddRow()
	plain.AddCell().SetString("Kakopathar")
	plain.AddCell().SetInt(7)

	path := filepath.Join(t.TempDir(), "formatted.xlsx")
	require.NoError(t, f.Save(path))

	tbl, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "12.345", tbl.Value(tbl.Rows[0], "AD"))
	assert.Equal(t, "0.45", tbl.Value(tbl.Rows[1], "AD"))
	assert.Equal(t, "7", tbl.Value(tbl.Rows[2], "AD"))
	assert.Equal(t, "Hapjan", tbl.Value(tbl.Rows[1], "GP"))
}
