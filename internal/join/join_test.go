package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/iwmi/leaf-dss/internal/unit"
)

func gpGeometry(codes ...any) unit.Collection {
	c := unit.Collection{
		Kind:    unit.KindGP,
		Keys:    unit.Keys{Code: "GP_CODE"},
		Columns: []string{"GP_CODE", "VIL_COUNT", "AREA"},
	}
	for i, code := range codes {
		c.Units = append(c.Units, unit.Unit{
			Geometry: geom.NewMultiPolygon(geom.XY),
			Attrs:    map[string]any{"GP_CODE": code, "VIL_COUNT": int64(99), "AREA": float64(i)},
		})
	}
	return c
}

func gpIndicators(rows ...map[string]any) unit.Collection {
	c := unit.Collection{
		Kind:    unit.KindGP,
		Columns: []string{"GP_NAME", "AD", "VIL_COUNT", "GP_CODE"},
	}
	for _, r := range rows {
		c.Units = append(c.Units, unit.Unit{Attrs: r})
	}
	return c
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(12), 12, true},
		{12, 12, true},
		{12.0, 12, true},
		{"12", 12, true},
		{" 12.0 ", 12, true},
		{12.5, 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCode(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestKeyFoldAndTitle(t *testing.T) {
	k, ok := KeyFold("  Bordubi ")
	assert.True(t, ok)
	assert.Equal(t, "BORDUBI", k)

	_, ok = KeyFold(nil)
	assert.False(t, ok)

	assert.Equal(t, "Saikhowa Ghat", Title("SAIKHOWA GHAT"))
	assert.Equal(t, "Margherita", Title("margherita"))
}

func TestLeft_UnmatchedUnitKeptWithNulls(t *testing.T) {
	base := gpGeometry("101", 102.0, int64(103))
	ind := gpIndicators(
		map[string]any{"GP_NAME": "Alpha", "AD": 40.0, "VIL_COUNT": 5.0, "GP_CODE": int64(101)},
		map[string]any{"GP_NAME": "Beta", "AD": 80.0, "VIL_COUNT": 7.0, "GP_CODE": 102.0},
	)

	out := Left(base, ind, Options{Key: "GP_CODE", DropFromBase: []string{"VIL_COUNT"}})
	require.Equal(t, 3, out.Len())

	assert.Equal(t, int64(101), out.Units[0].Get("GP_CODE"))
	assert.Equal(t, "Alpha", out.Units[0].Get("GP_NAME"))
	assert.Equal(t, 5.0, out.Units[0].Get("VIL_COUNT"))
	assert.Equal(t, 80.0, out.Units[1].Get("AD"))

	third := out.Units[2]
	assert.NotNil(t, third.Geometry)
	assert.Equal(t, int64(103), third.Get("GP_CODE"))
	assert.Nil(t, third.Get("AD"))
	assert.Nil(t, third.Get("GP_NAME"))
	assert.Nil(t, third.Get("VIL_COUNT"))
	assert.Contains(t, third.Attrs, "AD")

	assert.Equal(t, []string{"GP_CODE", "AREA", "GP_NAME", "AD", "VIL_COUNT"}, out.Columns)
	// Base untouched.
	assert.Equal(t, int64(99), base.Units[0].Get("VIL_COUNT"))
	assert.Equal(t, "101", base.Units[0].Get("GP_CODE"))
}

func TestLeft_NullAndDuplicateKeys(t *testing.T) {
	base := gpGeometry(int64(1), nil)
	ind := gpIndicators(
		map[string]any{"GP_NAME": "null key", "AD": 1.0, "GP_CODE": nil},
		map[string]any{"GP_NAME": "first", "AD": 2.0, "GP_CODE": int64(1)},
		map[string]any{"GP_NAME": "second", "AD": 3.0, "GP_CODE": int64(1)},
	)

	out := Left(base, ind, Options{Key: "GP_CODE"})
	assert.Equal(t, "first", out.Units[0].Get("GP_NAME"))
	assert.Nil(t, out.Units[1].Get("GP_NAME"))
	assert.Nil(t, out.Units[1].Get("GP_CODE"))
}

func TestLeft_CollisionPrefersIndicator(t *testing.T) {
	base := gpGeometry(int64(1))
	ind := gpIndicators(map[string]any{"GP_CODE": int64(1), "VIL_COUNT": 12.0})

	out := Left(base, ind, Options{Key: "GP_CODE"})
	assert.Equal(t, 12.0, out.Units[0].Get("VIL_COUNT"))
}

func TestAttach_DistrictByCode(t *testing.T) {
	coll := unit.Collection{
		Columns: []string{"DISTRICT_I"},
		Units: []unit.Unit{
			{Attrs: map[string]any{"DISTRICT_I": int64(7)}},
			{Attrs: map[string]any{"DISTRICT_I": "8.0"}},
			{Attrs: map[string]any{"DISTRICT_I": nil}},
		},
	}
	n := Attach(&coll, Lookup[int64, string]{
		Source:  "DISTRICT_I",
		Target:  "Dist_Name",
		Mapping: map[int64]string{7: "Tinsukia"},
		Key:     NormalizeCode,
	})

	assert.Equal(t, 1, n)
	assert.True(t, coll.HasColumn("Dist_Name"))
	assert.Equal(t, "Tinsukia", coll.Units[0].Get("Dist_Name"))
	assert.Nil(t, coll.Units[1].Get("Dist_Name"))
	assert.Nil(t, coll.Units[2].Get("Dist_Name"))
}

func TestAttach_BlockByFoldedName(t *testing.T) {
	coll := unit.Collection{
		Columns: []string{"GP_NAME"},
		Units: []unit.Unit{
			{Attrs: map[string]any{"GP_NAME": " Bordubi "}},
			{Attrs: map[string]any{"GP_NAME": "Unknown"}},
			{Attrs: map[string]any{"GP_NAME": nil}},
		},
	}
	Attach(&coll, Lookup[string, string]{
		Source:    "GP_NAME",
		Target:    "Block_Name",
		Mapping:   map[string]string{"BORDUBI": "MARGHERITA"},
		Key:       KeyFold,
		Transform: Title,
		Missing:   "",
	})

	assert.Equal(t, "Margherita", coll.Units[0].Get("Block_Name"))
	assert.Equal(t, "", coll.Units[1].Get("Block_Name"))
	assert.Equal(t, "", coll.Units[2].Get("Block_Name"))
}

func TestSetConstant(t *testing.T) {
	coll := gpGeometry(int64(1), int64(2))
	SetConstant(&coll, "Dist_Name", "Tinsukia")
	for _, u := range coll.Units {
		assert.Equal(t, "Tinsukia", u.Get("Dist_Name"))
	}
	assert.Equal(t, "Dist_Name", coll.Columns[len(coll.Columns)-1])
}

func TestCodeText(t *testing.T) {
	assert.Equal(t, "12", CodeText(12.0))
	assert.Equal(t, "12", CodeText("12"))
	assert.Equal(t, "", CodeText(nil))
	assert.Equal(t, "x1", CodeText("x1"))
}
