package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwmi/leaf-dss/internal/fixture"
	"github.com/iwmi/leaf-dss/internal/table"
	"github.com/iwmi/leaf-dss/internal/unit"
)

func parse(t *testing.T, csv string) (*Definitions, []Diagnostic) {
	t.Helper()
	tbl, err := table.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	defs, diags, err := Parse(tbl)
	require.NoError(t, err)
	return defs, diags
}

func units(col string, vals ...any) unit.Collection {
	c := unit.Collection{Kind: unit.KindBlock, Columns: []string{col}}
	for _, v := range vals {
		c.Units = append(c.Units, unit.Unit{Attrs: map[string]any{col: v}})
	}
	return c
}

func TestParse_Fixture(t *testing.T) {
	defs, diags := parse(t, fixture.Definitions)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"AD", "BF", "Poultry_farms"}, defs.Codes())
	assert.Equal(t, []string{"land_agri", "livestock"}, defs.Groups())

	ad, ok := defs.Variable("AD")
	require.True(t, ok)
	assert.Equal(t, "Agricultural dependence", ad.Label)
	assert.Equal(t, "Share of households in agriculture", ad.Description)
	assert.Equal(t, 1.0, ad.Weight)

	pf, _ := defs.Variable("Poultry_farms")
	assert.Equal(t, 1.0, pf.Weight, "blank weight defaults to 1")
}

func TestParse_MissingVariableColumn(t *testing.T) {
	tbl, err := table.ParseCSV(strings.NewReader("code,label\nAD,x\n"))
	require.NoError(t, err)

	_, _, err = Parse(tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"variable"`)
}

func TestParse_AbsentColumnsAndDuplicates(t *testing.T) {
	defs, diags := parse(t, "variable,label\nAD,First\nAD,Second\nZZ,\n")

	var absent []string
	var dups int
	for _, d := range diags {
		switch {
		case d.Message == "column absent; defaults apply":
			absent = append(absent, d.Column)
		case strings.Contains(d.Message, "duplicate"):
			dups++
			assert.Equal(t, `variable: duplicate code "AD" ignored`, d.String())
		}
	}
	assert.Contains(t, absent, ColCluster)
	assert.Contains(t, absent, ColGroup)
	assert.NotContains(t, absent, ColLabel)
	assert.Equal(t, 1, dups)

	ad, _ := defs.Variable("AD")
	assert.Equal(t, "First", ad.Label, "first definition wins")

	zz, _ := defs.Variable("ZZ")
	assert.Equal(t, "ZZ", zz.Label)
	assert.Equal(t, DefaultGroup, zz.Group)
	assert.Empty(t, defs.Interventions())
}

func TestVariable_UnknownFallback(t *testing.T) {
	defs, _ := parse(t, fixture.Definitions)

	v, ok := defs.Variable("NOPE")
	assert.False(t, ok)
	assert.Equal(t, "NOPE", v.Label)
	assert.Equal(t, DefaultGroup, defs.GroupOf("NOPE"))
	assert.Equal(t, "livestock", defs.GroupOf(" BF "))
}

func TestVariables_ReturnsCopy(t *testing.T) {
	defs, _ := parse(t, fixture.Definitions)
	vars := defs.Variables()
	delete(vars, "AD")

	_, ok := defs.Variable("AD")
	assert.True(t, ok)
}

func TestInterventions_SkipsPlaceholders(t *testing.T) {
	defs, _ := parse(t, fixture.Definitions)
	got := defs.Interventions()

	require.Len(t, got, 2)
	assert.Equal(t, "Fishery", got[0].Key)
	assert.Equal(t, "Piggery", got[1].Name)
	assert.Equal(t, "Fishery focuses on sustainable agricultural practices tailored to local conditions.", got[0].Description)
	assert.Nil(t, got[0].Variables)
}

func TestInterventionConfig(t *testing.T) {
	defs, _ := parse(t, fixture.Definitions)
	coll := units("BF", 5.0, 15.0, nil, "n/a", 25.0)

	cfg := defs.InterventionConfig(coll)
	require.Len(t, cfg["Fishery"], 2)

	ad := cfg["Fishery"][0]
	assert.Equal(t, "AD", ad.Field)
	assert.Equal(t, "Agri dependence", ad.Label)
	assert.Equal(t, 20.0, ad.RangeMin)
	assert.Equal(t, 60.0, ad.RangeMax)
	assert.Equal(t, 2.0, ad.Weight)
	assert.Equal(t, PreferHigher, ad.Preference)
	assert.Equal(t, "land_agri", ad.Group)
	// AD is absent from the units.
	assert.Equal(t, 0.0, ad.DataMin)
	assert.Equal(t, 100.0, ad.DataMax)
	assert.Equal(t, 50.0, ad.DataMean)

	bf := cfg["Fishery"][1]
	assert.Equal(t, "BF", bf.Label, "label falls back to field")
	assert.Equal(t, 5.0, bf.RangeMin)
	assert.Equal(t, 25.0, bf.RangeMax)
	assert.Equal(t, 1.0, bf.Weight)
	assert.InDelta(t, 15.0, bf.DataMean, 1e-9)
	assert.Equal(t, PreferLower, bf.Preference)

	require.Len(t, cfg["Piggery"], 1)
	assert.Equal(t, PreferModerate, cfg["Piggery"][0].Preference)
}

func TestIntervention(t *testing.T) {
	defs, _ := parse(t, fixture.Definitions)

	iv, err := defs.Intervention(" Piggery ", units("x"))
	require.NoError(t, err)
	assert.Equal(t, "Piggery", iv.Key)
	require.Len(t, iv.Variables, 1)
	assert.Equal(t, "Poultry_farms", iv.Variables[0].Field)

	_, err = defs.Intervention("Beekeeping", units("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownIntervention))
	assert.Contains(t, err.Error(), "Beekeeping")
}

func TestIsValidCluster(t *testing.T) {
	assert.True(t, IsValidCluster("Fishery"))
	assert.False(t, IsValidCluster(""))
	assert.False(t, IsValidCluster("   "))
	assert.False(t, IsValidCluster("New internventions to be added"))
	assert.False(t, IsValidCluster("It should be possible to add more"))
}

func TestParsePreference(t *testing.T) {
	assert.Equal(t, PreferHigher, ParsePreference(" Higher"))
	assert.Equal(t, PreferLower, ParsePreference("LOWER"))
	assert.Equal(t, PreferModerate, ParsePreference("moderate"))
	assert.Equal(t, PreferModerate, ParsePreference(""))
	assert.Equal(t, PreferModerate, ParsePreference("sideways"))
}

func TestStats(t *testing.T) {
	assert.Equal(t, ColumnStats{Min: 0, Max: 100, Mean: 50}, Stats(units("AD"), "missing"))
	assert.Equal(t, ColumnStats{Min: 0, Max: 100, Mean: 50}, Stats(units("AD", nil, "x"), "AD"))
	assert.Equal(t, ColumnStats{Min: -2, Max: 8, Mean: 3}, Stats(units("AD", -2.0, int64(8), "3"), "AD"))
}
