package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwmi/leaf-dss/internal/feasibility"
)

func TestParseCriterion(t *testing.T) {
	tests := []struct {
		in   string
		want feasibility.Criterion
	}{
		{"AD:30:60", feasibility.Criterion{Column: "AD", Min: 30, Max: 60, Weight: 1}},
		{"AD:30:60:2.5", feasibility.Criterion{Column: "AD", Min: 30, Max: 60, Weight: 2.5}},
		{" BF ::50:", feasibility.Criterion{Column: "BF", Min: math.Inf(-1), Max: 50, Weight: 1}},
		{"BF:10::", feasibility.Criterion{Column: "BF", Min: 10, Max: math.Inf(1), Weight: 1}},
	}
	for _, tt := range tests {
		got, err := parseCriterion(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseCriterion_Invalid(t *testing.T) {
	for _, in := range []string{"AD", "AD:1", "AD:1:2:3:4", ":1:2", "AD:x:2"} {
		_, err := parseCriterion(in)
		assert.Error(t, err, in)
	}
}

func TestPrintStatistics(t *testing.T) {
	st := feasibility.Stats{
		Total:        3,
		WithData:     2,
		WithoutData:  1,
		Mean:         50,
		Median:       50,
		Min:          0,
		Max:          100,
		HighCount:    1,
		LowCount:     1,
		Distribution: map[string]int{"100%": 1, "0%": 1, "No Data": 1},
	}
	var buf bytes.Buffer
	printStatistics(&buf, st)

	out := buf.String()
	assert.Contains(t, out, "Units:        3 (2 with data, 1 without)")
	assert.Contains(t, out, "Mean/Median:  50.0 / 50.0")
	assert.Contains(t, out, "No Data")

	buf.Reset()
	printStatistics(&buf, feasibility.Stats{Mean: math.NaN(), Median: math.NaN(), Min: math.NaN(), Max: math.NaN()})
	assert.Contains(t, buf.String(), "Mean/Median:  - / -")
}

func TestScoreCommand_WritesCSV(t *testing.T) {
	useFixture(t)
	out := filepath.Join(t.TempDir(), "scores.csv")

	rootCmd.SetArgs([]string{"score", "--criteria", "AD:30:60", "--format", "csv", "--output", out})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "feasibility_class")
	assert.Contains(t, lines[1], "Margherita")
	assert.Contains(t, lines[1], "very_high")
}
