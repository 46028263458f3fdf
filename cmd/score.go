package main

import (
	"fmt"
	"io"
	"math"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/catalog"
	"github.com/iwmi/leaf-dss/internal/export"
	"github.com/iwmi/leaf-dss/internal/feasibility"
	"github.com/iwmi/leaf-dss/internal/unit"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score units against criteria or an intervention",
	Long: `Score blocks or gram panchayats against weighted range criteria.

Each --criteria value is column:min:max[:weight]. An empty bound is
unbounded and the weight defaults to 1. Without criteria the variables
of --intervention are used.

Examples:
  # Blocks with agricultural dependence between 30 and 60
  score --criteria AD:30:60

  # Fishery intervention over one district, summary only
  score --intervention Fishery --scope Tinsukia

  # GPs of one block as GeoJSON
  score --level gp --block Margherita --criteria AD::50:2 --format geojson --output gp.geojson`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringSlice("criteria", nil, "criterion as column:min:max[:weight] (repeatable)")
	f.String("intervention", "", "score with the variables of this intervention")
	f.String("logic", "AND", "criteria combination: AND or OR")
	f.String("level", "block", "unit level: block or gp")
	f.String("scope", "", "district name or id to summarize (block level)")
	f.String("block", "", "restrict GP scoring to one block")
	f.String("format", "summary", "output format: summary, geojson or csv")
	f.String("output", "", "output file path (default: stdout)")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("engine"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "score"))

	rawCriteria, _ := cmd.Flags().GetStringSlice("criteria")
	intervention, _ := cmd.Flags().GetString("intervention")
	logic, _ := cmd.Flags().GetString("logic")
	level, _ := cmd.Flags().GetString("level")
	scope, _ := cmd.Flags().GetString("scope")
	block, _ := cmd.Flags().GetString("block")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	switch format {
	case "summary", "geojson", "csv":
	default:
		return eris.Errorf("score: --format must be summary, geojson or csv (got %q)", format)
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
		return eris.Wrapf(err, "score: load %s units", kind)
	}

	if len(criteria) == 0 {
		if intervention == "" {
			return eris.New("score: --criteria or --intervention is required")
		}
		iv, err := cache.Intervention(ctx, intervention, kind)
		if err != nil {
			return eris.Wrapf(err, "score: intervention %q", intervention)
		}
		criteria = feasibility.CriteriaFromConfig(iv.Variables)
	}
	if kind == unit.KindGP {
		if block != "" {
			coll = catalog.InParent(coll, block)
		}
		scope = ""
	}

	start := time.Now()
	res := feasibility.Evaluate(coll, criteria, feasibility.ParseLogic(logic), scope)
	log.Info("scoring complete",
		zap.String("level", string(kind)),
		zap.Int("units", res.Units.Len()),
		zap.Int("criteria", len(criteria)),
		zap.Duration("elapsed", time.Since(start)))

	if err := writeFile(outputPath, func(w io.Writer) error {
		switch format {
		case "geojson":
			return export.WriteGeoJSON(w, res.Units)
		case "csv":
			return export.WriteCSV(w, res.Units)
		}
		printStatistics(w, res.Stats)
		return nil
	}); err != nil {
		return eris.Wrapf(err, "score: write %s", format)
	}
	if outputPath != "" {
		fmt.Printf("Wrote %d units to %s\n", res.Units.Len(), outputPath)
	}
	return nil
}

func parseCriteria(raw []string) ([]feasibility.Criterion, error) {
	out := make([]feasibility.Criterion, 0, len(raw))
	for _, s := range raw {
		c, err := parseCriterion(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// parseCriterion parses column:min:max[:weight].
func parseCriterion(s string) (feasibility.Criterion, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return feasibility.Criterion{}, eris.Errorf("score: criterion %q must be column:min:max[:weight]", s)
	}
	c := feasibility.Criterion{
		Column: strings.TrimSpace(parts[0]),
		Min:    math.Inf(-1),
		Max:    math.Inf(1),
		Weight: 1,
	}
	if c.Column == "" {
		return feasibility.Criterion{}, eris.Errorf("score: criterion %q has no column", s)
	}

	bounds := []*float64{&c.Min, &c.Max, &c.Weight}
	for i, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return feasibility.Criterion{}, eris.Wrapf(err, "score: criterion %q", s)
		}
		*bounds[i] = v
	}
	return c, nil
}

func printStatistics(w io.Writer, st feasibility.Stats) {
	num := func(f float64) string {
		if math.IsNaN(f) {
			return "-"
		}
		return strconv.FormatFloat(f, 'f', 1, 64)
	}

	fmt.Fprintf(w, "Units:        %d (%d with data, %d without)\n", st.Total, st.WithData, st.WithoutData)
	fmt.Fprintf(w, "Mean/Median:  %s / %s\n", num(st.Mean), num(st.Median))
	fmt.Fprintf(w, "Min/Max:      %s / %s\n", num(st.Min), num(st.Max))
	fmt.Fprintf(w, "High (>=75):  %d\n", st.HighCount)
	fmt.Fprintf(w, "Low (<25):    %d\n", st.LowCount)
	fmt.Fprintln(w, "Distribution:")
	for _, c := range feasibility.AllClasses() {
		fmt.Fprintf(w, "  %-10s %d\n", c.Label, st.Distribution[c.Label])
	}
}
