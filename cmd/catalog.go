package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/iwmi/leaf-dss/internal/catalog"
	"github.com/iwmi/leaf-dss/internal/loader"
	"github.com/iwmi/leaf-dss/internal/unit"
)

var catalogJSON bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List interventions, variables and districts",
}

var catalogInterventionsCmd = &cobra.Command{
	Use:   "interventions [name]",
	Short: "List interventions, or show one intervention's variables",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := newCache()
		ctx := cmd.Context()

		if len(args) == 1 {
			iv, err := cache.Intervention(ctx, args[0], unit.KindBlock)
			if err != nil {
				return eris.Wrapf(err, "catalog: intervention %q", args[0])
			}
			if catalogJSON {
				return printJSON(iv)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tRANGE\tWEIGHT\tPREFERENCE\tGROUP\tLABEL")
			for _, v := range iv.Variables {
				fmt.Fprintf(w, "%s\t%g..%g\t%g\t%s\t%s\t%s\n",
					v.Field, v.RangeMin, v.RangeMax, v.Weight, v.Preference, v.Group, v.Label)
			}
			return w.Flush()
		}

		defs, err := cache.Definitions(ctx)
		if err != nil {
			return eris.Wrap(err, "catalog: definitions")
		}
		list := defs.Interventions()
		if catalogJSON {
			return printJSON(list)
		}
		for _, iv := range list {
			fmt.Printf("%-30s %s\n", iv.Key, iv.Description)
		}
		return nil
	},
}

var catalogVariablesCmd = &cobra.Command{
	Use:   "variables",
	Short: "List the numeric variables of a level",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")
		kind, err := unit.ParseKind(level)
		if err != nil {
			return err
		}

		cache := newCache()
		coll, err := cache.Collection(cmd.Context(), kind)
		if err != nil {
			return eris.Wrapf(err, "catalog: load %s units", kind)
		}
		defs, err := cache.Definitions(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "catalog: definitions")
		}

		vars := catalog.Variables(coll, defs, catalog.SkipFor(kind))
		if catalogJSON {
			return printJSON(vars)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FIELD\tGROUP\tMIN\tMAX\tMEAN\tLABEL")
		for _, v := range vars {
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%.2f\t%s\n", v.Field, v.Group, v.DataMin, v.DataMax, v.DataMean, v.Label)
		}
		return w.Flush()
	},
}

var catalogDistrictsCmd = &cobra.Command{
	Use:   "districts",
	Short: "List districts with their block and GP counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := newCache()
		blocks, err := cache.Blocks(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "catalog: blocks")
		}

		var gps *unit.Collection
		all, err := cache.GPs(cmd.Context())
		switch {
		case err == nil:
			gps = &all
		case !errors.Is(err, loader.ErrUnavailable):
			return eris.Wrap(err, "catalog: gps")
		}

		districts := catalog.Districts(blocks, gps, cfg.Data.GPDistrict)
		if catalogJSON {
			return printJSON(districts)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DISTRICT\tBLOCKS\tGPS")
		for _, d := range districts {
			gpCount := "-"
			if d.GPCount != nil {
				gpCount = fmt.Sprint(*d.GPCount)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", d.Name, d.BlockCount, gpCount)
		}
		return w.Flush()
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	catalogCmd.PersistentFlags().BoolVar(&catalogJSON, "json", false, "print JSON instead of a table")
	catalogVariablesCmd.Flags().String("level", "block", "unit level: block or gp")

	catalogCmd.AddCommand(catalogInterventionsCmd)
	catalogCmd.AddCommand(catalogVariablesCmd)
	catalogCmd.AddCommand(catalogDistrictsCmd)
	rootCmd.AddCommand(catalogCmd)
}
