package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/incore-data/internal/census"
	"github.com/sells-group/incore-data/internal/model"
	"github.com/sells-group/incore-data/internal/store"
)

var censusCmd = &cobra.Command{
	Use:   "census",
	Short: "Build Census block-group datasets",
}

// -- census dislocation --

var censusDislocationCmd = &cobra.Command{
	Use:   "dislocation",
	Short: "Build the block-group race and ethnicity dataset used by population dislocation",
	Long: "Fetches decennial Census block-group counts for each county, joins them to the " +
		"TIGER/Line block-group boundaries, and writes CSV, shapefile and HTML map outputs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("dislocation"); err != nil {
			return err
		}

		list, _ := cmd.Flags().GetStringSlice("counties")
		counties, err := normalizeCodes(list)
		if err != nil {
			return err
		}

		opts := census.DislocationOptions{
			StateCounties: counties,
			Vintage:       cfg.Census.Vintage,
			Dataset:       cfg.Census.Dataset,
			OutputDir:     cfg.Output.Dir,
			TigerBaseURL:  cfg.Tiger.BaseURL,
			TigerYear:     cfg.Tiger.Year,
			TempDir:       cfg.Tiger.TempDir,
		}
		if v, _ := cmd.Flags().GetString("vintage"); v != "" {
			opts.Vintage = v
		}
		if v, _ := cmd.Flags().GetString("dataset"); v != "" {
			opts.Dataset = v
		}
		opts.GeoName, _ = cmd.Flags().GetString("geo-name")
		opts.ProgramName, _ = cmd.Flags().GetString("program-name")
		opts.OutCSV, _ = cmd.Flags().GetBool("out-csv")
		opts.OutShapefile, _ = cmd.Flags().GetBool("out-shp")
		opts.OutHTML, _ = cmd.Flags().GetBool("out-html")

		d := newDislocation(newFetcher(cfg.Fetch), nil)

		var res *census.DislocationResult
		build := func(ctx context.Context, runID string, st store.Store) (*model.RunResult, error) {
			var err error
			res, err = d.Run(ctx, opts)
			if err != nil {
				return nil, err
			}
			if st != nil {
				if _, err := st.SaveBlockGroups(ctx, runID, res.BlockGroups); err != nil {
					return nil, err
				}
			}
			return &model.RunResult{Records: len(res.BlockGroups), Outputs: res.Outputs}, nil
		}

		params := model.RunParams{FIPS: counties, Vintage: opts.Vintage, Dataset: opts.Dataset}
		save, _ := cmd.Flags().GetBool("save")
		if err := runTracked(ctx, save, model.RunKindDislocation, params, build); err != nil {
			return eris.Wrap(err, "census dislocation")
		}

		formatBlockGroups(os.Stdout, res)
		return nil
	},
}

func init() {
	f := censusDislocationCmd.Flags()
	f.StringSlice("counties", nil, "5-digit state+county FIPS codes (comma separated)")
	f.String("vintage", "", "census year (default from config)")
	f.String("dataset", "", "census dataset, e.g. dec/sf1 (default from config)")
	f.String("geo-name", "geo_name", "output file name suffix")
	f.String("program-name", "program_name", "output directory and file name prefix")
	f.Bool("out-csv", false, "write <program>_<geo>.csv")
	f.Bool("out-shp", false, "write <program>_<geo>.shp")
	f.Bool("out-html", false, "write <program>_<geo>_map.html")
	f.Bool("save", false, "record the run and its block groups in the store")
	_ = censusDislocationCmd.MarkFlagRequired("counties")

	censusCmd.AddCommand(censusDislocationCmd)
	rootCmd.AddCommand(censusCmd)
}

func formatBlockGroups(out io.Writer, res *census.DislocationResult) {
	var total, white, black, hisp, shaped int
	for _, bg := range res.BlockGroups {
		total += bg.Total
		white += bg.WhiteNH
		black += bg.BlackNH
		hisp += bg.Hispanic
	}
	for _, m := range res.Merged {
		if m.Census != nil {
			shaped++
		}
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Block Groups", "With Shape", "Population", "White NH", "Black NH", "Hispanic"})
	t.AppendRow(table.Row{len(res.BlockGroups), shaped, total, white, black, hisp})
	t.Render()
	for _, p := range res.Outputs {
		fmt.Fprintln(out, p)
	}
}
