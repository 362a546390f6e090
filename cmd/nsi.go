package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/export"
	"github.com/sells-group/incore-data/internal/fetcher"
	"github.com/sells-group/incore-data/internal/fips"
	"github.com/sells-group/incore-data/internal/inventory"
	"github.com/sells-group/incore-data/internal/model"
	"github.com/sells-group/incore-data/internal/nsi"
	"github.com/sells-group/incore-data/internal/store"
)

var nsiCmd = &cobra.Command{
	Use:   "nsi",
	Short: "Fetch National Structure Inventory points and build building inventories",
}

// -- nsi fetch --

var nsiFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and merge NSI structures for one or more counties",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := newFetcher(cfg.Fetch)

		codes, err := countyCodes(ctx, cmd, f)
		if err != nil {
			return err
		}

		structures, err := newNSIClient(f, nil).FetchCounties(ctx, codes)
		if err != nil {
			return eris.Wrap(err, "nsi fetch")
		}

		if out, _ := cmd.Flags().GetString("out-geojson"); out != "" {
			if err := export.WriteGeoJSON(out, nsi.Features(structures)); err != nil {
				return err
			}
			zap.L().Info("NSI GeoJSON saved", zap.String("path", out))
		}

		formatOccupancies(os.Stdout, structures)
		return nil
	},
}

// -- nsi inventory --

var nsiInventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Classify NSI structures into a HAZUS building inventory",
	Long: "Fetches NSI structures for the given counties (or reads a local NSI GeoJSON file), " +
		"assigns a structural type and design level to each building, and writes the requested outputs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f := newFetcher(cfg.Fetch)

		builder, err := newInventoryBuilder(ctx, f, nil)
		if err != nil {
			return err
		}

		opts := inventory.Options{Random: cfg.Classify.Random, Seed: cfg.Classify.Seed}
		opts.Region, _ = cmd.Flags().GetString("region")
		if cmd.Flags().Changed("random") {
			opts.Random, _ = cmd.Flags().GetBool("random")
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed, _ = cmd.Flags().GetUint64("seed")
		}

		geojsonPath, _ := cmd.Flags().GetString("geojson")
		var codes []string
		if geojsonPath == "" {
			if codes, err = countyCodes(ctx, cmd, f); err != nil {
				return err
			}
		}

		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = inventoryName(codes, geojsonPath)
		}
		outs := inventoryOutputs{Dir: cfg.Output.Dir, Name: name}
		outs.CSV, _ = cmd.Flags().GetBool("out-csv")
		outs.Shapefile, _ = cmd.Flags().GetBool("out-shp")
		outs.GeoJSON, _ = cmd.Flags().GetBool("out-geojson")
		outs.Summary, _ = cmd.Flags().GetBool("summary")

		var inv *inventory.Inventory
		build := func(ctx context.Context, runID string, st store.Store) (*model.RunResult, error) {
			var err error
			if geojsonPath != "" {
				inv, err = builder.FromFile(geojsonPath, opts)
			} else {
				inv, err = builder.FromFIPS(ctx, codes, opts)
			}
			if err != nil {
				return nil, err
			}
			written, err := outs.write(inv)
			if err != nil {
				return nil, err
			}
			if st != nil {
				if _, err := st.SaveBuildings(ctx, runID, inv.Buildings); err != nil {
					return nil, err
				}
			}
			rep := inv.Report
			return &model.RunResult{Records: len(inv.Buildings), Report: &rep, Outputs: written}, nil
		}

		source := "nsi"
		if geojsonPath != "" {
			source = geojsonPath
		}
		params := model.RunParams{FIPS: codes, Source: source, Region: opts.Region, Random: opts.Random, Seed: opts.Seed}
		save, _ := cmd.Flags().GetBool("save")
		if err := runTracked(ctx, save, model.RunKindInventory, params, build); err != nil {
			return eris.Wrap(err, "nsi inventory")
		}

		formatSummary(os.Stdout, inv.Summarize())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{nsiFetchCmd, nsiInventoryCmd} {
		c.Flags().StringSlice("fips", nil, "5-digit county FIPS codes (comma separated)")
		c.Flags().String("state", "", "fetch every county of this state instead of --fips")
	}
	nsiFetchCmd.Flags().String("out-geojson", "", "write the merged structures to this GeoJSON file")

	nsiInventoryCmd.Flags().String("geojson", "", "classify a local NSI GeoJSON file instead of calling the API")
	nsiInventoryCmd.Flags().String("region", "", "force the mapping region (WestCoast, MidWest, EastCoast)")
	nsiInventoryCmd.Flags().Bool("random", false, "draw structural types from the row weights (default from config)")
	nsiInventoryCmd.Flags().Uint64("seed", 0, "random seed (default from config)")
	nsiInventoryCmd.Flags().String("name", "", "output file name prefix (default derived from the input)")
	nsiInventoryCmd.Flags().Bool("out-csv", false, "write <name>.csv")
	nsiInventoryCmd.Flags().Bool("out-shp", false, "write <name>.shp")
	nsiInventoryCmd.Flags().Bool("out-geojson", false, "write <name>.geojson")
	nsiInventoryCmd.Flags().Bool("summary", false, "write <name>_summary.yaml")
	nsiInventoryCmd.Flags().Bool("save", false, "record the run and its buildings in the store")

	nsiCmd.AddCommand(nsiFetchCmd)
	nsiCmd.AddCommand(nsiInventoryCmd)
	rootCmd.AddCommand(nsiCmd)
}

// countyCodes returns the validated --fips codes, or every county of --state.
func countyCodes(ctx context.Context, cmd *cobra.Command, f fetcher.Fetcher) ([]string, error) {
	state, _ := cmd.Flags().GetString("state")
	list, _ := cmd.Flags().GetStringSlice("fips")
	if state != "" && len(list) > 0 {
		return nil, eris.New("use either --fips or --state, not both")
	}
	if state != "" {
		return newResolver(f).CountyFIPSList(ctx, state)
	}
	return normalizeCodes(list)
}

func normalizeCodes(list []string) ([]string, error) {
	if len(list) == 0 {
		return nil, eris.New("at least one county FIPS code is required")
	}
	out := make([]string, 0, len(list))
	for _, c := range list {
		st, county, err := fips.Split(c)
		if err != nil {
			return nil, err
		}
		out = append(out, fips.Combine(st, county))
	}
	return out, nil
}

// inventoryName derives an output prefix from the county list or the input file.
func inventoryName(codes []string, geojsonPath string) string {
	if geojsonPath != "" {
		base := filepath.Base(geojsonPath)
		return strings.TrimSuffix(base, filepath.Ext(base)) + "_inventory"
	}
	if len(codes) > 3 {
		return codes[0] + "_plus" + fmt.Sprint(len(codes)-1) + "_inventory"
	}
	return strings.Join(codes, "_") + "_inventory"
}

// inventoryOutputs selects which inventory files are written under Dir.
type inventoryOutputs struct {
	Dir       string
	Name      string
	CSV       bool
	Shapefile bool
	GeoJSON   bool
	Summary   bool
}

func (o inventoryOutputs) write(inv *inventory.Inventory) ([]string, error) {
	base := filepath.Join(o.Dir, o.Name)
	steps := []struct {
		on    bool
		path  string
		write func(string) error
	}{
		{o.CSV, base + ".csv", inv.WriteCSV},
		{o.Shapefile, base + ".shp", inv.WriteShapefile},
		{o.GeoJSON, base + ".geojson", inv.WriteGeoJSON},
		{o.Summary, base + "_summary.yaml", inv.WriteSummary},
	}

	var written []string
	for _, s := range steps {
		if !s.on {
			continue
		}
		if err := s.write(s.path); err != nil {
			return written, err
		}
		zap.L().Info("inventory output saved", zap.String("path", s.path))
		written = append(written, s.path)
	}
	return written, nil
}

// runTracked calls fn directly, or inside a persisted run when save is set.
func runTracked(ctx context.Context, save bool, kind model.RunKind, params model.RunParams,
	fn func(ctx context.Context, runID string, st store.Store) (*model.RunResult, error),
) error {
	if !save {
		_, err := fn(ctx, "", nil)
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	run, err := store.Track(ctx, st, kind, params, func(ctx context.Context, runID string) (*model.RunResult, error) {
		return fn(ctx, runID, st)
	})
	if run != nil {
		zap.L().Info("run recorded", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
	}
	return err
}

func formatOccupancies(out io.Writer, structures []nsi.Structure) {
	counts := map[string]int{}
	for _, s := range structures {
		counts[s.OccType]++
	}
	occs := make([]string, 0, len(counts))
	for occ := range counts {
		occs = append(occs, occ)
	}
	sort.Strings(occs)

	t := newTable(out)
	t.AppendHeader(table.Row{"Occupancy", "Structures"})
	for _, occ := range occs {
		t.AppendRow(table.Row{occ, counts[occ]})
	}
	t.AppendFooter(table.Row{"Total", len(structures)})
	t.Render()
}

func formatSummary(out io.Writer, s inventory.Summary) {
	t := newTable(out)
	t.SetTitle("%s inventory (%s)", s.Region, s.Source)
	t.AppendHeader(table.Row{"Struct Type", "Buildings"})
	types := make([]string, 0, len(s.StructTypes))
	for st := range s.StructTypes {
		types = append(types, st)
	}
	sort.Strings(types)
	for _, st := range types {
		t.AppendRow(table.Row{st, s.StructTypes[st]})
	}
	t.AppendFooter(table.Row{"Total", s.Buildings})
	t.Render()

	r := s.Report
	fmt.Fprintf(out, "exact %d  fallback %d  special %d  unmatched %d (%.2f%%)\n",
		r.Exact, r.Fallbacks, r.Special, r.Unmatched, r.UnmatchedPct)
	if len(s.UnmatchedOccs) > 0 {
		fmt.Fprintf(out, "unmatched occupancies: %s\n", strings.Join(s.UnmatchedOccs, ", "))
	}
}
