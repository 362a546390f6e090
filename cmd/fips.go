package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/incore-data/internal/fips"
)

var fipsCmd = &cobra.Command{
	Use:   "fips",
	Short: "Look up state and county FIPS codes",
}

// -- fips states --

var fipsStatesCmd = &cobra.Command{
	Use:   "states",
	Short: "List states with their FIPS codes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		territories, _ := cmd.Flags().GetBool("territories")
		formatStates(os.Stdout, fips.States(territories))
		return nil
	},
}

// -- fips counties --

var fipsCountiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "List the counties of a state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, _ := cmd.Flags().GetString("state")

		counties, err := newResolver(newFetcher(cfg.Fetch)).Counties(cmd.Context(), state)
		if err != nil {
			return eris.Wrap(err, "fips counties")
		}
		formatCounties(os.Stdout, counties)
		return nil
	},
}

// -- fips county --

var fipsCountyCmd = &cobra.Command{
	Use:   "county",
	Short: "Resolve a state and county name to a 5-digit FIPS code",
	RunE: func(cmd *cobra.Command, _ []string) error {
		state, _ := cmd.Flags().GetString("state")
		county, _ := cmd.Flags().GetString("county")

		code, err := newResolver(newFetcher(cfg.Fetch)).CountyFIPS(cmd.Context(), state, county)
		if err != nil {
			return eris.Wrap(err, "fips county")
		}
		fmt.Fprintf(os.Stdout, "The FIPS code for %s, %s is %s\n", fips.TitleName(county), fips.TitleName(state), code)
		return nil
	},
}

func init() {
	fipsStatesCmd.Flags().Bool("territories", false, "include territories such as Puerto Rico and Guam")

	fipsCountiesCmd.Flags().String("state", "", "state name, abbreviation, or FIPS code")
	_ = fipsCountiesCmd.MarkFlagRequired("state")

	fipsCountyCmd.Flags().String("state", "", "state name, abbreviation, or FIPS code")
	fipsCountyCmd.Flags().String("county", "", "county name, with or without the County suffix")
	_ = fipsCountyCmd.MarkFlagRequired("state")
	_ = fipsCountyCmd.MarkFlagRequired("county")

	fipsCmd.AddCommand(fipsStatesCmd)
	fipsCmd.AddCommand(fipsCountiesCmd)
	fipsCmd.AddCommand(fipsCountyCmd)
	rootCmd.AddCommand(fipsCmd)
}

func formatStates(out io.Writer, states []fips.State) {
	t := newTable(out)
	t.AppendHeader(table.Row{"FIPS", "Abbr", "Name"})
	for _, s := range states {
		t.AppendRow(table.Row{s.FIPS, s.Abbr, s.Name})
	}
	t.Render()
}

func formatCounties(out io.Writer, counties []fips.County) {
	t := newTable(out)
	t.AppendHeader(table.Row{"GEOID", "County", "Name"})
	for _, c := range counties {
		t.AppendRow(table.Row{c.GEOID, c.CountyFIPS, c.Name})
	}
	t.AppendFooter(table.Row{"", "Total", len(counties)})
	t.Render()
}
