package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/incore-data/internal/hazus"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Work with the occupancy to structural-type lookup tables",
}

// -- mapping inspect --

var mappingInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the loaded lookup tables and their row counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := loadMapping(cmd.Context(), cfg.Mapping, defaultRegion())
		if err != nil {
			return eris.Wrap(err, "mapping inspect")
		}

		regions := m.Regions()
		if v, _ := cmd.Flags().GetString("region"); v != "" {
			r := hazus.ParseRegion(v, hazus.Unknown)
			if r == hazus.Unknown {
				return eris.Errorf("mapping inspect: unknown region %q", v)
			}
			regions = []hazus.Region{r}
		}

		formatMapping(os.Stdout, m, regions)
		return nil
	},
}

func init() {
	mappingInspectCmd.Flags().String("region", "", "only show this region")

	mappingCmd.AddCommand(mappingInspectCmd)
	rootCmd.AddCommand(mappingCmd)
}

func formatMapping(out io.Writer, m *hazus.Mapping, regions []hazus.Region) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Region", "Sheet", "Classes", "Empty Rows", "Expected"})
	for _, r := range regions {
		expected := map[string]bool{}
		for _, name := range hazus.SheetNames(r) {
			expected[name] = true
		}
		for _, name := range m.Sheets(r) {
			tbl, _ := m.Table(r, name)
			mark := ""
			if expected[name] {
				mark = "yes"
			}
			t.AppendRow(table.Row{r, name, tbl.Len(), tbl.EmptyRows(), mark})
		}
	}
	t.Render()
}
