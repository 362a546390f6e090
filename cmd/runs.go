package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/incore-data/internal/model"
	"github.com/sells-group/incore-data/internal/monitoring"
	"github.com/sells-group/incore-data/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded inventory and dislocation runs",
	Long:  "Commands for listing, viewing, and summarizing runs saved with --save or through the API.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Kind:   model.RunKind(kind),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		hours := int(since.Hours())
		if hours < 1 {
			hours = 1
		}

		snap, err := monitoring.NewCollector(storeLister(st)).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		formatRunStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, failed)")
	runsListCmd.Flags().String("kind", "", "filter by run kind (inventory, dislocation)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// storeLister adapts a store to the monitoring collector.
func storeLister(st store.Store) monitoring.RunLister {
	return func(ctx context.Context, limit int) ([]model.Run, error) {
		return st.ListRuns(ctx, store.RunFilter{Limit: limit})
	}
}

// formatRunsList writes a table of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Kind", "FIPS", "Status", "Records", "Unmatched", "Created", "Duration"})

	for _, r := range runs {
		records, unmatched := "", ""
		if r.Result != nil {
			records = fmt.Sprint(r.Result.Records)
			if r.Result.Report != nil {
				unmatched = fmt.Sprintf("%.1f%%", r.Result.Report.UnmatchedPct)
			}
		}

		t.AppendRow(table.Row{
			truncateID(r.ID),
			r.Kind,
			fipsLabel(r.Params.FIPS),
			r.Status,
			records,
			unmatched,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String(),
		})
	}
	t.Render()
}

// formatRunStats writes aggregate stats to out.
func formatRunStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	t := newTable(out)
	t.SetTitle("Last %dh", s.LookbackHours)
	t.AppendRow(table.Row{"Total runs", s.RunsTotal})
	t.AppendRow(table.Row{"Complete", s.RunsComplete})
	t.AppendRow(table.Row{"Failed", s.RunsFailed})
	t.AppendRow(table.Row{"Active", s.RunsActive})

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		t.AppendRow(table.Row{"  " + k, s.ByKind[model.RunKind(k)]})
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"Buildings", s.Buildings})
	t.AppendRow(table.Row{"Unmatched", fmt.Sprintf("%d (%.1f%%)", s.Unmatched, s.UnmatchedPct)})
	if s.WorstRunID != "" {
		t.AppendRow(table.Row{"Worst run", fmt.Sprintf("%s (%.1f%%)", truncateID(s.WorstRunID), s.WorstUnmatchPct)})
	}
	t.Render()
}

func fipsLabel(codes []string) string {
	switch len(codes) {
	case 0:
		return "-"
	case 1:
		return codes[0]
	default:
		return fmt.Sprintf("%s +%d", codes[0], len(codes)-1)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
