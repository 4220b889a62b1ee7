package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/placesync/internal/model"
	"github.com/sells-group/placesync/internal/monitoring"
	"github.com/sells-group/placesync/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List pipeline run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Kind:  model.RunKind(kind),
			State: model.RunState(state),
			Limit: limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

var runsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate run health and send alerts to the monitoring webhook",
	Long: "Summarizes runs started within monitoring.lookback_window_hours and reports failure-rate, " +
		"stale-run and skip-rate alerts. Alerts are posted to monitoring.webhook_url when it is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, alerts, err := monitoring.NewChecker(st, cfg.Monitoring).Check(ctx)
		if err != nil {
			return err
		}
		formatRunHealth(cmd.OutOrStdout(), snap, alerts)
		return nil
	},
}

func formatRunHealth(out io.Writer, snap *monitoring.RunSnapshot, alerts []monitoring.Alert) {
	_, _ = fmt.Fprintf(out, "last %dh: ingest %d (%d done, %d failed), combine %d (%d done, %d failed), running %d, stale %d\n",
		snap.LookbackHours,
		snap.IngestTotal, snap.IngestDone, snap.IngestFailed,
		snap.CombineTotal, snap.CombineDone, snap.CombineFailed,
		snap.Running, snap.StaleRuns)
	_, _ = fmt.Fprintf(out, "failure rate %.1f%%, skip rate %.1f%%\n", snap.FailRate*100, snap.SkipRate*100)
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "no alerts")
		return
	}
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "ALERT [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tPROVIDER\tCITY\tCATEGORY\tSTATE\tINS\tUPD\tSKIP\tMERGED\tSTARTED\tDURATION")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			shortID(r.ID),
			r.Kind,
			dash(r.Provider),
			dash(r.CitySlug),
			dash(r.Category),
			r.State,
			r.Inserted, r.Updated, r.Skipped, r.Merged,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			runDuration(r),
		)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runDuration(r model.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func init() {
	runsCmd.Flags().String("kind", "", "filter by run kind (ingest, combine)")
	runsCmd.Flags().String("state", "", "filter by state (fetching, normalizing, resolving_identity, merging_upserting, done, error)")
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsCheckCmd)
	rootCmd.AddCommand(runsCmd)
}
