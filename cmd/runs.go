package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gazetteer/internal/model"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent load and dedup runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listRuns(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), runsLimit)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

// listRuns writes the most recent runs to out, or a notice to errOut when
// there are none.
func listRuns(ctx context.Context, out, errOut io.Writer, limit int) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return eris.Wrap(err, "runs")
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(errOut, "No runs found.")
		return nil
	}

	formatRunsList(out, runs)
	return nil
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.IngestRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSTARTED\tDURATION\tPROCESSED\tFAILED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t---------\t------\t-----")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		errMsg := r.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.Kind,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.Processed,
			r.Failed,
			errMsg,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
