package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/gazetteer/internal/dedup"
	"github.com/sells-group/gazetteer/internal/model"
)

var dedupColumns []string

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Mark localities that share an identifier with a more complete locality",
	Long:  "For each identifier column, groups localities sharing a value and marks every member except the most complete one in locality_dup. Existing markers are kept.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		columns := dedupColumns
		if len(columns) == 0 {
			columns = cfg.Dedup.Columns
		}
		return runDedup(ctx, cmd.OutOrStdout(), columns)
	},
}

func init() {
	dedupCmd.Flags().StringSliceVar(&dedupColumns, "columns", nil, "identifier columns to check, in order (default from dedup.columns)")
	rootCmd.AddCommand(dedupCmd)
}

func runDedup(ctx context.Context, out io.Writer, columns []string) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	d, err := dedup.New(st, columns)
	if err != nil {
		return err
	}

	var res *dedup.Result
	_, err = recordRun(ctx, st, model.RunKindDedup, func(ctx context.Context) (model.RunCounts, error) {
		var err error
		res, err = d.Run(ctx)
		return res.Counts(), err
	})
	if res != nil {
		formatDedupResult(out, res)
	}
	return err
}

// formatDedupResult writes a per-column summary to out.
func formatDedupResult(out io.Writer, res *dedup.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COLUMN\tGROUPS\tCANDIDATES\tMARKED\tALREADY\tFAILED")
	row := func(c dedup.ColumnResult) {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
			c.Column, c.Groups, c.Candidates, c.Marked, c.AlreadyMarked, c.Failed)
	}
	for _, c := range res.Columns {
		row(c)
	}
	total := res.Total
	total.Column = "total"
	row(total)
	_ = w.Flush()
}
