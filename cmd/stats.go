package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gazetteer/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and the median locality population",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		formatStats(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// formatStats writes table counts to out.
func formatStats(out io.Writer, s *model.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Localities:\t%d\n", s.Localities)
	_, _ = fmt.Fprintf(w, "Regions:\t%d\n", s.Regions)
	_, _ = fmt.Fprintf(w, "Duplicates:\t%d\n", s.Duplicates)
	if s.MedianPopulation > 0 {
		_, _ = fmt.Fprintf(w, "Median population:\t%.0f\n", s.MedianPopulation)
	}
	_ = w.Flush()
}
