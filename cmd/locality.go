package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gazetteer/internal/altnames"
	"github.com/sells-group/gazetteer/internal/model"
	"github.com/sells-group/gazetteer/internal/store"
)

var localityCmd = &cobra.Command{
	Use:   "locality <wof_id>",
	Short: "Show one locality with its alternate names and duplicate flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid wof_id %q", args[0])
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tbl, err := altnames.Load(cfg.AltNames.Path)
		if err != nil {
			return err
		}
		return showLocality(ctx, cmd.OutOrStdout(), st, tbl, id)
	},
}

func init() {
	rootCmd.AddCommand(localityCmd)
}

type localityView struct {
	*model.Locality
	Duplicate bool     `json:"duplicate"`
	Names     []string `json:"names,omitempty"`
}

func showLocality(ctx context.Context, out io.Writer, st store.Store, tbl *altnames.Table, id int64) error {
	loc, err := st.GetLocality(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return eris.Errorf("locality %d not found", id)
	}
	if err != nil {
		return err
	}

	dup, err := st.IsDuplicate(ctx, id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(localityView{
		Locality:  loc,
		Duplicate: dup,
		Names:     tbl.Names(loc),
	})
}
