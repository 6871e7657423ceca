package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gazetteer/internal/loader"
	"github.com/sells-group/gazetteer/internal/model"
	"github.com/sells-group/gazetteer/internal/store"
	"github.com/sells-group/gazetteer/internal/wof"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load Who's On First records",
	Long:  "Commands for loading region and locality records from a whosonfirst-data checkout.",
}

var loadLocalitiesCmd = &cobra.Command{
	Use:   "localities [root]",
	Short: "Replace the locality table with the records under root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runLoad(ctx, cmd.OutOrStdout(), model.RunKindLocalities, sourceRoot(args, cfg.Source.LocalitiesDir))
	},
}

var loadRegionsCmd = &cobra.Command{
	Use:   "regions [root]",
	Short: "Insert or update the region records under root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runLoad(ctx, cmd.OutOrStdout(), model.RunKindRegions, sourceRoot(args, cfg.Source.RegionsDir))
	},
}

func init() {
	loadCmd.AddCommand(loadLocalitiesCmd, loadRegionsCmd)
	rootCmd.AddCommand(loadCmd)
}

func sourceRoot(args []string, configured string) string {
	if len(args) > 0 {
		return args[0]
	}
	return configured
}

// runLoad validates the source, opens the store and records the load as
// an ingest run.
func runLoad(ctx context.Context, out io.Writer, kind model.RunKind, root string) error {
	repo, err := wof.NewRepo(root, cfg.Source.Workers)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	l := loader.New(st)
	stats, err := recordRun(ctx, st, kind, func(ctx context.Context) (model.RunCounts, error) {
		var s *loader.Stats
		var err error
		switch kind {
		case model.RunKindLocalities:
			s, err = l.LoadLocalities(ctx, repo)
		case model.RunKindRegions:
			s, err = l.LoadRegions(ctx, repo)
		default:
			return model.RunCounts{}, eris.Errorf("unsupported load kind: %s", kind)
		}
		return s.Counts(), err
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "%s: processed %d, failed %d\n", kind, stats.Processed, stats.Failed)
	return nil
}

// recordRun wraps fn in StartRun and CompleteRun/FailRun. The final
// update uses a context that outlives cancellation of ctx.
func recordRun(ctx context.Context, st store.Store, kind model.RunKind, fn func(context.Context) (model.RunCounts, error)) (model.RunCounts, error) {
	log := zap.L().With(zap.String("component", "runs"), zap.String("kind", string(kind)))

	run, err := st.StartRun(ctx, kind)
	if err != nil {
		return model.RunCounts{}, err
	}
	log = log.With(zap.String("run_id", run.ID))

	counts, runErr := fn(ctx)

	finishCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		if err := st.FailRun(finishCtx, run.ID, counts, runErr.Error()); err != nil {
			log.Warn("failed to record run failure", zap.Error(err))
		}
		return counts, runErr
	}
	if err := st.CompleteRun(finishCtx, run.ID, counts); err != nil {
		return counts, eris.Wrap(err, "record run completion")
	}
	log.Info("run complete", zap.Int64("processed", counts.Processed), zap.Int64("failed", counts.Failed))
	return counts, nil
}
