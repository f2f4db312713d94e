package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	sweepWindow time.Duration
	sweepDryRun bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Drop timestamped graphs older than the retention window",
	Long: "Run one retention sweep against the configured store. --window overrides\n" +
		"retention.window; --dry-run only lists what would be dropped.",
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVarP(&sweepWindow, "window", "w", 0, "Retention window (default from config)")
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "List expired graphs without dropping them")
}

func runSweep(cmd *cobra.Command, args []string) error {
	rt, err := setup(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	window := sweepWindow
	if window <= 0 {
		window = rt.cfg.Retention.Window.Std()
	}

	ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Retention.Timeout.Std())
	defer cancel()

	rep, err := rt.eng.SweepWindow(ctx, window, sweepDryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cutoff := time.UnixMilli(rep.Cutoff).UTC().Format(time.RFC3339)
	if sweepDryRun {
		fmt.Fprintf(out, "%d graphs older than %s would be dropped\n", len(rep.Expired), cutoff)
		for _, g := range rep.Expired {
			fmt.Fprintf(out, "  %s\n", g)
		}
		return nil
	}

	fmt.Fprintf(out, "dropped %d of %d graphs older than %s (listed %d, skipped %d)\n",
		len(rep.Dropped), len(rep.Expired), cutoff, rep.Listed, rep.Skipped)
	for _, g := range rep.Failed {
		fmt.Fprintf(out, "  failed %s\n", g)
	}
	if !rep.Compacted {
		fmt.Fprintln(out, "compaction did not complete")
	}
	if !rep.OK() {
		if rep.ListErr != nil {
			return fmt.Errorf("sweep: list graphs: %w", rep.ListErr)
		}
		return fmt.Errorf("sweep: %w", rep.Err)
	}
	return nil
}
