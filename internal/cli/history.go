package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historySweeps bool
)

var historyCmd = &cobra.Command{
	Use:   "history [prefix]",
	Short: "Show journaled updates (or sweeps with --sweeps)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries")
	historyCmd.Flags().BoolVar(&historySweeps, "sweeps", false, "Show retention sweeps instead of updates")
}

func runHistory(cmd *cobra.Command, args []string) error {
	rt, err := setup(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if historySweeps {
		sweeps, err := rt.eng.Sweeps(historyLimit)
		if err != nil {
			return fmt.Errorf("list sweeps: %w", err)
		}
		if len(sweeps) == 0 {
			fmt.Fprintln(out, "No sweeps recorded.")
			return nil
		}
		for _, s := range sweeps {
			status := "ok"
			if s.Error != "" || s.ListError != "" {
				status = "failed"
			}
			fmt.Fprintf(out, "%s  %-8s %-6s dropped %d, failed %d\n",
				stamp(s.StartedAt), s.Trigger, status, len(s.Dropped), len(s.Failed))
		}
		return nil
	}

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	updates, err := rt.eng.History(prefix, historyLimit)
	if err != nil {
		return fmt.Errorf("list updates: %w", err)
	}
	if len(updates) == 0 {
		fmt.Fprintln(out, "No updates recorded.")
		return nil
	}
	for _, u := range updates {
		mode := u.Mode
		if mode == "" {
			mode = "-"
		}
		fmt.Fprintf(out, "%s  %-9s %-5s %s  %d triples (+%d -%d)\n",
			stamp(u.CreatedAt), u.Status, mode, prefixLabel(u.Prefix), u.Triples, u.Added, u.Removed)
		if u.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", strings.TrimSpace(u.Error))
		}
	}
	return nil
}

func stamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
