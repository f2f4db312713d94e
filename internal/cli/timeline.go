package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/glaciation-heu/timegraph/internal/graphname"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline [prefix]",
	Short: "List the timestamped graphs of a prefix, oldest first",
	Long:  "List the timestamped graphs of a prefix. With no argument, lists every prefix.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTimeline,
}

func runTimeline(cmd *cobra.Command, args []string) error {
	rt, err := setup(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	prefix := ""
	if len(args) > 0 {
		prefix = graphname.NormalizePrefix(args[0])
	}

	tl, err := rt.eng.Timeline(context.Background(), prefix)
	if err != nil {
		return fmt.Errorf("timeline: %w", err)
	}

	out := cmd.OutOrStdout()
	if tl.Empty() {
		fmt.Fprintf(out, "No graphs found for %s\n", prefixLabel(prefix))
		return nil
	}
	fmt.Fprintf(out, "## %s\n\n", prefixLabel(prefix))
	for _, p := range tl {
		at := time.UnixMilli(p.Timestamp).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(out, "  %-7s %s  %s\n", p.Role, at, p.Name)
	}
	return nil
}
