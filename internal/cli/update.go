package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glaciation-heu/timegraph/internal/client"
	"github.com/glaciation-heu/timegraph/internal/version"
)

// --- update command ---

var updatePrefix string

var updateCmd = &cobra.Command{
	Use:   "update <file.jsonld|file.nt>",
	Short: "Store a snapshot directly against the configured store",
	Long: "Store one snapshot. JSON-LD documents name their prefix with the top-level @id;\n" +
		"N-Triples files (.nt) need --prefix. Use - to read JSON-LD from stdin.",
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	rt, err := setup(nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	r, closeFn, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	var res *version.Result
	if isNTriples(args[0]) {
		if updatePrefix == "" {
			return fmt.Errorf("--prefix is required for n-triples input")
		}
		res, err = rt.eng.ApplyNTriples(ctx, updatePrefix, r)
	} else {
		res, err = rt.eng.ApplyJSONLD(ctx, r)
	}
	if res != nil && (err == nil || len(res.Written) > 0) {
		printResult(cmd.OutOrStdout(), res)
	}
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// --- push command ---

var pushURL string

var pushCmd = &cobra.Command{
	Use:   "push <file.jsonld>",
	Short: "Send a JSON-LD snapshot to a running server",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	r, closeFn, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	c := client.New(pushURL)
	data, err := c.Patch(context.Background(), "/api/v0/graph", body)
	if err != nil {
		return err
	}

	var res version.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	printResult(cmd.OutOrStdout(), &res)
	return nil
}

func init() {
	updateCmd.Flags().StringVarP(&updatePrefix, "prefix", "p", "", "Graph prefix for n-triples input")
	pushCmd.Flags().StringVar(&pushURL, "url", "", "Server URL (default $TIMEGRAPH_URL or http://127.0.0.1:8080)")
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func isNTriples(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".nt")
}

func printResult(w io.Writer, res *version.Result) {
	if res.Unchanged {
		fmt.Fprintf(w, "%s: unchanged, nothing written\n", prefixLabel(res.Prefix))
		return
	}
	fmt.Fprintf(w, "%s: %s snapshot at %d (%d triples", prefixLabel(res.Prefix), res.Mode, res.Timestamp, res.Triples)
	if res.Mode == version.ModeDelta {
		fmt.Fprintf(w, ", +%d -%d", res.Added, res.Removed)
	}
	fmt.Fprintln(w, ")")
	for _, g := range res.Written {
		fmt.Fprintf(w, "  wrote   %s\n", g)
	}
	for _, g := range res.Dropped {
		fmt.Fprintf(w, "  dropped %s\n", g)
	}
}

func prefixLabel(prefix string) string {
	if prefix == "" {
		return "(root)"
	}
	return prefix
}
