package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/glaciation-heu/timegraph/internal/metrics"
	"github.com/glaciation-heu/timegraph/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the retention scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt, err := setup(metrics.New(reg))
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.eng.StartRetention(ctx); err != nil {
		return fmt.Errorf("start retention: %w", err)
	}

	srv := server.New(rt.eng, reg, rt.logger, VersionString())
	addr := rt.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "timegraph serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  store: %s\n", storeLabel(rt))
		if rt.db != nil {
			fmt.Fprintf(os.Stderr, "  journal: %s\n", rt.db.Path)
		}
		if rt.cfg.Retention.Enabled {
			fmt.Fprintf(os.Stderr, "  retention: window %s, every %s\n", rt.cfg.Retention.Window, rt.cfg.Retention.Interval)
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func storeLabel(rt *runtime) string {
	if rt.cfg.Store.Backend == "memory" {
		return "memory (not persisted)"
	}
	return fmt.Sprintf("fuseki %s/%s", rt.cfg.StoreURL(), rt.cfg.Store.Dataset)
}
