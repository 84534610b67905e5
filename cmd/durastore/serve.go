package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/durastore/pkg/alarm"
	"github.com/cuemby/durastore/pkg/log"
	"github.com/cuemby/durastore/pkg/metrics"
	"github.com/cuemby/durastore/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the alarm scheduler and expose Prometheus metrics",
	Long: `serve starts the process-wide alarm scheduler's background poller
and an HTTP server exposing /metrics, /health, /ready, and /live, the way a
long-running durastore process backs many objects' engines at once.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:9090", "address to serve /metrics and /health on")
	serveCmd.Flags().Bool("enable-pprof", false, "enable /debug/pprof profiling endpoints")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")
	backend, _ := cmd.Flags().GetString("backend")
	dbPath, _ := cmd.Flags().GetString("db-path")

	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)

	var factory storage.Factory
	switch backend {
	case "bbolt":
		boltFactory, err := storage.OpenBoltFactory(dbPath)
		if err != nil {
			return fmt.Errorf("open bbolt factory: %w", err)
		}
		factory = boltFactory
	default:
		factory = storage.NewMemoryFactory()
	}
	defer factory.Close()
	metrics.RegisterComponent("storage", true, fmt.Sprintf("backend=%s", backend))

	scheduler := alarm.NewScheduler(factory, func(ctx context.Context, objectKey string) error {
		logger.Info().Str("object_key", objectKey).Msg("alarm fired")
		return nil
	})
	scheduler.Start()
	defer scheduler.Stop()
	metrics.RegisterComponent("alarm", true, "polling")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if pprofEnabled {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", addr)
	fmt.Printf("✓ Health endpoints:\n")
	fmt.Printf("  - Health check: http://%s/health\n", addr)
	fmt.Printf("  - Readiness:    http://%s/ready\n", addr)
	fmt.Printf("  - Liveness:     http://%s/live\n", addr)
	if pprofEnabled {
		fmt.Printf("✓ Profiling endpoints enabled at http://%s/debug/pprof/\n", addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info().Msg("shutting down")
		return nil
	}
}
