package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/niklasschaeffer/open-mem/internal/events"
	"github.com/niklasschaeffer/open-mem/internal/host"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/metrics"
)

var metricsAddr string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the queue scheduler, event bus, and metrics endpoint in the foreground",
	Long: `daemon acquires the project's singleton lock, starts the embedded event
bus and cron-driven queue scheduler, and serves Prometheus metrics over
HTTP until interrupted.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	e, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if !cfg.Daemon.Enabled {
		return fmt.Errorf("daemon disabled in config (daemon.enabled=false)")
	}

	lock, err := host.AcquireDaemonLock(cfg.ProjectRoot, cfg.Daemon)
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	defer lock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := lock.Watch(ctx); err != nil {
		return fmt.Errorf("watch daemon lock: %w", err)
	}

	bus, err := events.Start()
	if err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer bus.Close()
	e.WithBus(bus)
	e.WithMetrics(metrics.New())

	if err := e.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer e.Scheduler.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Get(logging.CategoryHost).Error("metrics server stopped: %v", err)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "openmem daemon running (pid %d), metrics on %s\n", os.Getpid(), metricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
