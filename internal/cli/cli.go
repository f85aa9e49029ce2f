// Package cli builds computejobd's command-line interface: a single
// cobra root command taking one optional positional argument (the
// listen port), a --config flag for the optional YAML file, and
// graceful shutdown on SIGINT/SIGTERM.
//
// Trimmed from the teacher's internal/cli/cli.go, which built a
// run/enqueue/status command tree around a distributed controller
// with WAL/snapshot/gRPC config sections; spec.md §6 only asks for "a
// single optional positional argument: the listen port", so the
// run/enqueue/status split and the remote gRPC submission path are
// dropped (see DESIGN.md's dropped-modules section).
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/computejobd/computejobd/internal/config"
	"github.com/computejobd/computejobd/internal/dispatch"
	"github.com/computejobd/computejobd/internal/httpapi"
	"github.com/computejobd/computejobd/internal/logging"
	"github.com/computejobd/computejobd/internal/metrics"
	"github.com/computejobd/computejobd/internal/queue"
	"github.com/computejobd/computejobd/internal/registry"
	"github.com/computejobd/computejobd/internal/workerpool"
)

var configFile string

// BuildCLI constructs the root command. Callers set rootCmd.Version
// before Execute, mirroring the teacher's ldflags-injected version
// string.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "computejobd [port]",
		Short: "computejobd: a bounded-queue compute job server",
		Long: `computejobd accepts synchronous and asynchronous compute
tasks over HTTP, backed by a bounded work queue, a fixed worker pool,
and a job registry for async status/result/cancel.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if _, err := parsePort(args[0]); err != nil {
					// An invalid port is a usage error: cobra prints the
					// usage text to stderr after the error.
					cmd.SilenceUsage = false
					return err
				}
			}
			return runServer(args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional YAML config file path")

	return rootCmd
}

func runServer(args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(args) == 1 {
		port, err := parsePort(args[0])
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	}

	logger := logging.New(cfg.LogLevel(), cfg.LogFormat())

	var persister registry.Persister
	if cfg.Persistence.Enabled {
		persister = registry.NewFilePersister(cfg.Persistence.Dir)
	}

	q := queue.New(cfg.Queue.Capacity)
	reg := registry.New(persister)
	agg := metrics.New(cfg.Metrics.WindowSize)

	table := dispatch.BuildDefaultHandlerTable(func(ctx context.Context) bool {
		return reg.IsCancelRequested(dispatch.JobIDFromContext(ctx))
	})

	d := dispatch.New(table, q, reg, agg, cfg.EnqueueWaitBudget())

	handler := &dispatch.JobHandler{Table: table, Registry: reg, Metrics: agg}
	pool := workerpool.New(q, handler)
	if err := pool.Start(cfg.Worker.Count); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	taskNames := table.Names()
	for _, name := range taskNames {
		agg.Register(name, cfg.Worker.Count, cfg.Queue.Capacity, cfg.Metrics.WindowSize)
	}
	stopSampler := make(chan struct{})
	go sampleGauges(agg, q, pool, taskNames, stopSampler)
	defer close(stopSampler)

	server := httpapi.NewServer(d, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrors <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrors:
		return fmt.Errorf("http server: %w", err)
	case <-sigChan:
		logger.Info("shutdown signal received")
	}

	// Shutdown order follows spec.md §5's resource-lifetime rule: stop
	// accepting new HTTP connections, drain the queue, join workers;
	// the registry is read-only from here on and needs no close.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown error", "error", err.Error())
	}
	q.Shutdown()
	pool.Stop()

	logger.Info("stopped")
	return nil
}

// sampleGauges periodically pushes the shared queue depth and busy
// worker count into every registered task's Metrics Entry: the Work
// Queue and Worker Pool are both singletons shared across all task
// names, so each entry's queue_size/workers.busy gauges track the
// same underlying pool, per spec.md §4.5's per-command gauge fields.
func sampleGauges(agg *metrics.Aggregator, q *queue.Queue, pool *workerpool.Pool, taskNames []string, stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			size := int64(q.Size())
			busy := pool.BusyCount()
			for _, name := range taskNames {
				agg.UpdateQueueSize(name, size)
				agg.UpdateWorkersBusy(name, busy)
			}
		}
	}
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: must be an integer", raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d: must be in range 1-65535", port)
	}
	return port, nil
}
