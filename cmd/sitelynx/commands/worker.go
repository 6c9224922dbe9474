package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bl4ck0w1/sitelynx/internal/crawl"
	"github.com/bl4ck0w1/sitelynx/internal/detectors"
	"github.com/bl4ck0w1/sitelynx/internal/pool"
	"github.com/bl4ck0w1/sitelynx/internal/reporting"
	"github.com/bl4ck0w1/sitelynx/internal/scoring"
	"github.com/bl4ck0w1/sitelynx/internal/worker"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

func NewWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run one scan worker process",
		Long: `Acquire a pool slot and process queued scan jobs until the runtime
ceiling, the idle ceiling or a termination signal. Exits cleanly with
status 0 when the pool is full, so supervisors can spawn aggressively.`,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	slots, err := pool.NewSlotPool(a.leaseDir(), a.cfg.Worker.MaxWorkers, a.cfg.Worker.MaxRuntime, a.logger)
	if err != nil {
		return err
	}
	pid := os.Getpid()
	slot, err := slots.Acquire(pid)
	if errors.Is(err, pool.ErrNoSlotAvailable) {
		a.logger.WithField("max_workers", a.cfg.Worker.MaxWorkers).Info("worker pool full, exiting")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if rerr := slots.Release(slot, pid); rerr != nil {
			a.logger.WithError(rerr).Error("lease release failed")
		}
	}()

	// Recover work orphaned by crashed workers, then prune old jobs.
	if _, err := a.jobs.RecoverStale(context.Background(), 2*a.cfg.Worker.JobTimeout); err != nil {
		a.logger.WithError(err).Warn("stale job recovery failed")
	}
	if _, err := a.jobs.Cleanup(context.Background()); err != nil {
		a.logger.WithError(err).Warn("retention cleanup failed")
	}

	metrics := utils.NewMetricsCollector(true)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if serr := http.ListenAndServe(addr, mux); serr != nil {
				a.logger.WithError(serr).Warn("metrics listener stopped")
			}
		}()
	}

	orchestrator := crawl.NewOrchestrator(a.cfg.Crawl, metrics, a.logger)
	defer func() {
		if cerr := orchestrator.Close(); cerr != nil {
			a.logger.WithError(cerr).Warn("crawler shutdown failed")
		}
	}()

	w := worker.New(slot, worker.Deps{
		Pool:     slots,
		Jobs:     a.jobs,
		Scans:    a.scans,
		Crawler:  orchestrator,
		Registry: detectors.DefaultRegistry(a.resolver(), a.logger),
		Engine:   scoring.NewEngine(a.logger),
		Reports:  reporting.NewGenerator(cmd.Root().Version, a.logger),
		Metrics:  metrics,
	}, a.cfg.Worker, a.cfg.Queue.PollInterval, a.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		a.logger.WithField("signal", sig.String()).Info("shutdown signal received, draining")
		cancel()
	}()

	a.logger.WithFields(logrus.Fields{"slot": slot, "pid": pid}).Info("worker started")
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("worker loop: %w", err)
	}
	return nil
}
