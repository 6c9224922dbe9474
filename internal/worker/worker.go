package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/internal/detectors"
	"github.com/bl4ck0w1/sitelynx/internal/pool"
	"github.com/bl4ck0w1/sitelynx/internal/queue"
	"github.com/bl4ck0w1/sitelynx/internal/reporting"
	"github.com/bl4ck0w1/sitelynx/internal/scoring"
	"github.com/bl4ck0w1/sitelynx/internal/storage"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

type State string

const (
	StateUnstarted State = "unstarted"
	StateRunning   State = "running"
	StateDraining  State = "draining"
	StateExited    State = "exited"
)

// Crawler is the fetch dependency of the worker. Satisfied by
// crawl.Orchestrator; tests substitute a stub.
type Crawler interface {
	Crawl(ctx context.Context, rawURL string) *models.CrawlResult
}

// Worker is one scan-processing process. It holds a pool slot, claims
// jobs from the shared queue and runs the full pipeline per job. The
// process is deliberately short-lived: it exits voluntarily on the
// runtime ceiling, the idle ceiling, or a drain signal, and the next
// spawn takes its place.
type Worker struct {
	slot     int
	pid      int
	pool     *pool.SlotPool
	jobs     *queue.JobStore
	scans    *storage.ScanStore
	crawler  Crawler
	registry *detectors.Registry
	engine   *scoring.Engine
	reports  *reporting.Generator
	metrics  *utils.MetricsCollector
	cfg      models.WorkerConfig
	poll     time.Duration
	logger   *logrus.Logger

	mu        sync.Mutex
	state     State
	processed int64
	failed    int64
}

type Deps struct {
	Pool     *pool.SlotPool
	Jobs     *queue.JobStore
	Scans    *storage.ScanStore
	Crawler  Crawler
	Registry *detectors.Registry
	Engine   *scoring.Engine
	Reports  *reporting.Generator
	Metrics  *utils.MetricsCollector
}

func New(slot int, deps Deps, cfg models.WorkerConfig, pollInterval time.Duration, logger *logrus.Logger) *Worker {
	if logger == nil {
		logger = logrus.New()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 60 * time.Second
	}
	if cfg.MaxRuntime <= 0 {
		cfg.MaxRuntime = 5 * time.Minute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	return &Worker{
		slot:     slot,
		pid:      os.Getpid(),
		pool:     deps.Pool,
		jobs:     deps.Jobs,
		scans:    deps.Scans,
		crawler:  deps.Crawler,
		registry: deps.Registry,
		engine:   deps.Engine,
		reports:  deps.Reports,
		metrics:  deps.Metrics,
		cfg:      cfg,
		poll:     pollInterval,
		logger:   logger,
		state:    StateUnstarted,
	}
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run executes the claim/process loop until a ceiling is hit or ctx is
// canceled. The in-flight job always finishes before the loop exits.
func (w *Worker) Run(ctx context.Context) error {
	w.setState(StateRunning)
	defer w.setState(StateExited)

	start := time.Now()
	lastWork := start

	if w.metrics != nil {
		w.metrics.RegisterCounter("jobs_processed_total", "Jobs processed by outcome", "outcome")
		w.metrics.RegisterHistogram("job_duration_seconds", "Per-job processing time", nil)
	}

	for {
		if ctx.Err() != nil {
			w.setState(StateDraining)
			w.logger.Info("drain requested, exiting after in-flight work")
			return nil
		}
		if time.Since(start) >= w.cfg.MaxRuntime {
			w.logger.WithField("runtime", time.Since(start).String()).Info("runtime ceiling reached, exiting")
			return nil
		}
		if time.Since(lastWork) >= w.cfg.IdleTimeout {
			w.logger.WithField("idle", time.Since(lastWork).String()).Info("idle ceiling reached, exiting")
			return nil
		}

		if w.pool != nil {
			if err := w.pool.Heartbeat(w.slot, w.pid); err != nil {
				// Lost the lease; someone reclaimed the slot. Stop now so
				// two workers never share it.
				w.logger.WithError(err).Error("lease heartbeat failed, exiting")
				return err
			}
		}

		job, err := w.jobs.ClaimNext(ctx)
		if errors.Is(err, queue.ErrNoJobs) {
			select {
			case <-ctx.Done():
			case <-time.After(w.poll):
			}
			continue
		}
		if err != nil {
			w.logger.WithError(err).Error("job claim failed")
			select {
			case <-ctx.Done():
			case <-time.After(w.poll):
			}
			continue
		}

		lastWork = time.Now()
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *models.ScanJob) {
	start := time.Now()
	log := w.logger.WithFields(logrus.Fields{"job_id": job.ID, "attempt": job.Attempts})

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	err := w.process(jobCtx, job)
	elapsed := time.Since(start)

	if err != nil {
		log.WithError(err).WithField("elapsed", elapsed.String()).Warn("job failed")
		w.bumpFailed()
		w.observe("failure", elapsed)
		// Fail with a background context: a deadline-exceeded jobCtx
		// must not block recording the failure.
		if ferr := w.jobs.Fail(context.Background(), job.ID, err); ferr != nil {
			log.WithError(ferr).Error("could not record job failure")
		}
		if job.Attempts >= job.MaxAttempts {
			w.failScan(job, err)
		}
		return
	}

	log.WithField("elapsed", elapsed.String()).Info("job completed")
	w.bumpProcessed()
	w.observe("success", elapsed)
	if cerr := w.jobs.Complete(context.Background(), job.ID); cerr != nil {
		log.WithError(cerr).Error("could not record job completion")
	}
}

// process runs the scan pipeline: crawl, detect, score, persist.
func (w *Worker) process(ctx context.Context, job *models.ScanJob) error {
	payload, err := job.DecodePayload()
	if err != nil {
		return err
	}
	if err := w.scans.MarkScanning(ctx, payload.ScanID); err != nil {
		w.logger.WithError(err).WithField("scan_id", payload.ScanID).Warn("could not mark scan as scanning")
	}

	result := w.crawler.Crawl(ctx, payload.URL)
	if !result.Success {
		return fmt.Errorf("crawl failed (%s): %s", result.FetchMethod, result.Error)
	}

	findings, meta := w.registry.Run(ctx, result)
	breakdown := w.engine.Score(findings, meta)

	report := w.reports.Build(payload.ScanID, payload.URL, domainOf(payload.URL), result, findings, breakdown)
	reportJSON, err := w.reports.Encode(report)
	if err != nil {
		return err
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	return w.scans.Complete(ctx, payload.ScanID,
		breakdown.OverallScore, breakdown.RiskLevel, breakdown.Grade,
		string(breakdownJSON), reportJSON, utils.HashContent(result.HTML))
}

func (w *Worker) failScan(job *models.ScanJob, cause error) {
	payload, err := job.DecodePayload()
	if err != nil {
		return
	}
	if serr := w.scans.Fail(context.Background(), payload.ScanID, cause.Error()); serr != nil {
		w.logger.WithError(serr).WithField("scan_id", payload.ScanID).Error("could not record scan failure")
	}
}

func (w *Worker) bumpProcessed() {
	w.mu.Lock()
	w.processed++
	w.mu.Unlock()
}

func (w *Worker) bumpFailed() {
	w.mu.Lock()
	w.failed++
	w.mu.Unlock()
}

func (w *Worker) observe(outcome string, elapsed time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.IncCounter("jobs_processed_total", outcome)
	w.metrics.ObserveHistogram("job_duration_seconds", elapsed.Seconds())
}

func (w *Worker) GetStats() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return map[string]interface{}{
		"slot":      w.slot,
		"pid":       w.pid,
		"state":     string(w.state),
		"processed": w.processed,
		"failed":    w.failed,
	}
}

func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
