package commands

import (
	"database/sql"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/sitelynx/internal/detectors"
	"github.com/bl4ck0w1/sitelynx/internal/queue"
	"github.com/bl4ck0w1/sitelynx/internal/storage"
	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// configFromViper assembles the typed config from whatever viper has
// accumulated (defaults, config file, env, flags).
func configFromViper() *models.Config {
	cfg := models.DefaultConfig()

	cfg.Global.LogLevel = viper.GetString("log_level")
	cfg.Global.LogFormat = viper.GetString("log_format")
	cfg.Global.LogFile = viper.GetString("log_file")
	cfg.Global.DataDir = viper.GetString("data_directory")

	cfg.Crawl.LightweightTimeout = viper.GetDuration("crawl.lightweight_timeout")
	cfg.Crawl.BrowserTimeout = viper.GetDuration("crawl.browser_timeout")
	cfg.Crawl.NetworkIdleTimeout = viper.GetDuration("crawl.network_idle_timeout")
	cfg.Crawl.CertTimeout = viper.GetDuration("crawl.cert_timeout")
	cfg.Crawl.TLSFingerprint = viper.GetString("crawl.tls_fingerprint")
	cfg.Crawl.UserAgent = viper.GetString("crawl.user_agent")
	cfg.Crawl.BlockResources = viper.GetStringSlice("crawl.block_resources")
	cfg.Crawl.MaxRedirects = viper.GetInt("crawl.max_redirects")
	cfg.Crawl.RatePerSecond = viper.GetFloat64("crawl.rate_per_second")
	cfg.Crawl.WaitUntil = viper.GetString("crawl.wait_until")
	cfg.Crawl.Headless = viper.GetBool("crawl.headless")

	cfg.Queue.MaxAttempts = viper.GetInt("queue.max_attempts")
	cfg.Queue.Retention = viper.GetDuration("queue.retention")
	cfg.Queue.PollInterval = viper.GetDuration("queue.poll_interval")

	cfg.Worker.MaxWorkers = viper.GetInt("worker.max_workers")
	cfg.Worker.JobTimeout = viper.GetDuration("worker.job_timeout")
	cfg.Worker.MaxRuntime = viper.GetDuration("worker.max_runtime")
	cfg.Worker.IdleTimeout = viper.GetDuration("worker.idle_timeout")

	cfg.Submit.DNSPrecheck = viper.GetBool("submit.dns_precheck")
	cfg.Submit.DNSTimeout = viper.GetDuration("submit.dns_timeout")

	cfg.Metrics.Addr = viper.GetString("metrics.addr")
	return cfg
}

// app bundles the stores every command needs.
type app struct {
	cfg    *models.Config
	db     *sql.DB
	jobs   *queue.JobStore
	scans  *storage.ScanStore
	logger *logrus.Logger
}

func openApp() (*app, error) {
	cfg := configFromViper()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.Global.DataDir)
	if err != nil {
		return nil, err
	}
	logger := logrus.StandardLogger()
	return &app{
		cfg:    cfg,
		db:     db,
		jobs:   queue.NewJobStore(db, cfg.Queue.MaxAttempts, cfg.Queue.Retention, logger),
		scans:  storage.NewScanStore(db, logger),
		logger: logger,
	}, nil
}

func (a *app) close() {
	_ = a.db.Close()
}

func (a *app) resolver() *detectors.DNSResolver {
	return detectors.NewDNSResolver(nil, a.cfg.Submit.DNSTimeout, a.logger)
}

func (a *app) leaseDir() string {
	return filepath.Join(a.cfg.Global.DataDir, "leases")
}
