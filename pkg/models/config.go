package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Global  GlobalConfig  `yaml:"global" json:"global"`
	Crawl   CrawlConfig   `yaml:"crawl" json:"crawl"`
	Queue   QueueConfig   `yaml:"queue" json:"queue"`
	Worker  WorkerConfig  `yaml:"worker" json:"worker"`
	Submit  SubmitConfig  `yaml:"submit" json:"submit"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

type GlobalConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
	LogFile   string `yaml:"log_file" json:"log_file"`
	DataDir   string `yaml:"data_dir" json:"data_dir"`
}

type CrawlConfig struct {
	LightweightTimeout time.Duration `yaml:"lightweight_timeout" json:"lightweight_timeout"`
	BrowserTimeout     time.Duration `yaml:"browser_timeout" json:"browser_timeout"`
	NetworkIdleTimeout time.Duration `yaml:"network_idle_timeout" json:"network_idle_timeout"`
	CertTimeout        time.Duration `yaml:"cert_timeout" json:"cert_timeout"`
	WaitUntil          string        `yaml:"wait_until" json:"wait_until"`
	TLSFingerprint     string        `yaml:"tls_fingerprint" json:"tls_fingerprint"`
	UserAgent          string        `yaml:"user_agent" json:"user_agent"`
	BlockResources     []string      `yaml:"block_resources" json:"block_resources"`
	MaxRedirects       int           `yaml:"max_redirects" json:"max_redirects"`
	RatePerSecond      float64       `yaml:"rate_per_second" json:"rate_per_second"`
	Headless           bool          `yaml:"headless" json:"headless"`
}

type QueueConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	Retention    time.Duration `yaml:"retention" json:"retention"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

type WorkerConfig struct {
	MaxWorkers  int           `yaml:"max_workers" json:"max_workers"`
	JobTimeout  time.Duration `yaml:"job_timeout" json:"job_timeout"`
	MaxRuntime  time.Duration `yaml:"max_runtime" json:"max_runtime"`
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

type SubmitConfig struct {
	DNSPrecheck bool          `yaml:"dns_precheck" json:"dns_precheck"`
	DNSTimeout  time.Duration `yaml:"dns_timeout" json:"dns_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultConfig mirrors the viper defaults set at startup.
func DefaultConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:  "info",
			LogFormat: "json",
			DataDir:   "./data",
		},
		Crawl: CrawlConfig{
			LightweightTimeout: 15 * time.Second,
			BrowserTimeout:     60 * time.Second,
			NetworkIdleTimeout: 10 * time.Second,
			CertTimeout:        5 * time.Second,
			WaitUntil:          "networkidle",
			TLSFingerprint:     "chrome",
			UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36",
			BlockResources:     []string{"media"},
			MaxRedirects:       10,
			RatePerSecond:      2,
			Headless:           true,
		},
		Queue: QueueConfig{
			MaxAttempts:  3,
			Retention:    7 * 24 * time.Hour,
			PollInterval: 2 * time.Second,
		},
		Worker: WorkerConfig{
			MaxWorkers:  40,
			JobTimeout:  60 * time.Second,
			MaxRuntime:  5 * time.Minute,
			IdleTimeout: 5 * time.Minute,
		},
		Submit: SubmitConfig{
			DNSPrecheck: true,
			DNSTimeout:  5 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	if c.Worker.MaxWorkers <= 0 {
		return fmt.Errorf("worker.max_workers must be positive")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive")
	}
	if c.Crawl.LightweightTimeout <= 0 || c.Crawl.BrowserTimeout <= 0 {
		return fmt.Errorf("crawl timeouts must be positive")
	}
	if c.Global.DataDir == "" {
		return fmt.Errorf("global.data_dir is required")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
