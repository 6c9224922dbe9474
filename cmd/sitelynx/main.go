package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/sitelynx/cmd/sitelynx/commands"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

var (
	version   = "1.0.0"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "sitelynx",
	Short:         "SiteLynx - Website Security & AI Exposure Scanner",
	Long:          "SiteLynx scans public websites for security weaknesses and AI integration risks, producing an explainable 0-100 score per target.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := initLogging(); err != nil {
			return err
		}
		if err := utils.EnsureDir(viper.GetString("data_directory")); err != nil {
			logrus.Warnf("Failed to ensure data directory: %v", err)
		}
		if !viper.GetBool("quiet") {
			printBanner()
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.sitelynx/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet mode (no banner output)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (database and worker leases)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("data_directory", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.AddCommand(commands.NewSubmitCommand())
	rootCmd.AddCommand(commands.NewWorkerCommand())
	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewStatsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, buildDate))

	rootCmd.InitDefaultCompletionCmd()
	rootCmd.SetVersionTemplate(fmt.Sprintf("SiteLynx %s (commit %s, built %s)\n", version, commit, buildDate))
}

func initConfig() error {
	setDefaults()
	viper.SetEnvPrefix("SITELYNX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home dir: %w", err)
		}
		viper.AddConfigPath(filepath.Join(home, ".sitelynx"))
		viper.AddConfigPath("/etc/sitelynx/")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Warnf("Failed reading config file: %v", err)
		}
	} else {
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("quiet", false)
	viper.SetDefault("data_directory", "./data")

	viper.SetDefault("crawl.lightweight_timeout", "15s")
	viper.SetDefault("crawl.browser_timeout", "60s")
	viper.SetDefault("crawl.network_idle_timeout", "10s")
	viper.SetDefault("crawl.cert_timeout", "5s")
	viper.SetDefault("crawl.tls_fingerprint", "chrome")
	viper.SetDefault("crawl.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36")
	viper.SetDefault("crawl.block_resources", []string{"media"})
	viper.SetDefault("crawl.max_redirects", 10)
	viper.SetDefault("crawl.rate_per_second", 2.0)
	viper.SetDefault("crawl.wait_until", "networkidle")
	viper.SetDefault("crawl.headless", true)

	viper.SetDefault("queue.max_attempts", 3)
	viper.SetDefault("queue.retention", "168h")
	viper.SetDefault("queue.poll_interval", "2s")

	viper.SetDefault("worker.max_workers", 40)
	viper.SetDefault("worker.job_timeout", "60s")
	viper.SetDefault("worker.max_runtime", "5m")
	viper.SetDefault("worker.idle_timeout", "5m")

	viper.SetDefault("submit.dns_precheck", true)
	viper.SetDefault("submit.dns_timeout", "5s")

	viper.SetDefault("metrics.addr", "")
}

func initLogging() error {
	logConfig := utils.LogConfig{
		Level:         viper.GetString("log_level"),
		Format:        viper.GetString("log_format"),
		FileLocation:  viper.GetString("log_file"),
		EnableConsole: true,
	}

	logger, err := utils.NewLogger(logConfig, "sitelynx", version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize structured logger, falling back: %v\n", err)
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		return nil
	}

	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.Level)
	logrus.SetFormatter(logger.Formatter)
	for _, h := range utils.UniqueHooks(logger.Hooks) {
		logrus.AddHook(h)
	}
	return nil
}

func printBanner() {
	fmt.Printf(`
   _____ _ __       __
  / ___/(_) /____  / /   __  ______  _  __
  \__ \/ / __/ _ \/ /   / / / / __ \| |/_/
 ___/ / / /_/  __/ /___/ /_/ / / / />  <
/____/_/\__/\___/_____/\__, /_/ /_/_/|_|
                      /____/

        Website Security & AI Exposure Scanner v%s
`, version)
	fmt.Printf("Build: %s (%s) | %s/%s\n\n", commit, buildDate, runtime.GOOS, runtime.GOARCH)
}
